// Package transport sends normalized events from the agent to the server
// over HTTP, with no retries; delivery is at-most-once.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/minisoc-labs/minisoc/internal/schema"
)

const postTimeout = 5 * time.Second

// Counters tracks the agent pipeline's four stage counts.
type Counters struct {
	Read   int64
	Parsed int64
	Sent   int64
	Failed int64
}

// Snapshot returns a copy of the current counter values.
func (c *Counters) Snapshot() Counters {
	return Counters{
		Read:   atomic.LoadInt64(&c.Read),
		Parsed: atomic.LoadInt64(&c.Parsed),
		Sent:   atomic.LoadInt64(&c.Sent),
		Failed: atomic.LoadInt64(&c.Failed),
	}
}

func (c *Counters) incRead()   { atomic.AddInt64(&c.Read, 1) }
func (c *Counters) incParsed() { atomic.AddInt64(&c.Parsed, 1) }
func (c *Counters) incSent()   { atomic.AddInt64(&c.Sent, 1) }
func (c *Counters) incFailed() { atomic.AddInt64(&c.Failed, 1) }

// StatsEmitter mirrors counters to an external sink (statsd); optional.
type StatsEmitter interface {
	Read(n int64)
	Parsed(n int64)
	Sent(n int64)
	Failed(n int64)
}

// noopEmitter discards everything; used when no emitter is configured.
type noopEmitter struct{}

func (noopEmitter) Read(int64)   {}
func (noopEmitter) Parsed(int64) {}
func (noopEmitter) Sent(int64)   {}
func (noopEmitter) Failed(int64) {}

// Client POSTs normalized events to a MiniSOC server's /ingest endpoint.
type Client struct {
	serverURL string
	http      *http.Client
	Counters  Counters
	stats     StatsEmitter
}

// New builds a Client targeting serverURL (e.g. "http://127.0.0.1:8080").
func New(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		http:      &http.Client{Timeout: postTimeout},
		stats:     noopEmitter{},
	}
}

// WithStats attaches an optional statsd-backed counter mirror.
func (c *Client) WithStats(s StatsEmitter) *Client {
	if s != nil {
		c.stats = s
	}
	return c
}

// WithHTTPClient overrides the underlying http.Client (tests point this at
// an httptest.Server).
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

// MarkRead records that one raw line was read from the source, independent
// of whether it went on to parse successfully.
func (c *Client) MarkRead() {
	c.Counters.incRead()
	c.stats.Read(1)
}

// MarkParsed records that a line parsed into a normalized event.
func (c *Client) MarkParsed() {
	c.Counters.incParsed()
	c.stats.Parsed(1)
}

// Send posts ev to <server>/ingest. On HTTP >= 400 or a network error it
// increments Failed and returns an error for the caller to log once; there
// is no retry.
func (c *Client) Send(ctx context.Context, ev *schema.NormalizedEvent) error {
	body, err := ev.MarshalCanonical()
	if err != nil {
		c.Counters.incFailed()
		c.stats.Failed(1)
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, postTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/ingest", bytes.NewReader(body))
	if err != nil {
		c.Counters.incFailed()
		c.stats.Failed(1)
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.Counters.incFailed()
		c.stats.Failed(1)
		return fmt.Errorf("post event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		c.Counters.incFailed()
		c.stats.Failed(1)
		return fmt.Errorf("server rejected event: status %d", resp.StatusCode)
	}

	c.Counters.incSent()
	c.stats.Sent(1)
	return nil
}
