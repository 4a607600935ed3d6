// Package alert implements MiniSOC's alert router: stable
// alert IDs, a persisted TTL-bounded dedupe cache, and suppressed-repeat
// accounting reported at fixed milestones.
package alert

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	gocache "github.com/patrickmn/go-cache"
)

// DefaultDedupeTTL is the default window an alert ID stays "seen", measured
// from routing time, not event time.
const DefaultDedupeTTL = 60 * time.Minute

// DedupeCache persists seen alert IDs to a flat text file, one
// `<alert_id>|<seen_ts_rfc3339>` entry per line, pruned by TTL on every
// load. An in-process go-cache mirror avoids re-parsing the file on every
// route() call; the file remains authoritative across restarts.
type DedupeCache struct {
	path  string
	ttl   time.Duration
	clock clock.Clock

	mu  sync.Mutex
	mem *gocache.Cache
}

// NewDedupeCache loads (or creates) the cache file at path, using the real
// wall clock. Use NewDedupeCacheWithClock in tests that need determinism.
func NewDedupeCache(path string, ttl time.Duration) (*DedupeCache, error) {
	return NewDedupeCacheWithClock(path, ttl, clock.New())
}

// NewDedupeCacheWithClock is NewDedupeCache with an injectable clock, so
// tests can control "now" before the TTL-pruning load happens.
func NewDedupeCacheWithClock(path string, ttl time.Duration, c clock.Clock) (*DedupeCache, error) {
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}
	d := &DedupeCache{
		path:  path,
		ttl:   ttl,
		clock: c,
		// NoExpiration: go-cache's own real-wall-clock eviction is bypassed
		// in favor of explicit checks against d.clock below, so tests using
		// a mock clock see deterministic TTL behavior.
		mem: gocache.New(gocache.NoExpiration, gocache.NoExpiration),
	}
	if err := d.load(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *DedupeCache) load() error {
	f, err := os.Open(d.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open dedupe cache %s: %w", d.path, err)
	}
	defer f.Close()

	now := d.clock.Now().UTC()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "|", 2)
		if len(parts) != 2 {
			continue
		}
		seenAt, err := time.Parse(time.RFC3339, parts[1])
		if err != nil {
			continue
		}
		if now.Sub(seenAt) > d.ttl {
			continue // pruned: older than TTL from routing (=load) time
		}
		d.mem.Set(parts[0], seenAt, gocache.NoExpiration)
	}
	return scanner.Err()
}

// Seen reports whether alertID is present and not yet expired, measured
// from the cache's clock (routing time, not event time).
func (d *DedupeCache) Seen(alertID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	item, ok := d.mem.Get(alertID)
	if !ok {
		return false
	}
	seenAt, ok := item.(time.Time)
	if !ok {
		return false
	}
	if d.clock.Now().UTC().Sub(seenAt) > d.ttl {
		d.mem.Delete(alertID)
		return false
	}
	return true
}

// MarkSeen records alertID as seen now and rewrites the persisted file.
func (d *DedupeCache) MarkSeen(alertID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock.Now().UTC()
	d.mem.Set(alertID, now, gocache.NoExpiration)
	return d.rewrite()
}

// rewrite persists the full in-process cache contents to disk. Callers must
// hold d.mu.
func (d *DedupeCache) rewrite() error {
	f, err := os.Create(d.path)
	if err != nil {
		return fmt.Errorf("rewrite dedupe cache %s: %w", d.path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for id, item := range d.mem.Items() {
		seenAt, ok := item.Object.(time.Time)
		if !ok {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s|%s\n", id, seenAt.Format(time.RFC3339)); err != nil {
			return fmt.Errorf("write dedupe entry: %w", err)
		}
	}
	return w.Flush()
}

// suppressedCounters tracks, per alert ID, how many routed-but-suppressed
// repeats have occurred since the last notified occurrence.
type suppressedCounters struct {
	mu     sync.Mutex
	counts map[string]int
}

func newSuppressedCounters() *suppressedCounters {
	return &suppressedCounters{counts: make(map[string]int)}
}

// Increment bumps the suppressed count for id and returns the new value.
func (s *suppressedCounters) Increment(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[id]++
	return s.counts[id]
}

// TakeAndClear returns the current suppressed count for id (0 if none) and
// resets it, called when an alert is about to be notified again.
func (s *suppressedCounters) TakeAndClear(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.counts[id]
	delete(s.counts, id)
	return n
}

// suppressionMilestones are the counts at which a suppressed repeat gets an
// informational log line.
var suppressionMilestones = map[int]bool{10: true, 25: true, 50: true, 100: true}
