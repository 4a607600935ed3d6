package transport

import (
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Heartbeat emits a log line with the current counters at a configurable
// cadence (default 30s) in live mode. Replay mode callers
// simply never start it.
type Heartbeat struct {
	client   *Client
	log      *zap.SugaredLogger
	clock    clock.Clock
	interval float64 // seconds
}

// NewHeartbeat builds a heartbeat ticker for client, logging via log.
func NewHeartbeat(client *Client, log *zap.SugaredLogger, intervalS float64) *Heartbeat {
	if intervalS <= 0 {
		intervalS = 30
	}
	return &Heartbeat{client: client, log: log, clock: clock.New(), interval: intervalS}
}

// WithClock overrides the heartbeat's clock for deterministic tests.
func (h *Heartbeat) WithClock(c clock.Clock) *Heartbeat {
	h.clock = c
	return h
}

// Run ticks until stop is closed, logging the client's counters each time.
func (h *Heartbeat) Run(stop <-chan struct{}) {
	ticker := h.clock.Ticker(time.Duration(h.interval * float64(time.Second)))
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c := h.client.Counters.Snapshot()
			h.log.Infow("agent heartbeat",
				"read", c.Read, "parsed", c.Parsed, "sent", c.Sent, "failed", c.Failed)
		}
	}
}
