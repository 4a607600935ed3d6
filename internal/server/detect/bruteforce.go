package detect

import (
	"fmt"

	"github.com/minisoc-labs/minisoc/internal/schema"
)

// DefaultBruteForceThreshold is AUTH001's default failure-count trigger.
const DefaultBruteForceThreshold = 5

// bruteForceHistoryCap bounds the per-IP failure history to its 200 newest
// entries.
const bruteForceHistoryCap = 200

type failureRecord struct {
	ts      string
	eventID string
}

// BruteForce is AUTH001 (sev 7): per src.ip, trip once failure count within
// the bounded history reaches threshold, re-firing on every subsequent
// failure (the router collapses repeats by bucket).
type BruteForce struct {
	threshold int
	byIP      map[string][]failureRecord
}

// NewBruteForce builds an AUTH001 detector with the given threshold.
func NewBruteForce(threshold int) *BruteForce {
	if threshold < 1 {
		threshold = DefaultBruteForceThreshold
	}
	return &BruteForce{threshold: threshold, byIP: make(map[string][]failureRecord)}
}

func (r *BruteForce) OnEvent(ev *schema.NormalizedEvent) *Detection {
	if ev.Event.Outcome != schema.OutcomeFailure || ev.Src == nil || ev.Src.IP == "" {
		return nil
	}

	ip := ev.Src.IP
	hist := append(r.byIP[ip], failureRecord{ts: ev.Ts, eventID: ev.EventID.String()})
	if len(hist) > bruteForceHistoryCap {
		hist = hist[len(hist)-bruteForceHistoryCap:]
	}
	r.byIP[ip] = hist

	if len(hist) < r.threshold {
		return nil
	}

	last := hist[len(hist)-r.threshold:]
	eventIDs := make([]string, len(last))
	for i, rec := range last {
		eventIDs[i] = rec.eventID
	}

	bucket := Bucket(ev.Ts)
	return &Detection{
		RuleID:   "AUTH001",
		Title:    fmt.Sprintf("Brute force: %d+ SSH failures from %s", r.threshold, ip),
		Severity: 7,
		Entity:   "src_ip:" + ip,
		EventIDs: eventIDs,
		Bucket:   bucket,
		Details: map[string]any{
			"src_ip":    ip,
			"threshold": r.threshold,
			"count":     len(hist),
			"bucket":    bucket,
		},
	}
}
