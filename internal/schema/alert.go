package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Alert is a durable, deduplicated record derived from a Detection.
type Alert struct {
	AlertID  string         `json:"alert_id"`
	Ts       string         `json:"ts"`
	RuleID   string         `json:"rule_id"`
	Title    string         `json:"title"`
	Severity int            `json:"severity"`
	Entity   string         `json:"entity"`
	EventIDs []string       `json:"event_ids"`
	Details  map[string]any `json:"details"`
}

// StableAlertID derives the deterministic alert identifier from
// (rule_id, entity, bucket): the first 24 hex characters of its sha256,
// prefixed "a_". Re-deriving the same inputs always collides, which is what
// makes both storage insertion and router dedupe idempotent.
func StableAlertID(ruleID, entity, bucket string) string {
	sum := sha256.Sum256([]byte(ruleID + "|" + entity + "|" + bucket))
	return "a_" + hex.EncodeToString(sum[:])[:24]
}

// SuspiciousRecord is the agent-local, JSONL-only aggregated window summary
// emitted by the burst tracker. It is never sent to the server.
type SuspiciousRecord struct {
	Schema    string           `json:"schema"`
	Ts        string           `json:"ts"`
	Reason    string           `json:"reason"`
	Src       SuspiciousSrc    `json:"src"`
	Usernames []string         `json:"usernames"`
	Counts    SuspiciousCounts `json:"counts"`
	Host      Host             `json:"host"`
	Event     EventCore        `json:"event"`
	Source    Source           `json:"source"`
	Raw       Raw              `json:"raw"`
}

// SuspiciousSrc is the offending source IP plus the ports it touched.
type SuspiciousSrc struct {
	IP    string `json:"ip"`
	Ports []int  `json:"ports"`
}

// SuspiciousCounts is the window/total accounting attached to a suspicious record.
type SuspiciousCounts struct {
	WindowFailures int `json:"window_failures"`
	TotalFailures  int `json:"total_failures"`
	WindowS        int `json:"window_s"`
	Threshold      int `json:"threshold"`
	CooldownS      int `json:"cooldown_s"`
}

// MarshalCanonical renders the record in its JSONL wire form.
func (r *SuspiciousRecord) MarshalCanonical() ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal suspicious record: %w", err)
	}
	return b, nil
}
