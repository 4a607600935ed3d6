package alert

import (
	"github.com/minisoc-labs/minisoc/internal/schema"
	"github.com/minisoc-labs/minisoc/internal/server/detect"
)

// ToAlert derives the durable Alert for a Detection, computing its stable
// ID from (rule_id, entity, bucket) so re-deriving the same inputs always
// collides, which is what makes storage insertion and router dedupe
// idempotent.
func ToAlert(d *detect.Detection, ts string) *schema.Alert {
	return &schema.Alert{
		AlertID:  schema.StableAlertID(d.RuleID, d.Entity, d.Bucket),
		Ts:       ts,
		RuleID:   d.RuleID,
		Title:    d.Title,
		Severity: d.Severity,
		Entity:   d.Entity,
		EventIDs: d.EventIDs,
		Details:  d.Details,
	}
}
