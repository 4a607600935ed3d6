package detect

import (
	"fmt"

	"github.com/minisoc-labs/minisoc/internal/schema"
)

// DefaultOffHoursStart/End bound the default working-hours window [8, 18).
const (
	DefaultOffHoursStart = 8
	DefaultOffHoursEnd   = 18
)

// OffHours is AUTH004 (sev 6): a successful login outside [startHour, endHour).
type OffHours struct {
	startHour int
	endHour   int
}

// NewOffHours builds an AUTH004 detector.
func NewOffHours(startHour, endHour int) *OffHours {
	return &OffHours{startHour: startHour, endHour: endHour}
}

func (r *OffHours) OnEvent(ev *schema.NormalizedEvent) *Detection {
	if ev.Event.Outcome != schema.OutcomeSuccess || ev.User == nil || ev.User.Name == "" {
		return nil
	}
	t, ok := parseTs(ev.Ts)
	if !ok {
		return nil
	}

	hour := t.Hour()
	if hour >= r.startHour && hour < r.endHour {
		return nil
	}

	bucket := Bucket(ev.Ts)
	return &Detection{
		RuleID:   "AUTH004",
		Title:    fmt.Sprintf("Off-hours login for %s at %02d:00 UTC", ev.User.Name, hour),
		Severity: 6,
		Entity:   "user:" + ev.User.Name,
		EventIDs: []string{ev.EventID.String()},
		Bucket:   bucket,
		Details: map[string]any{
			"user":       ev.User.Name,
			"hour":       hour,
			"start_hour": r.startHour,
			"end_hour":   r.endHour,
			"bucket":     bucket,
		},
	}
}
