// Package detect implements MiniSOC's five stateful authentication-abuse
// rules. Each rule is a struct instance holding its own
// sliding state, never package-scope globals, so a server process can be
// safely re-instantiated per test.
package detect

import (
	"time"

	"github.com/minisoc-labs/minisoc/internal/schema"
)

// Detection is one rule firing against the current event stream.
type Detection struct {
	RuleID   string
	Title    string
	Severity int
	Entity   string
	EventIDs []string
	Bucket   string
	Details  map[string]any
}

// Rule is any stateful detector. OnEvent is called once per ingested event,
// in rule-list order; a nil return means "no detection this time".
type Rule interface {
	OnEvent(ev *schema.NormalizedEvent) *Detection
}

// Bucket truncates an RFC3339 timestamp to minute resolution
// ("YYYY-MM-DDTHH:MM"), the time-window key embedded in detections and fed
// to the alert-ID hash.
func Bucket(ts string) string {
	if len(ts) >= 16 {
		return ts[:16]
	}
	return ts
}

// Engine holds an ordered rule list and fans each event out to every rule.
type Engine struct {
	rules []Rule
}

// NewEngine builds the default five-rule engine (AUTH001-AUTH005), in the
// fixed order that breaks ties between simultaneous detections.
func NewEngine() *Engine {
	return &Engine{rules: []Rule{
		NewBruteForce(DefaultBruteForceThreshold),
		NewPasswordSpray(DefaultSprayMinUsers, DefaultSprayMaxPerUser),
		NewNewIPForUser(),
		NewOffHours(DefaultOffHoursStart, DefaultOffHoursEnd),
		NewImpossibleTravel(DefaultMaxSpeedKMH),
	}}
}

// WithRules replaces the rule list, e.g. for tests exercising a single rule
// in isolation via the engine's fan-out path.
func WithRules(rules ...Rule) *Engine {
	return &Engine{rules: rules}
}

// OnEvent feeds ev to every rule and returns all detections, in rule order.
func (e *Engine) OnEvent(ev *schema.NormalizedEvent) []*Detection {
	var out []*Detection
	for _, r := range e.rules {
		if d := r.OnEvent(ev); d != nil {
			out = append(out, d)
		}
	}
	return out
}

func parseTs(ts string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
