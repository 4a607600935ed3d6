package alert

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/minisoc-labs/minisoc/internal/metrics"
	"github.com/minisoc-labs/minisoc/internal/schema"
)

// Notifier is the capability a router notifies through once an alert
// clears dedupe. Implementations must accept the suppressed-repeat count
// accrued since the alert was last notified.
type Notifier interface {
	Notify(a *schema.Alert, suppressedRepeats int)
}

// Router fans each alert through dedupe, suppressed-repeat accounting,
// and notification.
type Router struct {
	dedupe   *DedupeCache
	counters *suppressedCounters
	notifier Notifier
	log      *zap.SugaredLogger
	metrics  *metrics.Server
}

// NewRouter builds a Router backed by dedupe and notifying through notifier.
func NewRouter(dedupe *DedupeCache, notifier Notifier, log *zap.SugaredLogger) *Router {
	return &Router{dedupe: dedupe, counters: newSuppressedCounters(), notifier: notifier, log: log}
}

// WithMetrics attaches the server's ambient Prometheus counters; optional.
func (r *Router) WithMetrics(m *metrics.Server) *Router {
	r.metrics = m
	return r
}

// Route decides what happens to a: if its alert ID has already been seen,
// suppress and count; otherwise notify and mark it seen now.
func (r *Router) Route(a *schema.Alert) error {
	if r.dedupe.Seen(a.AlertID) {
		n := r.counters.Increment(a.AlertID)
		if r.metrics != nil {
			r.metrics.AlertsSuppressed.Inc()
		}
		if suppressionMilestones[n] {
			r.log.Infow("alert suppressed (repeat milestone)",
				"alert_id", a.AlertID, "rule_id", a.RuleID, "suppressed_repeats", n)
		}
		return nil
	}

	suppressed := r.counters.TakeAndClear(a.AlertID)
	r.notifier.Notify(a, suppressed)
	if r.metrics != nil {
		r.metrics.AlertsRouted.Inc()
	}

	return r.dedupe.MarkSeen(a.AlertID)
}

// ConsoleNotifier prints an alert plus its sorted detail map, appending
// "(+N suppressed repeats)" when applicable.
type ConsoleNotifier struct {
	log *zap.SugaredLogger
}

// NewConsoleNotifier builds a Notifier that logs through log.
func NewConsoleNotifier(log *zap.SugaredLogger) *ConsoleNotifier {
	return &ConsoleNotifier{log: log}
}

func (c *ConsoleNotifier) Notify(a *schema.Alert, suppressedRepeats int) {
	fields := []any{
		"alert_id", a.AlertID, "rule_id", a.RuleID, "severity", a.Severity,
		"entity", a.Entity, "title", a.Title,
	}
	for _, k := range sortedKeys(a.Details) {
		fields = append(fields, "detail."+k, a.Details[k])
	}
	msg := "ALERT " + a.Title
	if suppressedRepeats > 0 {
		msg += fmt.Sprintf(" (+%d suppressed repeats)", suppressedRepeats)
		fields = append(fields, "suppressed_repeats", suppressedRepeats)
	}
	c.log.Infow(msg, fields...)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
