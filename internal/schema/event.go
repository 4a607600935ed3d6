// Package schema defines the wire and storage shape of MiniSOC's normalized
// event and alert types, shared by the agent, server, and replay driver.
package schema

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EventSchemaID is the wire schema tag carried under the JSON key "schema".
const EventSchemaID = "minisoc.event.v1"

// SuspiciousSchemaID tags agent-local suspicious-activity records.
const SuspiciousSchemaID = "minisoc.suspicious.v1"

// Outcome is the result of an authentication attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeUnknown Outcome = "unknown"
)

// Host identifies the machine an event was observed on.
type Host struct {
	Name string `json:"name"`
	IP   string `json:"ip,omitempty"`
}

// Source describes where a raw log line came from.
type Source struct {
	Kind string `json:"kind"`
	Path string `json:"path,omitempty"`
}

// EventCore is the normalized classification of what happened.
type EventCore struct {
	Type     string  `json:"type"`
	Action   string  `json:"action"`
	Outcome  Outcome `json:"outcome"`
	Severity int     `json:"severity"`
}

// User identifies the account an event is attributed to.
type User struct {
	Name string `json:"name,omitempty"`
	UID  string `json:"uid,omitempty"`
}

// Endpoint is a network peer, optionally geolocated.
type Endpoint struct {
	IP     string             `json:"ip,omitempty"`
	Port   int                `json:"port,omitempty"`
	Domain string             `json:"domain,omitempty"`
	Geo    map[string]float64 `json:"geo,omitempty"`
	ASN    map[string]any     `json:"asn,omitempty"`
}

// Process optionally identifies the process associated with an event.
// Round-trip only; no rule consumes it.
type Process struct {
	Name    string `json:"name,omitempty"`
	PID     int    `json:"pid,omitempty"`
	PPID    int    `json:"ppid,omitempty"`
	Path    string `json:"path,omitempty"`
	Cmdline string `json:"cmdline,omitempty"`
}

// Raw preserves the original log line and which parser produced the event.
type Raw struct {
	Line   string `json:"line"`
	Parser string `json:"parser"`
}

// NormalizedEvent is the wire and storage row for one parsed auth event.
type NormalizedEvent struct {
	Schema  string    `json:"schema"`
	EventID uuid.UUID `json:"event_id"`
	Ts      string    `json:"ts"`
	Host    Host      `json:"host"`
	Source  Source    `json:"source"`
	Event   EventCore `json:"event"`
	Message string    `json:"message"`
	Raw     Raw       `json:"raw"`

	User *User     `json:"user,omitempty"`
	Src  *Endpoint `json:"src,omitempty"`
	Dst  *Endpoint `json:"dst,omitempty"`
	Proc *Process  `json:"process,omitempty"`

	Tags   []string          `json:"tags,omitempty"`
	Labels map[string]string `json:"labels,omitempty"`
	Enrich map[string]any    `json:"enrich,omitempty"`
}

// NewEventID returns a fresh random event identifier.
func NewEventID() uuid.UUID {
	return uuid.New()
}

// UTCNowRFC3339 formats the current wall clock as RFC3339 UTC, second
// precision, trailing "Z"; every NormalizedEvent timestamp uses this form.
func UTCNowRFC3339() string {
	return time.Now().UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z")
}

// FieldError describes one schema validation failure for the /ingest 400 body.
type FieldError struct {
	Field string `json:"field"`
	Msg   string `json:"msg"`
}

// Validate checks the invariants every NormalizedEvent must hold:
// severity in [1,10], a known outcome, and (for SSH rows) user.name/src.ip
// present. It returns all violations rather than stopping at the first.
func (e *NormalizedEvent) Validate() []FieldError {
	var errs []FieldError

	if e.EventID == uuid.Nil {
		errs = append(errs, FieldError{"event_id", "must not be empty"})
	}
	if e.Ts == "" {
		errs = append(errs, FieldError{"ts", "must not be empty"})
	} else if _, err := time.Parse(time.RFC3339, e.Ts); err != nil {
		errs = append(errs, FieldError{"ts", fmt.Sprintf("not RFC3339: %v", err)})
	}
	if e.Host.Name == "" {
		errs = append(errs, FieldError{"host.name", "must not be empty"})
	}
	switch e.Event.Outcome {
	case OutcomeSuccess, OutcomeFailure, OutcomeUnknown:
	default:
		errs = append(errs, FieldError{"event.outcome", "must be success, failure, or unknown"})
	}
	if e.Event.Severity < 1 || e.Event.Severity > 10 {
		errs = append(errs, FieldError{"event.severity", "must be in [1,10]"})
	}
	if e.Event.Type == "auth" && e.Event.Action == "ssh_login" {
		if e.User == nil || e.User.Name == "" {
			errs = append(errs, FieldError{"user.name", "required for ssh auth events"})
		}
		if e.Src == nil || e.Src.IP == "" {
			errs = append(errs, FieldError{"src.ip", "required for ssh auth events"})
		}
	}

	return errs
}

// MarshalCanonical renders the event in its wire/storage JSON form. Key
// order follows struct declaration order, so archival JSONL lines stay
// stable across re-marshals.
func (e *NormalizedEvent) MarshalCanonical() ([]byte, error) {
	return json.Marshal(e)
}

// ParseNormalizedEvent decodes one event payload, defaulting Schema when the
// caller omitted it (the replay driver's fixtures sometimes do).
func ParseNormalizedEvent(data []byte) (*NormalizedEvent, error) {
	var ev NormalizedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if ev.Schema == "" {
		ev.Schema = EventSchemaID
	}
	return &ev, nil
}
