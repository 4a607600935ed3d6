package schema

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSSHEvent() *NormalizedEvent {
	return &NormalizedEvent{
		Schema:  EventSchemaID,
		EventID: uuid.New(),
		Ts:      "2026-01-12T03:15:00Z",
		Host:    Host{Name: "lab-host"},
		Source:  Source{Kind: "auth", Path: "/var/log/auth.log"},
		Event:   EventCore{Type: "auth", Action: "ssh_login", Outcome: OutcomeFailure, Severity: 4},
		Message: "SSH login failure for user=pi from 10.0.0.5",
		Raw:     Raw{Line: "...", Parser: "auth.sshd"},
		User:    &User{Name: "pi"},
		Src:     &Endpoint{IP: "10.0.0.5", Port: 51000},
		Tags:    []string{"ssh", "auth", "failure"},
	}
}

func TestValidate_Valid(t *testing.T) {
	ev := validSSHEvent()
	assert.Empty(t, ev.Validate())
}

func TestValidate_MissingEventID(t *testing.T) {
	ev := validSSHEvent()
	ev.EventID = uuid.Nil
	errs := ev.Validate()
	require.NotEmpty(t, errs)
	assert.Equal(t, "event_id", errs[0].Field)
}

func TestValidate_SeverityOutOfRange(t *testing.T) {
	ev := validSSHEvent()
	ev.Event.Severity = 11
	errs := ev.Validate()
	found := false
	for _, e := range errs {
		if e.Field == "event.severity" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidate_BadOutcome(t *testing.T) {
	ev := validSSHEvent()
	ev.Event.Outcome = "maybe"
	errs := ev.Validate()
	found := false
	for _, e := range errs {
		if e.Field == "event.outcome" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidate_SSHRequiresUserAndSrcIP(t *testing.T) {
	ev := validSSHEvent()
	ev.User = nil
	ev.Src = nil
	errs := ev.Validate()
	var fields []string
	for _, e := range errs {
		fields = append(fields, e.Field)
	}
	assert.Contains(t, fields, "user.name")
	assert.Contains(t, fields, "src.ip")
}

func TestValidate_BadTimestamp(t *testing.T) {
	ev := validSSHEvent()
	ev.Ts = "not-a-time"
	errs := ev.Validate()
	found := false
	for _, e := range errs {
		if e.Field == "ts" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestMarshalRoundTrip(t *testing.T) {
	ev := validSSHEvent()
	data, err := ev.MarshalCanonical()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"schema":"minisoc.event.v1"`)

	got, err := ParseNormalizedEvent(data)
	require.NoError(t, err)
	if diff := cmp.Diff(ev, got); diff != "" {
		t.Fatalf("round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestParseNormalizedEvent_DefaultsSchema(t *testing.T) {
	got, err := ParseNormalizedEvent([]byte(`{"event_id":"` + uuid.New().String() + `","ts":"2026-01-12T03:15:00Z","host":{"name":"h"},"source":{"kind":"auth"},"event":{"type":"auth","action":"ssh_login","outcome":"success","severity":3},"message":"m","raw":{"line":"l","parser":"p"}}`))
	require.NoError(t, err)
	assert.Equal(t, EventSchemaID, got.Schema)
}

func TestUTCNowRFC3339_HasTrailingZ(t *testing.T) {
	ts := UTCNowRFC3339()
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`, ts)
}
