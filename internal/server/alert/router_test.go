package alert

import (
	"path/filepath"
	"testing"
	"time"

	mockclock "github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/minisoc-labs/minisoc/internal/schema"
)

type recordingNotifier struct {
	calls []struct {
		alert      *schema.Alert
		suppressed int
	}
}

func (r *recordingNotifier) Notify(a *schema.Alert, suppressedRepeats int) {
	r.calls = append(r.calls, struct {
		alert      *schema.Alert
		suppressed int
	}{a, suppressedRepeats})
}

func testAlert(id string) *schema.Alert {
	return &schema.Alert{
		AlertID: id, Ts: "2026-01-01T00:00:00Z", RuleID: "AUTH001",
		Title: "Brute force", Severity: 7, Entity: "src_ip:1.2.3.4",
		EventIDs: []string{"e1"}, Details: map[string]any{"count": 5},
	}
}

func TestRouter_FirstSightNotifies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dedupe.txt")
	mc := mockclock.NewMock()
	d, err := NewDedupeCacheWithClock(path, time.Hour, mc)
	require.NoError(t, err)
	notifier := &recordingNotifier{}
	r := NewRouter(d, notifier, zap.NewNop().Sugar())

	require.NoError(t, r.Route(testAlert("a_1")))
	require.Len(t, notifier.calls, 1)
	assert.Equal(t, 0, notifier.calls[0].suppressed)
}

func TestRouter_RepeatWithinTTLIsSuppressed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dedupe.txt")
	mc := mockclock.NewMock()
	d, err := NewDedupeCacheWithClock(path, time.Hour, mc)
	require.NoError(t, err)
	notifier := &recordingNotifier{}
	r := NewRouter(d, notifier, zap.NewNop().Sugar())

	require.NoError(t, r.Route(testAlert("a_1")))
	for i := 0; i < 3; i++ {
		require.NoError(t, r.Route(testAlert("a_1")))
	}
	assert.Len(t, notifier.calls, 1, "repeats within TTL must not notify again")
}

func TestRouter_RepeatAfterTTLExpiryNotifiesAgainWithSuppressedCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dedupe.txt")
	mc := mockclock.NewMock()
	d, err := NewDedupeCacheWithClock(path, time.Hour, mc)
	require.NoError(t, err)
	notifier := &recordingNotifier{}
	r := NewRouter(d, notifier, zap.NewNop().Sugar())

	require.NoError(t, r.Route(testAlert("a_1")))
	for i := 0; i < 12; i++ {
		require.NoError(t, r.Route(testAlert("a_1")))
	}
	mc.Add(61 * time.Minute)
	require.NoError(t, r.Route(testAlert("a_1")))

	require.Len(t, notifier.calls, 2)
	assert.Equal(t, 12, notifier.calls[1].suppressed)
}
