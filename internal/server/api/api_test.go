package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/minisoc-labs/minisoc/internal/metrics"
	"github.com/minisoc-labs/minisoc/internal/schema"
	"github.com/minisoc-labs/minisoc/internal/server/alert"
	"github.com/minisoc-labs/minisoc/internal/server/detect"
	"github.com/minisoc-labs/minisoc/internal/server/storage"
)

type discardNotifier struct{ notified int }

func (d *discardNotifier) Notify(a *schema.Alert, suppressedRepeats int) { d.notified++ }

func newTestServer(t *testing.T) (*Server, *discardNotifier) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	dedupe, err := alert.NewDedupeCache(filepath.Join(dir, "dedupe.txt"), 0)
	require.NoError(t, err)
	notifier := &discardNotifier{}
	router := alert.NewRouter(dedupe, notifier, zap.NewNop().Sugar())

	m := metrics.NewServer(prometheus.NewRegistry())
	srv, err := New(store, detect.NewEngine(), router, m, zap.NewNop().Sugar(), filepath.Join(dir, "jsonl"))
	require.NoError(t, err)
	return srv, notifier
}

func postEvent(t *testing.T, srv *Server, ev *schema.NormalizedEvent) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(ev)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/ingest", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func validEvent() *schema.NormalizedEvent {
	return &schema.NormalizedEvent{
		Schema:  schema.EventSchemaID,
		EventID: uuid.New(),
		Ts:      schema.UTCNowRFC3339(),
		Host:    schema.Host{Name: "lab-host"},
		Event:   schema.EventCore{Type: "auth", Action: "ssh_login", Outcome: schema.OutcomeFailure, Severity: 4},
		Raw:     schema.Raw{Line: "x", Parser: "auth.sshd"},
		User:    &schema.User{Name: "root"},
		Src:     &schema.Endpoint{IP: "1.2.3.4", Port: 22},
	}
}

func TestIngest_ValidEventSucceeds(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := postEvent(t, srv, validEvent())
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["ok"])
}

func TestIngest_InvalidEventReturns400(t *testing.T) {
	srv, _ := newTestServer(t)
	ev := validEvent()
	ev.Event.Severity = 99 // out of [1,10]
	rec := postEvent(t, srv, ev)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngest_BruteForceTripsAlertOnFifthFailure(t *testing.T) {
	srv, notifier := newTestServer(t)
	for i := 0; i < 4; i++ {
		ev := validEvent()
		rec := postEvent(t, srv, ev)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	ev := validEvent()
	rec := postEvent(t, srv, ev)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.EqualValues(t, 1, resp["alerts"])
	assert.Equal(t, 1, notifier.notified)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecentEvents_ReturnsIngested(t *testing.T) {
	srv, _ := newTestServer(t)
	postEvent(t, srv, validEvent())

	req := httptest.NewRequest(http.MethodGet, "/events/recent?limit=5", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Events []schema.NormalizedEvent `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Events, 1)
}

func TestRecentAlerts_ReturnsRoutedAlert(t *testing.T) {
	srv, _ := newTestServer(t)
	for i := 0; i < 5; i++ {
		postEvent(t, srv, validEvent())
	}

	req := httptest.NewRequest(http.MethodGet, "/alerts/recent?limit=5", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Alerts []map[string]any `json:"alerts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Alerts, 1)
	assert.Equal(t, "AUTH001", resp.Alerts[0]["rule_id"])
}
