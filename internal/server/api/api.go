// Package api is MiniSOC's HTTP ingest/query surface:
// validate, persist, detect, route, and the read-only recent-N endpoints.
package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/minisoc-labs/minisoc/internal/metrics"
	"github.com/minisoc-labs/minisoc/internal/schema"
	"github.com/minisoc-labs/minisoc/internal/server/alert"
	"github.com/minisoc-labs/minisoc/internal/server/detect"
	"github.com/minisoc-labs/minisoc/internal/server/storage"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server wires together storage, the detection engine, and the alert router
// behind an HTTP handler. The detection engine's mutable rule state must
// be serialized across concurrent /ingest requests; mu guards exactly that
// critical section.
type Server struct {
	store    *storage.Store
	engine   *detect.Engine
	router   *alert.Router
	metrics  *metrics.Server
	log      *zap.SugaredLogger
	jsonlDir string

	mu sync.Mutex

	handler http.Handler
}

// New builds the server's HTTP handler. jsonlDir is where events.jsonl is
// durably appended.
func New(store *storage.Store, engine *detect.Engine, router *alert.Router, m *metrics.Server, log *zap.SugaredLogger, jsonlDir string) (*Server, error) {
	if err := os.MkdirAll(jsonlDir, 0o755); err != nil {
		return nil, fmt.Errorf("create jsonl dir %s: %w", jsonlDir, err)
	}

	s := &Server{store: store, engine: engine, router: router, metrics: m, log: log, jsonlDir: jsonlDir}

	r := mux.NewRouter()
	r.HandleFunc("/ingest", s.handleIngest).Methods(http.MethodPost)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/events/recent", s.handleRecentEvents).Methods(http.MethodGet)
	r.HandleFunc("/alerts/recent", s.handleRecentAlerts).Methods(http.MethodGet)
	if m != nil && m.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	s.handler = r

	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"ts": schema.UTCNowRFC3339(),
	})
}

// handleIngest validates, persists, archives, detects, and routes.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var ev schema.NormalizedEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"ok": false, "errors": []schema.FieldError{{Field: "body", Msg: err.Error()}},
		})
		return
	}
	if ev.Schema == "" {
		ev.Schema = schema.EventSchemaID
	}

	if errs := ev.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "errors": errs})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.InsertEvent(&ev); err != nil {
		s.log.Errorw("persist event failed", "event_id", ev.EventID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false})
		return
	}
	if err := s.appendJSONL(&ev); err != nil {
		s.log.Errorw("append events.jsonl failed", "event_id", ev.EventID, "error", err)
	}
	if s.metrics != nil {
		s.metrics.EventsIngested.Inc()
	}

	detections := s.engine.OnEvent(&ev)
	alertCount := 0
	for _, d := range detections {
		if s.metrics != nil {
			s.metrics.Detections.WithLabelValues(d.RuleID).Inc()
		}
		a := alert.ToAlert(d, ev.Ts)
		if _, err := s.store.InsertAlert(a); err != nil {
			s.log.Errorw("persist alert failed", "alert_id", a.AlertID, "error", err)
			continue
		}
		if err := s.router.Route(a); err != nil {
			s.log.Errorw("route alert failed", "alert_id", a.AlertID, "error", err)
			continue
		}
		alertCount++
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true, "event_id": ev.EventID.String(), "alerts": alertCount,
	})
}

func (s *Server) appendJSONL(ev *schema.NormalizedEvent) error {
	path := filepath.Join(s.jsonlDir, "events.jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	data, err := ev.MarshalCanonical()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write event line: %w", err)
	}
	return nil
}

func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 20)
	events, err := s.store.RecentEvents(limit)
	if err != nil {
		s.log.Errorw("query recent events failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleRecentAlerts(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 20)
	alerts, err := s.store.RecentAlerts(limit)
	if err != nil {
		s.log.Errorw("query recent alerts failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

func parseLimit(r *http.Request, def int) int {
	q := r.URL.Query().Get("limit")
	if q == "" {
		return def
	}
	var n int
	if _, err := fmt.Sscanf(q, "%d", &n); err != nil || n <= 0 {
		return def
	}
	return n
}
