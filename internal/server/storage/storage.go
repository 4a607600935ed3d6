// Package storage is MiniSOC's SQLite persistence layer:
// events and alerts tables, WAL journaling, idempotent writes, and the
// recent-N query surface the HTTP API and CLI both use.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/minisoc-labs/minisoc/internal/schema"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS events (
	event_id   TEXT PRIMARY KEY,
	ts         TEXT NOT NULL,
	host       TEXT NOT NULL,
	event_type TEXT NOT NULL,
	action     TEXT NOT NULL,
	outcome    TEXT NOT NULL,
	severity   INTEGER NOT NULL,
	user       TEXT,
	src_ip     TEXT,
	message    TEXT,
	json       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts);
CREATE INDEX IF NOT EXISTS idx_events_user ON events(user);
CREATE INDEX IF NOT EXISTS idx_events_src_ip ON events(src_ip);

CREATE TABLE IF NOT EXISTS alerts (
	alert_id  TEXT PRIMARY KEY,
	ts        TEXT NOT NULL,
	rule_id   TEXT NOT NULL,
	title     TEXT NOT NULL,
	severity  INTEGER NOT NULL,
	entity    TEXT NOT NULL,
	event_ids TEXT NOT NULL,
	details   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alerts_ts ON alerts(ts);
CREATE INDEX IF NOT EXISTS idx_alerts_rule_id ON alerts(rule_id);
CREATE INDEX IF NOT EXISTS idx_alerts_entity ON alerts(entity);
`

// Store wraps a single SQLite database handle; WAL keeps readers usable
// while the ingest path writes.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path, applies WAL
// journaling and NORMAL synchronous, and ensures schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertEvent persists ev, overwriting any prior row with the same event_id
// (re-ingest is idempotent by event ID.I).
func (s *Store) InsertEvent(ev *schema.NormalizedEvent) error {
	raw, err := ev.MarshalCanonical()
	if err != nil {
		return fmt.Errorf("marshal event for storage: %w", err)
	}
	var user, srcIP string
	if ev.User != nil {
		user = ev.User.Name
	}
	if ev.Src != nil {
		srcIP = ev.Src.IP
	}

	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO events
			(event_id, ts, host, event_type, action, outcome, severity, user, src_ip, message, json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.EventID.String(), ev.Ts, ev.Host.Name, ev.Event.Type, ev.Event.Action,
		string(ev.Event.Outcome), ev.Event.Severity, user, srcIP, ev.Message, string(raw),
	)
	if err != nil {
		return fmt.Errorf("insert event %s: %w", ev.EventID, err)
	}
	return nil
}

// InsertAlert persists a, silently doing nothing if the alert ID already
// exists; alert ID stability is what makes this dedupe idempotent.
func (s *Store) InsertAlert(a *schema.Alert) (inserted bool, err error) {
	eventIDs, err := json.Marshal(a.EventIDs)
	if err != nil {
		return false, fmt.Errorf("marshal event_ids: %w", err)
	}
	details, err := json.Marshal(a.Details)
	if err != nil {
		return false, fmt.Errorf("marshal details: %w", err)
	}

	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO alerts
			(alert_id, ts, rule_id, title, severity, entity, event_ids, details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.AlertID, a.Ts, a.RuleID, a.Title, a.Severity, a.Entity, string(eventIDs), string(details),
	)
	if err != nil {
		return false, fmt.Errorf("insert alert %s: %w", a.AlertID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected for alert %s: %w", a.AlertID, err)
	}
	return n > 0, nil
}

// RecentEvents returns the last n events ordered by ts descending, each
// decoded from its stored canonical JSON.
func (s *Store) RecentEvents(n int) ([]*schema.NormalizedEvent, error) {
	rows, err := s.db.Query(`SELECT json FROM events ORDER BY ts DESC, event_id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	defer rows.Close()

	var out []*schema.NormalizedEvent
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		ev, err := schema.ParseNormalizedEvent([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("decode stored event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// AlertRow is the structured map shape recent_alerts returns.
type AlertRow struct {
	AlertID  string         `json:"alert_id"`
	Ts       string         `json:"ts"`
	RuleID   string         `json:"rule_id"`
	Title    string         `json:"title"`
	Severity int            `json:"severity"`
	Entity   string         `json:"entity"`
	EventIDs []string       `json:"event_ids"`
	Details  map[string]any `json:"details"`
}

// RecentAlerts returns the last n alerts ordered by ts descending.
func (s *Store) RecentAlerts(n int) ([]AlertRow, error) {
	rows, err := s.db.Query(
		`SELECT alert_id, ts, rule_id, title, severity, entity, event_ids, details
			FROM alerts ORDER BY ts DESC, alert_id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query recent alerts: %w", err)
	}
	defer rows.Close()

	var out []AlertRow
	for rows.Next() {
		var row AlertRow
		var eventIDsJSON, detailsJSON string
		if err := rows.Scan(&row.AlertID, &row.Ts, &row.RuleID, &row.Title, &row.Severity,
			&row.Entity, &eventIDsJSON, &detailsJSON); err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}
		if err := json.Unmarshal([]byte(eventIDsJSON), &row.EventIDs); err != nil {
			return nil, fmt.Errorf("decode event_ids: %w", err)
		}
		if err := json.Unmarshal([]byte(detailsJSON), &row.Details); err != nil {
			return nil, fmt.Errorf("decode details: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
