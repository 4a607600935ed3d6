// Package burst implements the agent-local suspicious-activity logger, an
// on-host alarm that keeps working through server outages.
package burst

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/spf13/afero"

	"github.com/minisoc-labs/minisoc/internal/schema"
)

// Default window, threshold, and cooldown for burst accounting.
const (
	DefaultWindowS   = 60
	DefaultThreshold = 5
	DefaultCooldownS = 60
)

type ipState struct {
	firstSeen      time.Time
	lastSeen       time.Time
	lastEmit       time.Time
	totalFailures  int
	windowFailures int
	windowResetAt  time.Time
	users          map[string]struct{}
	ports          map[int]struct{}
}

// Tracker accumulates per-source-IP failure bursts and appends a JSONL
// suspicious record when a window crosses threshold, gated by a cooldown.
type Tracker struct {
	fs        afero.Fs
	path      string
	windowS   int
	threshold int
	cooldownS int
	clock     clock.Clock

	mu    sync.Mutex
	state map[string]*ipState
}

// NewTracker opens (creating if needed) the suspicious JSONL file at path.
func NewTracker(fs afero.Fs, path string, windowS, threshold, cooldownS int) (*Tracker, error) {
	if windowS < 1 {
		windowS = 1
	}
	if threshold < 1 {
		threshold = 1
	}
	if cooldownS < 0 {
		cooldownS = 0
	}

	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir for suspicious log: %w", err)
	}
	f, err := fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open suspicious log: %w", err)
	}
	_ = f.Close()

	return &Tracker{
		fs:        fs,
		path:      path,
		windowS:   windowS,
		threshold: threshold,
		cooldownS: cooldownS,
		clock:     clock.New(),
		state:     make(map[string]*ipState),
	}, nil
}

// WithClock overrides the tracker's notion of "now", for deterministic tests.
func (t *Tracker) WithClock(c clock.Clock) *Tracker {
	t.clock = c
	return t
}

// ObserveFailure updates per-IP window state for a failure event and, once
// threshold and cooldown conditions are met, appends a suspicious record.
func (t *Tracker) ObserveFailure(ev *schema.NormalizedEvent) error {
	var ip string
	if ev.Src != nil {
		ip = ev.Src.IP
	}
	if ip == "" {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	st, ok := t.state[ip]
	if !ok {
		st = &ipState{
			firstSeen:     now,
			windowResetAt: now,
			users:         make(map[string]struct{}),
			ports:         make(map[int]struct{}),
		}
		t.state[ip] = st
	}

	st.lastSeen = now
	st.totalFailures++

	if now.Sub(st.windowResetAt) > time.Duration(t.windowS)*time.Second {
		st.windowResetAt = now
		st.windowFailures = 0
		st.users = make(map[string]struct{})
		st.ports = make(map[int]struct{})
	}

	st.windowFailures++
	if ev.User != nil && ev.User.Name != "" {
		st.users[ev.User.Name] = struct{}{}
	}
	if ev.Src.Port != 0 {
		st.ports[ev.Src.Port] = struct{}{}
	}

	if st.windowFailures < t.threshold {
		return nil
	}
	if t.cooldownS > 0 && now.Sub(st.lastEmit) < time.Duration(t.cooldownS)*time.Second {
		return nil
	}

	st.lastEmit = now
	return t.emit(ip, st, ev, now)
}

func (t *Tracker) emit(ip string, st *ipState, ev *schema.NormalizedEvent, now time.Time) error {
	rec := schema.SuspiciousRecord{
		Schema:    schema.SuspiciousSchemaID,
		Ts:        now.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z"),
		Reason:    fmt.Sprintf("local_ssh_bruteforce: >= %d failures in %ds", t.threshold, t.windowS),
		Src:       schema.SuspiciousSrc{IP: ip, Ports: sortedInts(st.ports)},
		Usernames: sortedStrings(st.users),
		Counts: schema.SuspiciousCounts{
			WindowFailures: st.windowFailures,
			TotalFailures:  st.totalFailures,
			WindowS:        t.windowS,
			Threshold:      t.threshold,
			CooldownS:      t.cooldownS,
		},
		Host:   ev.Host,
		Event:  ev.Event,
		Source: ev.Source,
		Raw:    ev.Raw,
	}

	data, err := rec.MarshalCanonical()
	if err != nil {
		return fmt.Errorf("marshal suspicious record: %w", err)
	}

	f, err := t.fs.OpenFile(t.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open suspicious log for append: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write suspicious record: %w", err)
	}
	return nil
}

func sortedStrings(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedInts(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
