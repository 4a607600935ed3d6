package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoot_RegistersAllSubcommands(t *testing.T) {
	root := NewRoot()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"server", "agent-tail-auth", "replay", "query", "alerts", "doctor"} {
		assert.True(t, names[want], "expected subcommand %q to be registered", want)
	}
}

func writeServerConfig(t *testing.T, dbPath string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	yaml := "server:\n  bind_host: 127.0.0.1\n  bind_port: 0\n  db_path: " + dbPath + "\n  jsonl_dir: " + dir + "\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func TestRunDoctor_ReportsUnreachableServerWithoutError(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "agent.yaml")
	yaml := "agent:\n  server_url: http://127.0.0.1:1\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o644))

	require.NoError(t, runDoctor(cfgPath))
}

func TestQueryAndAlertsCmds_RunAgainstEmptyStore(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "minisoc.db")
	cfgPath := writeServerConfig(t, dbPath)

	root := NewRoot()
	root.SetArgs([]string{"query", "-c", cfgPath, "-n", "5"})
	var out bytes.Buffer
	root.SetOut(&out)
	require.NoError(t, root.ExecuteContext(context.Background()))

	root = NewRoot()
	root.SetArgs([]string{"alerts", "-c", cfgPath, "-n", "5"})
	root.SetOut(&out)
	require.NoError(t, root.ExecuteContext(context.Background()))
}

func TestReplayCmd_PostsScenarioEvents(t *testing.T) {
	var received int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	dir := t.TempDir()
	scenarioPath := filepath.Join(dir, "scenario.jsonl")
	ev := map[string]any{
		"schema": "minisoc.event.v1", "event_id": "11111111-1111-1111-1111-111111111111",
		"ts": "2026-01-01T00:00:00Z", "host": map[string]any{"name": "h"},
		"event":   map[string]any{"type": "auth", "action": "ssh_login", "outcome": "failure", "severity": 4},
		"raw":     map[string]any{"line": "x", "parser": "auth.sshd"},
		"user":    map[string]any{"name": "root"},
		"src":     map[string]any{"ip": "1.2.3.4"},
		"message": "m",
	}
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(scenarioPath, append(data, '\n'), 0o644))

	agentCfgPath := filepath.Join(dir, "agent.yaml")
	require.NoError(t, os.WriteFile(agentCfgPath, []byte("agent:\n  server_url: "+srv.URL+"\n"), 0o644))

	root := NewRoot()
	root.SetArgs([]string{"replay", "-c", agentCfgPath, "-s", scenarioPath, "--delay-s", "0.001"})
	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Equal(t, 1, received)
}
