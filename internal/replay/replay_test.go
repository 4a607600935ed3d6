package replay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minisoc-labs/minisoc/internal/agent/transport"
)

func writeScenario(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.jsonl")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRun_PostsEachLineAndSkipsCommentsAndBlanks(t *testing.T) {
	var received int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ev := `{"schema":"minisoc.event.v1","event_id":"11111111-1111-1111-1111-111111111111","ts":"2026-01-01T00:00:00Z","host":{"name":"h"},"event":{"type":"auth","action":"ssh_login","outcome":"failure","severity":4},"message":"m","raw":{"line":"x","parser":"auth.sshd"},"user":{"name":"root"},"src":{"ip":"1.2.3.4"}}`
	path := writeScenario(t, "# comment", "", ev, ev)

	client := transport.New(srv.URL)
	res, err := Run(context.Background(), client, path, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 2, received)
}

func TestRun_CountsFailedOnServerReject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	ev := `{"event_id":"11111111-1111-1111-1111-111111111111","ts":"2026-01-01T00:00:00Z","host":{"name":"h"},"event":{"type":"auth","action":"ssh_login","outcome":"failure","severity":4},"raw":{"line":"x","parser":"auth.sshd"},"user":{"name":"root"},"src":{"ip":"1.2.3.4"}}`
	path := writeScenario(t, ev)

	client := transport.New(srv.URL)
	res, err := Run(context.Background(), client, path, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Sent)
	assert.Equal(t, 1, res.Failed)
}

func TestRun_MissingFileReturnsError(t *testing.T) {
	client := transport.New("http://example.invalid")
	_, err := Run(context.Background(), client, "/nonexistent/path.jsonl", time.Millisecond)
	require.Error(t, err)
}
