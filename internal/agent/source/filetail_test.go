package source

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileTail_Replay_ReadsFromStartAndStops(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/auth.log", []byte("one\ntwo\nthree\n"), 0o644))

	tail := NewFileTail(fs, "/auth.log", ModeReplay, true)
	stop := make(chan struct{})
	defer close(stop)

	lines, err := tail.Lines(stop)
	require.NoError(t, err)

	var got []string
	for l := range lines {
		got = append(got, l)
	}
	assert.Equal(t, []string{"one", "two", "three"}, got)
}

func TestFileTail_Replay_FlushesUnterminatedTail(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/auth.log", []byte("one\npartial"), 0o644))

	tail := NewFileTail(fs, "/auth.log", ModeReplay, true)
	stop := make(chan struct{})
	defer close(stop)

	lines, err := tail.Lines(stop)
	require.NoError(t, err)

	var got []string
	for l := range lines {
		got = append(got, l)
	}
	assert.Equal(t, []string{"one", "partial"}, got)
}

func TestFileTail_Live_FromEnd_SeesOnlyNewLines(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/auth.log", []byte("old-line\n"), 0o644))

	tail := NewFileTail(fs, "/auth.log", ModeLive, false)
	tail.sleep = 5 * time.Millisecond
	stop := make(chan struct{})
	defer close(stop)

	lines, err := tail.Lines(stop)
	require.NoError(t, err)

	// append a new line after the tailer has seeked to EOF
	appendLine(t, fs, "/auth.log", "new-line\n")

	select {
	case l := <-lines:
		assert.Equal(t, "new-line", l)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tailed line")
	}
}

func TestFileTail_Live_CompletesPartialLineAcrossWrites(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/auth.log", []byte("one\npar"), 0o644))

	tail := NewFileTail(fs, "/auth.log", ModeLive, true)
	tail.sleep = 5 * time.Millisecond
	stop := make(chan struct{})
	defer close(stop)

	lines, err := tail.Lines(stop)
	require.NoError(t, err)
	assert.Equal(t, "one", <-lines)

	// the unterminated "par" must be held, not emitted or dropped
	appendLine(t, fs, "/auth.log", "tial\n")

	select {
	case l := <-lines:
		assert.Equal(t, "partial", l)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for completed line")
	}
}

func TestFileTail_Rotation_ReopensOnInodeChange(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/auth.log", []byte("pre-rotate\n"), 0o644))

	// fake identity: bumped whenever the test "rotates" the file
	var gen atomic.Uint64
	gen.Store(1)
	identity := func(afero.Fs, string) uint64 { return gen.Load() }

	tail := NewFileTail(fs, "/auth.log", ModeLive, true).WithIdentity(identity)
	tail.sleep = 5 * time.Millisecond
	stop := make(chan struct{})
	defer close(stop)

	lines, err := tail.Lines(stop)
	require.NoError(t, err)
	assert.Equal(t, "pre-rotate", <-lines)

	// simulate log rotation: recreate the path, bump the identity; in live
	// mode the tailer reopens at the new file's EOF
	require.NoError(t, fs.Remove("/auth.log"))
	require.NoError(t, afero.WriteFile(fs, "/auth.log", nil, 0o644))
	gen.Store(2)

	// give the tailer a few ticks to notice the rotation and reopen
	time.Sleep(200 * time.Millisecond)

	appendLine(t, fs, "/auth.log", "post-rotate\n")

	select {
	case l := <-lines:
		assert.Equal(t, "post-rotate", l)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for post-rotation line")
	}
}

func appendLine(t *testing.T, fs afero.Fs, path, line string) {
	t.Helper()
	existing, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, path, append(existing, []byte(line)...), 0o644))
}
