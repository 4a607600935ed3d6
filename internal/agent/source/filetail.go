package source

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/spf13/afero"
)

// Mode selects whether a tailer follows forever or reads once and stops.
type Mode string

const (
	ModeLive   Mode = "live"
	ModeReplay Mode = "replay"
)

// FileTail rotation-safely tails a log file line by line.
type FileTail struct {
	fs        afero.Fs
	path      string
	mode      Mode
	fromStart bool
	sleep     time.Duration
	clock     clock.Clock
	identity  IdentityFunc

	file   afero.File
	reader *bufio.Reader
	inode  uint64
}

// NewFileTail constructs a tailer for path. fromStart only matters in live
// mode (replay always reads from the beginning).
func NewFileTail(fs afero.Fs, path string, mode Mode, fromStart bool) *FileTail {
	return &FileTail{
		fs:        fs,
		path:      path,
		mode:      mode,
		fromStart: fromStart,
		sleep:     200 * time.Millisecond,
		clock:     clock.New(),
		identity:  inodeOf,
	}
}

// WithClock overrides the sleep clock, for deterministic tests.
func (t *FileTail) WithClock(c clock.Clock) *FileTail {
	t.clock = c
	return t
}

// WithIdentity overrides how rotation is detected, for filesystems (like
// afero's in-memory one) with no real inode concept.
func (t *FileTail) WithIdentity(f IdentityFunc) *FileTail {
	t.identity = f
	return t
}

func (t *FileTail) open(seekEnd bool) error {
	f, err := t.fs.Open(t.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", t.path, err)
	}
	if seekEnd {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			_ = f.Close()
			return fmt.Errorf("seek end %s: %w", t.path, err)
		}
	}
	t.file = f
	t.reader = bufio.NewReader(f)
	t.inode = t.identity(t.fs, t.path)
	return nil
}

// Lines streams lines (trailing newline stripped) to out until stop is
// closed (live mode) or EOF (replay mode), then closes out.
func (t *FileTail) Lines(stop <-chan struct{}) (<-chan string, error) {
	live := t.mode == ModeLive
	if err := t.open(live && !t.fromStart); err != nil {
		return nil, err
	}

	out := make(chan string, 64)
	go func() {
		defer close(out)
		defer func() { _ = t.file.Close() }()

		// pending holds an unterminated tail read at EOF; bufio has already
		// consumed those bytes, so they must be carried to the next read.
		var pending string
		for {
			select {
			case <-stop:
				return
			default:
			}

			line, err := t.reader.ReadString('\n')
			if err != nil {
				pending += line
				if !live {
					// replay: flush any trailing unterminated line, then stop
					if pending != "" {
						select {
						case out <- trimNewline(pending):
						case <-stop:
							return
						}
					}
					return
				}

				t.sleepTick(stop)
				if t.rotateIfNeeded() {
					// a fragment from the rotated-away file will never complete
					pending = ""
				}
				continue
			}

			select {
			case out <- trimNewline(pending + line):
			case <-stop:
				return
			}
			pending = ""
		}
	}()

	return out, nil
}

func (t *FileTail) sleepTick(stop <-chan struct{}) {
	timer := t.clock.Timer(t.sleep)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-stop:
	}
}

// rotateIfNeeded detects log rotation by comparing the path's current inode
// to the open handle's; on change it closes and reopens, seeking to EOF only
// in live mode (a fresh file in replay mode should be read from the start).
// Reports whether a reopen happened.
func (t *FileTail) rotateIfNeeded() bool {
	current := t.identity(t.fs, t.path)
	if current == 0 || current == t.inode {
		return false
	}
	_ = t.file.Close()
	seekEnd := t.mode == ModeLive
	if err := t.open(seekEnd); err != nil {
		// path briefly missing mid-rotation; try again next tick
		return false
	}
	return true
}

func trimNewline(line string) string {
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
	}
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line
}
