package source

import (
	"bufio"
	"bytes"
	"container/list"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
)

// dedupeCapacity bounds the sliding window used to drop lines seen again
// across overlapping --after-cursor windows.
const dedupeCapacity = 500

var cursorRe = regexp.MustCompile(`^-- cursor:\s*(.+)\s*$`)

// Runner executes journalctl and returns its stdout lines plus any trailing
// "-- cursor: ..." marker. Overridable in tests to avoid shelling out.
type Runner func(args []string) (lines []string, cursor string, err error)

// DefaultRunner shells out to the real journalctl binary.
func DefaultRunner(args []string) ([]string, string, error) {
	cmd := exec.Command("journalctl", args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			return nil, "", fmt.Errorf("run journalctl: %w", err)
		}
	}

	var lines []string
	var cursor string
	scanner := bufio.NewScanner(&stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		ln := scanner.Text()
		if m := cursorRe.FindStringSubmatch(ln); m != nil {
			cursor = strings.TrimSpace(m[1])
			continue
		}
		if strings.TrimSpace(ln) != "" {
			lines = append(lines, ln)
		}
	}
	return lines, cursor, nil
}

// sshdPrefixRe recognizes a line that already carries a syslog "tag[pid]:"
// prefix, e.g. "sshd[1234]: Failed password for ...".
var sshdPrefixRe = regexp.MustCompile(`^\S+\[\d+\]:`)

// JournalPoll polls the systemd journal for the ssh/sshd units via cursor
// pagination instead of `journalctl -f`, whose piped stdout stalls under
// output buffering.
type JournalPoll struct {
	mode   Mode
	poll   time.Duration
	run    Runner
	clock  clock.Clock
	cursor string

	seen    map[string]struct{}
	seenLRU *list.List
}

// NewJournalPoll constructs a poller. In live mode, the first tick
// establishes the starting cursor without consuming entries.
func NewJournalPoll(mode Mode) *JournalPoll {
	return &JournalPoll{
		mode:    mode,
		poll:    350 * time.Millisecond,
		run:     DefaultRunner,
		clock:   clock.New(),
		seen:    make(map[string]struct{}, dedupeCapacity),
		seenLRU: list.New(),
	}
}

// WithClock overrides the sleep clock, for deterministic tests.
func (j *JournalPoll) WithClock(c clock.Clock) *JournalPoll {
	j.clock = c
	return j
}

// WithRunner overrides how journalctl is invoked, for tests.
func (j *JournalPoll) WithRunner(r Runner) *JournalPoll {
	j.run = r
	return j
}

func baseArgs() []string {
	return []string{"-o", "short", "-u", "ssh", "-u", "sshd", "--no-pager", "--show-cursor"}
}

func (j *JournalPoll) establishCursor() {
	_, cursor, err := j.run(append(baseArgs(), "-n", "0"))
	if err == nil && cursor != "" {
		j.cursor = cursor
		return
	}
	// fallback: take the cursor from the last entry, discarding it
	_, cursor, err = j.run(append(baseArgs(), "-n", "1"))
	if err == nil {
		j.cursor = cursor
	}
}

func (j *JournalPoll) dedupe(line string) bool {
	if _, ok := j.seen[line]; ok {
		return true
	}
	j.seen[line] = struct{}{}
	j.seenLRU.PushBack(line)
	if j.seenLRU.Len() > dedupeCapacity {
		oldest := j.seenLRU.Front()
		j.seenLRU.Remove(oldest)
		delete(j.seen, oldest.Value.(string))
	}
	return false
}

// normalize rewraps journal records that lack a syslog "tag[pid]:" prefix
// with a synthetic "sshd[0]:" one, so the downstream regex parser (which
// expects classic syslog-formatted lines) sees the same shape regardless of
// source.
func normalize(line string) string {
	if sshdPrefixRe.MatchString(strings.TrimSpace(line)) {
		return line
	}
	return "sshd[0]: " + line
}

// Lines streams normalized journal lines to out until stop is closed.
func (j *JournalPoll) Lines(stop <-chan struct{}) (<-chan string, error) {
	out := make(chan string, 64)

	live := j.mode == ModeLive
	if live {
		j.establishCursor()
	}

	go func() {
		defer close(out)

		for {
			select {
			case <-stop:
				return
			default:
			}

			args := baseArgs()
			if j.cursor != "" {
				args = append(args, "--after-cursor", j.cursor)
			}

			lines, cursor, err := j.run(args)
			if err == nil && cursor != "" {
				j.cursor = cursor
			}

			for _, ln := range lines {
				if j.dedupe(ln) {
					continue
				}
				select {
				case out <- normalize(ln):
				case <-stop:
					return
				}
			}

			if !live {
				return
			}

			timer := j.clock.Timer(j.poll)
			select {
			case <-timer.C:
			case <-stop:
				timer.Stop()
				return
			}
		}
	}()

	return out, nil
}
