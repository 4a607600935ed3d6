// Package source decides and implements where the agent reads auth log
// lines from: a tailed file, or a polled systemd journal.
package source

import (
	"os"
	"os/exec"

	"github.com/spf13/afero"
)

// Kind is the chosen line-iterator backend.
type Kind string

const (
	KindFile    Kind = "file"
	KindJournal Kind = "journal"
)

// Preference is the caller's requested source kind, or "auto" to probe.
type Preference string

const (
	PreferAuto    Preference = "auto"
	PreferFile    Preference = "file"
	PreferJournal Preference = "journal"
)

// DefaultAuthPathCandidates are probed in order when no path is requested.
var DefaultAuthPathCandidates = []string{
	"/var/log/auth.log", // Debian/Ubuntu/Raspberry Pi OS
	"/var/log/secure",   // RHEL/CentOS/Fedora
	"/var/log/messages", // some syslog setups
}

// Decision carries the chosen backend, why it was chosen, and (for file) the
// path to read.
type Decision struct {
	Kind   Kind
	Reason string
	Path   string
}

// JournalProbe reports whether the journal CLI is usable; overridable in tests.
type JournalProbe func() bool

// DefaultJournalProbe shells out to journalctl with a zero-entry query, the
// same capability probe the cursor-based poller uses to establish its
// starting cursor, so "available" here means "usable there" too.
func DefaultJournalProbe() bool {
	cmd := exec.Command("journalctl", "-n", "0", "--show-cursor", "--no-pager")
	return cmd.Run() == nil
}

func isReadableFile(fs afero.Fs, path string) bool {
	if path == "" {
		return false
	}
	info, err := fs.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	f, err := fs.Open(path)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}

// Pick decides the auth-log backend: prefer=file/journal are
// strict (no cross-kind fallback); prefer=auto tries a readable file first,
// then the journal CLI, and otherwise still returns a "file" decision on the
// best-guess candidate so the caller can report the failure itself.
func Pick(fs afero.Fs, requestedPath string, prefer Preference, journalAvailable JournalProbe) Decision {
	if journalAvailable == nil {
		journalAvailable = DefaultJournalProbe
	}

	fileTarget := requestedPath
	if fileTarget == "" {
		for _, c := range DefaultAuthPathCandidates {
			if isReadableFile(fs, c) {
				fileTarget = c
				break
			}
		}
	}

	switch prefer {
	case PreferFile:
		if isReadableFile(fs, fileTarget) {
			return Decision{KindFile, "prefer=file and path readable", fileTarget}
		}
		return Decision{KindFile, "prefer=file but no readable auth log path found", fileTarget}

	case PreferJournal:
		if journalAvailable() {
			return Decision{KindJournal, "prefer=journal and journalctl available", ""}
		}
		return Decision{KindJournal, "prefer=journal but journalctl not available", ""}

	default: // auto
		if isReadableFile(fs, fileTarget) {
			return Decision{KindFile, "auto picked readable auth log file", fileTarget}
		}
		if journalAvailable() {
			return Decision{KindJournal, "auto fell back to journald (no readable auth log file)", ""}
		}
		if fileTarget == "" {
			fileTarget = DefaultAuthPathCandidates[0]
		}
		return Decision{KindFile, "auto failed: no readable auth log file and journalctl unavailable", fileTarget}
	}
}

// OSFs is the production filesystem used outside of tests.
var OSFs = afero.NewOsFs()

// Readable reports whether path can actually be opened and read one byte
// from; the doctor command uses it for per-candidate diagnostics.
func Readable(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	_, err = f.Read(make([]byte, 1))
	return err == nil, nil
}
