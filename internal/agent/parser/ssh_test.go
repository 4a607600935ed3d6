package parser

import (
	"testing"

	"github.com/minisoc-labs/minisoc/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSSHDLine_Failure(t *testing.T) {
	line := "sshd[1234]: Failed password for root from 203.0.113.10 port 51000 ssh2"
	ev, ok := ParseSSHDLine(line, "lab-host", "10.0.0.1", "/var/log/auth.log")
	require.True(t, ok)
	assert.Equal(t, schema.OutcomeFailure, ev.Event.Outcome)
	assert.Equal(t, "root", ev.User.Name)
	assert.Equal(t, "203.0.113.10", ev.Src.IP)
	assert.Equal(t, 51000, ev.Src.Port)
	assert.Equal(t, 4, ev.Event.Severity)
	assert.Equal(t, []string{"ssh", "auth", "failure"}, ev.Tags)
	assert.Empty(t, ev.Validate())
}

func TestParseSSHDLine_Success(t *testing.T) {
	line := "sshd[5]: Accepted publickey for pi from 10.0.0.5 port 22 ssh2: RSA ..."
	ev, ok := ParseSSHDLine(line, "lab-host", "", "/var/log/auth.log")
	require.True(t, ok)
	assert.Equal(t, schema.OutcomeSuccess, ev.Event.Outcome)
	assert.Equal(t, "pi", ev.User.Name)
	assert.Equal(t, "10.0.0.5", ev.Src.IP)
	assert.Equal(t, 3, ev.Event.Severity)
}

func TestParseSSHDLine_NonMatchingLineDropped(t *testing.T) {
	_, ok := ParseSSHDLine("sshd[5]: pam_unix(sshd:session): session opened", "h", "", "/p")
	assert.False(t, ok)
}

func TestParseSSHDLine_UsesWallClockNotSyslogTime(t *testing.T) {
	line := "Jan 12 03:15:00 lab-host sshd[5]: Failed password for pi from 10.0.0.5 port 22"
	ev, ok := ParseSSHDLine(line, "lab-host", "", "/var/log/auth.log")
	require.True(t, ok)
	assert.NotContains(t, ev.Ts, "03:15:00")
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`, ev.Ts)
}

func TestParseSSHDLine_NeedsExplicitPort(t *testing.T) {
	_, ok := ParseSSHDLine("Failed password for pi from 10.0.0.5 port abc", "h", "", "/p")
	assert.False(t, ok)
}
