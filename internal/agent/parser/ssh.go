// Package parser turns raw syslog/journal lines into normalized events.
package parser

import (
	"regexp"
	"strconv"

	"github.com/minisoc-labs/minisoc/internal/schema"
)

var (
	sshFail = regexp.MustCompile(`Failed password for (?P<user>\S+) from (?P<ip>\S+) port (?P<port>\d+)`)
	sshOK   = regexp.MustCompile(`Accepted \S+ for (?P<user>\S+) from (?P<ip>\S+) port (?P<port>\d+)`)
)

// ParserTag identifies this parser in NormalizedEvent.Raw.Parser.
const ParserTag = "auth.sshd"

// ParseSSHDLine matches a single syslog-formatted sshd line against the
// failure and success patterns, in that order. Non-matching
// lines are reported via ok=false and silently dropped by callers.
func ParseSSHDLine(line, host, hostIP, sourcePath string) (ev *schema.NormalizedEvent, ok bool) {
	var m []string
	var outcome schema.Outcome
	var severity int

	if m = sshFail.FindStringSubmatch(line); m != nil {
		outcome = schema.OutcomeFailure
		severity = 4
	} else if m = sshOK.FindStringSubmatch(line); m != nil {
		outcome = schema.OutcomeSuccess
		severity = 3
	} else {
		return nil, false
	}

	names := sshFail.SubexpNames()
	if outcome == schema.OutcomeSuccess {
		names = sshOK.SubexpNames()
	}

	var user, ip, portStr string
	for i, name := range names {
		switch name {
		case "user":
			user = m[i]
		case "ip":
			ip = m[i]
		case "port":
			portStr = m[i]
		}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, false
	}

	message := "SSH login " + string(outcome) + " for user=" + user + " from " + ip

	return &schema.NormalizedEvent{
		Schema:  schema.EventSchemaID,
		EventID: schema.NewEventID(),
		Ts:      schema.UTCNowRFC3339(),
		Host:    schema.Host{Name: host, IP: hostIP},
		Source:  schema.Source{Kind: "auth", Path: sourcePath},
		Event:   schema.EventCore{Type: "auth", Action: "ssh_login", Outcome: outcome, Severity: severity},
		Message: message,
		Raw:     schema.Raw{Line: line, Parser: ParserTag},
		User:    &schema.User{Name: user},
		Src:     &schema.Endpoint{IP: ip, Port: port},
		Tags:    []string{"ssh", "auth", string(outcome)},
	}, true
}
