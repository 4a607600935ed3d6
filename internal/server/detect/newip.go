package detect

import (
	"fmt"

	"github.com/minisoc-labs/minisoc/internal/schema"
)

// NewIPForUser is AUTH003 (sev 5): a successful login from an IP never seen
// before for that user. The first-ever IP for a user seeds the set silently.
type NewIPForUser struct {
	knownIPs map[string]map[string]struct{} // user -> set of IPs
}

// NewNewIPForUser builds an AUTH003 detector.
func NewNewIPForUser() *NewIPForUser {
	return &NewIPForUser{knownIPs: make(map[string]map[string]struct{})}
}

func (r *NewIPForUser) OnEvent(ev *schema.NormalizedEvent) *Detection {
	if ev.Event.Outcome != schema.OutcomeSuccess || ev.User == nil || ev.User.Name == "" {
		return nil
	}
	if ev.Src == nil || ev.Src.IP == "" {
		return nil
	}

	user := ev.User.Name
	ip := ev.Src.IP
	ips, ok := r.knownIPs[user]
	if !ok {
		ips = make(map[string]struct{})
		r.knownIPs[user] = ips
	}

	_, seen := ips[ip]
	wasEmpty := len(ips) == 0
	ips[ip] = struct{}{}

	if wasEmpty || seen {
		return nil
	}

	bucket := Bucket(ev.Ts)
	return &Detection{
		RuleID:   "AUTH003",
		Title:    fmt.Sprintf("New source IP %s for user %s", ip, user),
		Severity: 5,
		Entity:   "user:" + user,
		EventIDs: []string{ev.EventID.String()},
		Bucket:   bucket,
		Details: map[string]any{
			"user":   user,
			"src_ip": ip,
			"bucket": bucket,
		},
	}
}
