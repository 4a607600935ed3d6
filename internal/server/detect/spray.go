package detect

import (
	"fmt"
	"sort"

	"github.com/minisoc-labs/minisoc/internal/schema"
)

// DefaultSprayMinUsers and DefaultSprayMaxPerUser are AUTH002's defaults.
const (
	DefaultSprayMinUsers   = 4
	DefaultSprayMaxPerUser = 2
)

type sprayKey struct {
	ip     string
	bucket string
}

// PasswordSpray is AUTH002 (sev 8): within one (src_ip, bucket), many
// distinct users each tried only a couple of times: spray, not brute force.
type PasswordSpray struct {
	minUsers   int
	maxPerUser int
	byKey      map[sprayKey]map[string][]string // user -> event IDs
}

// NewPasswordSpray builds an AUTH002 detector.
func NewPasswordSpray(minUsers, maxPerUser int) *PasswordSpray {
	if minUsers < 1 {
		minUsers = DefaultSprayMinUsers
	}
	if maxPerUser < 1 {
		maxPerUser = DefaultSprayMaxPerUser
	}
	return &PasswordSpray{minUsers: minUsers, maxPerUser: maxPerUser, byKey: make(map[sprayKey]map[string][]string)}
}

func (r *PasswordSpray) OnEvent(ev *schema.NormalizedEvent) *Detection {
	if ev.Event.Outcome != schema.OutcomeFailure || ev.Src == nil || ev.Src.IP == "" {
		return nil
	}
	if ev.User == nil || ev.User.Name == "" {
		return nil
	}

	key := sprayKey{ip: ev.Src.IP, bucket: Bucket(ev.Ts)}
	users, ok := r.byKey[key]
	if !ok {
		users = make(map[string][]string)
		r.byKey[key] = users
	}
	users[ev.User.Name] = append(users[ev.User.Name], ev.EventID.String())

	if len(users) < r.minUsers {
		return nil
	}
	for _, ids := range users {
		if len(ids) > r.maxPerUser {
			return nil
		}
	}

	names := make([]string, 0, len(users))
	for name := range users {
		names = append(names, name)
	}
	sort.Strings(names)

	eventIDs := make([]string, 0, len(names))
	for _, name := range names {
		ids := users[name]
		eventIDs = append(eventIDs, ids[len(ids)-1])
	}

	return &Detection{
		RuleID:   "AUTH002",
		Title:    fmt.Sprintf("Password spray: %d distinct users from %s", len(users), key.ip),
		Severity: 8,
		Entity:   "src_ip:" + key.ip,
		EventIDs: eventIDs,
		Bucket:   key.bucket,
		Details: map[string]any{
			"src_ip":         key.ip,
			"bucket":         key.bucket,
			"distinct_users": len(users),
			"max_per_user":   r.maxPerUser,
		},
	}
}
