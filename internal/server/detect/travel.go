package detect

import (
	"fmt"
	"math"
	"time"

	"github.com/minisoc-labs/minisoc/internal/schema"
)

// DefaultMaxSpeedKMH is AUTH005's implied-speed trigger.
const DefaultMaxSpeedKMH = 900.0

// earthRadiusKM is the great-circle radius used by the haversine formula.
const earthRadiusKM = 6371.0

// minElapsedHours lower-bounds elapsed time to avoid a divide-by-zero blowup
// when two successful logins land in the same second.
const minElapsedHours = 1e-6

type lastLogin struct {
	ts      time.Time
	lat     float64
	lon     float64
	eventID string
}

// ImpossibleTravel is AUTH005 (sev 9): two successful logins for the same
// user, geolocated, whose implied travel speed exceeds maxSpeedKMH.
type ImpossibleTravel struct {
	maxSpeedKMH float64
	last        map[string]lastLogin
}

// NewImpossibleTravel builds an AUTH005 detector.
func NewImpossibleTravel(maxSpeedKMH float64) *ImpossibleTravel {
	if maxSpeedKMH <= 0 {
		maxSpeedKMH = DefaultMaxSpeedKMH
	}
	return &ImpossibleTravel{maxSpeedKMH: maxSpeedKMH, last: make(map[string]lastLogin)}
}

func (r *ImpossibleTravel) OnEvent(ev *schema.NormalizedEvent) *Detection {
	if ev.Event.Outcome != schema.OutcomeSuccess || ev.User == nil || ev.User.Name == "" {
		return nil
	}
	if ev.Src == nil || ev.Src.Geo == nil {
		return nil
	}
	lat, okLat := ev.Src.Geo["lat"]
	lon, okLon := ev.Src.Geo["lon"]
	if !okLat || !okLon {
		return nil
	}
	ts, ok := parseTs(ev.Ts)
	if !ok {
		return nil
	}

	user := ev.User.Name
	cur := lastLogin{ts: ts, lat: lat, lon: lon, eventID: ev.EventID.String()}
	prev, hadPrev := r.last[user]
	r.last[user] = cur
	if !hadPrev {
		return nil
	}

	km := haversineKM(prev.lat, prev.lon, lat, lon)
	hours := ts.Sub(prev.ts).Hours()
	if hours < minElapsedHours {
		hours = minElapsedHours
	}
	speed := km / hours
	if speed <= r.maxSpeedKMH {
		return nil
	}

	bucket := Bucket(ev.Ts)
	return &Detection{
		RuleID:   "AUTH005",
		Title:    fmt.Sprintf("Impossible travel for %s: %.0f km/h", user, speed),
		Severity: 9,
		Entity:   "user:" + user,
		EventIDs: []string{prev.eventID, cur.eventID},
		Bucket:   bucket,
		Details: map[string]any{
			"user":      user,
			"km":        km,
			"hours":     hours,
			"speed_kmh": speed,
			"max_kmh":   r.maxSpeedKMH,
			"bucket":    bucket,
		},
	}
}

func haversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKM * c
}
