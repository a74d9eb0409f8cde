// Package flow implements the per-user conversation engine: movement
// reporting, SFT attendance, medical status batches, parade state
// generation, and the admin panels that drive them.
package flow

import (
	"log/slog"
	"time"
)

// Default flow configuration values
const (
	// DefaultSlotInterval is the spacing of SFT start/end time choices.
	DefaultSlotInterval = 15 * time.Minute
	// DefaultMinPerActivity is the smallest SFT group an activity may run with.
	DefaultMinPerActivity = 2
	// DefaultSessionTTL is how long an idle conversation survives.
	DefaultSessionTTL = 30 * time.Minute
	// DefaultRateLimitMax is the number of entry-point hits allowed per window.
	DefaultRateLimitMax = 5
	// DefaultRateLimitWindow is the fixed rate-limit window.
	DefaultRateLimitWindow = 30 * time.Second
	// DefaultTimezone is the unit's local timezone.
	DefaultTimezone = "Asia/Singapore"
)

// Activity is one entry in the SFT activity catalog.
type Activity struct {
	Name     string
	Location string
}

// Config carries the flow engine's fixed catalogs and tunables.
type Config struct {
	Locations       []string
	Activities      []Activity
	SlotInterval    time.Duration
	MinPerActivity  int
	SessionTTL      time.Duration
	RateLimitMax    int
	RateLimitWindow time.Duration
	Timezone        *time.Location
}

// DefaultConfig returns the standing unit configuration.
func DefaultConfig() Config {
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		slog.Error("Failed to load timezone, falling back to fixed offset", "error", err, "tz", DefaultTimezone)
		loc = time.FixedZone("SGT", 8*3600)
	}
	return Config{
		Locations: []string{
			"DHA",
			"WINGLINE",
			"THROW TRASH",
			"OCS HQ",
			"STADIUM",
			"MEDICAL CENTRE",
			"AUDITORIUM",
			"EXAM HALL",
			"E-MART",
			"LIBRARY",
		},
		Activities: []Activity{
			{Name: "Gym", Location: "Wingline"},
			{Name: "Running", Location: "Yellow Cluster Parade Square"},
			{Name: "Running", Location: "DIS Wing Approved Route"},
			{Name: "Frisbee", Location: "Basketball court"},
			{Name: "Basketball", Location: "Basketball court"},
			{Name: "Other ball", Location: "Yellow Cluster Parade Square"},
			{Name: "Badminton", Location: "Basketball court"},
		},
		SlotInterval:    DefaultSlotInterval,
		MinPerActivity:  DefaultMinPerActivity,
		SessionTTL:      DefaultSessionTTL,
		RateLimitMax:    DefaultRateLimitMax,
		RateLimitWindow: DefaultRateLimitWindow,
		Timezone:        loc,
	}
}
