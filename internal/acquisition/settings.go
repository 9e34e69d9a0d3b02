package acquisition

import "time"

// Settings tunes the acquisition thresholds.
type Settings struct {
	// DesiredAccuracy is the horizontal accuracy (meters) at or below which a
	// fix is good enough and the cycle stops.
	DesiredAccuracy float64

	// Timeout is the deadline for a whole cycle.
	Timeout time.Duration

	// StalenessThreshold is the maximum age of a reading still considered.
	StalenessThreshold time.Duration

	// StuckTimeout ends a cycle early when readings stop improving while the
	// device stays within StuckDistance meters of the best fix.
	StuckTimeout  time.Duration
	StuckDistance float64

	// ResolveTimeout bounds a single reverse geocoding request.
	ResolveTimeout time.Duration
}

// DefaultSettings returns the stock thresholds.
func DefaultSettings() Settings {
	return Settings{
		DesiredAccuracy:    10,
		Timeout:            10 * time.Second,
		StalenessThreshold: 5 * time.Second,
		StuckTimeout:       10 * time.Second,
		StuckDistance:      1,
		ResolveTimeout:     15 * time.Second,
	}
}
