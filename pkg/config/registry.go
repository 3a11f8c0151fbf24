package config

// Persistent state keys (Registry)
const (
	KeyClockSpeed = "clock_speed"
	KeyObserver   = "observer"

	// Per-trail keys are suffixed with the trajectory name, e.g. "trail_length.Earth".
	KeyTrailLengthPrefix  = "trail_length."
	KeyTrailSamplesPrefix = "trail_samples."
)

// TrailLengthKey returns the state key of a trail's length override.
func TrailLengthKey(name string) string { return KeyTrailLengthPrefix + name }

// TrailSamplesKey returns the state key of a trail's sample count override.
func TrailSamplesKey(name string) string { return KeyTrailSamplesPrefix + name }
