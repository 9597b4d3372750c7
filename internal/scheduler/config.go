// ABOUTME: Scheduler tuning: correction mode, per-mode thresholds, and fixed constants
package scheduler

import "time"

// Mode selects a tier-threshold table, trading sync accuracy for
// freedom from pitch-shift artifacts.
type Mode string

const (
	ModeSync         Mode = "sync"
	ModeQuality      Mode = "quality"
	ModeQualityLocal Mode = "quality-local"
)

// Headroom is added to every computed schedule time to guarantee the
// sink has time to prepare the buffer.
const Headroom = 200 * time.Millisecond

// GapThreshold is how far a frame's server_time may land from the
// end of the previously scheduled frame before it is treated as a
// discontinuity (Case B) rather than a contiguous frame (Case C).
const GapThreshold = 100 * time.Millisecond

// The EMA smoothing constants are fixed, not mode-dependent.
const (
	SyncErrorEMAAlpha   = 0.1
	OutputLatencyEMAAlpha = 0.01
)

// Thresholds is the tier boundary table for one correction mode. All
// magnitudes are in milliseconds.
type Thresholds struct {
	DeadbandMs       float64
	SampleUpperMs    float64 // tier 2 ceiling
	RateTierEnabled  bool
	RateUpperMs      float64 // tier 3 ceiling when rate tier enabled
	RateBreakpointMs float64 // |e| at/above this uses the larger rate step
	ResyncAboveMs    float64 // tier 4 floor
}

// ThresholdsForMode returns the tuning for mode, defaulting to sync
// mode for an unrecognized value.
func ThresholdsForMode(m Mode) Thresholds {
	switch m {
	case ModeQuality:
		return Thresholds{
			DeadbandMs:      1,
			SampleUpperMs:   35,
			RateTierEnabled: false,
			ResyncAboveMs:   35,
		}
	case ModeQualityLocal:
		return Thresholds{
			DeadbandMs:      5,
			SampleUpperMs:   600,
			RateTierEnabled: false,
			ResyncAboveMs:   600,
		}
	default:
		return Thresholds{
			DeadbandMs:       1,
			SampleUpperMs:    8,
			RateTierEnabled:  true,
			RateUpperMs:      200,
			RateBreakpointMs: 35,
			ResyncAboveMs:    200,
		}
	}
}

// Config collects everything the scheduling pass needs beyond the
// frame queue itself.
type Config struct {
	Mode       Mode
	Thresholds Thresholds

	// SyncDelayMs is a user-configurable, signed static offset added
	// to every scheduled time.
	SyncDelayMs float64

	// FilterConfidenceCapUs is the Time Filter error above which the
	// correction tier is forced to "wait" regardless of measured
	// sync error.
	FilterConfidenceCapUs float64

	// UseOutputLatencyCompensation, if false, subtracts the smoothed
	// output-latency EMA from target_sink_time inline. If true, that
	// subtraction is skipped; the sink's latency is not added to
	// time-sync measurements either (the engine's server/time handling
	// does not read it), so no latency compensation is applied.
	UseOutputLatencyCompensation bool
}

// DefaultConfig returns sync-mode tuning with no static delay and
// output-latency compensation enabled.
func DefaultConfig() Config {
	return Config{
		Mode:                         ModeSync,
		Thresholds:                   ThresholdsForMode(ModeSync),
		FilterConfidenceCapUs:        50_000,
		UseOutputLatencyCompensation: true,
	}
}
