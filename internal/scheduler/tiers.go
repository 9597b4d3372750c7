// ABOUTME: Correction-tier selection for contiguous (Case C) scheduling decisions
package scheduler

import "math"

type tierKind int

const (
	tierWait tierKind = iota
	tierDeadband
	tierSamples
	tierRate
	tierResync
)

type tierDecision struct {
	kind tierKind
	rate float64
}

// pickTier chooses a correction tier from the smoothed sync error e
// (milliseconds, signed: positive means the renderer is behind the
// drift-corrected ideal) and the Time Filter's current error bound.
func pickTier(e, filterErrorUs float64, cfg Config) tierDecision {
	if filterErrorUs > cfg.FilterConfidenceCapUs {
		return tierDecision{kind: tierWait}
	}

	absE := math.Abs(e)
	th := cfg.Thresholds

	if absE >= th.ResyncAboveMs {
		return tierDecision{kind: tierResync}
	}

	if absE < th.DeadbandMs {
		return tierDecision{kind: tierDeadband}
	}

	if th.RateTierEnabled && absE >= th.SampleUpperMs {
		delta := 0.01
		if absE >= th.RateBreakpointMs {
			delta = 0.02
		}
		rate := 1 + delta
		if e < 0 {
			rate = 1 - delta
		}
		return tierDecision{kind: tierRate, rate: rate}
	}

	return tierDecision{kind: tierSamples}
}
