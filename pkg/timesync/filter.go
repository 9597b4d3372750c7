// ABOUTME: Recursive offset/drift estimator fed by NTP four-timestamp exchanges
// ABOUTME: Tracks offset, drift, and a 1-sigma error bound with Kalman-style updates
package timesync

import (
	"math"
	"sync"
	"time"
)

// Config tunes the estimator. The defaults were chosen to satisfy three
// acceptance properties: a second measurement flips IsSynchronized to
// true, steady-state Error settles to tens-to-low-hundreds of
// microseconds on a well-behaved LAN, and a single outlier measurement
// cannot snap the offset.
type Config struct {
	// OutlierCapUs rejects any measurement whose reported max_error
	// exceeds this bound outright.
	OutlierCapUs float64

	// SyncConfidenceBoundUs is the Error threshold below which
	// IsSynchronized becomes true, once at least two samples have been
	// absorbed.
	SyncConfidenceBoundUs float64

	// RejectInnovationSigma rejects a measurement whose innovation
	// exceeds this many standard deviations of the prior uncertainty.
	RejectInnovationSigma float64

	// ProcessNoiseOffsetUs2PerSec inflates the offset variance per
	// second of elapsed time between measurements.
	ProcessNoiseOffsetUs2PerSec float64

	// DriftGain damps how fast the drift estimate reacts to a single
	// residual; kept small so drift converges over tens of seconds.
	DriftGain float64
}

// DefaultConfig returns the tuning used when no Config is supplied.
func DefaultConfig() Config {
	return Config{
		OutlierCapUs:                100_000,
		SyncConfidenceBoundUs:       50_000,
		RejectInnovationSigma:       6.0,
		ProcessNoiseOffsetUs2PerSec: 150.0,
		DriftGain:                   0.02,
	}
}

// Filter is a single-instance recursive estimator of (offset, drift) with
// an associated error bound, built from repeated NTP-style exchanges.
type Filter struct {
	mu sync.RWMutex

	cfg Config

	offsetUs     float64 // T_server - T_local at anchorUs
	driftPerUs   float64 // d(offset)/d(T_local), dimensionless
	errorUs      float64 // 1-sigma uncertainty of offsetUs
	anchorUs     int64   // T_local at which offsetUs/driftPerUs are valid
	sampleCount  int
	synchronized bool
}

// NewFilter creates an uninitialized Filter using the given tuning.
func NewFilter(cfg Config) *Filter {
	return &Filter{cfg: cfg}
}

// NowMicros returns the local monotonic-ish wall clock in microseconds.
// Only used for time synchronization bookkeeping (T1/T4); never for
// sample timestamps, which come from the decode front-end.
func NowMicros() int64 {
	return time.Now().UnixMicro()
}

// Observe absorbs one NTP-style measurement:
//
//	measurementUs = ((T2-T1)+(T3-T4))/2
//	maxErrorUs    = ((T4-T1)-(T3-T2))/2
//	tLocalNowUs   = T4
//
// It returns false if the measurement was rejected as an outlier or a
// non-monotonic sample; rejected measurements never change filter state.
func (f *Filter) Observe(measurementUs, maxErrorUs float64, tLocalNowUs int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if maxErrorUs < 0 {
		maxErrorUs = 0
	}
	if maxErrorUs > f.cfg.OutlierCapUs {
		return false
	}

	if f.sampleCount == 0 {
		f.offsetUs = measurementUs
		f.driftPerUs = 0
		f.errorUs = maxErrorUs
		f.anchorUs = tLocalNowUs
		f.sampleCount = 1
		return true
	}

	dt := float64(tLocalNowUs - f.anchorUs)
	if dt <= 0 {
		return false
	}

	predictedOffset := f.offsetUs + f.driftPerUs*dt

	priorVar := f.errorUs*f.errorUs + f.cfg.ProcessNoiseOffsetUs2PerSec*(dt/1e6)
	measVar := maxErrorUs * maxErrorUs

	innovation := measurementUs - predictedOffset
	sigma := math.Sqrt(priorVar)
	if sigma < 1 {
		sigma = 1
	}
	if math.Abs(innovation) > f.cfg.RejectInnovationSigma*sigma {
		return false
	}

	gain := priorVar / (priorVar + measVar)
	f.offsetUs = predictedOffset + gain*innovation

	driftCorrection := innovation / dt
	f.driftPerUs += f.cfg.DriftGain * driftCorrection

	f.errorUs = math.Sqrt((1 - gain) * priorVar)
	f.anchorUs = tLocalNowUs
	f.sampleCount++

	if !f.synchronized && f.sampleCount >= 2 && f.errorUs <= f.cfg.SyncConfidenceBoundUs {
		f.synchronized = true
	}

	return true
}

// ComputeClientTimeAt converts a server timestamp to local time, given the
// current local time explicitly. This is the pure form used by tests and
// by callers (the Scheduler) that already have a local-now value handy.
func (f *Filter) ComputeClientTimeAt(tServerUs, tLocalNowUs int64) int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.sampleCount == 0 {
		return tServerUs
	}

	predictedOffset := f.offsetUs + f.driftPerUs*float64(tLocalNowUs-f.anchorUs)
	return tServerUs - int64(predictedOffset)
}

// ComputeClientTime converts a server timestamp to local time using the
// current wall clock.
func (f *Filter) ComputeClientTime(tServerUs int64) int64 {
	return f.ComputeClientTimeAt(tServerUs, NowMicros())
}

// Error returns the current 1-sigma offset uncertainty in microseconds.
func (f *Filter) Error() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.errorUs
}

// IsSynchronized reports whether at least two measurements have been
// absorbed and the error has dropped below the confidence bound.
func (f *Filter) IsSynchronized() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.synchronized
}

// Offset and Drift expose the raw estimator state, mostly for diagnostics.
func (f *Filter) Offset() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.offsetUs
}

func (f *Filter) Drift() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.driftPerUs
}

// Reset discards all estimator state, as required on reconnect.
func (f *Filter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offsetUs = 0
	f.driftPerUs = 0
	f.errorUs = 0
	f.anchorUs = 0
	f.sampleCount = 0
	f.synchronized = false
}
