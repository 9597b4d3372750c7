// ABOUTME: Orders, drift-corrects, and dispatches decoded frames to the audio sink
// ABOUTME: The scheduling pass is the heart of the synchronized playback pipeline
package scheduler

import (
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sendspin/sendspin-go/pkg/audio"
	"github.com/sendspin/sendspin-go/pkg/audiosink"
	"github.com/sendspin/sendspin-go/pkg/timesync"
)

// Filter is the subset of *timesync.Filter the scheduler consults.
type Filter interface {
	IsSynchronized() bool
	Error() float64
	ComputeClientTimeAt(tServerUs, tLocalNowUs int64) int64
}

// GenerationSource reports the stream generation currently in effect.
type GenerationSource interface {
	Generation() uint32
}

type scheduledEntry struct {
	source  audiosink.Source
	startAt time.Duration
	endTime time.Duration
}

// Scheduler owns its frame queue and scheduled-source list
// exclusively; nothing else mutates them. It implements
// decode.Sink so the Decode Front-end can hand it frames directly.
type Scheduler struct {
	mu sync.Mutex

	sink   audiosink.Sink
	filter Filter
	gen    GenerationSource
	cfg    Config
	nowFn  func() int64

	queue []audio.Frame

	nextPlaybackTime           time.Duration
	lastScheduledServerEndTime int64
	smoothedSyncErrorMs        float64
	resyncCount                int
	latencyEMA                 time.Duration

	scheduledSources []scheduledEntry
}

// New wires a Scheduler to its sink, the shared Time Filter, and the
// generation source (normally the session's state Store).
func New(sink audiosink.Sink, filter Filter, gen GenerationSource, cfg Config) *Scheduler {
	return &Scheduler{
		sink:   sink,
		filter: filter,
		gen:    gen,
		cfg:    cfg,
		nowFn:  timesync.NowMicros,
	}
}

// Enqueue appends a decoded frame to the queue. It is the point event
// described in the concurrency model: check generation, append,
// rearm the debounce timer (the caller owns the timer).
func (s *Scheduler) Enqueue(fr audio.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fr.Generation != s.gen.Generation() {
		return
	}
	s.queue = append(s.queue, fr)
}

// ResyncCount returns how many times the pass has treated a frame as
// a timeline discontinuity or hard resync, for diagnostics and tests.
func (s *Scheduler) ResyncCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resyncCount
}

// NextPlaybackTime exposes the current anchor, mostly for tests; zero
// means no anchor is set.
func (s *Scheduler) NextPlaybackTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextPlaybackTime
}

// Pass runs one scheduling pass: drop stale-generation frames, sort
// the remainder by server_time, and schedule each onto the sink in
// order. It returns immediately, leaving the queue untouched, if the
// Scheduler has no sink or the Time Filter is not yet synchronized.
// Whether the sink has been opened is not checked; a frame the sink
// rejects is dropped.
func (s *Scheduler) Pass() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sink == nil || !s.filter.IsSynchronized() {
		return
	}

	s.pruneFinishedLocked()

	curGen := s.gen.Generation()
	kept := s.queue[:0]
	for _, fr := range s.queue {
		if fr.Generation == curGen {
			kept = append(kept, fr)
		}
	}
	s.queue = kept

	sort.SliceStable(s.queue, func(i, j int) bool {
		return s.queue[i].ServerTime < s.queue[j].ServerTime
	})

	tSink := s.sink.CurrentTime()
	tLocalNow := s.nowFn()

	s.updateLatencyEMALocked()

	// scheduleOneLocked only logs on a sink.Schedule error; the queue is
	// still cleared unconditionally below, so a failed frame is dropped
	// rather than retried. OpenFormat always precedes SetDecoder
	// (handlers.go), so the sink is normally open by the time any frame
	// reaches here.
	for _, fr := range s.queue {
		s.scheduleOneLocked(fr, tSink, tLocalNow)
	}
	s.queue = s.queue[:0]
}

func (s *Scheduler) updateLatencyEMALocked() {
	raw := s.sink.OutputLatency()
	if s.latencyEMA == 0 {
		s.latencyEMA = raw
		return
	}
	s.latencyEMA = time.Duration(OutputLatencyEMAAlpha*float64(raw) + (1-OutputLatencyEMAAlpha)*float64(s.latencyEMA))
}

func (s *Scheduler) scheduleOneLocked(fr audio.Frame, tSink time.Duration, tLocalNow int64) {
	tServerClient := s.filter.ComputeClientTimeAt(fr.ServerTime, tLocalNow)
	deltaS := float64(tServerClient-tLocalNow) / 1e6

	targetSinkTime := tSink + durationFromSeconds(deltaS) + Headroom + durationFromMillis(s.cfg.SyncDelayMs)
	if !s.cfg.UseOutputLatencyCompensation {
		targetSinkTime -= s.latencyEMA
	}

	var scheduleAt time.Duration
	rate := 1.0
	samples := fr.Samples

	switch {
	case s.nextPlaybackTime == 0:
		scheduleAt = targetSinkTime

	case s.isGapLocked(fr):
		scheduleAt = targetSinkTime
		s.resyncCount++
		s.cancelFromLocked(targetSinkTime)

	default:
		syncErrorMs := float64(s.nextPlaybackTime-targetSinkTime) / float64(time.Millisecond)
		s.smoothedSyncErrorMs = SyncErrorEMAAlpha*syncErrorMs + (1-SyncErrorEMAAlpha)*s.smoothedSyncErrorMs

		decision := pickTier(s.smoothedSyncErrorMs, s.filter.Error(), s.cfg)
		switch decision.kind {
		case tierWait, tierDeadband:
			scheduleAt = s.nextPlaybackTime
		case tierSamples:
			scheduleAt = s.nextPlaybackTime
			samples = adjustSamples(fr.Samples, fr.Format.Channels, s.smoothedSyncErrorMs)
		case tierRate:
			scheduleAt = s.nextPlaybackTime
			rate = decision.rate
		case tierResync:
			scheduleAt = targetSinkTime
			s.cancelFromLocked(targetSinkTime)
			s.smoothedSyncErrorMs = 0
			s.resyncCount++
		}
	}

	if scheduleAt < tSink {
		log.Printf("scheduler: dropping late frame server_time=%d schedule_at=%v sink_time=%v", fr.ServerTime, scheduleAt, tSink)
		s.nextPlaybackTime = 0
		s.lastScheduledServerEndTime = 0
		return
	}

	src, err := s.sink.Schedule(samples, scheduleAt, rate)
	if err != nil {
		log.Printf("scheduler: sink rejected frame: %v", err)
		return
	}

	s.scheduledSources = append(s.scheduledSources, scheduledEntry{
		source:  src,
		startAt: scheduleAt,
		endTime: src.EndTime(),
	})

	frameDuration := fr.Duration()
	s.nextPlaybackTime = scheduleAt + durationFromSeconds(frameDuration.Seconds()/rate)
	s.lastScheduledServerEndTime = fr.ServerTime + int64(math.Round(frameDuration.Seconds()*1e6))
}

func (s *Scheduler) isGapLocked(fr audio.Frame) bool {
	diff := fr.ServerTime - s.lastScheduledServerEndTime
	if diff < 0 {
		diff = -diff
	}
	return time.Duration(diff)*time.Microsecond > GapThreshold
}

// cancelFromLocked stops every scheduled source that would start at
// or after t, removing it from the tracked list.
func (s *Scheduler) cancelFromLocked(t time.Duration) {
	kept := s.scheduledSources[:0]
	for _, e := range s.scheduledSources {
		if e.startAt >= t {
			e.source.Stop()
			continue
		}
		kept = append(kept, e)
	}
	s.scheduledSources = kept
}

func (s *Scheduler) pruneFinishedLocked() {
	tSink := s.sink.CurrentTime()
	kept := s.scheduledSources[:0]
	for _, e := range s.scheduledSources {
		if e.endTime <= tSink {
			continue
		}
		kept = append(kept, e)
	}
	s.scheduledSources = kept
}

// Clear implements buffer clear (seek): stop every currently
// scheduled source immediately, discard the queue, and reset every
// anchor and correction accumulator. Clear does not bump the
// generation counter (the caller owns it and bumps it separately when
// needed), and does not touch format, is_playing, or the Time Filter.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.scheduledSources {
		e.source.Stop()
	}
	s.scheduledSources = nil
	s.queue = nil

	s.nextPlaybackTime = 0
	s.lastScheduledServerEndTime = 0
	s.smoothedSyncErrorMs = 0
	s.resyncCount = 0
	s.latencyEMA = 0

	s.sink.Clear()
}

// OpenFormat ensures the sink is initialized for format, called when
// a stream starts or its format is updated. The Scheduler is the
// sink's sole owner, so every sink mutation is routed through it.
func (s *Scheduler) OpenFormat(format audio.Format) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sink.Open(format)
}

// SetVolume and SetMuted drive the sink's software gain stage.
func (s *Scheduler) SetVolume(volume int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink.SetVolume(volume)
}

func (s *Scheduler) SetMuted(muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink.SetMuted(muted)
}

// Close clears buffers and closes the sink.
func (s *Scheduler) Close() error {
	s.Clear()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sink.Close()
}

func durationFromSeconds(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}

func durationFromMillis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
