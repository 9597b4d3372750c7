// ABOUTME: Time-scheduled audio output built on oto
// ABOUTME: Exposes a monotonic output clock and a schedule-at-time primitive for the scheduler
package audiosink

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/sendspin/sendspin-go/pkg/audio"
)

// Sink is a renderable audio output that can accept samples scheduled
// to begin playing at an arbitrary future point on its own clock, and
// can play them back at a slightly adjusted rate to absorb clock
// drift.
type Sink interface {
	// Open configures the sink for a format. Safe to call again with
	// the same format; a format change on a running oto context is
	// logged and otherwise ignored, mirroring the underlying library's
	// single-context-per-process limitation.
	Open(format audio.Format) error

	// Schedule queues samples to begin playing when the sink's own
	// clock (CurrentTime) reaches startAt, played back at rate (1.0 =
	// normal speed). The returned Source can be used to cancel the
	// segment before or during playback.
	Schedule(samples []float32, startAt time.Duration, rate float64) (Source, error)

	// CurrentTime returns the sink's own monotonic output clock: how
	// much audio has actually reached the speaker.
	CurrentTime() time.Duration

	// OutputLatency reports the buffered-but-not-yet-played duration:
	// the span from CurrentTime to the end of the furthest scheduled,
	// uncancelled segment.
	OutputLatency() time.Duration

	SetVolume(volume int)
	SetMuted(muted bool)

	// Clear cancels every segment that has not finished playing,
	// without closing the underlying device. Used on seek/stream-clear.
	Clear()

	Close() error
}

// Source tracks one Schedule call's worth of samples.
type Source interface {
	// EndTime is the sink CurrentTime at which this segment will have
	// finished playing, computed at schedule time.
	EndTime() time.Duration

	// Stop cancels the segment. If it has not started, it never
	// plays. If it is mid-playback, remaining samples are dropped and
	// the sink moves on (to silence or the next segment) immediately.
	Stop()
}

// OtoSink implements Sink using ebitengine/oto, feeding a persistent
// player from a list of time-addressed segments rather than a flat
// stream, so segments can be scheduled into the future, rate-adjusted,
// and individually cancelled.
type OtoSink struct {
	mu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc

	otoCtx *oto.Context
	player *oto.Player
	track  *track

	format audio.Format
	volume int
	muted  bool
	ready  bool
}

// NewOtoSink creates a Sink with volume defaulted to 100, unmuted.
func NewOtoSink() *OtoSink {
	ctx, cancel := context.WithCancel(context.Background())
	return &OtoSink{
		ctx:    ctx,
		cancel: cancel,
		volume: 100,
	}
}

func (o *OtoSink) Open(format audio.Format) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.otoCtx != nil && o.format == format {
		return nil
	}
	if o.otoCtx != nil {
		log.Printf("audiosink: format change %+v -> %+v requested but oto only supports one context per process; continuing with existing format", o.format, format)
		return nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
	}
	otoCtx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("audiosink: create oto context: %w", err)
	}
	<-readyChan

	o.otoCtx = otoCtx
	o.format = format
	o.track = newTrack(format, o)
	o.player = otoCtx.NewPlayer(o.track)
	o.player.Play()
	o.ready = true

	log.Printf("audiosink: opened %dHz %dch", format.SampleRate, format.Channels)
	return nil
}

func (o *OtoSink) Schedule(samples []float32, startAt time.Duration, rate float64) (Source, error) {
	o.mu.Lock()
	track := o.track
	ready := o.ready
	o.mu.Unlock()

	if !ready {
		return nil, fmt.Errorf("audiosink: not open")
	}
	return track.schedule(samples, startAt, rate), nil
}

func (o *OtoSink) CurrentTime() time.Duration {
	o.mu.Lock()
	track := o.track
	o.mu.Unlock()
	if track == nil {
		return 0
	}
	return track.currentTime()
}

func (o *OtoSink) OutputLatency() time.Duration {
	o.mu.Lock()
	track := o.track
	o.mu.Unlock()
	if track == nil {
		return 0
	}
	return track.bufferedDuration()
}

func (o *OtoSink) SetVolume(volume int) {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	o.mu.Lock()
	o.volume = volume
	o.mu.Unlock()
}

func (o *OtoSink) SetMuted(muted bool) {
	o.mu.Lock()
	o.muted = muted
	o.mu.Unlock()
}

func (o *OtoSink) gain() (multiplier float32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.muted {
		return 0
	}
	return float32(o.volume) / 100.0
}

func (o *OtoSink) Clear() {
	o.mu.Lock()
	track := o.track
	o.mu.Unlock()
	if track != nil {
		track.clear()
	}
}

func (o *OtoSink) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player != nil {
		o.player.Close()
		o.player = nil
	}
	if o.otoCtx != nil {
		o.otoCtx.Suspend()
		o.ready = false
	}
	o.cancel()
	return nil
}
