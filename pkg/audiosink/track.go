// ABOUTME: Time-addressed segment list feeding the oto player as an io.Reader
// ABOUTME: Handles silence gaps, per-segment playback rate, and mid-flight cancellation
package audiosink

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/sendspin/sendspin-go/pkg/audio"
)

// segment is one Schedule call's worth of samples, addressed by the
// absolute output frame at which it should start.
type segment struct {
	startFrame int64
	samples    []float32 // interleaved
	rate       float64
	channels   int

	cursor    float64 // fractional input-frame read position
	cancelled bool
}

func (s *segment) inputFrames() int64 {
	if s.channels == 0 {
		return 0
	}
	return int64(len(s.samples) / s.channels)
}

// outputFrames is how many output frames this segment occupies once
// played back at rate.
func (s *segment) outputFrames() int64 {
	if s.rate <= 0 {
		return 0
	}
	return int64(float64(s.inputFrames()) / s.rate)
}

func (s *segment) endFrame() int64 {
	return s.startFrame + s.outputFrames()
}

// exhausted reports whether every input sample has been consumed.
func (s *segment) exhausted() bool {
	return s.cancelled || int64(s.cursor) >= s.inputFrames()
}

// readOutputFrame advances the segment by one output frame and
// writes it (already channel-interleaved) into dst, nearest-neighbor
// resampling the input by the segment's rate.
func (s *segment) readOutputFrame(dst []float32) {
	idx := int64(s.cursor)
	for ch := 0; ch < s.channels; ch++ {
		pos := idx*int64(s.channels) + int64(ch)
		if pos < int64(len(s.samples)) {
			dst[ch] = s.samples[pos]
		}
	}
	s.cursor += s.rate
}

type sourceHandle struct {
	track   *track
	seg     *segment
	endTime time.Duration
}

func (h *sourceHandle) EndTime() time.Duration { return h.endTime }
func (h *sourceHandle) Stop()                  { h.track.cancelSegment(h.seg) }

// track owns the segment list and the absolute playhead, and is read
// by the oto player on its own goroutine.
type track struct {
	mu sync.Mutex

	format   audio.Format
	segments []*segment
	playHead int64 // absolute output frames consumed so far

	sink *OtoSink
}

func newTrack(format audio.Format, sink *OtoSink) *track {
	return &track{format: format, sink: sink}
}

func (t *track) schedule(samples []float32, startAt time.Duration, rate float64) Source {
	t.mu.Lock()
	defer t.mu.Unlock()

	if rate <= 0 {
		rate = 1
	}

	startFrame := t.framesFor(startAt)
	if startFrame < t.playHead {
		startFrame = t.playHead
	}

	seg := &segment{
		startFrame: startFrame,
		samples:    samples,
		rate:       rate,
		channels:   t.format.Channels,
	}

	t.segments = append(t.segments, seg)
	// Scheduler always appends in non-decreasing schedule_at order
	// within a pass, but insertion order across passes is not
	// guaranteed, so keep the list sorted for the reader.
	for i := len(t.segments) - 1; i > 0 && t.segments[i].startFrame < t.segments[i-1].startFrame; i-- {
		t.segments[i], t.segments[i-1] = t.segments[i-1], t.segments[i]
	}

	endTime := t.timeFor(seg.endFrame())
	return &sourceHandle{track: t, seg: seg, endTime: endTime}
}

func (t *track) cancelSegment(target *segment) {
	t.mu.Lock()
	defer t.mu.Unlock()
	target.cancelled = true
}

// clear cancels every segment that has not yet finished playing.
func (t *track) clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, seg := range t.segments {
		seg.cancelled = true
	}
	t.segments = t.segments[:0]
}

func (t *track) currentTime() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timeFor(t.playHead)
}

// bufferedDuration is the span between the playhead and the furthest
// scheduled segment end, used as the sink's output-latency report.
func (t *track) bufferedDuration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	furthest := t.playHead
	for _, seg := range t.segments {
		if seg.cancelled {
			continue
		}
		if end := seg.endFrame(); end > furthest {
			furthest = end
		}
	}
	return t.timeFor(furthest - t.playHead)
}

func (t *track) framesFor(d time.Duration) int64 {
	if t.format.SampleRate == 0 {
		return 0
	}
	return int64(d) * int64(t.format.SampleRate) / int64(time.Second)
}

func (t *track) timeFor(frames int64) time.Duration {
	if t.format.SampleRate == 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(t.format.SampleRate)
}

// Read implements io.Reader for oto.Player, producing 16-bit
// little-endian interleaved PCM one output frame at a time: silence
// where no segment covers the current playhead, resampled segment
// content otherwise.
func (t *track) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	channels := t.format.Channels
	if channels == 0 {
		return 0, nil
	}
	bytesPerFrame := 2 * channels
	frameBuf := make([]float32, channels)

	n := 0
	for n+bytesPerFrame <= len(p) {
		t.dropFinishedLocked()

		seg := t.segmentAtLocked(t.playHead)
		for i := range frameBuf {
			frameBuf[i] = 0
		}
		if seg != nil {
			seg.readOutputFrame(frameBuf)
		}

		gain := t.sink.gain()
		for ch := 0; ch < channels; ch++ {
			v := frameBuf[ch] * gain
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			binary.LittleEndian.PutUint16(p[n+ch*2:], uint16(int16(v*32767)))
		}

		t.playHead++
		n += bytesPerFrame
	}

	return n, nil
}

// segmentAtLocked returns the segment that covers playhead, if any,
// preferring the earliest-starting unfinished one.
func (t *track) segmentAtLocked(playhead int64) *segment {
	for _, seg := range t.segments {
		if seg.cancelled || seg.exhausted() {
			continue
		}
		if seg.startFrame <= playhead {
			return seg
		}
	}
	return nil
}

func (t *track) dropFinishedLocked() {
	kept := t.segments[:0]
	for _, seg := range t.segments {
		if seg.cancelled || (seg.exhausted() && seg.endFrame() <= t.playHead) {
			continue
		}
		kept = append(kept, seg)
	}
	t.segments = kept
}
