// ABOUTME: Tests for generation-aware dispatch
package decode

import (
	"testing"

	"github.com/sendspin/sendspin-go/pkg/audio"
)

type fakeGen struct{ gen uint32 }

func (f *fakeGen) Generation() uint32 { return f.gen }

type collectingSink struct {
	frames []audio.Frame
}

func (s *collectingSink) Enqueue(fr audio.Frame) {
	s.frames = append(s.frames, fr)
}

type passthroughDecoder struct{}

func (passthroughDecoder) Decode(payload []byte) ([]float32, error) {
	out := make([]float32, len(payload))
	for i, b := range payload {
		out[i] = float32(b)
	}
	return out, nil
}
func (passthroughDecoder) Close() error { return nil }

func TestDispatchEnqueuesUnderStableGeneration(t *testing.T) {
	gen := &fakeGen{gen: 1}
	sink := &collectingSink{}
	d := NewDispatcher(gen, sink)
	d.SetDecoder(passthroughDecoder{}, audio.Format{SampleRate: 48000, Channels: 2})

	if err := d.Dispatch(1000, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sink.frames) != 1 {
		t.Fatalf("expected 1 frame enqueued, got %d", len(sink.frames))
	}
	if sink.frames[0].Generation != 1 {
		t.Errorf("expected generation 1, got %d", sink.frames[0].Generation)
	}
}

func TestDispatchDropsFrameFromStaleGeneration(t *testing.T) {
	gen := &fakeGen{gen: 1}
	sink := &collectingSink{}
	d := NewDispatcher(gen, sink)
	d.SetDecoder(bumpingDecoder{gen: gen}, audio.Format{SampleRate: 48000, Channels: 2})

	if err := d.Dispatch(1000, []byte{1, 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sink.frames) != 0 {
		t.Fatalf("expected frame decoded under stale generation to be dropped, got %d frames", len(sink.frames))
	}
}

func TestDispatchWithoutDecoderFails(t *testing.T) {
	gen := &fakeGen{gen: 1}
	sink := &collectingSink{}
	d := NewDispatcher(gen, sink)

	if err := d.Dispatch(0, []byte{1}); err == nil {
		t.Error("expected error when no decoder installed")
	}
}

// bumpingDecoder simulates the generation moving on while a decode is
// in flight (e.g. a seek arriving mid-decode).
type bumpingDecoder struct {
	gen *fakeGen
}

func (b bumpingDecoder) Decode(payload []byte) ([]float32, error) {
	b.gen.gen++
	return []float32{0}, nil
}
func (bumpingDecoder) Close() error { return nil }
