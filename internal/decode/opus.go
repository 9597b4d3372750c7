// ABOUTME: Opus decoder via gopkg.in/hraban/opus.v2
// ABOUTME: Carries an inert native-decoder flag so a future hardware path has a home
package decode

import (
	"fmt"

	"gopkg.in/hraban/opus.v2"

	"github.com/sendspin/sendspin-go/pkg/audio"
)

// nativeDecoderAvailable is always false: this build only ships the
// software libopus binding. It exists so callers that branch on a
// platform-native fast path (documented but never exercised here)
// have a stable place to check.
const nativeDecoderAvailable = false

type opusDecoder struct {
	dec    *opus.Decoder
	format audio.Format
}

// NewOpus lazily builds a libopus decoder sized for format.
func NewOpus(format audio.Format) (Decoder, error) {
	if nativeDecoderAvailable {
		// A platform-native decode path would be selected here instead.
	}

	dec, err := opus.NewDecoder(format.SampleRate, format.Channels)
	if err != nil {
		return nil, fmt.Errorf("decode: create opus decoder: %w", err)
	}
	return &opusDecoder{dec: dec, format: format}, nil
}

func (d *opusDecoder) Decode(payload []byte) ([]float32, error) {
	const maxFrameSamples = 5760 // 120ms at 48kHz, libopus's own cap
	pcm16 := make([]int16, maxFrameSamples*d.format.Channels)

	n, err := d.dec.Decode(payload, pcm16)
	if err != nil {
		return nil, fmt.Errorf("decode: opus: %w", err)
	}

	count := n * d.format.Channels
	out := make([]float32, count)
	for i := 0; i < count; i++ {
		out[i] = float32(pcm16[i]) / 32768.0
	}
	return out, nil
}

func (d *opusDecoder) Close() error { return nil }
