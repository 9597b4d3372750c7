// ABOUTME: Tests for binary audio-chunk framing
package protocol

import (
	"bytes"
	"testing"
)

func TestEncodeParseAudioChunkRoundTrip(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5}
	frame := EncodeAudioChunk(123456789, payload)

	ts, got, err := ParseAudioChunk(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts != 123456789 {
		t.Errorf("expected timestamp 123456789, got %d", ts)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("expected payload %v, got %v", payload, got)
	}
}

func TestParseAudioChunkTooShort(t *testing.T) {
	if _, _, err := ParseAudioChunk([]byte{4, 1, 2}); err == nil {
		t.Error("expected error for short frame")
	}
}

func TestParseAudioChunkWrongTag(t *testing.T) {
	frame := EncodeAudioChunk(1, []byte{0})
	frame[0] = 7
	if _, _, err := ParseAudioChunk(frame); err == nil {
		t.Error("expected error for unrecognized tag")
	}
}
