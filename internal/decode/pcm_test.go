// ABOUTME: Tests for the PCM decoder
package decode

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestPCM16DecodeFullScale(t *testing.T) {
	dec, err := NewPCM(16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	buf := make([]byte, 4)
	binary.LittleEndian.PutUint16(buf[0:], uint16(int16(32767)))
	binary.LittleEndian.PutUint16(buf[2:], uint16(int16(-32768)))

	samples, err := dec.Decode(buf)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if math.Abs(float64(samples[0])-0.99997) > 0.001 {
		t.Errorf("expected near +1.0, got %v", samples[0])
	}
	if samples[1] != -1.0 {
		t.Errorf("expected exactly -1.0, got %v", samples[1])
	}
}

func TestPCM24DecodeSignExtension(t *testing.T) {
	dec, err := NewPCM(24)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// -1 in 24-bit two's complement is 0xFFFFFF, little-endian bytes;
	// normalized by the 24-bit full scale (2^23) it is -1/8388608.
	buf := []byte{0xFF, 0xFF, 0xFF}
	samples, err := dec.Decode(buf)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(samples) != 1 || samples[0] != float32(-1.0/8388608.0) {
		t.Errorf("expected -1/8388608, got %v", samples)
	}
}

func TestPCM32DecodeFullScale(t *testing.T) {
	dec, err := NewPCM(32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:], uint32(int32(2147483647)))
	binary.LittleEndian.PutUint32(buf[4:], uint32(int32(-2147483648)))

	samples, err := dec.Decode(buf)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if math.Abs(float64(samples[0])-1.0) > 0.0001 {
		t.Errorf("expected near +1.0, got %v", samples[0])
	}
	if samples[1] != -1.0 {
		t.Errorf("expected exactly -1.0, got %v", samples[1])
	}
}

func TestPCMUnsupportedBitDepthRejected(t *testing.T) {
	if _, err := NewPCM(8); err == nil {
		t.Error("expected error for unsupported bit depth")
	}
}
