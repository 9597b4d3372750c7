// ABOUTME: PCM decoder: raw 16-, 24-, or 32-bit little-endian integers to float32
package decode

import (
	"encoding/binary"
	"fmt"
)

type pcmDecoder struct {
	bitDepth int
}

// NewPCM builds a Decoder for raw little-endian PCM at the given bit
// depth. 16, 24, and 32 bit are supported, matching what the wire
// format's AudioFormat.BitDepth field is expected to carry for pcm.
func NewPCM(bitDepth int) (Decoder, error) {
	if bitDepth != 16 && bitDepth != 24 && bitDepth != 32 {
		return nil, fmt.Errorf("decode: unsupported PCM bit depth %d", bitDepth)
	}
	return &pcmDecoder{bitDepth: bitDepth}, nil
}

func (d *pcmDecoder) Decode(data []byte) ([]float32, error) {
	switch d.bitDepth {
	case 32:
		n := len(data) / 4
		out := make([]float32, n)
		for i := 0; i < n; i++ {
			v := int32(binary.LittleEndian.Uint32(data[i*4:]))
			out[i] = float32(v) / 2147483648.0
		}
		return out, nil

	case 24:
		n := len(data) / 3
		out := make([]float32, n)
		for i := 0; i < n; i++ {
			b0, b1, b2 := data[i*3], data[i*3+1], data[i*3+2]
			v := int32(b0) | int32(b1)<<8 | int32(b2)<<16
			if v&0x800000 != 0 {
				v |= ^int32(0xFFFFFF)
			}
			out[i] = float32(v) / 8388608.0
		}
		return out, nil

	default:
		n := len(data) / 2
		out := make([]float32, n)
		for i := 0; i < n; i++ {
			v := int16(binary.LittleEndian.Uint16(data[i*2:]))
			out[i] = float32(v) / 32768.0
		}
		return out, nil
	}
}

func (d *pcmDecoder) Close() error { return nil }
