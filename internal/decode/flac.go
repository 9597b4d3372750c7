// ABOUTME: FLAC decoder using mewkiz/flac's streaming frame parser
// ABOUTME: Assumes each binary chunk payload holds one or more complete FLAC frames
package decode

import (
	"fmt"
	"io"

	"github.com/mewkiz/flac"

	"github.com/sendspin/sendspin-go/pkg/audio"
)

// chunkReader is an io.Reader backed by a queue of pushed byte
// slices. Reads drain whatever is queued and return errDrained once
// empty, instead of blocking for more: flac's frame parser treats
// that as end-of-input for the current ParseNext call, which Decode
// catches and turns into "nothing more to decode from this payload".
type chunkReader struct {
	pending [][]byte
}

var errDrained = fmt.Errorf("decode: no more FLAC data queued")

func (r *chunkReader) push(b []byte) {
	r.pending = append(r.pending, b)
}

func (r *chunkReader) Read(p []byte) (int, error) {
	for len(r.pending) > 0 && len(r.pending[0]) == 0 {
		r.pending = r.pending[1:]
	}
	if len(r.pending) == 0 {
		return 0, errDrained
	}
	n := copy(p, r.pending[0])
	r.pending[0] = r.pending[0][n:]
	return n, nil
}

type flacDecoder struct {
	stream *flac.Stream
	reader *chunkReader
	format audio.Format
}

// NewFLAC builds a Decoder over codecHeader, which must contain the
// "fLaC" magic plus at least the STREAMINFO metadata block, as
// advertised by stream/start's codec_header field.
func NewFLAC(format audio.Format, codecHeader []byte) (Decoder, error) {
	if len(codecHeader) == 0 {
		return nil, fmt.Errorf("decode: flac requires a codec header")
	}

	reader := &chunkReader{}
	reader.push(codecHeader)

	stream, err := flac.New(reader)
	if err != nil {
		return nil, fmt.Errorf("decode: parse flac header: %w", err)
	}

	return &flacDecoder{stream: stream, reader: reader, format: format}, nil
}

func (d *flacDecoder) Decode(payload []byte) ([]float32, error) {
	d.reader.push(payload)

	var out []float32
	for {
		frame, err := d.stream.ParseNext()
		if err != nil {
			if err == io.EOF || err == errDrained {
				break
			}
			return out, fmt.Errorf("decode: flac frame: %w", err)
		}

		scale := float32(int64(1) << (d.stream.Info.BitsPerSample - 1))
		for i := 0; i < int(frame.BlockSize); i++ {
			for ch := 0; ch < d.format.Channels && ch < len(frame.Subframes); ch++ {
				out = append(out, float32(frame.Subframes[ch].Samples[i])/scale)
			}
		}
	}
	return out, nil
}

func (d *flacDecoder) Close() error { return nil }
