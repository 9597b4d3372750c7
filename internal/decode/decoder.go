// ABOUTME: Decoder interface and dispatch front-end
// ABOUTME: Stamps generation before decode; drops frames whose generation is stale after decode
package decode

import (
	"fmt"
	"log"
	"sync"

	"github.com/sendspin/sendspin-go/pkg/audio"
)

// Decoder converts one binary chunk's opaque payload into interleaved
// float32 PCM. Implementations are not required to be safe for
// concurrent use. The Dispatcher calls Decode without holding its
// lock, so calls are serialized only if Dispatch itself is not called
// concurrently.
type Decoder interface {
	Decode(payload []byte) ([]float32, error)
	Close() error
}

// NewDecoder builds a Decoder for the given wire format.
func NewDecoder(format audio.Format, codec string, bitDepth int, codecHeader []byte) (Decoder, error) {
	switch codec {
	case "pcm":
		return NewPCM(bitDepth)
	case "flac":
		return NewFLAC(format, codecHeader)
	case "opus":
		return NewOpus(format)
	default:
		return nil, fmt.Errorf("decode: unsupported codec %q", codec)
	}
}

// GenerationSource reports the stream generation currently in effect,
// consulted before and after decode to drop stale in-flight work.
type GenerationSource interface {
	Generation() uint32
}

// Sink receives frames that survived generation checks on both sides
// of decode.
type Sink interface {
	Enqueue(fr audio.Frame)
}

// Dispatcher is the Decode Front-end: it stamps the generation in
// effect when a chunk arrives, decodes it, and drops the result if
// the generation moved on while decoding was in flight.
type Dispatcher struct {
	mu      sync.Mutex
	decoder Decoder
	format  audio.Format
	gen     GenerationSource
	sink    Sink
}

// NewDispatcher wires a Dispatcher to the generation source it
// consults and the sink it hands surviving frames to.
func NewDispatcher(gen GenerationSource, sink Sink) *Dispatcher {
	return &Dispatcher{gen: gen, sink: sink}
}

// SetDecoder installs the decoder for the current stream format,
// closing any previous one.
func (d *Dispatcher) SetDecoder(dec Decoder, format audio.Format) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.decoder != nil {
		d.decoder.Close()
	}
	d.decoder = dec
	d.format = format
}

// Dispatch decodes one chunk's payload and enqueues the resulting
// frame, unless the stream generation moved on before or after
// decode.
func (d *Dispatcher) Dispatch(serverTime int64, payload []byte) error {
	d.mu.Lock()
	dec := d.decoder
	format := d.format
	d.mu.Unlock()

	if dec == nil {
		return fmt.Errorf("decode: dispatcher has no active decoder")
	}

	genAtArrival := d.gen.Generation()

	samples, err := dec.Decode(payload)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	if d.gen.Generation() != genAtArrival {
		log.Printf("decode: dropping frame decoded under stale generation %d (now %d)", genAtArrival, d.gen.Generation())
		return nil
	}

	d.sink.Enqueue(audio.Frame{
		Format:     format,
		Samples:    samples,
		ServerTime: serverTime,
		Generation: genAtArrival,
	})
	return nil
}

// Close releases the active decoder, if any.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.decoder != nil {
		err := d.decoder.Close()
		d.decoder = nil
		return err
	}
	return nil
}
