// ABOUTME: Binary audio-chunk frame encoding/decoding
// ABOUTME: Byte 0 is a role/slot tag, bytes 1-8 a big-endian server timestamp
package protocol

import (
	"encoding/binary"
	"fmt"
)

const (
	// AudioChunkMessageType is tag byte 4: player role (bits 7..2 = 1),
	// slot 0 (bits 1..0 = 0), i.e. "player role, slot 0, audio chunk".
	AudioChunkMessageType = 4

	// BinaryHeaderSize is the 1-byte tag plus the 8-byte timestamp.
	BinaryHeaderSize = 1 + 8
)

// EncodeAudioChunk builds a binary audio frame: tag byte, big-endian
// microsecond server timestamp, then the opaque codec payload.
func EncodeAudioChunk(serverTime int64, payload []byte) []byte {
	buf := make([]byte, BinaryHeaderSize+len(payload))
	buf[0] = AudioChunkMessageType
	binary.BigEndian.PutUint64(buf[1:BinaryHeaderSize], uint64(serverTime))
	copy(buf[BinaryHeaderSize:], payload)
	return buf
}

// ParseAudioChunk extracts the server timestamp and codec payload from a
// binary frame. It returns an error for any frame too short to contain a
// header, or whose tag is not a recognized player audio chunk; callers
// should drop the frame and continue rather than treat this as fatal.
func ParseAudioChunk(data []byte) (serverTime int64, payload []byte, err error) {
	if len(data) < BinaryHeaderSize {
		return 0, nil, fmt.Errorf("binary frame too short: %d bytes", len(data))
	}
	if data[0] != AudioChunkMessageType {
		return 0, nil, fmt.Errorf("unrecognized binary message tag: %d", data[0])
	}
	serverTime = int64(binary.BigEndian.Uint64(data[1:BinaryHeaderSize]))
	payload = data[BinaryHeaderSize:]
	return serverTime, payload, nil
}
