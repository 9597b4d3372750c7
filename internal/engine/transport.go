// ABOUTME: Duplex frame transport the Protocol Engine drives
package engine

// Transport is the full-duplex message stream the engine drives: two
// frame types (text JSON, binary audio), FIFO within each type. A
// *websocket.Conn satisfies this directly.
type Transport interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteJSON(v interface{}) error
	Close() error
}

// Frame kinds, matching gorilla/websocket's TextMessage/BinaryMessage
// constants so a real *websocket.Conn needs no adapter.
const (
	TextMessage   = 1
	BinaryMessage = 2
)
