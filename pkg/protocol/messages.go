// ABOUTME: Sendspin Protocol message type definitions
// ABOUTME: Defines structs for all message types exchanged over the text channel
package protocol

// Message is the top-level envelope for every JSON message.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ClientHello is sent by the client to initiate the handshake.
// Roles are versioned, e.g. "player@v1".
type ClientHello struct {
	ClientID       string       `json:"client_id"`
	Name           string       `json:"name"`
	Version        int          `json:"version"`
	SupportedRoles []string     `json:"supported_roles"`
	DeviceInfo     *DeviceInfo  `json:"device_info,omitempty"`
	PlayerSupport  *PlayerSupport `json:"player@v1_support,omitempty"`
}

// DeviceInfo identifies the hardware/software running the client.
type DeviceInfo struct {
	ProductName     string `json:"product_name"`
	Manufacturer    string `json:"manufacturer"`
	SoftwareVersion string `json:"software_version"`
}

// PlayerSupport describes the player role's capabilities.
type PlayerSupport struct {
	SupportedFormats  []AudioFormat `json:"supported_formats"`
	BufferCapacity    int           `json:"buffer_capacity"`
	SupportedCommands []string      `json:"supported_commands"`
}

// AudioFormat describes one codec/rate/depth combination a client can accept.
type AudioFormat struct {
	Codec      string `json:"codec"`
	Channels   int    `json:"channels"`
	SampleRate int    `json:"sample_rate"`
	BitDepth   int    `json:"bit_depth"`
}

// ServerHello answers client/hello.
type ServerHello struct {
	ServerID         string   `json:"server_id"`
	Name             string   `json:"name"`
	Version          int      `json:"version"`
	ActiveRoles      []string `json:"active_roles"`
	ConnectionReason string   `json:"connection_reason,omitempty"`
}

// ClientStateMessage carries client/state.
type ClientStateMessage struct {
	Player *PlayerState `json:"player,omitempty"`
}

// PlayerState is the player's self-reported state.
type PlayerState struct {
	State  string `json:"state"`
	Volume int    `json:"volume"`
	Muted  bool   `json:"muted"`
}

// ServerCommandMessage carries server/command.
type ServerCommandMessage struct {
	Player *PlayerCommand `json:"player,omitempty"`
}

// PlayerCommand is a command the server pushes to a player.
type PlayerCommand struct {
	Command string `json:"command"`
	Volume  int    `json:"volume,omitempty"`
	Mute    bool   `json:"mute,omitempty"`
}

// ClientCommandMessage carries client/command.
type ClientCommandMessage struct {
	Controller *ControllerCommand `json:"controller,omitempty"`
}

// ControllerCommand is a command the client requests of the server.
// Command is one of the values in CommandSet.
type ControllerCommand struct {
	Command string `json:"command"`
	Volume  int    `json:"volume,omitempty"`
	Mute    bool   `json:"mute,omitempty"`
}

// CommandSet enumerates every client->server controller command.
var CommandSet = map[string]bool{
	"play":        true,
	"pause":       true,
	"stop":        true,
	"next":        true,
	"previous":    true,
	"volume":      true,
	"mute":        true,
	"repeat_off":  true,
	"repeat_one":  true,
	"repeat_all":  true,
	"shuffle":     true,
	"unshuffle":   true,
	"switch":      true,
}

// StreamStartPlayer carries the format a stream is about to use.
type StreamStartPlayer struct {
	Codec       string `json:"codec"`
	SampleRate  int    `json:"sample_rate"`
	Channels    int    `json:"channels"`
	BitDepth    int    `json:"bit_depth,omitempty"`
	CodecHeader string `json:"codec_header,omitempty"` // base64
}

// StreamStart carries stream/start.
type StreamStart struct {
	Player *StreamStartPlayer `json:"player,omitempty"`
}

// StreamClear carries stream/clear. Absent Roles means all roles.
type StreamClear struct {
	Roles []string `json:"roles,omitempty"`
}

// StreamEnd carries stream/end. Absent Roles means all roles.
type StreamEnd struct {
	Roles []string `json:"roles,omitempty"`
}

// ServerStateMessage carries server/state. Fields are merged into cached
// state one level deep; see internal/state for the merge semantics.
type ServerStateMessage map[string]interface{}

// ControllerState is the shape of the "controller" key inside server/state.
type ControllerState struct {
	SupportedCommands []string `json:"supported_commands"`
	Volume            int      `json:"volume"`
	Muted             bool     `json:"muted"`
}

// GroupUpdate carries group/update; merged one level deep like server/state.
type GroupUpdate map[string]interface{}

// ClientGoodbye is sent before a graceful disconnect.
type ClientGoodbye struct {
	Reason string `json:"reason"`
}

// Goodbye reasons.
const (
	ReasonAnotherServer = "another_server"
	ReasonShutdown      = "shutdown"
	ReasonRestart       = "restart"
	ReasonUserRequest   = "user_request"
)

// ClientTime carries client/time.
type ClientTime struct {
	ClientTransmitted int64 `json:"client_transmitted"`
}

// ServerTime carries server/time, the reply to client/time.
type ServerTime struct {
	ClientTransmitted int64 `json:"client_transmitted"`
	ServerReceived    int64 `json:"server_received"`
	ServerTransmitted int64 `json:"server_transmitted"`
}
