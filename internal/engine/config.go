// ABOUTME: Protocol Engine configuration
package engine

import (
	"time"

	"github.com/sendspin/sendspin-go/pkg/protocol"
)

// Config collects the options the spec's core configuration table
// recognizes.
type Config struct {
	PlayerID       string
	ClientName     string
	DeviceInfo     *protocol.DeviceInfo
	SupportedCodecs []protocol.AudioFormat
	BufferCapacity int

	SyncInterval  time.Duration
	StateInterval time.Duration

	// UseHardwareVolume, if true, leaves the software gain stage at
	// unity and delegates volume/mute to an external sink via
	// HardwareVolume.
	UseHardwareVolume bool
	HardwareVolume    HardwareVolume
}

// HardwareVolume lets the host delegate volume/mute to an external
// device instead of the software gain stage.
type HardwareVolume interface {
	SetVolume(volume int)
	SetMuted(muted bool)
	Volume() int
	Muted() bool
}

// DefaultConfig returns 5-second time-sync and state cadences and
// software volume control.
func DefaultConfig() Config {
	return Config{
		SyncInterval:  5 * time.Second,
		StateInterval: 5 * time.Second,
	}
}

// DebounceInterval is the fixed delay between a decoded frame
// arriving and the scheduling pass it triggers; multiple arrivals
// within the window collapse into one pass.
const DebounceInterval = 50 * time.Millisecond
