// ABOUTME: Protocol Engine: handshake, keep-alive, stream lifecycle, and command routing
// ABOUTME: Single-threaded event loop; a reader goroutine only fans inbound frames into a channel
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/sendspin/sendspin-go/internal/decode"
	"github.com/sendspin/sendspin-go/internal/scheduler"
	"github.com/sendspin/sendspin-go/internal/state"
	"github.com/sendspin/sendspin-go/pkg/protocol"
	"github.com/sendspin/sendspin-go/pkg/timesync"
)

type connState int

const (
	stateDisconnected connState = iota
	stateConnecting
	stateAwaitingServerHello
	stateReady
)

type rawFrame struct {
	kind int
	data []byte
}

// envelope is the inbound decoding counterpart of protocol.Message:
// the payload is deferred so it can be unmarshaled per message type.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Engine drives the receive-side state machine described by the
// wire protocol: handshake, periodic time/state messages, stream
// lifecycle, and server/client command routing.
type Engine struct {
	transport  Transport
	store      *state.Store
	filter     *timesync.Filter
	dispatcher *decode.Dispatcher
	sched      *scheduler.Scheduler
	cfg        Config

	conn connState

	outstanding map[int64]struct{}

	debounceTimer   *time.Timer
	debouncePending bool

	currentCodec    string
	currentBitDepth int
}

// New wires an Engine to its collaborators. filter, dispatcher, and
// sched are shared across the session; the Engine only drives them,
// it does not own them.
func New(transport Transport, store *state.Store, filter *timesync.Filter, dispatcher *decode.Dispatcher, sched *scheduler.Scheduler, cfg Config) *Engine {
	if cfg.PlayerID == "" {
		cfg.PlayerID = uuid.NewString()
	}
	return &Engine{
		transport:   transport,
		store:       store,
		filter:      filter,
		dispatcher:  dispatcher,
		sched:       sched,
		cfg:         cfg,
		conn:        stateDisconnected,
		outstanding: make(map[int64]struct{}),
	}
}

// Run drives the engine until ctx is cancelled or the transport
// closes. It performs the handshake, then services inbound frames,
// periodic timers, and the scheduling debounce until the connection
// ends.
func (e *Engine) Run(ctx context.Context) error {
	e.conn = stateConnecting
	if err := e.sendHello(); err != nil {
		return fmt.Errorf("engine: send client/hello: %w", err)
	}
	e.conn = stateAwaitingServerHello

	inbound := make(chan rawFrame, 64)
	readerDone := make(chan struct{})
	go e.readLoop(inbound, readerDone)

	var syncTicker, stateTicker *time.Ticker
	defer func() {
		if syncTicker != nil {
			syncTicker.Stop()
		}
		if stateTicker != nil {
			stateTicker.Stop()
		}
		if e.debounceTimer != nil {
			e.debounceTimer.Stop()
		}
	}()

	for {
		var syncC, stateC, debounceC <-chan time.Time
		if syncTicker != nil {
			syncC = syncTicker.C
		}
		if stateTicker != nil {
			stateC = stateTicker.C
		}
		if e.debouncePending && e.debounceTimer != nil {
			debounceC = e.debounceTimer.C
		}

		select {
		case <-ctx.Done():
			e.shutdown(protocol.ReasonShutdown)
			return ctx.Err()

		case <-readerDone:
			e.onTransportClosed()
			return nil

		case f := <-inbound:
			if f.kind == BinaryMessage {
				e.handleBinary(f.data)
				continue
			}
			if err := e.handleText(f.data); err != nil {
				log.Printf("engine: dropping malformed frame: %v", err)
			}
			if e.conn == stateReady && syncTicker == nil {
				syncTicker = time.NewTicker(e.cfg.SyncInterval)
				stateTicker = time.NewTicker(e.cfg.StateInterval)
			}

		case <-syncC:
			e.sendClientTime()

		case <-stateC:
			e.sendClientState()

		case <-debounceC:
			e.debouncePending = false
			e.sched.Pass()
		}
	}
}

func (e *Engine) readLoop(inbound chan<- rawFrame, done chan<- struct{}) {
	defer close(done)
	for {
		mt, data, err := e.transport.ReadMessage()
		if err != nil {
			return
		}
		inbound <- rawFrame{kind: mt, data: data}
	}
}

func (e *Engine) onTransportClosed() {
	if e.debounceTimer != nil {
		e.debounceTimer.Stop()
	}
	e.filter.Reset()
	e.conn = stateDisconnected
}

// shutdown sends client/goodbye and closes the transport. reason must
// be one of the protocol.Reason* constants.
func (e *Engine) shutdown(reason string) {
	_ = e.transport.WriteJSON(protocol.Message{
		Type:    "client/goodbye",
		Payload: protocol.ClientGoodbye{Reason: reason},
	})
	e.transport.Close()
	e.conn = stateDisconnected
}

func (e *Engine) sendHello() error {
	hello := protocol.ClientHello{
		ClientID:       e.cfg.PlayerID,
		Name:           e.cfg.ClientName,
		Version:        1,
		SupportedRoles: []string{"player@v1"},
		DeviceInfo:     e.cfg.DeviceInfo,
		PlayerSupport: &protocol.PlayerSupport{
			SupportedFormats:  e.cfg.SupportedCodecs,
			BufferCapacity:    e.cfg.BufferCapacity,
			SupportedCommands: nil,
		},
	}
	return e.transport.WriteJSON(protocol.Message{Type: "client/hello", Payload: hello})
}

func (e *Engine) armDebounce() {
	if e.debouncePending {
		return
	}
	e.debouncePending = true
	if e.debounceTimer == nil {
		e.debounceTimer = time.NewTimer(DebounceInterval)
		return
	}
	e.debounceTimer.Reset(DebounceInterval)
}

func (e *Engine) handleBinary(data []byte) {
	serverTime, payload, err := protocol.ParseAudioChunk(data)
	if err != nil {
		log.Printf("engine: dropping malformed binary frame: %v", err)
		return
	}
	if err := e.dispatcher.Dispatch(serverTime, payload); err != nil {
		log.Printf("engine: decode failed, dropping chunk: %v", err)
		return
	}
	e.armDebounce()
}

func (e *Engine) currentPlayerStateLabel() state.PlayerState {
	if e.filter.IsSynchronized() {
		return state.PlayerStateSynchronized
	}
	return state.PlayerStateError
}

func (e *Engine) volume() int {
	if e.cfg.UseHardwareVolume && e.cfg.HardwareVolume != nil {
		return e.cfg.HardwareVolume.Volume()
	}
	return e.store.Snapshot().Volume
}

func (e *Engine) muted() bool {
	if e.cfg.UseHardwareVolume && e.cfg.HardwareVolume != nil {
		return e.cfg.HardwareVolume.Muted()
	}
	return e.store.Snapshot().Muted
}

func (e *Engine) sendClientState() error {
	e.store.SetPlayerState(e.currentPlayerStateLabel())

	msg := protocol.Message{
		Type: "client/state",
		Payload: protocol.ClientStateMessage{
			Player: &protocol.PlayerState{
				State:  string(e.currentPlayerStateLabel()),
				Volume: e.volume(),
				Muted:  e.muted(),
			},
		},
	}
	return e.transport.WriteJSON(msg)
}

func (e *Engine) sendClientTime() error {
	t1 := timesync.NowMicros()
	e.outstanding[t1] = struct{}{}
	return e.transport.WriteJSON(protocol.Message{
		Type:    "client/time",
		Payload: protocol.ClientTime{ClientTransmitted: t1},
	})
}

// SendCommand transmits a controller command, failing synchronously
// if the cached server_state advertises a supported_commands list
// that does not include it.
func (e *Engine) SendCommand(cmd protocol.ControllerCommand) error {
	if !protocol.CommandSet[cmd.Command] {
		return fmt.Errorf("engine: unknown command %q", cmd.Command)
	}
	if v, ok := e.store.ServerStateValue("controller"); ok {
		if controller, ok := v.(map[string]interface{}); ok {
			if supported, ok := controller["supported_commands"].([]interface{}); ok {
				if !containsCommand(supported, cmd.Command) {
					return fmt.Errorf("engine: command %q unsupported by server", cmd.Command)
				}
			}
		}
	}
	return e.transport.WriteJSON(protocol.Message{
		Type:    "client/command",
		Payload: protocol.ClientCommandMessage{Controller: &cmd},
	})
}

func containsCommand(supported []interface{}, cmd string) bool {
	for _, v := range supported {
		if s, ok := v.(string); ok && s == cmd {
			return true
		}
	}
	return false
}
