// ABOUTME: Per-message-type handling for the receive-side state machine
package engine

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"

	"github.com/sendspin/sendspin-go/internal/decode"
	"github.com/sendspin/sendspin-go/internal/state"
	"github.com/sendspin/sendspin-go/pkg/audio"
	"github.com/sendspin/sendspin-go/pkg/protocol"
	"github.com/sendspin/sendspin-go/pkg/timesync"
)

func (e *Engine) handleText(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("parse envelope: %w", err)
	}

	switch env.Type {
	case "server/hello":
		return e.onServerHello()
	case "server/time":
		return e.onServerTime(env.Payload)
	case "stream/start":
		return e.onStreamStart(env.Payload)
	case "stream/clear":
		return e.onStreamClear(env.Payload)
	case "stream/end":
		return e.onStreamEnd(env.Payload)
	case "server/command":
		return e.onServerCommand(env.Payload)
	case "server/state":
		return e.onServerState(env.Payload)
	case "group/update":
		return e.onGroupUpdate(env.Payload)
	default:
		log.Printf("engine: ignoring unrecognized message type %q", env.Type)
		return nil
	}
}

func (e *Engine) onServerHello() error {
	if e.conn != stateAwaitingServerHello {
		return nil
	}
	e.conn = stateReady

	if err := e.sendClientState(); err != nil {
		return fmt.Errorf("send initial client/state: %w", err)
	}
	return e.sendClientTime()
}

func (e *Engine) onServerTime(raw json.RawMessage) error {
	var st protocol.ServerTime
	if err := json.Unmarshal(raw, &st); err != nil {
		return fmt.Errorf("parse server/time: %w", err)
	}

	if _, ok := e.outstanding[st.ClientTransmitted]; !ok {
		log.Printf("engine: ignoring server/time reply to unknown client_transmitted=%d", st.ClientTransmitted)
		return nil
	}
	delete(e.outstanding, st.ClientTransmitted)

	t4 := float64(timesync.NowMicros())
	t1 := float64(st.ClientTransmitted)
	t2 := float64(st.ServerReceived)
	t3 := float64(st.ServerTransmitted)

	measurement := ((t2 - t1) + (t3 - t4)) / 2
	maxError := ((t4 - t1) - (t3 - t2)) / 2

	e.filter.Observe(measurement, maxError, int64(t4))
	return nil
}

func (e *Engine) onStreamStart(raw json.RawMessage) error {
	var msg protocol.StreamStart
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("parse stream/start: %w", err)
	}
	if msg.Player == nil {
		return nil
	}

	format := audio.Format{SampleRate: msg.Player.SampleRate, Channels: msg.Player.Channels}

	var codecHeader []byte
	if msg.Player.CodecHeader != "" {
		h, err := base64.StdEncoding.DecodeString(msg.Player.CodecHeader)
		if err != nil {
			return fmt.Errorf("decode codec_header: %w", err)
		}
		codecHeader = h
	}

	hadFormat := e.store.Snapshot().CurrentFormat != nil

	dec, err := decode.NewDecoder(format, msg.Player.Codec, msg.Player.BitDepth, codecHeader)
	if err != nil {
		return fmt.Errorf("build decoder: %w", err)
	}

	if err := e.sched.OpenFormat(format); err != nil {
		return fmt.Errorf("open audio sink: %w", err)
	}
	e.dispatcher.SetDecoder(dec, format)
	e.currentCodec = msg.Player.Codec
	e.currentBitDepth = msg.Player.BitDepth

	e.store.SetFormat(&state.Format{
		Codec:      msg.Player.Codec,
		SampleRate: msg.Player.SampleRate,
		Channels:   msg.Player.Channels,
		BitDepth:   msg.Player.BitDepth,
	})

	if !hadFormat {
		e.store.ResetStreamAnchors()
		e.store.SetIsPlaying(true)
	}
	return nil
}

func (e *Engine) onStreamClear(raw json.RawMessage) error {
	var msg protocol.StreamClear
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("parse stream/clear: %w", err)
	}
	if !affectsPlayerRole(msg.Roles) {
		return nil
	}
	e.sched.Clear()
	e.store.ResetStreamAnchors()
	return nil
}

func (e *Engine) onStreamEnd(raw json.RawMessage) error {
	var msg protocol.StreamEnd
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("parse stream/end: %w", err)
	}
	if !affectsPlayerRole(msg.Roles) {
		return nil
	}
	e.sched.Clear()
	e.store.SetFormat(nil)
	e.store.SetIsPlaying(false)
	return e.sendClientState()
}

func (e *Engine) onServerCommand(raw json.RawMessage) error {
	var msg protocol.ServerCommandMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("parse server/command: %w", err)
	}
	if msg.Player == nil {
		return nil
	}

	switch msg.Player.Command {
	case "volume":
		e.store.SetVolume(msg.Player.Volume)
		if e.cfg.UseHardwareVolume && e.cfg.HardwareVolume != nil {
			e.cfg.HardwareVolume.SetVolume(msg.Player.Volume)
		} else {
			e.sched.SetVolume(msg.Player.Volume)
		}
	case "mute":
		e.store.SetMuted(msg.Player.Mute)
		if e.cfg.UseHardwareVolume && e.cfg.HardwareVolume != nil {
			e.cfg.HardwareVolume.SetMuted(msg.Player.Mute)
		} else {
			e.sched.SetMuted(msg.Player.Mute)
		}
	default:
		log.Printf("engine: ignoring unrecognized server/command %q", msg.Player.Command)
		return nil
	}

	return e.sendClientState()
}

func (e *Engine) onServerState(raw json.RawMessage) error {
	var diff map[string]interface{}
	if err := json.Unmarshal(raw, &diff); err != nil {
		return fmt.Errorf("parse server/state: %w", err)
	}
	e.store.MergeServerState(diff)
	return nil
}

func (e *Engine) onGroupUpdate(raw json.RawMessage) error {
	var diff map[string]interface{}
	if err := json.Unmarshal(raw, &diff); err != nil {
		return fmt.Errorf("parse group/update: %w", err)
	}
	e.store.MergeGroupState(diff)
	return nil
}

func affectsPlayerRole(roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if r == "player" {
			return true
		}
	}
	return false
}
