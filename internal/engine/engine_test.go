// ABOUTME: Tests for the Protocol Engine's message handling
package engine

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sendspin/sendspin-go/internal/decode"
	"github.com/sendspin/sendspin-go/internal/scheduler"
	"github.com/sendspin/sendspin-go/internal/state"
	"github.com/sendspin/sendspin-go/pkg/audio"
	"github.com/sendspin/sendspin-go/pkg/audiosink"
	"github.com/sendspin/sendspin-go/pkg/protocol"
	"github.com/sendspin/sendspin-go/pkg/timesync"
)

type fakeTransport struct {
	mu   sync.Mutex
	sent []protocol.Message
}

func (f *fakeTransport) ReadMessage() (int, []byte, error) {
	select {}
}
func (f *fakeTransport) WriteMessage(int, []byte) error { return nil }
func (f *fakeTransport) WriteJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
	return nil
}
func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) lastSent() (protocol.Message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return protocol.Message{}, false
	}
	return f.sent[len(f.sent)-1], true
}

type noopSink struct{}

func (noopSink) Open(audio.Format) error { return nil }
func (noopSink) Schedule(samples []float32, startAt time.Duration, rate float64) (audiosink.Source, error) {
	return noopSource{}, nil
}
func (noopSink) CurrentTime() time.Duration   { return 0 }
func (noopSink) OutputLatency() time.Duration { return 0 }
func (noopSink) SetVolume(int)                {}
func (noopSink) SetMuted(bool)                {}
func (noopSink) Clear()                       {}
func (noopSink) Close() error                 { return nil }

type noopSource struct{}

func (noopSource) EndTime() time.Duration { return 0 }
func (noopSource) Stop()                  {}

func newTestEngine() (*Engine, *fakeTransport, *state.Store) {
	transport := &fakeTransport{}
	store := state.New()
	filter := timesync.NewFilter(timesync.DefaultConfig())
	sched := scheduler.New(noopSink{}, filter, genAdapter{store}, scheduler.DefaultConfig())
	dispatcher := decode.NewDispatcher(genAdapter{store}, sched)

	e := New(transport, store, filter, dispatcher, sched, Config{ClientName: "test"})
	return e, transport, store
}

type genAdapter struct{ store *state.Store }

func (g genAdapter) Generation() uint32 { return g.store.Generation() }

func TestServerCommandConfirmsStateAfterMutation(t *testing.T) {
	e, transport, store := newTestEngine()
	store.SetVolume(100)

	raw, _ := json.Marshal(protocol.ServerCommandMessage{
		Player: &protocol.PlayerCommand{Command: "volume", Volume: 50},
	})
	if err := e.onServerCommand(raw); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := store.Snapshot().Volume; got != 50 {
		t.Fatalf("expected store volume updated to 50 before confirming message, got %d", got)
	}

	msg, ok := transport.lastSent()
	if !ok || msg.Type != "client/state" {
		t.Fatalf("expected a client/state confirmation, got %+v", msg)
	}
}

func TestStreamStartFirstTimeBumpsGenerationAndSetsPlaying(t *testing.T) {
	e, _, store := newTestEngine()

	raw, _ := json.Marshal(protocol.StreamStart{
		Player: &protocol.StreamStartPlayer{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 16},
	})
	if err := e.onStreamStart(raw); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := store.Snapshot()
	if !snap.IsPlaying {
		t.Error("expected is_playing=true after first stream/start")
	}
	if snap.StreamGeneration != 1 {
		t.Errorf("expected generation bumped to 1, got %d", snap.StreamGeneration)
	}
	if snap.CurrentFormat == nil || snap.CurrentFormat.SampleRate != 48000 {
		t.Errorf("expected format stored, got %+v", snap.CurrentFormat)
	}
}

func TestStreamStartFormatUpdateDoesNotBumpGeneration(t *testing.T) {
	e, _, store := newTestEngine()

	raw, _ := json.Marshal(protocol.StreamStart{
		Player: &protocol.StreamStartPlayer{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 16},
	})
	e.onStreamStart(raw)
	genAfterFirst := store.Generation()

	raw2, _ := json.Marshal(protocol.StreamStart{
		Player: &protocol.StreamStartPlayer{Codec: "pcm", SampleRate: 44100, Channels: 2, BitDepth: 16},
	})
	if err := e.onStreamStart(raw2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if store.Generation() != genAfterFirst {
		t.Errorf("expected generation unchanged on format update, had %d now %d", genAfterFirst, store.Generation())
	}
	if store.Snapshot().CurrentFormat.SampleRate != 44100 {
		t.Errorf("expected format replaced to 44100, got %+v", store.Snapshot().CurrentFormat)
	}
}

func TestUnsupportedCommandRejectedSynchronously(t *testing.T) {
	e, _, store := newTestEngine()
	store.MergeServerState(map[string]interface{}{
		"controller": map[string]interface{}{
			"supported_commands": []interface{}{"play", "pause"},
		},
	})

	err := e.SendCommand(protocol.ControllerCommand{Command: "shuffle"})
	if err == nil {
		t.Fatal("expected error for a command absent from supported_commands")
	}
}

func TestSupportedCommandTransmits(t *testing.T) {
	e, transport, store := newTestEngine()
	store.MergeServerState(map[string]interface{}{
		"controller": map[string]interface{}{
			"supported_commands": []interface{}{"play", "pause"},
		},
	})

	if err := e.SendCommand(protocol.ControllerCommand{Command: "play"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msg, ok := transport.lastSent()
	if !ok || msg.Type != "client/command" {
		t.Fatalf("expected client/command sent, got %+v", msg)
	}
}

func TestStreamEndClearsFormatAndSendsState(t *testing.T) {
	e, transport, store := newTestEngine()
	raw, _ := json.Marshal(protocol.StreamStart{
		Player: &protocol.StreamStartPlayer{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 16},
	})
	e.onStreamStart(raw)

	endRaw, _ := json.Marshal(protocol.StreamEnd{})
	if err := e.onStreamEnd(endRaw); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := store.Snapshot()
	if snap.IsPlaying {
		t.Error("expected is_playing=false after stream/end")
	}
	if snap.CurrentFormat != nil {
		t.Error("expected format cleared after stream/end")
	}
	msg, ok := transport.lastSent()
	if !ok || msg.Type != "client/state" {
		t.Fatalf("expected confirming client/state, got %+v", msg)
	}
}

func TestServerStateMergesIntoStore(t *testing.T) {
	e, _, store := newTestEngine()
	raw, _ := json.Marshal(map[string]interface{}{"metadata": map[string]interface{}{"title": "song"}})

	if err := e.onServerState(raw); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	v, ok := store.ServerStateValue("metadata")
	if !ok {
		t.Fatal("expected metadata key present")
	}
	if v.(map[string]interface{})["title"] != "song" {
		t.Errorf("expected title merged, got %v", v)
	}
}
