// ABOUTME: Session state aggregate with explicit setters and a single observer
// ABOUTME: Owns volume/mute/format/generation and diff-merged server/group state
package state

import "sync"

// PlayerState is the session's coarse health flag, reported in
// client/state messages.
type PlayerState string

const (
	PlayerStateSynchronized PlayerState = "synchronized"
	PlayerStateError        PlayerState = "error"
)

// Format mirrors the negotiated stream format, cached so a format
// update (stream/start with no clear) can be told apart from a fresh
// stream.
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// Observer is notified after every mutation. It is intentionally a
// single method: callers that need to react differently to different
// fields inspect the Session snapshot themselves.
type Observer interface {
	OnStateChanged(s Session)
}

// Session is an immutable snapshot of Store's fields, handed to
// Observer.OnStateChanged and safe to read without further locking.
type Session struct {
	Volume           int
	Muted            bool
	PlayerState      PlayerState
	IsPlaying        bool
	CurrentFormat    *Format
	StreamGeneration uint32
	ServerState      map[string]interface{}
	GroupState       map[string]interface{}
}

// Store is a plain aggregate with explicit setters that notify a
// single observer after every change. Nothing outside Store mutates
// its fields directly.
type Store struct {
	mu sync.RWMutex

	observer Observer

	volume           int
	muted            bool
	playerState      PlayerState
	isPlaying        bool
	currentFormat    *Format
	streamGeneration uint32
	serverState      map[string]interface{}
	groupState       map[string]interface{}
}

// New creates a Store with volume 100, unmuted, and no observer.
func New() *Store {
	return &Store{
		volume:      100,
		playerState: PlayerStateError,
		serverState: map[string]interface{}{},
		groupState:  map[string]interface{}{},
	}
}

// SetObserver installs the single observer; subsequent setters notify
// it. Passing nil silences notifications.
func (s *Store) SetObserver(o Observer) {
	s.mu.Lock()
	s.observer = o
	s.mu.Unlock()
}

func (s *Store) notify() {
	if s.observer != nil {
		s.observer.OnStateChanged(s.snapshotLocked())
	}
}

func (s *Store) snapshotLocked() Session {
	return Session{
		Volume:           s.volume,
		Muted:            s.muted,
		PlayerState:      s.playerState,
		IsPlaying:        s.isPlaying,
		CurrentFormat:    s.currentFormat,
		StreamGeneration: s.streamGeneration,
		ServerState:      cloneMap(s.serverState),
		GroupState:       cloneMap(s.groupState),
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// SetVolume clamps to [0,100] before storing.
func (s *Store) SetVolume(v int) {
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	s.mu.Lock()
	s.volume = v
	s.notify()
	s.mu.Unlock()
}

func (s *Store) SetMuted(m bool) {
	s.mu.Lock()
	s.muted = m
	s.notify()
	s.mu.Unlock()
}

func (s *Store) SetPlayerState(p PlayerState) {
	s.mu.Lock()
	s.playerState = p
	s.notify()
	s.mu.Unlock()
}

func (s *Store) SetIsPlaying(playing bool) {
	s.mu.Lock()
	s.isPlaying = playing
	s.notify()
	s.mu.Unlock()
}

// SetFormat replaces the current format without touching
// stream_generation; callers decide separately whether a generation
// bump is warranted (fresh stream vs. format update).
func (s *Store) SetFormat(f *Format) {
	s.mu.Lock()
	s.currentFormat = f
	s.notify()
	s.mu.Unlock()
}

// Generation returns the current stream generation.
func (s *Store) Generation() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streamGeneration
}

// ResetStreamAnchors bumps stream_generation, the mechanism by which
// the Scheduler and Decode Front-end drop stale in-flight work after
// a seek or stream end.
func (s *Store) ResetStreamAnchors() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamGeneration++
	gen := s.streamGeneration
	s.notify()
	return gen
}

// MergeServerState applies an RFC-7396-style diff merge, exactly one
// level deep, to the cached server_state object.
func (s *Store) MergeServerState(diff map[string]interface{}) {
	s.mu.Lock()
	s.serverState = Merge(s.serverState, diff)
	s.notify()
	s.mu.Unlock()
}

// MergeGroupState is MergeServerState's counterpart for group_state.
func (s *Store) MergeGroupState(diff map[string]interface{}) {
	s.mu.Lock()
	s.groupState = Merge(s.groupState, diff)
	s.notify()
	s.mu.Unlock()
}

// ServerStateValue reads one key of the cached server_state, e.g. the
// controller's supported_commands list.
func (s *Store) ServerStateValue(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.serverState[key]
	return v, ok
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
