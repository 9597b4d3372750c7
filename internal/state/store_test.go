// ABOUTME: Tests for the session state aggregate
package state

import "testing"

type recordingObserver struct {
	notifications int
	last          Session
}

func (r *recordingObserver) OnStateChanged(s Session) {
	r.notifications++
	r.last = s
}

func TestSetVolumeClamps(t *testing.T) {
	s := New()
	s.SetVolume(150)
	if got := s.Snapshot().Volume; got != 100 {
		t.Errorf("expected clamp to 100, got %d", got)
	}

	s.SetVolume(-5)
	if got := s.Snapshot().Volume; got != 0 {
		t.Errorf("expected clamp to 0, got %d", got)
	}
}

func TestObserverNotifiedOnEverySetter(t *testing.T) {
	s := New()
	obs := &recordingObserver{}
	s.SetObserver(obs)

	s.SetVolume(42)
	s.SetMuted(true)
	s.SetIsPlaying(true)

	if obs.notifications != 3 {
		t.Fatalf("expected 3 notifications, got %d", obs.notifications)
	}
	if !obs.last.Muted || !obs.last.IsPlaying || obs.last.Volume != 42 {
		t.Errorf("unexpected final snapshot: %+v", obs.last)
	}
}

func TestResetStreamAnchorsBumpsGeneration(t *testing.T) {
	s := New()
	if s.Generation() != 0 {
		t.Fatalf("expected initial generation 0, got %d", s.Generation())
	}
	g1 := s.ResetStreamAnchors()
	g2 := s.ResetStreamAnchors()
	if g1 != 1 || g2 != 2 {
		t.Errorf("expected monotone generation bumps, got %d then %d", g1, g2)
	}
}

func TestMergeServerStatePersists(t *testing.T) {
	s := New()
	s.MergeServerState(map[string]interface{}{
		"controller": map[string]interface{}{"supported_commands": []interface{}{"play", "pause"}},
	})

	v, ok := s.ServerStateValue("controller")
	if !ok {
		t.Fatal("expected controller key present")
	}
	controller := v.(map[string]interface{})
	cmds := controller["supported_commands"].([]interface{})
	if len(cmds) != 2 {
		t.Errorf("expected 2 supported commands, got %v", cmds)
	}
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	s := New()
	s.MergeServerState(map[string]interface{}{"a": 1})

	snap := s.Snapshot()
	snap.ServerState["a"] = 999

	v, _ := s.ServerStateValue("a")
	if v != 1 {
		t.Errorf("mutating a snapshot should not affect the store, got %v", v)
	}
}
