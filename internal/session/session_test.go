// ABOUTME: Tests for session wiring defaults
package session

import (
	"testing"
	"time"
)

func TestNewDefaultsDialTimeout(t *testing.T) {
	s := New(Config{ServerURL: "ws://localhost:8927/sendspin"})
	if s.cfg.DialTimeout != 5*time.Second {
		t.Errorf("expected default dial timeout of 5s, got %v", s.cfg.DialTimeout)
	}
}

func TestNewPreservesExplicitDialTimeout(t *testing.T) {
	s := New(Config{ServerURL: "ws://localhost:8927/sendspin", DialTimeout: 2 * time.Second})
	if s.cfg.DialTimeout != 2*time.Second {
		t.Errorf("expected dial timeout preserved at 2s, got %v", s.cfg.DialTimeout)
	}
}

func TestEngineConfigCarriesIntervalsWhenSet(t *testing.T) {
	cfg := Config{SyncInterval: 1 * time.Second, StateInterval: 2 * time.Second}
	ec := cfg.engineConfig()
	if ec.SyncInterval != 1*time.Second || ec.StateInterval != 2*time.Second {
		t.Errorf("expected intervals carried through, got sync=%v state=%v", ec.SyncInterval, ec.StateInterval)
	}
}

func TestEngineConfigFallsBackToDefaultIntervals(t *testing.T) {
	cfg := Config{}
	ec := cfg.engineConfig()
	if ec.SyncInterval != 5*time.Second || ec.StateInterval != 5*time.Second {
		t.Errorf("expected default 5s intervals, got sync=%v state=%v", ec.SyncInterval, ec.StateInterval)
	}
}

func TestNewInitializesStore(t *testing.T) {
	s := New(Config{ServerURL: "ws://localhost:8927/sendspin"})
	if s.Store == nil {
		t.Fatal("expected Store initialized")
	}
	if got := s.Store.Snapshot().Volume; got != 100 {
		t.Errorf("expected default volume 100, got %d", got)
	}
}
