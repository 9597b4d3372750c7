// ABOUTME: Tests for the offset/drift estimator
package timesync

import (
	"math/rand"
	"testing"
)

func TestFirstSampleInitializesNotSynchronized(t *testing.T) {
	f := NewFilter(DefaultConfig())
	if f.IsSynchronized() {
		t.Fatal("should not be synchronized before any sample")
	}

	ok := f.Observe(5000, 1000, 1_000_000)
	if !ok {
		t.Fatal("first sample should always be accepted")
	}
	if f.IsSynchronized() {
		t.Error("should not be synchronized after only one sample")
	}
	if f.Offset() != 5000 {
		t.Errorf("expected offset 5000, got %v", f.Offset())
	}
}

func TestSecondSampleFlipsSynchronized(t *testing.T) {
	f := NewFilter(DefaultConfig())
	f.Observe(5000, 1000, 1_000_000)
	f.Observe(5200, 1000, 2_000_000)

	if !f.IsSynchronized() {
		t.Fatal("expected synchronized after second plausible sample")
	}
}

func TestOutlierMaxErrorRejected(t *testing.T) {
	f := NewFilter(DefaultConfig())
	f.Observe(5000, 1000, 1_000_000)

	ok := f.Observe(50_000, 500_000, 2_000_000)
	if ok {
		t.Fatal("expected outlier max_error to be rejected")
	}
	if f.Offset() != 5000 {
		t.Errorf("offset should be unchanged by a rejected sample, got %v", f.Offset())
	}
}

func TestLargeInnovationDoesNotSnapOffset(t *testing.T) {
	f := NewFilter(DefaultConfig())
	f.Observe(5000, 500, 1_000_000)
	f.Observe(5100, 500, 2_000_000)
	f.Observe(5050, 500, 3_000_000)

	before := f.Offset()
	// A wild outlier measurement, but with a small reported max_error so
	// it isn't rejected by the outlier cap alone; it should still be
	// rejected by the innovation check.
	f.Observe(500_000, 500, 4_000_000)

	after := f.Offset()
	if after != before {
		t.Errorf("large-innovation sample should have been rejected, offset moved from %v to %v", before, after)
	}
}

func TestNonMonotonicSampleRejected(t *testing.T) {
	f := NewFilter(DefaultConfig())
	f.Observe(5000, 500, 2_000_000)
	ok := f.Observe(5000, 500, 1_000_000)
	if ok {
		t.Fatal("expected non-monotonic sample to be rejected")
	}
}

// TestComputeClientTimeMonotone checks property P2: compute_client_time is
// monotone increasing in t_server for any fixed filter state.
func TestComputeClientTimeMonotone(t *testing.T) {
	f := NewFilter(DefaultConfig())
	f.Observe(5000, 500, 1_000_000)
	f.Observe(5200, 500, 5_000_000)
	f.Observe(5100, 500, 9_000_000)

	rng := rand.New(rand.NewSource(42))
	localNow := int64(20_000_000)

	prevServer := int64(0)
	prevClient := f.ComputeClientTimeAt(prevServer, localNow)
	for i := 0; i < 1000; i++ {
		nextServer := prevServer + int64(rng.Intn(10_000)+1)
		nextClient := f.ComputeClientTimeAt(nextServer, localNow)
		if nextClient <= prevClient {
			t.Fatalf("compute_client_time not monotone: t_server %d -> %d, t_local %d -> %d",
				prevServer, nextServer, prevClient, nextClient)
		}
		prevServer, prevClient = nextServer, nextClient
	}
}

func TestResetClearsState(t *testing.T) {
	f := NewFilter(DefaultConfig())
	f.Observe(5000, 500, 1_000_000)
	f.Observe(5200, 500, 2_000_000)

	f.Reset()

	if f.IsSynchronized() {
		t.Error("expected not synchronized after reset")
	}
	if f.Offset() != 0 || f.Drift() != 0 {
		t.Error("expected offset/drift cleared after reset")
	}
}

func TestSteadyStateErrorShrinksOnStableLAN(t *testing.T) {
	f := NewFilter(DefaultConfig())
	rng := rand.New(rand.NewSource(7))

	t4 := int64(0)
	for i := 0; i < 200; i++ {
		t4 += 1_000_000 // one sample per second
		jitter := float64(rng.Intn(200) - 100)
		f.Observe(5000+jitter, 800, t4)
	}

	if !f.IsSynchronized() {
		t.Fatal("expected synchronized after many stable samples")
	}
	if f.Error() > 800 {
		t.Errorf("expected steady-state error to shrink below initial max_error, got %v", f.Error())
	}
}
