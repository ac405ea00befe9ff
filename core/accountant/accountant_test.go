package accountant

import "testing"

// DeltaAround requires a live COM device and is exercised only by the
// interceptor/registry's integration-level behavior; these tests cover the
// pure bookkeeping that doesn't need one.

func TestAddSubtractRoundTrip(t *testing.T) {
	a := New()
	a.Add(5)
	if got := a.Count(); got != 5 {
		t.Fatalf("Count() = %d, want 5", got)
	}
	a.Subtract(5)
	if got := a.Count(); got != 0 {
		t.Fatalf("Count() = %d, want 0 after clear; clear is idempotent", got)
	}
}

func TestAddIgnoresNonPositiveDelta(t *testing.T) {
	a := New()
	a.Add(-3)
	a.Add(0)
	if got := a.Count(); got != 0 {
		t.Errorf("Count() = %d, want 0", got)
	}
}

func TestSubtractClampsToZero(t *testing.T) {
	a := New()
	a.Add(2)
	a.Subtract(10)
	if got := a.Count(); got != 0 {
		t.Errorf("Count() = %d, want 0 (clamped, never underflow)", got)
	}
}

func TestReset(t *testing.T) {
	a := New()
	a.Add(7)
	a.Reset()
	if got := a.Count(); got != 0 {
		t.Errorf("Count() = %d, want 0 after Reset", got)
	}
}

func TestIsDeviceAboutToDie(t *testing.T) {
	a := New()
	a.Add(3)
	if a.IsDeviceAboutToDie(3) {
		t.Errorf("postRC == tracked count should not be about-to-die")
	}
	if !a.IsDeviceAboutToDie(4) {
		t.Errorf("postRC == tracked+1 should be about-to-die")
	}
	if a.IsDeviceAboutToDie(5) {
		t.Errorf("postRC > tracked+1 should not be about-to-die")
	}
}
