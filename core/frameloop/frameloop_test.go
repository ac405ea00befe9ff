package frameloop

import (
	"testing"
	"time"
)

// TestLowFramerateHysteresis drives updateFPS directly (bypassing the
// worker-pool-backed mod-load path, which needs a live device): min_fps=60,
// smoothed fps falling to 45 enters low-framerate, and only smoothed fps >
// 60*1.21 exits it.
func TestLowFramerateHysteresis(t *testing.T) {
	l := &Loop{minFPS: 60}
	base := time.Unix(0, 0)

	driveWindow := func(fps float64, at time.Time) time.Time {
		step := time.Duration(float64(time.Second) / fps)
		for i := 0; i < fpsWindowFrames; i++ {
			at = at.Add(step)
			l.updateFPS(at)
		}
		return at
	}

	at := driveWindow(45, base)
	if !l.lowFramerate {
		t.Fatalf("expected low_framerate after a 45fps window under min_fps=60")
	}

	// Below the 72.6 hysteresis threshold: stays low.
	at = driveWindow(65, at)
	if !l.lowFramerate {
		t.Errorf("expected low_framerate to persist below the 1.21x hysteresis threshold")
	}

	// Four 80fps windows lift the smoothed fps from ~51.4 to ~73.1, above
	// the threshold: exits.
	for i := 0; i < 4; i++ {
		at = driveWindow(80, at)
	}
	if l.lowFramerate {
		t.Errorf("expected low_framerate to clear once smoothed fps exceeds min_fps*1.21")
	}
}

func TestSnapshotWindowCloses(t *testing.T) {
	l := &Loop{}
	start := time.Unix(0, 0)
	l.StartSnapshot(start)
	if !l.IsSnapping() {
		t.Fatalf("expected IsSnapping after StartSnapshot")
	}

	l.mu.Lock()
	l.closeExpiredSnapshot(start.Add(100 * time.Millisecond))
	stillOpen := l.isSnapping
	l.mu.Unlock()
	if !stillOpen {
		t.Errorf("expected snapshot window still open before 250ms elapse")
	}

	l.mu.Lock()
	l.closeExpiredSnapshot(start.Add(250 * time.Millisecond))
	closed := !l.isSnapping
	l.mu.Unlock()
	if !closed {
		t.Errorf("expected snapshot window closed at/after 250ms")
	}
}

func TestOnDrawProbeCadence(t *testing.T) {
	l := &Loop{}
	now := time.Unix(0, 0)
	due := 0
	for i := 0; i < gen11ProbeInterval*2; i++ {
		if l.OnDraw(now) {
			due++
		}
	}
	if due != 2 {
		t.Errorf("expected exactly 2 probe-due draws across %d draws, got %d", gen11ProbeInterval*2, due)
	}
}

func TestOnDrawPollsInputOnlyWhileForeground(t *testing.T) {
	polls := 0
	fore := false
	l := &Loop{
		inputPoll:  func() { polls++ },
		foreground: func() bool { return fore },
	}
	now := time.Unix(0, 0)

	for i := 0; i < inputPollInterval*2; i++ {
		l.OnDraw(now)
	}
	if polls != 0 {
		t.Errorf("expected no input polls while backgrounded, got %d", polls)
	}

	fore = true
	for i := 0; i < inputPollInterval*2; i++ {
		l.OnDraw(now)
	}
	if polls != 2 {
		t.Errorf("expected exactly 2 input polls across %d draws once foreground, got %d", inputPollInterval*2, polls)
	}
}

func TestStartSnapshotIdempotentWhileOpen(t *testing.T) {
	l := &Loop{}
	t0 := time.Unix(0, 0)
	l.StartSnapshot(t0)
	t1 := t0.Add(100 * time.Millisecond)
	l.StartSnapshot(t1)
	if !l.IsSnapping() {
		t.Fatalf("expected still snapping")
	}
	l.mu.Lock()
	got := l.snapStart
	l.mu.Unlock()
	if !got.Equal(t0) {
		t.Errorf("expected re-calling StartSnapshot while open to keep the window started at t0, got %v", got)
	}
}
