package scheduler

import (
	"math"
	"testing"
	"time"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func countCaptures(s *CaptureScheduler, start time.Time, duration, step time.Duration) int {
	count := 0
	for elapsed := time.Duration(0); elapsed <= duration; elapsed += step {
		if s.Tick(start.Add(elapsed)) {
			count++
		}
	}
	return count
}

func TestScheduler_FirstTickCaptures(t *testing.T) {
	s := New(5)
	s.Start(t0)

	if !s.Tick(t0) {
		t.Fatal("first tick after Start should capture")
	}
	if s.Tick(t0.Add(10 * time.Millisecond)) {
		t.Error("tick 10ms later should not capture at 5 FPS")
	}
}

func TestScheduler_CaptureCountMatchesFloorFormula(t *testing.T) {
	tests := []struct {
		fps      float32
		duration time.Duration
		step     time.Duration
	}{
		{5, 2200 * time.Millisecond, 50 * time.Millisecond},
		{10, 3 * time.Second, 10 * time.Millisecond},
		{4, 5 * time.Second, 50 * time.Millisecond},
		{2, 1900 * time.Millisecond, 100 * time.Millisecond},
		{1, 10 * time.Second, 250 * time.Millisecond},
	}

	for _, tt := range tests {
		s := New(tt.fps)
		s.Start(t0)
		got := countCaptures(s, t0, tt.duration, tt.step)
		want := int(math.Floor(tt.duration.Seconds()*float64(tt.fps))) + 1
		if got != want {
			t.Errorf("fps=%v duration=%v: got %d captures, want %d", tt.fps, tt.duration, got, want)
		}
	}
}

func TestScheduler_UncappedCapturesEveryTick(t *testing.T) {
	s := New(0)
	s.Start(t0)

	for i := 0; i < 20; i++ {
		if !s.Tick(t0.Add(time.Duration(i) * time.Millisecond)) {
			t.Fatalf("tick %d: uncapped scheduler should always capture", i)
		}
	}
}

func TestScheduler_StoppedNeverCaptures(t *testing.T) {
	s := New(30)
	if s.Tick(t0) {
		t.Error("scheduler that was never started should not capture")
	}

	s.Start(t0)
	s.Stop()
	if s.Tick(t0.Add(time.Second)) {
		t.Error("stopped scheduler should not capture")
	}
	if s.Running() {
		t.Error("Running() should be false after Stop")
	}
}

func TestScheduler_SetTargetFPSKeepsLastCapture(t *testing.T) {
	s := New(2) // 500ms
	s.Start(t0)
	if !s.Tick(t0) {
		t.Fatal("expected immediate capture")
	}

	s.SetTargetFPS(10) // 100ms, measured from the capture at t0
	if s.Tick(t0.Add(50 * time.Millisecond)) {
		t.Error("50ms after last capture should not be due at 10 FPS")
	}
	if !s.Tick(t0.Add(100 * time.Millisecond)) {
		t.Error("100ms after last capture should be due at 10 FPS")
	}
	if s.Interval() != 100*time.Millisecond {
		t.Errorf("interval = %v, want 100ms", s.Interval())
	}
}

func TestScheduler_ReplayIsDeterministic(t *testing.T) {
	run := func() []bool {
		s := New(7)
		s.Start(t0)
		var out []bool
		for i := 0; i < 200; i++ {
			out = append(out, s.Tick(t0.Add(time.Duration(i)*13*time.Millisecond)))
		}
		return out
	}

	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("replay diverged at tick %d", i)
		}
	}
}
