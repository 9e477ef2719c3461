package scheduler

import "time"

// CaptureScheduler gates captures to a target frame rate. It is driven by the
// caller's tick loop and depends only on the times passed in, so a sequence of
// ticks can be replayed exactly.
type CaptureScheduler struct {
	targetFPS   float32
	interval    time.Duration
	lastCapture time.Time
	running     bool
}

// New creates a stopped scheduler. fps <= 0 means uncapped.
func New(fps float32) *CaptureScheduler {
	s := &CaptureScheduler{}
	s.SetTargetFPS(fps)
	return s
}

// SetTargetFPS recomputes the interval. The last capture time is kept, so while
// running the next due time shifts to lastCapture + new interval.
func (s *CaptureScheduler) SetTargetFPS(fps float32) {
	s.targetFPS = fps
	s.interval = intervalFor(fps)
}

// Start arms the scheduler so that the first tick at or after now captures.
func (s *CaptureScheduler) Start(now time.Time) {
	s.interval = intervalFor(s.targetFPS)
	s.lastCapture = now.Add(-s.interval)
	s.running = true
}

func (s *CaptureScheduler) Stop() {
	s.running = false
}

// Tick reports whether a capture is due at now. A positive answer consumes the slot.
func (s *CaptureScheduler) Tick(now time.Time) bool {
	if !s.running {
		return false
	}
	if s.interval <= 0 {
		return true
	}
	if now.Sub(s.lastCapture) >= s.interval {
		s.lastCapture = now
		return true
	}
	return false
}

func (s *CaptureScheduler) Running() bool {
	return s.running
}

func (s *CaptureScheduler) TargetFPS() float32 {
	return s.targetFPS
}

func (s *CaptureScheduler) Interval() time.Duration {
	return s.interval
}

func intervalFor(fps float32) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(fps))
}
