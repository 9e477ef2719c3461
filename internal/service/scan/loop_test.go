package scan

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"scancapture/internal/dto"
	"scancapture/internal/logger"
	"scancapture/internal/model"
)

type statusSink struct {
	mu       sync.Mutex
	statuses []dto.ScanStatus
}

func (s *statusSink) PublishStatus(st dto.ScanStatus) {
	s.mu.Lock()
	s.statuses = append(s.statuses, st)
	s.mu.Unlock()
}

func (s *statusSink) states() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.statuses))
	for _, st := range s.statuses {
		out = append(out, st.State)
	}
	return out
}

func TestLoop_DoRunsOnLoopAndPublishes(t *testing.T) {
	h := newHarness(t, model.ModeObject, 5, 0)
	sink := &statusSink{}
	loop := NewLoop(h.machine, time.Millisecond, sink, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- loop.Run(ctx) }()

	var startErr error
	if err := loop.Do(context.Background(), func(m *Machine) { startErr = m.StartScan() }); err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if startErr != nil {
		t.Fatalf("StartScan failed: %v", startErr)
	}

	st, err := loop.Status(context.Background())
	if err != nil || st.State != "ObjectCapturing" {
		t.Fatalf("Unexpected status %+v (%v)", st, err)
	}

	cancel()
	select {
	case err := <-result:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Loop did not stop")
	}

	if h.machine.State() != StateIdle || h.machine.LastSession() == nil {
		t.Error("Loop shutdown should finalize the active session")
	}

	states := sink.states()
	if len(states) < 3 || states[0] != "Idle" || states[len(states)-1] != "Idle" {
		t.Errorf("Unexpected published states: %v", states)
	}
	for i := 1; i < len(sink.statuses); i++ {
		if sink.statuses[i] == sink.statuses[i-1] {
			t.Errorf("Duplicate status published at %d", i)
		}
	}

	if err := loop.Do(context.Background(), func(*Machine) {}); !errors.Is(err, ErrLoopStopped) {
		t.Errorf("Expected ErrLoopStopped after shutdown, got %v", err)
	}
}

func TestLoop_DoHonoursContext(t *testing.T) {
	h := newHarness(t, model.ModeObject, 5, 0)
	loop := NewLoop(h.machine, time.Millisecond, nil, logger.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := loop.Do(ctx, func(*Machine) {}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline error without a running loop, got %v", err)
	}
}
