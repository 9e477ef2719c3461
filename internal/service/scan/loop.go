package scan

import (
	"context"
	"errors"
	"time"

	"scancapture/internal/dto"
	"scancapture/internal/logger"
)

var ErrLoopStopped = errors.New("scan loop stopped")

// StatusPublisher receives the machine status whenever it changes.
type StatusPublisher interface {
	PublishStatus(status dto.ScanStatus)
}

// Loop is the single goroutine that owns a Machine. Everything that touches
// the machine, ticks and control calls alike, runs here.
type Loop struct {
	machine   *Machine
	interval  time.Duration
	publisher StatusPublisher
	logger    *logger.Logger

	calls chan func(*Machine)
	done  chan struct{}
	last  dto.ScanStatus
}

func NewLoop(machine *Machine, interval time.Duration, publisher StatusPublisher, logger *logger.Logger) *Loop {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	return &Loop{
		machine:   machine,
		interval:  interval,
		publisher: publisher,
		logger:    logger,
		calls:     make(chan func(*Machine)),
		done:      make(chan struct{}),
	}
}

// Run ticks the machine until ctx is cancelled, then finalizes any active
// session regardless of stop guards.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Info("Scan loop running every %v", l.interval)
	l.publish(true)

	for {
		select {
		case <-ctx.Done():
			l.machine.Shutdown()
			l.publish(false)
			l.logger.Info("Scan loop stopped")
			return ctx.Err()
		case fn := <-l.calls:
			fn(l.machine)
			l.publish(false)
		case <-ticker.C:
			l.machine.Tick()
			l.publish(false)
		}
	}
}

// Do runs fn on the loop goroutine and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func(*Machine)) error {
	finished := make(chan struct{})
	call := func(m *Machine) {
		defer close(finished)
		fn(m)
	}

	select {
	case l.calls <- call:
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrLoopStopped
	}
}

// Status fetches the current status through the loop.
func (l *Loop) Status(ctx context.Context) (dto.ScanStatus, error) {
	var st dto.ScanStatus
	err := l.Do(ctx, func(m *Machine) { st = m.Status() })
	return st, err
}

func (l *Loop) publish(force bool) {
	if l.publisher == nil {
		return
	}
	st := l.machine.Status()
	if !force && st == l.last {
		return
	}
	l.last = st
	l.publisher.PublishStatus(st)
}
