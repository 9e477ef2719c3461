package scan

import (
	"time"

	"scancapture/internal/logger"
)

type roomEvent int

const (
	eventModelLoaded roomEvent = iota
	eventNoModel
	eventNewModelAvailable
)

func (e roomEvent) String() string {
	switch e {
	case eventModelLoaded:
		return "model loaded"
	case eventNoModel:
		return "no model"
	case eventNewModelAvailable:
		return "new model available"
	}
	return "unknown"
}

// roomListener forwards room signals from whatever goroutine the gateway uses
// to the machine, which reads them on its next Tick.
type roomListener struct {
	events chan<- roomEvent
	log    *logger.Logger
}

func (l *roomListener) OnModelLoaded()       { l.send(eventModelLoaded) }
func (l *roomListener) OnNoModel()           { l.send(eventNoModel) }
func (l *roomListener) OnNewModelAvailable() { l.send(eventNewModelAvailable) }

func (l *roomListener) send(ev roomEvent) {
	select {
	case l.events <- ev:
	default:
		l.log.Warning("Room event queue full, dropping %s", ev)
	}
}

func (m *Machine) handleEvents(now time.Time) {
	for {
		select {
		case ev := <-m.events:
			m.handleEvent(ev, now)
		default:
			return
		}
	}
}

func (m *Machine) handleEvent(ev roomEvent, now time.Time) {
	if m.state != StateSpaceAwaitingGeometry || m.session == nil {
		return
	}
	switch ev {
	case eventModelLoaded:
		m.log.Info("Room model loaded")
		m.captureGeometry()
		m.enterAppearance(now, now)
	case eventNewModelAvailable:
		if err := m.deps.Gateway.LoadModel(); err != nil {
			m.log.Error("Room model load failed: %v", err)
		}
	case eventNoModel:
		m.log.Info("Room subsystem reports no model yet")
	}
}

// drainEvents discards signals left over from an earlier session.
func (m *Machine) drainEvents() {
	for {
		select {
		case <-m.events:
		default:
			return
		}
	}
}
