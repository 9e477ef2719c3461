package config

import (
	"time"

	"scancapture/internal/model"
)

const (
	MinTargetFPS  = 1
	MaxTargetFPS  = 60
	MaxStartDelay = 10 * time.Second
)

// LiveSettings is the mutable capture configuration. A session never reads it
// directly; it works from the SessionSettings snapshot taken at start.
type LiveSettings struct {
	Mode       model.ScanMode
	Width      int
	Height     int
	TargetFPS  float32
	Flashlight bool
	StartDelay time.Duration
}

// Validate returns a copy with FPS and start delay clamped to their ranges
// and a non-positive resolution replaced by 1280x720.
func (l LiveSettings) Validate() LiveSettings {
	if l.TargetFPS < MinTargetFPS {
		l.TargetFPS = MinTargetFPS
	}
	if l.TargetFPS > MaxTargetFPS {
		l.TargetFPS = MaxTargetFPS
	}
	if l.StartDelay < 0 {
		l.StartDelay = 0
	}
	if l.StartDelay > MaxStartDelay {
		l.StartDelay = MaxStartDelay
	}
	if l.Width <= 0 || l.Height <= 0 {
		l.Width, l.Height = 1280, 720
	}
	return l
}

// Snapshot freezes the capture-relevant fields for a new session.
func (l LiveSettings) Snapshot() model.SessionSettings {
	return model.SessionSettings{
		Width:      l.Width,
		Height:     l.Height,
		TargetFPS:  l.TargetFPS,
		Flashlight: l.Flashlight,
	}
}
