package model

import (
	"fmt"
	"strings"
	"time"
)

// ScanMode selects between continuous object capture and two-phase room capture.
type ScanMode int

const (
	ModeObject ScanMode = iota
	ModeSpace
)

func (m ScanMode) String() string {
	switch m {
	case ModeObject:
		return "Object"
	case ModeSpace:
		return "Space"
	default:
		return fmt.Sprintf("ScanMode(%d)", int(m))
	}
}

// ParseScanMode accepts "object" or "space" in any case.
func ParseScanMode(s string) (ScanMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "object":
		return ModeObject, nil
	case "space":
		return ModeSpace, nil
	}
	return ModeObject, fmt.Errorf("unknown scan mode %q", s)
}

func (m ScanMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *ScanMode) UnmarshalText(b []byte) error {
	mode, err := ParseScanMode(string(b))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// SessionSettings is the capture configuration frozen when a session starts.
type SessionSettings struct {
	Width      int
	Height     int
	TargetFPS  float32
	Flashlight bool
}

// FrameMetadata is what a session keeps in memory for each captured frame.
// Image bytes are handed to the persistence queue and not retained.
type FrameMetadata struct {
	FrameID   uint32
	Timestamp float64
	ColorFile string
	DepthFile string
	Pose      Mat4
}

// Session is one capture run. Only the state machine mutates it.
type Session struct {
	ID         string
	Mode       ScanMode
	Settings   SessionSettings
	Intrinsics Intrinsics
	Dir        string
	StartedAt  time.Time
	Frames     []FrameMetadata
}

// NextFrameID returns the id the next appended frame will get.
func (s *Session) NextFrameID() uint32 {
	return uint32(len(s.Frames))
}

// AppendFrame records frame metadata in capture order.
func (s *Session) AppendFrame(meta FrameMetadata) {
	s.Frames = append(s.Frames, meta)
}

// SaveRequest is a unit of pending disk I/O.
type SaveRequest struct {
	Path string
	Data []byte
}
