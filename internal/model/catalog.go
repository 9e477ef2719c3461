package model

import "time"

// SessionRecord represents a finalized session in the catalog database.
type SessionRecord struct {
	ID         int64     `json:"id"`
	ScanID     string    `json:"scan_id"`
	Mode       string    `json:"mode"`
	Dir        string    `json:"dir"`
	FrameCount int       `json:"frame_count"`
	StartedAt  time.Time `json:"started_at"`
	StoppedAt  time.Time `json:"stopped_at"`
	HasScene   bool      `json:"has_scene"`
}

// FrameRecord represents one frame row of a cataloged session.
type FrameRecord struct {
	ID        int64   `json:"id"`
	SessionID int64   `json:"session_id"`
	FrameID   int     `json:"frame_id"`
	Timestamp float64 `json:"timestamp"`
	ColorFile string  `json:"color_file"`
	DepthFile string  `json:"depth_file"`
}
