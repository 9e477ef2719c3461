package dto

import "time"

// SessionFilters contains filtering options for querying cataloged sessions.
type SessionFilters struct {
	Mode          string
	StartedAfter  time.Time
	StartedBefore time.Time
	MinFrames     int
	Limit         int
	Offset        int
}

// SessionsPage is the response of GET /api/sessions.
type SessionsPage struct {
	Sessions   []SessionInfo `json:"sessions"`
	Page       int           `json:"page"`
	TotalPages int           `json:"total_pages"`
	TotalCount int           `json:"total_count"`
}

type SessionInfo struct {
	ScanID     string    `json:"scan_id"`
	Mode       string    `json:"mode"`
	FrameCount int       `json:"frame_count"`
	StartedAt  time.Time `json:"started_at"`
	StoppedAt  time.Time `json:"stopped_at"`
	HasScene   bool      `json:"has_scene"`
	Size       string    `json:"size,omitempty"`
}

// ArchiveStatus reports the background session archive export.
type ArchiveStatus struct {
	Exporting  bool    `json:"exporting"`
	Progress   float64 `json:"progress"`
	LastExport string  `json:"last_export,omitempty"`
	LastError  string  `json:"last_error,omitempty"`
}
