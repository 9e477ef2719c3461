package dto

// ScanStatus is pushed to viewers over the status websocket and returned by /api/scan/status.
type ScanStatus struct {
	State        string  `json:"state"`
	Mode         string  `json:"mode"`
	SessionID    string  `json:"session_id,omitempty"`
	Countdown    int     `json:"countdown"`
	FrameCount   int     `json:"frame_count"`
	PendingSaves int     `json:"pending_saves"`
	TargetFPS    float32 `json:"target_fps"`
	Message      string  `json:"message,omitempty"`
}

// SettingsUpdate is the body of PUT /api/scan/settings. Nil fields are left unchanged.
type SettingsUpdate struct {
	Mode       *string  `json:"mode,omitempty"`
	Width      *int     `json:"width,omitempty"`
	Height     *int     `json:"height,omitempty"`
	TargetFPS  *float32 `json:"target_fps,omitempty"`
	Flashlight *bool    `json:"flashlight,omitempty"`
	StartDelay *int     `json:"start_delay,omitempty"`
}
