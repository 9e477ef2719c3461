package camera

import (
	"time"

	"scancapture/internal/model"
)

// FrameSource is a head-mounted sensor rig (or a stand-in) that yields
// timestamped color/depth images with a camera-to-world pose.
type FrameSource interface {
	Initialize() error
	StartStream() error
	StopStream()
	HasNewFrame() bool
	LatestFrame() model.Frame
	SetResolution(width, height int)
	SetFPS(fps int)
	SetFlashlight(enabled bool)
	Intrinsics() model.Intrinsics
}

const (
	// PermissionTimeout bounds how long a device is given to become available.
	PermissionTimeout = 60 * time.Second
	PermissionPoll    = 500 * time.Millisecond
)

// WaitForPermission polls probe until it succeeds or timeout passes.
func WaitForPermission(timeout, poll time.Duration, probe func() bool) bool {
	deadline := time.Now().Add(timeout)
	for {
		if probe() {
			return true
		}
		if !time.Now().Before(deadline) {
			return false
		}
		time.Sleep(poll)
	}
}

// DefaultIntrinsics approximates a passthrough camera when the device reports none.
func DefaultIntrinsics(width, height int) model.Intrinsics {
	focal := float64(width) * 1000 / 1280
	return model.Intrinsics{
		Width:  width,
		Height: height,
		Fx:     focal,
		Fy:     focal,
		Cx:     float64(width) / 2,
		Cy:     float64(height) / 2,
	}
}
