package opencv

import (
	"scancapture/internal/clock"
	"scancapture/internal/config"
	"scancapture/internal/logger"
	"scancapture/internal/service/camera"
)

// OpenSource returns a webcam-backed source for cfg.CameraDevice, or a synthetic
// source when no device is configured or the device never becomes available.
func OpenSource(cfg *config.Config, clk clock.Clock, log *logger.Logger) camera.FrameSource {
	synthetic := func() camera.FrameSource {
		src := camera.NewSyntheticSource(clk, camera.DepthChain{camera.NewSyntheticDepth()})
		src.SetResolution(cfg.Live.Width, cfg.Live.Height)
		if err := src.Initialize(); err != nil {
			log.Error("Synthetic source failed to initialize: %v", err)
		}
		return src
	}

	if cfg.CameraDevice < 0 {
		log.Info("No camera device configured, using synthetic frames")
		return synthetic()
	}

	cam := NewWebcamSource(cfg.CameraDevice, camera.DepthChain{}, log)
	cam.SetResolution(cfg.Live.Width, cfg.Live.Height)
	granted := camera.WaitForPermission(camera.PermissionTimeout, camera.PermissionPoll, func() bool {
		return cam.Initialize() == nil
	})
	if !granted {
		log.Warning("Camera device %d unavailable after %v, falling back to synthetic frames", cfg.CameraDevice, camera.PermissionTimeout)
		cam.Close()
		return synthetic()
	}

	log.Info("📷 Camera device %d initialized", cfg.CameraDevice)
	return cam
}
