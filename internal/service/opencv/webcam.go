package opencv

import (
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"scancapture/internal/logger"
	"scancapture/internal/model"
	"scancapture/internal/service/camera"
)

// WebcamSource reads color frames from a local capture device through OpenCV.
// It has no head tracking, so poses come from PoseFunc (identity by default).
type WebcamSource struct {
	device int
	depth  camera.DepthChain
	logger *logger.Logger

	PoseFunc func() model.Mat4

	mu        sync.Mutex
	capture   *gocv.VideoCapture
	latest    gocv.Mat
	hasLatest bool
	hasNew    bool
	width     int
	height    int
	fps       int
	started   time.Time
	stop      chan struct{}
	done      chan struct{}
}

func NewWebcamSource(device int, depth camera.DepthChain, logger *logger.Logger) *WebcamSource {
	return &WebcamSource{
		device:   device,
		depth:    depth,
		logger:   logger,
		width:    1280,
		height:   720,
		fps:      30,
		latest:   gocv.NewMat(),
		PoseFunc: model.Identity,
	}
}

// Initialize opens the device. It fails while the device is missing or access is denied.
func (w *WebcamSource) Initialize() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.capture != nil {
		return nil
	}

	vc, err := gocv.OpenVideoCapture(w.device)
	if err != nil {
		return fmt.Errorf("failed to open camera %d: %w", w.device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return fmt.Errorf("camera %d did not open", w.device)
	}
	w.capture = vc
	w.applySettings()
	return nil
}

func (w *WebcamSource) applySettings() {
	if w.capture == nil {
		return
	}
	w.capture.Set(gocv.VideoCaptureFrameWidth, float64(w.width))
	w.capture.Set(gocv.VideoCaptureFrameHeight, float64(w.height))
	w.capture.Set(gocv.VideoCaptureFPS, float64(w.fps))
}

func (w *WebcamSource) StartStream() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.capture == nil {
		return camera.ErrNotInitialized
	}
	if w.stop != nil {
		return nil
	}
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	w.started = time.Now()
	go w.readLoop(w.capture, w.stop, w.done)
	w.logger.Info("Camera %d stream started", w.device)
	return nil
}

func (w *WebcamSource) StopStream() {
	w.mu.Lock()
	stop, done := w.stop, w.done
	w.stop, w.done = nil, nil
	w.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
	w.logger.Info("Camera %d stream stopped", w.device)
}

func (w *WebcamSource) readLoop(vc *gocv.VideoCapture, stop, done chan struct{}) {
	defer close(done)
	img := gocv.NewMat()
	defer img.Close()

	for {
		select {
		case <-stop:
			return
		default:
		}

		if ok := vc.Read(&img); !ok || img.Empty() {
			time.Sleep(5 * time.Millisecond)
			continue
		}

		w.mu.Lock()
		img.CopyTo(&w.latest)
		w.hasLatest = true
		w.hasNew = true
		w.mu.Unlock()
	}
}

func (w *WebcamSource) HasNewFrame() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.hasNew
}

// LatestFrame copies the most recent device frame out as BGR bytes.
func (w *WebcamSource) LatestFrame() model.Frame {
	w.mu.Lock()
	if !w.hasLatest || w.stop == nil {
		w.mu.Unlock()
		return model.Frame{}
	}
	color := &model.Image{
		Width:  w.latest.Cols(),
		Height: w.latest.Rows(),
		Format: model.FormatBGR24,
		Pix:    w.latest.ToBytes(),
	}
	w.hasNew = false
	elapsed := time.Since(w.started).Seconds()
	w.mu.Unlock()

	frame := model.Frame{
		Timestamp: elapsed,
		Color:     color,
		Pose:      w.PoseFunc(),
	}
	if depth, ok := w.depth.Depth(color.Width, color.Height); ok {
		frame.Depth = depth
	}
	return frame
}

func (w *WebcamSource) SetResolution(width, height int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if width > 0 && height > 0 {
		w.width, w.height = width, height
		w.applySettings()
	}
}

func (w *WebcamSource) SetFPS(fps int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if fps > 0 {
		w.fps = fps
		w.applySettings()
	}
}

// SetFlashlight is accepted for interface parity; capture devices opened
// through OpenCV expose no torch control.
func (w *WebcamSource) SetFlashlight(enabled bool) {
	if enabled {
		w.logger.Warning("Camera %d has no flashlight control, ignoring", w.device)
	}
}

func (w *WebcamSource) Intrinsics() model.Intrinsics {
	w.mu.Lock()
	defer w.mu.Unlock()
	width, height := w.width, w.height
	if w.capture != nil {
		if cw := int(w.capture.Get(gocv.VideoCaptureFrameWidth)); cw > 0 {
			width = cw
		}
		if ch := int(w.capture.Get(gocv.VideoCaptureFrameHeight)); ch > 0 {
			height = ch
		}
	}
	return camera.DefaultIntrinsics(width, height)
}

// Close releases the device.
func (w *WebcamSource) Close() error {
	w.StopStream()
	w.mu.Lock()
	defer w.mu.Unlock()
	w.latest.Close()
	if w.capture == nil {
		return nil
	}
	err := w.capture.Close()
	w.capture = nil
	return err
}
