package camera

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/golang/geo/r3"

	"scancapture/internal/clock"
	"scancapture/internal/model"
)

var ErrNotInitialized = errors.New("frame source not initialized")

// SyntheticSource stands in for a missing sensor. It orbits a virtual camera
// around a pivot, looking at it, and renders a gradient whose hue follows the
// orbit angle so consecutive frames differ.
type SyntheticSource struct {
	clock clock.Clock
	depth DepthChain

	mu          sync.Mutex
	width       int
	height      int
	fps         int
	flashlight  bool
	initialized bool
	streaming   bool
	started     time.Time
	lastFrame   time.Time

	Pivot       r3.Vector
	Radius      float64
	EyeHeight   float64
	DegreesPerS float64
}

func NewSyntheticSource(clk clock.Clock, depth DepthChain) *SyntheticSource {
	return &SyntheticSource{
		clock:       clk,
		depth:       depth,
		width:       1280,
		height:      720,
		fps:         30,
		Pivot:       r3.Vector{X: 0, Y: 0, Z: 0},
		Radius:      1.0,
		EyeHeight:   0.3,
		DegreesPerS: 20,
	}
}

func (s *SyntheticSource) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = true
	return nil
}

func (s *SyntheticSource) StartStream() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	s.streaming = true
	s.started = s.clock.Now()
	s.lastFrame = time.Time{}
	return nil
}

func (s *SyntheticSource) StopStream() {
	s.mu.Lock()
	s.streaming = false
	s.mu.Unlock()
}

// HasNewFrame is true once per source frame period while streaming.
func (s *SyntheticSource) HasNewFrame() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.streaming {
		return false
	}
	if s.lastFrame.IsZero() || s.fps <= 0 {
		return true
	}
	return s.clock.Now().Sub(s.lastFrame) >= time.Second/time.Duration(s.fps)
}

func (s *SyntheticSource) LatestFrame() model.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.streaming {
		return model.Frame{}
	}

	now := s.clock.Now()
	s.lastFrame = now
	elapsed := now.Sub(s.started).Seconds()
	angle := elapsed * s.DegreesPerS * math.Pi / 180

	frame := model.Frame{
		Timestamp: elapsed,
		Color:     gradient(s.width, s.height, angle, s.flashlight),
		Pose:      OrbitPose(s.Pivot, s.Radius, s.EyeHeight, angle),
	}
	if depth, ok := s.depth.Depth(s.width/4, s.height/4); ok {
		frame.Depth = depth
	}
	return frame
}

func (s *SyntheticSource) SetResolution(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if width > 0 && height > 0 {
		s.width, s.height = width, height
	}
}

func (s *SyntheticSource) SetFPS(fps int) {
	s.mu.Lock()
	s.fps = fps
	s.mu.Unlock()
}

func (s *SyntheticSource) SetFlashlight(enabled bool) {
	s.mu.Lock()
	s.flashlight = enabled
	s.mu.Unlock()
}

func (s *SyntheticSource) Intrinsics() model.Intrinsics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return DefaultIntrinsics(s.width, s.height)
}

// OrbitPose returns the camera-to-world matrix of a camera on a circle of the
// given radius around pivot, raised by height and looking at the pivot.
// Axes follow the capture convention: X right, Y up, Z forward.
func OrbitPose(pivot r3.Vector, radius, height, angle float64) model.Mat4 {
	eye := pivot.Add(r3.Vector{X: radius * math.Sin(angle), Y: height, Z: -radius * math.Cos(angle)})
	forward := pivot.Sub(eye).Normalize()
	right := r3.Vector{X: 0, Y: 1, Z: 0}.Cross(forward).Normalize()
	up := forward.Cross(right)

	return model.Mat4{
		right.X, up.X, forward.X, eye.X,
		right.Y, up.Y, forward.Y, eye.Y,
		right.Z, up.Z, forward.Z, eye.Z,
		0, 0, 0, 1,
	}
}

func gradient(width, height int, angle float64, bright bool) *model.Image {
	pix := make([]byte, width*height*3)
	shift := byte(int(angle*40.0) & 0xff)
	boost := byte(0)
	if bright {
		boost = 64
	}
	i := 0
	for y := 0; y < height; y++ {
		g := byte(y * 255 / height)
		for x := 0; x < width; x++ {
			pix[i] = byte(x*255/width) + shift
			pix[i+1] = g + boost
			pix[i+2] = shift
			i += 3
		}
	}
	return &model.Image{Width: width, Height: height, Format: model.FormatRGB24, Pix: pix}
}
