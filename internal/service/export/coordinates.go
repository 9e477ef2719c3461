package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"scancapture/internal/dto"
	"scancapture/internal/logger"
	"scancapture/internal/model"
)

const (
	// TransformsFile is the manifest consumed by offline reconstruction tools.
	TransformsFile = "transforms.json"
	// DefaultAABBScale bounds the scene for NeRF-style trainers.
	DefaultAABBScale = 16
)

var (
	ErrNoSession         = errors.New("no session to export")
	ErrInvalidIntrinsics = errors.New("invalid intrinsics")
)

// ConvertPose maps a pose from the capture convention (left-handed, Y-up,
// Z-forward) to the manifest convention (right-handed, Y-up, Z-back) by
// computing S*M*S with S = diag(1, 1, -1, 1). Each element is either kept or
// negated, so applying it twice returns the input bit for bit.
func ConvertPose(m model.Mat4) model.Mat4 {
	out := m
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			if (r == 2) != (c == 2) {
				out[r*4+c] = -m[r*4+c]
			}
		}
	}
	return out
}

// FieldOfView returns the full view angle in radians for an image dimension
// and focal length in pixels.
func FieldOfView(dimension int, focal float64) float64 {
	return 2 * math.Atan(float64(dimension)/(2*focal))
}

// CoordinateExporter builds transforms.json from a finished session.
// Distortion is written as zero: frames are assumed rectified.
type CoordinateExporter struct {
	AABBScale int
	logger    *logger.Logger
}

func NewCoordinateExporter(logger *logger.Logger) *CoordinateExporter {
	return &CoordinateExporter{AABBScale: DefaultAABBScale, logger: logger}
}

// Build converts the session into a manifest without touching the filesystem.
func (e *CoordinateExporter) Build(session *model.Session) (*dto.Transforms, error) {
	if session == nil {
		return nil, ErrNoSession
	}
	in := session.Intrinsics
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIntrinsics, err)
	}

	manifest := &dto.Transforms{
		CameraAngleX: dto.Decimal(FieldOfView(in.Width, in.Fx)),
		CameraAngleY: dto.Decimal(FieldOfView(in.Height, in.Fy)),
		FlX:          dto.Decimal(in.Fx),
		FlY:          dto.Decimal(in.Fy),
		Cx:           dto.Decimal(in.Cx),
		Cy:           dto.Decimal(in.Cy),
		W:            in.Width,
		H:            in.Height,
		AABBScale:    e.AABBScale,
		Frames:       make([]dto.TransformFrame, 0, len(session.Frames)),
	}

	for _, f := range session.Frames {
		converted := ConvertPose(f.Pose)
		frame := dto.TransformFrame{FilePath: f.ColorFile}
		for r := 0; r < 4; r++ {
			for c := 0; c < 4; c++ {
				frame.TransformMatrix[r][c] = dto.Decimal(converted.At(r, c))
			}
		}
		manifest.Frames = append(manifest.Frames, frame)
	}
	return manifest, nil
}

// Export writes transforms.json into outputDir.
func (e *CoordinateExporter) Export(session *model.Session, outputDir string) error {
	manifest, err := e.Build(session)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	path := filepath.Join(outputDir, TransformsFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	e.logger.Info("Exported %s with %d frame(s)", path, len(manifest.Frames))
	return nil
}
