package dto

import (
	"fmt"
	"time"

	"scancapture/internal/model"
)

// PoseConventionCameraToWorld marks frame poses as camera-to-world transforms.
const PoseConventionCameraToWorld = "camera_to_world"

// ScanData is the on-disk shape of scan_data.json.
type ScanData struct {
	ScanID         string       `json:"scan_id"`
	ScanMode       string       `json:"scan_mode"`
	StartedAt      time.Time    `json:"started_at"`
	PoseConvention string       `json:"pose_convention"`
	Settings       ScanSettings `json:"settings"`
	Intrinsic      Intrinsic    `json:"intrinsic"`
	Frames         []ScanFrame  `json:"frames"`
}

type ScanSettings struct {
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	TargetFPS     float32 `json:"target_fps"`
	UseFlashlight bool    `json:"use_flashlight"`
}

type Intrinsic struct {
	Width           int          `json:"width"`
	Height          int          `json:"height"`
	IntrinsicMatrix CameraMatrix `json:"intrinsic_matrix"`
}

// CameraMatrix holds the non-trivial entries of
//
//	[ fx  0  cx ]
//	[ 0  fy  cy ]
//	[ 0   0   1 ]
type CameraMatrix struct {
	Fx float64 `json:"fx"`
	Fy float64 `json:"fy"`
	Cx float64 `json:"cx"`
	Cy float64 `json:"cy"`
}

type ScanFrame struct {
	FrameID   uint32    `json:"frame_id"`
	Timestamp float64   `json:"timestamp"`
	ColorFile string    `json:"color_file"`
	DepthFile string    `json:"depth_file"`
	Pose      []float64 `json:"pose"`
}

// NewScanData converts a session into its serialized form.
func NewScanData(s *model.Session) ScanData {
	data := ScanData{
		ScanID:         s.ID,
		ScanMode:       s.Mode.String(),
		StartedAt:      s.StartedAt,
		PoseConvention: PoseConventionCameraToWorld,
		Settings: ScanSettings{
			Width:         s.Settings.Width,
			Height:        s.Settings.Height,
			TargetFPS:     s.Settings.TargetFPS,
			UseFlashlight: s.Settings.Flashlight,
		},
		Intrinsic: Intrinsic{
			Width:  s.Intrinsics.Width,
			Height: s.Intrinsics.Height,
			IntrinsicMatrix: CameraMatrix{
				Fx: s.Intrinsics.Fx,
				Fy: s.Intrinsics.Fy,
				Cx: s.Intrinsics.Cx,
				Cy: s.Intrinsics.Cy,
			},
		},
		Frames: make([]ScanFrame, 0, len(s.Frames)),
	}
	for _, f := range s.Frames {
		pose := make([]float64, 16)
		copy(pose, f.Pose[:])
		data.Frames = append(data.Frames, ScanFrame{
			FrameID:   f.FrameID,
			Timestamp: f.Timestamp,
			ColorFile: f.ColorFile,
			DepthFile: f.DepthFile,
			Pose:      pose,
		})
	}
	return data
}

// Session rebuilds a session from its serialized form. dir is the session root.
func (d ScanData) Session(dir string) (*model.Session, error) {
	mode, err := model.ParseScanMode(d.ScanMode)
	if err != nil {
		return nil, err
	}
	s := &model.Session{
		ID:   d.ScanID,
		Mode: mode,
		Settings: model.SessionSettings{
			Width:      d.Settings.Width,
			Height:     d.Settings.Height,
			TargetFPS:  d.Settings.TargetFPS,
			Flashlight: d.Settings.UseFlashlight,
		},
		Intrinsics: model.Intrinsics{
			Width:  d.Intrinsic.Width,
			Height: d.Intrinsic.Height,
			Fx:     d.Intrinsic.IntrinsicMatrix.Fx,
			Fy:     d.Intrinsic.IntrinsicMatrix.Fy,
			Cx:     d.Intrinsic.IntrinsicMatrix.Cx,
			Cy:     d.Intrinsic.IntrinsicMatrix.Cy,
		},
		Dir:       dir,
		StartedAt: d.StartedAt,
		Frames:    make([]model.FrameMetadata, 0, len(d.Frames)),
	}
	for _, f := range d.Frames {
		pose, ok := model.Mat4FromSlice(f.Pose)
		if !ok {
			return nil, fmt.Errorf("frame %d: pose has %d values, want 16", f.FrameID, len(f.Pose))
		}
		s.Frames = append(s.Frames, model.FrameMetadata{
			FrameID:   f.FrameID,
			Timestamp: f.Timestamp,
			ColorFile: f.ColorFile,
			DepthFile: f.DepthFile,
			Pose:      pose,
		})
	}
	return s, nil
}
