package dto

import (
	"fmt"
	"math"
	"strconv"
)

// Transforms is the calibration manifest written to transforms.json.
type Transforms struct {
	CameraAngleX Decimal          `json:"camera_angle_x"`
	CameraAngleY Decimal          `json:"camera_angle_y"`
	FlX          Decimal          `json:"fl_x"`
	FlY          Decimal          `json:"fl_y"`
	K1           Decimal          `json:"k1"`
	K2           Decimal          `json:"k2"`
	P1           Decimal          `json:"p1"`
	P2           Decimal          `json:"p2"`
	Cx           Decimal          `json:"cx"`
	Cy           Decimal          `json:"cy"`
	W            int              `json:"w"`
	H            int              `json:"h"`
	AABBScale    int              `json:"aabb_scale"`
	Frames       []TransformFrame `json:"frames"`
}

type TransformFrame struct {
	FilePath        string        `json:"file_path"`
	TransformMatrix [4][4]Decimal `json:"transform_matrix"`
}

// Decimal is a float64 written in plain positional notation with the shortest
// round-tripping digits. Negative zero is written as 0.
type Decimal float64

func (d Decimal) MarshalJSON() ([]byte, error) {
	v := float64(d)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("unsupported value %v", v)
	}
	if v == 0 {
		return []byte("0"), nil
	}
	return strconv.AppendFloat(nil, v, 'f', -1, 64), nil
}

func (d *Decimal) UnmarshalJSON(b []byte) error {
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*d = Decimal(v)
	return nil
}
