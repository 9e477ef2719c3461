package dto

import "scancapture/internal/model"

// SceneData is the on-disk shape of scene_data.json.
type SceneData struct {
	SessionID string        `json:"session_id"`
	Objects   []SceneObject `json:"objects"`
}

type SceneObject struct {
	Classification string     `json:"classification"`
	UUID           string     `json:"uuid"`
	Position       [3]float64 `json:"position"`
	Rotation       [4]float64 `json:"rotation"`
	Scale          [3]float64 `json:"scale"`
	PlaneRect      []float64  `json:"plane_rect,omitempty"`
	VolumeBounds   []float64  `json:"volume_bounds,omitempty"`
}

// NewSceneData converts a room snapshot into its serialized form.
func NewSceneData(snap model.SceneSnapshot) SceneData {
	data := SceneData{
		SessionID: snap.SessionID,
		Objects:   make([]SceneObject, 0, len(snap.Objects)),
	}
	for _, o := range snap.Objects {
		obj := SceneObject{
			Classification: o.Classification,
			UUID:           o.UUID,
			Position:       [3]float64{o.Position.X, o.Position.Y, o.Position.Z},
			Rotation:       [4]float64{o.Rotation.X, o.Rotation.Y, o.Rotation.Z, o.Rotation.W},
			Scale:          [3]float64{o.Scale.X, o.Scale.Y, o.Scale.Z},
		}
		if o.PlaneExtent != nil {
			obj.PlaneRect = []float64{o.PlaneExtent[0], o.PlaneExtent[1]}
		}
		if o.VolumeExtent != nil {
			obj.VolumeBounds = []float64{o.VolumeExtent.X, o.VolumeExtent.Y, o.VolumeExtent.Z}
		}
		data.Objects = append(data.Objects, obj)
	}
	return data
}
