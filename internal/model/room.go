package model

import "github.com/golang/geo/r3"

// Quat is a rotation quaternion.
type Quat struct {
	X, Y, Z, W float64
}

// RoomObject is a snapshot of one room-geometry anchor.
type RoomObject struct {
	Classification string
	UUID           string
	Position       r3.Vector
	Rotation       Quat
	Scale          r3.Vector
	PlaneExtent    *[2]float64 // width, height
	VolumeExtent   *r3.Vector  // width, height, depth
}

// SceneSnapshot holds the room objects captured for one Space session.
type SceneSnapshot struct {
	SessionID string
	Objects   []RoomObject
}
