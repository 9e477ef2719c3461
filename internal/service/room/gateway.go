// Package room adapts the external room-geometry subsystem: capture requests,
// model loading, anchor snapshots and the completion signals it emits.
package room

import "scancapture/internal/model"

// Events receives completion signals from the room subsystem. Callbacks may
// arrive on any goroutine.
type Events interface {
	OnModelLoaded()
	OnNoModel()
	OnNewModelAvailable()
}

// Gateway is the thin contract the capture pipeline consumes.
type Gateway interface {
	// RequestCapture asks the user/system to scan the room. Completion is
	// reported through Events, and may be lost.
	RequestCapture() error
	// LoadModel asks the subsystem to (re)load the stored room model.
	LoadModel() error
	QuerySnapshot() []model.RoomObject
	IsModelLoaded() bool
	// Subscribe registers ev until the returned function is called.
	Subscribe(ev Events) (unsubscribe func())
}
