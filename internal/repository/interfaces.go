package repository

import (
	"scancapture/internal/dto"
	"scancapture/internal/model"
)

// SessionRepository defines the interface for cataloged session operations.
type SessionRepository interface {
	// Create operations
	Insert(rec *model.SessionRecord) (int64, error)

	// Read operations
	GetByScanID(scanID string) (*model.SessionRecord, error)
	GetAll(filter *dto.SessionFilters) ([]model.SessionRecord, error)
	GetTotalCount(filter *dto.SessionFilters) (int, error)

	// Delete operations
	DeleteByScanID(scanID string) error
}

// FrameRepository defines the interface for per-frame catalog rows.
type FrameRepository interface {
	InsertBatch(frames []model.FrameRecord) error
	GetBySession(sessionID int64) ([]model.FrameRecord, error)
	CountBySession(sessionID int64) (int, error)
}
