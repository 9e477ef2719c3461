package sqlite

import (
	"database/sql"
	"fmt"

	"scancapture/internal/model"
)

// FrameRepository implements repository.FrameRepository for SQLite.
type FrameRepository struct {
	db *DB
}

func NewFrameRepository(db *DB) *FrameRepository {
	return &FrameRepository{db: db}
}

// InsertBatch adds multiple frames in a single transaction.
func (r *FrameRepository) InsertBatch(frames []model.FrameRecord) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertFrames(tx, frames); err != nil {
		return err
	}
	return tx.Commit()
}

func insertFrames(tx *sql.Tx, frames []model.FrameRecord) error {
	stmt, err := tx.Prepare(`
		INSERT INTO frames (session_id, frame_id, timestamp, color_file, depth_file)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, f := range frames {
		if _, err := stmt.Exec(f.SessionID, f.FrameID, f.Timestamp, f.ColorFile, f.DepthFile); err != nil {
			return fmt.Errorf("failed to insert frame %d: %w", f.FrameID, err)
		}
	}
	return nil
}

// GetBySession retrieves the frames of a session in capture order.
func (r *FrameRepository) GetBySession(sessionID int64) ([]model.FrameRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, session_id, frame_id, timestamp, color_file, depth_file
		FROM frames WHERE session_id = ? ORDER BY frame_id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query frames: %w", err)
	}
	defer rows.Close()

	var frames []model.FrameRecord
	for rows.Next() {
		var f model.FrameRecord
		if err := rows.Scan(&f.ID, &f.SessionID, &f.FrameID, &f.Timestamp, &f.ColorFile, &f.DepthFile); err != nil {
			return nil, fmt.Errorf("failed to scan frame: %w", err)
		}
		frames = append(frames, f)
	}
	return frames, rows.Err()
}

func (r *FrameRepository) CountBySession(sessionID int64) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM frames WHERE session_id = ?`, sessionID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count frames: %w", err)
	}
	return count, nil
}
