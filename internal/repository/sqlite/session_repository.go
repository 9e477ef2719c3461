package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"scancapture/internal/dto"
	"scancapture/internal/model"
)

// SessionRepository implements repository.SessionRepository for SQLite.
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new SQLite session repository.
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, scan_id, mode, dir, frame_count, started_at, stopped_at, has_scene`

// Insert adds a new session record to the database.
func (r *SessionRepository) Insert(rec *model.SessionRecord) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	return insertSession(r.db.Conn(), rec)
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

func insertSession(ex execer, rec *model.SessionRecord) (int64, error) {
	result, err := ex.Exec(`
		INSERT INTO sessions (scan_id, mode, dir, frame_count, started_at, stopped_at, has_scene)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ScanID, rec.Mode, rec.Dir, rec.FrameCount, rec.StartedAt, rec.StoppedAt, rec.HasScene)
	if err != nil {
		return 0, fmt.Errorf("failed to insert session: %w", err)
	}

	return result.LastInsertId()
}

// GetByScanID retrieves a session by its folder name. Returns nil when absent.
func (r *SessionRepository) GetByScanID(scanID string) (*model.SessionRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var rec model.SessionRecord
	err := r.db.Conn().QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE scan_id = ?`, scanID).
		Scan(&rec.ID, &rec.ScanID, &rec.Mode, &rec.Dir, &rec.FrameCount, &rec.StartedAt, &rec.StoppedAt, &rec.HasScene)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &rec, nil
}

// GetAll retrieves sessions matching the filter, newest first.
func (r *SessionRepository) GetAll(filter *dto.SessionFilters) ([]model.SessionRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := sessionWhere(filter)
	query := `SELECT ` + sessionColumns + ` FROM sessions` + where + ` ORDER BY started_at DESC`

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []model.SessionRecord
	for rows.Next() {
		var rec model.SessionRecord
		if err := rows.Scan(&rec.ID, &rec.ScanID, &rec.Mode, &rec.Dir, &rec.FrameCount, &rec.StartedAt, &rec.StoppedAt, &rec.HasScene); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, rec)
	}
	return sessions, rows.Err()
}

// GetTotalCount returns the number of sessions matching the filter, ignoring paging.
func (r *SessionRepository) GetTotalCount(filter *dto.SessionFilters) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := sessionWhere(filter)
	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM sessions`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}

// DeleteByScanID removes a session and its frames.
func (r *SessionRepository) DeleteByScanID(scanID string) error {
	r.db.Lock()
	defer r.db.Unlock()

	return deleteSession(r.db.Conn(), scanID)
}

func deleteSession(ex execer, scanID string) error {
	if _, err := ex.Exec(`DELETE FROM sessions WHERE scan_id = ?`, scanID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func sessionWhere(filter *dto.SessionFilters) (string, []interface{}) {
	if filter == nil {
		return "", nil
	}

	var conds []string
	var args []interface{}

	if filter.Mode != "" {
		conds = append(conds, "mode = ?")
		args = append(args, filter.Mode)
	}
	if !filter.StartedAfter.IsZero() {
		conds = append(conds, "started_at >= ?")
		args = append(args, filter.StartedAfter)
	}
	if !filter.StartedBefore.IsZero() {
		conds = append(conds, "started_at <= ?")
		args = append(args, filter.StartedBefore)
	}
	if filter.MinFrames > 0 {
		conds = append(conds, "frame_count >= ?")
		args = append(args, filter.MinFrames)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
