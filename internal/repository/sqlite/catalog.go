package sqlite

import (
	"fmt"
	"time"

	"scancapture/internal/model"
)

// Catalog records finalized sessions and their frames. Recording a scan id
// that already exists replaces the previous entry.
type Catalog struct {
	db       *DB
	sessions *SessionRepository
	frames   *FrameRepository
}

func NewCatalog(db *DB) *Catalog {
	return &Catalog{
		db:       db,
		sessions: NewSessionRepository(db),
		frames:   NewFrameRepository(db),
	}
}

func (c *Catalog) Sessions() *SessionRepository { return c.sessions }
func (c *Catalog) Frames() *FrameRepository     { return c.frames }

// Record replaces the catalog entry for s in a single transaction; on any
// failure the previous entry is left untouched.
func (c *Catalog) Record(s *model.Session, stoppedAt time.Time, hasScene bool) error {
	c.db.Lock()
	defer c.db.Unlock()

	tx, err := c.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteSession(tx, s.ID); err != nil {
		return err
	}

	id, err := insertSession(tx, &model.SessionRecord{
		ScanID:     s.ID,
		Mode:       s.Mode.String(),
		Dir:        s.Dir,
		FrameCount: len(s.Frames),
		StartedAt:  s.StartedAt,
		StoppedAt:  stoppedAt,
		HasScene:   hasScene,
	})
	if err != nil {
		return err
	}

	if len(s.Frames) > 0 {
		frames := make([]model.FrameRecord, 0, len(s.Frames))
		for _, f := range s.Frames {
			frames = append(frames, model.FrameRecord{
				SessionID: id,
				FrameID:   int(f.FrameID),
				Timestamp: f.Timestamp,
				ColorFile: f.ColorFile,
				DepthFile: f.DepthFile,
			})
		}
		if err := insertFrames(tx, frames); err != nil {
			return fmt.Errorf("session %s: %w", s.ID, err)
		}
	}

	return tx.Commit()
}
