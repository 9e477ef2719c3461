package handler

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"scancapture/internal/config"
	"scancapture/internal/dto"
	"scancapture/internal/logger"
	"scancapture/internal/model"
	"scancapture/internal/repository"
	"scancapture/internal/service/export"
	"scancapture/internal/service/scan"
	"scancapture/internal/service/storage"
)

// GetSessionsHandler returns a filtered page of cataloged sessions, newest first.
func GetSessionsHandler(sessions repository.SessionRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 24)

		filter := &dto.SessionFilters{
			StartedAfter:  parseDate(q.Get("dateAfter")),
			StartedBefore: parseDate(q.Get("dateBefore")),
			MinFrames:     atoiDefault(q.Get("minFrames"), 0),
			Limit:         limit,
			Offset:        (page - 1) * limit,
		}
		if m := q.Get("mode"); m != "" {
			mode, err := model.ParseScanMode(m)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			filter.Mode = mode.String()
		}
		if !filter.StartedBefore.IsZero() {
			// inclusive of the whole day
			filter.StartedBefore = filter.StartedBefore.Add(24*time.Hour - time.Nanosecond)
		}

		records, err := sessions.GetAll(filter)
		if err != nil {
			logger.Error("Error querying sessions from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		totalCount, err := sessions.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting sessions: %v", err)
			totalCount = len(records)
		}

		infos := make([]dto.SessionInfo, 0, len(records))
		for _, rec := range records {
			infos = append(infos, dto.SessionInfo{
				ScanID:     rec.ScanID,
				Mode:       rec.Mode,
				FrameCount: rec.FrameCount,
				StartedAt:  rec.StartedAt,
				StoppedAt:  rec.StoppedAt,
				HasScene:   rec.HasScene,
				Size:       export.FormatSize(export.SessionSize(rec.Dir)),
			})
		}

		writeJSON(w, http.StatusOK, dto.SessionsPage{
			Sessions:   infos,
			Page:       page,
			TotalPages: (totalCount + limit - 1) / limit,
			TotalCount: totalCount,
		}, logger)
	}
}

// ArchiveSessionHandler handles POST /api/sessions/{id}/archive. The zip is
// written in the background; a session still capturing or with frames still
// queued for disk is refused with 409.
func ArchiveSessionHandler(archiver *export.Archiver, loop *scan.Loop, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !storage.IsSessionDir(id) || filepath.Base(id) != id {
			http.Error(w, "Invalid session id", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), controlTimeout)
		defer cancel()

		status, err := loop.Status(ctx)
		if err != nil {
			http.Error(w, err.Error(), scanErrorStatus(err))
			return
		}
		if status.SessionID == id {
			http.Error(w, "Session is still capturing", http.StatusConflict)
			return
		}
		if status.PendingSaves > 0 {
			http.Error(w, "Frames are still being written", http.StatusConflict)
			return
		}

		err = archiver.Start(filepath.Join(cfg.ScanRoot, id))
		switch {
		case errors.Is(err, export.ErrExportInProgress):
			http.Error(w, err.Error(), http.StatusConflict)
			return
		case errors.Is(err, export.ErrSessionNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		case err != nil:
			http.Error(w, "Archive export failed", http.StatusInternalServerError)
			return
		}

		logger.Info("Archive export of %s started", id)
		writeJSON(w, http.StatusAccepted, archiver.Status(), logger)
	}
}

// ArchiveStatusHandler handles GET /api/sessions/archive/status.
func ArchiveStatusHandler(archiver *export.Archiver, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, archiver.Status(), logger)
	}
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseDate parses a date string in the format "2006-01-02" (HTML input format).
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}
	}
	return t
}
