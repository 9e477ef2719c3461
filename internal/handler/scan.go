package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"scancapture/internal/dto"
	"scancapture/internal/logger"
	"scancapture/internal/model"
	"scancapture/internal/service/scan"
)

// controlTimeout bounds how long a request waits for the scan loop.
const controlTimeout = 5 * time.Second

// StartScanHandler handles POST /api/scan/start.
func StartScanHandler(loop *scan.Loop, logger *logger.Logger) http.HandlerFunc {
	return controlHandler(loop, logger, "start", func(m *scan.Machine) error {
		return m.StartScan()
	})
}

// StopScanHandler handles POST /api/scan/stop.
func StopScanHandler(loop *scan.Loop, logger *logger.Logger) http.HandlerFunc {
	return controlHandler(loop, logger, "stop", func(m *scan.Machine) error {
		return m.StopScan()
	})
}

func controlHandler(loop *scan.Loop, logger *logger.Logger, action string, fn func(*scan.Machine) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), controlTimeout)
		defer cancel()

		var (
			actionErr error
			status    dto.ScanStatus
		)
		err := loop.Do(ctx, func(m *scan.Machine) {
			actionErr = fn(m)
			status = m.Status()
		})
		if err == nil {
			err = actionErr
		}
		if err != nil {
			code := scanErrorStatus(err)
			if code >= http.StatusInternalServerError {
				logger.Error("Scan %s failed: %v", action, err)
			}
			if status.State != "" {
				status.Message = err.Error()
				writeJSON(w, code, status, logger)
				return
			}
			http.Error(w, err.Error(), code)
			return
		}

		writeJSON(w, http.StatusOK, status, logger)
	}
}

// SettingsHandler handles PUT /api/scan/settings. Fields missing from the body
// keep their current value; the mode can only change while idle.
func SettingsHandler(loop *scan.Loop, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut && r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var update dto.SettingsUpdate
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}

		var mode *model.ScanMode
		if update.Mode != nil {
			parsed, err := model.ParseScanMode(*update.Mode)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			mode = &parsed
		}

		ctx, cancel := context.WithTimeout(r.Context(), controlTimeout)
		defer cancel()

		var (
			updateErr error
			status    dto.ScanStatus
		)
		err := loop.Do(ctx, func(m *scan.Machine) {
			live := m.Live()
			if mode != nil {
				live.Mode = *mode
			}
			if update.Width != nil {
				live.Width = *update.Width
			}
			if update.Height != nil {
				live.Height = *update.Height
			}
			if update.TargetFPS != nil {
				live.TargetFPS = *update.TargetFPS
			}
			if update.Flashlight != nil {
				live.Flashlight = *update.Flashlight
			}
			if update.StartDelay != nil {
				live.StartDelay = time.Duration(*update.StartDelay) * time.Second
			}
			updateErr = m.UpdateSettings(live)
			status = m.Status()
		})
		if err == nil {
			err = updateErr
		}
		if err != nil {
			http.Error(w, err.Error(), scanErrorStatus(err))
			return
		}

		logger.Info("Live settings updated: mode=%s fps=%.1f", status.Mode, status.TargetFPS)
		writeJSON(w, http.StatusOK, status, logger)
	}
}

// StatusHandler handles GET /api/scan/status.
func StatusHandler(loop *scan.Loop, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), controlTimeout)
		defer cancel()

		status, err := loop.Status(ctx)
		if err != nil {
			http.Error(w, err.Error(), scanErrorStatus(err))
			return
		}
		writeJSON(w, http.StatusOK, status, logger)
	}
}

// scanErrorStatus maps scan errors to HTTP status codes.
func scanErrorStatus(err error) int {
	switch {
	case errors.Is(err, scan.ErrNotIdle),
		errors.Is(err, scan.ErrNotScanning),
		errors.Is(err, scan.ErrStopGuarded):
		return http.StatusConflict
	case errors.Is(err, scan.ErrMissingDependency),
		errors.Is(err, scan.ErrLoopStopped),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v interface{}, logger *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}
