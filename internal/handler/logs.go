package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"scancapture/internal/logger"
)

// logFiles maps the {level} URL parameter to the file the logger writes.
var logFiles = map[string]string{
	"info":    "info.log",
	"warning": "warning.log",
	"error":   "error.log",
}

func logFileFor(w http.ResponseWriter, r *http.Request, logger *logger.Logger) (string, bool) {
	name, ok := logFiles[chi.URLParam(r, "level")]
	if !ok {
		http.Error(w, "Unknown log level", http.StatusNotFound)
		return "", false
	}
	if logger.Dir() == "" {
		http.Error(w, "Logs are not kept on disk", http.StatusNotFound)
		return "", false
	}
	return name, true
}

// ShowLogsHandler serves GET /logs/{level} as text/plain.
func ShowLogsHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, ok := logFileFor(w, r, logger)
		if !ok {
			return
		}

		filePath := filepath.Join(logger.Dir(), name)
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.Error(w, "Log file not found: "+name, http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFile(w, r, filePath)
	}
}

// ClearLogsHandler truncates the log file for {level} and answers 204.
func ClearLogsHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, ok := logFileFor(w, r, logger)
		if !ok {
			return
		}
		if err := logger.CleanLogs(name); err != nil {
			http.Error(w, "Failed to clear "+name, http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
