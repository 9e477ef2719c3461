package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"scancapture/internal/dto"
	"scancapture/internal/logger"
	"scancapture/internal/model"
)

const (
	ColorDir      = "color"
	DepthDir      = "depth"
	ScanDataFile  = "scan_data.json"
	SceneDataFile = "scene_data.json"

	sessionPrefix = "Scan_"
)

// SessionStore owns the on-disk layout of scan sessions under a root directory.
type SessionStore struct {
	root   string
	logger *logger.Logger
}

func NewSessionStore(root string, logger *logger.Logger) *SessionStore {
	return &SessionStore{root: root, logger: logger}
}

func (s *SessionStore) Root() string {
	return s.root
}

// NewSessionID derives a session id from the start time.
func NewSessionID(t time.Time) string {
	return sessionPrefix + t.Format("20060102_150405")
}

// IsSessionDir reports whether name looks like a session folder.
func IsSessionDir(name string) bool {
	return len(name) > len(sessionPrefix) && name[:len(sessionPrefix)] == sessionPrefix
}

// Create makes the session folder with its color/ and depth/ subfolders and
// returns the final id and path. An existing folder gets a numeric suffix.
func (s *SessionStore) Create(id string) (string, string, error) {
	if err := os.MkdirAll(s.root, 0755); err != nil {
		return "", "", fmt.Errorf("failed to create scan root: %w", err)
	}

	finalID := id
	dir := filepath.Join(s.root, finalID)
	for n := 2; ; n++ {
		err := os.Mkdir(dir, 0755)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrExist) {
			return "", "", fmt.Errorf("failed to create session directory: %w", err)
		}
		finalID = fmt.Sprintf("%s_%d", id, n)
		dir = filepath.Join(s.root, finalID)
	}

	for _, sub := range []string{ColorDir, DepthDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return "", "", fmt.Errorf("failed to create %s directory: %w", sub, err)
		}
	}

	s.logger.Info("Created session directory %s", dir)
	return finalID, dir, nil
}

// WriteScanData serializes the session to scan_data.json in its folder.
func (s *SessionStore) WriteScanData(session *model.Session) error {
	return writeJSON(filepath.Join(session.Dir, ScanDataFile), dto.NewScanData(session))
}

// WriteSceneData writes scene_data.json. Empty snapshots are not written.
func (s *SessionStore) WriteSceneData(dir string, snap model.SceneSnapshot) (bool, error) {
	if len(snap.Objects) == 0 {
		return false, nil
	}
	if err := writeJSON(filepath.Join(dir, SceneDataFile), dto.NewSceneData(snap)); err != nil {
		return false, err
	}
	return true, nil
}

// ReadScanData loads scan_data.json from a session folder.
func ReadScanData(dir string) (*dto.ScanData, error) {
	raw, err := os.ReadFile(filepath.Join(dir, ScanDataFile))
	if err != nil {
		return nil, err
	}
	var data dto.ScanData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ScanDataFile, err)
	}
	return &data, nil
}

// ListSessions returns the session folders under root, oldest first.
func ListSessions(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var dirs []string
	for _, e := range entries {
		if e.IsDir() && IsSessionDir(e.Name()) {
			dirs = append(dirs, filepath.Join(root, e.Name()))
		}
	}
	return dirs, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
