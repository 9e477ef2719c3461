package export

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"scancapture/internal/dto"
	"scancapture/internal/logger"
)

var (
	ErrExportInProgress = errors.New("archive export already in progress")
	ErrSessionNotFound  = errors.New("session directory not found")
)

// Archiver zips session folders into an export directory, one at a time.
type Archiver struct {
	exportDir string
	logger    *logger.Logger

	mu        sync.Mutex
	exporting bool
	processed atomic.Int64
	total     atomic.Int64
	lastPath  string
	lastErr   string
	wg        sync.WaitGroup
}

func NewArchiver(exportDir string, logger *logger.Logger) *Archiver {
	return &Archiver{exportDir: exportDir, logger: logger}
}

// ZipSession writes <exportDir>/<session>.zip, replacing an older archive.
// Entries use slash-separated paths relative to the session folder.
func (a *Archiver) ZipSession(sessionDir string) (string, error) {
	if err := a.claim(sessionDir); err != nil {
		return "", err
	}
	return a.run(sessionDir)
}

// Start checks sessionDir and zips it in the background. Progress is
// reported through Status; Wait blocks until the export is done.
func (a *Archiver) Start(sessionDir string) error {
	if err := a.claim(sessionDir); err != nil {
		return err
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.run(sessionDir)
	}()
	return nil
}

// Wait blocks until a background export started with Start has finished.
func (a *Archiver) Wait() {
	a.wg.Wait()
}

func (a *Archiver) claim(sessionDir string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.exporting {
		return ErrExportInProgress
	}
	info, err := os.Stat(sessionDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionDir)
	}

	a.exporting = true
	a.lastErr = ""
	a.total.Store(0)
	a.processed.Store(0)
	return nil
}

func (a *Archiver) run(sessionDir string) (string, error) {
	zipPath, err := a.write(sessionDir)

	a.mu.Lock()
	a.exporting = false
	if err != nil {
		a.lastErr = err.Error()
	} else {
		a.lastPath = zipPath
	}
	a.mu.Unlock()

	if err != nil {
		a.logger.Error("Archive export failed for %s: %v", sessionDir, err)
		return "", err
	}
	return zipPath, nil
}

func (a *Archiver) write(sessionDir string) (string, error) {
	if err := os.MkdirAll(a.exportDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	files, err := listFiles(sessionDir)
	if err != nil {
		return "", err
	}
	a.total.Store(int64(len(files)))

	zipPath := filepath.Join(a.exportDir, filepath.Base(sessionDir)+".zip")
	if err := writeZip(zipPath, sessionDir, files, func() { a.processed.Add(1) }); err != nil {
		os.Remove(zipPath)
		return "", err
	}

	a.logger.Info("📦 Archive export complete: %s (%d files)", zipPath, len(files))
	return zipPath, nil
}

// Progress returns the fraction of files written by the current or last export.
func (a *Archiver) Progress() float64 {
	total := a.total.Load()
	if total == 0 {
		if a.Exporting() {
			return 0
		}
		return 1
	}
	return float64(a.processed.Load()) / float64(total)
}

func (a *Archiver) Exporting() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.exporting
}

func (a *Archiver) LastExportPath() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastPath
}

// Status snapshots the archiver for GET /api/sessions/archive/status.
func (a *Archiver) Status() dto.ArchiveStatus {
	a.mu.Lock()
	st := dto.ArchiveStatus{
		Exporting:  a.exporting,
		LastExport: a.lastPath,
		LastError:  a.lastErr,
	}
	a.mu.Unlock()
	st.Progress = a.Progress()
	return st
}

func writeZip(zipPath, root string, files []string, onFile func()) error {
	out, err := os.Create(zipPath)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, rel := range files {
		if err := addFile(zw, root, rel); err != nil {
			zw.Close()
			return err
		}
		onFile()
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return out.Close()
}

func addFile(zw *zip.Writer, root, rel string) error {
	src, err := os.Open(filepath.Join(root, rel))
	if err != nil {
		return err
	}
	defer src.Close()

	// Images are already compressed; Store keeps export fast.
	method := zip.Store
	if filepath.Ext(rel) == ".json" {
		method = zip.Deflate
	}
	w, err := zw.CreateHeader(&zip.FileHeader{Name: filepath.ToSlash(rel), Method: method})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}

func listFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	return files, err
}

// SessionSize returns the total size in bytes of all files under dir.
func SessionSize(dir string) int64 {
	var total int64
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}

// FormatSize renders a byte count as B, KB, MB or GB.
func FormatSize(bytes int64) string {
	switch {
	case bytes < 1024:
		return fmt.Sprintf("%d B", bytes)
	case bytes < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	case bytes < 1024*1024*1024:
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
	default:
		return fmt.Sprintf("%.2f GB", float64(bytes)/(1024*1024*1024))
	}
}
