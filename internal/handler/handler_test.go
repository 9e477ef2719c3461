package handler

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"scancapture/internal/clock"
	"scancapture/internal/config"
	"scancapture/internal/dto"
	"scancapture/internal/logger"
	"scancapture/internal/model"
	"scancapture/internal/service/camera"
	"scancapture/internal/service/export"
	"scancapture/internal/service/imaging"
	"scancapture/internal/service/scan"
	"scancapture/internal/service/storage"
)

// ========================================
// Helpers
// ========================================

func startLoop(t *testing.T, live config.LiveSettings) *scan.Loop {
	t.Helper()
	return startLoopIn(t, t.TempDir(), live)
}

// startLoopIn runs a scan loop over synthetic frames, storing sessions under root.
func startLoopIn(t *testing.T, root string, live config.LiveSettings) *scan.Loop {
	t.Helper()
	log := logger.Discard()

	src := camera.NewSyntheticSource(clock.Real{}, camera.DepthChain{camera.NewSyntheticDepth()})
	src.Initialize()
	queue := storage.NewPersistenceQueue(time.Millisecond, log)

	machine := scan.NewMachine(scan.Deps{
		Source:  src,
		Store:   storage.NewSessionStore(root, log),
		Queue:   queue,
		Encoder: imaging.RawEncoder{},
		Logger:  log,
	}, live)
	loop := scan.NewLoop(machine, 5*time.Millisecond, nil, log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		queue.Wait()
	})
	return loop
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) dto.ScanStatus {
	t.Helper()
	var st dto.ScanStatus
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("Failed to decode status: %v (body %q)", err, rec.Body.String())
	}
	return st
}

func do(h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

// ========================================
// Scan control
// ========================================

func TestScanHandlers_Lifecycle(t *testing.T) {
	loop := startLoop(t, config.LiveSettings{Mode: model.ModeObject, Width: 32, Height: 24, TargetFPS: 10})
	log := logger.Discard()
	start := StartScanHandler(loop, log)
	stop := StopScanHandler(loop, log)

	rec := do(start, http.MethodPost, "/api/scan/start", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 on start, got %d", rec.Code)
	}
	st := decodeStatus(t, rec)
	if st.State != "ObjectCapturing" || !strings.HasPrefix(st.SessionID, "Scan_") {
		t.Fatalf("Unexpected status after start: %+v", st)
	}

	rec = do(start, http.MethodPost, "/api/scan/start", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 on second start, got %d", rec.Code)
	}
	if again := decodeStatus(t, rec); again.SessionID != st.SessionID {
		t.Errorf("Second start replaced the session: %s -> %s", st.SessionID, again.SessionID)
	}

	rec = do(StatusHandler(loop, log), http.MethodGet, "/api/scan/status", "")
	if rec.Code != http.StatusOK || decodeStatus(t, rec).SessionID != st.SessionID {
		t.Errorf("Status should report the running session")
	}

	rec = do(stop, http.MethodPost, "/api/scan/stop", "")
	if rec.Code != http.StatusOK || decodeStatus(t, rec).State != "Idle" {
		t.Errorf("Expected Idle after stop, got %d", rec.Code)
	}

	rec = do(stop, http.MethodPost, "/api/scan/stop", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 when stopping an idle machine, got %d", rec.Code)
	}

	rec = do(start, http.MethodGet, "/api/scan/start", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for GET, got %d", rec.Code)
	}
}

func TestSettingsHandler(t *testing.T) {
	loop := startLoop(t, config.LiveSettings{Mode: model.ModeObject, Width: 32, Height: 24, TargetFPS: 3})
	log := logger.Discard()
	settings := SettingsHandler(loop, log)

	rec := do(settings, http.MethodPut, "/api/scan/settings", `{"mode":"space","target_fps":10}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	st := decodeStatus(t, rec)
	if st.Mode != "Space" || st.TargetFPS != 10 {
		t.Errorf("Settings not applied: %+v", st)
	}

	rec = do(settings, http.MethodPut, "/api/scan/settings", `{"target_fps":500}`)
	if st := decodeStatus(t, rec); st.TargetFPS != config.MaxTargetFPS || st.Mode != "Space" {
		t.Errorf("Expected clamped FPS and unchanged mode, got %+v", st)
	}

	tests := []struct {
		name string
		body string
		want int
	}{
		{"unknown mode", `{"mode":"room"}`, http.StatusBadRequest},
		{"malformed body", `{"mode":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(settings, http.MethodPut, "/api/scan/settings", tt.body); rec.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestSettingsHandler_ModeLockedWhileScanning(t *testing.T) {
	loop := startLoop(t, config.LiveSettings{Mode: model.ModeObject, Width: 32, Height: 24, TargetFPS: 3})
	log := logger.Discard()

	if rec := do(StartScanHandler(loop, log), http.MethodPost, "/api/scan/start", ""); rec.Code != http.StatusOK {
		t.Fatalf("Start failed: %d", rec.Code)
	}

	rec := do(SettingsHandler(loop, log), http.MethodPut, "/api/scan/settings", `{"mode":"space"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 for a mode change mid-scan, got %d", rec.Code)
	}

	rec = do(SettingsHandler(loop, log), http.MethodPut, "/api/scan/settings", `{"target_fps":20}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 for an FPS change, got %d", rec.Code)
	}
	if st := decodeStatus(t, rec); st.TargetFPS != 3 {
		t.Errorf("Running session should keep its snapshot FPS, got %v", st.TargetFPS)
	}
}

func TestScanErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{scan.ErrNotIdle, http.StatusConflict},
		{scan.ErrNotScanning, http.StatusConflict},
		{scan.ErrStopGuarded, http.StatusConflict},
		{fmt.Errorf("%w: [encoder]", scan.ErrMissingDependency), http.StatusServiceUnavailable},
		{scan.ErrLoopStopped, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusServiceUnavailable},
		{fmt.Errorf("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := scanErrorStatus(tt.err); got != tt.want {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.want, got)
		}
	}
}

// ========================================
// Sessions
// ========================================

type fakeSessions struct {
	records []model.SessionRecord
	filter  *dto.SessionFilters
}

func (f *fakeSessions) Insert(rec *model.SessionRecord) (int64, error) {
	f.records = append(f.records, *rec)
	return int64(len(f.records)), nil
}

func (f *fakeSessions) GetByScanID(scanID string) (*model.SessionRecord, error) {
	for i := range f.records {
		if f.records[i].ScanID == scanID {
			return &f.records[i], nil
		}
	}
	return nil, nil
}

func (f *fakeSessions) GetAll(filter *dto.SessionFilters) ([]model.SessionRecord, error) {
	f.filter = filter
	end := filter.Offset + filter.Limit
	if end > len(f.records) {
		end = len(f.records)
	}
	if filter.Offset >= end {
		return nil, nil
	}
	return f.records[filter.Offset:end], nil
}

func (f *fakeSessions) GetTotalCount(*dto.SessionFilters) (int, error) { return len(f.records), nil }
func (f *fakeSessions) DeleteByScanID(string) error                    { return nil }

func TestGetSessionsHandler(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "scan_data.json"), make([]byte, 2048), 0644)

	repo := &fakeSessions{}
	for i := 0; i < 5; i++ {
		repo.Insert(&model.SessionRecord{ScanID: fmt.Sprintf("Scan_%d", i), Mode: "Object", Dir: dir, FrameCount: i})
	}

	rec := do(GetSessionsHandler(repo, logger.Discard()), http.MethodGet, "/api/sessions?page=2&limit=2&mode=object&dateBefore=2024-05-17", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var page dto.SessionsPage
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("Failed to decode page: %v", err)
	}
	if page.Page != 2 || page.TotalPages != 3 || page.TotalCount != 5 || len(page.Sessions) != 2 {
		t.Errorf("Unexpected page: %+v", page)
	}
	if page.Sessions[0].ScanID != "Scan_2" || page.Sessions[0].Size != "2.0 KB" {
		t.Errorf("Unexpected first session: %+v", page.Sessions[0])
	}
	if repo.filter.Mode != "Object" || repo.filter.Offset != 2 {
		t.Errorf("Unexpected filter: %+v", repo.filter)
	}
	if want := time.Date(2024, 5, 17, 23, 59, 59, 999999999, time.UTC); !repo.filter.StartedBefore.Equal(want) {
		t.Errorf("dateBefore should cover the whole day, got %v", repo.filter.StartedBefore)
	}

	rec = do(GetSessionsHandler(repo, logger.Discard()), http.MethodGet, "/api/sessions?mode=room", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown mode, got %d", rec.Code)
	}
}

func archiveRouter(archiver *export.Archiver, loop *scan.Loop, cfg *config.Config) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/sessions/archive/status", ArchiveStatusHandler(archiver, logger.Discard()))
	r.Post("/api/sessions/{id}/archive", ArchiveSessionHandler(archiver, loop, cfg, logger.Discard()))
	return r
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestArchiveSessionHandler(t *testing.T) {
	cfg := &config.Config{ScanRoot: t.TempDir(), ExportDirectory: t.TempDir()}
	sessionDir := filepath.Join(cfg.ScanRoot, "Scan_20240517_143000")
	os.MkdirAll(filepath.Join(sessionDir, "color"), 0755)
	os.WriteFile(filepath.Join(sessionDir, "color", "frame_000000.jpg"), []byte("jpeg"), 0644)

	loop := startLoopIn(t, cfg.ScanRoot, config.LiveSettings{Mode: model.ModeObject, Width: 32, Height: 24, TargetFPS: 3})
	archiver := export.NewArchiver(cfg.ExportDirectory, logger.Discard())
	r := archiveRouter(archiver, loop, cfg)

	tests := []struct {
		name string
		id   string
		want int
	}{
		{"existing session", "Scan_20240517_143000", http.StatusAccepted},
		{"unknown session", "Scan_20000101_000000", http.StatusNotFound},
		{"not a session", "logs", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(r, http.MethodPost, "/api/sessions/"+tt.id+"/archive")
			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
			archiver.Wait()
		})
	}

	rec := serve(r, http.MethodGet, "/api/sessions/archive/status")
	var st dto.ArchiveStatus
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("Failed to decode archive status: %v", err)
	}
	zipPath := filepath.Join(cfg.ExportDirectory, "Scan_20240517_143000.zip")
	if st.Exporting || st.Progress != 1 || st.LastExport != zipPath {
		t.Errorf("Unexpected archive status: %+v", st)
	}

	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatalf("Archive not written: %v", err)
	}
	defer zr.Close()
	if len(zr.File) != 1 || zr.File[0].Name != "color/frame_000000.jpg" {
		t.Errorf("Unexpected archive entries: %v", zr.File)
	}
}

func TestArchiveSessionHandler_ActiveSessionRefused(t *testing.T) {
	cfg := &config.Config{ScanRoot: t.TempDir(), ExportDirectory: t.TempDir()}
	loop := startLoopIn(t, cfg.ScanRoot, config.LiveSettings{Mode: model.ModeObject, Width: 32, Height: 24, TargetFPS: 10})
	archiver := export.NewArchiver(cfg.ExportDirectory, logger.Discard())
	r := archiveRouter(archiver, loop, cfg)
	log := logger.Discard()

	rec := do(StartScanHandler(loop, log), http.MethodPost, "/api/scan/start", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Start failed: %d", rec.Code)
	}
	id := decodeStatus(t, rec).SessionID

	deadline := time.Now().Add(5 * time.Second)
	for {
		st, err := loop.Status(context.Background())
		if err != nil {
			t.Fatalf("Status failed: %v", err)
		}
		if st.FrameCount > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("No frame captured")
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec = serve(r, http.MethodPost, "/api/sessions/"+id+"/archive")
	if rec.Code != http.StatusConflict {
		t.Fatalf("Expected 409 while the session is capturing, got %d", rec.Code)
	}
	if archiver.Exporting() || archiver.LastExportPath() != "" {
		t.Error("No export should run for an active session")
	}

	if rec := do(StopScanHandler(loop, log), http.MethodPost, "/api/scan/stop", ""); rec.Code != http.StatusOK {
		t.Fatalf("Stop failed: %d", rec.Code)
	}

	// frames may still be queued right after stop
	deadline = time.Now().Add(5 * time.Second)
	for {
		rec = serve(r, http.MethodPost, "/api/sessions/"+id+"/archive")
		if rec.Code == http.StatusAccepted {
			break
		}
		if rec.Code != http.StatusConflict || time.Now().After(deadline) {
			t.Fatalf("Expected the archive to start once drained, got %d: %s", rec.Code, rec.Body.String())
		}
		time.Sleep(10 * time.Millisecond)
	}
	archiver.Wait()

	zr, err := zip.OpenReader(filepath.Join(cfg.ExportDirectory, id+".zip"))
	if err != nil {
		t.Fatalf("Archive not written: %v", err)
	}
	defer zr.Close()
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	if !names["scan_data.json"] || !names["color/frame_000000.raw"] {
		t.Errorf("Archive of a finished session should hold its metadata and frames, got %v", names)
	}
}

// ========================================
// Logs
// ========================================

func TestLogHandlers(t *testing.T) {
	cfg := &config.Config{LogDirectory: t.TempDir()}
	log := logger.NewLogger(cfg)
	log.Error("disk on fire")

	r := chi.NewRouter()
	r.Get("/logs/{level}", ShowLogsHandler(log))
	r.Post("/logs/{level}/clear", ClearLogsHandler(log))

	rec := serve(r, http.MethodGet, "/logs/error")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "disk on fire") {
		t.Fatalf("Expected the error log, got %d: %q", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("Unexpected content type %q", ct)
	}

	if rec := serve(r, http.MethodPost, "/logs/error/clear"); rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204 on clear, got %d", rec.Code)
	}
	if data, _ := os.ReadFile(filepath.Join(cfg.LogDirectory, "error.log")); len(data) != 0 {
		t.Errorf("error.log should be empty after clear, got %q", data)
	}

	if rec := serve(r, http.MethodGet, "/logs/debug"); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for an unknown level, got %d", rec.Code)
	}

	r = chi.NewRouter()
	r.Get("/logs/{level}", ShowLogsHandler(logger.Discard()))
	if rec := serve(r, http.MethodGet, "/logs/info"); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 when logs are not kept on disk, got %d", rec.Code)
	}
}

// ========================================
// Auth
// ========================================

func TestLoginHandler(t *testing.T) {
	cfg := &config.Config{Password: "secret"}
	login := LoginHandler(cfg, logger.Discard())

	post := func(password string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString("password="+password))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		login(rec, req)
		return rec
	}

	if rec := post("wrong"); rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for wrong password, got %d", rec.Code)
	}

	rec := post("secret")
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("Expected redirect, got %d", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "authenticated" || cookies[0].Value != "true" {
		t.Errorf("Expected auth cookie, got %v", cookies)
	}

	rec = httptest.NewRecorder()
	LogoutHandler(rec, httptest.NewRequest(http.MethodGet, "/auth/logout", nil))
	if c := rec.Result().Cookies(); len(c) != 1 || c[0].MaxAge >= 0 {
		t.Errorf("Logout should expire the cookie, got %v", c)
	}
}
