package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"scancapture/internal/logger"
	"scancapture/internal/model"
)

func waitDrained(t *testing.T, q *PersistenceQueue) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		q.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("queue did not drain, %d pending", q.PendingCount())
	}
}

func TestPersistenceQueue_DrainsEveryRequestOnce(t *testing.T) {
	dir := t.TempDir()
	q := NewPersistenceQueue(time.Millisecond, logger.Discard())

	var mu sync.Mutex
	writes := make(map[string]int)
	q.writeFile = func(path string, data []byte) error {
		mu.Lock()
		writes[path]++
		mu.Unlock()
		return writeFile(path, data)
	}

	q.Begin()
	for i := 0; i < 50; i++ {
		q.Enqueue(model.SaveRequest{
			Path: filepath.Join(dir, ColorDir, fmt.Sprintf("frame_%06d.raw", i)),
			Data: []byte{byte(i)},
		})
	}
	q.SignalDraining()
	waitDrained(t, q)

	if q.PendingCount() != 0 {
		t.Errorf("PendingCount = %d, want 0", q.PendingCount())
	}
	if len(writes) != 50 {
		t.Fatalf("wrote %d distinct files, want 50", len(writes))
	}
	for path, n := range writes {
		if n != 1 {
			t.Errorf("%s written %d times", path, n)
		}
	}
	stats := q.Stats()
	if stats.Enqueued != 50 || stats.Written != 50 || stats.Failed != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}

	got, err := os.ReadFile(filepath.Join(dir, ColorDir, "frame_000007.raw"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(got) != 1 || got[0] != 7 {
		t.Errorf("unexpected file content %v", got)
	}
}

func TestPersistenceQueue_ConcurrentProducers(t *testing.T) {
	dir := t.TempDir()
	q := NewPersistenceQueue(time.Millisecond, logger.Discard())
	q.Begin()

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				q.Enqueue(model.SaveRequest{
					Path: filepath.Join(dir, fmt.Sprintf("p%d", p), fmt.Sprintf("%d.bin", i)),
					Data: []byte("x"),
				})
			}
		}(p)
	}
	wg.Wait()
	q.SignalDraining()
	waitDrained(t, q)

	if got := q.Stats().Written; got != 100 {
		t.Errorf("written = %d, want 100", got)
	}
}

func TestPersistenceQueue_FailureDoesNotStopWriter(t *testing.T) {
	q := NewPersistenceQueue(time.Millisecond, logger.Discard())
	q.writeFile = func(path string, data []byte) error {
		if path == "bad" {
			return errors.New("disk gone")
		}
		return nil
	}

	q.Begin()
	q.Enqueue(model.SaveRequest{Path: "good-1"})
	q.Enqueue(model.SaveRequest{Path: "bad"})
	q.Enqueue(model.SaveRequest{Path: "good-2"})
	q.SignalDraining()
	waitDrained(t, q)

	stats := q.Stats()
	if stats.Written != 2 || stats.Failed != 1 {
		t.Errorf("stats = %+v, want 2 written and 1 failed", stats)
	}
}

func TestPersistenceQueue_WriteIntoDeletedSessionIsLogged(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "Scan_deleted")
	// A regular file where the session folder should be makes MkdirAll fail.
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	q := NewPersistenceQueue(time.Millisecond, logger.Discard())
	q.Begin()
	q.Enqueue(model.SaveRequest{Path: filepath.Join(blocker, ColorDir, "frame_000000.jpg"), Data: []byte("x")})
	q.Enqueue(model.SaveRequest{Path: filepath.Join(dir, "ok.bin"), Data: []byte("x")})
	q.SignalDraining()
	waitDrained(t, q)

	if stats := q.Stats(); stats.Failed != 1 || stats.Written != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestPersistenceQueue_RestartsForNextSession(t *testing.T) {
	q := NewPersistenceQueue(time.Millisecond, logger.Discard())
	q.writeFile = func(string, []byte) error { return nil }

	for session := 0; session < 3; session++ {
		q.Begin()
		q.Enqueue(model.SaveRequest{Path: fmt.Sprintf("s%d", session)})
		q.SignalDraining()
		waitDrained(t, q)
	}

	if got := q.Stats().Written; got != 3 {
		t.Errorf("written = %d, want 3", got)
	}
}

func TestSessionStore_CreateLayout(t *testing.T) {
	root := filepath.Join(t.TempDir(), "Scans")
	store := NewSessionStore(root, logger.Discard())

	id := NewSessionID(time.Date(2025, 1, 4, 14, 30, 5, 0, time.UTC))
	if id != "Scan_20250104_143005" {
		t.Fatalf("unexpected id %s", id)
	}

	gotID, dir, err := store.Create(id)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if gotID != id {
		t.Errorf("id = %s, want %s", gotID, id)
	}
	for _, sub := range []string{ColorDir, DepthDir} {
		if info, err := os.Stat(filepath.Join(dir, sub)); err != nil || !info.IsDir() {
			t.Errorf("missing %s subfolder", sub)
		}
	}

	// Same second: the second folder gets a suffix instead of reusing the first.
	secondID, secondDir, err := store.Create(id)
	if err != nil {
		t.Fatalf("second Create: %v", err)
	}
	if secondID != id+"_2" || secondDir == dir {
		t.Errorf("expected suffixed id, got %s", secondID)
	}

	dirs, err := ListSessions(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(dirs) != 2 {
		t.Errorf("ListSessions returned %d dirs, want 2", len(dirs))
	}
}

func TestSessionStore_ScanDataRoundTrip(t *testing.T) {
	store := NewSessionStore(t.TempDir(), logger.Discard())
	_, dir, err := store.Create("Scan_test")
	if err != nil {
		t.Fatal(err)
	}

	pose := model.Identity()
	pose.Set(0, 3, 1.5)
	session := &model.Session{
		ID:         "Scan_test",
		Mode:       model.ModeSpace,
		Settings:   model.SessionSettings{Width: 1280, Height: 720, TargetFPS: 5},
		Intrinsics: model.Intrinsics{Width: 1280, Height: 720, Fx: 1000, Fy: 1000, Cx: 640, Cy: 360},
		Dir:        dir,
	}
	session.AppendFrame(model.FrameMetadata{FrameID: 0, Timestamp: 1.25, ColorFile: "color/frame_000000.jpg", DepthFile: "depth/frame_000000.png", Pose: pose})

	if err := store.WriteScanData(session); err != nil {
		t.Fatalf("WriteScanData: %v", err)
	}

	data, err := ReadScanData(dir)
	if err != nil {
		t.Fatalf("ReadScanData: %v", err)
	}
	back, err := data.Session(dir)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if back.Mode != model.ModeSpace || len(back.Frames) != 1 {
		t.Fatalf("unexpected session %+v", back)
	}
	if back.Frames[0].Pose != pose {
		t.Errorf("pose changed: %v", back.Frames[0].Pose)
	}
	if data.PoseConvention != "camera_to_world" {
		t.Errorf("pose_convention = %q", data.PoseConvention)
	}
}

func TestSessionStore_EmptySceneNotWritten(t *testing.T) {
	dir := t.TempDir()
	store := NewSessionStore(dir, logger.Discard())

	written, err := store.WriteSceneData(dir, model.SceneSnapshot{SessionID: "x"})
	if err != nil || written {
		t.Fatalf("written=%v err=%v, want nothing written", written, err)
	}
	if _, err := os.Stat(filepath.Join(dir, SceneDataFile)); !os.IsNotExist(err) {
		t.Error("scene_data.json should not exist")
	}
}

func TestPersistenceQueue_BeginStartsSingleWriter(t *testing.T) {
	dir := t.TempDir()
	q := NewPersistenceQueue(time.Millisecond, logger.Discard())

	// nothing started yet
	waitDrained(t, q)

	var mu sync.Mutex
	writes := 0
	q.writeFile = func(path string, data []byte) error {
		mu.Lock()
		writes++
		mu.Unlock()
		return writeFile(path, data)
	}

	q.Begin()
	q.Begin()
	q.Enqueue(model.SaveRequest{Path: filepath.Join(dir, "a.raw"), Data: []byte{1}})
	q.SignalDraining()
	waitDrained(t, q)

	if writes != 1 || q.Stats().Written != 1 {
		t.Errorf("Expected exactly one write from a single writer, got %d", writes)
	}
}
