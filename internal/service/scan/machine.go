// Package scan drives a capture session: countdown, Object/Space capture,
// stop guards and finalization. A Machine is not safe for concurrent use;
// Loop owns it on a single goroutine.
package scan

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"scancapture/internal/clock"
	"scancapture/internal/config"
	"scancapture/internal/dto"
	"scancapture/internal/logger"
	"scancapture/internal/model"
	"scancapture/internal/service/camera"
	"scancapture/internal/service/imaging"
	"scancapture/internal/service/room"
	"scancapture/internal/service/scheduler"
	"scancapture/internal/service/storage"
)

var (
	ErrNotIdle           = errors.New("scan already in progress")
	ErrNotScanning       = errors.New("no scan in progress")
	ErrStopGuarded       = errors.New("stop ignored in current phase")
	ErrMissingDependency = errors.New("missing dependency")
)

// MinSourceFPS is the lowest rate the sensor is asked to stream at; the
// scheduler picks which frames are kept.
const MinSourceFPS = 30

type State int

const (
	StateIdle State = iota
	StateCountdown
	StateObjectCapturing
	StateSpaceAwaitingGeometry
	StateSpaceCapturingAppearance
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateCountdown:
		return "CountdownDelay"
	case StateObjectCapturing:
		return "ObjectCapturing"
	case StateSpaceAwaitingGeometry:
		return "SpaceAwaitingGeometry"
	case StateSpaceCapturingAppearance:
		return "SpaceCapturingAppearance"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Capturing reports whether frames are taken in this state.
func (s State) Capturing() bool {
	return s == StateObjectCapturing || s == StateSpaceCapturingAppearance
}

// Timing holds the room-capture protocol deadlines.
type Timing struct {
	RoomPoll         time.Duration
	RoomTimeout      time.Duration
	LoadModelRetries []time.Duration // offsets from the capture request
	MinAppearance    time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		RoomPoll:         2 * time.Second,
		RoomTimeout:      60 * time.Second,
		LoadModelRetries: []time.Duration{4 * time.Second, 10 * time.Second},
		MinAppearance:    2 * time.Second,
	}
}

// Queue is the slice of the persistence queue the machine needs.
type Queue interface {
	Begin()
	Enqueue(req model.SaveRequest)
	SignalDraining()
	PendingCount() int
}

type Exporter interface {
	Export(session *model.Session, outputDir string) error
}

// Catalog indexes finalized sessions.
type Catalog interface {
	Record(session *model.Session, stoppedAt time.Time, hasScene bool) error
}

// Deps are the collaborators handed to a Machine. Gateway, Exporter and
// Catalog are optional; Space mode needs a Gateway.
type Deps struct {
	Source   camera.FrameSource
	Gateway  room.Gateway
	Store    *storage.SessionStore
	Queue    Queue
	Encoder  imaging.Encoder
	Exporter Exporter
	Catalog  Catalog
	Clock    clock.Clock
	Logger   *logger.Logger
	Timing   Timing
}

type Machine struct {
	deps      Deps
	timing    Timing
	log       *logger.Logger
	live      config.LiveSettings
	scheduler *scheduler.CaptureScheduler

	state   State
	session *model.Session
	last    *model.Session
	message string

	// pending start
	pendingMode     model.ScanMode
	pendingSettings model.SessionSettings
	countdownEnd    time.Time

	// Space mode
	events           chan roomEvent
	unsubscribe      func()
	awaitStart       time.Time
	nextPoll         time.Time
	retry            int
	geometryCaptured bool
	phase2Start      time.Time
}

func NewMachine(deps Deps, live config.LiveSettings) *Machine {
	timing := deps.Timing
	if timing.RoomPoll <= 0 {
		timing = DefaultTiming()
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}
	live = live.Validate()
	return &Machine{
		deps:      deps,
		timing:    timing,
		log:       deps.Logger,
		live:      live,
		scheduler: scheduler.New(live.TargetFPS),
		events:    make(chan roomEvent, 16),
	}
}

func (m *Machine) State() State { return m.state }

// Session returns the active session, nil when idle or counting down.
func (m *Machine) Session() *model.Session { return m.session }

// LastSession returns the most recently finalized session.
func (m *Machine) LastSession() *model.Session { return m.last }

func (m *Machine) Live() config.LiveSettings { return m.live }

// SetMode switches the scan mode. Only allowed while idle.
func (m *Machine) SetMode(mode model.ScanMode) error {
	if m.state != StateIdle {
		return ErrNotIdle
	}
	m.live.Mode = mode
	m.log.Info("Scan mode set to %s", mode)
	return nil
}

// UpdateSettings replaces the live configuration. The active session keeps
// the snapshot it started with; a mode change is refused unless idle.
func (m *Machine) UpdateSettings(live config.LiveSettings) error {
	live = live.Validate()
	if live.Mode != m.live.Mode && m.state != StateIdle {
		return ErrNotIdle
	}
	m.live = live
	return nil
}

// Countdown returns the whole seconds left before capture starts.
func (m *Machine) Countdown() int {
	if m.state != StateCountdown {
		return 0
	}
	left := m.countdownEnd.Sub(m.deps.Clock.Now())
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Seconds()))
}

// StartScan begins a session, after the configured countdown if any.
// Calling it while a scan is active changes nothing and returns ErrNotIdle.
func (m *Machine) StartScan() error {
	if m.state != StateIdle {
		return ErrNotIdle
	}
	if err := m.checkDeps(m.live.Mode); err != nil {
		return err
	}

	m.pendingMode = m.live.Mode
	m.pendingSettings = m.live.Snapshot()
	m.message = ""
	now := m.deps.Clock.Now()

	if m.live.StartDelay <= 0 {
		return m.begin(now)
	}

	m.state = StateCountdown
	m.countdownEnd = now.Add(m.live.StartDelay)
	m.log.Info("Scan starting in %v (%s mode)", m.live.StartDelay, m.pendingMode)
	return nil
}

func (m *Machine) checkDeps(mode model.ScanMode) error {
	d := m.deps
	var missing []string
	if d.Source == nil {
		missing = append(missing, "frame source")
	}
	if d.Store == nil {
		missing = append(missing, "session store")
	}
	if d.Queue == nil {
		missing = append(missing, "persistence queue")
	}
	if d.Encoder == nil {
		missing = append(missing, "encoder")
	}
	if mode == model.ModeSpace && d.Gateway == nil {
		missing = append(missing, "room gateway")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrMissingDependency, missing)
	}
	return nil
}

// begin creates the session folder and enters the first capture phase.
func (m *Machine) begin(now time.Time) error {
	id, dir, err := m.deps.Store.Create(storage.NewSessionID(now))
	if err != nil {
		m.state = StateIdle
		m.message = err.Error()
		return fmt.Errorf("failed to start scan: %w", err)
	}

	settings := m.pendingSettings
	src := m.deps.Source
	src.SetResolution(settings.Width, settings.Height)
	src.SetFPS(sourceFPS(settings.TargetFPS))
	src.SetFlashlight(settings.Flashlight)

	intrinsics := src.Intrinsics()
	if err := intrinsics.Validate(); err != nil {
		m.log.Warning("Frame source reported bad intrinsics (%v), using defaults", err)
		intrinsics = camera.DefaultIntrinsics(settings.Width, settings.Height)
	}

	m.session = &model.Session{
		ID:         id,
		Mode:       m.pendingMode,
		Settings:   settings,
		Intrinsics: intrinsics,
		Dir:        dir,
		StartedAt:  now,
	}
	m.geometryCaptured = false
	m.deps.Queue.Begin()
	m.scheduler.SetTargetFPS(settings.TargetFPS)
	m.log.Info("🎬 Scan %s started (%s, %dx%d @ %g fps)", id, m.session.Mode, settings.Width, settings.Height, settings.TargetFPS)

	if m.session.Mode == model.ModeObject {
		m.enterCapture(StateObjectCapturing, now)
		return nil
	}

	m.state = StateSpaceAwaitingGeometry
	m.drainEvents()
	m.unsubscribe = m.deps.Gateway.Subscribe(&roomListener{events: m.events, log: m.log})

	if m.roomAvailable() {
		m.log.Info("Room model already available, skipping room capture")
		m.captureGeometry()
		m.enterAppearance(now, now)
		return nil
	}

	if err := m.deps.Gateway.RequestCapture(); err != nil {
		m.log.Error("Room capture request failed: %v", err)
	}
	m.awaitStart = now
	m.nextPoll = now.Add(m.timing.RoomPoll)
	m.retry = 0
	return nil
}

func sourceFPS(target float32) int {
	fps := int(math.Ceil(float64(target)))
	if fps < MinSourceFPS {
		fps = MinSourceFPS
	}
	return fps
}

func (m *Machine) enterCapture(state State, now time.Time) {
	if err := m.deps.Source.StartStream(); err != nil {
		m.log.Warning("Frame source failed to start streaming: %v", err)
	}
	m.scheduler.Start(now)
	m.state = state
}

// enterAppearance starts the Space appearance phase. phase2Start may lie in the
// past when the room wait timed out, so the stop guard is already satisfied.
func (m *Machine) enterAppearance(now, phase2Start time.Time) {
	m.enterCapture(StateSpaceCapturingAppearance, now)
	m.phase2Start = phase2Start
	m.log.Info("Space scan %s capturing appearance", m.session.ID)
}

func (m *Machine) roomAvailable() bool {
	gw := m.deps.Gateway
	return gw.IsModelLoaded() || len(gw.QuerySnapshot()) > 0
}

// captureGeometry snapshots room objects and writes scene_data.json.
func (m *Machine) captureGeometry() {
	objects := m.deps.Gateway.QuerySnapshot()
	snap := model.SceneSnapshot{SessionID: m.session.ID, Objects: objects}

	written, err := m.deps.Store.WriteSceneData(m.session.Dir, snap)
	if err != nil {
		m.log.Error("Failed to write scene data for %s: %v", m.session.ID, err)
	}
	m.geometryCaptured = written
	m.log.Info("Captured room model with %d object(s)", len(objects))
}

// Tick advances the machine one step: room events, countdown and room-wait
// deadlines, then at most one frame capture.
func (m *Machine) Tick() {
	now := m.deps.Clock.Now()
	m.handleEvents(now)

	switch m.state {
	case StateCountdown:
		if !now.Before(m.countdownEnd) {
			if err := m.begin(now); err != nil {
				m.log.Error("%v", err)
			}
		}
	case StateSpaceAwaitingGeometry:
		m.awaitGeometry(now)
	}

	if m.state.Capturing() {
		m.captureTick(now)
	}
}

func (m *Machine) awaitGeometry(now time.Time) {
	waited := now.Sub(m.awaitStart)

	if m.retry < len(m.timing.LoadModelRetries) && waited >= m.timing.LoadModelRetries[m.retry] {
		m.retry++
		m.log.Info("Room model not reported after %v, requesting load (attempt %d)", waited, m.retry)
		if err := m.deps.Gateway.LoadModel(); err != nil {
			m.log.Error("Room model load failed: %v", err)
		}
	}

	if !now.Before(m.nextPoll) {
		m.nextPoll = now.Add(m.timing.RoomPoll)
		if m.roomAvailable() {
			m.log.Info("Room model found by poll after %v", waited)
			m.captureGeometry()
			m.enterAppearance(now, now)
			return
		}
	}

	if waited >= m.timing.RoomTimeout {
		m.log.Warning("No room model after %v, capturing appearance without geometry", m.timing.RoomTimeout)
		m.message = "room model not found"
		m.enterAppearance(now, now.Add(-m.timing.MinAppearance))
	}
}

func (m *Machine) captureTick(now time.Time) {
	if !m.scheduler.Tick(now) {
		return
	}
	src := m.deps.Source
	if !src.HasNewFrame() {
		return
	}
	frame := src.LatestFrame()
	if !frame.Color.Valid() {
		return
	}

	enc := m.deps.Encoder
	id := m.session.NextFrameID()

	colorBytes, err := enc.EncodeColor(frame.Color)
	if err != nil {
		m.log.Error("Failed to encode color frame %d: %v", id, err)
		return
	}
	meta := model.FrameMetadata{
		FrameID:   id,
		Timestamp: frame.Timestamp,
		ColorFile: imaging.FrameFile(storage.ColorDir, id, enc.ColorExt()),
		Pose:      frame.Pose,
	}
	m.enqueue(meta.ColorFile, colorBytes)

	if frame.Depth.Valid() {
		depthBytes, err := enc.EncodeDepth(frame.Depth)
		if err != nil {
			m.log.Warning("Failed to encode depth frame %d: %v", id, err)
		} else {
			meta.DepthFile = imaging.FrameFile(storage.DepthDir, id, enc.DepthExt())
			m.enqueue(meta.DepthFile, depthBytes)
		}
	}

	m.session.AppendFrame(meta)
}

func (m *Machine) enqueue(rel string, data []byte) {
	m.deps.Queue.Enqueue(model.SaveRequest{
		Path: filepath.Join(m.session.Dir, filepath.FromSlash(rel)),
		Data: data,
	})
}

// StopScan ends the scan. It cancels a countdown, is refused while waiting
// for room geometry or during the first moments of the appearance phase,
// and otherwise finalizes the session.
func (m *Machine) StopScan() error {
	now := m.deps.Clock.Now()

	switch m.state {
	case StateIdle:
		return ErrNotScanning
	case StateCountdown:
		m.state = StateIdle
		m.log.Info("Scan start cancelled during countdown")
		return nil
	case StateSpaceAwaitingGeometry:
		m.log.Info("Stop ignored while waiting for room geometry")
		return ErrStopGuarded
	case StateSpaceCapturingAppearance:
		if now.Sub(m.phase2Start) < m.timing.MinAppearance {
			m.log.Info("Stop ignored, appearance phase started %v ago", now.Sub(m.phase2Start))
			return ErrStopGuarded
		}
	}

	m.finalize(now)
	return nil
}

// Shutdown finalizes whatever is running, ignoring stop guards.
func (m *Machine) Shutdown() {
	switch m.state {
	case StateIdle:
		return
	case StateCountdown:
		m.state = StateIdle
		return
	}
	m.finalize(m.deps.Clock.Now())
}

func (m *Machine) finalize(now time.Time) {
	s := m.session
	m.deps.Source.StopStream()
	m.scheduler.Stop()

	if s.Mode == model.ModeSpace && !m.geometryCaptured && m.deps.Gateway != nil {
		m.captureGeometry()
	}
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}

	if err := m.deps.Store.WriteScanData(s); err != nil {
		m.log.Error("Failed to write scan data for %s: %v", s.ID, err)
	}
	if m.deps.Exporter != nil {
		if err := m.deps.Exporter.Export(s, s.Dir); err != nil {
			m.log.Error("Export failed for %s: %v", s.ID, err)
		}
	}
	if m.deps.Catalog != nil {
		if err := m.deps.Catalog.Record(s, now, m.geometryCaptured); err != nil {
			m.log.Error("Failed to catalog %s: %v", s.ID, err)
		}
	}

	m.deps.Queue.SignalDraining()
	m.log.Info("🛑 Scan %s stopped with %d frame(s)", s.ID, len(s.Frames))

	m.last = s
	m.session = nil
	m.state = StateIdle
}

// Status summarizes the machine for viewers.
func (m *Machine) Status() dto.ScanStatus {
	st := dto.ScanStatus{
		State:     m.state.String(),
		Mode:      m.live.Mode.String(),
		Countdown: m.Countdown(),
		TargetFPS: m.live.TargetFPS,
		Message:   m.message,
	}
	if m.deps.Queue != nil {
		st.PendingSaves = m.deps.Queue.PendingCount()
	}
	if m.state == StateCountdown {
		st.Mode = m.pendingMode.String()
		st.TargetFPS = m.pendingSettings.TargetFPS
	}
	if s := m.session; s != nil {
		st.SessionID = s.ID
		st.Mode = s.Mode.String()
		st.FrameCount = len(s.Frames)
		st.TargetFPS = s.Settings.TargetFPS
	}
	return st
}
