package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"scancapture/internal/clock"
	"scancapture/internal/config"
	"scancapture/internal/logger"
	"scancapture/internal/repository"
	"scancapture/internal/repository/sqlite"
	"scancapture/internal/route"
	"scancapture/internal/service/camera"
	"scancapture/internal/service/export"
	"scancapture/internal/service/opencv"
	"scancapture/internal/service/room"
	"scancapture/internal/service/scan"
	"scancapture/internal/service/storage"
	"scancapture/internal/service/websocket"
)

type App struct {
	config     *config.Config
	logger     *logger.Logger
	db         *sqlite.DB
	source     camera.FrameSource
	gateway    *room.SimulatedGateway
	queue      *storage.PersistenceQueue
	hubService *websocket.HubService
	loop       *scan.Loop
	archiver   *export.Archiver
	sessions   repository.SessionRepository
}

func NewApp() (*App, error) {
	cfg := config.Load()
	log := logger.NewLogger(cfg)

	if err := os.MkdirAll(cfg.ScanRoot, 0755); err != nil {
		return nil, fmt.Errorf("failed to create scan root: %w", err)
	}

	a := &App{
		config:     cfg,
		logger:     log,
		queue:      storage.NewPersistenceQueue(cfg.QueueIdleDelay, log),
		hubService: websocket.NewHubService(log),
		archiver:   export.NewArchiver(cfg.ExportDirectory, log),
	}

	deps := scan.Deps{
		Store:    storage.NewSessionStore(cfg.ScanRoot, log),
		Queue:    a.queue,
		Encoder:  opencv.NewEncoder(),
		Exporter: export.NewCoordinateExporter(log),
		Clock:    clock.Real{},
		Logger:   log,
	}

	// The catalog is optional; scans still land on disk without it.
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		log.Error("Failed to create database directory: %v", err)
	} else if db, err := sqlite.New(cfg.DatabasePath); err != nil {
		log.Error("Failed to open session catalog, continuing without it: %v", err)
	} else {
		a.db = db
		catalog := sqlite.NewCatalog(db)
		a.sessions = catalog.Sessions()
		deps.Catalog = catalog
	}

	var fixture *room.Fixture
	if cfg.RoomFixture != "" {
		f, err := room.LoadFixture(cfg.RoomFixture)
		if err != nil {
			log.Warning("Failed to load room fixture %s: %v", cfg.RoomFixture, err)
		} else {
			fixture = f
		}
	}
	a.gateway = room.NewSimulatedGateway(fixture, cfg.RoomCaptureTime, log)
	deps.Gateway = a.gateway

	a.source = opencv.OpenSource(cfg, deps.Clock, log)
	deps.Source = a.source

	machine := scan.NewMachine(deps, cfg.Live)
	a.loop = scan.NewLoop(machine, cfg.TickInterval, a.hubService, log)

	return a, nil
}

// Run serves HTTP and drives the scan loop until ctx is cancelled. An active
// scan is finalized before Run returns.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.hubService.Run(ctx)

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		a.loop.Run(ctx)
	}()

	router := route.SetupRoutes(route.Deps{
		Config:   a.config,
		Logger:   a.logger,
		Loop:     a.loop,
		Hub:      a.hubService,
		Sessions: a.sessions,
		Archiver: a.archiver,
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.config.Port),
		Handler: router,
	}

	fmt.Printf("🚀 Scan Capture Server\n")
	fmt.Printf("📍 URL: http://localhost:%d\n", a.config.Port)
	fmt.Printf("🔑 Password: %s\n", a.config.Password)
	fmt.Printf("📁 Scans: %s\n", a.config.ScanRoot)
	fmt.Printf("🎯 Mode: %s @ %.0f fps\n", a.config.Live.Mode, a.config.Live.TargetFPS)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		cancel()
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	server.Shutdown(shutdownCtx)

	<-loopDone
	a.close()
	return err
}

func (a *App) close() {
	a.queue.Wait()
	a.archiver.Wait()
	a.source.StopStream()
	if c, ok := a.source.(interface{ Close() error }); ok {
		c.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	a.logger.Info("Shutdown complete")
}
