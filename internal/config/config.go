package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"scancapture/internal/model"
)

type Config struct {
	Port            int
	Password        string
	ScanRoot        string
	LogDirectory    string
	DatabasePath    string
	ExportDirectory string
	CameraDevice    int    // -1 selects the synthetic source
	RoomFixture     string // YAML room layout for the simulated room subsystem
	RoomCaptureTime time.Duration
	TickInterval    time.Duration
	QueueIdleDelay  time.Duration
	Live            LiveSettings
}

func Load() *Config {
	mode, err := model.ParseScanMode(getEnv("SCAN_MODE", "object"))
	if err != nil {
		mode = model.ModeObject
	}

	cfg := &Config{
		Port:            getEnvAsInt("PORT", 8080),
		Password:        getEnv("PASSWORD", "scanner"),
		ScanRoot:        getEnv("SCAN_ROOT", filepath.Join(".", "Scans")),
		LogDirectory:    getEnv("LOG_DIR", filepath.Join(".", "logs")),
		DatabasePath:    getEnv("DB_PATH", filepath.Join(".", "data", "sessions.db")),
		ExportDirectory: getEnv("EXPORT_DIR", filepath.Join(".", "Export")),
		CameraDevice:    getEnvAsInt("CAMERA_DEVICE", -1),
		RoomFixture:     getEnv("ROOM_FIXTURE", ""),
		RoomCaptureTime: time.Duration(getEnvAsInt("ROOM_CAPTURE_MS", 3000)) * time.Millisecond,
		TickInterval:    time.Duration(getEnvAsInt("TICK_INTERVAL_MS", 16)) * time.Millisecond, // ~60 Hz
		QueueIdleDelay:  time.Duration(getEnvAsInt("QUEUE_IDLE_MS", 10)) * time.Millisecond,
		Live: LiveSettings{
			Mode:       mode,
			Width:      getEnvAsInt("CAPTURE_WIDTH", 1280),
			Height:     getEnvAsInt("CAPTURE_HEIGHT", 720),
			TargetFPS:  float32(getEnvAsFloat("TARGET_FPS", 3)),
			Flashlight: getEnvAsBool("FLASHLIGHT", false),
			StartDelay: time.Duration(getEnvAsInt("START_DELAY", 3)) * time.Second,
		},
	}
	cfg.Live = cfg.Live.Validate()
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return defaultValue
}
