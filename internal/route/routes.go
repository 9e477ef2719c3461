package route

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"scancapture/internal/config"
	"scancapture/internal/handler"
	"scancapture/internal/logger"
	"scancapture/internal/middleware"
	"scancapture/internal/repository"
	"scancapture/internal/service/export"
	"scancapture/internal/service/scan"
	"scancapture/internal/service/websocket"
)

// Deps groups the services the HTTP surface talks to.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Loop     *scan.Loop
	Hub      *websocket.HubService
	Sessions repository.SessionRepository
	Archiver *export.Archiver
}

// dynamicHTMLHandler serves /path as /static/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if path == "/" {
		path = "/index"
	}

	filePath := filepath.Join("static", filepath.Clean("/"+path)+".html")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, filePath)
}

// SetupRoutes registers the scan control API, the status stream, the session
// catalog, log endpoints and static pages behind the authentication middleware.
func SetupRoutes(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))

	r.Route("/api", func(r chi.Router) {
		r.Post("/scan/start", handler.StartScanHandler(d.Loop, d.Logger))
		r.Post("/scan/stop", handler.StopScanHandler(d.Loop, d.Logger))
		r.Put("/scan/settings", handler.SettingsHandler(d.Loop, d.Logger))
		r.Get("/scan/status", handler.StatusHandler(d.Loop, d.Logger))
		r.Get("/view", handler.StatusWebsocketHandler(d.Hub, d.Logger))

		if d.Sessions != nil {
			r.Get("/sessions", handler.GetSessionsHandler(d.Sessions, d.Logger))
		}
		r.Get("/sessions/archive/status", handler.ArchiveStatusHandler(d.Archiver, d.Logger))
		r.Post("/sessions/{id}/archive", handler.ArchiveSessionHandler(d.Archiver, d.Loop, d.Config, d.Logger))
	})

	r.Route("/logs", func(r chi.Router) {
		r.Get("/{level}", handler.ShowLogsHandler(d.Logger))
		r.Post("/{level}/clear", handler.ClearLogsHandler(d.Logger))
	})

	r.Post("/auth/login", handler.LoginHandler(d.Config, d.Logger))
	r.HandleFunc("/auth/logout", handler.LogoutHandler)

	// /settings -> static/settings.html
	r.NotFound(dynamicHTMLHandler)

	return middleware.AuthMiddleware(r)
}
