package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appanalysis "github.com/bryanwahyu/heartscan/internal/application/analysis"
	appusers "github.com/bryanwahyu/heartscan/internal/application/users"
	domain "github.com/bryanwahyu/heartscan/internal/domain/analysis"
	"github.com/bryanwahyu/heartscan/internal/logger"
	"github.com/bryanwahyu/heartscan/internal/middleware"
)

// Options carries the router's non-service dependencies.
type Options struct {
	UploadsDir     string
	MaxUploadBytes int64
	ProtectUsers   bool
	ProtectStats   bool
	SecureCookies  bool
	SessionTTL     time.Duration
	AllowedOrigins []string

	// Limiter throttles /upload, /login and /registro; nil disables it.
	Limiter *middleware.RateLimiter
	// Health feeds /health; Ready feeds /ready.
	Health map[string]middleware.HealthChecker
	Ready  map[string]middleware.HealthChecker
}

type Router struct {
	analysis *appanalysis.Service
	users    *appusers.Service
	log      *logger.Logger
	opts     Options
	pages    *renderer
}

func NewRouter(analysisSvc *appanalysis.Service, usersSvc *appusers.Service, log *logger.Logger, opts Options) http.Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = domain.MaxUploadBytes
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	r := &Router{
		analysis: analysisSvc,
		users:    usersSvc,
		log:      log,
		opts:     opts,
		pages:    newRenderer(),
	}

	mux := chi.NewRouter()
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(middleware.RequestLogger(log))
	mux.Use(middleware.LoadSession(usersSvc))

	mux.Get("/health", middleware.HealthHandler(opts.Health))
	mux.Get("/ready", middleware.ReadinessHandler(opts.Ready))
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Get("/", r.page("index.html"))
	mux.Get("/historial", r.page("historial.html"))
	mux.Get("/analisis/{id}", r.page("analisis-detalle.html"))
	mux.Get("/login", r.page("login.html"))
	mux.Get("/registro", r.page("registro.html"))
	mux.Get("/logout", r.handleLogout)
	mux.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(filesOnly{http.Dir(opts.UploadsDir)})))

	mux.Group(func(rt chi.Router) {
		if opts.Limiter != nil {
			rt.Use(middleware.RateLimit(opts.Limiter))
		}
		rt.Post("/upload", r.handleUpload)
		rt.Post("/login", r.handleLogin)
		rt.Post("/registro", r.handleRegister)
	})

	mux.Group(func(rt chi.Router) {
		if opts.ProtectStats {
			rt.Use(middleware.RequireSession)
		}
		rt.Get("/estadisticas", r.page("estadisticas.html"))
	})
	mux.Group(func(rt chi.Router) {
		if opts.ProtectUsers {
			rt.Use(middleware.RequireSession)
		}
		rt.Get("/usuarios", r.page("usuarios.html"))
	})

	mux.Route("/api", func(rt chi.Router) {
		rt.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{"GET", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		rt.Get("/historial", r.wrap(r.handleHistory))
		rt.Get("/analisis/{id}", r.wrap(r.handleDetail))
		rt.Group(func(rt chi.Router) {
			if opts.ProtectStats {
				rt.Use(middleware.RequireSessionAPI)
			}
			rt.Get("/estadisticas", r.wrap(r.handleStats))
		})
		rt.Group(func(rt chi.Router) {
			if opts.ProtectUsers {
				rt.Use(middleware.RequireSessionAPI)
			}
			rt.Get("/usuarios", r.wrap(r.handleUsers))
		})
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// apiError pins the status and the client-facing message of a JSON failure.
type apiError struct {
	status  int
	message string
	err     error
}

func (e *apiError) Error() string { return e.message + ": " + e.err.Error() }
func (e *apiError) Unwrap() error { return e.err }

func failWith(status int, message string, err error) error {
	return &apiError{status: status, message: message, err: err}
}

// wrap turns a returned error into a {"error": "..."} response.
func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		status, msg := http.StatusInternalServerError, "Error interno del servidor"
		var ae *apiError
		switch {
		case errors.As(err, &ae):
			status, msg = ae.status, ae.message
		case errors.Is(err, domain.ErrNotFound):
			status, msg = http.StatusNotFound, "Análisis no encontrado"
		}
		if status >= 500 {
			r.log.Error("api request failed", "path", req.URL.Path, "error", err)
		}
		writeJSON(w, status, map[string]string{"error": msg})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// filesOnly hides directory listings under /uploads.
type filesOnly struct {
	fs http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}
	st, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if st.IsDir() {
		file.Close()
		return nil, os.ErrNotExist
	}
	return file, nil
}
