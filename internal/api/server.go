package api

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/star/satexplorer/internal/auth"
	"github.com/star/satexplorer/internal/explorer"
	"github.com/star/satexplorer/internal/health"
	"github.com/star/satexplorer/internal/httputil"
	"github.com/star/satexplorer/internal/metrics"
	"github.com/star/satexplorer/internal/stream"
)

// CatalogControl is the write side of the catalog cache.
type CatalogControl interface {
	Refresh(ctx context.Context) error
	Ready() bool
}

// Deps are the components the server routes to.
type Deps struct {
	Explorer   *explorer.Explorer
	Catalog    CatalogControl
	Stream     *stream.Handler
	Web        fs.FS // index.html, selected.html, app.js, styles.css
	TrustProxy bool
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, logger *slog.Logger, authCfg auth.Config, deps Deps) *Server {
	mux := http.NewServeMux()
	h := &handlers{explorer: deps.Explorer, catalog: deps.Catalog, logger: logger}

	// Probes and metrics.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(deps.Catalog.Ready))
	mux.Handle("GET /metrics", metrics.Handler())

	// Catalog.
	mux.HandleFunc("GET /api/v1/catalog", h.catalog)
	mux.HandleFunc("GET /api/v1/catalog/status", h.catalogStatus)
	mux.HandleFunc("POST /api/v1/catalog/refresh", h.catalogRefresh)

	// Selection.
	mux.HandleFunc("GET /api/v1/selection", h.selection)
	mux.HandleFunc("DELETE /api/v1/selection", h.selectionClear)
	mux.HandleFunc("POST /api/v1/selection/bulk", h.selectionBulk)
	mux.HandleFunc("GET /api/v1/selection/overview", h.selectionOverview)
	mux.HandleFunc("PUT /api/v1/selection/{id}", h.selectionAdd)
	mux.HandleFunc("DELETE /api/v1/selection/{id}", h.selectionRemove)

	if deps.Stream != nil {
		mux.HandleFunc("GET /api/v1/stream/selection", deps.Stream.HandleSelection)
	}

	// Pages and assets.
	if deps.Web != nil {
		mux.HandleFunc("GET /{$}", page(deps.Web, "index.html", logger))
		mux.HandleFunc("GET /selected", page(deps.Web, "selected.html", logger))
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(deps.Web)))
	}

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(authCfg)(handler)
	handler = loggingMiddleware(logger, deps.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func page(fsys fs.FS, name string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			logger.Error("page missing from web bundle", "component", "api", "page", name, "error", err)
			http.Error(w, "page unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(body)
	}
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// requestIDHeader carries the request id in both directions. A caller
// supplied id is kept so logs correlate across hops.
const requestIDHeader = "X-Request-ID"

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := r.Header.Get(requestIDHeader)
			if reqID == "" || len(reqID) > 128 {
				reqID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, reqID)
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"request_id", reqID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
