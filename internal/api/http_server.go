package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"livemenu/internal/config"
	"livemenu/internal/database"
	"livemenu/internal/export"
	"livemenu/internal/metrics"
	"livemenu/internal/models"
	"livemenu/internal/service"
	"livemenu/internal/storage"
	"livemenu/internal/worker"
)

const maxBodyBytes = 1 << 20

// HTTPServer is the admin API of the menu: editing, archives, exports.
type HTTPServer struct {
	cfg     *config.APIConfig
	menu    *service.MenuService
	exports *service.ExportService
	checker HealthChecker
	server  *http.Server
	log     zerolog.Logger
}

func NewHTTPServer(
	cfg *config.APIConfig,
	menu *service.MenuService,
	exports *service.ExportService,
	checker HealthChecker,
	auth *Authenticator,
	logger *zerolog.Logger,
) *HTTPServer {
	srv := &HTTPServer{cfg: cfg, menu: menu, exports: exports, checker: checker, log: zerolog.Nop()}
	if logger != nil {
		srv.log = logger.With().Str("component", "http").Logger()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", srv.handleHealthz)
	mux.HandleFunc("GET /readyz", srv.handleReadyz)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/v1/menu", srv.handleGetMenu)
	mux.HandleFunc("POST /api/v1/menu/{section}/{category}/items", srv.handleAddItem)
	mux.HandleFunc("PUT /api/v1/menu/{section}/{category}/items/{index}", srv.handleUpdateItem)
	mux.HandleFunc("DELETE /api/v1/menu/{section}/{category}/items/{index}", srv.handleDeleteItem)
	mux.HandleFunc("POST /api/v1/menu/prices", srv.handleAdjustPrices)
	mux.HandleFunc("POST /api/v1/menu/reset", srv.handleReset)

	mux.HandleFunc("GET /api/v1/archives", srv.handleListArchives)
	mux.HandleFunc("POST /api/v1/archives", srv.handleCreateArchive)
	mux.HandleFunc("GET /api/v1/archives/{id}", srv.handleGetArchive)
	mux.HandleFunc("POST /api/v1/archives/{id}/restore", srv.handleRestoreArchive)
	mux.HandleFunc("POST /api/v1/archives/{id}/export", srv.handleExportArchive)

	mux.HandleFunc("GET /api/v1/plan", srv.handlePlan)
	mux.HandleFunc("POST /api/v1/exports", srv.handleCreateExport)
	mux.HandleFunc("GET /api/v1/exports", srv.handleListExports)
	mux.HandleFunc("GET /api/v1/exports/{id}", srv.handleGetExport)
	mux.HandleFunc("GET /api/v1/artifacts/{key...}", srv.handleArtifact)
	mux.HandleFunc("GET /api/v1/pricelist", srv.handlePriceList)

	handler := srv.loggingMiddleware(recoverMiddleware(&srv.log, auth.Wrap(mux)))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	return srv
}

// Handler returns the full middleware chain.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.IncHTTP(endpoint)

		ev := s.log.Info()
		if recorder.status >= http.StatusInternalServerError {
			ev = s.log.Error()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func recoverMiddleware(log *zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Str("path", r.URL.Path).Str("panic", fmt.Sprint(rec)).Msg("http handler panic")
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// statusFor maps domain errors onto HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrItemNameRequired),
		errors.Is(err, models.ErrConflictingPrices),
		errors.Is(err, models.ErrUnknownSection),
		errors.Is(err, service.ErrInvalidPercent),
		errors.Is(err, export.ErrInvalidRequest),
		errors.Is(err, storage.ErrInvalidKey):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrCategoryNotFound),
		errors.Is(err, models.ErrItemNotFound),
		errors.Is(err, database.ErrArchiveNotFound),
		errors.Is(err, service.ErrJobNotFound),
		errors.Is(err, export.ErrPageNotFound),
		errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, worker.ErrQueueFull),
		errors.Is(err, service.ErrArchiveFailed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *HTTPServer) fail(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}
	writeError(w, code, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

func attachment(w http.ResponseWriter, name, contentType string) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", strings.ReplaceAll(name, `"`, "")))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
