// Package api is the JSON HTTP transport. Authentication happens upstream;
// the caller's user id arrives in a trusted header.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"teukbyeolsil/internal/config"
	"teukbyeolsil/internal/metrics"
	"teukbyeolsil/internal/service"
	"teukbyeolsil/shared/access"
)

// Services are the operations exposed over HTTP.
type Services struct {
	Access      *access.Service
	Booking     *service.BookingService
	Review      *service.ReviewService
	Restriction *service.RestrictionService
	Room        *service.RoomService
	Notice      *service.NoticeService
	Account     *service.AccountService
	Archive     *service.ArchiveService
}

type HTTPServer struct {
	server         *http.Server
	svc            Services
	identityHeader string
	metrics        *metrics.Metrics
	logger         zerolog.Logger
}

// NewHTTPServer wires every route. m may be nil.
func NewHTTPServer(cfg config.HTTPConfig, svc Services, m *metrics.Metrics, logger *zerolog.Logger) *HTTPServer {
	s := &HTTPServer{
		svc:            svc,
		identityHeader: cfg.IdentityHeader,
		metrics:        m,
		logger:         logger.With().Str("component", "http").Logger(),
	}
	if s.identityHeader == "" {
		s.identityHeader = "X-User-ID"
	}

	mux := http.NewServeMux()
	s.routes(mux)

	limiter := newClientLimiter(cfg.RequestsPerSec, cfg.Burst)
	handler := s.recoverer(s.instrument(s.rateLimit(limiter, mux)))

	s.server = &http.Server{
		Addr:         cfg.Address,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *HTTPServer) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/rooms", s.handleListRooms)
	mux.HandleFunc("POST /api/rooms", s.handleCreateRoom)
	mux.HandleFunc("GET /api/rooms/{id}", s.handleGetRoom)
	mux.HandleFunc("PUT /api/rooms/{id}", s.handleUpdateRoom)
	mux.HandleFunc("DELETE /api/rooms/{id}", s.handleDeleteRoom)
	mux.HandleFunc("GET /api/rooms/{id}/availability", s.handleAvailability)

	mux.HandleFunc("POST /api/reservations/check", s.handleCheckReservation)
	mux.HandleFunc("POST /api/reservations", s.handleCreateReservation)
	mux.HandleFunc("GET /api/reservations/mine", s.handleMyReservations)
	mux.HandleFunc("DELETE /api/reservations/{id}", s.handleDeleteReservation)

	mux.HandleFunc("GET /api/admin/reservations", s.handleListReservations)
	mux.HandleFunc("POST /api/admin/reservations/{id}/approve", s.handleApprove)
	mux.HandleFunc("POST /api/admin/reservations/{id}/reject", s.handleReject)

	mux.HandleFunc("GET /api/admin/restrictions", s.handleListRestrictions)
	mux.HandleFunc("POST /api/admin/restrictions", s.handleCreateRestriction)
	mux.HandleFunc("POST /api/admin/restrictions/{id}/activate", s.handleSetRestrictionActive(true))
	mux.HandleFunc("POST /api/admin/restrictions/{id}/deactivate", s.handleSetRestrictionActive(false))
	mux.HandleFunc("DELETE /api/admin/restrictions/{id}", s.handleDeleteRestriction)

	mux.HandleFunc("POST /api/admin/archive", s.handleArchiveSweep)
	mux.HandleFunc("GET /api/admin/archive", s.handleListArchive)
	mux.HandleFunc("GET /api/admin/archive/export", s.handleExportArchive)
	mux.HandleFunc("GET /api/admin/export", s.handleExportTables)

	mux.HandleFunc("GET /api/notice", s.handleGetNotice)
	mux.HandleFunc("PUT /api/notice", s.handleUpdateNotice)

	mux.HandleFunc("PUT /api/account", s.handleRegisterAccount)
	mux.HandleFunc("DELETE /api/account", s.handleDeleteAccount)
}

// Handler returns the root handler, for tests and embedding.
func (s *HTTPServer) Handler() http.Handler { return s.server.Handler }

// Run serves until ctx is done, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctxShutdown)
	}()

	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *HTTPServer) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		if s.metrics != nil {
			s.metrics.ObserveHTTP(r.Method, route, strconv.Itoa(rec.status), elapsed)
		}
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", elapsed).
			Msg("request")
	})
}

func (s *HTTPServer) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				s.logger.Error().Interface("panic", v).Str("path", r.URL.Path).Msg("handler panic")
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
