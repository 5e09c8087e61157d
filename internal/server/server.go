package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/turbolytics/patcher/internal/events"
	"github.com/turbolytics/patcher/pkg/apperr"
	"github.com/turbolytics/patcher/pkg/setclause"
)

// Updater is implemented by *update.Updater.
type Updater interface {
	Update(ctx context.Context, resource string, key any, fields setclause.Fields) (map[string]any, error)
	Render(resource string, key any, fields setclause.Fields) (string, []any, error)
}

type Server struct {
	logger  *zap.Logger
	updater Updater
	stats   events.StatsReporter
}

type Option func(*Server)

// WithStats reports publisher activity on /health.
func WithStats(stats events.StatsReporter) Option {
	return func(s *Server) {
		s.stats = stats
	}
}

func New(updater Updater, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		logger:  logger,
		updater: updater,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LogMiddleware logs one line per request.
func LogMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info("request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("from", r.RemoteAddr),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(LogMiddleware(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/render/{resource}", s.render)
		r.Patch("/{resource}/{key}", s.patch)
	})

	return r
}

type healthResponse struct {
	Status string        `json:"status"`
	Events *events.Stats `json:"events,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.stats != nil {
		stats := s.stats.Stats()
		resp.Events = &stats
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) patch(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")
	key := chi.URLParam(r, "key")

	var fields setclause.Fields
	if err := decodeBody(r, &fields); err != nil {
		s.writeError(w, r, err)
		return
	}

	row, err := s.updater.Update(r.Context(), resource, key, fields)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{resource: row})
}

type renderRequest struct {
	Key    any              `json:"key"`
	Fields setclause.Fields `json:"fields"`
}

type renderResponse struct {
	SQL    string `json:"sql"`
	Values []any  `json:"values"`
}

func (s *Server) render(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")

	var req renderRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	query, args, err := s.updater.Render(resource, req.Key, req.Fields)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, renderResponse{SQL: query, Values: args})
}

var ErrTrailingData = errors.New("unexpected data after JSON value")

// decodeBody decodes a JSON body holding a single value. An empty body decodes
// to the zero value, so an empty PATCH reports "No data" like an empty object
// does.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperr.BadRequest(fmt.Errorf("invalid request body: %w", err))
	}

	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return apperr.BadRequest(fmt.Errorf("invalid request body: %w", ErrTrailingData))
	}
	return nil
}

type errorBody struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := kind.Status()

	message := err.Error()
	if kind == apperr.KindInternal {
		s.logger.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		message = http.StatusText(status)
	}

	s.writeJSON(w, status, map[string]errorBody{
		"error": {Message: message, Status: status},
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response", zap.Error(err))
	}
}

func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Routes(),
	}

	s.logger.Info("starting patcher server", zap.String("addr", addr))

	done := make(chan struct{})
	shutdown := make(chan error, 1)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
			shutdown <- nil
			return
		}
		s.logger.Info("shutting down patcher server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("shutting down patcher server", zap.Error(err))
			shutdown <- err
			return
		}
		shutdown <- nil
	}()

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		close(done)
		<-shutdown
		return err
	}
	return <-shutdown
}
