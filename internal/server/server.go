// Package server exposes the report store and weekly summaries over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ppiankov/dailyreport/internal/api"
	"github.com/ppiankov/dailyreport/internal/store"
	"github.com/rs/zerolog"
)

const defaultShutdownTimeout = 10 * time.Second

type Dependencies struct {
	Store *store.Store

	// Summarizer is nil when no chat API credentials are configured
	Summarizer Summarizer

	// Now defaults to time.Now
	Now func() time.Time
}

type Config struct {
	Addr              string
	ShutdownTimeout   time.Duration
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// WeeklyRateLimitRequests applies to POST /api/v1/weekly on top of RateLimitRequests
	WeeklyRateLimitRequests int

	Dependencies Dependencies
}

type WebAPI struct {
	router *chi.Mux
	logger zerolog.Logger
	server *http.Server
	config Config
}

func NewWebAPI(logger zerolog.Logger, config Config) *WebAPI {
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = defaultShutdownTimeout
	}
	if config.RateLimitRequests <= 0 {
		config.RateLimitRequests = api.DefaultRateLimitRequests
	}
	if config.RateLimitWindow <= 0 {
		config.RateLimitWindow = api.DefaultRateLimitWindow
	}
	if config.WeeklyRateLimitRequests <= 0 {
		config.WeeklyRateLimitRequests = api.WeeklyRateLimitRequests
	}

	h := NewHandler(config.Dependencies)

	router := chi.NewRouter()

	router.Use(middleware.RealIP)
	router.Use(api.RequestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(api.SecurityHeaders)
	router.Use(api.RateLimitPerIP(config.RateLimitRequests, config.RateLimitWindow))

	router.Get("/healthz", h.Health)

	router.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(api.BodySizeLimit(api.ReportBodyLimitBytes))

			r.Get("/reports", h.ListReports)
			r.Delete("/reports", h.ClearReports)
			r.Get("/reports/{date}", h.GetReport)
			r.Put("/reports/{date}", h.SaveReport)
			r.Delete("/reports/{date}", h.DeleteReport)
			r.Get("/stats", h.Statistics)
			r.Get("/export", h.Export)
			r.With(api.RateLimitPerIP(config.WeeklyRateLimitRequests, config.RateLimitWindow)).
				Post("/weekly", h.Weekly)
		})
		r.With(api.BodySizeLimit(api.ImportBodyLimitBytes)).Post("/import", h.Import)
	})

	return &WebAPI{
		router: router,
		logger: logger,
		config: config,
		server: &http.Server{
			Addr:              config.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler returns the routed handler, for tests and embedding.
func (w *WebAPI) Handler() http.Handler {
	return w.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (w *WebAPI) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", w.server.Addr)
	if err != nil {
		return err
	}
	return w.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (w *WebAPI) Serve(ctx context.Context, ln net.Listener) error {
	serverErrors := make(chan error, 1)

	go func() {
		w.logger.Info().Str("addr", ln.Addr().String()).Msg("starting server")
		serverErrors <- w.server.Serve(ln)
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		w.logger.Info().Msg("shutdown initiated")

		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), w.config.ShutdownTimeout)
		defer cancel()

		err := w.server.Shutdown(shutdownCtx)
		if err != nil {
			w.logger.Error().Err(err).Msg("graceful shutdown failed")
			err = w.server.Close()
		}

		if err != nil {
			return err
		}
	}

	return nil
}
