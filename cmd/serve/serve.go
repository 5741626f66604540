// Package serve runs a small echo application over the sample domain with
// every request checked by the detector.
package serve

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/tphakala/preloadwatch/internal/conf"
	"github.com/tphakala/preloadwatch/internal/datastore"
	"github.com/tphakala/preloadwatch/internal/datastore/sample"
	"github.com/tphakala/preloadwatch/internal/detector"
	"github.com/tphakala/preloadwatch/internal/errors"
	"github.com/tphakala/preloadwatch/internal/gormhook"
	"github.com/tphakala/preloadwatch/internal/logger"
	"github.com/tphakala/preloadwatch/internal/middleware"
	"github.com/tphakala/preloadwatch/internal/notify"
	"github.com/tphakala/preloadwatch/internal/observability"
)

const shutdownTimeout = 10 * time.Second

// Command returns the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the demo web application with the detector enabled",
		Long: `Serve the sample blog domain over HTTP. Every request is one unit of
work; N+1 queries and unused eager loading are reported through the
configured notifiers.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listen != "" {
				settings.Server.Listen = listen
			}
			s, err := New(cmd.Context(), settings)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()
			return s.Start(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address, overrides server.listen")
	return cmd
}

// Server is the demo application.
type Server struct {
	settings   *conf.Settings
	echo       *echo.Echo
	store      datastore.Store
	dispatcher *notify.Dispatcher
	metrics    *observability.Metrics
	log        logger.Logger
}

// New opens the datastore, builds the notifiers and registers the routes.
func New(ctx context.Context, settings *conf.Settings) (*Server, error) {
	s := &Server{settings: settings, log: logger.Global().Module("server")}

	var hookOpts []gormhook.Option
	if settings.Metrics.Enabled {
		m, err := observability.NewMetrics()
		if err != nil {
			return nil, err
		}
		s.metrics = m
		hookOpts = append(hookOpts, gormhook.WithObserver(m.Detector))
	}

	store, err := datastore.Open(&settings.Database, nil, gormhook.New(hookOpts...))
	if err != nil {
		return nil, err
	}
	s.store = store

	if err := store.Migrate(sample.Models()...); err != nil {
		_ = s.Close()
		return nil, err
	}
	if settings.Server.Seed {
		if err := sample.Seed(ctx, store.DB()); err != nil {
			_ = s.Close()
			return nil, err
		}
	}

	s.dispatcher, err = notify.FromSettings(settings, nil)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.setupMiddleware()
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())

	cfg := middleware.DetectorConfig{
		Skipper:    s.skipInternal,
		Detector:   detector.DefaultConfig(),
		Dispatcher: s.dispatcher,
		HTMLFooter: s.settings.Notify.HTMLFooter,
		Logger:     logger.Global().Module("middleware"),
	}
	if s.metrics != nil {
		s.dispatcher.SetObserver(s.metrics.Notification)
		cfg.Units = s.metrics.Detector
		cfg.Requests = s.metrics.HTTP
	}
	s.echo.Use(middleware.Detector(cfg))
	s.echo.Use(middleware.NewRequestLogger(s.log, s.skipInternal))
}

// skipInternal keeps health and metrics scrapes out of the detector.
func (s *Server) skipInternal(c echo.Context) bool {
	switch c.Path() {
	case "/health", s.settings.Metrics.Path:
		return true
	}
	return false
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server starting", logger.String("address", s.settings.Server.Listen))
		if err := s.echo.Start(s.settings.Server.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return errors.New(err).
				Category(errors.CategoryNetwork).
				Context("listen", s.settings.Server.Listen).
				Build()
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("stopping server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		s.log.Error("server shutdown error", logger.Error(err))
		return err
	}
	return nil
}

// Close releases the notifiers and the datastore.
func (s *Server) Close() error {
	var errs []error
	if s.dispatcher != nil {
		errs = append(errs, s.dispatcher.Close())
		s.dispatcher = nil
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
		s.store = nil
	}
	return errors.Join(errs...)
}
