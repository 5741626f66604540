package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/tphakala/preloadwatch/internal/detector"
	"github.com/tphakala/preloadwatch/internal/logger"
	"github.com/tphakala/preloadwatch/internal/notify"
)

// UnitObserver receives the outcome of each checked unit of work.
type UnitObserver interface {
	RecordUnitOfWork(stats detector.Stats, notices []detector.Notice)
}

// RequestObserver receives per-request timings.
type RequestObserver interface {
	RequestStarted()
	RecordRequest(method, path string, status int, duration time.Duration, notices int)
}

// DetectorConfig configures the detector middleware.
type DetectorConfig struct {
	// Skipper defines a function to skip the middleware.
	Skipper echomw.Skipper

	// Detector is shared by every request. Defaults to detector.DefaultConfig().
	Detector *detector.Config

	// Dispatcher delivers the report of every request that raised notices
	// in the background. Nil drops reports.
	Dispatcher *notify.Dispatcher

	// HTMLFooter appends the report to text/html responses.
	HTMLFooter bool

	// RequestIDHeader is reused as the unit of work ID when present.
	// Default is "X-Request-ID".
	RequestIDHeader string

	Units    UnitObserver
	Requests RequestObserver
	Logger   logger.Logger
}

// Detector returns middleware that opens a unit of work for every request,
// binds it to the request context, checks it once the handler returns and
// hands the report to the dispatcher without waiting for delivery.
func Detector(config DetectorConfig) echo.MiddlewareFunc {
	if config.Skipper == nil {
		config.Skipper = echomw.DefaultSkipper
	}
	if config.Detector == nil {
		config.Detector = detector.DefaultConfig()
	}
	if config.RequestIDHeader == "" {
		config.RequestIDHeader = echo.HeaderXRequestID
	}
	log := config.Logger
	if log == nil {
		log = GetLogger()
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if config.Skipper(c) || !config.Detector.Enabled() {
				return next(c)
			}

			start := time.Now()
			if config.Requests != nil {
				config.Requests.RequestStarted()
			}

			req := c.Request()
			id := req.Header.Get(config.RequestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			c.Response().Header().Set(config.RequestIDHeader, id)

			d := detector.New(
				detector.WithConfig(config.Detector),
				detector.WithUnitOfWorkID(id),
				detector.WithLogger(log),
			)
			defer d.Reset()

			ctx := detector.NewContext(logger.WithTraceID(req.Context(), id), d)
			c.SetRequest(req.WithContext(ctx))

			var buf *bufferedWriter
			if config.HTMLFooter {
				buf = newBufferedWriter(c.Response().Writer)
				c.Response().Writer = buf
			}

			if err := next(c); err != nil {
				c.Error(err)
			}

			d.Checkpoint()
			report := notify.NewReport(d, req.Method+" "+c.Path())

			if buf != nil {
				c.Response().Writer = buf.ResponseWriter
				var footer string
				if !report.Empty() && buf.isHTML() {
					footer = notify.RenderHTML(report)
				}
				if err := buf.flush(footer); err != nil {
					log.Warn("failed to write buffered response",
						logger.String("unit_of_work", id), logger.Error(err))
				}
			}

			if !report.Empty() {
				log.Debug("unit of work raised notices",
					logger.String("unit_of_work", id),
					logger.String("source", report.Source),
					logger.Int("notices", len(report.Notices)))
				config.Dispatcher.Send(ctx, report)
			}

			if config.Units != nil {
				config.Units.RecordUnitOfWork(report.Stats, report.Notices)
			}
			if config.Requests != nil {
				config.Requests.RecordRequest(req.Method, c.Path(), c.Response().Status,
					time.Since(start), len(report.Notices))
			}
			return nil
		}
	}
}

// FromContext returns the unit of work of the current request, or nil.
func FromContext(c echo.Context) *detector.Detector {
	return detector.FromContext(c.Request().Context())
}
