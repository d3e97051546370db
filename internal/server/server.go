package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mohammad-safakhou/tosclarity/config"
	"github.com/mohammad-safakhou/tosclarity/internal/clarity"
	"github.com/mohammad-safakhou/tosclarity/internal/jobs"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Storage is what the HTTP layer needs from the document store.
type Storage interface {
	clarity.SummaryReader
	DeleteDocument(ctx context.Context, id uuid.UUID) error
	Ping(ctx context.Context) error
}

// JobTracker is what the HTTP layer needs from the job status cache.
type JobTracker interface {
	Set(ctx context.Context, id uuid.UUID, status jobs.Status) error
	Get(ctx context.Context, id uuid.UUID) (jobs.Status, error)
	Ping(ctx context.Context) error
}

// Server owns the echo instance and its collaborators.
type Server struct {
	cfg       *config.Config
	log       *zap.Logger
	store     Storage
	jobs      JobTracker
	assembler *clarity.Assembler
	echo      *echo.Echo
}

type requestValidator struct{ v *validator.Validate }

func (r *requestValidator) Validate(i any) error { return r.v.Struct(i) }

// New wires routes and middleware. Collaborators are constructed by the caller.
// metrics serves /metrics; when nil the default Prometheus registry is used.
func New(cfg *config.Config, log *zap.Logger, st Storage, jt JobTracker, metrics http.Handler) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	httpMetricsOnce.Do(func() { initHTTPMetrics(log) })
	s := &Server{
		cfg:       cfg,
		log:       log,
		store:     st,
		jobs:      jt,
		assembler: clarity.NewAssembler(st),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = cfg.General.Debug
	e.HTTPErrorHandler = s.errorHandler
	e.Validator = &requestValidator{v: validator.New(validator.WithRequiredStructEnabled())}

	e.Use(requestLogger(log))
	e.Use(instrument)
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"*"},
		AllowCredentials: true,
	}))

	e.GET("/", s.root)
	e.GET("/health", s.health)
	e.GET("/metrics", echo.WrapHandler(metrics))
	registerDocs(e)

	api := e.Group(cfg.General.Prefix)
	api.POST("/analyze", s.analyze)
	api.GET("/jobs/:id", s.job)
	api.GET("/summary/:id", s.summary)
	api.POST("/compare", s.compare)
	api.GET("/documents/:id", s.document)
	api.GET("/documents/:id/summaries", s.documentSummaries)
	api.DELETE("/documents/:id", s.deleteDocument)

	s.echo = e
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server starting", zap.String("addr", s.cfg.Server.Listen))
		if err := s.echo.Start(s.cfg.Server.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	s.log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// requestLogger logs each request using zap.
func requestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			req := c.Request()
			log.Info("request",
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", c.RealIP()),
			)
			return err
		}
	}
}
