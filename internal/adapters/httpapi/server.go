// Package httpapi exposes the inventory service over HTTP with echo.
package httpapi

import (
	"context"
	"expvar"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"inventario/internal/adapters/reports"
	"inventario/internal/core"
)

const (
	// HeaderUserEmail carries the acting user's email.
	HeaderUserEmail = "X-User-Email"
	// HeaderDeviceInfo carries a free-text description of the client device.
	HeaderDeviceInfo = "X-Device-Info"
)

// Exporter schedules document exports and serves their artifacts.
type Exporter interface {
	Enqueue(ctx context.Context, input reports.Input) (reports.Record, error)
	Get(id string) (reports.Record, bool)
	Open(ctx context.Context, id string, format reports.Format) (reports.Artifact, io.ReadCloser, error)
}

// TraceSource exposes recently finished service spans.
type TraceSource interface {
	Recent() []core.TraceRecord
}

// Deps wires the server to its collaborators. Exports, Gatherer and Traces are optional.
type Deps struct {
	Service  *core.Service
	Sessions *core.Sessions
	Exports  Exporter
	Logger   *zap.Logger
	Gatherer prometheus.Gatherer
	Traces   TraceSource
	// Health reports backend readiness for /healthz; nil means always ready.
	Health func(ctx context.Context) error
}

// Server is the HTTP surface.
type Server struct {
	echo     *echo.Echo
	svc      *core.Service
	sessions *core.Sessions
	exports  Exporter
	traces   TraceSource
	logger   *zap.Logger
	health   func(ctx context.Context) error
}

// New builds the router, middleware and routes.
func New(deps Deps) (*Server, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")
	sessions := deps.Sessions
	if sessions == nil {
		sessions = core.NewSessions()
	}
	v, err := NewValidator()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = v
	e.HTTPErrorHandler = errorHandler(logger)

	s := &Server{
		echo:     e,
		svc:      deps.Service,
		sessions: sessions,
		exports:  deps.Exports,
		traces:   deps.Traces,
		logger:   logger,
		health:   deps.Health,
	}

	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			logger.Info("request", fields...)
			return nil
		},
	}))
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		DisableStackAll: true,
		StackSize:       1 << 10,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error("panic recovered",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Error(err),
				zap.String("stack", string(stack)),
			)
			return err
		},
	}))

	s.routes(deps.Gatherer)
	return s, nil
}

func (s *Server) routes(gatherer prometheus.Gatherer) {
	e := s.echo
	e.GET("/healthz", s.healthz)
	e.GET("/debug/vars", echo.WrapHandler(expvar.Handler()))
	if s.traces != nil {
		e.GET("/debug/traces", s.recentTraces)
	}
	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := e.Group("/api")
	api.GET("/equipment", s.listEquipment)
	api.POST("/equipment", s.createEquipment)
	api.GET("/equipment/scan/:serial", s.scanEquipment)
	api.GET("/equipment/:id", s.getEquipment)
	api.PATCH("/equipment/:id", s.updateEquipment)
	api.DELETE("/equipment/:id", s.deleteEquipment)

	api.GET("/locations", s.listLocations)
	api.PUT("/locations", s.upsertLocation)
	api.DELETE("/locations/:id", s.deleteLocation)

	api.GET("/history", s.listHistory)
	api.POST("/transfers", s.transfer)

	api.POST("/sessions", s.createSession)
	api.GET("/sessions/:id", s.getSession)
	api.POST("/sessions/:id/actions", s.applySessionAction)
	api.POST("/sessions/:id/transfer", s.transferSession)

	if s.exports != nil {
		api.POST("/exports", s.createExport)
		api.GET("/exports/:id", s.getExport)
		api.GET("/exports/:id/artifacts/:format", s.downloadArtifact)
	}
}

// ServeHTTP lets the server be mounted or exercised with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on address until Shutdown. It returns http.ErrServerClosed
// after a graceful shutdown.
func (s *Server) Start(address string) error {
	s.logger.Info("listening", zap.String("address", address))
	return s.echo.Start(address)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) healthz(c echo.Context) error {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := s.health(ctx); err != nil {
			return apiError{code: http.StatusServiceUnavailable, message: "unavailable: " + err.Error()}
		}
	}
	return success(c, http.StatusOK, "ok", map[string]any{"loaded_at": s.svc.Inventory().LoadedAt})
}

func (s *Server) recentTraces(c echo.Context) error {
	return success(c, http.StatusOK, "traces", s.traces.Recent())
}

func actorOf(c echo.Context) string {
	return c.Request().Header.Get(HeaderUserEmail)
}

func deviceOf(c echo.Context) string {
	return c.Request().Header.Get(HeaderDeviceInfo)
}
