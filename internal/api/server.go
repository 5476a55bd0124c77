// Package api exposes the compositor, door detection and relay over HTTP.
package api

import (
	"context"
	"errors"
	"image/color"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ironsheep/door-ai-studio/internal/detection"
	"github.com/ironsheep/door-ai-studio/internal/imaging"
	"github.com/ironsheep/door-ai-studio/internal/relay"
)

// Composer is the relay capability the compose endpoint needs.
type Composer interface {
	Compose(ctx context.Context, req relay.Request) (*relay.Result, error)
}

// Settings configures the HTTP surface.
type Settings struct {
	CanvasSize  int
	Fill        color.Color
	Bounds      detection.BoxBounds
	BodyLimit   string
	EditTimeout time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.CanvasSize <= 0 {
		s.CanvasSize = imaging.DefaultCanvasSize
	}
	if s.Fill == nil {
		s.Fill = imaging.DefaultFill
	}
	if s.Bounds == (detection.BoxBounds{}) {
		s.Bounds = detection.DefaultBounds()
	}
	if s.BodyLimit == "" {
		s.BodyLimit = "20M"
	}
	return s
}

// Server is the door-studio HTTP server.
type Server struct {
	echo     *echo.Echo
	composer Composer
	settings Settings
	logger   *slog.Logger
}

// NewServer wires middleware and routes around composer.
func NewServer(composer Composer, settings Settings, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		echo:     echo.New(),
		composer: composer,
		settings: settings.withDefaults(),
		logger:   log,
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError

	e.Use(requestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/health"
		},
		LogStatus:   true,
		LogURI:      true,
		LogError:    true,
		LogMethod:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log := requestLogger(c, s.logger)
			if v.Error == nil {
				log.Info("request completed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds())
			} else {
				log.Error("request failed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds(),
					"error", v.Error.Error())
			}
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(recordMetrics())

	e.GET("/health", s.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	g := e.Group("/api", middleware.BodyLimit(s.settings.BodyLimit))
	g.GET("/config", s.config)
	g.POST("/compose", s.compose)
	g.POST("/prepare", s.prepare)
	g.POST("/preview", s.preview)
	g.POST("/suggest", s.suggest)

	return s
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("http server listening", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
