// Package admind exposes the services daemon's operational status over HTTP:
// a JSON stats endpoint, a health check, and the Prometheus metrics registry.
package admind

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/presbrey/services/account"
	"github.com/presbrey/services/chanacs"
	"github.com/presbrey/services/metrics"
	"github.com/presbrey/services/session"
)

// Server is the admin/status HTTP endpoint.
type Server struct {
	echo     *echo.Echo
	started  time.Time
	dir      *account.Directory
	sessions *session.Registry
	access   *chanacs.List
}

// New builds the server and registers its routes.
func New(dir *account.Directory, sessions *session.Registry, access *chanacs.List) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:     e,
		started:  time.Now(),
		dir:      dir,
		sessions: sessions,
		access:   access,
	}

	e.GET("/healthz", s.handleHealth)
	e.GET("/stats", s.handleStats)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	return s
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func (s *Server) handleStats(c echo.Context) error {
	channels := 0
	s.access.EachChannel(func(*chanacs.Channel) { channels++ })
	return c.JSON(http.StatusOK, map[string]interface{}{
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"accounts":       s.dir.Count(),
		"channels":       channels,
		"sessions":       s.sessions.Count(),
	})
}

// Start serves on addr until the listener fails or Shutdown is called.
func (s *Server) Start(addr string) error {
	log.Printf("[admind] listening on %s", addr)
	err := s.echo.Start(addr)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
