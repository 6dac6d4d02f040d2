// Package debugserver serves the local debug/status HTTP API on localhost (spec.md §6
// "Snapshot channel"/"Configuration channel" surfaced to a UI). It's built on gin rather than
// a bare ServeMux.
package debugserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/glasstokey/glasstokey/internal/engine"
	"github.com/glasstokey/glasstokey/internal/settings"
)

// Server serves snapshot/status and settings reads, and preset/layer/typing writes, on localhost.
type Server struct {
	httpServer *http.Server
	listener   net.Listener

	eng      *engine.Engine
	settings *settings.Settings
	version  string
	log      *logrus.Entry
}

// New creates a debug server bound to the given Engine and Settings.
func New(eng *engine.Engine, s *settings.Settings, version string, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	gin.SetMode(gin.ReleaseMode)
	return &Server{eng: eng, settings: s, version: version, log: log.WithField("component", "debugserver")}
}

// Start binds to addr (or a random localhost port if addr is empty) and begins serving.
func (s *Server) Start(addr string) (string, error) {
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("listen: %w", err)
	}
	s.listener = ln

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/status", s.handleStatus)
	r.GET("/render", s.handleRender)
	r.GET("/settings", s.handleGetSettings)
	r.POST("/settings/preset", s.handleSetPreset)
	r.POST("/layer", s.handleSetLayer)
	r.POST("/typing", s.handleSetTyping)

	s.httpServer = &http.Server{Handler: r, ReadTimeout: 5 * time.Second, WriteTimeout: 10 * time.Second}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Warn("debug server stopped")
		}
	}()

	url := fmt.Sprintf("http://%s", ln.Addr().String())
	s.log.WithField("url", url).Info("debug server listening")
	return url, nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() {
	if s.httpServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = s.httpServer.Shutdown(ctx)
}

// URL returns the server's bound URL, or "" if not started.
func (s *Server) URL() string {
	if s.listener == nil {
		return ""
	}
	return fmt.Sprintf("http://%s", s.listener.Addr().String())
}
