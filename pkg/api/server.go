// Package api serves the optional read-only status endpoint for a running
// research session. It exposes liveness and the engine's progress snapshot;
// it never mutates run state.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/osinthq/sleuth/pkg/engine"
)

// Server is the status HTTP server.
type Server struct {
	engine *engine.Engine
	http   *http.Server
}

// NewServer builds the server over the given engine.
func NewServer(eng *engine.Engine, port int) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{engine: eng}
	router.GET("/healthz", s.health)
	router.GET("/api/v1/run", s.runStatus)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start serves until Shutdown. The listener error is returned for logging;
// a closed server returns nil.
func (s *Server) Start() error {
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) runStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Snapshot())
}
