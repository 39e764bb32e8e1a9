package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"commit-reveal-voting/log"
	"commit-reveal-voting/service"
)

type APIConfig struct {
	APIEndpoint string
}

type Server struct {
	votingService *service.VotingService
	queue         *service.QueueProcessor
	httpServer    *http.Server
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func NewServer(votingService *service.VotingService, queue *service.QueueProcessor) *Server {
	return &Server{
		votingService: votingService,
		queue:         queue,
	}
}

// Handler builds the gin engine serving the API.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	s.registerRoutes(r)
	return r
}

// Serve listens on cfg.APIEndpoint until ctx is cancelled, then shuts down.
func (s *Server) Serve(ctx context.Context, cfg APIConfig) error {
	s.httpServer = &http.Server{
		Addr:    cfg.APIEndpoint,
		Handler: s.Handler(),
	}

	serverChan := make(chan error, 1)
	go func() {
		log.Info("Starting server", zap.String("endpoint", cfg.APIEndpoint))
		serverChan <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("Handled request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}
