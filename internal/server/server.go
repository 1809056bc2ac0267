// Package server exposes the card pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/menta2k/meishi-analyzer/pkg/types"
)

// CardService is the pipeline surface the handlers need. *meishi.Analyzer implements it.
type CardService interface {
	Analyze(ctx context.Context, data []byte, contentType string) (*types.AnalysisResult, error)
	DetectLogos(data []byte) []types.LogoCandidate
	InferFields(text string, existing types.CardFields) types.CardFields
}

// Config holds the listener settings
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxBodyBytes int64
}

// Server holds the state for the REST API server
type Server struct {
	svc    CardService
	config Config
	log    *slog.Logger
	router *gin.Engine
}

// New creates a Server with its routes registered
func New(svc CardService, config Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	r := gin.New()
	r.Use(gin.Recovery())
	s := &Server{svc: svc, config: config, log: logger, router: r}
	r.Use(s.requestLog)
	if config.MaxBodyBytes > 0 {
		// form parsing keeps at most one document in memory
		r.MaxMultipartMemory = config.MaxBodyBytes
	}
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.POST("/analyze", s.handleAnalyze)
	s.router.POST("/logos", s.handleLogos)
	s.router.POST("/infer", s.handleInfer)
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server.listen", "addr", s.config.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("server.shutdown")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLog(c *gin.Context) {
	start := time.Now()
	rid := c.GetHeader("X-Request-ID")
	if rid == "" {
		rid = uuid.New().String()
	}
	c.Header("X-Request-ID", rid)
	c.Set("req_id", rid)

	c.Next()

	s.log.Info("http.request",
		"req_id", rid,
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", c.Writer.Status(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}
