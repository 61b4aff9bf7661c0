package web

import (
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"

	"pro-headshot-ai/internal/headshot"
	"pro-headshot-ai/internal/session"
)

type Options struct {
	Sessions       *session.Store
	Workflow       *headshot.Workflow
	Logger         *slog.Logger
	Static         fs.FS
	MaxConcurrent  int
	MaxUploadBytes int64
	RequestTimeout time.Duration
	Debug          bool
}

// Server exposes the capture/generate API and the embedded capture page.
type Server struct {
	sessions       *session.Store
	workflow       *headshot.Workflow
	logger         *slog.Logger
	sem            *semaphore.Weighted
	maxUploadBytes int64
	requestTimeout time.Duration
	router         *gin.Engine
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	maxUploadBytes := opts.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = 25 << 20
	}

	requestTimeout := opts.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 240 * time.Second
	}

	s := &Server{
		sessions:       opts.Sessions,
		workflow:       opts.Workflow,
		logger:         logger,
		sem:            semaphore.NewWeighted(int64(maxConcurrent)),
		maxUploadBytes: maxUploadBytes,
		requestTimeout: requestTimeout,
	}

	if !opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(requestLogger(logger))
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.POST("/session", s.handleCreateSession)
		api.GET("/session/:id", s.handleGetSession)
		api.POST("/session/:id/photo/:slot", s.handleUploadPhoto)
		api.POST("/session/:id/generate", s.handleGenerate)
	}

	if opts.Static != nil {
		fileServer := http.FileServer(http.FS(opts.Static))
		router.NoRoute(gin.WrapH(fileServer))
	}

	s.router = router
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"dur_ms", time.Since(start).Milliseconds(),
		)
	}
}
