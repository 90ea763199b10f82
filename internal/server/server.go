package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guiyumin/mediagrab/internal/core/config"
	"github.com/guiyumin/mediagrab/internal/core/cookies"
	"github.com/guiyumin/mediagrab/internal/core/downloader"
	"github.com/guiyumin/mediagrab/internal/core/extractor"
	"github.com/guiyumin/mediagrab/internal/core/storage"
	"github.com/guiyumin/mediagrab/internal/core/version"
)

// Response is the standard API response structure
type Response struct {
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
}

// Service is the pipeline the HTTP handlers drive
type Service interface {
	Platform(id string) (*extractor.Platform, error)
	FetchMetadata(ctx context.Context, platformID, rawURL string) (*extractor.ContentInfo, error)
	Download(ctx context.Context, platformID, rawURL, format, quality string) (*downloader.Result, error)
	StartDownload(ctx context.Context, platformID, rawURL, format, quality string) (*downloader.Task, error)
	SetAuthMode(m cookies.Mode) bool
	SetBrowser(name string) bool
	AuthStatus() cookies.Status
	AllowedBrowsers() []string
	OpenFile(name string) (*os.File, os.FileInfo, error)
	Storage() *storage.Store
	MaxConcurrent() int64
}

// Server is the HTTP server for mediagrab
type Server struct {
	port     int
	apiKey   string
	svc      Service
	jobQueue *JobQueue
	server   *http.Server
	engine   *gin.Engine
}

// NewServer creates the server and registers its routes
func NewServer(cfg *config.Config, svc Service) *Server {
	s := &Server{
		port:   cfg.Server.Port,
		apiKey: cfg.Server.APIKey,
		svc:    svc,
	}
	s.jobQueue = NewJobQueue(int(svc.MaxConcurrent()), s.runJob, fileURL)

	gin.SetMode(gin.ReleaseMode)
	s.engine = gin.New()
	// Route on the raw path so an encoded slash stays inside one segment
	s.engine.UseRawPath = true

	s.engine.Use(gin.Recovery())
	s.engine.Use(s.loggingMiddleware())

	api := s.engine.Group("/api")
	if rl := cfg.Server.RateLimit; rl.Requests > 0 && rl.Window > 0 {
		api.Use(s.rateLimitMiddleware(newClientLimiter(rl.Requests, rl.Window)))
	}
	if s.apiKey != "" {
		api.Use(s.authMiddleware())
	}

	api.GET("/health", s.handleHealth)

	api.POST("/jobs", s.handleCreateJob)
	api.GET("/jobs", s.handleGetJobs)
	api.DELETE("/jobs", s.handleClearJobs)
	api.GET("/jobs/:id", s.handleGetJob)
	api.DELETE("/jobs/:id", s.handleDeleteJob)

	api.POST("/auth/browser", s.handleSetBrowser)
	api.POST("/auth/mode", s.handleSetAuthMode)
	api.GET("/auth/status", s.handleAuthStatus)

	media := api.Group("/:platform", s.platformMiddleware())
	media.POST("/info", s.handleInfo)
	media.POST("/download-info", s.handleDownloadInfo)
	media.POST("/download", s.handleDownload)
	media.GET("/file/:filename", s.handleFile)

	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, Response{
			Code:    404,
			Data:    nil,
			Message: "not found",
		})
	})

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // No timeout for downloads
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Handler exposes the gin engine, mostly for tests
func (s *Server) Handler() http.Handler { return s.engine }

// Start runs the job workers and serves HTTP until Stop is called.
// It returns http.ErrServerClosed after a graceful stop.
func (s *Server) Start() error {
	if !config.Exists() {
		log.Printf("[server] no config file found, using defaults (run 'mediagrab init' to create one)")
	}

	s.jobQueue.Start()

	log.Printf("[server] starting mediagrab server on port %d", s.port)
	log.Printf("[server] storage directory: %s", s.svc.Storage().Root())
	log.Printf("[server] platforms: %s", strings.Join(extractor.IDs(), ", "))
	if s.apiKey != "" {
		log.Printf("[server] API key authentication enabled")
	}

	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	s.jobQueue.Stop()
	return s.server.Shutdown(ctx)
}

// Middleware

func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Health endpoint doesn't require auth
		if c.Request.URL.Path == "/api/health" {
			c.Next()
			return
		}

		if c.GetHeader("X-API-Key") != s.apiKey {
			c.JSON(http.StatusUnauthorized, Response{
				Code:    401,
				Data:    nil,
				Message: "invalid or missing API key",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("[server] %s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// platformMiddleware resolves :platform and stores it on the context
func (s *Server) platformMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := s.svc.Platform(c.Param("platform"))
		if err != nil {
			c.JSON(http.StatusNotFound, Response{
				Code:    404,
				Data:    nil,
				Message: "unsupported platform: " + c.Param("platform"),
			})
			c.Abort()
			return
		}
		c.Set(platformKey, p)
		c.Next()
	}
}

// Handlers

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Code: 200,
		Data: gin.H{
			"status":    "ok",
			"version":   version.Version,
			"platforms": extractor.IDs(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
		Message: "everything is good",
	})
}

func (s *Server) handleCreateJob(c *gin.Context) {
	var req JobSpec
	if err := c.ShouldBindJSON(&req); err != nil || req.URL == "" || req.Platform == "" {
		badRequest(c, "invalid request body: platform and url are required")
		return
	}

	p, err := s.svc.Platform(req.Platform)
	if err != nil {
		fail(c, err)
		return
	}
	if err := p.Validate(req.URL); err != nil {
		fail(c, err)
		return
	}
	req.Platform = p.ID

	job, err := s.jobQueue.AddJob(req)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, Response{
			Code:    503,
			Data:    nil,
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Code: 200,
		Data: gin.H{
			"id":     job.ID,
			"status": job.Status,
		},
		Message: "download queued",
	})
}

func (s *Server) handleGetJob(c *gin.Context) {
	job := s.jobQueue.GetJob(c.Param("id"))
	if job == nil {
		c.JSON(http.StatusNotFound, Response{
			Code:    404,
			Data:    nil,
			Message: "job not found",
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Code:    200,
		Data:    job,
		Message: string(job.Status),
	})
}

func (s *Server) handleGetJobs(c *gin.Context) {
	jobs := s.jobQueue.GetAllJobs()
	c.JSON(http.StatusOK, Response{
		Code: 200,
		Data: gin.H{
			"jobs": jobs,
		},
		Message: fmt.Sprintf("%d jobs found", len(jobs)),
	})
}

func (s *Server) handleClearJobs(c *gin.Context) {
	count := s.jobQueue.ClearHistory()
	c.JSON(http.StatusOK, Response{
		Code: 200,
		Data: gin.H{
			"cleared": count,
		},
		Message: fmt.Sprintf("%d jobs cleared", count),
	})
}

func (s *Server) handleDeleteJob(c *gin.Context) {
	id := c.Param("id")

	// Try to cancel active job first, then try to remove finished job
	if s.jobQueue.CancelJob(id) {
		c.JSON(http.StatusOK, Response{
			Code:    200,
			Data:    gin.H{"id": id},
			Message: "job cancelled",
		})
	} else if s.jobQueue.RemoveJob(id) {
		c.JSON(http.StatusOK, Response{
			Code:    200,
			Data:    gin.H{"id": id},
			Message: "job removed",
		})
	} else {
		c.JSON(http.StatusNotFound, Response{
			Code:    404,
			Data:    nil,
			Message: "job not found or cannot be cancelled/removed",
		})
	}
}

// runJob is the queue's DownloadFunc. Progress comes from the task channel.
func (s *Server) runJob(ctx context.Context, spec JobSpec, progressFn func(downloader.Progress)) (*downloader.Result, error) {
	task, err := s.svc.StartDownload(ctx, spec.Platform, spec.URL, spec.Format, spec.Quality)
	if err != nil {
		return nil, err
	}
	for p := range task.Progress() {
		progressFn(p)
	}
	return task.Wait()
}

// fileURL is the route serving fileName for platform
func fileURL(platform, fileName string) string {
	return "/api/" + platform + "/file/" + url.PathEscape(fileName)
}
