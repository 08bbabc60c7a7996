// Package api exposes the scrape coordinator over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Adwaitkp/primaspot/pkg/config"
	"github.com/Adwaitkp/primaspot/pkg/logger"
	"github.com/Adwaitkp/primaspot/pkg/ratelimit"
	"github.com/Adwaitkp/primaspot/pkg/scraper"
	"github.com/gin-gonic/gin"
)

// Scraper is the part of the coordinator the handlers call
type Scraper interface {
	ScrapeProfile(ctx context.Context, identity string, force bool) (*scraper.Result, error)
	ScrapePosts(ctx context.Context, identity string, limit int) (*scraper.Result, error)
	ScrapeReels(ctx context.Context, identity string, limit int) (*scraper.Result, error)
	ScrapeComplete(ctx context.Context, identity string, postsLimit, reelsLimit int) (*scraper.Result, error)
	Status(ctx context.Context) (*scraper.Status, error)
}

// Options configures a Server
type Options struct {
	Address     string
	FrontendURL string
	// APIKey, when set, is required in X-API-Key on every scraping route
	APIKey string
	// RequestsPerMinute is the per-client-IP budget
	RequestsPerMinute int
	// WriteTimeout must outlast the complete scrape
	WriteTimeout time.Duration
	// RetryAfter is advertised when the browser pool is busy
	RetryAfter time.Duration
	Logger     logger.Logger
}

// OptionsFromConfig builds Options from the server and scrape sections
func OptionsFromConfig(srv config.ServerConfig, scrape config.ScrapeConfig) Options {
	return Options{
		Address:           srv.Address,
		FrontendURL:       srv.FrontendURL,
		APIKey:            srv.APIKey,
		RequestsPerMinute: srv.RequestsPerMinute,
		WriteTimeout:      scrape.CompleteTimeout + time.Minute,
	}
}

// Server is the HTTP surface
type Server struct {
	engine  *gin.Engine
	http    *http.Server
	handler *Handler
	logger  logger.Logger
}

// NewServer builds the engine with all middleware and routes configured
func NewServer(svc Scraper, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = 100
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = 30 * time.Second
	}
	if opts.Address == "" {
		opts.Address = ":5000"
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	limiter := ratelimit.NewKeyed(opts.RequestsPerMinute, time.Minute)

	r.Use(requestID())
	r.Use(requestLogger(opts.Logger))
	r.Use(recovery(opts.Logger))
	r.Use(cors(opts.FrontendURL))
	r.Use(rateLimit(limiter))

	h := NewHandler(svc, opts.RetryAfter, opts.Logger)
	setupRoutes(r, h, opts.APIKey)

	return &Server{
		engine:  r,
		handler: h,
		logger:  opts.Logger,
		http: &http.Server{
			Addr:              opts.Address,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      opts.WriteTimeout,
			IdleTimeout:       2 * time.Minute,
		},
	}
}

func setupRoutes(r *gin.Engine, h *Handler, apiKey string) {
	r.GET("/api/health", h.Health)

	scraping := r.Group("/api/scraping")
	scraping.Use(requireAPIKey(apiKey))
	{
		scraping.POST("/profile/:username", h.ScrapeProfile)
		scraping.POST("/posts/:username", h.ScrapePosts)
		scraping.POST("/reels/:username", h.ScrapeReels)
		scraping.POST("/complete/:username", h.ScrapeComplete)
		scraping.GET("/status", h.Status)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
	})
}

// Handler returns the underlying http.Handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves until Shutdown is called
func (s *Server) ListenAndServe() error {
	logger.LogComponentStart(s.logger, "http", map[string]interface{}{"address": s.http.Addr})
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	logger.LogComponentStop(s.logger, "http", "shutdown")
	return err
}
