// internal/core/api/service.go

// Package api provides the HTTP service for feed definitions and feed pages.
package api

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/averko/feedmill/internal/core/auth"
	"github.com/averko/feedmill/internal/core/config"
	"github.com/averko/feedmill/internal/core/store"
	"github.com/averko/feedmill/internal/engine"
)

// Service is the HTTP API. Thin orchestration layer: block decoding and
// persistence live in the store, compilation and pagination in the engine.
type Service struct {
	feeds     *store.FeedRepo
	paginator *engine.Paginator
	cfg       *config.APIConfig
	log       *slog.Logger
}

// NewService creates the API service with its dependencies.
func NewService(feeds *store.FeedRepo, paginator *engine.Paginator, cfg *config.APIConfig, log *slog.Logger) (*Service, error) {
	if feeds == nil {
		return nil, fmt.Errorf("feeds cannot be nil")
	}
	if paginator == nil {
		return nil, fmt.Errorf("paginator cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{feeds: feeds, paginator: paginator, cfg: cfg, log: log}, nil
}

// Router builds the gin engine. Every /api route sits behind the API-key
// middleware; /health does not.
func (s *Service) Router(authn *auth.Authenticator) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLog())
	r.Use(s.requestTimeout())

	r.GET("/health", s.handleHealth)

	apiGroup := r.Group("/api", authn.Middleware())
	{
		apiGroup.POST("/feeds", s.handleCreateFeed)
		apiGroup.GET("/feeds", s.handleListFeeds)
		apiGroup.GET("/feeds/:id", s.handleGetFeed)
		apiGroup.PUT("/feeds/:id", s.handleUpdateFeed)
		apiGroup.DELETE("/feeds/:id", s.handleDeleteFeed)
		apiGroup.GET("/feeds/:id/page", s.handleFeedPage)
		apiGroup.POST("/preview", s.handlePreview)
	}
	return r
}

// requestTimeout bounds every handler by the configured request timeout.
// Database calls inherit the deadline through the request context.
func (s *Service) requestTimeout() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.RequestTimeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// requestLog emits one structured line per request.
func (s *Service) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
		)
	}
}

func (s *Service) handleHealth(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}
