// Package server assembles the gin engine.
package server

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/CRMWizAI/sora2api/docs"
	"github.com/CRMWizAI/sora2api/internal/config"
	"github.com/CRMWizAI/sora2api/internal/handlers"
	"github.com/CRMWizAI/sora2api/internal/middleware"
)

func NewRouter(cfg *config.Config, logger zerolog.Logger, svc handlers.GenerationService, checks map[string]handlers.Pinger) *gin.Engine {
	r := gin.New()

	if cfg.OTELEnabled {
		r.Use(otelgin.Middleware(cfg.OTELServiceName))
	}
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recovery())
	r.Use(cors.New(corsConfig(cfg.CORSAllowedOrigins)))
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(middleware.Metrics())

	configureSwagger(cfg.BaseURL)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", handlers.NewHealthHandler(checks).Health)

	generate := handlers.NewGenerateHandler(svc)
	limiter := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst)

	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg))
	api.Use(limiter.Handler())

	api.POST("/generate", generate.Generate)
	api.GET("/generations", generate.ListGenerations)
	api.GET("/generations/:id", generate.GetGeneration)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found", "request_id": middleware.RequestIDFrom(c)})
	})

	return r
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID", "Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}

func configureSwagger(baseURL string) {
	if baseURL == "" {
		return
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return
	}
	docs.SwaggerInfo.Host = u.Host
	if u.Scheme == "https" {
		docs.SwaggerInfo.Schemes = []string{"https", "http"}
	} else {
		docs.SwaggerInfo.Schemes = []string{"http", "https"}
	}
}
