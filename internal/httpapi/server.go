package httpapi

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FanyNavas/Sentara.Api/internal/attendance"
	"github.com/FanyNavas/Sentara.Api/internal/auth"
	"github.com/FanyNavas/Sentara.Api/internal/snapshot"
)

// Pinger is a dependency the readiness probe checks.
type Pinger interface {
	Healthy(ctx context.Context) bool
}

// Options configures the router.
type Options struct {
	CORSOrigins  []string
	MaxBodyBytes int64

	// Snapshot links are served only when LinkSigningKey is set.
	LinkSigningKey string
	LinkIssuer     string

	// Checks are pinged by /api/ready, keyed by the name reported in the response.
	Checks map[string]Pinger

	Logger *log.Logger
}

// Server exposes the submission pipeline over HTTP.
type Server struct {
	svc    *attendance.Service
	codec  *snapshot.Codec
	opts   Options
	logger *log.Logger
}

// New builds a server. Call Router to get the handler.
func New(svc *attendance.Service, codec *snapshot.Codec, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Server{svc: svc, codec: codec, opts: opts, logger: opts.Logger}
}

// Router wires middleware and routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()

	r.Use(requestID())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: accessLogFormat,
		Output:    s.logger.Writer(),
		SkipPaths: []string{"/api/health", "/metrics"},
	}))
	r.Use(gin.CustomRecoveryWithWriter(s.logger.Writer(), func(c *gin.Context, recovered any) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, apiResponse{
			Error: fmt.Sprintf("Server error: %v", recovered),
		})
	}))
	r.Use(cors.New(corsConfig(s.opts.CORSOrigins)))
	r.Use(securityHeaders())
	r.Use(bodyLimit(s.opts.MaxBodyBytes))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/health", s.health)
	api.GET("/ready", s.ready)
	api.POST("/submit", s.submitAttendance)
	api.POST("/manual-review", s.submitManualReview)
	if s.opts.LinkSigningKey != "" {
		api.GET("/snapshots/:name", auth.SnapshotAuth(s.opts.LinkSigningKey, s.opts.LinkIssuer), s.serveSnapshot)
	}

	return r
}

// HTTPServer wraps the router with the timeouts used in production.
func (s *Server) HTTPServer(port string) *http.Server {
	return &http.Server{
		Addr:         ":" + port,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}
