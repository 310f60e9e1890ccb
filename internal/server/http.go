package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	accountservice "github.com/astronomyk/CrowdSky/internal/account/service"
	"github.com/astronomyk/CrowdSky/internal/auth"
	"github.com/astronomyk/CrowdSky/internal/auth/middleware"
	"github.com/astronomyk/CrowdSky/internal/conf"
	"github.com/astronomyk/CrowdSky/internal/pkg/logger"
	"github.com/astronomyk/CrowdSky/internal/stacking/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HTTPServer wires the user-facing and worker-facing route groups onto
// one gin engine.
type HTTPServer struct {
	server *http.Server
	log    *logger.Logger
}

// NewHTTPServer creates the HTTP server. User endpoints sit behind JWT
// auth, worker endpoints behind the shared worker API key.
func NewHTTPServer(
	config *conf.Config,
	log *logger.Logger,
	jwtManager *auth.JWTManager,
	accountService *accountservice.AccountService,
	sessionService *service.SessionService,
	stackService *service.StackService,
	workerService *service.WorkerService,
) *HTTPServer {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	})

	public := router.Group("/api/v1")
	accountService.RegisterPublicRoutes(public)

	api := router.Group("/api/v1")
	api.Use(middleware.JWTAuth(jwtManager, log))
	accountService.RegisterRoutes(api)
	sessionService.RegisterRoutes(api)
	stackService.RegisterRoutes(api)

	worker := router.Group("/worker/v1")
	worker.Use(middleware.WorkerAuth(config.Auth.WorkerAPIKey, log))
	workerService.RegisterRoutes(worker)

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)

	return &HTTPServer{
		server: &http.Server{
			Addr:    addr,
			Handler: router,
		},
		log: log,
	}
}

func (s *HTTPServer) Start() error {
	s.log.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Stop(ctx context.Context) error {
	s.log.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// LoggerMiddleware logs one line per request
func LoggerMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		log.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}
