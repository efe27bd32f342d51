// Package router assembles the gin engine and owns the HTTP server.
package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wardenauth/warden/internal/config"
	"github.com/wardenauth/warden/internal/infrastructure/monitoring"
	"github.com/wardenauth/warden/internal/interfaces/http/handlers"
	"github.com/wardenauth/warden/internal/interfaces/http/middleware"
	"github.com/wardenauth/warden/pkg/constants"
	"github.com/wardenauth/warden/pkg/logger"
)

// Handlers groups the endpoint handlers the router wires up.
type Handlers struct {
	Auth   *handlers.AuthHandler
	JWKS   *handlers.JWKSHandler
	Keys   *handlers.KeysHandler
	Health *handlers.HealthHandler
}

// Router owns the gin engine and the http.Server. It does not install
// signal handling; the host process decides when to call Shutdown.
type Router struct {
	engine *gin.Engine
	cfg    *config.Config
	logger logger.Logger
	server *http.Server
}

// New builds the engine and registers all routes.
func New(
	cfg *config.Config,
	log logger.Logger,
	identity middleware.Identity,
	h Handlers,
	tracer *monitoring.Tracer,
	metrics *monitoring.Metrics,
) *Router {
	if cfg.Profile == constants.ProfileProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()

	r := &Router{engine: engine, cfg: cfg, logger: log.WithComponent("http")}
	r.setupRoutes(identity, h, tracer, metrics)
	return r
}

func (r *Router) setupRoutes(identity middleware.Identity, h Handlers, tracer *monitoring.Tracer, metrics *monitoring.Metrics) {
	r.engine.Use(gin.Recovery())
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.Observability(tracer, metrics, r.logger))

	r.engine.Use(cors.New(cors.Config{
		AllowOrigins:     r.cfg.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.engine.GET("/health/live", h.Health.Live)
	r.engine.GET("/health/ready", h.Health.Ready)
	r.engine.GET("/.well-known/jwks.json", h.JWKS.GetJWKS)

	if r.cfg.Monitoring.Enabled {
		r.engine.GET(r.cfg.Monitoring.Path, gin.WrapH(promhttp.Handler()))
	}
	if r.cfg.Server.EnablePprof {
		pprof.Register(r.engine)
	}

	authenticate := middleware.Authenticate(identity, r.cfg.Authority.TokenHeaderPrefix)

	v1 := r.engine.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/login", h.Auth.Login)
			auth.POST("/logout", h.Auth.Logout)
			auth.POST("/refresh", h.Auth.Refresh)
			auth.POST("/validate", h.Auth.Validate)
		}

		me := v1.Group("")
		me.Use(authenticate)
		{
			me.GET("/me", h.Auth.Me)
			me.GET("/userinfo", h.Auth.UserInfo)
		}

		// Admin routes stack the full chain: authenticate, pin the
		// admin policy domain, require the admin role, then MFA.
		admin := v1.Group("/admin")
		admin.Use(
			authenticate,
			middleware.RequireContext(constants.DomainAdmin),
			middleware.RequireRoles(identity, "admin"),
			middleware.RequireMFA(identity, r.cfg.MFA),
		)
		{
			admin.GET("/keys", h.Keys.List)
			admin.POST("/keys/rotate", h.Keys.Rotate)
			admin.POST("/token/generate", h.Auth.Generate)
		}
	}

	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":             "not_found",
			"error_description": "the requested resource was not found",
		})
	})
}

// Start blocks serving HTTP until the listener fails or Shutdown is
// called.
func (r *Router) Start() error {
	r.server = &http.Server{
		Addr:           r.cfg.Server.Addr(),
		Handler:        r.engine,
		ReadTimeout:    r.cfg.Server.ReadTimeout,
		WriteTimeout:   r.cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	r.logger.Info(context.Background(), "http server starting",
		logger.String("addr", r.server.Addr))

	if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests. The host owns the deadline.
func (r *Router) Shutdown(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	return r.server.Shutdown(ctx)
}

// Engine exposes the gin engine for tests.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
