// Package server provides the GridPilot Gin-based HTTP surface.
// Routes are split into two groups:
//   - Device-facing: the fixed volunteer-computing protocol endpoints
//     (scheduler proxy, account-manager rpc, project config, landing page).
//   - Operator API: JWT-protected inspection endpoints for the gateway
//     administrator.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vesaa/gridpilot/internal/config"
	"github.com/vesaa/gridpilot/internal/proxy"
	"github.com/vesaa/gridpilot/internal/store"
)

// Server bundles the gateway's request-time collaborators. All fields are
// read-only after construction; shared mutable state lives in the store.
type Server struct {
	reg   *config.Registry
	store *store.Store
	relay *proxy.Relay
	log   zerolog.Logger

	jwtSecret []byte
	adminUser string
	adminPass string
}

// New assembles a server from already-initialized collaborators.
func New(cfg *config.Config, reg *config.Registry, st *store.Store, relay *proxy.Relay, log zerolog.Logger) *Server {
	return &Server{
		reg:       reg,
		store:     st,
		relay:     relay,
		log:       log,
		jwtSecret: []byte(cfg.JWTSecret),
		adminUser: cfg.AdminUser,
		adminPass: cfg.AdminPass,
	}
}

// RegisterRoutes wires every endpoint onto the engine.
//
//	Device-facing: POST /proxy/:project/scheduler, GET /proxy/:project/,
//	               POST /rpc.php, GET /get_project_config.php
//	Operator:      POST /api/login, then JWT-protected /api/* routes
func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.POST("/proxy/:project/scheduler", s.handleSchedulerProxy)
	r.GET("/proxy/:project/", s.handleProxyRoot)
	r.POST("/rpc.php", s.handleAccountRPC)
	r.GET("/get_project_config.php", s.handleProjectConfig)

	// Liveness (no auth — used by load-balancers / k8s probes)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.POST("/login", s.handleLogin)

	auth := api.Group("/", s.JWTMiddleware())
	{
		auth.GET("/devices/:cpid/workunits", s.handleDeviceWorkUnits)
		auth.GET("/status", s.handleStatus)
	}
}

// AccessLog returns a middleware writing one structured line per request.
func AccessLog(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}
