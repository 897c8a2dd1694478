// Package api serves the dashboard: tenant-scoped views over wallets,
// positions, trades and signals, plus a websocket event stream. All
// routes except /health require a tenant bearer token.
package api

import (
	"net/http"
	"time"

	"futures-core/internal/balance"
	"futures-core/internal/depth"
	"futures-core/internal/events"
	"futures-core/internal/ledger"
	"futures-core/internal/monitor"
	"futures-core/internal/scheduler"
	"futures-core/internal/strategy"
	"futures-core/pkg/db"

	"github.com/gin-gonic/gin"
)

// TenantRuntime bundles one tenant's loop and monitor for API access.
type TenantRuntime struct {
	Scheduler *scheduler.Scheduler
	Monitor   *monitor.Monitor
}

// Server wires HTTP endpoints around the engine.
type Server struct {
	Router    *gin.Engine
	Bus       *events.Bus
	Queries   *db.TenantQueries
	Registry  *strategy.Registry
	Ledgers   *ledger.Manager
	Runtimes  map[string]*TenantRuntime
	Depth     *depth.Analyzer
	Venue     *balance.Poller
	JWTSecret string
	Meta      SystemMeta
}

// SystemMeta describes runtime status exposed to the UI.
type SystemMeta struct {
	Symbols      []string
	ScanInterval time.Duration
	UseMockFeed  bool
	Version      string
}

func NewServer(bus *events.Bus, queries *db.TenantQueries, registry *strategy.Registry, ledgers *ledger.Manager, runtimes map[string]*TenantRuntime, depthAnalyzer *depth.Analyzer, meta SystemMeta, jwtSecret string) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger())
	r.Use(RateLimitMiddleware())
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(CORSMiddleware())

	s := &Server{
		Router:    r,
		Bus:       bus,
		Queries:   queries,
		Registry:  registry,
		Ledgers:   ledgers,
		Runtimes:  runtimes,
		Depth:     depthAnalyzer,
		JWTSecret: jwtSecret,
		Meta:      meta,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	api.Use(AuthMiddleware(s.JWTSecret))
	{
		api.GET("/status", s.getStatus)
		api.GET("/wallet", s.getWallet)
		api.GET("/positions", s.getPositions)
		api.POST("/positions/:id/close", s.closePosition)
		api.GET("/trades", s.getTrades)
		api.GET("/signals", s.getSignals)
		api.GET("/signals/latest", s.getLatestSignals)
		api.GET("/depth/:pair", s.getDepth)
		api.GET("/strategies", s.getStrategies)
		api.PUT("/strategy", s.setStrategy)
		api.GET("/config", s.getConfig)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// runtime returns the caller's runtime bundle, if one is registered.
func (s *Server) runtime(tenantID string) (*TenantRuntime, bool) {
	rt, ok := s.Runtimes[tenantID]
	return rt, ok
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
