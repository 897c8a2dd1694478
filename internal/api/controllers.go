package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"futures-core/internal/events"
	"futures-core/internal/strategy"
	"futures-core/pkg/db"

	"github.com/gin-gonic/gin"
)

func (s *Server) getStatus(c *gin.Context) {
	tenantID := CurrentTenantID(c)
	led := s.Ledgers.GetOrCreate(tenantID)

	status := gin.H{
		"version":        s.Meta.Version,
		"symbols":        s.Meta.Symbols,
		"scan_interval":  s.Meta.ScanInterval.String(),
		"use_mock_feed":  s.Meta.UseMockFeed,
		"tenant_id":      tenantID,
		"open_positions": led.OpenCount(),
		"strategy":       s.Registry.ActiveFor(tenantID).Name(),
	}
	if rt, ok := s.runtime(tenantID); ok {
		status["cycles"] = rt.Scheduler.Cycles()
		status["balance_health"] = rt.Scheduler.Health()
	}
	if s.Venue != nil {
		if bal, at := s.Venue.Snapshot(); !at.IsZero() {
			status["venue_balance"] = gin.H{
				"total":     bal.Total,
				"available": bal.Available,
				"locked":    bal.Locked,
				"synced_at": at.UTC(),
			}
		}
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) getWallet(c *gin.Context) {
	led := s.Ledgers.GetOrCreate(CurrentTenantID(c))
	c.JSON(http.StatusOK, gin.H{
		"wallet":     led.Wallet(),
		"statistics": led.Statistics(),
	})
}

func (s *Server) getPositions(c *gin.Context) {
	led := s.Ledgers.GetOrCreate(CurrentTenantID(c))
	c.JSON(http.StatusOK, gin.H{"positions": led.Positions()})
}

func (s *Server) closePosition(c *gin.Context) {
	tenantID := CurrentTenantID(c)
	rt, ok := s.runtime(tenantID)
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":  "NO_RUNTIME",
			"error": "no trading loop running for tenant",
		})
		return
	}

	outcome, err := rt.Monitor.ClosePosition(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"code":  "CLOSE_FAILED",
			"error": err.Error(),
		})
		return
	}
	if s.Bus != nil && outcome.Closed {
		s.Bus.PublishTenant(events.EventPositionClosed, tenantID, outcome)
		s.Bus.PublishTenant(events.EventTradeRecorded, tenantID, outcome.Trade)
	}
	c.JSON(http.StatusOK, gin.H{"closed": outcome})
}

func (s *Server) getTrades(c *gin.Context) {
	led := s.Ledgers.GetOrCreate(CurrentTenantID(c))
	limit := queryInt(c, "limit", 50)
	c.JSON(http.StatusOK, gin.H{"trades": led.Trades(limit)})
}

func (s *Server) getSignals(c *gin.Context) {
	tenantID := CurrentTenantID(c)
	limit := queryInt(c, "limit", 50)
	pair := c.Query("pair")

	signals, err := s.Queries.GetSignalsByTenant(c.Request.Context(), tenantID, pair, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":  "INTERNAL_ERROR",
			"error": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"signals": signals})
}

func (s *Server) getLatestSignals(c *gin.Context) {
	rt, ok := s.runtime(CurrentTenantID(c))
	if !ok {
		c.JSON(http.StatusOK, gin.H{"signals": gin.H{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"signals": rt.Scheduler.Signals()})
}

func (s *Server) getStrategies(c *gin.Context) {
	tenantID := CurrentTenantID(c)
	c.JSON(http.StatusOK, gin.H{
		"available": s.Registry.IDs(),
		"active":    s.Registry.ActiveFor(tenantID).Name(),
	})
}

func (s *Server) setStrategy(c *gin.Context) {
	tenantID := CurrentTenantID(c)

	var req struct {
		StrategyID string          `json:"strategy_id"`
		Params     strategy.Params `json:"params"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "INVALID_PAYLOAD",
			"error": "invalid request payload",
		})
		return
	}
	if req.StrategyID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "MISSING_STRATEGY",
			"error": "strategy_id is required",
		})
		return
	}

	if err := s.Registry.SetActive(tenantID, req.StrategyID, req.Params); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"code":  "INVALID_STRATEGY",
			"error": err.Error(),
		})
		return
	}

	params, _ := json.Marshal(req.Params)
	if err := s.Queries.UpsertStrategyConfig(c.Request.Context(), db.StrategyConfigRow{
		TenantID:   tenantID,
		StrategyID: req.StrategyID,
		Params:     string(params),
	}); err != nil {
		log.Printf("⚠️ strategy config save for %s: %v", tenantID, err)
	}

	c.JSON(http.StatusOK, gin.H{
		"active": s.Registry.ActiveFor(tenantID).Name(),
	})
}

func (s *Server) getConfig(c *gin.Context) {
	tenantID := CurrentTenantID(c)
	rt, ok := s.runtime(tenantID)
	if !ok {
		c.JSON(http.StatusOK, gin.H{
			"symbols":       s.Meta.Symbols,
			"scan_interval": s.Meta.ScanInterval.String(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbols":       s.Meta.Symbols,
		"scan_interval": s.Meta.ScanInterval.String(),
		"risk":          rt.Scheduler.RiskConfig(),
		"loop":          rt.Scheduler.LoopConfig(),
	})
}

func (s *Server) getDepth(c *gin.Context) {
	if s.Depth == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":  "DEPTH_UNAVAILABLE",
			"error": "order book source not configured",
		})
		return
	}
	pair := c.Param("pair")
	c.JSON(http.StatusOK, s.Depth.Analyze(c.Request.Context(), pair))
}

func queryInt(c *gin.Context, key string, def int) int {
	if v := c.Query(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return i
		}
	}
	return def
}
