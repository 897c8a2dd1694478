// Package scheduler runs the per-tenant trading loop: check balance
// health, monitor open positions, then scan symbols for new entries if
// capacity allows. One loop per tenant, one tick at a time, cancellable
// between ticks.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"futures-core/internal/events"
	"futures-core/internal/ledger"
	"futures-core/internal/market"
	"futures-core/internal/monitor"
	"futures-core/internal/risk"
	"futures-core/internal/signal"
	"futures-core/internal/strategy"
)

// Config is the per-tenant trading loop configuration.
type Config struct {
	Symbols             []string      `json:"symbols"`
	Interval            time.Duration `json:"interval"`
	MinSignalStrength   float64       `json:"min_signal_strength"`
	MaxOpenPositions    int           `json:"max_open_positions"`
	EnableLong          bool          `json:"enable_long"`
	EnableShort         bool          `json:"enable_short"`
	CriticalUtilization float64       `json:"critical_utilization"`
	WarningUtilization  float64       `json:"warning_utilization"`
}

// DefaultConfig mirrors the bot's standard loop settings.
func DefaultConfig() Config {
	return Config{
		Symbols:             []string{"BTCUSDT", "ETHUSDT"},
		Interval:            60 * time.Second,
		MinSignalStrength:   0.6,
		MaxOpenPositions:    3,
		EnableLong:          true,
		EnableShort:         true,
		CriticalUtilization: 0.8,
		WarningUtilization:  0.6,
	}
}

// HealthStatus classifies balance utilization.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthWarning  HealthStatus = "warning"
	HealthCritical HealthStatus = "critical"
)

// BalanceHealth is the utilization report published each cycle.
type BalanceHealth struct {
	Status             HealthStatus `json:"status"`
	UtilizationPercent float64      `json:"utilization_percent"`
	AvailableBalance   float64      `json:"available_balance"`
	TotalBalance       float64      `json:"total_balance"`
	UsedMargin         float64      `json:"used_margin"`
}

// SignalSource re-evaluates the market for a pair; satisfied by
// signal.Generator.
type SignalSource interface {
	Generate(ctx context.Context, tenantID, pair string) signal.Record
}

// Scheduler owns one tenant's control loop.
type Scheduler struct {
	tenantID  string
	cfg       Config
	riskCfg   risk.Config
	ledger    *ledger.Ledger
	monitor   *monitor.Monitor
	generator SignalSource
	broker    market.Broker
	bus       *events.Bus

	stopOnce sync.Once
	stop     chan struct{}

	mu          sync.RWMutex
	lastSignals map[string]signal.Record // pair -> latest record
	lastHealth  BalanceHealth
	cycles      int
}

// New wires a scheduler for one tenant. The bus may be nil.
func New(tenantID string, cfg Config, riskCfg risk.Config, led *ledger.Ledger, mon *monitor.Monitor, gen SignalSource, broker market.Broker, bus *events.Bus) *Scheduler {
	return &Scheduler{
		tenantID:    tenantID,
		cfg:         cfg,
		riskCfg:     riskCfg,
		ledger:      led,
		monitor:     mon,
		generator:   gen,
		broker:      broker,
		bus:         bus,
		stop:        make(chan struct{}),
		lastSignals: make(map[string]signal.Record),
	}
}

// Run advances the loop on the configured interval until the context is
// cancelled or Stop is called. Ticks never overlap.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("🚀 [%s] trading loop started (interval %s, %d symbols)",
		s.tenantID, s.cfg.Interval, len(s.cfg.Symbols))
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("🛑 [%s] trading loop stopped: %v", s.tenantID, ctx.Err())
			return
		case <-s.stop:
			log.Printf("🛑 [%s] trading loop stopped", s.tenantID)
			return
		default:
		}

		s.Tick(ctx)

		select {
		case <-ctx.Done():
			log.Printf("🛑 [%s] trading loop stopped: %v", s.tenantID, ctx.Err())
			return
		case <-s.stop:
			log.Printf("🛑 [%s] trading loop stopped", s.tenantID)
			return
		case <-ticker.C:
		}
	}
}

// Stop requests loop termination; honored within one tick.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Tick executes one trading cycle. No failure inside a cycle terminates
// the loop; conditions are logged and re-evaluated next cycle.
func (s *Scheduler) Tick(ctx context.Context) {
	health := s.checkBalanceHealth()

	if health.Status == HealthCritical {
		log.Printf("⚠️ [%s] critical balance utilization (%.1f%%), monitoring only",
			s.tenantID, health.UtilizationPercent)
		s.monitor.Tick(ctx)
		s.finishCycle()
		return
	}

	s.publishOutcomes(s.monitor.Tick(ctx))

	if s.ledger.OpenCount() >= s.cfg.MaxOpenPositions {
		log.Printf("[%s] max positions reached (%d/%d), monitoring only",
			s.tenantID, s.ledger.OpenCount(), s.cfg.MaxOpenPositions)
		s.finishCycle()
		return
	}

	s.scanForSignals(ctx)
	s.finishCycle()
}

func (s *Scheduler) checkBalanceHealth() BalanceHealth {
	w := s.ledger.Wallet()
	utilization := s.ledger.Utilization() * 100

	status := HealthHealthy
	switch {
	case utilization > s.cfg.CriticalUtilization*100:
		status = HealthCritical
	case utilization > s.cfg.WarningUtilization*100:
		status = HealthWarning
	}

	health := BalanceHealth{
		Status:             status,
		UtilizationPercent: utilization,
		AvailableBalance:   w.Balance,
		TotalBalance:       w.TotalEquity(),
		UsedMargin:         w.LockedMargin,
	}

	s.mu.Lock()
	s.lastHealth = health
	s.mu.Unlock()
	if s.bus != nil {
		s.bus.PublishTenant(events.EventBalanceHealth, s.tenantID, health)
	}
	return health
}

// scanForSignals walks the configured symbols in order, skipping any with
// an open position, and attempts an entry for each qualifying signal.
func (s *Scheduler) scanForSignals(ctx context.Context) {
	for _, pair := range s.cfg.Symbols {
		if s.ledger.OpenCount() >= s.cfg.MaxOpenPositions {
			return
		}
		if s.ledger.HasPositionForPair(pair) {
			continue
		}

		rec := s.generator.Generate(ctx, s.tenantID, pair)
		s.mu.Lock()
		s.lastSignals[pair] = rec
		s.mu.Unlock()
		if s.bus != nil {
			s.bus.PublishTenant(events.EventSignal, s.tenantID, rec)
		}

		s.evaluateSignal(ctx, rec)
	}
}

func (s *Scheduler) evaluateSignal(ctx context.Context, rec signal.Record) {
	sig := rec.Signal
	if sig.Action != strategy.ActionLong && sig.Action != strategy.ActionShort {
		return
	}
	if sig.Strength < s.cfg.MinSignalStrength {
		log.Printf("[%s] %s signal below threshold (%.2f < %.2f)",
			s.tenantID, sig.Pair, sig.Strength, s.cfg.MinSignalStrength)
		return
	}
	if sig.Action == strategy.ActionLong && !s.cfg.EnableLong {
		return
	}
	if sig.Action == strategy.ActionShort && !s.cfg.EnableShort {
		return
	}

	log.Printf("🎯 [%s] signal detected: %s %s (strength %.2f)",
		s.tenantID, sig.Pair, sig.Action, sig.Strength)
	s.openPosition(ctx, rec)
}

// openPosition sizes, submits and records a new position. The order goes
// to the exchange first; a failed submission never mutates the ledger.
func (s *Scheduler) openPosition(ctx context.Context, rec signal.Record) {
	sig := rec.Signal
	w := s.ledger.Wallet()

	size := risk.PositionSize(w.Balance, rec.Price, s.riskCfg.Leverage, s.riskCfg.MaxPositionSizePercent, sig.Strength)
	if size <= 0 {
		log.Printf("[%s] position size too small for %s, skipping", s.tenantID, sig.Pair)
		return
	}
	margin := risk.Margin(size, rec.Price, s.riskCfg.Leverage)

	if err := s.ledger.CanOpen(sig.Pair, margin); err != nil {
		log.Printf("[%s] cannot open %s: %v", s.tenantID, sig.Pair, err)
		return
	}

	order, err := s.broker.OpenOrder(ctx, sig.Pair, string(sig.Action), size)
	if err != nil {
		log.Printf("❌ [%s] order failed for %s: %v", s.tenantID, sig.Pair, err)
		return
	}
	entry := order.EntryPrice
	if entry == 0 {
		entry = rec.Price
	}

	long := sig.Action == strategy.ActionLong
	exits := s.riskCfg.ExitsFor(entry, long, rec.ATR)

	side := ledger.Long
	if !long {
		side = ledger.Short
	}
	pos, err := s.ledger.Open(ledger.OpenRequest{
		Pair:       sig.Pair,
		Side:       side,
		EntryPrice: entry,
		Size:       size,
		Leverage:   s.riskCfg.Leverage,
		Margin:     margin,
		TakeProfit: exits.TakeProfit,
		StopLoss:   exits.StopLoss,
	})
	if err != nil {
		// Order went through but the ledger declined; surface loudly so
		// the exchange position can be reconciled by hand.
		log.Printf("❌ [%s] ledger rejected opened order %s for %s: %v",
			s.tenantID, order.OrderID, sig.Pair, err)
		return
	}

	if s.bus != nil {
		s.bus.PublishTenant(events.EventPositionOpened, s.tenantID, pos)
	}
}

func (s *Scheduler) publishOutcomes(outcomes []monitor.Outcome) {
	if s.bus == nil {
		return
	}
	for _, out := range outcomes {
		if out.Closed {
			s.bus.PublishTenant(events.EventPositionClosed, s.tenantID, out)
			s.bus.PublishTenant(events.EventTradeRecorded, s.tenantID, out.Trade)
			continue
		}
		if pos, ok := s.ledger.Position(out.PositionID); ok {
			s.bus.PublishTenant(events.EventPositionUpdated, s.tenantID, pos)
		}
	}
}

func (s *Scheduler) finishCycle() {
	s.mu.Lock()
	s.cycles++
	n := s.cycles
	s.mu.Unlock()
	if s.bus != nil {
		s.bus.PublishTenant(events.EventCycleComplete, s.tenantID, n)
	}
}

// Signals returns the latest signal per scanned pair.
func (s *Scheduler) Signals() map[string]signal.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]signal.Record, len(s.lastSignals))
	for pair, rec := range s.lastSignals {
		out[pair] = rec
	}
	return out
}

// Health returns the most recent balance health report.
func (s *Scheduler) Health() BalanceHealth {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastHealth
}

// RiskConfig returns the tenant's risk settings.
func (s *Scheduler) RiskConfig() risk.Config {
	return s.riskCfg
}

// LoopConfig returns the loop settings.
func (s *Scheduler) LoopConfig() Config {
	return s.cfg
}

// Cycles reports how many ticks have completed.
func (s *Scheduler) Cycles() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cycles
}
