package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"futures-core/internal/api"
	"futures-core/internal/balance"
	"futures-core/internal/depth"
	"futures-core/internal/events"
	"futures-core/internal/ledger"
	"futures-core/internal/market"
	"futures-core/internal/monitor"
	"futures-core/internal/persistence"
	"futures-core/internal/risk"
	"futures-core/internal/scheduler"
	signalgen "futures-core/internal/signal"
	"futures-core/internal/strategy"
	"futures-core/pkg/config"
	"futures-core/pkg/db"
	"futures-core/pkg/exchange/coindcx"
)

const defaultTenant = "default"

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ config load failed: %v", err)
	}

	buildVersion := os.Getenv("APP_VERSION")
	if buildVersion == "" {
		buildVersion = "v1.0-dev"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("❌ database open failed: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("❌ migrations failed: %v", err)
	}
	queries := database.Queries()

	bus := events.NewBus()

	// Market data and execution venue
	var (
		candles     market.CandleSource
		prices      market.PriceSource
		broker      market.Broker
		depthSource depth.Source
		live        bool
	)
	if cfg.UseMockFeed {
		mock := market.NewMockFeed(100, 0.8)
		candles, prices, broker = mock, mock, mock
		depthSource = depth.SyntheticSource{Prices: mock}
		log.Println("🎯 using mock market feed (dry-run data)")
	} else {
		client := coindcx.NewClient(cfg.CoinDCXBaseURL, cfg.CoinDCXAPIKey, cfg.CoinDCXAPISecret)
		candles, prices = client, client
		depthSource = client
		if cfg.CoinDCXAPIKey != "" && cfg.CoinDCXAPISecret != "" {
			broker = client
			live = true
			log.Println("🚀 live order routing enabled (CoinDCX futures)")
		} else {
			broker = market.NewPaperBroker(client)
			log.Println("💰 paper trading mode: real market data, simulated fills")
		}
	}

	// Strategies
	registry := strategy.NewRegistry()
	if cfg.StrategyConfigPath != "" {
		configs, err := strategy.LoadConfig(cfg.StrategyConfigPath)
		if err != nil {
			log.Printf("⚠️ strategy config %s not loaded: %v", cfg.StrategyConfigPath, err)
		} else {
			if err := strategy.ApplyConfig(registry, configs); err != nil {
				log.Printf("⚠️ strategy config apply: %v", err)
			}
			if err := strategy.SyncConfigToDB(database.DB, configs); err != nil {
				log.Printf("⚠️ strategy config sync: %v", err)
			}
			log.Printf("🎯 applied strategy config for %d tenant(s)", len(configs))
		}
	}
	applyStoredStrategies(ctx, queries, registry)

	// Ledgers, restored from the last run
	ledgers := ledger.NewManager(ledger.Defaults{
		InitialBalance:   cfg.InitialBalance,
		MaxOpenPositions: cfg.MaxOpenPositions,
	})
	if err := persistence.RestoreLedgers(ctx, queries, ledgers, cfg.MaxOpenPositions); err != nil {
		log.Fatalf("❌ ledger restore failed: %v", err)
	}

	recorder := persistence.NewRecorder(queries, bus, ledgers)
	recorder.Start(ctx)

	riskCfg := risk.Config{
		MaxPositionSizePercent:  cfg.MaxPositionSizePercent,
		Leverage:                cfg.Leverage,
		StopLossPercent:         cfg.StopLossPercent,
		TakeProfitPercent:       cfg.TakeProfitPercent,
		TrailingStop:            cfg.TrailingStop,
		TrailingStopPercent:     cfg.TrailingStopPercent,
		UseATRStopLoss:          cfg.UseATRStopLoss,
		ATRStopLossMultiplier:   cfg.ATRStopLossMultiplier,
		ATRTakeProfitMultiplier: cfg.ATRTakeProfitMultiplier,
	}
	loopCfg := scheduler.Config{
		Symbols:             cfg.Symbols,
		Interval:            cfg.SignalScanInterval,
		MinSignalStrength:   cfg.MinSignalStrength,
		MaxOpenPositions:    cfg.MaxOpenPositions,
		EnableLong:          cfg.EnableLong,
		EnableShort:         cfg.EnableShort,
		CriticalUtilization: 0.8,
		WarningUtilization:  0.6,
	}

	generator := signalgen.NewGenerator(candles, prices, registry)

	// One trading loop per tenant
	tenants := activeTenants(ctx, queries)
	runtimes := make(map[string]*api.TenantRuntime, len(tenants))
	var wg sync.WaitGroup
	schedulers := make([]*scheduler.Scheduler, 0, len(tenants))
	for _, tenantID := range tenants {
		led := ledgers.GetOrCreate(tenantID)
		mon := monitor.New(tenantID, prices, broker, led, generator, riskCfg)
		sched := scheduler.New(tenantID, loopCfg, riskCfg, led, mon, generator, broker, bus)
		runtimes[tenantID] = &api.TenantRuntime{Scheduler: sched, Monitor: mon}
		schedulers = append(schedulers, sched)

		wg.Add(1)
		go func(s *scheduler.Scheduler) {
			defer wg.Done()
			s.Run(ctx)
		}(sched)
	}
	log.Printf("🚀 started %d trading loop(s) for %d symbol(s), scan every %s",
		len(tenants), len(cfg.Symbols), cfg.SignalScanInterval)

	// API
	server := api.NewServer(
		bus,
		queries,
		registry,
		ledgers,
		runtimes,
		depth.NewAnalyzer(depthSource, depth.DefaultLevels),
		api.SystemMeta{
			Symbols:      cfg.Symbols,
			ScanInterval: cfg.SignalScanInterval,
			UseMockFeed:  cfg.UseMockFeed,
			Version:      buildVersion,
		},
		cfg.JWTSecret,
	)
	if live {
		poller := balance.NewPoller(broker, 30*time.Second)
		poller.Start(ctx)
		server.Venue = poller
	}

	go func() {
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Fatalf("❌ API server error: %v", err)
		}
	}()

	if cfg.JWTSecret == "dev-secret" {
		if token, err := api.GenerateToken(defaultTenant, cfg.JWTSecret, time.Now().Add(24*time.Hour)); err == nil {
			log.Printf("🎯 dev token for tenant %q: %s", defaultTenant, token)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("🛑 shutting down...")

	cancel()
	for _, s := range schedulers {
		s.Stop()
	}
	wg.Wait()
	recorder.Close()
	persistence.SaveAll(context.Background(), queries, ledgers, tenants)
	log.Println("💾 state saved, goodbye")
}

// applyStoredStrategies restores each tenant's persisted strategy selection.
func applyStoredStrategies(ctx context.Context, queries *db.TenantQueries, registry *strategy.Registry) {
	rows, err := queries.GetStrategyConfigs(ctx)
	if err != nil {
		log.Printf("⚠️ strategy config read: %v", err)
		return
	}
	for _, row := range rows {
		var params strategy.Params
		if row.Params != "" {
			if err := json.Unmarshal([]byte(row.Params), &params); err != nil {
				log.Printf("⚠️ bad stored params for %s: %v", row.TenantID, err)
				params = nil
			}
		}
		if err := registry.SetActive(row.TenantID, row.StrategyID, params); err != nil {
			log.Printf("⚠️ restore strategy %s for %s: %v", row.StrategyID, row.TenantID, err)
		}
	}
}

// activeTenants lists every tenant known to the database, falling back to a
// single default tenant on a fresh install.
func activeTenants(ctx context.Context, queries *db.TenantQueries) []string {
	tenants, err := queries.Tenants(ctx)
	if err != nil {
		log.Printf("⚠️ tenant listing: %v", err)
	}
	if len(tenants) == 0 {
		tenants = []string{defaultTenant}
	}
	return tenants
}
