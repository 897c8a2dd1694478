package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("port = %s, want 8080", cfg.Port)
	}
	if cfg.SignalScanInterval != 60*time.Second {
		t.Errorf("interval = %s, want 60s", cfg.SignalScanInterval)
	}
	if cfg.Leverage != 5.0 || cfg.MaxPositionSizePercent != 10.0 {
		t.Errorf("risk defaults wrong: leverage %.1f size %.1f", cfg.Leverage, cfg.MaxPositionSizePercent)
	}
	if !cfg.EnableLong || !cfg.EnableShort {
		t.Error("both sides should default to enabled")
	}
	if len(cfg.Symbols) != 2 {
		t.Errorf("symbols = %v, want two defaults", cfg.Symbols)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TRADING_PAIRS", "B-SOL_USDT, B-XRP_USDT ,")
	t.Setenv("SIGNAL_SCAN_INTERVAL", "15")
	t.Setenv("ENABLE_SHORT", "false")
	t.Setenv("MIN_SIGNAL_STRENGTH", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Symbols) != 2 || cfg.Symbols[0] != "B-SOL_USDT" || cfg.Symbols[1] != "B-XRP_USDT" {
		t.Errorf("symbols = %v", cfg.Symbols)
	}
	if cfg.SignalScanInterval != 15*time.Second {
		t.Errorf("interval = %s, want 15s", cfg.SignalScanInterval)
	}
	if cfg.EnableShort {
		t.Error("enable_short override ignored")
	}
	if cfg.MinSignalStrength != 0.75 {
		t.Errorf("min strength = %.2f, want 0.75", cfg.MinSignalStrength)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("LEVERAGE", "not-a-number")
	t.Setenv("MAX_OPEN_POSITIONS", "many")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Leverage != 5.0 {
		t.Errorf("leverage = %.1f, want default 5.0", cfg.Leverage)
	}
	if cfg.MaxOpenPositions != 3 {
		t.Errorf("max open = %d, want default 3", cfg.MaxOpenPositions)
	}
}
