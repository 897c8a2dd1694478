// Package balance keeps a cached view of the venue's futures wallet so the
// dashboard can show it next to the simulated ledger without an API call
// per request.
package balance

import (
	"context"
	"log"
	"sync"
	"time"

	"futures-core/internal/market"
)

// Poller periodically syncs the broker's reported balance.
type Poller struct {
	broker   market.Broker
	interval time.Duration

	mu       sync.RWMutex
	last     market.BrokerBalance
	syncedAt time.Time
}

// NewPoller creates a poller; Start must be called to begin syncing.
func NewPoller(broker market.Broker, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Poller{broker: broker, interval: interval}
}

// Start performs an initial sync and then refreshes on a ticker until the
// context is cancelled.
func (p *Poller) Start(ctx context.Context) {
	if err := p.Sync(ctx); err != nil {
		log.Printf("⚠️ venue balance sync: %v", err)
	}

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := p.Sync(ctx); err != nil {
					log.Printf("⚠️ venue balance sync: %v", err)
				}
			}
		}
	}()
}

// Sync fetches the current venue balance once.
func (p *Poller) Sync(ctx context.Context) error {
	bal, err := p.broker.Balance(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.last = bal
	p.syncedAt = time.Now()
	p.mu.Unlock()

	log.Printf("💰 venue balance: total=%.2f available=%.2f locked=%.2f",
		bal.Total, bal.Available, bal.Locked)
	return nil
}

// Snapshot returns the last synced balance and when it was taken. A zero
// time means no sync has succeeded yet.
func (p *Poller) Snapshot() (market.BrokerBalance, time.Time) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last, p.syncedAt
}
