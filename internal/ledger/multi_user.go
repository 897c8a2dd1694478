package ledger

import (
	"sync"
	"time"
)

// Defaults applied to tenants without explicit configuration.
type Defaults struct {
	InitialBalance   float64
	MaxOpenPositions int
}

// Manager holds one ledger per tenant. Ledgers are created on first use
// and never shared across tenants.
type Manager struct {
	mu       sync.RWMutex
	ledgers  map[string]*Ledger // tenantID -> Ledger
	lastSeen map[string]time.Time
	defaults Defaults
}

// NewManager creates a multi-tenant ledger manager.
func NewManager(defaults Defaults) *Manager {
	return &Manager{
		ledgers:  make(map[string]*Ledger),
		lastSeen: make(map[string]time.Time),
		defaults: defaults,
	}
}

// GetOrCreate returns the ledger for a tenant, creating it with the
// defaults if needed.
func (m *Manager) GetOrCreate(tenantID string) *Ledger {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.ledgers[tenantID]; ok {
		m.lastSeen[tenantID] = time.Now()
		return l
	}

	l := New(tenantID, m.defaults.InitialBalance, m.defaults.MaxOpenPositions)
	m.ledgers[tenantID] = l
	m.lastSeen[tenantID] = time.Now()
	return l
}

// Get returns the tenant's ledger, or nil if none exists. It refreshes
// activity for existing ledgers and never creates one.
func (m *Manager) Get(tenantID string) *Ledger {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.ledgers[tenantID]; ok {
		m.lastSeen[tenantID] = time.Now()
		return l
	}
	return nil
}

// Put installs a restored ledger for a tenant, replacing any existing one.
func (m *Manager) Put(tenantID string, l *Ledger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledgers[tenantID] = l
	m.lastSeen[tenantID] = time.Now()
}

// Remove drops the tenant's ledger.
func (m *Manager) Remove(tenantID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ledgers, tenantID)
	delete(m.lastSeen, tenantID)
}

// TenantCount reports how many tenants currently hold a ledger.
func (m *Manager) TenantCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ledgers)
}

// AllWallets snapshots every tenant's wallet for the dashboard.
func (m *Manager) AllWallets() map[string]Wallet {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]Wallet, len(m.ledgers))
	for tenantID, l := range m.ledgers {
		result[tenantID] = l.Wallet()
	}
	return result
}

// CleanupIdle removes ledgers idle longer than ttl. Tenants with open
// positions are kept regardless of idle time.
func (m *Manager) CleanupIdle(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	cutoff := time.Now().Add(-ttl)

	m.mu.Lock()
	defer m.mu.Unlock()
	for tenantID, t := range m.lastSeen {
		if t.Before(cutoff) && m.ledgers[tenantID].OpenCount() == 0 {
			delete(m.ledgers, tenantID)
			delete(m.lastSeen, tenantID)
		}
	}
}
