package strategy

import (
	"fmt"
	"sort"
	"sync"
)

// DefaultStrategyID is activated for tenants with no explicit config.
const DefaultStrategyID = "combined"

// Factory builds a fresh strategy instance from tenant params, validating
// them first. A factory error means nothing was registered or activated.
type Factory func(Params) (Strategy, error)

// ValidationError reports a rejected strategy activation. Activation is
// all-or-nothing: a rejected strategy leaves the tenant's previous one in
// place.
type ValidationError struct {
	StrategyID string
	Reason     string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("strategy %q rejected: %s", e.StrategyID, e.Reason)
}

// Registry holds the compiled strategy factories and each tenant's active
// instance. Instances are created fresh per tenant so no mutable state is
// ever shared across tenants.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	active    map[string]Strategy // tenantID -> instance
}

// NewRegistry builds a registry with all built-in strategies registered.
func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
		active:    make(map[string]Strategy),
	}
	r.factories["ema_crossover"] = NewEMACrossover
	r.factories["macd"] = NewMACDTrend
	r.factories["rsi"] = NewRSIMeanReversion
	r.factories["support_resistance"] = NewSupportResistance
	r.factories["combined"] = NewCombined
	return r
}

// Register adds a strategy factory under an id. The factory is probed with
// empty params so a broken registration is rejected up front.
func (r *Registry) Register(id string, factory Factory) error {
	if id == "" || factory == nil {
		return &ValidationError{StrategyID: id, Reason: "id and factory are required"}
	}
	if _, err := factory(Params{}); err != nil {
		return &ValidationError{StrategyID: id, Reason: fmt.Sprintf("factory rejects default params: %v", err)}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[id]; exists {
		return &ValidationError{StrategyID: id, Reason: "already registered"}
	}
	r.factories[id] = factory
	return nil
}

// IDs lists the registered strategy ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// New builds a fresh instance of the identified strategy.
func (r *Registry) New(id string, params Params) (Strategy, error) {
	r.mu.RLock()
	factory, ok := r.factories[id]
	r.mu.RUnlock()
	if !ok {
		return nil, &ValidationError{StrategyID: id, Reason: "not registered"}
	}
	inst, err := factory(params)
	if err != nil {
		return nil, &ValidationError{StrategyID: id, Reason: err.Error()}
	}
	return inst, nil
}

// SetActive activates a strategy for one tenant. On validation failure the
// tenant keeps its previous strategy.
func (r *Registry) SetActive(tenantID, strategyID string, params Params) error {
	inst, err := r.New(strategyID, params)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.active[tenantID] = inst
	r.mu.Unlock()
	return nil
}

// ActiveFor returns the tenant's active strategy, falling back to a fresh
// default instance for tenants never configured.
func (r *Registry) ActiveFor(tenantID string) Strategy {
	r.mu.RLock()
	inst, ok := r.active[tenantID]
	r.mu.RUnlock()
	if ok {
		return inst
	}

	inst, err := r.New(DefaultStrategyID, Params{})
	if err != nil {
		// Built-ins always accept empty params.
		panic(err)
	}
	r.mu.Lock()
	if existing, ok := r.active[tenantID]; ok {
		inst = existing
	} else {
		r.active[tenantID] = inst
	}
	r.mu.Unlock()
	return inst
}

// Analyze evaluates the tenant's active strategy, converting any panic
// inside the strategy into a flat signal so a tenant's loop never dies on
// a bad evaluation.
func (r *Registry) Analyze(tenantID string, data Data, currentPrice float64) Signal {
	return SafeAnalyze(r.ActiveFor(tenantID), data, currentPrice)
}

// SafeAnalyze runs one evaluation with panic containment.
func SafeAnalyze(s Strategy, data Data, currentPrice float64) (sig Signal) {
	defer func() {
		if rec := recover(); rec != nil {
			sig = flatSignal(s.Name(), fmt.Sprintf("Analysis error: %v", rec))
		}
	}()
	return s.Analyze(data, currentPrice)
}
