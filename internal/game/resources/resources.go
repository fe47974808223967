// Package resources tracks per-combatant expendable resources and their
// replenishment at turn, short-rest, and long-rest granularity. The shape
// of replenishment is pluggable: flat keyed pools and leveled spell slots
// are both strategies over the same pool store.
package resources

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Scope names the replenishment granularity a pool restores at.
type Scope int

const (
	ScopeTurn Scope = iota
	ScopeShortRest
	ScopeLongRest
)

func (s Scope) String() string {
	switch s {
	case ScopeTurn:
		return "turn"
	case ScopeShortRest:
		return "short_rest"
	case ScopeLongRest:
		return "long_rest"
	default:
		return "unknown"
	}
}

// Pool is one expendable resource: current and maximum charges plus the
// scope at which it refills.
type Pool struct {
	ID      string
	Current int
	Max     int
	Scope   Scope
}

// ReplenishStrategy decides which of a combatant's pools refill for a given
// scope. Strategies receive every pool and mutate those they own.
type ReplenishStrategy interface {
	// Replenish restores the pools this strategy manages for the scope.
	// Returns the IDs of pools it changed, sorted.
	Replenish(scope Scope, pools map[string]*Pool) []string
}

// FlatKeyStrategy refills every pool whose own scope is at or below the
// requested scope: a long rest also restores short-rest and turn pools.
type FlatKeyStrategy struct{}

func (FlatKeyStrategy) Replenish(scope Scope, pools map[string]*Pool) []string {
	var changed []string
	for id, p := range pools {
		if p.Scope > scope || p.Current == p.Max {
			continue
		}
		p.Current = p.Max
		changed = append(changed, id)
	}
	sort.Strings(changed)
	return changed
}

// LeveledSlotStrategy refills only leveled slot pools (IDs with the
// "slot:" prefix, e.g. "slot:1" .. "slot:9"), and only on a long rest.
// Pools outside the prefix are left for another strategy.
type LeveledSlotStrategy struct{}

// SlotPoolID returns the pool ID for a spell slot level.
func SlotPoolID(level int) string {
	return fmt.Sprintf("slot:%d", level)
}

func (LeveledSlotStrategy) Replenish(scope Scope, pools map[string]*Pool) []string {
	if scope != ScopeLongRest {
		return nil
	}
	var changed []string
	for id, p := range pools {
		if len(id) < 5 || id[:5] != "slot:" || p.Current == p.Max {
			continue
		}
		p.Current = p.Max
		changed = append(changed, id)
	}
	sort.Strings(changed)
	return changed
}

// Manager owns the per-combatant pool stores and applies the configured
// strategies on the orchestrator's replenishment calls.
type Manager struct {
	mu         sync.Mutex
	pools      map[string]map[string]*Pool // combatant ID -> pool ID -> pool
	strategies []ReplenishStrategy
	logger     *zap.Logger
}

// NewManager creates a Manager. With no strategies given, FlatKeyStrategy
// is used alone.
//
// Precondition: logger must be non-nil.
func NewManager(logger *zap.Logger, strategies ...ReplenishStrategy) *Manager {
	if len(strategies) == 0 {
		strategies = []ReplenishStrategy{FlatKeyStrategy{}}
	}
	return &Manager{
		pools:      make(map[string]map[string]*Pool),
		strategies: strategies,
		logger:     logger,
	}
}

// DefinePool registers a pool for the combatant, full at creation.
// Redefining an existing pool resets it.
//
// Precondition: max >= 0.
func (m *Manager) DefinePool(combatantID, poolID string, max int, scope Scope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byID, ok := m.pools[combatantID]
	if !ok {
		byID = make(map[string]*Pool)
		m.pools[combatantID] = byID
	}
	byID[poolID] = &Pool{ID: poolID, Current: max, Max: max, Scope: scope}
}

// Spend consumes amount from the pool; fails without mutation if the pool
// is unknown or has insufficient charges.
//
// Precondition: amount > 0.
func (m *Manager) Spend(combatantID, poolID string, amount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[combatantID][poolID]
	if !ok {
		return fmt.Errorf("resources: %q has no pool %q", combatantID, poolID)
	}
	if p.Current < amount {
		return fmt.Errorf("resources: %q pool %q has %d of %d requested", combatantID, poolID, p.Current, amount)
	}
	p.Current -= amount
	return nil
}

// Remaining returns the pool's current charges, or 0 if unknown.
func (m *Manager) Remaining(combatantID, poolID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pools[combatantID][poolID]; ok {
		return p.Current
	}
	return 0
}

// PoolsFor returns copies of the combatant's pools sorted by ID.
func (m *Manager) PoolsFor(combatantID string) []Pool {
	m.mu.Lock()
	defer m.mu.Unlock()
	byID := m.pools[combatantID]
	out := make([]Pool, 0, len(byID))
	for _, p := range byID {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ReplenishTurn restores the combatant's turn-scoped pools.
func (m *Manager) ReplenishTurn(combatantID string) {
	m.replenish(combatantID, ScopeTurn)
}

// ReplenishShortRest restores short-rest pools (and turn pools).
func (m *Manager) ReplenishShortRest(combatantID string) {
	m.replenish(combatantID, ScopeShortRest)
}

// ReplenishRest restores everything, spell slots included.
func (m *Manager) ReplenishRest(combatantID string) {
	m.replenish(combatantID, ScopeLongRest)
}

// ReplenishAll applies a full rest to every tracked combatant. Invoked at
// combat start.
func (m *Manager) ReplenishAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.pools))
	for id := range m.pools {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	sort.Strings(ids)
	for _, id := range ids {
		m.replenish(id, ScopeLongRest)
	}
}

func (m *Manager) replenish(combatantID string, scope Scope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byID, ok := m.pools[combatantID]
	if !ok {
		return
	}
	for _, strat := range m.strategies {
		if changed := strat.Replenish(scope, byID); len(changed) > 0 {
			m.logger.Debug("resources replenished",
				zap.String("combatant", combatantID),
				zap.String("scope", scope.String()),
				zap.Strings("pools", changed),
			)
		}
	}
}
