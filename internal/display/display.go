// Package display holds the UI projection models the combat core writes
// into. They are plain snapshots: the core overwrites them as a side
// effect of turn processing and never reads them back.
package display

import (
	"sync"

	"github.com/Interzoneism/qdnd-sub003/internal/game/combatant"
	"github.com/Interzoneism/qdnd-sub003/internal/game/resources"
)

// TurnOrderEntry is one row of the initiative tracker.
type TurnOrderEntry struct {
	ID         string
	Name       string
	Faction    combatant.Faction
	Initiative int
	IsCurrent  bool
	IsDown     bool
}

// TurnOrderModel is the initiative tracker projection.
type TurnOrderModel struct {
	mu      sync.Mutex
	round   int
	entries []TurnOrderEntry
}

// Update overwrites the model from the queue's current order and cursor.
func (m *TurnOrderModel) Update(round int, order []*combatant.Combatant, currentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.round = round
	m.entries = m.entries[:0]
	for _, c := range order {
		m.entries = append(m.entries, TurnOrderEntry{
			ID:         c.ID,
			Name:       c.Name,
			Faction:    c.Faction,
			Initiative: c.Initiative,
			IsCurrent:  c.ID == currentID,
			IsDown:     c.IsDown(),
		})
	}
}

// Snapshot returns the current round and a copy of the rows.
func (m *TurnOrderModel) Snapshot() (int, []TurnOrderEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TurnOrderEntry, len(m.entries))
	copy(out, m.entries)
	return m.round, out
}

// ActionBarModel is the acting combatant's budget projection.
type ActionBarModel struct {
	mu                sync.Mutex
	combatantID       string
	actions           int
	bonusActions      int
	reactions         int
	movementRemaining float64
}

// Update overwrites the model from the acting combatant's budget.
func (m *ActionBarModel) Update(c *combatant.Combatant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.combatantID = c.ID
	m.actions = c.Budget.Actions
	m.bonusActions = c.Budget.BonusActions
	m.reactions = c.Budget.Reactions
	m.movementRemaining = c.Budget.MovementRemaining
}

// Snapshot returns the combatant ID and budget values last written.
func (m *ActionBarModel) Snapshot() (id string, actions, bonus, reactions int, movement float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.combatantID, m.actions, m.bonusActions, m.reactions, m.movementRemaining
}

// ResourceBarModel is the acting combatant's resource pool projection.
type ResourceBarModel struct {
	mu          sync.Mutex
	combatantID string
	pools       []resources.Pool
}

// Update overwrites the model with the combatant's pools.
func (m *ResourceBarModel) Update(combatantID string, pools []resources.Pool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.combatantID = combatantID
	m.pools = append(m.pools[:0], pools...)
}

// Snapshot returns the combatant ID and a copy of the pools.
func (m *ResourceBarModel) Snapshot() (string, []resources.Pool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]resources.Pool, len(m.pools))
	copy(out, m.pools)
	return m.combatantID, out
}

// Models bundles the three projections the orchestrator updates.
type Models struct {
	TurnOrder   TurnOrderModel
	ActionBar   ActionBarModel
	ResourceBar ResourceBarModel
}
