package status

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/Interzoneism/qdnd-sub003/internal/game/combatant"
	"github.com/Interzoneism/qdnd-sub003/internal/game/combatlog"
	"github.com/Interzoneism/qdnd-sub003/internal/scripting"
)

// Manager owns the per-combatant ActiveSets and drives status lifecycle
// processing on turn and round boundaries. It is not safe for concurrent
// use; the orchestrator serialises all access.
type Manager struct {
	registry *Registry
	sets     map[string]*ActiveSet
	log      *combatlog.Log
	hooks    *scripting.Hooks // nil = no scripted hooks
	logger   *zap.Logger
}

// NewManager creates a Manager.
//
// Precondition: registry, log, and logger must be non-nil; hooks may be nil.
func NewManager(registry *Registry, log *combatlog.Log, hooks *scripting.Hooks, logger *zap.Logger) *Manager {
	return &Manager{
		registry: registry,
		sets:     make(map[string]*ActiveSet),
		log:      log,
		hooks:    hooks,
		logger:   logger,
	}
}

// Registry returns the definition registry.
func (m *Manager) Registry() *Registry { return m.registry }

func (m *Manager) setFor(id string) *ActiveSet {
	s, ok := m.sets[id]
	if !ok {
		s = NewActiveSet()
		m.sets[id] = s
	}
	return s
}

// HasStatus reports whether the combatant has the given status active.
func (m *Manager) HasStatus(combatantID, statusID string) bool {
	s, ok := m.sets[combatantID]
	return ok && s.Has(statusID)
}

// IsIncapacitated reports whether any of the combatant's active statuses
// is incapacitating.
func (m *Manager) IsIncapacitated(combatantID string) bool {
	s, ok := m.sets[combatantID]
	return ok && s.IsIncapacitated()
}

// ActiveFor returns the combatant's active statuses sorted by ID.
func (m *Manager) ActiveFor(combatantID string) []*Active {
	s, ok := m.sets[combatantID]
	if !ok {
		return nil
	}
	return s.All()
}

// SpeedPenalty returns the combatant's total speed reduction from statuses.
func (m *Manager) SpeedPenalty(combatantID string) int {
	s, ok := m.sets[combatantID]
	if !ok {
		return 0
	}
	return s.SpeedPenalty()
}

// ApplyStatus applies the registered status to c, logs the application,
// mirrors the prone flag onto the combatant, and runs the definition's
// on-apply Lua hook if one is configured.
//
// Precondition: c must be non-nil.
// Postcondition: HasStatus(c.ID, statusID) is true on success.
func (m *Manager) ApplyStatus(c *combatant.Combatant, statusID string, stacks, duration int) error {
	def, ok := m.registry.Get(statusID)
	if !ok {
		return fmt.Errorf("status: unknown status %q", statusID)
	}
	if err := m.setFor(c.ID).Apply(def, stacks, duration); err != nil {
		return err
	}
	if statusID == StatusProne {
		c.Prone = true
	}
	m.log.StatusApplied(combatlog.Participant{ID: c.ID, Name: c.Name}, def.Name)
	m.runHook(def.LuaOnApply, c)
	return nil
}

// RemoveStatus removes the status from c; a no-op if not active. Removal
// is logged and the definition's on-remove Lua hook runs if configured.
//
// Postcondition: HasStatus(c.ID, statusID) is false.
func (m *Manager) RemoveStatus(c *combatant.Combatant, statusID string) {
	s, ok := m.sets[c.ID]
	if !ok || !s.Has(statusID) {
		return
	}
	def, _ := m.registry.Get(statusID)
	s.Remove(statusID)
	if statusID == StatusProne {
		c.Prone = false
	}
	name := statusID
	if def != nil {
		name = def.Name
	}
	m.log.StatusRemoved(combatlog.Participant{ID: c.ID, Name: c.Name}, name)
	if def != nil {
		m.runHook(def.LuaOnRemove, c)
	}
}

// ClearAll drops every active status for every combatant. Invoked at
// new-combat boot alongside the log reset.
func (m *Manager) ClearAll() {
	m.sets = make(map[string]*ActiveSet)
}

// ProcessTurnStart runs on-tick Lua hooks for each of c's active statuses
// at the start of c's turn.
func (m *Manager) ProcessTurnStart(c *combatant.Combatant) {
	s, ok := m.sets[c.ID]
	if !ok {
		return
	}
	for _, a := range s.All() {
		m.runHook(a.Def.LuaOnTick, c)
	}
}

// ProcessTurnEnd ticks round-scoped durations on c's statuses at the end
// of c's turn and removes (with log entries) those that expire.
func (m *Manager) ProcessTurnEnd(c *combatant.Combatant) {
	s, ok := m.sets[c.ID]
	if !ok {
		return
	}
	for _, id := range s.Tick() {
		def, _ := m.registry.Get(id)
		name := id
		if def != nil {
			name = def.Name
		}
		if id == StatusProne {
			c.Prone = false
		}
		m.log.StatusRemoved(combatlog.Participant{ID: c.ID, Name: c.Name}, name)
		if def != nil {
			m.runHook(def.LuaOnRemove, c)
		}
	}
}

// ProcessRoundEnd is the round-boundary hook. Durations tick per-owner at
// turn end, so this currently only logs at debug level; it exists so the
// orchestrator's fixed per-turn sequence has a stable call site.
func (m *Manager) ProcessRoundEnd(round int) {
	m.logger.Debug("status round-end processing", zap.Int("round", round))
}

func (m *Manager) runHook(hook string, c *combatant.Combatant) {
	if hook == "" || m.hooks == nil {
		return
	}
	m.hooks.CallHook(hook, lua.LString(c.ID))
}
