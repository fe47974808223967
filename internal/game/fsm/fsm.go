// Package fsm implements the combat phase state machine. It is the sole
// authority on which high-level phase combat is in; every mutating operation
// in the core must pass a legality check against the current phase.
package fsm

import (
	"sync"

	"go.uber.org/zap"
)

// State is one combat phase from the closed set.
type State int

const (
	CombatStart State = iota
	TurnStart
	PlayerDecision
	AIDecision
	ActionExecution
	TurnEnd
	RoundEnd
	// CombatEnd is terminal; no transitions leave it.
	CombatEnd
)

// String returns the phase label.
func (s State) String() string {
	switch s {
	case CombatStart:
		return "combat_start"
	case TurnStart:
		return "turn_start"
	case PlayerDecision:
		return "player_decision"
	case AIDecision:
		return "ai_decision"
	case ActionExecution:
		return "action_execution"
	case TurnEnd:
		return "turn_end"
	case RoundEnd:
		return "round_end"
	case CombatEnd:
		return "combat_end"
	default:
		return "unknown"
	}
}

// IsDecision reports whether the state accepts commands.
func (s State) IsDecision() bool {
	return s == PlayerDecision || s == AIDecision
}

// adjacency defines the legal transitions. CombatEnd is reachable from every
// non-terminal state so combat can always be torn down.
var adjacency = map[State][]State{
	CombatStart:     {TurnStart},
	TurnStart:       {PlayerDecision, AIDecision, TurnEnd},
	PlayerDecision:  {ActionExecution, TurnEnd, AIDecision},
	AIDecision:      {ActionExecution, TurnEnd, PlayerDecision},
	ActionExecution: {PlayerDecision, AIDecision, TurnEnd},
	TurnEnd:         {TurnStart, RoundEnd},
	RoundEnd:        {TurnStart},
	CombatEnd:       {},
}

// Attempt records one transition request, successful or not, for observability.
type Attempt struct {
	From    State
	To      State
	Reason  string
	Allowed bool
}

// attemptHistoryCap bounds the audit ring so a long combat cannot grow it
// without limit.
const attemptHistoryCap = 256

// Machine is the combat state machine. All methods are safe for concurrent use.
type Machine struct {
	mu      sync.RWMutex
	state   State
	history []Attempt
	logger  *zap.Logger
	// onTransition observes every attempt after it is recorded; wired to the
	// combat log by the orchestrator. May be nil.
	onTransition func(Attempt)
}

// New creates a Machine in CombatStart.
//
// Precondition: logger must be non-nil (use zap.NewNop() to discard).
func New(logger *zap.Logger) *Machine {
	return &Machine{state: CombatStart, logger: logger}
}

// OnTransition registers the single attempt observer, replacing any previous
// one.
func (m *Machine) OnTransition(fn func(Attempt)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTransition = fn
}

// CurrentState returns the machine's phase without side effects.
func (m *Machine) CurrentState() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// InDecisionState reports whether commands may currently execute.
func (m *Machine) InDecisionState() bool {
	return m.CurrentState().IsDecision()
}

// TryTransition moves to target if the adjacency table permits it from the
// current state. It returns false and leaves the state unchanged otherwise.
// Every attempt is recorded; an illegal request is a caller bug surfaced as
// a boolean so the caller can recover rather than crash.
//
// Postcondition: CurrentState() == target iff the return value is true.
func (m *Machine) TryTransition(target State, reason string) bool {
	m.mu.Lock()

	allowed := false
	if target == CombatEnd && m.state != CombatEnd {
		allowed = true
	} else {
		for _, next := range adjacency[m.state] {
			if next == target {
				allowed = true
				break
			}
		}
	}

	attempt := Attempt{From: m.state, To: target, Reason: reason, Allowed: allowed}
	m.history = append(m.history, attempt)
	if len(m.history) > attemptHistoryCap {
		m.history = m.history[len(m.history)-attemptHistoryCap:]
	}
	if allowed {
		m.state = target
	}
	observer := m.onTransition
	m.mu.Unlock()

	if allowed {
		m.logger.Debug("state transition",
			zap.Stringer("from", attempt.From),
			zap.Stringer("to", target),
			zap.String("reason", reason),
		)
	} else {
		m.logger.Warn("state transition denied",
			zap.Stringer("from", attempt.From),
			zap.Stringer("to", target),
			zap.String("reason", reason),
		)
	}
	if observer != nil {
		observer(attempt)
	}
	return allowed
}

// History returns a copy of the recorded transition attempts, oldest first.
func (m *Machine) History() []Attempt {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Attempt, len(m.history))
	copy(out, m.history)
	return out
}

// Reset returns the machine to CombatStart and clears the audit history.
// Used at new-combat boot alongside the combat log's Clear.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = CombatStart
	m.history = nil
}
