// Package turnqueue owns the initiative-ordered list of active combatants and
// the round/turn cursor. It is independent of presentation and rules; the
// orchestrator and command gateway are its only writers.
package turnqueue

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/Interzoneism/qdnd-sub003/internal/game/combatant"
)

// ErrDuplicateID is returned when a combatant with the same ID is already
// registered.
var ErrDuplicateID = fmt.Errorf("turnqueue: duplicate combatant id")

// TurnChange describes one turn-change notification. Previous is nil for the
// first turn of combat.
type TurnChange struct {
	Previous  *combatant.Combatant
	Current   *combatant.Combatant
	Round     int
	TurnIndex int
}

// OrderSnapshot is the export/import contract for replay/resume: the exact
// order as stable IDs plus the numeric cursor, so initiative ties broken by
// insertion order are preserved byte-for-byte.
type OrderSnapshot struct {
	IDs       []string `json:"ids" yaml:"ids"`
	Round     int      `json:"round" yaml:"round"`
	TurnIndex int      `json:"turnIndex" yaml:"turn_index"`
}

type subscriber struct {
	id int
	fn func(TurnChange)
}

// Queue is the turn queue. All methods are safe for concurrent use.
type Queue struct {
	mu         sync.Mutex
	combatants map[string]*combatant.Combatant
	order      []*combatant.Combatant
	round      int
	turnIndex  int
	started    bool
	logger     *zap.Logger

	subs   []subscriber
	nextID int
}

// New creates an empty Queue.
//
// Precondition: logger must be non-nil (use zap.NewNop() to discard).
func New(logger *zap.Logger) *Queue {
	return &Queue{
		combatants: make(map[string]*combatant.Combatant),
		logger:     logger,
	}
}

// Subscribe registers fn for turn-change notifications and returns an
// unsubscribe function. Subscribers are invoked in registration order so
// notification fan-out stays deterministic.
//
// Precondition: fn must be non-nil.
func (q *Queue) Subscribe(fn func(TurnChange)) (unsubscribe func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	id := q.nextID
	q.subs = append(q.subs, subscriber{id: id, fn: fn})
	return func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		for i, s := range q.subs {
			if s.id == id {
				q.subs = append(q.subs[:i], q.subs[i+1:]...)
				return
			}
		}
	}
}

func (q *Queue) snapshotSubsLocked() []subscriber {
	subs := make([]subscriber, len(q.subs))
	copy(subs, q.subs)
	return subs
}

// AddCombatant registers c and recomputes the order.
//
// Precondition: c must be non-nil with a non-empty ID.
// Postcondition: Returns ErrDuplicateID if c.ID is already present; the
// current turn holder is unaffected by the recompute.
func (q *Queue) AddCombatant(c *combatant.Combatant) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if c == nil || c.ID == "" {
		return fmt.Errorf("turnqueue: combatant must have an id")
	}
	if _, exists := q.combatants[c.ID]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateID, c.ID)
	}
	q.combatants[c.ID] = c

	holder := q.currentLocked()
	q.recomputeOrderLocked()
	q.restoreCursorLocked(holder)

	q.logger.Debug("combatant added",
		zap.String("id", c.ID),
		zap.Int("initiative", c.Initiative),
	)
	return nil
}

// RemoveCombatant removes the combatant with the given ID.
// If the removed entry preceded the current cursor in the pre-removal order,
// the cursor is decremented so the active turn holder is unaffected.
//
// Postcondition: Returns whether a removal occurred.
func (q *Queue) RemoveCombatant(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.combatants[id]; !exists {
		return false
	}

	removedIdx := -1
	for i, c := range q.order {
		if c.ID == id {
			removedIdx = i
			break
		}
	}
	delete(q.combatants, id)

	if removedIdx >= 0 && removedIdx < q.turnIndex {
		q.turnIndex--
	}
	q.recomputeOrderLocked()
	if q.turnIndex >= len(q.order) {
		q.turnIndex = 0
	}

	q.logger.Debug("combatant removed", zap.String("id", id))
	return true
}

// StartCombat resets the cursor to round 1, turn 0 and recomputes the order
// from currently-active combatants. An empty combatant set yields an empty
// order and no notification.
//
// Postcondition: Round() == 1 && CurrentTurnIndex() == 0.
func (q *Queue) StartCombat() {
	q.mu.Lock()
	q.round = 1
	q.turnIndex = 0
	q.started = true
	q.recomputeOrderLocked()

	var change *TurnChange
	var subs []subscriber
	if current := q.currentLocked(); current != nil {
		change = &TurnChange{Previous: nil, Current: current, Round: q.round, TurnIndex: q.turnIndex}
		subs = q.snapshotSubsLocked()
	}
	q.mu.Unlock()

	if change != nil {
		for _, s := range subs {
			s.fn(*change)
		}
	}
}

// AdvanceTurn moves the cursor to the next combatant. When the cursor
// overflows the order, a new round starts and the order is recomputed from
// currently-active combatants; inactive combatants drop out silently.
//
// Postcondition: Returns false only when no active combatants remain.
func (q *Queue) AdvanceTurn() bool {
	q.mu.Lock()

	previous := q.currentLocked()
	q.turnIndex++
	if q.turnIndex >= len(q.order) {
		q.round++
		q.turnIndex = 0
		q.recomputeOrderLocked()
	}
	if len(q.order) == 0 {
		q.mu.Unlock()
		return false
	}

	change := TurnChange{
		Previous:  previous,
		Current:   q.order[q.turnIndex],
		Round:     q.round,
		TurnIndex: q.turnIndex,
	}
	subs := q.snapshotSubsLocked()
	q.mu.Unlock()

	for _, s := range subs {
		s.fn(change)
	}
	return true
}

// CurrentCombatant returns the current turn holder, or nil when the order is
// empty.
func (q *Queue) CurrentCombatant() *combatant.Combatant {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.currentLocked()
}

// Round returns the current round number (0 before StartCombat).
func (q *Queue) Round() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.round
}

// CurrentTurnIndex returns the cursor position within the order.
func (q *Queue) CurrentTurnIndex() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.turnIndex
}

// Order returns a snapshot of the current turn order.
func (q *Queue) Order() []*combatant.Combatant {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*combatant.Combatant, len(q.order))
	copy(out, q.order)
	return out
}

// AllCombatants returns every registered combatant sorted by ID, including
// those dropped from the active order.
func (q *Queue) AllCombatants() []*combatant.Combatant {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*combatant.Combatant, 0, len(q.combatants))
	for _, c := range q.combatants {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Combatant returns the registered combatant with the given ID.
func (q *Queue) Combatant(id string) (*combatant.Combatant, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	c, ok := q.combatants[id]
	return c, ok
}

// ShouldEndCombat reports whether one side has been fully eliminated: the
// set of factions with a living active member no longer contains both a
// hostile faction and a player-aligned faction.
func (q *Queue) ShouldEndCombat() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	hostile, aligned := false, false
	for _, c := range q.combatants {
		if !c.Active || c.LifeState == combatant.Dead {
			continue
		}
		if c.Faction.IsHostile() {
			hostile = true
		}
		if c.Faction.IsPlayerAligned() {
			aligned = true
		}
	}
	return !(hostile && aligned)
}

// GetStateHash folds round, turn index, and each combatant's state hash, in
// current order, into a base-31 polynomial hash for cross-run determinism
// comparison.
func (q *Queue) GetStateHash() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	h := uint64(17)
	h = h*31 + uint64(int64(q.round)&0xffffffff)
	h = h*31 + uint64(int64(q.turnIndex)&0xffffffff)
	for _, c := range q.order {
		h = h*31 + c.StateHash()
	}
	return h
}

// ExportOrder snapshots the exact turn order and cursor for replay/resume.
func (q *Queue) ExportOrder() OrderSnapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	ids := make([]string, len(q.order))
	for i, c := range q.order {
		ids[i] = c.ID
	}
	return OrderSnapshot{IDs: ids, Round: q.round, TurnIndex: q.turnIndex}
}

// ImportOrder restores a previously exported order and cursor without
// re-deriving the order from initiative.
//
// Precondition: every ID in snap must be registered.
// Postcondition: Order() matches snap.IDs exactly, or an error is returned
// and the queue is unchanged.
func (q *Queue) ImportOrder(snap OrderSnapshot) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	restored := make([]*combatant.Combatant, len(snap.IDs))
	for i, id := range snap.IDs {
		c, ok := q.combatants[id]
		if !ok {
			return fmt.Errorf("turnqueue: import references unknown combatant %q", id)
		}
		restored[i] = c
	}
	if snap.TurnIndex < 0 || (len(restored) > 0 && snap.TurnIndex >= len(restored)) {
		return fmt.Errorf("turnqueue: import cursor %d out of range for %d combatants", snap.TurnIndex, len(restored))
	}

	q.order = restored
	q.round = snap.Round
	q.turnIndex = snap.TurnIndex
	q.started = true
	return nil
}

// currentLocked returns the current turn holder without locking.
func (q *Queue) currentLocked() *combatant.Combatant {
	if len(q.order) == 0 || q.turnIndex >= len(q.order) {
		return nil
	}
	return q.order[q.turnIndex]
}

// recomputeOrderLocked rebuilds the order from the live set of active
// combatants: initiative descending, tiebreaker descending, then stable ID
// ascending as the final deterministic tiebreak.
func (q *Queue) recomputeOrderLocked() {
	order := make([]*combatant.Combatant, 0, len(q.combatants))
	for _, c := range q.combatants {
		if c.Active {
			order = append(order, c)
		}
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].Initiative != order[j].Initiative {
			return order[i].Initiative > order[j].Initiative
		}
		if order[i].InitiativeTiebreaker != order[j].InitiativeTiebreaker {
			return order[i].InitiativeTiebreaker > order[j].InitiativeTiebreaker
		}
		return order[i].ID < order[j].ID
	})
	q.order = order
}

// restoreCursorLocked points the cursor back at holder after a recompute so
// an insertion ahead of the cursor cannot steal the active turn.
func (q *Queue) restoreCursorLocked(holder *combatant.Combatant) {
	if holder == nil {
		return
	}
	for i, c := range q.order {
		if c.ID == holder.ID {
			q.turnIndex = i
			return
		}
	}
}
