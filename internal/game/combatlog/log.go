package combatlog

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Log is the append-only combat event ledger.
// All methods are safe for concurrent use.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	round   int
	turn    int
	clock   func() time.Time
}

// New creates an empty Log stamping entries with the wall clock.
func New() *Log {
	return NewWithClock(time.Now)
}

// NewWithClock creates an empty Log with an injectable clock, so tests and
// replay runs can use a deterministic timestamp source.
//
// Precondition: clock must be non-nil.
func NewWithClock(clock func() time.Time) *Log {
	return &Log{clock: clock}
}

// SetContext records the orchestrator's authoritative round/turn cursor.
// Every subsequently appended entry is stamped with this context regardless
// of what the caller passes.
//
// Precondition: round >= 0 && turn >= 0.
func (l *Log) SetContext(round, turn int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.round = round
	l.turn = turn
}

// Context returns the current (round, turn) stamp.
func (l *Log) Context() (round, turn int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.round, l.turn
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Clear resets entries and context to empty/zero. This is the only destructor
// for log state, invoked at new-combat boot.
//
// Postcondition: Len() == 0; Context() == (0, 0).
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
	l.round = 0
	l.turn = 0
}

// append stamps and stores one entry. The entry is immutable once stored.
func (l *Log) append(typ EntryType, sev Severity, src, tgt Participant, defaultMsg string, d Detail) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := defaultMsg
	if d.Message != "" {
		msg = d.Message
	}

	var breakdown map[string]any
	if len(d.Breakdown) > 0 {
		breakdown = make(map[string]any, len(d.Breakdown))
		for k, v := range d.Breakdown {
			breakdown[k] = v
		}
	}
	var tags []string
	if len(d.Tags) > 0 {
		tags = append(tags, d.Tags...)
	}

	l.entries = append(l.entries, Entry{
		ID:         uuid.NewString(),
		Type:       typ,
		Severity:   sev,
		Timestamp:  l.clock(),
		Round:      l.round,
		Turn:       l.turn,
		SourceID:   src.ID,
		SourceName: src.Name,
		TargetID:   tgt.ID,
		TargetName: tgt.Name,
		Message:    msg,
		Value:      d.Value,
		Breakdown:  breakdown,
		Tags:       tags,
	})
}

// CalculateHash folds each entry's type, message, round, and turn into a
// base-31 polynomial hash in insertion order. Two runs with the same seed and
// inputs must produce identical hashes; divergence indicates upstream
// non-determinism.
func (l *Log) CalculateHash() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	h := uint64(17)
	for _, e := range l.entries {
		for _, r := range string(e.Type) {
			h = h*31 + uint64(r)
		}
		for _, r := range e.Message {
			h = h*31 + uint64(r)
		}
		h = h*31 + uint64(int64(e.Round)&0xffffffff)
		h = h*31 + uint64(int64(e.Turn)&0xffffffff)
	}
	return h
}

// Typed writers. Each builds a structured entry with a category-specific
// default message; an explicit Detail.Message always overrides the default.

// CombatStarted records the start of a new combat.
func (l *Log) CombatStarted(d ...Detail) {
	l.append(TypeCombatStart, Critical, Participant{}, Participant{}, "Combat started", mergeDetail(d))
}

// CombatEnded records the end of combat with its result text.
func (l *Log) CombatEnded(result string, d ...Detail) {
	l.append(TypeCombatEnd, Critical, Participant{}, Participant{}, result, mergeDetail(d))
}

// RoundStarted records the start of the given round.
func (l *Log) RoundStarted(round int, d ...Detail) {
	l.append(TypeRoundStart, Important, Participant{}, Participant{}, fmt.Sprintf("Round %d begins", round), mergeDetail(d))
}

// RoundEnded records the end of the given round.
func (l *Log) RoundEnded(round int, d ...Detail) {
	l.append(TypeRoundEnd, Important, Participant{}, Participant{}, fmt.Sprintf("Round %d ends", round), mergeDetail(d))
}

// TurnStarted records the start of p's turn.
func (l *Log) TurnStarted(p Participant, d ...Detail) {
	l.append(TypeTurnStart, Normal, p, Participant{}, fmt.Sprintf("%s's turn begins", p.Name), mergeDetail(d))
}

// TurnEnded records the end of p's turn.
func (l *Log) TurnEnded(p Participant, d ...Detail) {
	l.append(TypeTurnEnd, Normal, p, Participant{}, fmt.Sprintf("%s's turn ends", p.Name), mergeDetail(d))
}

// ActionDeclared records that src declared the named action.
func (l *Log) ActionDeclared(src Participant, action string, d ...Detail) {
	l.append(TypeActionDeclared, Normal, src, Participant{}, fmt.Sprintf("%s declares %s", src.Name, action), mergeDetail(d))
}

// ActionResolved records the resolution of src's named action.
func (l *Log) ActionResolved(src Participant, action string, d ...Detail) {
	l.append(TypeActionResolved, Normal, src, Participant{}, fmt.Sprintf("%s resolves %s", src.Name, action), mergeDetail(d))
}

// ActionRejected records a failed command validation by src. Rejections are
// written at verbose severity so severity-filtered views exclude them.
func (l *Log) ActionRejected(src Participant, action, reason string, d ...Detail) {
	det := mergeDetail(d)
	det.Tags = append(det.Tags, "validation_failure")
	l.append(TypeActionResolved, Verbose, src, Participant{},
		fmt.Sprintf("%s failed: %s", action, reason), det)
}

// AttackDeclared records that src declared an attack on tgt.
func (l *Log) AttackDeclared(src, tgt Participant, d ...Detail) {
	l.append(TypeAttackDeclared, Normal, src, tgt, fmt.Sprintf("%s attacks %s", src.Name, tgt.Name), mergeDetail(d))
}

// AttackResolved records the outcome of src's attack on tgt.
func (l *Log) AttackResolved(src, tgt Participant, d ...Detail) {
	l.append(TypeAttackResolved, Normal, src, tgt, fmt.Sprintf("%s's attack on %s resolves", src.Name, tgt.Name), mergeDetail(d))
}

// AbilityUsed records that src used the named ability.
func (l *Log) AbilityUsed(src Participant, ability string, d ...Detail) {
	l.append(TypeAbilityUsed, Normal, src, Participant{}, fmt.Sprintf("%s uses %s", src.Name, ability), mergeDetail(d))
}

// Damage records damage dealt by src to tgt.
func (l *Log) Damage(src, tgt Participant, amount float64, d ...Detail) {
	det := mergeDetail(d)
	det.Value = amount
	l.append(TypeDamage, Important, src, tgt, fmt.Sprintf("%s takes %g damage", tgt.Name, amount), det)
}

// Healing records healing applied by src to tgt.
func (l *Log) Healing(src, tgt Participant, amount float64, d ...Detail) {
	det := mergeDetail(d)
	det.Value = amount
	l.append(TypeHealing, Important, src, tgt, fmt.Sprintf("%s recovers %g hit points", tgt.Name, amount), det)
}

// SavingThrow records a saving throw by src.
func (l *Log) SavingThrow(src Participant, kind string, total float64, d ...Detail) {
	det := mergeDetail(d)
	det.Value = total
	l.append(TypeSavingThrow, Normal, src, Participant{}, fmt.Sprintf("%s rolls a %s save: %g", src.Name, kind, total), det)
}

// ContestedCheck records a contested check between src and tgt.
func (l *Log) ContestedCheck(src, tgt Participant, d ...Detail) {
	l.append(TypeContestedCheck, Normal, src, tgt, fmt.Sprintf("%s contests %s", src.Name, tgt.Name), mergeDetail(d))
}

// StatusApplied records that tgt gained the named status.
func (l *Log) StatusApplied(tgt Participant, statusID string, d ...Detail) {
	l.append(TypeStatusApplied, Normal, Participant{}, tgt, fmt.Sprintf("%s gains %s", tgt.Name, statusID), mergeDetail(d))
}

// StatusRemoved records that tgt lost the named status.
func (l *Log) StatusRemoved(tgt Participant, statusID string, d ...Detail) {
	l.append(TypeStatusRemoved, Normal, Participant{}, tgt, fmt.Sprintf("%s loses %s", tgt.Name, statusID), mergeDetail(d))
}

// ReactionTriggered records that p's reaction became available to use.
func (l *Log) ReactionTriggered(p Participant, reaction string, d ...Detail) {
	l.append(TypeReactionTriggered, Normal, p, Participant{}, fmt.Sprintf("%s's %s triggers", p.Name, reaction), mergeDetail(d))
}

// ReactionUsed records that p spent their reaction.
func (l *Log) ReactionUsed(p Participant, reaction string, d ...Detail) {
	l.append(TypeReactionUsed, Normal, p, Participant{}, fmt.Sprintf("%s uses %s", p.Name, reaction), mergeDetail(d))
}

// ReactionDeclined records that p declined an available reaction.
func (l *Log) ReactionDeclined(p Participant, reaction string, d ...Detail) {
	l.append(TypeReactionDeclined, Verbose, p, Participant{}, fmt.Sprintf("%s declines %s", p.Name, reaction), mergeDetail(d))
}

// CombatantDowned records that p dropped to 0 HP.
func (l *Log) CombatantDowned(p Participant, d ...Detail) {
	l.append(TypeCombatantDowned, Critical, Participant{}, p, fmt.Sprintf("%s falls", p.Name), mergeDetail(d))
}

// CombatantDied records that p died, with a cause tag.
func (l *Log) CombatantDied(p Participant, cause string, d ...Detail) {
	det := mergeDetail(d)
	det.Tags = append(det.Tags, cause)
	l.append(TypeCombatantDied, Critical, Participant{}, p, fmt.Sprintf("%s dies", p.Name), det)
}

// DeathSave records a death saving throw by p.
func (l *Log) DeathSave(p Participant, roll int, success bool, d ...Detail) {
	det := mergeDetail(d)
	det.Value = float64(roll)
	outcome := "fails"
	if success {
		outcome = "succeeds"
	}
	l.append(TypeDeathSave, Important, p, Participant{},
		fmt.Sprintf("%s %s a death save (%d)", p.Name, outcome, roll), det)
}

// Debug records a free-form diagnostic entry at verbose severity.
func (l *Log) Debug(msg string, d ...Detail) {
	det := mergeDetail(d)
	det.Message = msg
	l.append(TypeDebug, Verbose, Participant{}, Participant{}, msg, det)
}
