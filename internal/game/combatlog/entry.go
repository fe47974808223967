// Package combatlog implements the append-only, deterministic combat event
// ledger. Every component of the combat core writes here; the log stamps each
// entry with the orchestrator's authoritative round/turn context and exposes
// a structural hash used as the determinism oracle for replay verification.
package combatlog

import "time"

// EntryType is the closed enumeration of combat event kinds.
type EntryType string

const (
	TypeCombatStart EntryType = "combat_start"
	TypeCombatEnd   EntryType = "combat_end"
	TypeRoundStart  EntryType = "round_start"
	TypeRoundEnd    EntryType = "round_end"
	TypeTurnStart   EntryType = "turn_start"
	TypeTurnEnd     EntryType = "turn_end"

	TypeActionDeclared EntryType = "action_declared"
	TypeActionResolved EntryType = "action_resolved"
	TypeAttackDeclared EntryType = "attack_declared"
	TypeAttackResolved EntryType = "attack_resolved"
	TypeAbilityUsed    EntryType = "ability_used"

	TypeDamage         EntryType = "damage"
	TypeHealing        EntryType = "healing"
	TypeSavingThrow    EntryType = "saving_throw"
	TypeContestedCheck EntryType = "contested_check"

	TypeStatusApplied EntryType = "status_applied"
	TypeStatusRemoved EntryType = "status_removed"

	TypeReactionTriggered EntryType = "reaction_triggered"
	TypeReactionUsed      EntryType = "reaction_used"
	TypeReactionDeclined  EntryType = "reaction_declined"

	TypeCombatantDowned EntryType = "combatant_downed"
	TypeCombatantDied   EntryType = "combatant_died"
	TypeDeathSave       EntryType = "death_save"

	TypeDebug EntryType = "debug"
)

// Severity orders entries by importance for filtering and display.
type Severity int

const (
	Verbose Severity = iota
	Normal
	Important
	Critical
)

// String returns the severity label.
func (s Severity) String() string {
	switch s {
	case Verbose:
		return "verbose"
	case Normal:
		return "normal"
	case Important:
		return "important"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// Participant identifies a source or target of an event.
type Participant struct {
	ID   string
	Name string
}

// Entry is one immutable record in the combat log.
//
// Invariant: Round and Turn are stamped by the log at insertion from its
// current context; callers cannot supply them.
type Entry struct {
	ID        string
	Type      EntryType
	Severity  Severity
	Timestamp time.Time

	Round int
	Turn  int

	SourceID   string
	SourceName string
	TargetID   string
	TargetName string

	Message string
	// Value is the event's primary numeric payload (damage amount, roll total).
	Value float64
	// Breakdown holds nested computation detail (modifier names to amounts).
	Breakdown map[string]any
	Tags      []string
}

// HasTag reports whether the entry carries the given tag.
func (e Entry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Detail carries optional per-event detail for the typed writers. A non-empty
// Message overrides the writer's default human-readable message.
type Detail struct {
	Message   string
	Value     float64
	Breakdown map[string]any
	Tags      []string
}

func mergeDetail(ds []Detail) Detail {
	if len(ds) == 0 {
		return Detail{}
	}
	return ds[0]
}
