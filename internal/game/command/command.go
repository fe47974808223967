// Package command is the gateway through which player and AI intents enter
// the combat core. Every command is validated against the turn queue and
// state machine before execution; every execution, successful or not, is
// recorded in history, fired to observers, and logged.
package command

import (
	"github.com/Interzoneism/qdnd-sub003/internal/game/combatant"
)

// Kind tags the command variant.
type Kind string

const (
	KindEndTurn    Kind = "end_turn"
	KindMove       Kind = "move"
	KindUseAbility Kind = "use_ability"
	KindUseItem    Kind = "use_item"
)

// Command is one intent from a player or AI controller. ActorID must match
// the current turn holder for the command to validate. Destination is the
// Move payload; AbilityID and ItemID belong to the reserved variants.
type Command struct {
	Kind        Kind
	ActorID     string
	Destination combatant.Position
	AbilityID   string
	ItemID      string
}

// ExecutedEvent is the recorded outcome of one Execute call.
type ExecutedEvent struct {
	Command    Command
	Success    bool
	ResultText string
}

// Validator is a per-kind validation hook. Returning ok=false fails the
// command with the given reason before any side effects.
type Validator func(cmd Command) (ok bool, reason string)
