package command

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Interzoneism/qdnd-sub003/internal/game/combatlog"
	"github.com/Interzoneism/qdnd-sub003/internal/game/fsm"
	"github.com/Interzoneism/qdnd-sub003/internal/game/movement"
	"github.com/Interzoneism/qdnd-sub003/internal/game/turnqueue"
)

// Gateway validates and executes Commands against the combat core. It is
// not safe for concurrent use; the orchestrator serialises all access.
//
// The end-turn pipeline itself lives in the orchestrator and is injected
// via SetEndTurn so the turn-boundary sequence has exactly one
// implementation.
type Gateway struct {
	queue   *turnqueue.Queue
	machine *fsm.Machine
	log     *combatlog.Log
	mover   *movement.Service
	logger  *zap.Logger

	endTurn    func() bool
	validators map[Kind]Validator
	history    []ExecutedEvent
	observers  []func(ExecutedEvent)
}

// NewGateway creates a Gateway.
//
// Precondition: queue, machine, log, mover, and logger must be non-nil.
// Postcondition: Move validates permissively; the reserved ability/item
// kinds reject until a validator is plugged in.
func NewGateway(queue *turnqueue.Queue, machine *fsm.Machine, log *combatlog.Log, mover *movement.Service, logger *zap.Logger) *Gateway {
	g := &Gateway{
		queue:      queue,
		machine:    machine,
		log:        log,
		mover:      mover,
		logger:     logger,
		validators: make(map[Kind]Validator),
	}
	g.validators[KindEndTurn] = func(Command) (bool, string) { return true, "" }
	g.validators[KindMove] = func(Command) (bool, string) { return true, "" }
	g.validators[KindUseAbility] = func(Command) (bool, string) {
		return false, "ability commands are reserved"
	}
	g.validators[KindUseItem] = func(Command) (bool, string) {
		return false, "item commands are reserved"
	}
	return g
}

// SetEndTurn injects the orchestrator's end-turn pipeline.
func (g *Gateway) SetEndTurn(fn func() bool) {
	g.endTurn = fn
}

// SetValidator replaces the per-kind validation hook for kind.
func (g *Gateway) SetValidator(kind Kind, v Validator) {
	g.validators[kind] = v
}

// OnExecuted registers fn to receive every ExecutedEvent.
func (g *Gateway) OnExecuted(fn func(ExecutedEvent)) {
	g.observers = append(g.observers, fn)
}

// History returns a copy of all executions so far, oldest first.
func (g *Gateway) History() []ExecutedEvent {
	out := make([]ExecutedEvent, len(g.history))
	copy(out, g.history)
	return out
}

// Validate checks cmd without executing it.
//
// Postcondition: Returns false with a human-readable reason when the
// command is malformed, the actor is not the current turn holder, the
// state machine is not in a decision state, or the per-kind hook rejects.
func (g *Gateway) Validate(cmd Command) (bool, string) {
	if cmd.ActorID == "" {
		return false, "command has no actor"
	}
	v, known := g.validators[cmd.Kind]
	if !known {
		return false, fmt.Sprintf("unknown command kind %q", cmd.Kind)
	}
	if g.queue == nil || g.machine == nil {
		return false, "combat is not running"
	}

	current := g.queue.CurrentCombatant()
	if current == nil {
		return false, "no active combatant"
	}
	if current.ID != cmd.ActorID {
		actorName := cmd.ActorID
		if actor, ok := g.queue.Combatant(cmd.ActorID); ok {
			actorName = actor.Name
		}
		return false, fmt.Sprintf("Not %s's turn (current: %s)", actorName, current.Name)
	}
	if !g.machine.InDecisionState() {
		return false, fmt.Sprintf("cannot act during %s", g.machine.CurrentState())
	}
	return v(cmd)
}

// Execute validates cmd and, on success, dispatches to the per-kind
// handler. Invalid commands never mutate turn or state; they are recorded
// as failed executions.
//
// Postcondition: The returned event is appended to history, delivered to
// observers, and reflected in the combat log.
func (g *Gateway) Execute(cmd Command) ExecutedEvent {
	if ok, reason := g.Validate(cmd); !ok {
		g.logger.Debug("command rejected",
			zap.String("kind", string(cmd.Kind)),
			zap.String("actor", cmd.ActorID),
			zap.String("reason", reason),
		)
		return g.record(cmd, false, reason)
	}

	switch cmd.Kind {
	case KindEndTurn:
		return g.executeEndTurn(cmd)
	case KindMove:
		return g.executeMove(cmd)
	default:
		return g.record(cmd, false, fmt.Sprintf("no handler for %q", cmd.Kind))
	}
}

func (g *Gateway) executeEndTurn(cmd Command) ExecutedEvent {
	if g.endTurn == nil {
		return g.record(cmd, false, "no turn flow wired")
	}
	if !g.endTurn() {
		return g.record(cmd, false, "turn could not be ended")
	}
	return g.record(cmd, true, "turn ended")
}

func (g *Gateway) executeMove(cmd Command) ExecutedEvent {
	actor, ok := g.queue.Combatant(cmd.ActorID)
	if !ok {
		return g.record(cmd, false, "actor left combat")
	}
	res := g.mover.Move(actor, cmd.Destination)
	if !res.Moved {
		return g.record(cmd, false, res.Reason)
	}
	return g.record(cmd, true,
		fmt.Sprintf("moved %.1f, %.1f movement remaining", res.Cost, res.Remaining))
}

func (g *Gateway) record(cmd Command, success bool, resultText string) ExecutedEvent {
	ev := ExecutedEvent{Command: cmd, Success: success, ResultText: resultText}
	g.history = append(g.history, ev)

	actor := combatlog.Participant{ID: cmd.ActorID, Name: cmd.ActorID}
	if g.queue != nil {
		if c, ok := g.queue.Combatant(cmd.ActorID); ok {
			actor.Name = c.Name
		}
	}
	if success {
		g.log.ActionResolved(actor, string(cmd.Kind), combatlog.Detail{Message: resultText})
	} else {
		g.log.ActionRejected(actor, string(cmd.Kind), resultText)
	}

	for _, fn := range g.observers {
		fn(ev)
	}
	return ev
}
