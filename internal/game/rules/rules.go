// Package rules implements the rule-window and modifier pipeline the
// orchestrator dispatches into. Game content (feats, passives, auras)
// registers handlers and modifiers; the core never knows what they do.
package rules

import (
	"go.uber.org/zap"
)

// Window identifies a rule dispatch point in the turn lifecycle.
type Window int

const (
	WindowTurnStart Window = iota
	WindowTurnEnd
	WindowBeforeDeathSave
	WindowAfterDeathSave
)

func (w Window) String() string {
	switch w {
	case WindowTurnStart:
		return "turn_start"
	case WindowTurnEnd:
		return "turn_end"
	case WindowBeforeDeathSave:
		return "before_death_save"
	case WindowAfterDeathSave:
		return "after_death_save"
	default:
		return "unknown"
	}
}

// TargetKind identifies which derived stat a modifier adjusts.
type TargetKind string

const (
	TargetMovementSpeed TargetKind = "movement_speed"
	TargetAttackRoll    TargetKind = "attack_roll"
	TargetDamage        TargetKind = "damage"
)

// Context carries the actors a dispatch or modifier application concerns.
// Handlers receive it by value and return nothing; all cross-handler
// accumulation happens through Apply's fold, never through shared state.
type Context struct {
	ActorID string
	OtherID string
	Round   int
}

// Handler observes a rule window.
type Handler func(w Window, ctx Context)

// Modifier adjusts a derived value and returns the new value.
type Modifier func(base float64, ctx Context) float64

type handlerReg struct {
	name string
	fn   Handler
}

type modifierReg struct {
	name string
	fn   Modifier
}

// Engine is the rule registry and dispatcher. It is not safe for
// concurrent use; registration happens at setup and dispatch is driven
// by the single-threaded orchestrator.
type Engine struct {
	handlers  map[Window][]handlerReg
	modifiers map[TargetKind][]modifierReg
	logger    *zap.Logger
}

// NewEngine creates an empty Engine.
// Precondition: logger must be non-nil.
func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{
		handlers:  make(map[Window][]handlerReg),
		modifiers: make(map[TargetKind][]modifierReg),
		logger:    logger,
	}
}

// RegisterHandler registers fn to run when w is dispatched. Handlers run
// in registration order.
func (e *Engine) RegisterHandler(w Window, name string, fn Handler) {
	e.handlers[w] = append(e.handlers[w], handlerReg{name: name, fn: fn})
}

// RegisterModifier registers fn in the modifier pipeline for target.
// Modifiers fold in registration order.
func (e *Engine) RegisterModifier(target TargetKind, name string, fn Modifier) {
	e.modifiers[target] = append(e.modifiers[target], modifierReg{name: name, fn: fn})
}

// Dispatch runs every handler registered for w. A panicking handler is
// logged at Warn level and skipped; it never aborts the dispatch or the
// combat step that triggered it.
func (e *Engine) Dispatch(w Window, ctx Context) {
	for _, reg := range e.handlers[w] {
		e.dispatchOne(w, ctx, reg)
	}
}

func (e *Engine) dispatchOne(w Window, ctx Context, reg handlerReg) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("rule handler panicked",
				zap.String("window", w.String()),
				zap.String("handler", reg.name),
				zap.Any("panic", r),
			)
		}
	}()
	reg.fn(w, ctx)
}

// Apply folds base through every modifier registered for target, in
// registration order, and returns the result. A panicking modifier is
// logged and skipped; the accumulator keeps its pre-panic value.
func (e *Engine) Apply(base float64, target TargetKind, ctx Context) float64 {
	value := base
	for _, reg := range e.modifiers[target] {
		value = e.applyOne(value, ctx, target, reg)
	}
	return value
}

func (e *Engine) applyOne(value float64, ctx Context, target TargetKind, reg modifierReg) (out float64) {
	out = value
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("rule modifier panicked",
				zap.String("target", string(target)),
				zap.String("modifier", reg.name),
				zap.Any("panic", r),
			)
			out = value
		}
	}()
	return reg.fn(value, ctx)
}
