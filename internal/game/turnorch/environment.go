package turnorch

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Interzoneism/qdnd-sub003/internal/config"
	"github.com/Interzoneism/qdnd-sub003/internal/display"
	"github.com/Interzoneism/qdnd-sub003/internal/game/combatant"
	"github.com/Interzoneism/qdnd-sub003/internal/game/combatlog"
	"github.com/Interzoneism/qdnd-sub003/internal/game/dice"
	"github.com/Interzoneism/qdnd-sub003/internal/game/fsm"
	"github.com/Interzoneism/qdnd-sub003/internal/game/movement"
	"github.com/Interzoneism/qdnd-sub003/internal/game/presentation"
	"github.com/Interzoneism/qdnd-sub003/internal/game/resources"
	"github.com/Interzoneism/qdnd-sub003/internal/game/rules"
	"github.com/Interzoneism/qdnd-sub003/internal/game/status"
	"github.com/Interzoneism/qdnd-sub003/internal/game/turnqueue"
)

// AIRunner takes an AI-controlled combatant's turn, typically by issuing
// commands through the gateway. The orchestrator schedules the end of the
// turn separately; TakeTurn should not end it.
type AIRunner interface {
	TakeTurn(c *combatant.Combatant)
}

type nullAIRunner struct{}

func (nullAIRunner) TakeTurn(*combatant.Combatant) {}

// Environment bundles every collaborator the orchestrator touches. Queue,
// Machine, Log, Source, and Logger are required; absent optional
// collaborators are replaced with no-op implementations at construction,
// so the orchestrator body carries no nil checks.
type Environment struct {
	Queue   *turnqueue.Queue
	Machine *fsm.Machine
	Log     *combatlog.Log
	Source  dice.Source
	Logger  *zap.Logger
	Combat  config.CombatConfig

	Presentation presentation.Service
	Rules        *rules.Engine
	Statuses     *status.Manager
	Resources    *resources.Manager
	Movement     *movement.Service
	Display      *display.Models
	AI           AIRunner
	Scheduler    Scheduler

	// BudgetFeed starts a budget-tracking subscription when a
	// player-controlled combatant's turn begins and returns its unbind.
	// The orchestrator keeps at most one subscription bound at a time.
	// nil = no tracking.
	BudgetFeed func(c *combatant.Combatant) (unbind func())
}

// validate checks the required fields and fills the optional ones.
func (e *Environment) validate() error {
	switch {
	case e.Queue == nil:
		return fmt.Errorf("turnorch: Environment.Queue is required")
	case e.Machine == nil:
		return fmt.Errorf("turnorch: Environment.Machine is required")
	case e.Log == nil:
		return fmt.Errorf("turnorch: Environment.Log is required")
	case e.Source == nil:
		return fmt.Errorf("turnorch: Environment.Source is required")
	case e.Logger == nil:
		return fmt.Errorf("turnorch: Environment.Logger is required")
	}

	if e.Presentation == nil {
		e.Presentation = presentation.Null{}
	}
	if e.Rules == nil {
		e.Rules = rules.NewEngine(e.Logger)
	}
	if e.Statuses == nil {
		e.Statuses = status.NewManager(status.NewRegistry(), e.Log, nil, e.Logger)
	}
	if e.Resources == nil {
		e.Resources = resources.NewManager(e.Logger)
	}
	if e.Movement == nil {
		e.Movement = movement.NewService(e.Logger)
	}
	if e.Display == nil {
		e.Display = &display.Models{}
	}
	if e.AI == nil {
		e.AI = nullAIRunner{}
	}
	if e.Scheduler == nil {
		e.Scheduler = NewTimerScheduler()
	}
	return nil
}
