// Package turnorch drives the combat session: it begins and ends turns,
// resolves death saves, replenishes budgets and resources, and polls the
// presentation layer before finalizing turn boundaries.
package turnorch

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Interzoneism/qdnd-sub003/internal/config"
	"github.com/Interzoneism/qdnd-sub003/internal/game/combatant"
	"github.com/Interzoneism/qdnd-sub003/internal/game/combatlog"
	"github.com/Interzoneism/qdnd-sub003/internal/game/dice"
	"github.com/Interzoneism/qdnd-sub003/internal/game/fsm"
	"github.com/Interzoneism/qdnd-sub003/internal/game/rules"
	"github.com/Interzoneism/qdnd-sub003/internal/game/status"
)

// Combat results as logged at combat end.
const (
	ResultVictory = "Victory!"
	ResultDefeat  = "Defeat!"
	ResultDraw    = "Draw"
)

// deathSaveFailureCause tags death events caused by accumulated failed
// death saves.
const deathSaveFailureCause = "death_save_critical_failure"

type beginKey struct {
	combatantID string
	round       int
	turnIndex   int
}

// waitPhase tracks the end-turn deferral: Idle when no end-turn is in
// flight, waiting while presentation polls reschedule it, finalizing while
// the boundary pipeline runs.
type waitPhase int

const (
	waitIdle waitPhase = iota
	waitPresentation
	waitFinalizing
)

// Orchestrator is the single driver of the combat session. All public
// methods serialise on one mutex; scheduler callbacks re-enter through the
// public surface. Nothing else mutates the queue, machine, or log.
type Orchestrator struct {
	mu     sync.Mutex
	env    Environment
	cfg    config.CombatConfig
	roller *dice.Roller

	hasBegun    bool
	lastBegun   beginKey
	wait        waitPhase
	waitRetries int
	aiRetries   int

	budgetUnbind func()
	finished     bool
}

// New validates env, fills optional collaborators with no-op defaults, and
// returns an Orchestrator. Zero-valued combat tuning falls back to the
// built-in defaults.
func New(env Environment) (*Orchestrator, error) {
	if err := env.validate(); err != nil {
		return nil, err
	}
	cfg := env.Combat
	defaults := config.Default().Combat
	if cfg.ActionsPerTurn < 1 {
		cfg.ActionsPerTurn = defaults.ActionsPerTurn
	}
	if cfg.BonusActionsPerTurn < 0 {
		cfg.BonusActionsPerTurn = defaults.BonusActionsPerTurn
	}
	if cfg.PresentationPollInterval <= 0 {
		cfg.PresentationPollInterval = defaults.PresentationPollInterval
	}
	if cfg.PresentationRetryCeiling < 1 {
		cfg.PresentationRetryCeiling = defaults.PresentationRetryCeiling
	}
	if cfg.AITurnEndDelay < 0 {
		cfg.AITurnEndDelay = defaults.AITurnEndDelay
	}
	if cfg.ProneStandCostFactor < 0 || cfg.ProneStandCostFactor > 1 {
		cfg.ProneStandCostFactor = defaults.ProneStandCostFactor
	}
	return &Orchestrator{
		env:    env,
		cfg:    cfg,
		roller: dice.NewLoggedRoller(env.Source, env.Logger),
	}, nil
}

// Finished reports whether combat has reached its terminal state.
func (o *Orchestrator) Finished() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.finished
}

// StartCombat resets session state, replenishes every combatant, drives
// the machine through its opening transitions, and begins the first turn.
//
// Postcondition: The combat log starts with combat-start and round-start
// entries; the current combatant's turn has begun, or combat ended
// immediately if no two opposing factions are present.
func (o *Orchestrator) StartCombat() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.env.Log.Clear()
	o.env.Statuses.ClearAll()
	o.env.Machine.Reset()
	o.hasBegun = false
	o.wait = waitIdle
	o.waitRetries = 0
	o.aiRetries = 0
	o.finished = false

	o.env.Resources.ReplenishAll()
	o.env.Queue.StartCombat()
	o.env.Log.SetContext(o.env.Queue.Round(), o.env.Queue.CurrentTurnIndex())
	o.env.Log.CombatStarted()
	o.env.Log.RoundStarted(o.env.Queue.Round())

	o.env.Machine.TryTransition(fsm.TurnStart, "combat start")

	cur := o.env.Queue.CurrentCombatant()
	if cur == nil || o.env.Queue.ShouldEndCombat() {
		o.endCombatLocked()
		return
	}
	o.beginTurnLocked(cur)
}

// BeginTurn starts c's turn if c holds the queue cursor and this exact
// (combatant, round, turnIndex) triple has not already begun. Duplicate or
// stale invocations are no-ops.
func (o *Orchestrator) BeginTurn(c *combatant.Combatant) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.beginTurnLocked(c)
}

func (o *Orchestrator) beginTurnLocked(c *combatant.Combatant) {
	cur := o.env.Queue.CurrentCombatant()
	if c == nil || cur == nil || cur.ID != c.ID {
		o.env.Logger.Debug("stale BeginTurn ignored",
			zap.String("requested", idOf(c)),
			zap.String("current", idOf(cur)),
		)
		return
	}
	key := beginKey{
		combatantID: c.ID,
		round:       o.env.Queue.Round(),
		turnIndex:   o.env.Queue.CurrentTurnIndex(),
	}
	if o.hasBegun && key == o.lastBegun {
		o.env.Logger.Debug("duplicate BeginTurn ignored", zap.String("combatant", c.ID))
		return
	}
	o.hasBegun = true
	o.lastBegun = key

	o.env.Log.SetContext(key.round, key.turnIndex)
	o.env.Log.TurnStarted(participant(c))

	if c.LifeState == combatant.Downed {
		o.processDeathSaveLocked(c)
		if c.LifeState == combatant.Dead || c.IsDown() {
			o.deferEndTurn()
			return
		}
	}
	if c.LifeState == combatant.Unconscious {
		o.wakeLocked(c)
	}

	movementBudget := o.movementBudgetLocked(c, key.round)
	c.ResetBudgetForTurn(o.cfg.ActionsPerTurn, o.cfg.BonusActionsPerTurn, movementBudget)
	o.env.Resources.ReplenishTurn(c.ID)

	if c.Prone {
		standCost := movementBudget * o.cfg.ProneStandCostFactor
		c.SpendMovement(standCost)
		o.env.Statuses.RemoveStatus(c, status.StatusProne)
		c.Prone = false
	}

	o.env.Rules.Dispatch(rules.WindowTurnStart, rules.Context{ActorID: c.ID, Round: key.round})

	o.env.Display.TurnOrder.Update(key.round, o.env.Queue.Order(), c.ID)
	o.env.Display.ActionBar.Update(c)
	o.env.Display.ResourceBar.Update(c.ID, o.env.Resources.PoolsFor(c.ID))

	target := fsm.AIDecision
	if c.ControlledByPlayer {
		target = fsm.PlayerDecision
	}
	o.env.Machine.TryTransition(target, fmt.Sprintf("%s's turn", c.Name))

	o.env.Statuses.ProcessTurnStart(c)

	if o.env.Statuses.IsIncapacitated(c.ID) {
		o.deferEndTurn()
		return
	}

	if c.ControlledByPlayer {
		o.bindBudgetLocked(c)
		return
	}
	o.env.Scheduler.After(o.cfg.AITurnEndDelay, func() {
		o.env.AI.TakeTurn(c)
		o.aiTurnEndCheck()
	})
}

// wakeLocked restores a stable unconscious combatant at the start of their
// turn: 1 HP, conscious, no longer prone.
func (o *Orchestrator) wakeLocked(c *combatant.Combatant) {
	c.HP = 1
	c.LifeState = combatant.Alive
	c.ResetDeathSaves()
	o.env.Statuses.RemoveStatus(c, status.StatusUnconscious)
	o.env.Statuses.RemoveStatus(c, status.StatusProne)
	c.Prone = false
	o.env.Log.Healing(participant(c), participant(c), 1,
		combatlog.Detail{Message: fmt.Sprintf("%s regains consciousness at 1 HP", c.Name)})
}

// movementBudgetLocked derives the turn's movement allowance: base speed
// through the modifier pipeline, minus status penalties, zeroed while
// incapacitated, clamped at zero.
func (o *Orchestrator) movementBudgetLocked(c *combatant.Combatant, round int) float64 {
	v := o.env.Rules.Apply(c.BaseSpeed, rules.TargetMovementSpeed, rules.Context{ActorID: c.ID, Round: round})
	v -= float64(o.env.Statuses.SpeedPenalty(c.ID))
	if o.env.Statuses.IsIncapacitated(c.ID) {
		v = 0
	}
	if v < 0 {
		v = 0
	}
	return v
}

// ProcessDeathSave rolls one death save for c and applies the outcome.
// This is the only writer of the death-save counters.
//
// Outcome: natural 20 revives at 1 HP and clears prone and both counters;
// natural 1 adds two failures; 10 or higher adds a success; anything else
// adds a failure. Three failures kill; three successes stabilise into
// Unconscious.
func (o *Orchestrator) ProcessDeathSave(c *combatant.Combatant) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.processDeathSaveLocked(c)
}

func (o *Orchestrator) processDeathSaveLocked(c *combatant.Combatant) {
	ctx := rules.Context{ActorID: c.ID, Round: o.env.Queue.Round()}
	o.env.Rules.Dispatch(rules.WindowBeforeDeathSave, ctx)

	roll := o.roller.D20()
	switch {
	case roll == 20:
		c.HP = 1
		c.LifeState = combatant.Alive
		c.ResetDeathSaves()
		o.env.Statuses.RemoveStatus(c, status.StatusProne)
		c.Prone = false
		o.env.Log.DeathSave(participant(c), roll, true,
			combatlog.Detail{Message: fmt.Sprintf("%s rolls a natural 20 and springs back up at 1 HP", c.Name)})
	case roll == 1:
		c.DeathSaveFailures += 2
		o.env.Log.DeathSave(participant(c), roll, false,
			combatlog.Detail{Message: fmt.Sprintf("%s rolls a natural 1: two death save failures", c.Name)})
	case roll >= 10:
		c.DeathSaveSuccesses++
		o.env.Log.DeathSave(participant(c), roll, true)
	default:
		c.DeathSaveFailures++
		o.env.Log.DeathSave(participant(c), roll, false)
	}

	if c.DeathSaveFailures >= 3 {
		c.LifeState = combatant.Dead
		c.Active = false
		o.env.Log.CombatantDied(participant(c), deathSaveFailureCause)
	} else if c.DeathSaveSuccesses >= 3 {
		c.LifeState = combatant.Unconscious
		if err := o.env.Statuses.ApplyStatus(c, status.StatusUnconscious, 1, -1); err != nil {
			o.env.Logger.Warn("applying unconscious status", zap.Error(err))
		}
	}

	o.env.Rules.Dispatch(rules.WindowAfterDeathSave, ctx)
}

// EndCurrentTurn finalizes the current turn boundary. It is a no-op when
// no combatant holds the cursor or when an end-turn is already pending.
// While any presentation timeline is still playing it reschedules itself
// at the configured poll interval; exceeding the retry ceiling
// force-completes all playback and proceeds, so the turn always ends.
//
// Postcondition: Returns false only when there is no turn to end.
func (o *Orchestrator) EndCurrentTurn() bool {
	o.mu.Lock()
	cur := o.env.Queue.CurrentCombatant()
	if cur == nil || o.finished {
		o.mu.Unlock()
		return false
	}
	if o.wait != waitIdle {
		// Already pending; the scheduled retry will finish the job.
		o.mu.Unlock()
		return true
	}

	if o.presentationBusyLocked(cur.ID) {
		if o.waitRetries >= o.cfg.PresentationRetryCeiling {
			o.env.Logger.Warn("presentation still playing past retry ceiling, force-completing",
				zap.Int("retries", o.waitRetries),
			)
			o.env.Presentation.ForceCompleteAllPlaying()
		} else {
			o.wait = waitPresentation
			o.waitRetries++
			o.mu.Unlock()
			o.env.Scheduler.After(o.cfg.PresentationPollInterval, o.endTurnRetry)
			return true
		}
	}

	o.wait = waitFinalizing
	o.waitRetries = 0
	o.finalizeTurnLocked(cur)
	o.wait = waitIdle
	o.mu.Unlock()
	return true
}

// endTurnRetry is the scheduler callback for a deferred end-turn; it
// reopens the wait state and retries.
func (o *Orchestrator) endTurnRetry() {
	o.mu.Lock()
	if o.wait == waitPresentation {
		o.wait = waitIdle
	}
	o.mu.Unlock()
	o.EndCurrentTurn()
}

func (o *Orchestrator) presentationBusyLocked(combatantID string) bool {
	return o.env.Presentation.HasAnyPlaying() ||
		o.env.Presentation.IsMovementTweening(combatantID)
}

// deferEndTurn schedules an end-of-turn for a combatant who cannot act.
func (o *Orchestrator) deferEndTurn() {
	o.env.Scheduler.After(o.cfg.AITurnEndDelay, func() {
		o.EndCurrentTurn()
	})
}

// finalizeTurnLocked runs the fixed turn-boundary sequence: turn-end rule
// window, status ticks, machine transition, end-condition check, queue
// advance, round-boundary processing, next-turn begin.
func (o *Orchestrator) finalizeTurnLocked(cur *combatant.Combatant) {
	round := o.env.Queue.Round()
	o.env.Rules.Dispatch(rules.WindowTurnEnd, rules.Context{ActorID: cur.ID, Round: round})
	o.env.Statuses.ProcessTurnEnd(cur)

	if !o.env.Machine.TryTransition(fsm.TurnEnd, "turn end") {
		o.env.Logger.Warn("illegal turn-end transition, aborting boundary",
			zap.String("state", o.env.Machine.CurrentState().String()),
		)
		return
	}
	o.env.Log.TurnEnded(participant(cur))
	o.unbindBudgetLocked()

	if o.env.Queue.ShouldEndCombat() {
		o.endCombatLocked()
		return
	}
	if !o.env.Queue.AdvanceTurn() {
		o.endCombatLocked()
		return
	}

	newRound := o.env.Queue.Round()
	newIndex := o.env.Queue.CurrentTurnIndex()
	o.env.Log.SetContext(newRound, newIndex)

	if newIndex == 0 {
		o.env.Machine.TryTransition(fsm.RoundEnd, "round boundary")
		o.env.Log.RoundEnded(newRound - 1)
		o.env.Statuses.ProcessRoundEnd(newRound - 1)
		o.env.Log.RoundStarted(newRound)
	}
	o.env.Machine.TryTransition(fsm.TurnStart, "next turn")

	next := o.env.Queue.CurrentCombatant()
	if next == nil {
		o.endCombatLocked()
		return
	}
	o.beginTurnLocked(next)
}

// ScheduleAITurnEnd defers an end-of-turn that first waits out the
// action-execution phase and any in-flight presentation, bounded by the
// same retry ceiling and force-complete fallback as EndCurrentTurn.
func (o *Orchestrator) ScheduleAITurnEnd(delay time.Duration) {
	o.env.Scheduler.After(delay, o.aiTurnEndCheck)
}

func (o *Orchestrator) aiTurnEndCheck() {
	o.mu.Lock()
	cur := o.env.Queue.CurrentCombatant()
	if cur == nil || o.finished {
		o.mu.Unlock()
		return
	}
	busy := o.env.Machine.CurrentState() == fsm.ActionExecution || o.presentationBusyLocked(cur.ID)
	if busy {
		if o.aiRetries >= o.cfg.PresentationRetryCeiling {
			o.env.Logger.Warn("AI turn still busy past retry ceiling, force-completing",
				zap.Int("retries", o.aiRetries),
			)
			o.env.Presentation.ForceCompleteAllPlaying()
		} else {
			o.aiRetries++
			o.mu.Unlock()
			o.env.Scheduler.After(o.cfg.PresentationPollInterval, o.aiTurnEndCheck)
			return
		}
	}
	o.aiRetries = 0
	o.mu.Unlock()
	o.EndCurrentTurn()
}

// EndCombat tears the session down: unbinds the budget subscription,
// transitions to the terminal state, flushes round-end processing, and
// logs the result derived from the surviving factions.
func (o *Orchestrator) EndCombat() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.endCombatLocked()
}

func (o *Orchestrator) endCombatLocked() {
	if o.finished {
		return
	}
	o.finished = true
	o.unbindBudgetLocked()
	o.env.Machine.TryTransition(fsm.CombatEnd, "combat over")
	o.env.Statuses.ProcessRoundEnd(o.env.Queue.Round())

	result := o.resultLocked()
	o.env.Log.CombatEnded(result)
	o.env.Logger.Info("combat ended", zap.String("result", result))
}

// resultLocked derives the combat result purely from which factions still
// have an active living member.
func (o *Orchestrator) resultLocked() string {
	hostile, aligned := false, false
	for _, c := range o.env.Queue.AllCombatants() {
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
	switch {
	case aligned && !hostile:
		return ResultVictory
	case hostile && !aligned:
		return ResultDefeat
	default:
		return ResultDraw
	}
}

// bindBudgetLocked starts the tracked-budget subscription for a
// player-controlled turn. Exactly one subscription exists at a time;
// binding a new one always unbinds the previous one first.
func (o *Orchestrator) bindBudgetLocked(c *combatant.Combatant) {
	o.unbindBudgetLocked()
	if o.env.BudgetFeed == nil {
		return
	}
	o.budgetUnbind = o.env.BudgetFeed(c)
}

func (o *Orchestrator) unbindBudgetLocked() {
	if o.budgetUnbind != nil {
		o.budgetUnbind()
		o.budgetUnbind = nil
	}
}

func participant(c *combatant.Combatant) combatlog.Participant {
	return combatlog.Participant{ID: c.ID, Name: c.Name}
}

func idOf(c *combatant.Combatant) string {
	if c == nil {
		return "<none>"
	}
	return c.ID
}
