package turnorch_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/Interzoneism/qdnd-sub003/internal/config"
	"github.com/Interzoneism/qdnd-sub003/internal/game/combatant"
	"github.com/Interzoneism/qdnd-sub003/internal/game/combatlog"
	"github.com/Interzoneism/qdnd-sub003/internal/game/fsm"
	"github.com/Interzoneism/qdnd-sub003/internal/game/presentation"
	"github.com/Interzoneism/qdnd-sub003/internal/game/resources"
	"github.com/Interzoneism/qdnd-sub003/internal/game/rules"
	"github.com/Interzoneism/qdnd-sub003/internal/game/status"
	"github.com/Interzoneism/qdnd-sub003/internal/game/turnorch"
	"github.com/Interzoneism/qdnd-sub003/internal/game/turnqueue"
)

// scriptedSource returns the scripted values in order, then repeats the
// final fallback. Values are what Intn returns, so a death-save roll of R
// needs the script value R-1.
type scriptedSource struct {
	values []int
	idx    int
}

func (s *scriptedSource) Intn(n int) int {
	if s.idx < len(s.values) {
		v := s.values[s.idx]
		s.idx++
		return v % n
	}
	return 9 // roll of 10: one death-save success
}

type harness struct {
	queue     *turnqueue.Queue
	machine   *fsm.Machine
	log       *combatlog.Log
	scheduler *turnorch.ManualScheduler
	source    *scriptedSource
	env       turnorch.Environment
	orch      *turnorch.Orchestrator

	aria  *combatant.Combatant // player-aligned, acts first
	brute *combatant.Combatant // hostile, acts second
}

type recordingAI struct {
	turns []string
}

func (r *recordingAI) TakeTurn(c *combatant.Combatant) {
	r.turns = append(r.turns, c.ID)
}

func newHarness(t *testing.T, mutate func(*harness)) *harness {
	t.Helper()
	logger := zap.NewNop()
	h := &harness{
		queue:     turnqueue.New(logger),
		machine:   fsm.New(logger),
		log:       combatlog.New(),
		scheduler: turnorch.NewManualScheduler(),
		source:    &scriptedSource{},
	}
	h.aria = &combatant.Combatant{
		ID: "aria", Name: "Aria", Faction: combatant.FactionPlayer,
		ControlledByPlayer: true, Initiative: 20,
		LifeState: combatant.Alive, Active: true,
		HP: 20, MaxHP: 20, BaseSpeed: 30,
	}
	h.brute = &combatant.Combatant{
		ID: "brute", Name: "Brute", Faction: combatant.FactionHostile,
		Initiative: 10, LifeState: combatant.Alive, Active: true,
		HP: 15, MaxHP: 15, BaseSpeed: 25,
	}
	require.NoError(t, h.queue.AddCombatant(h.aria))
	require.NoError(t, h.queue.AddCombatant(h.brute))

	h.env = turnorch.Environment{
		Queue:     h.queue,
		Machine:   h.machine,
		Log:       h.log,
		Source:    h.source,
		Logger:    logger,
		Scheduler: h.scheduler,
		Combat:    config.Default().Combat,
		Statuses:  status.NewManager(status.NewRegistry(), h.log, nil, logger),
		Resources: resources.NewManager(logger),
	}
	if mutate != nil {
		mutate(h)
	}

	orch, err := turnorch.New(h.env)
	require.NoError(t, err)
	h.orch = orch
	return h
}

func entryTypes(log *combatlog.Log) []combatlog.EntryType {
	entries := log.AllEntries()
	out := make([]combatlog.EntryType, len(entries))
	for i, e := range entries {
		out[i] = e.Type
	}
	return out
}

func TestNew_RequiredFields(t *testing.T) {
	_, err := turnorch.New(turnorch.Environment{})
	assert.Error(t, err)

	logger := zap.NewNop()
	_, err = turnorch.New(turnorch.Environment{
		Queue:   turnqueue.New(logger),
		Machine: fsm.New(logger),
		Log:     combatlog.New(),
		Logger:  logger,
	})
	assert.Error(t, err, "missing dice source must be rejected")
}

func TestStartCombat_OpeningSequence(t *testing.T) {
	h := newHarness(t, nil)
	h.orch.StartCombat()

	types := entryTypes(h.log)
	require.GreaterOrEqual(t, len(types), 3)
	assert.Equal(t, combatlog.TypeCombatStart, types[0])
	assert.Equal(t, combatlog.TypeRoundStart, types[1])
	assert.Equal(t, combatlog.TypeTurnStart, types[2])

	assert.Equal(t, fsm.PlayerDecision, h.machine.CurrentState())
	assert.Equal(t, "aria", h.queue.CurrentCombatant().ID)
	assert.Equal(t, 1, h.aria.Budget.Actions)
	assert.Equal(t, 30.0, h.aria.Budget.MovementRemaining)
}

func TestStartCombat_NoOppositionEndsImmediately(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		h.brute.LifeState = combatant.Dead
		h.brute.Active = false
	})
	h.orch.StartCombat()

	assert.True(t, h.orch.Finished())
	assert.Equal(t, fsm.CombatEnd, h.machine.CurrentState())
	entries := h.log.Entries(combatlog.Filter{IncludeTypes: []combatlog.EntryType{combatlog.TypeCombatEnd}})
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Message, turnorch.ResultVictory)
}

func TestBeginTurn_DuplicateTripleIsNoop(t *testing.T) {
	h := newHarness(t, nil)
	h.orch.StartCombat()

	before := h.log.Len()
	h.orch.BeginTurn(h.aria)
	assert.Equal(t, before, h.log.Len(), "duplicate BeginTurn must add no entries")
}

func TestBeginTurn_StaleCombatantIgnored(t *testing.T) {
	h := newHarness(t, nil)
	h.orch.StartCombat()

	before := h.log.Len()
	h.orch.BeginTurn(h.brute)
	assert.Equal(t, before, h.log.Len())
	assert.Equal(t, "aria", h.queue.CurrentCombatant().ID)
}

func TestEndCurrentTurn_AdvancesToAITurn(t *testing.T) {
	h := newHarness(t, nil)
	h.orch.StartCombat()

	require.True(t, h.orch.EndCurrentTurn())

	assert.Equal(t, "brute", h.queue.CurrentCombatant().ID)
	assert.Equal(t, fsm.AIDecision, h.machine.CurrentState())
	assert.Equal(t, 1, h.scheduler.Pending(), "AI end-of-turn must be scheduled")
}

func TestEndCurrentTurn_NoCombatant(t *testing.T) {
	h := newHarness(t, nil)
	assert.False(t, h.orch.EndCurrentTurn())
}

func TestRoundBoundary_LogsAndIncrementsRound(t *testing.T) {
	h := newHarness(t, nil)
	h.orch.StartCombat()

	require.True(t, h.orch.EndCurrentTurn()) // aria -> brute
	h.scheduler.RunAll(10)                   // brute's AI turn ends, wraps to round 2

	assert.Equal(t, 2, h.queue.Round())
	assert.Equal(t, "aria", h.queue.CurrentCombatant().ID)

	types := entryTypes(h.log)
	assert.Contains(t, types, combatlog.TypeRoundEnd)
	roundStarts := h.log.Entries(combatlog.Filter{IncludeTypes: []combatlog.EntryType{combatlog.TypeRoundStart}})
	assert.Len(t, roundStarts, 2)
}

func TestEndCurrentTurn_WaitsForPresentation(t *testing.T) {
	fake := presentation.NewFake(2)
	h := newHarness(t, func(h *harness) {
		h.env.Presentation = fake
	})
	h.orch.StartCombat()

	require.True(t, h.orch.EndCurrentTurn())
	assert.Equal(t, "aria", h.queue.CurrentCombatant().ID, "turn must not end while playing")
	assert.Equal(t, 1, h.scheduler.Pending())

	for h.queue.CurrentCombatant().ID == "aria" {
		require.True(t, h.scheduler.Step())
	}
	assert.Equal(t, "brute", h.queue.CurrentCombatant().ID)
}

func TestEndCurrentTurn_PendingCallIsNoop(t *testing.T) {
	fake := presentation.NewFake(1)
	h := newHarness(t, func(h *harness) {
		h.env.Presentation = fake
	})
	h.orch.StartCombat()

	require.True(t, h.orch.EndCurrentTurn())
	pendingBefore := h.scheduler.Pending()
	require.True(t, h.orch.EndCurrentTurn(), "duplicate call reports pending")
	assert.Equal(t, pendingBefore, h.scheduler.Pending(), "no extra retry scheduled")
}

func TestEndCurrentTurn_RetryCeilingForceCompletes(t *testing.T) {
	fake := presentation.NewFake(1_000_000)
	h := newHarness(t, func(h *harness) {
		h.env.Presentation = fake
	})
	h.orch.StartCombat()

	require.True(t, h.orch.EndCurrentTurn())
	steps := 0
	for h.queue.CurrentCombatant().ID == "aria" {
		require.True(t, h.scheduler.Step())
		steps++
	}

	assert.Equal(t, 40, steps, "exactly the retry ceiling of deferrals")
	assert.Equal(t, 1, fake.ForceCalls())
	assert.Equal(t, 41, fake.PollCalls(), "initial attempt plus the ceiling of retries")
	assert.Equal(t, "brute", h.queue.CurrentCombatant().ID, "turn ended despite stuck presentation")
}

func TestAITurn_RunnerInvokedThenTurnEnds(t *testing.T) {
	ai := &recordingAI{}
	h := newHarness(t, func(h *harness) {
		h.env.AI = ai
	})
	h.orch.StartCombat()
	require.True(t, h.orch.EndCurrentTurn())

	h.scheduler.RunAll(10)

	assert.Equal(t, []string{"brute"}, ai.turns)
	assert.Equal(t, "aria", h.queue.CurrentCombatant().ID, "AI turn ended and wrapped")
}

func TestScheduleAITurnEnd_WaitsOutActionExecution(t *testing.T) {
	h := newHarness(t, nil)
	h.orch.StartCombat()
	require.True(t, h.machine.TryTransition(fsm.ActionExecution, "acting"))

	h.orch.ScheduleAITurnEnd(time.Millisecond)
	require.True(t, h.scheduler.Step(), "first check runs")
	assert.Equal(t, "aria", h.queue.CurrentCombatant().ID, "still acting, turn not ended")
	assert.Equal(t, 1, h.scheduler.Pending(), "check rescheduled")

	require.True(t, h.machine.TryTransition(fsm.PlayerDecision, "done acting"))
	require.True(t, h.scheduler.Step())
	assert.Equal(t, "brute", h.queue.CurrentCombatant().ID)
}

func TestDeathSave_Natural20Revives(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		h.source.values = []int{19} // roll of 20
		h.aria.LifeState = combatant.Downed
		h.aria.HP = 0
		h.aria.Prone = true
		h.aria.DeathSaveFailures = 2
	})
	h.orch.StartCombat()

	assert.Equal(t, combatant.Alive, h.aria.LifeState)
	assert.Equal(t, 1, h.aria.HP)
	assert.False(t, h.aria.Prone)
	assert.Zero(t, h.aria.DeathSaveFailures)
	assert.Equal(t, fsm.PlayerDecision, h.machine.CurrentState(), "revived combatant takes their turn")
}

func TestDeathSave_Natural1AddsTwoFailures(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		h.source.values = []int{0} // roll of 1
		h.aria.LifeState = combatant.Downed
		h.aria.HP = 0
	})
	h.orch.StartCombat()

	assert.Equal(t, 2, h.aria.DeathSaveFailures)
	assert.Equal(t, combatant.Downed, h.aria.LifeState)
	assert.Equal(t, 1, h.scheduler.Pending(), "deferred end-of-turn for the downed combatant")
}

func TestDeathSave_ThreeFailuresKill(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		h.source.values = []int{0} // roll of 1: two failures on top of one
		h.aria.LifeState = combatant.Downed
		h.aria.HP = 0
		h.aria.DeathSaveFailures = 1
	})
	h.orch.StartCombat()

	assert.Equal(t, combatant.Dead, h.aria.LifeState)
	assert.False(t, h.aria.Active)
	died := h.log.Entries(combatlog.Filter{IncludeTypes: []combatlog.EntryType{combatlog.TypeCombatantDied}})
	require.Len(t, died, 1)
	assert.True(t, died[0].HasTag("death_save_critical_failure"))
}

func TestDeathSave_ThreeSuccessesStabilise(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		h.source.values = []int{14} // roll of 15: one success
		h.aria.LifeState = combatant.Downed
		h.aria.HP = 0
		h.aria.DeathSaveSuccesses = 2
	})
	h.orch.StartCombat()

	assert.Equal(t, combatant.Unconscious, h.aria.LifeState)
	assert.True(t, h.env.Statuses.HasStatus("aria", status.StatusUnconscious))
}

func TestDeathSave_MidRollIsOneFailure(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		h.source.values = []int{5} // roll of 6
		h.aria.LifeState = combatant.Downed
		h.aria.HP = 0
	})
	h.orch.StartCombat()

	assert.Equal(t, 1, h.aria.DeathSaveFailures)
	assert.Zero(t, h.aria.DeathSaveSuccesses)
}

func TestProperty_DeathSave_CountersMonotonic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		rolls := rapid.SliceOfN(rapid.IntRange(0, 19), 1, 12).Draw(rt, "rolls")

		logger := zap.NewNop()
		queue := turnqueue.New(logger)
		down := &combatant.Combatant{
			ID: "down", Name: "Down", Faction: combatant.FactionPlayer,
			ControlledByPlayer: true, Initiative: 20,
			LifeState: combatant.Downed, Active: true, MaxHP: 10, BaseSpeed: 30,
		}
		foe := &combatant.Combatant{
			ID: "foe", Name: "Foe", Faction: combatant.FactionHostile,
			Initiative: 10, LifeState: combatant.Alive, Active: true,
			HP: 5, MaxHP: 5, BaseSpeed: 30,
		}
		require.NoError(rt, queue.AddCombatant(down))
		require.NoError(rt, queue.AddCombatant(foe))

		log := combatlog.New()
		orch, err := turnorch.New(turnorch.Environment{
			Queue:     queue,
			Machine:   fsm.New(logger),
			Log:       log,
			Source:    &scriptedSource{values: rolls},
			Logger:    logger,
			Scheduler: turnorch.NewManualScheduler(),
			Combat:    config.Default().Combat,
			Statuses:  status.NewManager(status.NewRegistry(), log, nil, logger),
			Resources: resources.NewManager(logger),
		})
		require.NoError(rt, err)

		for i, v := range rolls {
			if down.LifeState != combatant.Downed {
				break
			}
			roll := v + 1
			prevFailures := down.DeathSaveFailures
			prevSuccesses := down.DeathSaveSuccesses
			orch.ProcessDeathSave(down)

			if roll == 20 {
				assert.Equal(rt, combatant.Alive, down.LifeState, "step %d: natural 20 revives", i)
				assert.Zero(rt, down.DeathSaveFailures, "step %d: revival clears failures", i)
				assert.Zero(rt, down.DeathSaveSuccesses, "step %d: revival clears successes", i)
				continue
			}
			assert.GreaterOrEqual(rt, down.DeathSaveFailures, prevFailures, "step %d: failures non-decreasing", i)
			assert.GreaterOrEqual(rt, down.DeathSaveSuccesses, prevSuccesses, "step %d: successes non-decreasing", i)
			assert.LessOrEqual(rt, down.DeathSaveFailures-prevFailures, 2, "step %d: at most two failures per save", i)
			assert.LessOrEqual(rt, down.DeathSaveSuccesses-prevSuccesses, 1, "step %d: at most one success per save", i)
			if down.DeathSaveFailures >= 3 {
				assert.Equal(rt, combatant.Dead, down.LifeState, "step %d", i)
			} else if down.DeathSaveSuccesses >= 3 {
				assert.Equal(rt, combatant.Unconscious, down.LifeState, "step %d", i)
			}
		}
	})
}

func TestBeginTurn_UnconsciousWakesAtOneHP(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		h.aria.LifeState = combatant.Unconscious
		h.aria.HP = 0
		h.aria.Prone = true
		h.aria.DeathSaveSuccesses = 3
		h.aria.DeathSaveFailures = 2
	})
	h.orch.StartCombat()

	assert.Equal(t, combatant.Alive, h.aria.LifeState)
	assert.Equal(t, 1, h.aria.HP)
	assert.False(t, h.aria.Prone)
	assert.Zero(t, h.aria.DeathSaveSuccesses)
	assert.Zero(t, h.aria.DeathSaveFailures)
	healing := h.log.Entries(combatlog.Filter{IncludeTypes: []combatlog.EntryType{combatlog.TypeHealing}})
	require.Len(t, healing, 1)
	assert.Contains(t, healing[0].Message, "regains consciousness")
}

func TestBeginTurn_ProneAutoStandCostsHalfMovement(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		h.aria.Prone = true
	})
	h.orch.StartCombat()

	assert.False(t, h.aria.Prone)
	assert.Equal(t, 15.0, h.aria.Budget.MovementRemaining)
}

func TestBeginTurn_MovementThroughModifierPipeline(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		eng := rules.NewEngine(zap.NewNop())
		eng.RegisterModifier(rules.TargetMovementSpeed, "haste", func(v float64, _ rules.Context) float64 {
			return v * 2
		})
		h.env.Rules = eng
	})
	h.orch.StartCombat()

	assert.Equal(t, 60.0, h.aria.Budget.MovementRemaining)
}

func TestBeginTurn_StatusSpeedPenaltyClampsAtZero(t *testing.T) {
	var statuses *status.Manager
	h := newHarness(t, func(h *harness) {
		statuses = status.NewManager(status.NewRegistry(), h.log, nil, zap.NewNop())
		statuses.Registry().Register(&status.Def{
			ID: "crushing_load", Name: "Crushing Load",
			DurationType: status.DurationPermanent, SpeedPenalty: 100,
		})
		require.NoError(t, statuses.ApplyStatus(h.aria, "crushing_load", 1, -1))
		h.env.Statuses = statuses
	})
	h.orch.StartCombat()

	// StartCombat clears statuses, so re-apply and force a fresh turn.
	require.NoError(t, statuses.ApplyStatus(h.aria, "crushing_load", 1, -1))
	require.True(t, h.orch.EndCurrentTurn())
	h.scheduler.RunAll(10) // brute's turn, wraps back to aria

	assert.Equal(t, "aria", h.queue.CurrentCombatant().ID)
	assert.Equal(t, 0.0, h.aria.Budget.MovementRemaining)
}

func TestTurnEnd_CombatEndsWhenHostilesEliminated(t *testing.T) {
	h := newHarness(t, nil)
	h.orch.StartCombat()

	h.brute.LifeState = combatant.Dead
	h.brute.Active = false
	require.True(t, h.orch.EndCurrentTurn())

	assert.True(t, h.orch.Finished())
	assert.Equal(t, fsm.CombatEnd, h.machine.CurrentState())
	ended := h.log.Entries(combatlog.Filter{IncludeTypes: []combatlog.EntryType{combatlog.TypeCombatEnd}})
	require.Len(t, ended, 1)
	assert.Contains(t, ended[0].Message, turnorch.ResultVictory)
}

func TestEndCombat_Results(t *testing.T) {
	cases := []struct {
		name       string
		ariaAlive  bool
		bruteAlive bool
		want       string
	}{
		{"hostiles dead", true, false, turnorch.ResultVictory},
		{"players dead", false, true, turnorch.ResultDefeat},
		{"everyone dead", false, false, turnorch.ResultDraw},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.orch.StartCombat()
			if !tc.ariaAlive {
				h.aria.LifeState = combatant.Dead
				h.aria.Active = false
			}
			if !tc.bruteAlive {
				h.brute.LifeState = combatant.Dead
				h.brute.Active = false
			}
			h.orch.EndCombat()

			ended := h.log.Entries(combatlog.Filter{IncludeTypes: []combatlog.EntryType{combatlog.TypeCombatEnd}})
			require.Len(t, ended, 1)
			assert.Contains(t, ended[0].Message, tc.want)
		})
	}
}

func TestBudgetFeed_BindOne(t *testing.T) {
	var binds []string
	unbinds := 0
	h := newHarness(t, func(h *harness) {
		h.env.BudgetFeed = func(c *combatant.Combatant) func() {
			binds = append(binds, c.ID)
			return func() { unbinds++ }
		}
	})
	h.orch.StartCombat()

	assert.Equal(t, []string{"aria"}, binds)
	assert.Zero(t, unbinds)

	require.True(t, h.orch.EndCurrentTurn())
	assert.Equal(t, 1, unbinds, "subscription unbound at turn end")

	h.scheduler.RunAll(10) // brute's AI turn, back to aria
	assert.Equal(t, []string{"aria", "aria"}, binds)
	assert.Equal(t, 2, unbinds)
}

func TestDeterminism_TwoRunsSameHash(t *testing.T) {
	run := func() uint64 {
		h := newHarness(t, func(h *harness) {
			h.source.values = []int{5, 14, 19}
		})
		h.orch.StartCombat()
		for i := 0; i < 6 && !h.orch.Finished(); i++ {
			h.orch.EndCurrentTurn()
			h.scheduler.RunAll(20)
		}
		return h.log.CalculateHash()
	}

	assert.Equal(t, run(), run())
}
