package fsm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/Interzoneism/qdnd-sub003/internal/game/fsm"
)

func newMachine() *fsm.Machine {
	return fsm.New(zap.NewNop())
}

func TestMachine_StartsInCombatStart(t *testing.T) {
	m := newMachine()
	assert.Equal(t, fsm.CombatStart, m.CurrentState())
}

func TestMachine_FullTurnLoop(t *testing.T) {
	m := newMachine()
	steps := []fsm.State{
		fsm.TurnStart,
		fsm.PlayerDecision,
		fsm.ActionExecution,
		fsm.PlayerDecision,
		fsm.TurnEnd,
		fsm.RoundEnd,
		fsm.TurnStart,
		fsm.AIDecision,
		fsm.TurnEnd,
		fsm.TurnStart,
	}
	for _, s := range steps {
		require.True(t, m.TryTransition(s, "test"), "transition to %s should be legal", s)
	}
}

func TestMachine_IllegalTransition_StateUnchanged(t *testing.T) {
	m := newMachine()
	ok := m.TryTransition(fsm.ActionExecution, "skip decision")
	assert.False(t, ok)
	assert.Equal(t, fsm.CombatStart, m.CurrentState())
}

func TestMachine_CombatEnd_ReachableFromAnywhere(t *testing.T) {
	m := newMachine()
	require.True(t, m.TryTransition(fsm.TurnStart, "begin"))
	require.True(t, m.TryTransition(fsm.AIDecision, "ai"))
	assert.True(t, m.TryTransition(fsm.CombatEnd, "wipe"))
	assert.Equal(t, fsm.CombatEnd, m.CurrentState())
}

func TestMachine_CombatEnd_IsTerminal(t *testing.T) {
	m := newMachine()
	require.True(t, m.TryTransition(fsm.CombatEnd, "end"))
	assert.False(t, m.TryTransition(fsm.TurnStart, "resurrect"))
	assert.False(t, m.TryTransition(fsm.CombatEnd, "end again"))
}

func TestMachine_History_RecordsDenials(t *testing.T) {
	m := newMachine()
	m.TryTransition(fsm.TurnStart, "legal")
	m.TryTransition(fsm.RoundEnd, "illegal")

	h := m.History()
	require.Len(t, h, 2)
	assert.True(t, h[0].Allowed)
	assert.False(t, h[1].Allowed)
	assert.Equal(t, "illegal", h[1].Reason)
}

func TestMachine_OnTransition_ObservesAllAttempts(t *testing.T) {
	m := newMachine()
	var seen []fsm.Attempt
	m.OnTransition(func(a fsm.Attempt) { seen = append(seen, a) })

	m.TryTransition(fsm.TurnStart, "a")
	m.TryTransition(fsm.TurnStart, "b") // denied: TurnStart -> TurnStart

	require.Len(t, seen, 2)
	assert.True(t, seen[0].Allowed)
	assert.False(t, seen[1].Allowed)
}

func TestMachine_InDecisionState(t *testing.T) {
	m := newMachine()
	assert.False(t, m.InDecisionState())
	require.True(t, m.TryTransition(fsm.TurnStart, ""))
	require.True(t, m.TryTransition(fsm.PlayerDecision, ""))
	assert.True(t, m.InDecisionState())
}

func TestMachine_Reset(t *testing.T) {
	m := newMachine()
	require.True(t, m.TryTransition(fsm.CombatEnd, "end"))
	m.Reset()
	assert.Equal(t, fsm.CombatStart, m.CurrentState())
	assert.Empty(t, m.History())
}

// TestProperty_Machine_DeniedAttemptsNeverMutate drives the machine with
// arbitrary transition requests and checks that denied attempts never change
// the state.
func TestProperty_Machine_DeniedAttemptsNeverMutate(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		m := newMachine()
		n := rapid.IntRange(1, 50).Draw(rt, "attempts")
		for i := 0; i < n; i++ {
			before := m.CurrentState()
			target := fsm.State(rapid.IntRange(0, 7).Draw(rt, "target"))
			ok := m.TryTransition(target, "fuzz")
			if ok {
				assert.Equal(rt, target, m.CurrentState())
			} else {
				assert.Equal(rt, before, m.CurrentState())
			}
		}
	})
}
