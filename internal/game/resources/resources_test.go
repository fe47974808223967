package resources_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/Interzoneism/qdnd-sub003/internal/game/resources"
)

func newManager(strats ...resources.ReplenishStrategy) *resources.Manager {
	return resources.NewManager(zap.NewNop(), strats...)
}

func TestManager_SpendAndRemaining(t *testing.T) {
	m := newManager()
	m.DefinePool("wizard", "ki", 3, resources.ScopeShortRest)

	require.NoError(t, m.Spend("wizard", "ki", 2))
	assert.Equal(t, 1, m.Remaining("wizard", "ki"))
}

func TestManager_Spend_Insufficient(t *testing.T) {
	m := newManager()
	m.DefinePool("wizard", "ki", 1, resources.ScopeShortRest)

	err := m.Spend("wizard", "ki", 2)
	require.Error(t, err)
	assert.Equal(t, 1, m.Remaining("wizard", "ki"), "failed spend must not mutate")
}

func TestManager_Spend_UnknownPool(t *testing.T) {
	m := newManager()
	assert.Error(t, m.Spend("wizard", "ki", 1))
}

func TestManager_ReplenishTurn_OnlyTurnScoped(t *testing.T) {
	m := newManager()
	m.DefinePool("monk", "focus", 2, resources.ScopeTurn)
	m.DefinePool("monk", "ki", 3, resources.ScopeShortRest)
	require.NoError(t, m.Spend("monk", "focus", 2))
	require.NoError(t, m.Spend("monk", "ki", 3))

	m.ReplenishTurn("monk")

	assert.Equal(t, 2, m.Remaining("monk", "focus"))
	assert.Equal(t, 0, m.Remaining("monk", "ki"), "short-rest pool untouched by turn replenish")
}

func TestManager_ReplenishShortRest_CoversTurnScope(t *testing.T) {
	m := newManager()
	m.DefinePool("monk", "focus", 2, resources.ScopeTurn)
	m.DefinePool("monk", "ki", 3, resources.ScopeShortRest)
	m.DefinePool("monk", "daily", 1, resources.ScopeLongRest)
	require.NoError(t, m.Spend("monk", "focus", 2))
	require.NoError(t, m.Spend("monk", "ki", 3))
	require.NoError(t, m.Spend("monk", "daily", 1))

	m.ReplenishShortRest("monk")

	assert.Equal(t, 2, m.Remaining("monk", "focus"))
	assert.Equal(t, 3, m.Remaining("monk", "ki"))
	assert.Equal(t, 0, m.Remaining("monk", "daily"), "long-rest pool untouched by short rest")
}

func TestManager_ReplenishRest_RestoresEverything(t *testing.T) {
	m := newManager()
	m.DefinePool("monk", "ki", 3, resources.ScopeShortRest)
	m.DefinePool("monk", "daily", 1, resources.ScopeLongRest)
	require.NoError(t, m.Spend("monk", "ki", 1))
	require.NoError(t, m.Spend("monk", "daily", 1))

	m.ReplenishRest("monk")

	assert.Equal(t, 3, m.Remaining("monk", "ki"))
	assert.Equal(t, 1, m.Remaining("monk", "daily"))
}

func TestManager_ReplenishAll(t *testing.T) {
	m := newManager()
	m.DefinePool("a", "ki", 2, resources.ScopeShortRest)
	m.DefinePool("b", "ki", 2, resources.ScopeShortRest)
	require.NoError(t, m.Spend("a", "ki", 2))
	require.NoError(t, m.Spend("b", "ki", 1))

	m.ReplenishAll()

	assert.Equal(t, 2, m.Remaining("a", "ki"))
	assert.Equal(t, 2, m.Remaining("b", "ki"))
}

func TestLeveledSlotStrategy_OnlySlotsOnLongRest(t *testing.T) {
	m := newManager(resources.LeveledSlotStrategy{})
	m.DefinePool("wizard", resources.SlotPoolID(1), 4, resources.ScopeLongRest)
	m.DefinePool("wizard", "ki", 3, resources.ScopeShortRest)
	require.NoError(t, m.Spend("wizard", resources.SlotPoolID(1), 4))
	require.NoError(t, m.Spend("wizard", "ki", 3))

	m.ReplenishShortRest("wizard")
	assert.Equal(t, 0, m.Remaining("wizard", resources.SlotPoolID(1)), "slots untouched by short rest")

	m.ReplenishRest("wizard")
	assert.Equal(t, 4, m.Remaining("wizard", resources.SlotPoolID(1)))
	assert.Equal(t, 0, m.Remaining("wizard", "ki"), "non-slot pool is not this strategy's concern")
}

func TestManager_PoolsFor_SortedCopies(t *testing.T) {
	m := newManager()
	m.DefinePool("monk", "zz", 1, resources.ScopeTurn)
	m.DefinePool("monk", "aa", 2, resources.ScopeTurn)

	pools := m.PoolsFor("monk")
	require.Len(t, pools, 2)
	assert.Equal(t, "aa", pools[0].ID)
	assert.Equal(t, "zz", pools[1].ID)

	pools[0].Current = 0
	assert.Equal(t, 2, m.Remaining("monk", "aa"), "returned pools are copies")
}

// TestProperty_SpendNeverGoesNegative: no spend sequence can drive a pool
// below zero, and a full rest always restores Max.
func TestProperty_SpendNeverGoesNegative(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		max := rapid.IntRange(0, 10).Draw(rt, "max")
		m := newManager()
		m.DefinePool("c", "pool", max, resources.ScopeLongRest)

		spends := rapid.IntRange(1, 20).Draw(rt, "spends")
		for i := 0; i < spends; i++ {
			_ = m.Spend("c", "pool", rapid.IntRange(1, 5).Draw(rt, "amount"))
			rem := m.Remaining("c", "pool")
			assert.GreaterOrEqual(rt, rem, 0)
			assert.LessOrEqual(rt, rem, max)
		}

		m.ReplenishRest("c")
		assert.Equal(rt, max, m.Remaining("c", "pool"))
	})
}
