// Package scripting provides a sandboxed GopherLua execution environment
// for status-effect hook scripts. It has no dependency on game domain
// packages; all game interactions are injected via Hooks callback fields.
package scripting

import (
	"context"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// DefaultOpcodeBudget is the maximum number of Lua opcodes allowed per
// hook invocation when no override is configured.
const DefaultOpcodeBudget = 100_000

// budgetContext is a context.Context that cancels itself after Done() has
// been called budget times. GopherLua's main loop calls Done() once per
// opcode, making this an exact opcode-count limit independent of wall time.
type budgetContext struct {
	context.Context
	cancel    context.CancelFunc
	remaining *atomic.Int64
}

func (c *budgetContext) Done() <-chan struct{} {
	if c.remaining.Add(-1) <= 0 {
		c.cancel()
	}
	return c.Context.Done()
}

func newBudgetContext(budget int) (context.Context, context.CancelFunc) {
	base, cancel := context.WithCancel(context.Background())
	rem := &atomic.Int64{}
	rem.Store(int64(budget))
	return &budgetContext{
		Context:   base,
		cancel:    cancel,
		remaining: rem,
	}, cancel
}

// NewSandboxedState creates a GopherLua LState with only the safe standard
// libraries loaded (base, table, string, math), dangerous globals removed
// (dofile, loadfile, load, collectgarbage, require), and execution capped
// at opcodeBudget Lua opcodes.
//
// Precondition: opcodeBudget >= 0; 0 uses DefaultOpcodeBudget.
// Postcondition: Returns a non-nil LState ready for RegisterEngine and
// DoString. The caller owns the LState and must call L.Close() when done.
func NewSandboxedState(opcodeBudget int) *lua.LState {
	budget := opcodeBudget
	if budget <= 0 {
		budget = DefaultOpcodeBudget
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "collectgarbage", "require"} {
		L.SetGlobal(name, lua.LNil)
	}

	// budgetContext.Done() fires on every opcode; the context cancels
	// itself after exactly budget opcodes.
	ctx, _ := newBudgetContext(budget)
	L.SetContext(ctx)

	return L
}
