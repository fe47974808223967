package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// CombatantInfo is a snapshot of a combatant's state passed to Lua hooks.
type CombatantInfo struct {
	ID       string
	Name     string
	HP       int
	MaxHP    int
	Statuses []string
}

// Hooks owns a single sandboxed LState used by status-effect scripts and
// exposes hook dispatch. Hooks is safe for concurrent CallHook after all
// LoadScript calls complete; the mutex serialises access to the VM.
type Hooks struct {
	mu     sync.Mutex
	state  *lua.LState
	cancel func()
	logger *zap.Logger

	// Injected after construction. nil = no-op in engine.* functions.
	GetCombatant func(id string) *CombatantInfo
	ApplyDamage  func(id string, amount int) error
	ApplyHealing func(id string, amount int) error
	Note         func(msg string)
}

// NewHooks creates a Hooks manager with a fresh sandboxed VM.
//
// Precondition: logger must be non-nil.
// Postcondition: Returns a non-nil Hooks with engine.* functions registered.
func NewHooks(logger *zap.Logger, opcodeBudget int) *Hooks {
	L := NewSandboxedState(opcodeBudget)
	h := &Hooks{
		state:  L,
		logger: logger,
	}
	h.registerEngine(L)
	return h
}

// LoadScript executes a chunk of Lua source in the VM, typically defining
// hook functions as globals.
//
// Precondition: source must be non-empty.
// Postcondition: Globals defined by the chunk are callable via CallHook.
func (h *Hooks) LoadScript(name, source string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.state.DoString(source); err != nil {
		return fmt.Errorf("scripting: loading %q: %w", name, err)
	}
	return nil
}

// LoadDirectory executes every .lua file in dir, in lexical order, so the
// hook functions they define become callable. Non-Lua files are skipped.
//
// Precondition: dir must be a readable directory.
func (h *Hooks) LoadDirectory(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q: %w", dir, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, path := range luaFiles {
		if err := h.state.DoFile(path); err != nil {
			return fmt.Errorf("scripting: loading %q: %w", path, err)
		}
	}
	return nil
}

// CallHook calls the named Lua global function. Returns (LNil, false) if the
// hook is not defined. Lua runtime errors are logged at Warn level and never
// propagated; a hook that errors behaves as if it returned nil.
//
// Postcondition: Returns the first return value of the hook and whether the
// hook was defined.
func (h *Hooks) CallHook(hook string, args ...lua.LValue) (lua.LValue, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	fn := h.state.GetGlobal(hook)
	if fn == lua.LNil {
		return lua.LNil, false
	}

	if err := h.state.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		h.logger.Warn("scripting: Lua runtime error",
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil, true
	}

	ret := h.state.Get(-1)
	h.state.Pop(1)
	return ret, true
}

// Close releases the underlying VM. The Hooks must not be used afterwards.
func (h *Hooks) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
	}
	h.state.Close()
}
