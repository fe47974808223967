package scripting

import lua "github.com/yuin/gopher-lua"

// registerEngine registers the engine.* Lua table into L. Each function is
// backed by a Hooks callback field; an unset callback makes the function a
// no-op that returns nil.
func (h *Hooks) registerEngine(L *lua.LState) {
	engine := L.NewTable()

	L.SetField(engine, "combatant", L.NewFunction(func(ls *lua.LState) int {
		id := ls.CheckString(1)
		if h.GetCombatant == nil {
			ls.Push(lua.LNil)
			return 1
		}
		info := h.GetCombatant(id)
		if info == nil {
			ls.Push(lua.LNil)
			return 1
		}
		t := ls.NewTable()
		ls.SetField(t, "id", lua.LString(info.ID))
		ls.SetField(t, "name", lua.LString(info.Name))
		ls.SetField(t, "hp", lua.LNumber(info.HP))
		ls.SetField(t, "max_hp", lua.LNumber(info.MaxHP))
		statuses := ls.NewTable()
		for i, s := range info.Statuses {
			ls.RawSetInt(statuses, i+1, lua.LString(s))
		}
		ls.SetField(t, "statuses", statuses)
		ls.Push(t)
		return 1
	}))

	L.SetField(engine, "damage", L.NewFunction(func(ls *lua.LState) int {
		id := ls.CheckString(1)
		amount := ls.CheckInt(2)
		if h.ApplyDamage == nil {
			ls.Push(lua.LFalse)
			return 1
		}
		if err := h.ApplyDamage(id, amount); err != nil {
			ls.Push(lua.LFalse)
			return 1
		}
		ls.Push(lua.LTrue)
		return 1
	}))

	L.SetField(engine, "heal", L.NewFunction(func(ls *lua.LState) int {
		id := ls.CheckString(1)
		amount := ls.CheckInt(2)
		if h.ApplyHealing == nil {
			ls.Push(lua.LFalse)
			return 1
		}
		if err := h.ApplyHealing(id, amount); err != nil {
			ls.Push(lua.LFalse)
			return 1
		}
		ls.Push(lua.LTrue)
		return 1
	}))

	L.SetField(engine, "note", L.NewFunction(func(ls *lua.LState) int {
		msg := ls.CheckString(1)
		if h.Note != nil {
			h.Note(msg)
		}
		return 0
	}))

	L.SetGlobal("engine", engine)
}
