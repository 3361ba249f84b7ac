package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/pokebattle/internal/game/combat"
	"github.com/cory-johannsen/pokebattle/internal/game/element"
)

// RegisterModules registers the battle.* Lua table into L:
//
//	battle.log.debug(msg), battle.log.info(msg), battle.log.warn(msg)
//	battle.random(n)                  -- integer in [1, n]
//	battle.effectiveness(atk, def)    -- multiplier for two element names
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: battle global is defined in L.
func (s *Selector) RegisterModules(L *lua.LState) {
	mod := L.NewTable()

	logTbl := L.NewTable()
	for name, fn := range map[string]func(string, ...zap.Field){
		"debug": s.logger.Debug,
		"info":  s.logger.Info,
		"warn":  s.logger.Warn,
	} {
		logFn := fn
		L.SetField(logTbl, name, L.NewFunction(func(L *lua.LState) int {
			logFn(L.CheckString(1), zap.String("source", "lua"))
			return 0
		}))
	}
	L.SetField(mod, "log", logTbl)

	L.SetField(mod, "random", L.NewFunction(func(L *lua.LState) int {
		n := L.CheckInt(1)
		if n <= 0 {
			L.ArgError(1, "n must be positive")
			return 0
		}
		L.Push(lua.LNumber(s.src.Intn(n) + 1))
		return 1
	}))

	L.SetField(mod, "effectiveness", L.NewFunction(func(L *lua.LState) int {
		atk, err := element.Parse(L.CheckString(1))
		if err != nil {
			L.ArgError(1, err.Error())
			return 0
		}
		def, err := element.Parse(L.CheckString(2))
		if err != nil {
			L.ArgError(2, err.Error())
			return 0
		}
		L.Push(lua.LNumber(s.chart.Effectiveness(atk, def)))
		return 1
	}))

	L.SetGlobal("battle", mod)
}

// combatantToTable converts c into the table passed to select_move:
// {name, element, hp, max_hp, moves = {{name, power}, ...}}.
func combatantToTable(L *lua.LState, c *combat.Combatant) *lua.LTable {
	t := L.NewTable()
	L.SetField(t, "name", lua.LString(c.Name()))
	L.SetField(t, "element", lua.LString(c.Element().String()))
	L.SetField(t, "hp", lua.LNumber(c.HP()))
	L.SetField(t, "max_hp", lua.LNumber(c.MaxHP()))

	moves := L.NewTable()
	for _, m := range c.Moves().Moves() {
		mt := L.NewTable()
		L.SetField(mt, "name", lua.LString(m.Name))
		L.SetField(mt, "power", lua.LNumber(m.Power))
		moves.Append(mt)
	}
	L.SetField(t, "moves", moves)
	return t
}
