package scripting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/pokebattle/internal/game/combat"
	"github.com/cory-johannsen/pokebattle/internal/game/dice"
	"github.com/cory-johannsen/pokebattle/internal/game/element"
)

// SelectHook is the Lua global called to choose the opponent's move.
const SelectHook = "select_move"

var (
	// ErrNoHook is returned when no loaded script defines SelectHook.
	ErrNoHook = errors.New("scripting: select_move is not defined")
	// ErrClosed is returned by SelectMove after Close.
	ErrClosed = errors.New("scripting: selector closed")
)

// Selector chooses opponent moves by calling select_move(self, foe) in a
// sandboxed Lua state.
//
// Selector is safe for concurrent use; calls are serialized on one LState.
type Selector struct {
	mu        sync.Mutex
	L         *lua.LState
	instLimit int
	chart     *element.Chart
	src       dice.Source
	logger    *zap.Logger
}

// NewSelector creates a sandboxed VM, registers the battle.* module, then
// executes every *.lua file in scriptDir in lexicographic order.
//
// Precondition: scriptDir must be a readable directory; src and logger must
// be non-nil. A nil chart uses element.DefaultChart().
// Postcondition: Returns a ready Selector, or an error naming the directory
// or file that failed to load.
func NewSelector(scriptDir string, instLimit int, chart *element.Chart, src dice.Source, logger *zap.Logger) (*Selector, error) {
	if chart == nil {
		chart = element.DefaultChart()
	}
	s := &Selector{
		instLimit: instLimit,
		chart:     chart,
		src:       src,
		logger:    logger,
	}

	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		return nil, fmt.Errorf("scripting: reading script dir %q: %w", scriptDir, err)
	}
	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	L := NewSandboxedState(instLimit)
	s.RegisterModules(L)
	for _, path := range luaFiles {
		cancel := arm(L, instLimit)
		err := L.DoFile(path)
		cancel()
		if err != nil {
			L.Close()
			return nil, fmt.Errorf("scripting: loading %q: %w", path, err)
		}
	}
	s.L = L

	logger.Info("opponent scripts loaded",
		zap.String("dir", scriptDir),
		zap.Int("files", len(luaFiles)),
	)
	return s, nil
}

// SelectMove calls select_move(self, foe) and returns the move name it yields.
//
// Postcondition: Returns the script's move name, or an error if the hook is
// missing, raises, exhausts its instruction budget, or returns a non-string.
// The name is not checked against self's move set.
func (s *Selector) SelectMove(self, foe *combat.Combatant) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.L == nil {
		return "", ErrClosed
	}
	fn := s.L.GetGlobal(SelectHook)
	if fn.Type() != lua.LTFunction {
		return "", ErrNoHook
	}

	cancel := arm(s.L, s.instLimit)
	defer cancel()

	if err := s.L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, combatantToTable(s.L, self), combatantToTable(s.L, foe)); err != nil {
		s.logger.Warn("scripting: Lua runtime error",
			zap.String("hook", SelectHook),
			zap.Error(err),
		)
		return "", fmt.Errorf("scripting: %s: %w", SelectHook, err)
	}

	ret := s.L.Get(-1)
	s.L.Pop(1)
	name, ok := ret.(lua.LString)
	if !ok {
		return "", fmt.Errorf("scripting: %s returned %s, want string", SelectHook, ret.Type())
	}
	return string(name), nil
}

// Close releases the Lua state.
func (s *Selector) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.L != nil {
		s.L.Close()
		s.L = nil
	}
}
