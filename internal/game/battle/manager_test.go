package battle_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/pokebattle/internal/game/battle"
	"github.com/cory-johannsen/pokebattle/internal/game/combat"
	"github.com/cory-johannsen/pokebattle/internal/game/element"
)

func pair(t *testing.T) (*combat.Combatant, *combat.Combatant) {
	t.Helper()
	return mustCombatant(t, "Charmander", element.Fire, 100, combat.Move{Name: "Scratch", Power: 25}),
		mustCombatant(t, "Squirtle", element.Water, 100, combat.Move{Name: "Tackle", Power: 20})
}

func TestManager_StartGetEnd(t *testing.T) {
	m := battle.NewManager()
	p, o := pair(t)

	b, err := m.Start(p, o, battle.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, m.Count())

	got, ok := m.Get(b.ID())
	require.True(t, ok)
	assert.Same(t, b, got)

	m.End(b.ID())
	_, ok = m.Get(b.ID())
	assert.False(t, ok)
	assert.Equal(t, 0, m.Count())

	m.End("missing")
}

func TestManager_DuplicateID(t *testing.T) {
	m := battle.NewManager()
	p, o := pair(t)
	_, err := m.Start(p, o, battle.Options{ID: "same"})
	require.NoError(t, err)

	p2, o2 := pair(t)
	_, err = m.Start(p2, o2, battle.Options{ID: "same"})
	assert.Error(t, err)
	assert.Equal(t, 1, m.Count())
}

func TestManager_StartPropagatesNewError(t *testing.T) {
	m := battle.NewManager()
	_, err := m.Start(nil, nil, battle.Options{})
	assert.ErrorIs(t, err, battle.ErrInvalidBattle)
	assert.Equal(t, 0, m.Count())
}

func TestManager_Concurrent(t *testing.T) {
	m := battle.NewManager()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, o := pair(t)
			b, err := m.Start(p, o, battle.Options{ID: fmt.Sprintf("b-%d", i)})
			if assert.NoError(t, err) {
				_, ok := m.Get(b.ID())
				assert.True(t, ok)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 32, m.Count())
}
