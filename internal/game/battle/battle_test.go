package battle_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/pokebattle/internal/game/battle"
	"github.com/cory-johannsen/pokebattle/internal/game/combat"
	"github.com/cory-johannsen/pokebattle/internal/game/dice"
	"github.com/cory-johannsen/pokebattle/internal/game/element"
	"github.com/cory-johannsen/pokebattle/internal/game/species"
)

// fixedSelector always names the same move.
type fixedSelector struct {
	move string
	err  error
}

func (f fixedSelector) SelectMove(_, _ *combat.Combatant) (string, error) {
	return f.move, f.err
}

// zeroSource always returns 0, selecting the first move.
type zeroSource struct{}

func (zeroSource) Intn(int) int { return 0 }

func mustCombatant(t testing.TB, name string, elem element.Element, hp int, moves ...combat.Move) *combat.Combatant {
	t.Helper()
	c, err := combat.NewCombatant(name, elem, hp, moves)
	require.NoError(t, err)
	return c
}

func charmanderVsSquirtle(t *testing.T, opts battle.Options) *battle.Battle {
	t.Helper()
	player := mustCombatant(t, "Charmander", element.Fire, 100,
		combat.Move{Name: "Scratch", Power: 25}, combat.Move{Name: "Growl", Power: 15})
	opponent := mustCombatant(t, "Squirtle", element.Water, 100,
		combat.Move{Name: "Tackle", Power: 20}, combat.Move{Name: "Tail Whip", Power: 10})
	b, err := battle.New(player, opponent, opts)
	require.NoError(t, err)
	return b
}

func TestNew_StartsAwaitingPlayerMove(t *testing.T) {
	b := charmanderVsSquirtle(t, battle.Options{Logger: zaptest.NewLogger(t)})
	assert.Equal(t, battle.AwaitingPlayerMove, b.State())
	assert.False(t, b.IsOver())
	assert.Equal(t, battle.NoSide, b.Winner())
	assert.Equal(t, 1, b.Round())
	assert.Empty(t, b.Log())
	assert.NotEmpty(t, b.ID())
}

func TestNew_UsesProvidedID(t *testing.T) {
	b := charmanderVsSquirtle(t, battle.Options{ID: "b-1"})
	assert.Equal(t, "b-1", b.ID())
}

func TestNew_RejectsInvalidCombatants(t *testing.T) {
	c := mustCombatant(t, "Charmander", element.Fire, 100, combat.Move{Name: "Scratch", Power: 25})
	ko := mustCombatant(t, "Squirtle", element.Water, 10, combat.Move{Name: "Tackle", Power: 20})
	ko.ApplyDamage(10)

	tests := []struct {
		name     string
		player   *combat.Combatant
		opponent *combat.Combatant
	}{
		{"nil player", nil, c},
		{"nil opponent", c, nil},
		{"same combatant", c, c},
		{"knocked out opponent", c, ko},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := battle.New(tc.player, tc.opponent, battle.Options{})
			assert.ErrorIs(t, err, battle.ErrInvalidBattle)
		})
	}
}

func TestSubmitPlayerMove_ResistedScratch(t *testing.T) {
	b := charmanderVsSquirtle(t, battle.Options{
		Selector: fixedSelector{move: "Tackle"},
		Logger:   zaptest.NewLogger(t),
	})

	out, err := b.SubmitPlayerMove("Scratch")
	require.NoError(t, err)
	assert.Equal(t, battle.StatusOK, out.Status)
	assert.Equal(t, battle.AwaitingPlayerMove, out.State)
	assert.Equal(t, []string{
		"Charmander using Scratch, dealing damage to Squirtle, Damage: 12.5",
		"Charmander's Scratch is not very effective.",
		"Squirtle using Tackle, dealing damage to Charmander, Damage: 40",
		"Squirtle's Tackle is SUPER EFFECTIVE!",
	}, out.Narration)

	snap := b.Snapshot()
	assert.Equal(t, 87.5, snap.OpponentHP)
	assert.Equal(t, 60.0, snap.PlayerHP)
	assert.Equal(t, 2, snap.Round)
	assert.Equal(t, out.Narration, snap.Log)

	turns := b.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, element.NotVeryEffective, turns[0].Multiplier)
	assert.Equal(t, element.SuperEffective, turns[1].Multiplier)
}

func TestSubmitPlayerMove_FiveNeutralTacklesKnockOut(t *testing.T) {
	player := mustCombatant(t, "Bulbasaur", element.Grass, 100, combat.Move{Name: "Tackle", Power: 20})
	opponent := mustCombatant(t, "Pikachu", element.Electric, 100, combat.Move{Name: "Growl", Power: 15})
	b, err := battle.New(player, opponent, battle.Options{Source: zeroSource{}})
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		out, err := b.SubmitPlayerMove("Tackle")
		require.NoError(t, err)
		require.Equal(t, battle.AwaitingPlayerMove, out.State, "hit %d", i+1)
	}
	assert.Equal(t, 20.0, opponent.HP())

	out, err := b.SubmitPlayerMove("Tackle")
	require.NoError(t, err)
	assert.Equal(t, battle.Over, out.State)
	assert.Equal(t, battle.Player, out.Winner)
	assert.Equal(t, []string{
		"Bulbasaur using Tackle, dealing damage to Pikachu, Damage: 20",
		"Pikachu is KO'd, Bulbasaur WINS",
	}, out.Narration)

	assert.Equal(t, 0.0, opponent.HP())
	// Four replies of resisted Growl: 4 * 7.5.
	assert.Equal(t, 70.0, player.HP())

	snap := b.Snapshot()
	assert.True(t, snap.IsOver)
	assert.Equal(t, "Bulbasaur", snap.WinnerName)
	assert.Equal(t, 5, snap.Round)
}

func TestSubmitPlayerMove_OpponentCanWin(t *testing.T) {
	player := mustCombatant(t, "Charmander", element.Fire, 30, combat.Move{Name: "Growl", Power: 1})
	opponent := mustCombatant(t, "Squirtle", element.Water, 100, combat.Move{Name: "Bubble", Power: 25})
	b, err := battle.New(player, opponent, battle.Options{Source: zeroSource{}})
	require.NoError(t, err)

	out, err := b.SubmitPlayerMove("Growl")
	require.NoError(t, err)
	assert.Equal(t, battle.Over, out.State)
	assert.Equal(t, battle.Opponent, out.Winner)
	assert.Contains(t, out.Narration, "Charmander is KO'd, Squirtle WINS")
	assert.Equal(t, "Squirtle", b.Snapshot().WinnerName)
}

func TestSubmitPlayerMove_AfterOverIsNoOp(t *testing.T) {
	player := mustCombatant(t, "Charmander", element.Fire, 100, combat.Move{Name: "Ember", Power: 200})
	opponent := mustCombatant(t, "Bulbasaur", element.Grass, 100, combat.Move{Name: "Tackle", Power: 20})
	b, err := battle.New(player, opponent, battle.Options{})
	require.NoError(t, err)

	_, err = b.SubmitPlayerMove("Ember")
	require.NoError(t, err)
	require.True(t, b.IsOver())
	before := b.Snapshot()

	out, err := b.SubmitPlayerMove("Ember")
	require.NoError(t, err)
	assert.Equal(t, battle.StatusBattleOver, out.Status)
	assert.Equal(t, battle.Over, out.State)
	assert.Empty(t, out.Narration)
	assert.Equal(t, before, b.Snapshot())
}

func TestSubmitPlayerMove_InvalidMoveChangesNothing(t *testing.T) {
	b := charmanderVsSquirtle(t, battle.Options{})

	out, err := b.SubmitPlayerMove("Hyper Beam")
	assert.ErrorIs(t, err, combat.ErrInvalidMove)
	assert.Equal(t, battle.AwaitingPlayerMove, out.State)
	assert.Empty(t, out.Narration)

	snap := b.Snapshot()
	assert.Equal(t, 100.0, snap.PlayerHP)
	assert.Equal(t, 100.0, snap.OpponentHP)
	assert.Empty(t, snap.Log)
	assert.Equal(t, 1, snap.Round)
}

func TestSubmitPlayerMove_MoveNamesAreExact(t *testing.T) {
	b := charmanderVsSquirtle(t, battle.Options{})
	_, err := b.SubmitPlayerMove("scratch")
	assert.ErrorIs(t, err, combat.ErrInvalidMove)
}

func TestSubmitPlayerMove_SelectorFallback(t *testing.T) {
	tests := []struct {
		name     string
		selector battle.MoveSelector
	}{
		{"selector error", fixedSelector{err: errors.New("script crashed")}},
		{"unknown move", fixedSelector{move: "Hydro Pump"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			core, logs := observer.New(zap.WarnLevel)
			b := charmanderVsSquirtle(t, battle.Options{
				Selector: tc.selector,
				Source:   zeroSource{},
				Logger:   zap.New(core),
			})

			out, err := b.SubmitPlayerMove("Growl")
			require.NoError(t, err)
			// zeroSource picks the first opponent move.
			assert.Contains(t, out.Narration, "Squirtle using Tackle, dealing damage to Charmander, Damage: 40")
			assert.Equal(t, 1, logs.FilterMessage("opponent move selection failed, choosing at random").Len())
		})
	}
}

func TestSnapshot_LogIsCopy(t *testing.T) {
	b := charmanderVsSquirtle(t, battle.Options{Selector: fixedSelector{move: "Tail Whip"}})
	_, err := b.SubmitPlayerMove("Scratch")
	require.NoError(t, err)

	snap := b.Snapshot()
	snap.Log[0] = "tampered"
	assert.NotEqual(t, "tampered", b.Log()[0])
}

func TestSnapshot_Timestamps(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	calls := 0
	now := func() time.Time {
		calls++
		return start.Add(time.Duration(calls-1) * time.Minute)
	}
	player := mustCombatant(t, "Charmander", element.Fire, 100, combat.Move{Name: "Ember", Power: 200})
	opponent := mustCombatant(t, "Bulbasaur", element.Grass, 100, combat.Move{Name: "Tackle", Power: 20})
	b, err := battle.New(player, opponent, battle.Options{Now: now})
	require.NoError(t, err)

	assert.True(t, b.Snapshot().EndedAt.IsZero())
	_, err = b.SubmitPlayerMove("Ember")
	require.NoError(t, err)

	snap := b.Snapshot()
	assert.Equal(t, start, snap.StartedAt)
	assert.Equal(t, start.Add(time.Minute), snap.EndedAt)
}

func TestRandomSelector_AlwaysPicksOwnMove(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		seed := rapid.Uint64().Draw(rt, "seed")
		self, err := combat.NewCombatant("Squirtle", element.Water, 100, []combat.Move{
			{Name: "Tackle", Power: 20}, {Name: "Tail Whip", Power: 10}, {Name: "Bubble", Power: 25},
		})
		require.NoError(rt, err)

		sel := battle.NewRandomSelector(dice.NewSeededSource(seed))
		name, err := sel.SelectMove(self, nil)
		require.NoError(rt, err)
		_, ok := self.Moves().Lookup(name)
		assert.True(rt, ok)
	})
}

func TestFormatHP(t *testing.T) {
	assert.Equal(t, "12.5", battle.FormatHP(12.5))
	assert.Equal(t, "20", battle.FormatHP(20))
	assert.Equal(t, "0", battle.FormatHP(0))
	assert.Equal(t, "87.5", battle.FormatHP(87.5))
}

// TestProperty_RandomBattles plays seeded battles between embedded species and
// checks hit points stay in range, the battle ends, and nothing changes afterwards.
func TestProperty_RandomBattles(t *testing.T) {
	list, err := species.Embedded()
	require.NoError(t, err)
	reg, err := species.NewRegistry(list)
	require.NoError(t, err)
	all := reg.All()

	rapid.Check(t, func(rt *rapid.T) {
		p := all[rapid.IntRange(0, len(all)-1).Draw(rt, "player")]
		o := all[rapid.IntRange(0, len(all)-1).Draw(rt, "opponent")]
		seed := rapid.Uint64().Draw(rt, "seed")

		player, err := p.NewCombatant()
		require.NoError(rt, err)
		opponent, err := o.NewCombatant()
		require.NoError(rt, err)

		src := dice.NewSeededSource(seed)
		b, err := battle.New(player, opponent, battle.Options{Source: src})
		require.NoError(rt, err)

		pick := battle.NewRandomSelector(src)
		for i := 0; i < 1000 && !b.IsOver(); i++ {
			move, _ := pick.SelectMove(player, opponent)
			_, err := b.SubmitPlayerMove(move)
			require.NoError(rt, err)

			for _, c := range []*combat.Combatant{player, opponent} {
				if c.HP() < 0 || c.HP() > c.MaxHP() {
					rt.Fatalf("%s hp %v out of range [0, %v]", c.Name(), c.HP(), c.MaxHP())
				}
			}
		}
		require.True(rt, b.IsOver())
		assert.True(rt, player.IsKnockedOut() != opponent.IsKnockedOut())

		before := b.Snapshot()
		out, err := b.SubmitPlayerMove(player.Moves().At(0).Name)
		require.NoError(rt, err)
		assert.Equal(rt, battle.StatusBattleOver, out.Status)
		assert.Equal(rt, before, b.Snapshot())
	})
}
