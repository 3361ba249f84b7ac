package handlers

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/pokebattle/internal/frontend/telnet"
	"github.com/cory-johannsen/pokebattle/internal/game/battle"
	"github.com/cory-johannsen/pokebattle/internal/game/combat"
	"github.com/cory-johannsen/pokebattle/internal/game/element"
	"github.com/cory-johannsen/pokebattle/internal/game/species"
	"github.com/cory-johannsen/pokebattle/internal/storage/postgres"
)

func TestRenderHPBar(t *testing.T) {
	assert.Equal(t, "["+strings.Repeat("#", 20)+"]", telnet.StripANSI(RenderHPBar(100, 100)))
	assert.Equal(t, "["+strings.Repeat(".", 20)+"]", telnet.StripANSI(RenderHPBar(0, 100)))
	assert.Equal(t, "["+strings.Repeat("#", 18)+"..]", telnet.StripANSI(RenderHPBar(87.5, 100)))
	assert.Contains(t, RenderHPBar(20, 100), telnet.Red)
	assert.Contains(t, RenderHPBar(40, 100), telnet.Yellow)
	assert.Contains(t, RenderHPBar(60, 100), telnet.Green)
}

// Property: the HP bar always has the same printable width.
func TestPropertyRenderHPBarWidth(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		maxHP := rapid.Float64Range(1, 1000).Draw(t, "max_hp")
		hp := rapid.Float64Range(0, maxHP).Draw(t, "hp")
		assert.Len(t, telnet.StripANSI(RenderHPBar(hp, maxHP)), hpBarWidth+2)
	})
}

func TestElementLabel(t *testing.T) {
	assert.Equal(t, "Fire", ElementLabel(element.Fire))
	assert.Equal(t, "Electric", ElementLabel(element.Electric))
}

func TestRenderSpeciesList(t *testing.T) {
	list, err := species.Embedded()
	require.NoError(t, err)
	out := telnet.StripANSI(RenderSpeciesList(list))
	assert.Contains(t, out, "Charmander")
	assert.Contains(t, out, "Fire")
	assert.Contains(t, out, "Tail Whip (10)")
	assert.Contains(t, out, "100 HP")
}

func newTestBattle(t *testing.T) *battle.Battle {
	t.Helper()
	p, err := combat.NewCombatant("Charmander", element.Fire, 100, []combat.Move{{Name: "Scratch", Power: 25}})
	require.NoError(t, err)
	o, err := combat.NewCombatant("Squirtle", element.Water, 100, []combat.Move{{Name: "Tackle", Power: 20}})
	require.NoError(t, err)
	b, err := battle.New(p, o, battle.Options{})
	require.NoError(t, err)
	return b
}

func TestRenderStatus(t *testing.T) {
	b := newTestBattle(t)
	_, err := b.SubmitPlayerMove("Scratch")
	require.NoError(t, err)

	out := telnet.StripANSI(RenderStatus(b))
	assert.Contains(t, out, "Round 2")
	assert.Contains(t, out, "Charmander")
	assert.Contains(t, out, "60/100")
	assert.Contains(t, out, "87.5/100")
	assert.Contains(t, out, "Your move.")
}

func TestRenderMoves(t *testing.T) {
	b := newTestBattle(t)
	out := telnet.StripANSI(RenderMoves(b.Player()))
	assert.Contains(t, out, "Charmander's moves:")
	assert.Contains(t, out, "Scratch")
	assert.Contains(t, out, "power 25")
}

func TestRenderNarration(t *testing.T) {
	assert.Contains(t, RenderNarration("Squirtle's Tackle is SUPER EFFECTIVE!"), telnet.BrightRed)
	assert.Contains(t, RenderNarration("Charmander's Scratch is not very effective."), telnet.Dim)
	assert.Contains(t, RenderNarration("Squirtle is KO'd, Charmander WINS"), telnet.BrightYellow)
	plain := "Charmander using Scratch, dealing damage to Squirtle, Damage: 12.5"
	assert.Equal(t, plain, RenderNarration(plain))
}

func TestRenderHistory(t *testing.T) {
	assert.Contains(t, telnet.StripANSI(RenderHistory(nil)), "No battles recorded yet.")

	out := telnet.StripANSI(RenderHistory([]*postgres.BattleRecord{{
		Player: "Charmander", Opponent: "Squirtle", Winner: postgres.WinnerOpponent,
		Rounds: 3, EndedAt: time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC),
	}}))
	assert.Contains(t, out, "2026-04-01 09:30")
	assert.Contains(t, out, "Charmander vs Squirtle, Squirtle won in 3 rounds")
}

func TestRenderWinCounts(t *testing.T) {
	assert.Contains(t, telnet.StripANSI(RenderWinCounts(nil)), "No battles recorded yet.")
	out := telnet.StripANSI(RenderWinCounts([]postgres.WinCount{{Species: "squirtle", Wins: 4}}))
	assert.Contains(t, out, "squirtle")
	assert.Contains(t, out, "4")
}

func TestElementColor(t *testing.T) {
	for _, e := range element.All() {
		assert.NotEqual(t, telnet.White, ElementColor(e), e.String())
	}
	assert.Equal(t, telnet.White, ElementColor(element.Unknown))
}
