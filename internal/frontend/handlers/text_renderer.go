package handlers

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/cory-johannsen/pokebattle/internal/frontend/telnet"
	"github.com/cory-johannsen/pokebattle/internal/game/battle"
	"github.com/cory-johannsen/pokebattle/internal/game/combat"
	"github.com/cory-johannsen/pokebattle/internal/game/element"
	"github.com/cory-johannsen/pokebattle/internal/game/species"
	"github.com/cory-johannsen/pokebattle/internal/storage/postgres"
)

// hpBarWidth is the number of cells in a rendered hit point bar.
const hpBarWidth = 20

// ElementColor returns the ANSI color used for an element.
func ElementColor(e element.Element) string {
	switch e {
	case element.Fire:
		return telnet.BrightRed
	case element.Water:
		return telnet.BrightBlue
	case element.Grass:
		return telnet.BrightGreen
	case element.Electric:
		return telnet.BrightYellow
	default:
		return telnet.White
	}
}

// ElementLabel returns the display name of an element, e.g. "Fire".
func ElementLabel(e element.Element) string {
	return cases.Title(language.English).String(e.String())
}

// RenderHPBar draws a fixed-width bar for hp out of maxHP, colored by the
// fraction remaining.
//
// Precondition: maxHP > 0.
// Postcondition: The printable width is always hpBarWidth+2.
func RenderHPBar(hp, maxHP float64) string {
	frac := hp / maxHP
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	filled := int(math.Ceil(frac * hpBarWidth))
	color := telnet.Green
	switch {
	case frac <= 0.25:
		color = telnet.Red
	case frac <= 0.5:
		color = telnet.Yellow
	}
	return "[" + telnet.Colorize(color, strings.Repeat("#", filled)) +
		strings.Repeat(".", hpBarWidth-filled) + "]"
}

// RenderSpeciesList formats the species table.
func RenderSpeciesList(list []*species.Species) string {
	var b strings.Builder
	b.WriteString(telnet.Colorize(telnet.BrightCyan, "=== Species ==="))
	b.WriteString("\r\n")
	for _, s := range list {
		names := make([]string, 0, len(s.Moves))
		for _, m := range s.Moves {
			names = append(names, fmt.Sprintf("%s (%d)", m.Name, m.Power))
		}
		b.WriteString(fmt.Sprintf("  %s %s %3d HP  %s\r\n",
			telnet.PadRight(telnet.Colorize(telnet.Bold, s.Name), 12),
			telnet.PadRight(telnet.Colorize(ElementColor(s.Element), ElementLabel(s.Element)), 9),
			s.HP,
			strings.Join(names, ", ")))
	}
	return b.String()
}

// RenderMoves lists a combatant's moves with their base power.
func RenderMoves(c *combat.Combatant) string {
	var b strings.Builder
	b.WriteString(telnet.Colorf(telnet.BrightCyan, "%s's moves:", c.Name()))
	b.WriteString("\r\n")
	for _, m := range c.Moves().Moves() {
		b.WriteString(fmt.Sprintf("  %s power %d\r\n", telnet.PadRight(m.Name, 16), m.Power))
	}
	return b.String()
}

// RenderCombatant formats one side of the status panel.
func RenderCombatant(label string, c *combat.Combatant) string {
	return fmt.Sprintf("  %s %s %s %s/%s",
		telnet.PadRight(label, 9),
		telnet.PadRight(telnet.Colorize(ElementColor(c.Element()), c.Name()), 12),
		RenderHPBar(c.HP(), c.MaxHP()),
		battle.FormatHP(c.HP()),
		battle.FormatHP(c.MaxHP()),
	)
}

// RenderStatus formats both combatants and whose turn it is.
func RenderStatus(b *battle.Battle) string {
	var sb strings.Builder
	sb.WriteString(telnet.Colorf(telnet.BrightWhite, "=== Round %d ===", b.Round()))
	sb.WriteString("\r\n")
	sb.WriteString(RenderCombatant("You:", b.Player()))
	sb.WriteString("\r\n")
	sb.WriteString(RenderCombatant("Foe:", b.Opponent()))
	sb.WriteString("\r\n")
	if b.IsOver() {
		sb.WriteString(telnet.Colorf(telnet.BrightYellow, "Battle over. %s won.", b.Snapshot().WinnerName))
	} else {
		sb.WriteString(telnet.Colorize(telnet.Cyan, "Your move."))
	}
	sb.WriteString("\r\n")
	return sb.String()
}

// RenderNarration colors one battle log entry by its kind.
func RenderNarration(line string) string {
	switch {
	case strings.HasSuffix(line, "SUPER EFFECTIVE!"):
		return telnet.Colorize(telnet.BrightRed, line)
	case strings.HasSuffix(line, "not very effective."):
		return telnet.Colorize(telnet.Dim, line)
	case strings.Contains(line, " is KO'd, "):
		return telnet.Colorize(telnet.Bold+telnet.BrightYellow, line)
	default:
		return line
	}
}

// RenderOutcome formats the banner shown when a battle ends.
func RenderOutcome(b *battle.Battle) string {
	snap := b.Snapshot()
	if snap.Winner == battle.Player {
		return telnet.Colorf(telnet.BrightGreen, "*** Victory! %s wins in %d rounds. ***", snap.WinnerName, snap.Round)
	}
	return telnet.Colorf(telnet.BrightRed, "*** Defeat. %s wins in %d rounds. ***", snap.WinnerName, snap.Round)
}

// RenderHistory formats recent finished battles.
func RenderHistory(recs []*postgres.BattleRecord) string {
	if len(recs) == 0 {
		return telnet.Colorize(telnet.Dim, "No battles recorded yet.")
	}
	var b strings.Builder
	b.WriteString(telnet.Colorize(telnet.BrightCyan, "=== Recent battles ==="))
	b.WriteString("\r\n")
	for _, r := range recs {
		winner := r.Player
		if r.Winner == postgres.WinnerOpponent {
			winner = r.Opponent
		}
		b.WriteString(fmt.Sprintf("  %s  %s vs %s, %s won in %d rounds\r\n",
			telnet.Colorize(telnet.Dim, r.EndedAt.UTC().Format("2006-01-02 15:04")),
			r.Player, r.Opponent, winner, r.Rounds))
	}
	return b.String()
}

// RenderWinCounts formats the per-species win table.
func RenderWinCounts(counts []postgres.WinCount) string {
	if len(counts) == 0 {
		return telnet.Colorize(telnet.Dim, "No battles recorded yet.")
	}
	var b strings.Builder
	b.WriteString(telnet.Colorize(telnet.BrightCyan, "=== Wins by species ==="))
	b.WriteString("\r\n")
	for _, c := range counts {
		b.WriteString(fmt.Sprintf("  %s %d\r\n", telnet.PadRight(c.Species, 12), c.Wins))
	}
	return b.String()
}

// RenderError formats an error message as red text.
func RenderError(msg string) string {
	return telnet.Colorize(telnet.Red, msg)
}
