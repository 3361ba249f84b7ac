package combat

import (
	"fmt"

	"github.com/cory-johannsen/pokebattle/internal/game/element"
)

// Result holds the outcome of a single move.
type Result struct {
	Attacker   string
	Defender   string
	Move       string
	BasePower  int
	Multiplier element.Multiplier
	// Damage is BasePower * Multiplier, unrounded.
	Damage float64
	// DefenderHP is the defender's HP after the damage was applied.
	DefenderHP float64
	KnockedOut bool
}

// PerformMove resolves attacker using move against defender and applies the
// damage to defender exactly once.
//
// Precondition: attacker, defender and chart must be non-nil.
// Postcondition: On ErrInvalidMove neither combatant is modified. Otherwise
// defender.HP() has decreased by Damage (clamped at zero).
func PerformMove(chart *element.Chart, attacker *Combatant, move string, defender *Combatant) (Result, error) {
	m, ok := attacker.moves.Lookup(move)
	if !ok {
		return Result{}, fmt.Errorf("%s cannot use %q: %w", attacker.name, move, ErrInvalidMove)
	}

	mult := chart.Effectiveness(attacker.element, defender.element)
	damage := float64(m.Power) * float64(mult)
	defender.ApplyDamage(damage)

	return Result{
		Attacker:   attacker.name,
		Defender:   defender.name,
		Move:       m.Name,
		BasePower:  m.Power,
		Multiplier: mult,
		Damage:     damage,
		DefenderHP: defender.hp,
		KnockedOut: defender.IsKnockedOut(),
	}, nil
}
