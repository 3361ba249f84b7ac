// Package combat implements the combatant model: hit points, move sets, and
// the damage a move deals between two elemental combatants.
package combat

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cory-johannsen/pokebattle/internal/game/element"
)

// ErrInvalidMove is returned when a move is not in the attacker's move set.
var ErrInvalidMove = errors.New("invalid move")

// ErrInvalidCombatant is returned when a combatant cannot be constructed from its parameters.
var ErrInvalidCombatant = errors.New("invalid combatant")

// Move is a named action with a fixed base power.
type Move struct {
	Name  string
	Power int
}

// MoveSet is an ordered collection of moves with unique names.
//
// Invariant: names are unique and non-empty; the set never changes after construction.
type MoveSet struct {
	moves []Move
	index map[string]int
}

// NewMoveSet builds a MoveSet preserving the given order.
//
// Postcondition: Returns a MoveSet with at least one move, or an error wrapping
// ErrInvalidCombatant on an empty set, duplicate, blank name, or negative power.
func NewMoveSet(moves []Move) (MoveSet, error) {
	if len(moves) == 0 {
		return MoveSet{}, fmt.Errorf("%w: move set must not be empty", ErrInvalidCombatant)
	}
	ms := MoveSet{
		moves: make([]Move, 0, len(moves)),
		index: make(map[string]int, len(moves)),
	}
	for _, m := range moves {
		if strings.TrimSpace(m.Name) == "" {
			return MoveSet{}, fmt.Errorf("%w: move name must not be empty", ErrInvalidCombatant)
		}
		if m.Power < 0 {
			return MoveSet{}, fmt.Errorf("%w: move %q power must be >= 0, got %d", ErrInvalidCombatant, m.Name, m.Power)
		}
		if _, dup := ms.index[m.Name]; dup {
			return MoveSet{}, fmt.Errorf("%w: duplicate move %q", ErrInvalidCombatant, m.Name)
		}
		ms.index[m.Name] = len(ms.moves)
		ms.moves = append(ms.moves, m)
	}
	return ms, nil
}

// Lookup returns the move with the given name.
//
// Postcondition: Returns (move, true) on an exact name match, or (Move{}, false).
func (ms MoveSet) Lookup(name string) (Move, bool) {
	i, ok := ms.index[name]
	if !ok {
		return Move{}, false
	}
	return ms.moves[i], true
}

// Resolve matches name case-insensitively against the set, for text input.
//
// Postcondition: Returns the canonical move, or an error wrapping ErrInvalidMove.
func (ms MoveSet) Resolve(name string) (Move, error) {
	if m, ok := ms.Lookup(name); ok {
		return m, nil
	}
	want := strings.TrimSpace(name)
	for _, m := range ms.moves {
		if strings.EqualFold(m.Name, want) {
			return m, nil
		}
	}
	return Move{}, fmt.Errorf("%w: %q", ErrInvalidMove, name)
}

// Moves returns a copy of the moves in declaration order.
func (ms MoveSet) Moves() []Move {
	cp := make([]Move, len(ms.moves))
	copy(cp, ms.moves)
	return cp
}

// Names returns the move names in declaration order.
func (ms MoveSet) Names() []string {
	names := make([]string, len(ms.moves))
	for i, m := range ms.moves {
		names[i] = m.Name
	}
	return names
}

// Len returns the number of moves.
func (ms MoveSet) Len() int { return len(ms.moves) }

// At returns the i-th move in declaration order.
//
// Precondition: 0 <= i < Len().
func (ms MoveSet) At(i int) Move { return ms.moves[i] }

// Combatant is one creature taking part in a battle.
//
// Invariant: 0 <= HP() <= MaxHP() at all times.
type Combatant struct {
	name    string
	element element.Element
	maxHP   float64
	hp      float64
	moves   MoveSet
}

// NewCombatant creates a combatant at full hit points.
//
// Precondition: name non-empty; elem a valid element; hp > 0; at least one move.
// Postcondition: Returns a Combatant with HP() == MaxHP() == hp, or an error
// wrapping element.ErrInvalidElement or ErrInvalidCombatant.
func NewCombatant(name string, elem element.Element, hp int, moves []Move) (*Combatant, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidCombatant)
	}
	if !elem.Valid() {
		return nil, fmt.Errorf("combatant %q: %w: %d", name, element.ErrInvalidElement, int(elem))
	}
	if hp <= 0 {
		return nil, fmt.Errorf("%w: combatant %q hp must be > 0, got %d", ErrInvalidCombatant, name, hp)
	}
	ms, err := NewMoveSet(moves)
	if err != nil {
		return nil, fmt.Errorf("combatant %q: %w", name, err)
	}
	return &Combatant{
		name:    name,
		element: elem,
		maxHP:   float64(hp),
		hp:      float64(hp),
		moves:   ms,
	}, nil
}

// Name returns the combatant's display name.
func (c *Combatant) Name() string { return c.name }

// Element returns the combatant's element.
func (c *Combatant) Element() element.Element { return c.element }

// HP returns the current hit points.
func (c *Combatant) HP() float64 { return c.hp }

// MaxHP returns the hit points the combatant was created with.
func (c *Combatant) MaxHP() float64 { return c.maxHP }

// Moves returns the combatant's move set.
func (c *Combatant) Moves() MoveSet { return c.moves }

// ApplyDamage reduces HP by amount, flooring at zero. Negative amounts are
// treated as zero; damage never heals.
//
// Postcondition: 0 <= HP() <= MaxHP().
func (c *Combatant) ApplyDamage(amount float64) {
	if amount <= 0 {
		return
	}
	c.hp -= amount
	if c.hp < 0 {
		c.hp = 0
	}
}

// IsKnockedOut reports whether HP is exactly zero.
func (c *Combatant) IsKnockedOut() bool { return c.hp == 0 }
