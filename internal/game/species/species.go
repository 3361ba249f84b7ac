// Package species holds the species data table: each species' element, base
// hit points and move set, loaded from YAML and validated at load time.
package species

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/pokebattle/internal/game/combat"
	"github.com/cory-johannsen/pokebattle/internal/game/element"
)

//go:embed data/*.yaml
var embedded embed.FS

// ErrUnknownSpecies is returned when a lookup key matches no species.
var ErrUnknownSpecies = errors.New("unknown species")

// MoveDef is one entry of a species' move list.
type MoveDef struct {
	Name  string `yaml:"name"`
	Power int    `yaml:"power"`
}

// Species is a creature archetype loaded from YAML.
type Species struct {
	ID      string          `yaml:"id"`
	Name    string          `yaml:"name"`
	Element element.Element `yaml:"element"`
	HP      int             `yaml:"hp"`
	Moves   []MoveDef       `yaml:"moves"`
}

// Validate checks that the species satisfies basic invariants.
//
// Precondition: s must not be nil.
// Postcondition: Returns nil iff ID and Name are non-empty, Element is valid,
// HP >= 1, and Moves form a valid move set; otherwise returns the first violation.
func (s *Species) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("species: id must not be empty")
	}
	if s.ID != strings.ToLower(s.ID) {
		return fmt.Errorf("species %q: id must be lowercase", s.ID)
	}
	if s.Name == "" {
		return fmt.Errorf("species %q: name must not be empty", s.ID)
	}
	if !s.Element.Valid() {
		return fmt.Errorf("species %q: %w", s.ID, element.ErrInvalidElement)
	}
	if s.HP < 1 {
		return fmt.Errorf("species %q: hp must be >= 1", s.ID)
	}
	if _, err := combat.NewMoveSet(s.moves()); err != nil {
		return fmt.Errorf("species %q: %w", s.ID, err)
	}
	return nil
}

func (s *Species) moves() []combat.Move {
	moves := make([]combat.Move, len(s.Moves))
	for i, m := range s.Moves {
		moves[i] = combat.Move{Name: m.Name, Power: m.Power}
	}
	return moves
}

// NewCombatant creates a full-HP combatant of this species.
//
// Precondition: s must have passed Validate.
func (s *Species) NewCombatant() (*combat.Combatant, error) {
	return combat.NewCombatant(s.Name, s.Element, s.HP, s.moves())
}

// LoadFromBytes parses a single species from raw YAML bytes.
//
// Postcondition: Returns a validated *Species, or an error.
func LoadFromBytes(data []byte) (*Species, error) {
	var s Species
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing species YAML: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadFS reads every *.yaml / *.yml file in dir of fsys.
//
// Postcondition: Returns all species or an error on the first parse or
// validate failure; on error, the partial result is discarded.
func LoadFS(fsys fs.FS, dir string) ([]*Species, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading species dir %q: %w", dir, err)
	}
	var out []*Species
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			continue
		}
		p := path.Join(dir, name)
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", p, err)
		}
		s, err := LoadFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading %q: %w", p, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// LoadDir reads every species YAML file in a directory on disk.
//
// Precondition: dir must be a readable directory.
func LoadDir(dir string) ([]*Species, error) {
	return LoadFS(os.DirFS(dir), ".")
}

// Embedded returns the species compiled into the binary.
func Embedded() ([]*Species, error) {
	return LoadFS(embedded, "data")
}

// Registry provides lookup of species by ID or display name.
type Registry struct {
	byID map[string]*Species
}

// NewRegistry indexes the given species.
//
// Precondition: every element of list must be non-nil.
// Postcondition: Returns a Registry or an error if the list is empty or two
// species share an ID or a name.
func NewRegistry(list []*Species) (*Registry, error) {
	if len(list) == 0 {
		return nil, fmt.Errorf("species registry: at least one species is required")
	}
	r := &Registry{byID: make(map[string]*Species, len(list))}
	names := make(map[string]string, len(list))
	for _, s := range list {
		if s == nil {
			panic("species.NewRegistry: precondition violated: species must be non-nil")
		}
		if _, dup := r.byID[s.ID]; dup {
			return nil, fmt.Errorf("species registry: duplicate id %q", s.ID)
		}
		lname := strings.ToLower(s.Name)
		if other, dup := names[lname]; dup {
			return nil, fmt.Errorf("species registry: %q and %q share the name %q", other, s.ID, s.Name)
		}
		r.byID[s.ID] = s
		names[lname] = s.ID
	}
	return r, nil
}

// Get returns the species matching key by ID or by case-insensitive name.
//
// Postcondition: Returns (species, true) if found, or (nil, false).
func (r *Registry) Get(key string) (*Species, bool) {
	k := strings.ToLower(strings.TrimSpace(key))
	if s, ok := r.byID[k]; ok {
		return s, true
	}
	for _, s := range r.byID {
		if strings.ToLower(s.Name) == k {
			return s, true
		}
	}
	return nil, false
}

// All returns every species sorted by ID.
func (r *Registry) All() []*Species {
	out := make([]*Species, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of registered species.
func (r *Registry) Len() int { return len(r.byID) }

// NewCombatant creates a full-HP combatant of the species matching key.
//
// Postcondition: Returns a Combatant, or an error if key is unknown.
func (r *Registry) NewCombatant(key string) (*combat.Combatant, error) {
	s, ok := r.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSpecies, key)
	}
	return s.NewCombatant()
}
