package element

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Multiplier scales the base power of a move.
type Multiplier float64

const (
	SuperEffective   Multiplier = 2.0
	Neutral          Multiplier = 1.0
	NotVeryEffective Multiplier = 0.5
)

// Matchups lists the defending elements an attacking element is strong and weak against.
type Matchups struct {
	Effective   []Element `yaml:"effective"`
	Ineffective []Element `yaml:"ineffective"`
}

type row struct {
	effective   map[Element]bool
	ineffective map[Element]bool
}

// Chart is a read-only effectiveness table keyed by attacking element.
//
// Invariant: no defender appears in both the effective and ineffective set of
// the same attacker.
type Chart struct {
	rows map[Element]row
}

// NewChart builds a Chart from the given matchups.
//
// Postcondition: Returns a validated Chart, or an error if any element is
// invalid or a defender is listed as both effective and ineffective.
func NewChart(matchups map[Element]Matchups) (*Chart, error) {
	c := &Chart{rows: make(map[Element]row, len(matchups))}
	for attacker, m := range matchups {
		if !attacker.Valid() {
			return nil, fmt.Errorf("chart: attacker: %w: %d", ErrInvalidElement, int(attacker))
		}
		r := row{effective: make(map[Element]bool), ineffective: make(map[Element]bool)}
		for _, d := range m.Effective {
			if !d.Valid() {
				return nil, fmt.Errorf("chart: %s effective: %w: %d", attacker, ErrInvalidElement, int(d))
			}
			r.effective[d] = true
		}
		for _, d := range m.Ineffective {
			if !d.Valid() {
				return nil, fmt.Errorf("chart: %s ineffective: %w: %d", attacker, ErrInvalidElement, int(d))
			}
			if r.effective[d] {
				return nil, fmt.Errorf("chart: %s lists %s as both effective and ineffective", attacker, d)
			}
			r.ineffective[d] = true
		}
		c.rows[attacker] = r
	}
	return c, nil
}

var defaultChart = mustChart(map[Element]Matchups{
	Water:    {Effective: []Element{Fire}, Ineffective: []Element{Electric}},
	Fire:     {Effective: []Element{Grass}, Ineffective: []Element{Water}},
	Grass:    {Effective: []Element{Water}, Ineffective: []Element{Fire}},
	Electric: {Effective: []Element{Water}, Ineffective: []Element{Grass}},
})

// DefaultChart returns the built-in effectiveness chart.
func DefaultChart() *Chart {
	return defaultChart
}

func mustChart(m map[Element]Matchups) *Chart {
	c, err := NewChart(m)
	if err != nil {
		panic("element: invalid built-in chart: " + err.Error())
	}
	return c
}

// Effectiveness returns the multiplier for a move of attacker's element hitting defender.
//
// Postcondition: Returns SuperEffective, NotVeryEffective, or Neutral. An
// attacker without a row is neutral against everything.
func (c *Chart) Effectiveness(attacker, defender Element) Multiplier {
	r, ok := c.rows[attacker]
	if !ok {
		return Neutral
	}
	switch {
	case r.effective[defender]:
		return SuperEffective
	case r.ineffective[defender]:
		return NotVeryEffective
	default:
		return Neutral
	}
}

// LoadChartFromBytes parses a YAML chart of the form
//
//	fire:
//	  effective: [grass]
//	  ineffective: [water]
//
// Postcondition: Returns a validated Chart or an error.
func LoadChartFromBytes(data []byte) (*Chart, error) {
	var m map[Element]Matchups
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing chart YAML: %w", err)
	}
	return NewChart(m)
}

// LoadChart reads and parses a YAML chart file.
//
// Precondition: path must be a readable file.
func LoadChart(path string) (*Chart, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading chart %q: %w", path, err)
	}
	c, err := LoadChartFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("loading chart %q: %w", path, err)
	}
	return c, nil
}
