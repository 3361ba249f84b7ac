// Package element defines the elemental types and the effectiveness chart
// that scales move damage between them.
package element

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidElement is returned when an element name is not one of the known elements.
var ErrInvalidElement = errors.New("invalid element")

// Element is an elemental type. The zero value (Unknown) is intentionally invalid.
type Element int

const (
	Unknown Element = iota // zero value; intentionally invalid
	Fire
	Water
	Grass
	Electric
)

// All returns every valid element in declaration order.
//
// Postcondition: Returns a fresh slice; Unknown is never included.
func All() []Element {
	return []Element{Fire, Water, Grass, Electric}
}

// String returns the lowercase element name.
// Postcondition: returns "fire", "water", "grass", "electric", or "unknown".
func (e Element) String() string {
	switch e {
	case Fire:
		return "fire"
	case Water:
		return "water"
	case Grass:
		return "grass"
	case Electric:
		return "electric"
	default:
		return "unknown"
	}
}

// Valid reports whether e is one of the known elements.
func (e Element) Valid() bool {
	return e >= Fire && e <= Electric
}

// Parse converts a case-insensitive element name into an Element.
//
// Postcondition: Returns a valid Element, or an error wrapping ErrInvalidElement.
func Parse(name string) (Element, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "fire":
		return Fire, nil
	case "water":
		return Water, nil
	case "grass":
		return Grass, nil
	case "electric":
		return Electric, nil
	}
	return Unknown, fmt.Errorf("%w: %q", ErrInvalidElement, name)
}

// MarshalText implements encoding.TextMarshaler.
func (e Element) MarshalText() ([]byte, error) {
	if !e.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidElement, int(e))
	}
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so YAML content can name
// elements as plain strings.
func (e *Element) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}
