// Package dice provides the randomness abstraction used to pick opponent moves.
package dice

// Source is the randomness provider for the battle engine.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}
