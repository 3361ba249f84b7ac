package battle

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/cory-johannsen/pokebattle/internal/game/combat"
)

// Manager tracks all live battles, keyed by battle ID.
// All methods are safe for concurrent use; the battles themselves are not.
type Manager struct {
	mu      sync.RWMutex
	battles map[string]*Battle
}

// NewManager creates an empty Manager.
//
// Postcondition: Returns a non-nil Manager ready for use.
func NewManager() *Manager {
	return &Manager{battles: make(map[string]*Battle)}
}

// Start creates a battle and registers it.
//
// Postcondition: Returns the new Battle, or an error if New fails or a battle
// with opts.ID is already registered.
func (m *Manager) Start(player, opponent *combat.Combatant, opts Options) (*Battle, error) {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.battles[opts.ID]; exists {
		return nil, fmt.Errorf("battle %q already active", opts.ID)
	}
	b, err := New(player, opponent, opts)
	if err != nil {
		return nil, err
	}
	m.battles[b.ID()] = b
	return b, nil
}

// Get returns the battle registered under id.
//
// Postcondition: Returns (battle, true) if found, or (nil, false) otherwise.
func (m *Manager) Get(id string) (*Battle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.battles[id]
	return b, ok
}

// End removes the battle registered under id. Unknown ids are ignored.
func (m *Manager) End(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.battles, id)
}

// Count returns the number of registered battles.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.battles)
}
