// Package session mints and resolves conversation session ids.
package session

import (
	"strings"

	"github.com/google/uuid"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// NewID returns a fresh UUID v4.
func (m *Manager) NewID() string {
	return uuid.NewString()
}

// Resolve returns id when the client supplied one, otherwise a new id.
// The bool reports whether the id was minted.
func (m *Manager) Resolve(id string) (string, bool) {
	if id = strings.TrimSpace(id); id != "" {
		return id, false
	}
	return m.NewID(), true
}
