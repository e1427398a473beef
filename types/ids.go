// Package types defines the persisted documents of the town simulation:
// engines, inputs, worlds, players, conversations, and agents. Documents
// reference each other by id only; aggregates resolve references at load
// time so no in-memory cycles survive a step boundary.
package types

import "github.com/google/uuid"

// ID uniquely identifies a persisted document.
type ID string

// NewID mints a random document id.
func NewID() ID {
	return ID(uuid.New().String())
}

func (id ID) String() string {
	return string(id)
}
