// Package gametable provides the in-memory working set of one engine step: a
// typed cache over persisted documents with dirty and deleted tracking, and a
// historical variant that samples numeric fields every tick for client-side
// interpolation. A table lives for exactly one step transaction and is never
// shared across steps.
package gametable

import (
	"github.com/pkg/errors"

	"github.com/aitownlabs/aitown/types"
)

var (
	// ErrInvalidID is returned when no document with the id exists.
	ErrInvalidID = errors.New("invalid document id")
	// ErrInactiveID is returned when the document exists but is inactive.
	ErrInactiveID = errors.New("inactive document id")
)

// Record is the contract a document must satisfy to live in a table.
type Record interface {
	GetID() types.ID
	SetID(types.ID)
	IsActive() bool
}

// Table caches documents of one type for the duration of a step. Every
// mutation flows through Insert, Update, or Delete, so the modified and
// deleted sets are complete by construction: silent mutation is impossible.
type Table[T Record] struct {
	data     map[types.ID]T
	order    []types.ID
	inOrder  map[types.ID]bool
	modified map[types.ID]bool
	deleted  map[types.ID]bool
}

// New builds a table over rows loaded from the store. Row order is preserved
// for deterministic iteration; the store loads rows in key order.
func New[T Record](rows []T) *Table[T] {
	t := &Table[T]{
		data:     make(map[types.ID]T, len(rows)),
		order:    make([]types.ID, 0, len(rows)),
		inOrder:  make(map[types.ID]bool, len(rows)),
		modified: make(map[types.ID]bool),
		deleted:  make(map[types.ID]bool),
	}
	for _, row := range rows {
		t.data[row.GetID()] = row
		t.order = append(t.order, row.GetID())
		t.inOrder[row.GetID()] = true
	}
	return t
}

// Insert adds a new document, minting an id when the row has none, and
// returns the id. The row reaches the store on the next Save.
func (t *Table[T]) Insert(row T) types.ID {
	id := row.GetID()
	if id == "" {
		id = types.NewID()
		row.SetID(id)
	}
	if !t.inOrder[id] {
		t.order = append(t.order, id)
		t.inOrder[id] = true
	}
	t.data[id] = row
	t.modified[id] = true
	delete(t.deleted, id)
	return id
}

// Delete removes the document from the cache and marks it for deletion on
// the next Save.
func (t *Table[T]) Delete(id types.ID) error {
	if _, ok := t.data[id]; !ok {
		return errors.Wrapf(ErrInvalidID, "%s", id)
	}
	delete(t.data, id)
	delete(t.modified, id)
	t.deleted[id] = true
	return nil
}

// Lookup returns the document with the given id, failing when it is missing
// or inactive. The returned reference is read-only by convention; writes go
// through Update so they are observed.
func (t *Table[T]) Lookup(id types.ID) (T, error) {
	var zero T
	row, ok := t.data[id]
	if !ok {
		return zero, errors.Wrapf(ErrInvalidID, "%s", id)
	}
	if !row.IsActive() {
		return zero, errors.Wrapf(ErrInactiveID, "%s", id)
	}
	return row, nil
}

// Update applies fn to the document and marks it modified exactly once. This
// is the only mutation path for cached rows.
func (t *Table[T]) Update(id types.ID, fn func(T)) error {
	row, err := t.Lookup(id)
	if err != nil {
		return err
	}
	fn(row)
	t.modified[id] = true
	return nil
}

// Find returns the first active document satisfying pred, in insertion
// order.
func (t *Table[T]) Find(pred func(T) bool) (T, bool) {
	for _, id := range t.order {
		row, ok := t.data[id]
		if !ok || !row.IsActive() {
			continue
		}
		if pred(row) {
			return row, true
		}
	}
	var zero T
	return zero, false
}

// Filter returns all active documents satisfying pred, in insertion order.
func (t *Table[T]) Filter(pred func(T) bool) []T {
	var out []T
	for _, id := range t.order {
		row, ok := t.data[id]
		if !ok || !row.IsActive() {
			continue
		}
		if pred(row) {
			out = append(out, row)
		}
	}
	return out
}

// All returns every active document in insertion order.
func (t *Table[T]) All() []T {
	return t.Filter(func(T) bool { return true })
}

// Save drains the modified and deleted sets into an ordered changeset and
// clears both, so a second Save with no further writes is a no-op. The caller
// persists the changeset inside the step transaction.
func (t *Table[T]) Save() (upserts []T, deletes []types.ID) {
	for _, id := range t.order {
		if t.deleted[id] {
			deletes = append(deletes, id)
			delete(t.deleted, id)
			continue
		}
		if t.modified[id] {
			upserts = append(upserts, t.data[id])
		}
	}
	// Deleted ids that never appeared in order were removed before load;
	// sweep whatever remains for completeness.
	for id := range t.deleted {
		deletes = append(deletes, id)
	}
	t.modified = make(map[types.ID]bool)
	t.deleted = make(map[types.ID]bool)
	return upserts, deletes
}
