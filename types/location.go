package types

import (
	jsoniter "github.com/json-iterator/go"
)

// Location field names as they appear in packed history blobs.
const (
	LocationFieldX        = "x"
	LocationFieldY        = "y"
	LocationFieldDX       = "dx"
	LocationFieldDY       = "dy"
	LocationFieldVelocity = "velocity"
)

// TrackedLocationFields lists every history-sampled field of a Location, in
// blob order.
var TrackedLocationFields = []string{
	LocationFieldDX,
	LocationFieldDY,
	LocationFieldVelocity,
	LocationFieldX,
	LocationFieldY,
}

// Location is the historical position record of a player. The five numeric
// fields are unexported so that every write goes through a setter and is
// observed for history sampling; mutating a field silently is impossible.
type Location struct {
	id       ID
	x        float64
	y        float64
	dx       float64
	dy       float64
	velocity float64
	history  []byte

	dirty map[string]bool
}

// NewLocation returns a location at the given position, facing down.
func NewLocation(id ID, x, y float64) *Location {
	return &Location{id: id, x: x, y: y, dx: 0, dy: 1}
}

// GetID implements gametable.Record.
func (l *Location) GetID() ID { return l.id }

// SetID implements gametable.Record.
func (l *Location) SetID(id ID) { l.id = id }

// IsActive implements gametable.Record. A location lives exactly as long as
// its player, so it is always active while present.
func (l *Location) IsActive() bool { return true }

func (l *Location) X() float64        { return l.x }
func (l *Location) Y() float64        { return l.y }
func (l *Location) DX() float64       { return l.dx }
func (l *Location) DY() float64       { return l.dy }
func (l *Location) Velocity() float64 { return l.velocity }

// History returns the packed sample blob written at the latest flush.
func (l *Location) History() []byte { return l.history }

func (l *Location) SetX(v float64)        { l.x = v; l.markDirty(LocationFieldX) }
func (l *Location) SetY(v float64)        { l.y = v; l.markDirty(LocationFieldY) }
func (l *Location) SetDX(v float64)       { l.dx = v; l.markDirty(LocationFieldDX) }
func (l *Location) SetDY(v float64)       { l.dy = v; l.markDirty(LocationFieldDY) }
func (l *Location) SetVelocity(v float64) { l.velocity = v; l.markDirty(LocationFieldVelocity) }

func (l *Location) markDirty(field string) {
	if l.dirty == nil {
		l.dirty = make(map[string]bool, len(TrackedLocationFields))
	}
	l.dirty[field] = true
}

// TrackedFields implements gametable.HistoricalRecord.
func (l *Location) TrackedFields() []string { return TrackedLocationFields }

// DirtyFields implements gametable.HistoricalRecord: the tracked fields
// written since the last ClearDirty, in blob order.
func (l *Location) DirtyFields() []string {
	if len(l.dirty) == 0 {
		return nil
	}
	fields := make([]string, 0, len(l.dirty))
	for _, name := range TrackedLocationFields {
		if l.dirty[name] {
			fields = append(fields, name)
		}
	}
	return fields
}

// ClearDirty implements gametable.HistoricalRecord.
func (l *Location) ClearDirty() { l.dirty = nil }

// FieldValue implements gametable.HistoricalRecord.
func (l *Location) FieldValue(name string) (float64, bool) {
	switch name {
	case LocationFieldX:
		return l.x, true
	case LocationFieldY:
		return l.y, true
	case LocationFieldDX:
		return l.dx, true
	case LocationFieldDY:
		return l.dy, true
	case LocationFieldVelocity:
		return l.velocity, true
	default:
		return 0, false
	}
}

// SetHistory implements gametable.HistoricalRecord.
func (l *Location) SetHistory(blob []byte) { l.history = blob }

type locationJSON struct {
	ID       ID      `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	DX       float64 `json:"dx"`
	DY       float64 `json:"dy"`
	Velocity float64 `json:"velocity"`
	History  []byte  `json:"history,omitempty"`
}

// MarshalJSON flattens the unexported fields into a plain document.
func (l *Location) MarshalJSON() ([]byte, error) {
	return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(locationJSON{
		ID: l.id, X: l.x, Y: l.y, DX: l.dx, DY: l.dy, Velocity: l.velocity, History: l.history,
	})
}

// UnmarshalJSON restores a location from its persisted document. Dirty state
// is tick-scoped and never persisted.
func (l *Location) UnmarshalJSON(data []byte) error {
	var doc locationJSON
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &doc); err != nil {
		return err
	}
	l.id = doc.ID
	l.x, l.y = doc.X, doc.Y
	l.dx, l.dy = doc.DX, doc.DY
	l.velocity = doc.Velocity
	l.history = doc.History
	l.dirty = nil
	return nil
}
