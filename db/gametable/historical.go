package gametable

import (
	"github.com/pkg/errors"

	"github.com/aitownlabs/aitown/encoding/history"
	"github.com/aitownlabs/aitown/types"
)

// HistoricalRecord is a Record whose numeric fields are sampled once per tick
// so clients can replay intra-step motion. Writes to tracked fields mark the
// field dirty; CaptureTick converts dirty fields into timestamped samples.
type HistoricalRecord interface {
	Record
	TrackedFields() []string
	DirtyFields() []string
	ClearDirty()
	FieldValue(name string) (float64, bool)
	SetHistory(blob []byte)
}

// HistoricalTable extends Table with per-tick sampling of tracked numeric
// fields. Samples accumulate across the ticks of one step and are packed
// into each record's history blob at flush time.
type HistoricalTable[T HistoricalRecord] struct {
	*Table[T]
	buffers map[types.ID]map[string][]history.Sample
}

// NewHistorical builds a historical table over rows loaded from the store.
func NewHistorical[T HistoricalRecord](rows []T) *HistoricalTable[T] {
	return &HistoricalTable[T]{
		Table:   New(rows),
		buffers: make(map[types.ID]map[string][]history.Sample),
	}
}

// CaptureTick appends one sample per dirty field of every cached record,
// stamped with the current simulation time, then clears the dirty sets. A
// field written several times within a tick yields a single sample carrying
// the final value.
func (t *HistoricalTable[T]) CaptureTick(now int64) {
	for _, id := range t.order {
		row, ok := t.data[id]
		if !ok {
			continue
		}
		dirty := row.DirtyFields()
		if len(dirty) == 0 {
			continue
		}
		fields := t.buffers[id]
		if fields == nil {
			fields = make(map[string][]history.Sample)
			t.buffers[id] = fields
		}
		for _, name := range dirty {
			v, ok := row.FieldValue(name)
			if !ok {
				continue
			}
			fields[name] = append(fields[name], history.Sample{Time: float64(now), Value: v})
		}
		row.ClearDirty()
	}
}

// PackHistories encodes the buffered samples of every sampled record into its
// history blob and marks the record modified so the blob persists with the
// step. All tracked fields appear in the blob: fields that never changed
// carry only their initial value. Buffers are cleared afterwards.
func (t *HistoricalTable[T]) PackHistories() error {
	for _, id := range t.order {
		fields, ok := t.buffers[id]
		if !ok {
			continue
		}
		row, present := t.data[id]
		if !present {
			// Deleted mid-step; its motion dies with it.
			delete(t.buffers, id)
			continue
		}
		packed := make(map[string]history.FieldHistory, len(row.TrackedFields()))
		for _, name := range row.TrackedFields() {
			samples := fields[name]
			fh := history.FieldHistory{Samples: samples}
			if len(samples) > 0 {
				// The first sample carries the value at the start of
				// the interval, since every tracked write is sampled.
				fh.InitialValue = samples[0].Value
			} else {
				v, ok := row.FieldValue(name)
				if !ok {
					return errors.Wrapf(ErrInvalidID, "record %s does not track field %s", id, name)
				}
				fh.InitialValue = v
			}
			packed[name] = fh
		}
		blob, err := history.Pack(packed)
		if err != nil {
			return errors.Wrapf(err, "pack history for %s", id)
		}
		row.SetHistory(blob)
		t.modified[id] = true
		delete(t.buffers, id)
	}
	return nil
}
