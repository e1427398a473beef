// Package history packs per-field numeric sample buffers into the compact
// binary blob served to clients. Clients unpack the blob and interpolate
// between samples to reconstruct smooth motion from ~1s server flushes.
package history

import (
	"bytes"
	"encoding/binary"
	"math"
	"sort"

	"github.com/pkg/errors"
)

// Version is the only blob layout this package reads and writes.
const Version uint16 = 1

var (
	// ErrUnsupportedVersion is returned when a blob's version header is unknown.
	ErrUnsupportedVersion = errors.New("unsupported history blob version")
	// ErrCorruptBlob is returned when a blob is truncated or malformed.
	ErrCorruptBlob = errors.New("corrupt history blob")
	// ErrFieldNameTooLong is returned when a field name exceeds one byte of length.
	ErrFieldNameTooLong = errors.New("field name longer than 255 bytes")
)

// Sample is one observation of a tracked field.
type Sample struct {
	Time  float64 `json:"time"`
	Value float64 `json:"value"`
}

// FieldHistory is the sample buffer of a single tracked field over one flush
// interval. InitialValue is the field's value at the start of the interval.
type FieldHistory struct {
	InitialValue float64  `json:"initialValue"`
	Samples      []Sample `json:"samples"`
}

// ValueAt reconstructs the field's value at time t by linear interpolation
// between samples, clamping to InitialValue before the first sample and the
// final sample's value after the last.
func (h FieldHistory) ValueAt(t float64) float64 {
	if len(h.Samples) == 0 || t < h.Samples[0].Time {
		return h.InitialValue
	}
	last := h.Samples[len(h.Samples)-1]
	if t >= last.Time {
		return last.Value
	}
	idx := sort.Search(len(h.Samples), func(i int) bool { return h.Samples[i].Time > t })
	prev, next := h.Samples[idx-1], h.Samples[idx]
	interp := (t - prev.Time) / (next.Time - prev.Time)
	return prev.Value + interp*(next.Value-prev.Value)
}

// Pack encodes per-field histories into a version 1 blob. Layout, all little
// endian: u16 version, u16 field count, then per field a u8 name length, the
// utf8 name, the f64 initial value, a u32 sample count, and count pairs of
// (f64 time, f64 value). Fields are emitted in lexicographic name order so
// packing is deterministic.
func Pack(fields map[string]FieldHistory) ([]byte, error) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		if len(name) > math.MaxUint8 {
			return nil, errors.Wrap(ErrFieldNameTooLong, name[:32])
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	writeUint16(&buf, Version)
	writeUint16(&buf, uint16(len(names)))
	for _, name := range names {
		h := fields[name]
		buf.WriteByte(uint8(len(name)))
		buf.WriteString(name)
		writeFloat64(&buf, h.InitialValue)
		writeUint32(&buf, uint32(len(h.Samples)))
		for _, s := range h.Samples {
			writeFloat64(&buf, s.Time)
			writeFloat64(&buf, s.Value)
		}
	}
	return buf.Bytes(), nil
}

// Unpack decodes a blob produced by Pack. Blobs with an unknown version are
// rejected. Fields unknown to the caller are still returned; dropping them is
// the caller's choice.
func Unpack(data []byte) (map[string]FieldHistory, error) {
	r := &reader{data: data}
	version, err := r.uint16()
	if err != nil {
		return nil, err
	}
	if version != Version {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "version %d", version)
	}
	numFields, err := r.uint16()
	if err != nil {
		return nil, err
	}
	fields := make(map[string]FieldHistory, numFields)
	for i := uint16(0); i < numFields; i++ {
		nameLen, err := r.uint8()
		if err != nil {
			return nil, err
		}
		name, err := r.bytes(int(nameLen))
		if err != nil {
			return nil, err
		}
		initial, err := r.float64()
		if err != nil {
			return nil, err
		}
		count, err := r.uint32()
		if err != nil {
			return nil, err
		}
		h := FieldHistory{InitialValue: initial}
		if count > 0 {
			h.Samples = make([]Sample, 0, count)
		}
		for j := uint32(0); j < count; j++ {
			t, err := r.float64()
			if err != nil {
				return nil, err
			}
			v, err := r.float64()
			if err != nil {
				return nil, err
			}
			h.Samples = append(h.Samples, Sample{Time: t, Value: v})
		}
		fields[string(name)] = h
	}
	if len(r.data[r.off:]) != 0 {
		return nil, errors.Wrap(ErrCorruptBlob, "trailing bytes")
	}
	return fields, nil
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeFloat64(buf *bytes.Buffer, v float64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	buf.Write(b[:])
}

type reader struct {
	data []byte
	off  int
}

func (r *reader) bytes(n int) ([]byte, error) {
	if r.off+n > len(r.data) {
		return nil, errors.Wrapf(ErrCorruptBlob, "need %d bytes at offset %d of %d", n, r.off, len(r.data))
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) uint8() (uint8, error) {
	b, err := r.bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) uint16() (uint16, error) {
	b, err := r.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *reader) uint32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) float64() (float64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}
