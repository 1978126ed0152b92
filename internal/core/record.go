package core

import "maps"

// Record is one input row keyed by canonical field. A field is absent when no
// column maps to it. Records are never modified in place; each step returns a
// new Record.
type Record map[Field]string

// Get returns the value of f, or "" when absent.
func (r Record) Get(f Field) string {
	return r[f]
}

// With returns a copy of r with f set to v.
func (r Record) With(f Field, v string) Record {
	out := make(Record, len(r)+1)
	maps.Copy(out, r)
	out[f] = v
	return out
}

// NormalizedRecord holds the output fields of a row after every normalizer
// has run. Only Normalizer.Normalize can build a valid one, which is what
// lets the hashing pass refuse raw input.
type NormalizedRecord struct {
	values     [len(outputSlots)]string
	deviceID   bool
	normalized bool
}

// outputSlots fixes the position of each output field inside NormalizedRecord.
var outputSlots = [...]Field{FirstName, LastName, Phone, Email, Country, Zip, MobileDeviceID}

func slotOf(f Field) int {
	for i, s := range outputSlots {
		if s == f {
			return i
		}
	}
	return -1
}

// Get returns the normalized value of an output field.
func (n NormalizedRecord) Get(f Field) string {
	if i := slotOf(f); i >= 0 {
		return n.values[i]
	}
	return ""
}

// withValue returns a copy with f replaced.
func (n NormalizedRecord) withValue(f Field, v string) NormalizedRecord {
	if i := slotOf(f); i >= 0 {
		n.values[i] = v
	}
	return n
}

// Normalized reports whether the record came out of the normalizer.
func (n NormalizedRecord) Normalized() bool {
	return n.normalized
}

// Row returns the values in output column order.
func (n NormalizedRecord) Row() []string {
	return rowOf(n.values[:], n.deviceID)
}

// HashedRecord is a NormalizedRecord whose non-empty values were replaced by digests.
type HashedRecord struct {
	values   [len(outputSlots)]string
	deviceID bool
}

// Get returns the digest of an output field, or "" if the field was empty.
func (h HashedRecord) Get(f Field) string {
	if i := slotOf(f); i >= 0 {
		return h.values[i]
	}
	return ""
}

// Row returns the digests in output column order.
func (h HashedRecord) Row() []string {
	return rowOf(h.values[:], h.deviceID)
}

func rowOf(values []string, deviceID bool) []string {
	n := len(values)
	if !deviceID {
		n--
	}
	row := make([]string, n)
	copy(row, values[:n])
	return row
}
