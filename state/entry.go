// Package state implements the versioned, layered key-value store that
// backs one in-flight block: overlays stack on top of a parent overlay or a
// durable Backend, every mutation is journaled on a Recoder so a call frame
// can be rolled back in isolation, and a committed overlay is staged into
// the backend through a two-phase commit.
package state

// EntryStatus distinguishes a live row from a tombstone left by a delete.
type EntryStatus uint8

const (
	// StatusNormal marks a row holding live field data.
	StatusNormal EntryStatus = iota
	// StatusDeleted marks a tombstone that shadows any value the same key
	// might have in a parent overlay or the backend.
	StatusDeleted
)

// Entry is the value half of a (table, key) -> Entry mapping: an ordered
// tuple of string fields plus the per-key version assigned by the overlay
// that accepted the write.
type Entry struct {
	Fields  []string
	Version uint64
	Status  EntryStatus
}

// NewEntry returns an unversioned, normal-status blank ready to be filled in
// and handed to Overlay.SetRow.
func NewEntry(fields []string) *Entry {
	return &Entry{Fields: append([]string(nil), fields...), Status: StatusNormal}
}

// NewDeletedEntry returns an unversioned tombstone.
func NewDeletedEntry() *Entry {
	return &Entry{Status: StatusDeleted}
}

// Clone returns a deep copy so callers can mutate the fields slice freely.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	return &Entry{
		Fields:  append([]string(nil), e.Fields...),
		Version: e.Version,
		Status:  e.Status,
	}
}

// Deleted reports whether the entry is a tombstone.
func (e *Entry) Deleted() bool {
	return e == nil || e.Status == StatusDeleted
}

// GetField returns the i-th field, or "" if out of range — mirrors the
// permissive field access the VM host context relies on for sparse schemas.
func (e *Entry) GetField(i int) string {
	if e == nil || i < 0 || i >= len(e.Fields) {
		return ""
	}
	return e.Fields[i]
}

// SetField overwrites the i-th field, growing the slice if necessary.
func (e *Entry) SetField(i int, v string) {
	for len(e.Fields) <= i {
		e.Fields = append(e.Fields, "")
	}
	e.Fields[i] = v
}

// Table is the handle returned by CreateTable/OpenTable. The value-field
// schema is opaque to the store; it is only ever echoed back to the caller.
type Table struct {
	Name        string
	ValueFields []string
}
