package state

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

type rowKey struct {
	table string
	key   string
}

// Overlay is one block's transactional view of the world: a mapping from
// (table, key) to Entry layered on top of a parent Overlay (the previous
// block's overlay) or, if there is none, directly on the durable Backend.
//
// An Overlay is exclusively owned by one BlockContext at a time (spec §3
// invariant); concurrent DAG-mode access is safe because reads only ever
// touch this overlay's own map under RLock and the parent chain is
// immutable for the overlay's lifetime.
type Overlay struct {
	number  uint64
	parent  *Overlay
	backend Backend

	mu      sync.RWMutex
	rows    map[rowKey]*Entry
	tables  map[string]*Table
	lastVer map[rowKey]uint64

	recoder *Recoder

	prepared  bool
	committed bool
	staged    []Mutation
}

// NewOverlay stacks a fresh overlay for block `number` on top of `parent`
// (nil if the chain is empty, in which case reads fall through to backend).
func NewOverlay(number uint64, parent *Overlay, backend Backend) *Overlay {
	return &Overlay{
		number:  number,
		parent:  parent,
		backend: backend,
		rows:    make(map[rowKey]*Entry),
		tables:  make(map[string]*Table),
		lastVer: make(map[rowKey]uint64),
	}
}

// Number returns the block number this overlay was created for.
func (o *Overlay) Number() uint64 { return o.number }

// NewRecoder returns a fresh undo log for a new call frame.
func (o *Overlay) NewRecoder() *Recoder { return NewRecoder() }

// SetRecoder installs the Recoder that subsequent writes will be journaled
// to. Pass nil to stop journaling (used for read-only `call` execution).
func (o *Overlay) SetRecoder(r *Recoder) {
	o.mu.Lock()
	o.recoder = r
	o.mu.Unlock()
}

// CreateTable registers a new table name with the given value-field schema.
// Fails with ErrTableAlreadyExists if the name is already bound anywhere in
// the overlay chain or the backend.
func (o *Overlay) CreateTable(name string, valueFields []string) (*Table, error) {
	if _, err := o.OpenTable(name); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrTableAlreadyExists, name)
	}
	t := &Table{Name: name, ValueFields: append([]string(nil), valueFields...)}
	o.mu.Lock()
	o.tables[name] = t
	o.mu.Unlock()
	return t, nil
}

// OpenTable resolves a table by name, walking the overlay chain then falling
// through to the backend. Repeated opens return an equal *Table each time.
func (o *Overlay) OpenTable(name string) (*Table, error) {
	for cur := o; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		t, ok := cur.tables[name]
		cur.mu.RUnlock()
		if ok {
			return t, nil
		}
	}
	if o.backend != nil {
		if t, err := o.backend.OpenTable(name); err == nil && t != nil {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
}

// GetRow returns the topmost non-tombstone entry for (table, key) on the
// overlay chain, or (nil, nil) if the topmost visible entry is a tombstone
// or no entry exists anywhere in the chain (spec §8 property 3).
func (o *Overlay) GetRow(table, key string) (*Entry, error) {
	rk := rowKey{table, key}
	for cur := o; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		e, ok := cur.rows[rk]
		cur.mu.RUnlock()
		if ok {
			if e.Deleted() {
				return nil, nil
			}
			return e.Clone(), nil
		}
	}
	if o.backend != nil {
		return o.backend.GetRow(table, key)
	}
	return nil, nil
}

// GetRows batches GetRow across a set of keys, preserving order; any entry
// not found (or tombstoned) is nil at that index.
func (o *Overlay) GetRows(table string, keys []string) ([]*Entry, error) {
	out := make([]*Entry, len(keys))
	for i, k := range keys {
		e, err := o.GetRow(table, k)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// GetPrimaryKeys enumerates keys visible for `table` across the whole
// overlay chain plus the backend (deletions shadow ancestor entries),
// optionally filtered by `condition`.
func (o *Overlay) GetPrimaryKeys(table string, condition func(key string) bool) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	visit := func(key string, deleted bool) {
		if seen[key] {
			return
		}
		seen[key] = true
		if deleted {
			return
		}
		if condition == nil || condition(key) {
			out = append(out, key)
		}
	}
	for cur := o; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		for rk, e := range cur.rows {
			if rk.table == table {
				visit(rk.key, e.Deleted())
			}
		}
		cur.mu.RUnlock()
	}
	if o.backend != nil {
		keys, err := o.backend.GetPrimaryKeys(table, nil)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			visit(k, false)
		}
	}
	sort.Strings(out)
	return out, nil
}

// lastVersion looks up the highest version written to (table, key) in
// this overlay's own map, falling back to the parent chain/backend so a
// first write on top of existing state still increments past it.
func (o *Overlay) lastVersion(rk rowKey) uint64 {
	o.mu.RLock()
	if v, ok := o.lastVer[rk]; ok {
		o.mu.RUnlock()
		return v
	}
	o.mu.RUnlock()
	if o.parent != nil {
		return o.parent.lastVersion(rk)
	}
	if e, _ := o.GetRow(rk.table, rk.key); e != nil {
		return e.Version
	}
	return 0
}

// SetRow writes `entry` to (table, key) in this overlay only. The overlay
// assigns entry.Version = last observed version + 1 (spec §8 property 4),
// and — if a Recoder is active — journals the prior value so the write can
// be undone in isolation.
func (o *Overlay) SetRow(table, key string, entry *Entry) error {
	rk := rowKey{table, key}
	prior, err := o.GetRow(table, key)
	if err != nil {
		return err
	}
	o.mu.RLock()
	if own, ok := o.rows[rk]; ok && own.Deleted() {
		prior = own.Clone()
	}
	o.mu.RUnlock()
	next := entry.Clone()
	next.Version = o.lastVersion(rk) + 1

	o.mu.Lock()
	o.rows[rk] = next
	o.lastVer[rk] = next.Version
	rec := o.recoder
	o.mu.Unlock()

	if rec != nil {
		rec.append(Mutation{Table: table, Key: key, Prior: prior, New: next.Clone()})
	}
	return nil
}

// Rollback undoes exactly the mutations recorded on `r`, in reverse order,
// restoring each key's prior entry (or removing it if it had none) — and
// nothing else (spec §8 property 2).
func (o *Overlay) Rollback(r *Recoder) {
	if r == nil {
		return
	}
	muts := r.Mutations()
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(muts) - 1; i >= 0; i-- {
		m := muts[i]
		rk := rowKey{m.Table, m.Key}
		if m.Prior == nil {
			delete(o.rows, rk)
			delete(o.lastVer, rk)
			continue
		}
		o.rows[rk] = m.Prior.Clone()
		o.lastVer[rk] = m.Prior.Version
	}
}

// Hash returns a deterministic digest of this overlay's own mutations (not
// the parent chain) in canonical (table, key) order. An empty overlay hashes
// to the zero hash.
func (o *Overlay) Hash() common.Hash {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if len(o.rows) == 0 {
		return common.Hash{}
	}
	keys := make([]rowKey, 0, len(o.rows))
	for rk := range o.rows {
		keys = append(keys, rk)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].table != keys[j].table {
			return keys[i].table < keys[j].table
		}
		return keys[i].key < keys[j].key
	})
	h := crypto.NewKeccakState()
	for _, rk := range keys {
		e := o.rows[rk]
		h.Write([]byte(rk.table))
		h.Write([]byte{0})
		h.Write([]byte(rk.key))
		h.Write([]byte{0})
		h.Write([]byte{byte(e.Status)})
		var vbuf [8]byte
		putUint64(vbuf[:], e.Version)
		h.Write(vbuf[:])
		for _, f := range e.Fields {
			h.Write([]byte(f))
			h.Write([]byte{0})
		}
	}
	var out common.Hash
	h.Read(out[:])
	return out
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (56 - 8*i))
	}
}

// Prepare stages this overlay's own mutations for durable write-ahead
// storage. It must be called with this overlay's own number.
func (o *Overlay) Prepare(n uint64) error {
	if n != o.number {
		return ErrNumberMismatch
	}
	o.mu.RLock()
	muts := make([]Mutation, 0, len(o.rows))
	for rk, e := range o.rows {
		muts = append(muts, Mutation{Table: rk.table, Key: rk.key, New: e.Clone()})
	}
	o.mu.RUnlock()

	if o.backend != nil {
		if err := o.backend.Prepare(n, muts); err != nil {
			return err
		}
	}
	o.mu.Lock()
	o.staged = muts
	o.prepared = true
	o.mu.Unlock()
	return nil
}

// Commit atomically promotes the prepared set into the backend.
func (o *Overlay) Commit(n uint64) error {
	if n != o.number {
		return ErrNumberMismatch
	}
	if !o.prepared {
		return ErrNotPrepared
	}
	if o.backend != nil {
		if err := o.backend.Commit(n); err != nil {
			return err
		}
	}
	o.mu.Lock()
	o.committed = true
	o.mu.Unlock()
	return nil
}

// RollbackPrepared discards a prepared-but-not-committed overlay.
func (o *Overlay) RollbackPrepared(n uint64) error {
	if n != o.number {
		return ErrNumberMismatch
	}
	if o.backend != nil {
		if err := o.backend.Rollback(n); err != nil {
			return err
		}
	}
	o.mu.Lock()
	o.prepared = false
	o.staged = nil
	o.mu.Unlock()
	return nil
}
