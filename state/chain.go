package state

import "sync"

// Chain tracks the linked sequence of uncommitted block overlays stacked on
// top of the durable Backend, and enforces the ordering rule from spec §3:
// a commit must name the oldest uncommitted overlay's own block number.
type Chain struct {
	backend Backend

	mu       sync.Mutex
	overlays map[uint64]*Overlay
	order    []uint64 // ascending block numbers currently uncommitted
}

// NewChain returns a Chain with no uncommitted overlays, reading through to
// backend on a miss.
func NewChain(backend Backend) *Chain {
	return &Chain{backend: backend, overlays: make(map[uint64]*Overlay)}
}

// NextBlockHeader opens a fresh overlay for block `n`, stacked on the
// overlay for n-1 if one is pending, or directly on the backend otherwise.
// It rejects if an overlay for n already exists.
func (c *Chain) NextBlockHeader(n uint64) (*Overlay, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.overlays[n]; exists {
		return nil, ErrOverlayAlreadyExist
	}
	parent := c.overlays[n-1]
	o := NewOverlay(n, parent, c.backend)
	c.overlays[n] = o
	c.order = append(c.order, n)
	return o, nil
}

// Overlay returns the pending overlay for block n, if any.
func (c *Chain) Overlay(n uint64) (*Overlay, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.overlays[n]
	return o, ok
}

// Head returns the most recently opened overlay, or nil if none is pending.
func (c *Chain) Head() *Overlay {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.order) == 0 {
		return nil
	}
	return c.overlays[c.order[len(c.order)-1]]
}

func (c *Chain) oldest() (uint64, bool) {
	if len(c.order) == 0 {
		return 0, false
	}
	return c.order[0], true
}

// Prepare stages overlay n's mutations. Any overlay may be prepared
// independently of commit ordering.
func (c *Chain) Prepare(n uint64) error {
	c.mu.Lock()
	o, ok := c.overlays[n]
	c.mu.Unlock()
	if !ok {
		return ErrNoUncommittedState
	}
	return o.Prepare(n)
}

// Commit commits overlay n. It fails unless n is the oldest uncommitted
// overlay's own number (spec §3: "commits in any other order fail").
func (c *Chain) Commit(n uint64) error {
	c.mu.Lock()
	oldest, ok := c.oldest()
	if !ok {
		c.mu.Unlock()
		return ErrNoUncommittedState
	}
	if oldest != n {
		c.mu.Unlock()
		return ErrNumberMismatch
	}
	o := c.overlays[n]
	c.mu.Unlock()

	if err := o.Commit(n); err != nil {
		return err
	}

	c.mu.Lock()
	delete(c.overlays, n)
	c.order = c.order[1:]
	c.mu.Unlock()
	return nil
}

// Rollback discards overlay n and every overlay stacked on top of it, since
// they all transitively depend on its (now-discarded) mutations.
func (c *Chain) Rollback(n uint64) error {
	c.mu.Lock()
	o, ok := c.overlays[n]
	if !ok {
		c.mu.Unlock()
		return ErrNoUncommittedState
	}
	c.mu.Unlock()

	if err := o.RollbackPrepared(n); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.order[:0:0]
	for _, num := range c.order {
		if num < n {
			kept = append(kept, num)
			continue
		}
		delete(c.overlays, num)
	}
	c.order = kept
	return nil
}

// Reset discards all in-memory uncommitted overlays.
func (c *Chain) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.overlays = make(map[uint64]*Overlay)
	c.order = nil
}

// GetHash returns hash(overlay(n)), or the zero hash if n has no pending
// overlay.
func (c *Chain) GetHash(n uint64) (hashed [32]byte, ok bool) {
	c.mu.Lock()
	o, exists := c.overlays[n]
	c.mu.Unlock()
	if !exists {
		return hashed, false
	}
	return o.Hash(), true
}
