// Package blockctx implements the Block Context (spec §4.E): the per-block
// home for the storage overlay, the schedule/fork parameters for that
// block, the (contextID, seq) -> executive registry driving in-flight call
// frames, and the precompiled-contract registry.
package blockctx

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bcos-x/executor-core/params"
	"github.com/bcos-x/executor-core/state"
	"github.com/bcos-x/executor-core/vm"
)

// PrecompiledResult is what a precompiled contract call returns (spec
// §4.F: "{gas, output, status}").
type PrecompiledResult struct {
	Gas    uint64
	Output []byte
	Status vm.Status
}

// PrecompiledContext is the block-context-visible state a precompiled
// contract is a pure function of (spec §4.F "Determinism").
type PrecompiledContext interface {
	Storage() vm.Storage
	BlockNumber() uint64
	GasSchedule() params.Schedule
}

// Precompiled is the contract every precompiled address in the registry
// implements.
type Precompiled interface {
	Call(ctx PrecompiledContext, input []byte, origin, sender common.Address) (PrecompiledResult, error)
}

// ParallelPrecompiled is optionally implemented by a Precompiled that
// participates in the DAG path's conflict analysis (spec §4.F).
type ParallelPrecompiled interface {
	Precompiled
	IsParallel() bool
	ParallelTags(input []byte) []string
}

// ExecutiveHandle is the registry entry for one live call frame: its
// (contextID, seq) key and the frame's own executive.
type ExecutiveHandle struct {
	ContextID int64
	Seq       int64
	Executive Executive
}

// Executive is the narrow surface blockctx needs from executive.Executive,
// kept local to avoid an import cycle (executive never needs to know about
// blockctx; blockctx only needs ContextID/Seq for registry bookkeeping).
type Executive interface {
	ContextID() int64
	Seq() int64
}

// BlockContext is one in-flight block's execution state (spec §4.E).
type BlockContext struct {
	Number    uint64
	Hash      common.Hash
	Timestamp uint64
	Schedule  params.Schedule
	WasmFlag  bool

	Overlay *state.Overlay

	mu         sync.RWMutex
	executives map[[2]int64]*ExecutiveHandle

	precompiled   map[common.Address]Precompiled
	precompiledMu sync.Mutex
	nextSynth     atomic.Uint64
}

// New constructs a Block Context over `overlay`, seeded with the fixed
// precompiled address table built at executor construction (spec §4.F).
func New(number uint64, hash common.Hash, timestamp uint64, schedule params.Schedule, wasm bool, overlay *state.Overlay, seed map[common.Address]Precompiled) *BlockContext {
	reg := make(map[common.Address]Precompiled, len(seed))
	for addr, p := range seed {
		reg[addr] = p
	}
	return &BlockContext{
		Number:      number,
		Hash:        hash,
		Timestamp:   timestamp,
		Schedule:    schedule,
		WasmFlag:    wasm,
		Overlay:     overlay,
		executives:  make(map[[2]int64]*ExecutiveHandle),
		precompiled: reg,
	}
}

// Storage implements PrecompiledContext.
func (b *BlockContext) Storage() vm.Storage { return b.Overlay }

// BlockNumber implements PrecompiledContext.
func (b *BlockContext) BlockNumber() uint64 { return b.Number }

// GasSchedule implements PrecompiledContext.
func (b *BlockContext) GasSchedule() params.Schedule { return b.Schedule }

var _ PrecompiledContext = (*BlockContext)(nil)

// InsertExecutive registers a new live frame. Fails if (contextID, seq)
// already exists (spec §4.E).
func (b *BlockContext) InsertExecutive(contextID, seq int64, exec Executive) (*ExecutiveHandle, error) {
	key := [2]int64{contextID, seq}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.executives[key]; exists {
		return nil, fmt.Errorf("blockctx: executive (%d,%d) already registered", contextID, seq)
	}
	h := &ExecutiveHandle{ContextID: contextID, Seq: seq, Executive: exec}
	b.executives[key] = h
	return h, nil
}

// GetExecutive looks up a live frame by (contextID, seq).
func (b *BlockContext) GetExecutive(contextID, seq int64) (*ExecutiveHandle, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	h, ok := b.executives[[2]int64{contextID, seq}]
	return h, ok
}

// RemoveExecutive drops a completed frame from the registry.
func (b *BlockContext) RemoveExecutive(contextID, seq int64) {
	b.mu.Lock()
	delete(b.executives, [2]int64{contextID, seq})
	b.mu.Unlock()
}

// Clear tears down every live executive, called at end-of-block (spec
// §4.E).
func (b *BlockContext) Clear() {
	b.mu.Lock()
	b.executives = make(map[[2]int64]*ExecutiveHandle)
	b.mu.Unlock()
}

// LiveCount reports how many frames are currently registered, mainly for
// tests and metrics.
func (b *BlockContext) LiveCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.executives)
}

// LookupPrecompiled resolves a precompiled contract by its fixed or
// synthesized address.
func (b *BlockContext) LookupPrecompiled(addr common.Address) (Precompiled, bool) {
	b.precompiledMu.Lock()
	defer b.precompiledMu.Unlock()
	p, ok := b.precompiled[addr]
	return p, ok
}

// RegisterPrecompiled assigns a fresh synthesized address — a counter
// printed as 20-byte hex, offset well past the fixed/system address space —
// and binds it for the lifetime of the block (spec §4.E
// "registerPrecompiled(p) -> address").
func (b *BlockContext) RegisterPrecompiled(p Precompiled) common.Address {
	b.precompiledMu.Lock()
	defer b.precompiledMu.Unlock()
	n := b.nextSynth.Add(1)
	var addr common.Address
	// Reserve the low byte range [0,0x10000) for the fixed EVM/system
	// tables; the counter starts at 1, so synthesized addresses start at
	// 0x10001.
	synth := uint64(0x10000) + n
	addr[len(addr)-8] = byte(synth >> 56)
	addr[len(addr)-7] = byte(synth >> 48)
	addr[len(addr)-6] = byte(synth >> 40)
	addr[len(addr)-5] = byte(synth >> 32)
	addr[len(addr)-4] = byte(synth >> 24)
	addr[len(addr)-3] = byte(synth >> 16)
	addr[len(addr)-2] = byte(synth >> 8)
	addr[len(addr)-1] = byte(synth)
	b.precompiled[addr] = p
	return addr
}
