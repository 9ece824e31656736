package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	gethlog "github.com/ethereum/go-ethereum/log"

	"github.com/bcos-x/executor-core/blockctx"
	"github.com/bcos-x/executor-core/dag"
	"github.com/bcos-x/executor-core/executive"
	"github.com/bcos-x/executor-core/fiber"
	"github.com/bcos-x/executor-core/metrics"
	"github.com/bcos-x/executor-core/params"
	"github.com/bcos-x/executor-core/precompiled"
	"github.com/bcos-x/executor-core/state"
	"github.com/bcos-x/executor-core/vm"
)

// ErrClearStorageUnsupported is returned by any operation that would need
// to wipe a contract's entire storage table rather than mutate individual
// rows. The Overlay/Backend pair exposes no such bulk primitive (spec §9
// open question "clearStorage"): resolved as explicitly unsupported rather
// than emulated by a slow full-table scan-and-delete.
var ErrClearStorageUnsupported = errors.New("executor: clearStorage is not supported")

// ErrNoCurrentBlock is returned by any per-transaction operation invoked
// before nextBlockHeader has opened a Block Context.
var ErrNoCurrentBlock = errors.New("executor: no current block header")

// Executor is the Facade (spec §4.H): the one type the consensus/RPC layer
// drives. It owns the Block Context for the in-flight block, the last
// committed overlay for read-only calls, and the DAG scheduler used by
// dagExecuteTransactions.
type Executor struct {
	mu sync.Mutex

	cfg      params.Config
	backend  state.Backend
	seed     map[common.Address]blockctx.Precompiled
	txPool   TxPool
	vmEngine executive.VM

	hashesMu sync.RWMutex
	hashes   map[uint64]common.Hash

	current   *blockctx.BlockContext
	committed *state.Overlay

	seqSeq atomic.Int64
}

// Config bundles the Executor's construction-time dependencies. VM is the
// bytecode interpreter collaborator (spec §1 out-of-scope internals, in-scope
// seam); TxPool is consulted only by FillAndExecute. ExecuteTransaction and
// DagExecuteTransactions take already-materialized messages and do not
// resolve transaction hashes.
type Config struct {
	Params  params.Config
	Backend state.Backend
	VM      executive.VM
	TxPool  TxPool
}

// New constructs an Executor over `cfg`, seeding the fixed precompiled
// registry (spec §4.F) once for the lifetime of the process.
func New(cfg Config) *Executor {
	return &Executor{
		cfg:      cfg.Params,
		backend:  cfg.Backend,
		seed:     precompiled.BuildRegistry(),
		txPool:   cfg.TxPool,
		vmEngine: cfg.VM,
		hashes:   make(map[uint64]common.Hash),
	}
}

// BlockHash implements vm.ChainCallback over the Executor's own record of
// committed block hashes.
func (e *Executor) BlockHash(number uint64) common.Hash {
	e.hashesMu.RLock()
	defer e.hashesMu.RUnlock()
	return e.hashes[number]
}

// NextBlockHeader opens a fresh Block Context for `number`, stacked on the
// last committed overlay (spec §4.H "nextBlockHeader(header) -> ok|err").
func (e *Executor) NextBlockHeader(number uint64, hash common.Hash, timestamp uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current != nil {
		return fmt.Errorf("executor: block %d already open, call commit or rollback first", e.current.Number)
	}
	var parent *state.Overlay
	if e.committed != nil {
		parent = e.committed
	}
	overlay := state.NewOverlay(number, parent, e.backend)
	e.current = blockctx.New(number, hash, timestamp, e.cfg.Schedule, e.cfg.WasmEnabled, overlay, e.seed)
	gethlog.Info("executor: opened block", "number", number, "hash", hash)
	return nil
}

// callPrecompiled dispatches directly to a fixed-address precompiled
// contract (spec §4.F), bypassing the Transaction Executive and VM entirely
// — a precompiled contract is a pure function of (PrecompiledContext,
// input), not a bytecode frame, so it never needs a Host Context, gas
// metering beyond what it reports itself, or a call-frame recoder.
func callPrecompiled(bc *blockctx.BlockContext, contextID int64, cp vm.CallParameters, p blockctx.Precompiled) vm.CallParameters {
	res, err := p.Call(bc, cp.Input, cp.Origin, cp.Sender)
	if err != nil {
		return vm.CallParameters{
			Kind:      vm.CallKindRevert,
			ContextID: contextID,
			Seq:       cp.Seq,
			Status:    vm.StatusPrecompiledError,
			Message:   err.Error(),
		}
	}
	kind := vm.CallKindFinished
	if res.Status != vm.StatusNone {
		kind = vm.CallKindRevert
	}
	return vm.CallParameters{
		Kind:      kind,
		ContextID: contextID,
		Seq:       cp.Seq,
		Output:    res.Output,
		Status:    res.Status,
		Gas:       res.Gas,
	}
}

// newExecutive builds an Executive for one fresh transaction against the
// currently open Block Context.
func (e *Executor) newExecutive() (*executive.Executive, int64, error) {
	if e.current == nil {
		return nil, 0, ErrNoCurrentBlock
	}
	seq := e.seqSeq.Add(1)
	contextID := seq
	exec := executive.New(contextID, seq, e.current.Overlay, e, e.cfg.Schedule, e.cfg.WasmEnabled, e.vmEngine, nil)
	if _, err := e.current.InsertExecutive(contextID, seq, exec); err != nil {
		return nil, 0, err
	}
	return exec, contextID, nil
}

// ExecuteTransaction runs one transaction to completion against the
// currently open Block Context and returns its terminal message (spec
// §4.H "executeTransaction(msg) -> result").
func (e *Executor) ExecuteTransaction(msg ExecutionMessage) (ExecutionMessage, error) {
	e.mu.Lock()
	bc := e.current
	e.mu.Unlock()
	if bc == nil {
		return ExecutionMessage{}, ErrNoCurrentBlock
	}

	cp := toCallParameters(msg)
	if !cp.Create {
		if p, ok := bc.LookupPrecompiled(cp.Receiver); ok {
			seq := e.seqSeq.Add(1)
			cp.ContextID, cp.Seq = seq, seq
			return fromCallParameters(seq, callPrecompiled(bc, seq, cp, p)), nil
		}
	}

	e.mu.Lock()
	exec, contextID, err := e.newExecutive()
	e.mu.Unlock()
	if err != nil {
		return ExecutionMessage{}, err
	}
	defer e.current.RemoveExecutive(contextID, exec.Seq())

	cp.ContextID = contextID

	h := exec.Start(cp)
	defer fiber.Release(h.ID)
	for {
		req := <-h.Push
		switch req.Kind {
		case fiber.KindFinished:
			result := req.Payload.(vm.CallParameters)
			return fromCallParameters(contextID, result), nil
		case fiber.KindExternalCall:
			p := req.Payload.(vm.CallParameters)
			exec.Push(fiber.Response{Payload: e.routeExternalCall(bc, exec, contextID, p)})
		default:
			return ExecutionMessage{}, fmt.Errorf("executor: unexpected fiber message kind %d", req.Kind)
		}
	}
}

// routeExternalCall resolves one externalCall yield (spec §4.D "externalCall
// yields the fiber"): the nested frame is assigned a freshly incremented seq
// (spec §8 scenario S2's "seq-incremented resubmission") and, for the
// duration of the call, registered under that seq in the Block Context's
// executive registry so a concurrent lookup by (contextID, seq) resolves to
// the running executive. It still runs on the parent executive's own
// recoder/sub-state stack — RunExternalFrame, not a second Executive — since
// the overlay tracks only one active recoder at a time and a nested frame's
// undo log must nest under its parent's.
func (e *Executor) routeExternalCall(bc *blockctx.BlockContext, exec *executive.Executive, contextID int64, p vm.CallParameters) vm.CallParameters {
	seq := e.seqSeq.Add(1)
	p.Seq = seq
	if !p.Create {
		if pc, ok := bc.LookupPrecompiled(p.Receiver); ok {
			return callPrecompiled(bc, contextID, p, pc)
		}
	}
	if _, err := bc.InsertExecutive(contextID, seq, exec); err == nil {
		defer bc.RemoveExecutive(contextID, seq)
	}
	return exec.RunExternalFrame(p)
}

// Call runs a read-only message against the last committed state, never
// the in-flight block (spec §4.H "call(msg) -> result; read-only against
// last committed state").
func (e *Executor) Call(msg ExecutionMessage) (ExecutionMessage, error) {
	e.mu.Lock()
	overlay := e.committed
	e.mu.Unlock()
	if overlay == nil {
		overlay = state.NewOverlay(0, nil, e.backend)
	}
	// A throwaway Block Context wraps the committed overlay so the call
	// sees the same precompiled registry and schedule a live block would,
	// without ever being reachable from nextBlockHeader/commit.
	bc := blockctx.New(overlay.Number(), common.Hash{}, 0, e.cfg.Schedule, e.cfg.WasmEnabled, overlay, e.seed)
	seq := e.seqSeq.Add(1)

	cp := toCallParameters(msg)
	cp.StaticCall = true
	cp.ContextID, cp.Seq = seq, seq

	if !cp.Create {
		if p, ok := bc.LookupPrecompiled(cp.Receiver); ok {
			return fromCallParameters(seq, callPrecompiled(bc, seq, cp, p)), nil
		}
	}

	exec := executive.New(seq, seq, bc.Overlay, e, e.cfg.Schedule, e.cfg.WasmEnabled, e.vmEngine, nil)
	result := exec.Execute(cp)
	return fromCallParameters(seq, result), nil
}

// DagExecuteTransactions runs a batch of call messages through the DAG
// scheduler (spec §4.H "dagExecuteTransactions(msgs) -> results"),
// returning one ExecutionMessage per input message in original order, with
// SendBack tasks returned as a MessageTypeSendBack message carrying the
// original call for the caller to retry serially via ExecuteTransaction.
func (e *Executor) DagExecuteTransactions(ctx context.Context, msgs []ExecutionMessage) ([]ExecutionMessage, error) {
	e.mu.Lock()
	bc := e.current
	e.mu.Unlock()
	if bc == nil {
		return nil, ErrNoCurrentBlock
	}

	tasks := make([]dag.Task, len(msgs))
	for i, m := range msgs {
		p := toCallParameters(m)
		p.ContextID = e.seqSeq.Add(1)
		tasks[i] = dag.Task{Index: i, Params: p}
	}

	workers := e.cfg.DAGWorkers
	sched, err := dag.New(dag.NewBlockProvider(bc), dag.NewPrecompiledLookup(bc), dag.NewBlockEnv(bc), workers)
	if err != nil {
		return nil, fmt.Errorf("executor: building DAG scheduler: %w", err)
	}
	defer sched.Release()

	runner := &dagExecutor{e: e, bc: bc}
	results, err := sched.Run(ctx, tasks, runner)
	if err != nil {
		return nil, fmt.Errorf("executor: DAG run: %w", err)
	}

	out := make([]ExecutionMessage, len(results))
	for _, r := range results {
		if r.SendBack {
			metrics.Global.DagSendBack.Add(1)
			sentBack := msgs[r.Index]
			sentBack.Type = MessageTypeSendBack
			out[r.Index] = sentBack
			continue
		}
		out[r.Index] = fromCallParameters(r.Params.ContextID, r.Params)
	}
	return out, nil
}

// dagExecutor adapts the Executor's executive-construction logic to the
// dag.Executor interface the scheduler calls per ready task.
type dagExecutor struct {
	e  *Executor
	bc *blockctx.BlockContext
}

func (d *dagExecutor) Execute(p vm.CallParameters) vm.CallParameters {
	seq := d.e.seqSeq.Add(1)
	p.Seq = seq
	if !p.Create {
		if pc, ok := d.bc.LookupPrecompiled(p.Receiver); ok {
			return callPrecompiled(d.bc, p.ContextID, p, pc)
		}
	}
	exec := executive.New(p.ContextID, seq, d.bc.Overlay, d.e, d.e.cfg.Schedule, d.e.cfg.WasmEnabled, d.e.vmEngine, nil)
	return exec.Execute(p)
}

// GetHash returns the hash recorded for block `n` (spec §4.H "getHash(n) ->
// hash").
func (e *Executor) GetHash(n uint64) common.Hash {
	return e.BlockHash(n)
}

// Prepare stages the current block's mutations durably (spec §4.H
// "prepare(n) -> ok|err", two-phase commit step 1).
func (e *Executor) Prepare(n uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil || e.current.Number != n {
		return fmt.Errorf("executor: no open block %d to prepare", n)
	}
	return e.current.Overlay.Prepare(n)
}

// Commit promotes a prepared block into the backend and records its hash
// (spec §4.H "commit(n) -> ok|err", 2PC step 2).
func (e *Executor) Commit(n uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil || e.current.Number != n {
		return fmt.Errorf("executor: no open block %d to commit", n)
	}
	if err := e.current.Overlay.Commit(n); err != nil {
		return err
	}
	e.hashesMu.Lock()
	e.hashes[n] = e.current.Hash
	e.hashesMu.Unlock()
	e.committed = e.current.Overlay
	e.current.Clear()
	e.current = nil
	return nil
}

// Rollback discards a prepared-but-uncommitted block (spec §4.H
// "rollback(n) -> ok|err").
func (e *Executor) Rollback(n uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil || e.current.Number != n {
		return fmt.Errorf("executor: no open block %d to roll back", n)
	}
	err := e.current.Overlay.RollbackPrepared(n)
	e.current.Clear()
	e.current = nil
	return err
}

// Reset tears down any in-flight block and forgets the last committed
// overlay, returning the Executor to its just-constructed state (spec
// §4.H "reset()").
func (e *Executor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current != nil {
		e.current.Clear()
	}
	e.current = nil
	e.committed = nil
	e.hashesMu.Lock()
	e.hashes = make(map[uint64]common.Hash)
	e.hashesMu.Unlock()
}

// FillAndExecute resolves `hashes` via the configured TxPool and runs each
// one sequentially through ExecuteTransaction, the convenience path the
// consensus layer uses when it only has a block's transaction hash list
// (spec §6.2).
func (e *Executor) FillAndExecute(hashes []common.Hash) ([]ExecutionMessage, error) {
	if e.txPool == nil {
		return nil, errors.New("executor: no TxPool configured")
	}
	txs, err := e.txPool.FillBlock(hashes)
	if err != nil {
		return nil, err
	}
	out := make([]ExecutionMessage, len(txs))
	for i, tx := range txs {
		res, err := e.ExecuteTransaction(tx.Message)
		if err != nil {
			return nil, fmt.Errorf("executor: executing %s: %w", tx.Hash, err)
		}
		out[i] = res
	}
	return out, nil
}
