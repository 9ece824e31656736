// Package dag implements the DAG Scheduler (spec §4.G): given a batch of
// transactions pulled from a block, it decodes each one's statically
// declared conflict fields, builds a dependency graph from the keys those
// fields resolve to, and executes the independent waves of that graph
// concurrently on a worker pool, handing every call down to a synchronous
// executive.Execute rather than a fibered one (spec §4.D note on Execute).
package dag

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"runtime"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"

	"github.com/bcos-x/executor-core/internal/abi"
	"github.com/bcos-x/executor-core/vm"
)

// ABIProvider resolves the declared conflict fields for one (contract,
// selector) pair. The scheduler itself has no opinion on where that
// declaration lives — the executor wires a concrete provider backed by the
// parallel-config precompiled table (spec §6.4 "/sys/parallelConfig/<address>").
type ABIProvider interface {
	Lookup(addr common.Address, selector [4]byte) (abi.FunctionAbi, bool)
}

// ParallelTagger is implemented by a precompiled contract that declares its
// own conflict tags directly (blockctx.ParallelPrecompiled), bypassing the
// ABI-declared-conflict-field machinery entirely — the fixed-address system
// contracts (DagTransfer and friends) already know their own conflict
// tuples without needing a registered FunctionAbi.
type ParallelTagger interface {
	IsParallel() bool
	ParallelTags(input []byte) []string
}

// PrecompiledLookup resolves a fixed address to its ParallelTagger, if any.
// The executor wires this to blockctx.BlockContext.LookupPrecompiled.
type PrecompiledLookup func(addr common.Address) (ParallelTagger, bool)

// BlockEnv resolves the Env(now)/Env(blockNumber) conflict-field subkinds
// against the block a Scheduler is running over (spec §4.G step 2d). The
// executor wires this to the live Block Context's own Number/Timestamp.
type BlockEnv interface {
	BlockNumber() uint64
	Now() uint64
}

// Task is one transaction entering the scheduler, already materialized
// from the tx pool (spec §4.G step 1 "Materialize").
type Task struct {
	Index  int
	Params vm.CallParameters
}

// TaskResult is the outcome of one scheduled task (ava-labs/libevm
// Handler-style result vocabulary, per the parallel precompile Handler
// package this design borrows its Results/TaskResult naming from).
type TaskResult struct {
	Index    int
	Params   vm.CallParameters
	SendBack bool
	Err      error
}

// Results is the scheduler's output: every TaskResult in original input
// order (spec §4.G step 5).
type Results []TaskResult

// Executor is the narrow collaborator the scheduler drives per ready task:
// executive.Executive.Execute, kept local to avoid a dag -> executive
// import of anything beyond this one method.
type Executor interface {
	Execute(params vm.CallParameters) vm.CallParameters
}

// conflictKey namespaces a resolved conflict string by which map it
// belongs to, so a Var key and a Len key can never collide by coincidence
// of string value.
type conflictKey struct {
	kind string
	val  string
}

// node is one task's position in the dependency graph: its declared
// conflict keys, its per-field slot fingerprints, plus the set of earlier
// task indices it must wait on.
type node struct {
	task     Task
	keys     []conflictKey
	slots    []uint64
	deps     map[int]struct{}
	sendBack bool
}

// Scheduler runs one block's worth of transactions through the DAG path.
type Scheduler struct {
	provider    ABIProvider
	precompiled PrecompiledLookup
	env         BlockEnv
	pool        *ants.Pool
}

// New constructs a Scheduler backed by a worker pool of `workers` goroutines
// (spec §4.G "ants.Pool worker pool"). A non-positive `workers` falls back
// to runtime.GOMAXPROCS(0) workers. `precompiled` may be nil if the block has
// no parallel-capable precompiled contracts registered. `env` may be nil if
// no registered function declares an Env(now)/Env(blockNumber) conflict
// field; Env(caller|origin|self) never need it.
func New(provider ABIProvider, precompiled PrecompiledLookup, env BlockEnv, workers int) (*Scheduler, error) {
	opts := ants.WithPreAlloc(false)
	var pool *ants.Pool
	var err error
	if workers > 0 {
		pool, err = ants.NewPool(workers, opts)
	} else {
		pool, err = ants.NewPool(runtime.GOMAXPROCS(0), opts)
	}
	if err != nil {
		return nil, err
	}
	return &Scheduler{provider: provider, precompiled: precompiled, env: env, pool: pool}, nil
}

// Release tears down the underlying worker pool.
func (s *Scheduler) Release() { s.pool.Release() }

// Run decodes conflict fields, builds the dependency DAG, and executes it
// in topological waves against `exec`, returning results in original input
// order (spec §4.G steps 2-5).
func (s *Scheduler) Run(ctx context.Context, tasks []Task, exec Executor) (Results, error) {
	nodes := make([]*node, len(tasks))
	for i, t := range tasks {
		nodes[i] = s.resolve(t)
	}
	s.link(nodes)

	results := make(Results, len(tasks))
	done := make([]bool, len(tasks))

	for remaining := len(tasks); remaining > 0; {
		wave := readyIndices(nodes, done)
		if len(wave) == 0 {
			// Every remaining node is blocked on something not yet done:
			// cannot happen given deps only point to lower indices, but
			// guard against a malformed graph rather than spin forever.
			for i, d := range done {
				if !d {
					results[i] = TaskResult{Index: i, SendBack: true}
					done[i] = true
					remaining--
				}
			}
			continue
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, idx := range wave {
			idx := idx
			n := nodes[idx]
			if n.sendBack {
				results[idx] = TaskResult{Index: idx, Params: n.task.Params, SendBack: true}
				done[idx] = true
				remaining--
				continue
			}
			g.Go(func() error {
				return s.submit(gctx, n, exec, results)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		for _, idx := range wave {
			if !done[idx] {
				done[idx] = true
				remaining--
			}
		}
	}
	return results, nil
}

// submit hands one node's task to the worker pool and blocks the calling
// wave-goroutine until it completes, writing the result in place.
func (s *Scheduler) submit(ctx context.Context, n *node, exec Executor, results Results) error {
	type outcome struct {
		params vm.CallParameters
	}
	out := make(chan outcome, 1)
	task := func() {
		out <- outcome{params: exec.Execute(n.task.Params)}
	}
	if err := s.pool.Submit(task); err != nil {
		return err
	}
	select {
	case o := <-out:
		results[n.task.Index] = TaskResult{Index: n.task.Index, Params: o.params}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readyIndices returns every not-yet-done node whose every dependency is
// already done.
func readyIndices(nodes []*node, done []bool) []int {
	var wave []int
	for i, n := range nodes {
		if done[i] {
			continue
		}
		ready := true
		for dep := range n.deps {
			if !done[dep] {
				ready = false
				break
			}
		}
		if ready {
			wave = append(wave, i)
		}
	}
	return wave
}

// resolve decodes one task's declared conflict keys (spec §4.G step 2). A
// task with no registered ABI declaration, or whose call data fails to
// decode against its declared argument types, is marked SendBack and
// excluded from the dependency graph entirely, to be retried serially by
// the caller.
func (s *Scheduler) resolve(t Task) *node {
	n := &node{task: t, deps: make(map[int]struct{})}

	if t.Params.Create || t.Params.StaticCall {
		// Creates and static calls never conflict with anything else in
		// the batch: a create's target address is fresh, and a static
		// call writes nothing.
		return n
	}
	if len(t.Params.Input) < 4 {
		n.sendBack = true
		return n
	}
	var sel [4]byte
	copy(sel[:], t.Params.Input[:4])

	if s.precompiled != nil {
		if tagger, ok := s.precompiled(t.Params.Receiver); ok {
			if !tagger.IsParallel() {
				n.sendBack = true
				return n
			}
			tags := tagger.ParallelTags(t.Params.Input)
			n.keys = make([]conflictKey, len(tags))
			for i, tag := range tags {
				n.keys[i] = conflictKey{kind: "tag", val: tag}
			}
			return n
		}
	}

	fa, ok := s.provider.Lookup(t.Params.Receiver, sel)
	if !ok {
		n.sendBack = true
		return n
	}
	env := map[int]string{}
	for i, f := range fa.Fields {
		if f.Kind == abi.FieldEnv {
			env[i] = s.resolveEnv(f.Env, t)
		}
	}
	keys, err := fa.Resolve(t.Params.Input[4:], env)
	if err != nil {
		n.sendBack = true
		return n
	}
	n.keys = make([]conflictKey, len(keys))
	for i, k := range keys {
		n.keys[i] = conflictKey{kind: "var", val: k}
	}
	toWord := slotFingerprint(t.Params.Receiver)
	for _, f := range fa.Fields {
		if f.Kind == abi.FieldAll {
			continue
		}
		n.slots = append(n.slots, toWord+f.Slot)
	}
	return n
}

// resolveEnv resolves one Env conflict field to its documented value (spec
// §4.G step 2d): caller and origin both key on the sender address, now and
// blockNumber key on the block the scheduler is running over, and self
// keys on the call's own receiver address.
func (s *Scheduler) resolveEnv(kind abi.EnvKind, t Task) string {
	switch kind {
	case abi.EnvCaller, abi.EnvOrigin:
		return t.Params.Sender.Hex()
	case abi.EnvSelf:
		return t.Params.Receiver.Hex()
	case abi.EnvNow:
		if s.env == nil {
			return ""
		}
		return uint64Hex(s.env.Now())
	case abi.EnvBlockNumber:
		if s.env == nil {
			return ""
		}
		return uint64Hex(s.env.BlockNumber())
	default:
		return ""
	}
}

func uint64Hex(v uint64) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return hex.EncodeToString(buf[:])
}

// slotFingerprint is "hash(to) treated as a machine-word integer" (spec §4.G
// step 3 design note): the first 8 bytes of keccak256(to), big-endian.
func slotFingerprint(addr common.Address) uint64 {
	h := crypto.Keccak256(addr.Bytes())
	return binary.BigEndian.Uint64(h[:8])
}

// link wires each node's deps from the last earlier node that touched any
// of its conflict keys, via both the precise lastWriter map and the coarser
// lastSlot map (spec §4.G step 3 "lastWriter/lastSlot maps, edges from
// lower to higher input index"). lastSlot catches conflicts between two
// different decoded values that nonetheless fingerprint to the same
// (contract, field) domain, which lastWriter's exact-value match alone
// would miss. A node resolving the "*" all-conflict sentinel depends on
// every strictly earlier non-SendBack node, and every later node depends on
// it in turn.
func (s *Scheduler) link(nodes []*node) {
	lastWriter := make(map[conflictKey]int)
	lastSlot := make(map[uint64]int)
	lastAll := -1

	for i, n := range nodes {
		if n.sendBack {
			continue
		}
		if lastAll >= 0 {
			n.deps[lastAll] = struct{}{}
		}
		isAll := false
		for _, k := range n.keys {
			if k.val == "*" {
				isAll = true
				continue
			}
			if dep, ok := lastWriter[k]; ok {
				n.deps[dep] = struct{}{}
			}
		}
		for _, slot := range n.slots {
			if dep, ok := lastSlot[slot]; ok {
				n.deps[dep] = struct{}{}
			}
		}
		if isAll {
			for j := 0; j < i; j++ {
				if !nodes[j].sendBack {
					n.deps[j] = struct{}{}
				}
			}
			lastAll = i
			continue
		}
		for _, k := range n.keys {
			if k.val == "*" {
				continue
			}
			lastWriter[k] = i
		}
		for _, slot := range n.slots {
			lastSlot[slot] = i
		}
	}
}
