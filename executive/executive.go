package executive

import (
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	gethlog "github.com/ethereum/go-ethereum/log"

	"github.com/bcos-x/executor-core/fiber"
	"github.com/bcos-x/executor-core/metrics"
	"github.com/bcos-x/executor-core/params"
	"github.com/bcos-x/executor-core/state"
	"github.com/bcos-x/executor-core/vm"
)

// Executive drives one transaction's entire call-frame tree. Under Start,
// every external call/create suspends the root fiber (spec §4.B, §4.D
// "externalCall yields the fiber") and resumes only once the Executor
// Facade routes it and calls Push; under Execute (the DAG path's
// synchronous entry point) there is no fiber to suspend, so nested
// calls/creates recurse on the same goroutine instead. Storage reads and
// writes go through the installed KeyLockAcquirer; noopLocker, the only
// acquirer in this package, grants every key at once and never suspends the
// fiber. ContextID/Seq identify this executive in the
// Block Context's registry (spec §4.E).
type Executive struct {
	contextIDVal int64
	seqVal       int64

	overlay  *state.Overlay
	chain    vm.ChainCallback
	schedule params.Schedule
	wasm     bool
	engine   VM
	locker   KeyLockAcquirer
	nonces   *nonceSource

	// yielder and handle are only set while running under Start; nil under
	// Execute's synchronous DAG path.
	yielder *fiber.Yielder
	handle  *fiber.Handle

	recoderStack []*state.Recoder
	subStack     []*vm.SubState
}

// New constructs an Executive for one transaction. Pass a nil locker to
// fall back to sequential-mode's noopLocker.
func New(contextID, seq int64, overlay *state.Overlay, chain vm.ChainCallback, schedule params.Schedule, wasm bool, engine VM, locker KeyLockAcquirer) *Executive {
	if locker == nil {
		locker = defaultLocker
	}
	return &Executive{
		contextIDVal: contextID,
		seqVal:       seq,
		overlay:      overlay,
		chain:        chain,
		schedule:     schedule,
		wasm:         wasm,
		engine:       engine,
		locker:       locker,
		nonces:       &nonceSource{overlay: overlay},
	}
}

func (e *Executive) ContextID() int64 { return e.contextIDVal }
func (e *Executive) Seq() int64       { return e.seqVal }

// Execute runs `params` to completion synchronously on the calling
// goroutine, without spawning a fiber. This is the DAG scheduler's entry
// point (spec §4.D "execute(params) -> result"): a DAG worker already runs
// on its own pool goroutine, so paying for a second cooperative-suspension
// layer underneath it buys nothing. Nested calls/creates still recurse
// in-process rather than becoming separate executives/fibers: a fiber per
// call frame would only multiply goroutines.
func (e *Executive) Execute(params vm.CallParameters) vm.CallParameters {
	return e.runTimed(params, 0)
}

// Start spawns the root fiber for this transaction and drives `params` to
// completion on it, replying with the terminal CallParameters once the
// underlying goroutine yields KindFinished (spec §4.D step 1, §4.B). Every
// externalCall encountered along the way yields KindExternalCall instead of
// recursing in-process; the caller must drain Handle.Push in a loop, routing
// each KindExternalCall through Push before the fiber ever reaches
// KindFinished.
func (e *Executive) Start(params vm.CallParameters) *fiber.Handle {
	h := fiber.Spawn(func(y *fiber.Yielder) {
		e.yielder = y
		result := e.runTimed(params, 0)
		y.Yield(fiber.KindFinished, result)
	})
	e.handle = h
	return h
}

// ExternalCall is the Host Context's entry point for a nested call/create
// (spec's `externalCall(params) -> params`). Running under Start, it
// suspends the fiber and blocks for the routed result; running under
// Execute's synchronous DAG path (no yielder attached) it recurses
// in-process, since the DAG path's "no external calls" property is a
// scheduling guarantee about conflict keys, not a restriction on nested
// EVM calls within a single task.
func (e *Executive) ExternalCall(p vm.CallParameters) (vm.CallParameters, error) {
	if e.yielder == nil {
		return e.run(p, len(e.recoderStack)+1), nil
	}
	p.Kind = vm.CallKindMessage
	p.ContextID = e.contextIDVal
	resp := e.yielder.Yield(fiber.KindExternalCall, p)
	if resp.Err != nil {
		return vm.CallParameters{}, resp.Err
	}
	result, _ := resp.Payload.(vm.CallParameters)
	return result, nil
}

// RunExternalFrame is the scheduler side of externalCall: it runs the
// requested nested frame on this executive's own recoder/sub-state stack
// instead of yielding again, since it IS what the suspended ExternalCall
// call is waiting on. The caller (the Executor Facade) calls this exactly
// once per KindExternalCall it receives, then resumes the fiber via Push.
func (e *Executive) RunExternalFrame(p vm.CallParameters) vm.CallParameters {
	return e.run(p, len(e.recoderStack)+1)
}

// Push delivers a response to this executive's currently pending yield —
// the routed result of an externalCall — resuming its fiber (spec's
// `push(message)` entry point).
func (e *Executive) Push(resp fiber.Response) {
	if e.handle != nil {
		e.handle.Reply(resp)
	}
}

// runTimed wraps run with the teacher's slow-transaction instrumentation
// (core/tx_executor.go largeTxGasLimit pattern): a root-level frame whose
// declared gas exceeds the schedule's threshold is timed and logged.
func (e *Executive) runTimed(p vm.CallParameters, depth int) vm.CallParameters {
	if depth != 0 || p.Gas < e.schedule.LargeTxGasThreshold {
		return e.run(p, depth)
	}
	start := time.Now()
	result := e.run(p, depth)
	gethlog.Info("executive: large transaction executed",
		"contextID", e.contextIDVal, "seq", e.seqVal,
		"gas", p.Gas, "elapsed", time.Since(start), "status", result.Status)
	return result
}

// run executes one call/create frame, recursing for nested DispatchCall/
// DispatchCreate invocations, and returns the Finished/Revert message for
// that frame (spec §4.D step 2-6).
func (e *Executive) run(p vm.CallParameters, depth int) vm.CallParameters {
	if depth == 0 {
		defer e.locker.ReleaseAll()
	}
	result := vm.CallParameters{
		Kind:      vm.CallKindFinished,
		ContextID: e.contextIDVal,
		Seq:       e.seqVal,
	}

	intrinsic := e.schedule.IntrinsicGas(p.Input, p.Create)
	if p.Gas < intrinsic {
		result.Kind = vm.CallKindRevert
		result.Status = vm.StatusOutOfGasLimit
		result.Message = "intrinsic gas exceeds gas supplied"
		metrics.Global.RevertedTransactions.Add(1)
		return result
	}
	remaining := p.Gas - intrinsic

	if p.Create {
		nonce := e.nonces.next(p.Sender)
		addr := deriveCreateAddress(p.Sender, nonce, p.CreateKind, p.CreateSalt, p.Input)
		if existing, _ := e.overlay.GetRow(codeTableName, addr.Hex()); existing != nil {
			result.Kind = vm.CallKindRevert
			result.Status = vm.StatusContractAddressAlreadyUsed
			result.Message = "contract address already used: " + addr.Hex()
			metrics.Global.RevertedTransactions.Add(1)
			return result
		}
		p.Receiver = addr
		p.CodeAddr = addr
		result.NewContractAddress = &addr
	}

	rec := e.overlay.NewRecoder()
	prevRecoder := e.topRecoder()
	e.overlay.SetRecoder(rec)
	e.recoderStack = append(e.recoderStack, rec)

	sub := vm.NewSubState()
	e.subStack = append(e.subStack, sub)

	framep := p
	framep.Gas = remaining

	storage := &lockingStorage{inner: e.overlay, locker: e.locker}
	host := vm.NewHostContext(storage, e.chain, e, sub, framep, e.vmSchedule(), depth)

	code := p.Input
	if p.Create {
		code = maybeInjectGasMeter(p.Input, e.wasm)
	} else {
		code = host.Code()
	}

	vmResult := e.engine.Run(host, code)

	e.recoderStack = e.recoderStack[:len(e.recoderStack)-1]
	e.subStack = e.subStack[:len(e.subStack)-1]
	e.overlay.SetRecoder(prevRecoder)

	status := vm.TranslateVMStatus(vmResult.Status)
	if status != vm.StatusNone {
		e.overlay.Rollback(rec)
		result.Kind = vm.CallKindRevert
		result.Status = status
		result.Output = vmResult.Output
		result.Gas = vmResult.GasLeft
		metrics.Global.RevertedTransactions.Add(1)
		return result
	}

	if p.Create {
		codeHash := crypto.Keccak256Hash(vmResult.Output)
		_ = vm.SetCode(e.overlay, p.Receiver, vmResult.Output, codeHash)
		result.Output = p.Receiver.Bytes()
	} else {
		result.Output = vmResult.Output
	}
	result.Status = vm.StatusNone
	result.Gas = vmResult.GasLeft
	result.Logs = sub.Logs()
	if parent := e.topSub(); parent != nil {
		parent.Merge(sub)
	}
	metrics.Global.ExecutedTransactions.Add(1)
	return result
}

func (e *Executive) topRecoder() *state.Recoder {
	if len(e.recoderStack) == 0 {
		return nil
	}
	return e.recoderStack[len(e.recoderStack)-1]
}

func (e *Executive) topSub() *vm.SubState {
	if len(e.subStack) == 0 {
		return nil
	}
	return e.subStack[len(e.subStack)-1]
}

func (e *Executive) vmSchedule() vm.Schedule {
	return vm.Schedule{MaxCodeSize: e.schedule.MaxCodeSize, CreateDataGas: e.schedule.CreateDataGas}
}

// DispatchCall implements vm.CallDispatcher for a plain message call by
// routing through ExternalCall (spec §4.D "externalCall").
func (e *Executive) DispatchCall(p vm.CallParameters) (vm.CallParameters, error) {
	return e.ExternalCall(p)
}

// DispatchCreate implements vm.CallDispatcher for a nested contract
// creation.
func (e *Executive) DispatchCreate(p vm.CallParameters) (vm.CallParameters, error) {
	p.Create = true
	return e.ExternalCall(p)
}

var _ vm.CallDispatcher = (*Executive)(nil)

const codeTableName = "_sys_code_"
