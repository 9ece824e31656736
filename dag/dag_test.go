package dag

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/bcos-x/executor-core/blockctx"
	"github.com/bcos-x/executor-core/internal/abi"
	"github.com/bcos-x/executor-core/params"
	"github.com/bcos-x/executor-core/precompiled"
	"github.com/bcos-x/executor-core/state"
	"github.com/bcos-x/executor-core/vm"
)

// precompiledExecutor executes a frame against the registered
// precompiled contract instead of the (unused) fakeVM, the way
// blockctx-backed executive wiring would in the full executor.
type precompiledExecutor struct {
	bc *blockctx.BlockContext
}

func (p *precompiledExecutor) Execute(params vm.CallParameters) vm.CallParameters {
	pc, ok := p.bc.LookupPrecompiled(params.Receiver)
	if !ok {
		return vm.CallParameters{Kind: vm.CallKindRevert, Status: vm.StatusCallAddressError}
	}
	res, err := pc.Call(p.bc, params.Input, params.Origin, params.Sender)
	if err != nil {
		return vm.CallParameters{Kind: vm.CallKindRevert, Status: vm.StatusPrecompiledError}
	}
	return vm.CallParameters{
		Kind:   vm.CallKindFinished,
		Output: res.Output,
		Status: res.Status,
		Gas:    res.Gas,
	}
}

func newTestBlockContext() *blockctx.BlockContext {
	overlay := state.NewOverlay(1, nil, nil)
	seed := map[common.Address]blockctx.Precompiled{
		precompiled.AddrDagTransfer: &precompiled.DagTransfer{},
	}
	return blockctx.New(1, common.Hash{}, 0, params.DefaultSchedule(), false, overlay, seed)
}

func encode(t *testing.T, sel [4]byte, types []string, vals ...interface{}) []byte {
	t.Helper()
	body, err := abi.Encode(types, vals...)
	require.NoError(t, err)
	return append(append([]byte(nil), sel[:]...), body...)
}

func TestSchedulerRunsIndependentTransfersInParallel(t *testing.T) {
	bc := newTestBlockContext()
	exec := &precompiledExecutor{bc: bc}

	selUserAdd := abi.Selector("userAdd(string,uint256)")
	selUserTransfer := abi.Selector("userTransfer(string,string,uint256)")

	seed := []Task{
		{Index: 0, Params: vm.CallParameters{Receiver: precompiled.AddrDagTransfer, Input: encode(t, selUserAdd, []string{"string", "uint256"}, "alice", big.NewInt(100))}},
		{Index: 1, Params: vm.CallParameters{Receiver: precompiled.AddrDagTransfer, Input: encode(t, selUserAdd, []string{"string", "uint256"}, "bob", big.NewInt(100))}},
		{Index: 2, Params: vm.CallParameters{Receiver: precompiled.AddrDagTransfer, Input: encode(t, selUserAdd, []string{"string", "uint256"}, "carol", big.NewInt(100))}},
	}

	sched, err := New(NewBlockProvider(bc), NewPrecompiledLookup(bc), NewBlockEnv(bc), 4)
	require.NoError(t, err)
	defer sched.Release()

	seedResults, err := sched.Run(context.Background(), seed, exec)
	require.NoError(t, err)
	for _, r := range seedResults {
		require.False(t, r.SendBack)
		require.Equal(t, vm.StatusNone, r.Params.Status)
	}

	transfers := []Task{
		{Index: 0, Params: vm.CallParameters{Receiver: precompiled.AddrDagTransfer, Input: encode(t, selUserTransfer, []string{"string", "string", "uint256"}, "alice", "bob", big.NewInt(10))}},
		{Index: 1, Params: vm.CallParameters{Receiver: precompiled.AddrDagTransfer, Input: encode(t, selUserTransfer, []string{"string", "string", "uint256"}, "carol", "bob", big.NewInt(20))}},
	}

	results, err := sched.Run(context.Background(), transfers, exec)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		require.False(t, r.SendBack)
		require.Equal(t, vm.StatusNone, r.Params.Status)
	}

	selUserBalance := abi.Selector("userBalance(string)")
	balCall := vm.CallParameters{Receiver: precompiled.AddrDagTransfer, Input: encode(t, selUserBalance, []string{"string"}, "bob")}
	balResult := exec.Execute(balCall)
	vals, err := abi.Decode(balResult.Output, "int256", "uint256")
	require.NoError(t, err)
	require.Equal(t, 0, vals[1].(*big.Int).Cmp(big.NewInt(130)))
}

func TestSchedulerSerializesConflictingTransfersOnSameUser(t *testing.T) {
	bc := newTestBlockContext()
	exec := &precompiledExecutor{bc: bc}

	selUserAdd := abi.Selector("userAdd(string,uint256)")
	selUserTransfer := abi.Selector("userTransfer(string,string,uint256)")

	seed := []Task{
		{Index: 0, Params: vm.CallParameters{Receiver: precompiled.AddrDagTransfer, Input: encode(t, selUserAdd, []string{"string", "uint256"}, "alice", big.NewInt(100))}},
	}
	sched, err := New(NewBlockProvider(bc), NewPrecompiledLookup(bc), NewBlockEnv(bc), 4)
	require.NoError(t, err)
	defer sched.Release()
	_, err = sched.Run(context.Background(), seed, exec)
	require.NoError(t, err)

	conflicting := []Task{
		{Index: 0, Params: vm.CallParameters{Receiver: precompiled.AddrDagTransfer, Input: encode(t, selUserTransfer, []string{"string", "string", "uint256"}, "alice", "bob", big.NewInt(10))}},
		{Index: 1, Params: vm.CallParameters{Receiver: precompiled.AddrDagTransfer, Input: encode(t, selUserTransfer, []string{"string", "string", "uint256"}, "alice", "carol", big.NewInt(10))}},
	}
	results, err := sched.Run(context.Background(), conflicting, exec)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		require.False(t, r.SendBack)
	}

	selUserBalance := abi.Selector("userBalance(string)")
	balCall := vm.CallParameters{Receiver: precompiled.AddrDagTransfer, Input: encode(t, selUserBalance, []string{"string"}, "alice")}
	vals, err := abi.Decode(exec.Execute(balCall).Output, "int256", "uint256")
	require.NoError(t, err)
	require.Equal(t, 0, vals[1].(*big.Int).Cmp(big.NewInt(80)))
}

type blockEnvStub struct{ number, timestamp uint64 }

func (b blockEnvStub) BlockNumber() uint64 { return b.number }
func (b blockEnvStub) Now() uint64         { return b.timestamp }

func TestResolveEnvUsesDocumentedValuePerSubkind(t *testing.T) {
	s := &Scheduler{env: blockEnvStub{number: 7, timestamp: 99}}
	task := Task{Params: vm.CallParameters{
		Sender:   common.HexToAddress("0xaaaa"),
		Receiver: common.HexToAddress("0xbbbb"),
	}}
	require.Equal(t, task.Params.Sender.Hex(), s.resolveEnv(abi.EnvCaller, task))
	require.Equal(t, task.Params.Sender.Hex(), s.resolveEnv(abi.EnvOrigin, task))
	require.Equal(t, task.Params.Receiver.Hex(), s.resolveEnv(abi.EnvSelf, task))
	require.Equal(t, uint64Hex(99), s.resolveEnv(abi.EnvNow, task))
	require.Equal(t, uint64Hex(7), s.resolveEnv(abi.EnvBlockNumber, task))
}

type fakeProvider struct{ fa abi.FunctionAbi }

func (f fakeProvider) Lookup(addr common.Address, sel [4]byte) (abi.FunctionAbi, bool) {
	return f.fa, true
}

// TestLinkAddsSlotEdgeAcrossDifferentValuesSameField proves the lastSlot
// edge: two calls touching the same declared field on the same contract but
// decoding to different values would never collide in lastWriter (distinct
// conflictKey.val), yet must still serialize because they fingerprint to
// the same (contract, field) domain.
func TestLinkAddsSlotEdgeAcrossDifferentValuesSameField(t *testing.T) {
	sel := abi.Selector("set(string)")
	fa := abi.FunctionAbi{
		Signature: "set(string)",
		Selector:  sel,
		Fields:    []abi.ConflictField{{Kind: abi.FieldVar, ArgIndex: 0, ArgTypes: []string{"string"}, Slot: 1}},
	}
	s := &Scheduler{provider: fakeProvider{fa: fa}}

	addr := common.HexToAddress("0xc0ffee")
	encodeCall := func(v string) []byte {
		body, err := abi.Encode([]string{"string"}, v)
		require.NoError(t, err)
		return append(append([]byte(nil), sel[:]...), body...)
	}

	tasks := []Task{
		{Index: 0, Params: vm.CallParameters{Receiver: addr, Input: encodeCall("alice")}},
		{Index: 1, Params: vm.CallParameters{Receiver: addr, Input: encodeCall("bob")}},
	}
	nodes := make([]*node, len(tasks))
	for i, tk := range tasks {
		nodes[i] = s.resolve(tk)
	}
	s.link(nodes)

	require.NotEmpty(t, nodes[0].slots)
	_, dependsOnFirst := nodes[1].deps[0]
	require.True(t, dependsOnFirst, "same-slot, different-value calls must still serialize via lastSlot")
}

func TestSchedulerSendsBackUndecodableCalls(t *testing.T) {
	bc := newTestBlockContext()
	exec := &precompiledExecutor{bc: bc}

	sched, err := New(NewBlockProvider(bc), NewPrecompiledLookup(bc), NewBlockEnv(bc), 2)
	require.NoError(t, err)
	defer sched.Release()

	tasks := []Task{
		{Index: 0, Params: vm.CallParameters{Receiver: common.HexToAddress("0xdeadbeef"), Input: []byte{0x01, 0x02}}},
	}
	results, err := sched.Run(context.Background(), tasks, exec)
	require.NoError(t, err)
	require.True(t, results[0].SendBack)
}
