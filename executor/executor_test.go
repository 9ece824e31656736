package executor

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/bcos-x/executor-core/internal/abi"
	"github.com/bcos-x/executor-core/params"
	"github.com/bcos-x/executor-core/precompiled"
	"github.com/bcos-x/executor-core/vm"
)

// scriptedVM writes a single storage key on every call, used for plain
// EVM-path executions that don't target a precompiled address.
type scriptedVM struct{}

func (scriptedVM) Run(host vm.HostContext, code []byte) vm.Result {
	_ = host.Set("k", []byte("v"))
	return vm.Result{Status: vm.VMSuccess, GasLeft: host.GasLeft() / 2}
}

func newTestExecutor() *Executor {
	return New(Config{
		Params: params.Config{Schedule: params.DefaultSchedule(), DAGWorkers: 4},
		VM:     scriptedVM{},
	})
}

func TestExecutorLifecycleCommitsAcrossBlocks(t *testing.T) {
	ex := newTestExecutor()

	require.NoError(t, ex.NextBlockHeader(1, common.HexToHash("0xb1"), 100))

	res, err := ex.ExecuteTransaction(ExecutionMessage{
		From:         common.HexToAddress("0xa"),
		To:           common.HexToAddress("0xb"),
		GasAvailable: 1_000_000,
	})
	require.NoError(t, err)
	require.Equal(t, vm.StatusNone, res.Status)

	require.NoError(t, ex.Prepare(1))
	require.NoError(t, ex.Commit(1))
	require.Equal(t, common.HexToHash("0xb1"), ex.GetHash(1))

	require.NoError(t, ex.NextBlockHeader(2, common.HexToHash("0xb2"), 200))
	res2, err := ex.ExecuteTransaction(ExecutionMessage{
		From:         common.HexToAddress("0xc"),
		To:           common.HexToAddress("0xd"),
		GasAvailable: 1_000_000,
	})
	require.NoError(t, err)
	require.Equal(t, vm.StatusNone, res2.Status)
	require.NoError(t, ex.Prepare(2))
	require.NoError(t, ex.Commit(2))
}

func TestExecutorRollbackReopensSameBlock(t *testing.T) {
	ex := newTestExecutor()
	require.NoError(t, ex.NextBlockHeader(1, common.HexToHash("0xb1"), 100))
	require.NoError(t, ex.Prepare(1))
	require.NoError(t, ex.Rollback(1))
	require.NoError(t, ex.NextBlockHeader(1, common.HexToHash("0xb1"), 100))
}

func TestExecutorExecuteTransactionWithoutOpenBlockFails(t *testing.T) {
	ex := newTestExecutor()
	_, err := ex.ExecuteTransaction(ExecutionMessage{})
	require.ErrorIs(t, err, ErrNoCurrentBlock)
}

func TestExecutorCallReadsLastCommittedState(t *testing.T) {
	ex := newTestExecutor()
	require.NoError(t, ex.NextBlockHeader(1, common.HexToHash("0xb1"), 100))

	selUserAdd := abi.Selector("userAdd(string,uint256)")
	body, err := abi.Encode([]string{"string", "uint256"}, "alice", big.NewInt(100))
	require.NoError(t, err)
	input := append(append([]byte(nil), selUserAdd[:]...), body...)

	_, err = ex.ExecuteTransaction(ExecutionMessage{
		To:           precompiled.AddrDagTransfer,
		Data:         input,
		GasAvailable: 1_000_000,
	})
	require.NoError(t, err)
	require.NoError(t, ex.Prepare(1))
	require.NoError(t, ex.Commit(1))

	selBalance := abi.Selector("userBalance(string)")
	balBody, err := abi.Encode([]string{"string"}, "alice")
	require.NoError(t, err)
	balInput := append(append([]byte(nil), selBalance[:]...), balBody...)

	res, err := ex.Call(ExecutionMessage{To: precompiled.AddrDagTransfer, Data: balInput, GasAvailable: 1_000_000})
	require.NoError(t, err)
	vals, err := abi.Decode(res.Data, "int256", "uint256")
	require.NoError(t, err)
	require.Equal(t, 0, vals[1].(*big.Int).Cmp(big.NewInt(100)))
}

func TestExecutorDagExecuteTransactionsRunsBatch(t *testing.T) {
	ex := newTestExecutor()
	require.NoError(t, ex.NextBlockHeader(1, common.HexToHash("0xb1"), 100))

	selUserAdd := abi.Selector("userAdd(string,uint256)")
	encode := func(name string, amount int64) []byte {
		body, err := abi.Encode([]string{"string", "uint256"}, name, big.NewInt(amount))
		require.NoError(t, err)
		return append(append([]byte(nil), selUserAdd[:]...), body...)
	}

	msgs := []ExecutionMessage{
		{To: precompiled.AddrDagTransfer, Data: encode("alice", 10), GasAvailable: 1_000_000},
		{To: precompiled.AddrDagTransfer, Data: encode("bob", 20), GasAvailable: 1_000_000},
	}

	results, err := ex.DagExecuteTransactions(context.Background(), msgs)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		require.Equal(t, vm.StatusNone, r.Status)
	}
}
