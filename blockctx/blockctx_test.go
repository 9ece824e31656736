package blockctx

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/bcos-x/executor-core/params"
	"github.com/bcos-x/executor-core/state"
	"github.com/bcos-x/executor-core/vm"
)

type fakeExecutive struct{ contextID, seq int64 }

func (f fakeExecutive) ContextID() int64 { return f.contextID }
func (f fakeExecutive) Seq() int64       { return f.seq }

func newBlockContext() *BlockContext {
	overlay := state.NewOverlay(1, nil, nil)
	return New(1, common.Hash{}, 0, params.DefaultSchedule(), false, overlay, nil)
}

func TestInsertAndGetExecutive(t *testing.T) {
	bc := newBlockContext()
	_, err := bc.InsertExecutive(1, 1, fakeExecutive{1, 1})
	require.NoError(t, err)

	h, ok := bc.GetExecutive(1, 1)
	require.True(t, ok)
	require.Equal(t, int64(1), h.Executive.ContextID())
}

func TestInsertExecutiveDuplicateFails(t *testing.T) {
	bc := newBlockContext()
	_, err := bc.InsertExecutive(1, 1, fakeExecutive{1, 1})
	require.NoError(t, err)
	_, err = bc.InsertExecutive(1, 1, fakeExecutive{1, 1})
	require.Error(t, err)
}

func TestClearRemovesAllExecutives(t *testing.T) {
	bc := newBlockContext()
	_, _ = bc.InsertExecutive(1, 1, fakeExecutive{1, 1})
	_, _ = bc.InsertExecutive(1, 2, fakeExecutive{1, 2})
	require.Equal(t, 2, bc.LiveCount())
	bc.Clear()
	require.Equal(t, 0, bc.LiveCount())
}

type fakePrecompiled struct{}

func (fakePrecompiled) Call(ctx PrecompiledContext, input []byte, origin, sender common.Address) (PrecompiledResult, error) {
	return PrecompiledResult{Status: vm.StatusNone}, nil
}

func TestRegisterPrecompiledAssignsStableSynthAddress(t *testing.T) {
	bc := newBlockContext()
	addr1 := bc.RegisterPrecompiled(fakePrecompiled{})
	addr2 := bc.RegisterPrecompiled(fakePrecompiled{})
	require.NotEqual(t, addr1, addr2)

	p, ok := bc.LookupPrecompiled(addr1)
	require.True(t, ok)
	require.NotNil(t, p)
}

func TestPrecompiledContextView(t *testing.T) {
	bc := newBlockContext()
	var ctx PrecompiledContext = bc
	require.Equal(t, uint64(1), ctx.BlockNumber())
	require.NotNil(t, ctx.Storage())
}
