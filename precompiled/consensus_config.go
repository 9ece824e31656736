package precompiled

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/bcos-x/executor-core/blockctx"
	"github.com/bcos-x/executor-core/internal/abi"
	"github.com/bcos-x/executor-core/state"
	"github.com/bcos-x/executor-core/vm"
)

var (
	selAddSealer   = abi.Selector("addSealer(address,uint256)")
	selAddObserver = abi.Selector("addObserver(address)")
	selRemoveNode  = abi.Selector("remove(address)")
)

const consensusTableName = "_sys_consensus_"

// nodeRoleSealer/nodeRoleObserver mirror
// original_source/src/precompiled/ConsensusPrecompiled.cpp's NODE_TYPE_SEALER
// / NODE_TYPE_OBSERVER row markers.
const (
	nodeRoleSealer   = "sealer"
	nodeRoleObserver = "observer"
)

// ConsensusConfig is the system contract that edits the sealer/observer
// node-list table consulted by the (out-of-scope) consensus engine,
// mirroring original_source's ConsensusPrecompiled.
type ConsensusConfig struct{}

func (c *ConsensusConfig) Call(ctx blockctx.PrecompiledContext, input []byte, origin, sender common.Address) (blockctx.PrecompiledResult, error) {
	sel, body, err := abi.SplitCall(input)
	if err != nil {
		return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
	}
	switch sel {
	case selAddSealer:
		vals, err := abi.Decode(body, "address", "uint256")
		if err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
		node := vals[0].(common.Address)
		weight := vals[1]
		entry := state.NewEntry([]string{nodeRoleSealer, stringifyBig(weight)})
		if err := ctx.Storage().SetRow(consensusTableName, node.Hex(), entry); err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
		return blockctx.PrecompiledResult{Gas: 300, Status: vm.StatusNone}, nil

	case selAddObserver:
		vals, err := abi.Decode(body, "address")
		if err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
		node := vals[0].(common.Address)
		entry := state.NewEntry([]string{nodeRoleObserver, "0"})
		if err := ctx.Storage().SetRow(consensusTableName, node.Hex(), entry); err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
		return blockctx.PrecompiledResult{Gas: 300, Status: vm.StatusNone}, nil

	case selRemoveNode:
		vals, err := abi.Decode(body, "address")
		if err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
		node := vals[0].(common.Address)
		if err := ctx.Storage().SetRow(consensusTableName, node.Hex(), state.NewDeletedEntry()); err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
		return blockctx.PrecompiledResult{Gas: 300, Status: vm.StatusNone}, nil

	default:
		return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
	}
}
