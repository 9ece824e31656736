package precompiled

import (
	"encoding/hex"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bcos-x/executor-core/blockctx"
	"github.com/bcos-x/executor-core/internal/abi"
	"github.com/bcos-x/executor-core/state"
	"github.com/bcos-x/executor-core/vm"
)

var (
	selRegisterParallelFunction = abi.Selector("registerParallelFunction(address,string,uint256)")
	selUnregisterParallelFunc   = abi.Selector("unregisterParallelFunction(address,string)")
)

const parallelConfigTableName = "_sys_parallel_config_"

// ParallelConfig lets deployed contracts register which of their functions
// are safe for the DAG scheduler to run in parallel and which conflict
// field (by argument position) it should key on, mirroring
// original_source's ParallelConfigPrecompiled
// (src/precompiled/ParallelConfigPrecompiled.cpp). Rows are keyed on
// "address@signature"; the stored criticalFieldIndex is consulted by
// internal/abi's FunctionAbi.Resolve at DAG analysis time.
type ParallelConfig struct{}

func (p *ParallelConfig) Call(ctx blockctx.PrecompiledContext, input []byte, origin, sender common.Address) (blockctx.PrecompiledResult, error) {
	sel, body, err := abi.SplitCall(input)
	if err != nil {
		return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
	}
	switch sel {
	case selRegisterParallelFunction:
		vals, err := abi.Decode(body, "address", "string", "uint256")
		if err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
		addr, signature, fieldIndex := vals[0].(common.Address), vals[1].(string), vals[2]
		key := addr.Hex() + "@" + signature
		entry := state.NewEntry([]string{stringifyBig(fieldIndex)})
		if err := ctx.Storage().SetRow(parallelConfigTableName, key, entry); err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
		selKey := addr.Hex() + "#" + hex.EncodeToString(abi.Selector(signature)[:])
		selEntry := state.NewEntry([]string{signature, stringifyBig(fieldIndex)})
		if err := ctx.Storage().SetRow(parallelConfigTableName, selKey, selEntry); err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
		out, _ := abi.Encode([]string{"int256"}, bigFromInt64(0))
		return blockctx.PrecompiledResult{Gas: 300, Output: out, Status: vm.StatusNone}, nil

	case selUnregisterParallelFunc:
		vals, err := abi.Decode(body, "address", "string")
		if err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
		addr, signature := vals[0].(common.Address), vals[1].(string)
		key := addr.Hex() + "@" + signature
		if err := ctx.Storage().SetRow(parallelConfigTableName, key, state.NewDeletedEntry()); err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
		selKey := addr.Hex() + "#" + hex.EncodeToString(abi.Selector(signature)[:])
		if err := ctx.Storage().SetRow(parallelConfigTableName, selKey, state.NewDeletedEntry()); err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
		out, _ := abi.Encode([]string{"int256"}, bigFromInt64(0))
		return blockctx.PrecompiledResult{Gas: 200, Output: out, Status: vm.StatusNone}, nil

	default:
		return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
	}
}

// LookupCriticalField resolves the registered conflict-field argument
// index for (addr, signature). The DAG package uses LookupBySelector
// instead.
func (p *ParallelConfig) LookupCriticalField(ctx blockctx.PrecompiledContext, addr common.Address, signature string) (int, bool) {
	e, err := ctx.Storage().GetRow(parallelConfigTableName, addr.Hex()+"@"+signature)
	if err != nil || e == nil {
		return 0, false
	}
	n, ok := parseDecimal(e.GetField(0))
	return n, ok
}

// LookupBySelector resolves the registered signature and conflict-field
// index for (addr, selector), the shape the DAG scheduler actually has on
// hand after splitting one call's data (it sees the 4-byte selector, not
// the human-readable signature that produced it).
func (p *ParallelConfig) LookupBySelector(ctx blockctx.PrecompiledContext, addr common.Address, selector [4]byte) (signature string, fieldIndex int, ok bool) {
	e, err := ctx.Storage().GetRow(parallelConfigTableName, addr.Hex()+"#"+hex.EncodeToString(selector[:]))
	if err != nil || e == nil {
		return "", 0, false
	}
	n, nok := parseDecimal(e.GetField(1))
	if !nok {
		return "", 0, false
	}
	return e.GetField(0), n, true
}
