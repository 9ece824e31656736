package precompiled

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/bcos-x/executor-core/blockctx"
	"github.com/bcos-x/executor-core/internal/abi"
	"github.com/bcos-x/executor-core/state"
	"github.com/bcos-x/executor-core/vm"
)

var (
	selSysConfigSetValueByKey = abi.Selector("setValueByKey(string,string)")
	selSysConfigGetValueByKey = abi.Selector("getValueByKey(string)")
)

const sysConfigTableName = "_sys_config_"

// Well-known system config keys, named after the ledger::SYSTEM_KEY_* constants referenced by
// original_source's TransactionExecutor.cpp (e.g. tx_gas_limit).
const (
	SysConfigTxGasLimit   = "tx_gas_limit"
	SysConfigTxCountLimit = "tx_count_limit"
)

// SysConfig is the on-chain governance table for runtime-tunable
// parameters (gas limits, block tx count limits), mirroring
// original_source's SystemConfigPrecompiled pattern referenced throughout
// TransactionExecutor.cpp's getSysConfigByKey calls.
type SysConfig struct{}

func (s *SysConfig) Call(ctx blockctx.PrecompiledContext, input []byte, origin, sender common.Address) (blockctx.PrecompiledResult, error) {
	sel, body, err := abi.SplitCall(input)
	if err != nil {
		return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
	}
	switch sel {
	case selSysConfigSetValueByKey:
		vals, err := abi.Decode(body, "string", "string")
		if err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
		key, value := vals[0].(string), vals[1].(string)
		if err := ctx.Storage().SetRow(sysConfigTableName, key, state.NewEntry([]string{value})); err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
		out, _ := abi.Encode([]string{"int256"}, bigFromInt64(0))
		return blockctx.PrecompiledResult{Gas: 200, Output: out, Status: vm.StatusNone}, nil

	case selSysConfigGetValueByKey:
		vals, err := abi.Decode(body, "string")
		if err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
		key := vals[0].(string)
		e, err := ctx.Storage().GetRow(sysConfigTableName, key)
		if err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
		var value string
		if e != nil {
			value = e.GetField(0)
		}
		out, _ := abi.Encode([]string{"string"}, value)
		return blockctx.PrecompiledResult{Gas: 100, Output: out, Status: vm.StatusNone}, nil

	default:
		return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
	}
}

// ValueByKey reads a system config value directly, without routing through
// the ABI dispatch contract.
func (s *SysConfig) ValueByKey(ctx blockctx.PrecompiledContext, key string) (string, bool) {
	e, err := ctx.Storage().GetRow(sysConfigTableName, key)
	if err != nil || e == nil {
		return "", false
	}
	return e.GetField(0), true
}
