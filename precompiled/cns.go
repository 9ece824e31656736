package precompiled

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/bcos-x/executor-core/blockctx"
	"github.com/bcos-x/executor-core/internal/abi"
	"github.com/bcos-x/executor-core/state"
	"github.com/bcos-x/executor-core/vm"
)

var (
	selCNSInsert             = abi.Selector("insert(string,string,address,string)")
	selCNSSelectByName       = abi.Selector("selectByName(string)")
	selCNSGetContractAddress = abi.Selector("getContractAddress(string,string)")
)

const cnsTableName = "_sys_cns_"

// CNS implements the Contract Naming Service: name+version -> address+abi
// bindings, mirroring original_source's CNSPrecompiled
// (src/precompiled/CNSPrecompiled.cpp), keyed here as "name@version" rows
// of the cns table instead of its native multi-entry table scan.
type CNS struct{}

func (c *CNS) Call(ctx blockctx.PrecompiledContext, input []byte, origin, sender common.Address) (blockctx.PrecompiledResult, error) {
	sel, body, err := abi.SplitCall(input)
	if err != nil {
		return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
	}
	switch sel {
	case selCNSInsert:
		vals, err := abi.Decode(body, "string", "string", "address", "string")
		if err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
		name, version, addr, contractAbi := vals[0].(string), vals[1].(string), vals[2].(common.Address), vals[3].(string)
		key := name + "@" + version
		entry := state.NewEntry([]string{addr.Hex(), contractAbi})
		if err := ctx.Storage().SetRow(cnsTableName, key, entry); err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
		out, _ := abi.Encode([]string{"int256"}, bigFromInt64(0))
		return blockctx.PrecompiledResult{Gas: 500, Output: out, Status: vm.StatusNone}, nil

	case selCNSGetContractAddress:
		vals, err := abi.Decode(body, "string", "string")
		if err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
		name, version := vals[0].(string), vals[1].(string)
		e, err := ctx.Storage().GetRow(cnsTableName, name+"@"+version)
		if err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
		var addr common.Address
		if e != nil {
			addr = common.HexToAddress(e.GetField(0))
		}
		out, _ := abi.Encode([]string{"address"}, addr)
		return blockctx.PrecompiledResult{Gas: 200, Output: out, Status: vm.StatusNone}, nil

	case selCNSSelectByName:
		vals, err := abi.Decode(body, "string")
		if err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
		name := vals[0].(string)
		keys, err := ctx.Storage().GetPrimaryKeys(cnsTableName, func(k string) bool {
			return len(k) > len(name) && k[:len(name)+1] == name+"@"
		})
		if err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
		out, _ := abi.Encode([]string{"uint256"}, bigFromInt64(int64(len(keys))))
		return blockctx.PrecompiledResult{Gas: 200, Output: out, Status: vm.StatusNone}, nil

	default:
		return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
	}
}
