package precompiled

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/bcos-x/executor-core/blockctx"
	"github.com/bcos-x/executor-core/internal/abi"
	"github.com/bcos-x/executor-core/state"
	"github.com/bcos-x/executor-core/vm"
)

var (
	selCreateTable = abi.Selector("createTable(string,string,string)")
	selOpenTable   = abi.Selector("openTable(string)")
)

// TableFactory is the system contract user code calls to create and open
// application tables, mirroring original_source/libprecompiled's
// TableFactoryPrecompiled (src/precompiled/TableFactoryPrecompiled.cpp)
// re-expressed over this module's state.Overlay rather than FISCO BCOS's
// native TableStorage.
type TableFactory struct{}

func (t *TableFactory) Call(ctx blockctx.PrecompiledContext, input []byte, origin, sender common.Address) (blockctx.PrecompiledResult, error) {
	sel, body, err := abi.SplitCall(input)
	if err != nil {
		return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
	}
	switch sel {
	case selCreateTable:
		return t.createTable(ctx, body)
	case selOpenTable:
		return t.openTable(ctx, body)
	default:
		return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
	}
}

func (t *TableFactory) createTable(ctx blockctx.PrecompiledContext, body []byte) (blockctx.PrecompiledResult, error) {
	vals, err := abi.Decode(body, "string", "string", "string")
	if err != nil {
		return blockctx.PrecompiledResult{Gas: 1000, Status: vm.StatusPrecompiledError}, nil
	}
	name := vals[0].(string)
	keyField := vals[1].(string)
	valueFields := vals[2].(string)
	if _, err := ctx.Storage().CreateTable(name, []string{keyField, valueFields}); err != nil {
		return t.encodeResult(1000, -1)
	}
	return t.encodeResult(1000, 0)
}

func (t *TableFactory) openTable(ctx blockctx.PrecompiledContext, body []byte) (blockctx.PrecompiledResult, error) {
	vals, err := abi.Decode(body, "string")
	if err != nil {
		return blockctx.PrecompiledResult{Gas: 500, Status: vm.StatusPrecompiledError}, nil
	}
	name := vals[0].(string)
	if _, err := ctx.Storage().OpenTable(name); err != nil {
		return t.encodeResult(500, -1)
	}
	return t.encodeResult(500, 0)
}

func (t *TableFactory) encodeResult(gas uint64, code int64) (blockctx.PrecompiledResult, error) {
	out, err := abi.Encode([]string{"int256"}, bigFromInt64(code))
	if err != nil {
		return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
	}
	return blockctx.PrecompiledResult{Gas: gas, Output: out, Status: vm.StatusNone}, nil
}

var (
	selSelect = abi.Selector("select(string,string)")
	selInsert = abi.Selector("insert(string,string,string)")
	selUpdate = abi.Selector("update(string,string,string)")
	selRemove = abi.Selector("remove(string,string)")
)

// KVTable is a simpler key/single-value system contract over the table
// named in each call's first argument, mirroring
// original_source/libprecompiled/extension/KVTablePrecompiled's get/set
// shape but generalized to select/insert/update/remove over this module's
// Entry rows.
type KVTable struct{}

const kvTableName = "_kv_table_"

func (k *KVTable) Call(ctx blockctx.PrecompiledContext, input []byte, origin, sender common.Address) (blockctx.PrecompiledResult, error) {
	sel, body, err := abi.SplitCall(input)
	if err != nil {
		return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
	}
	switch sel {
	case selSelect:
		vals, err := abi.Decode(body, "string", "string")
		if err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
		table, key := vals[0].(string), vals[1].(string)
		e, err := ctx.Storage().GetRow(table, key)
		if err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
		var value string
		if e != nil {
			value = e.GetField(0)
		}
		out, _ := abi.Encode([]string{"string"}, value)
		return blockctx.PrecompiledResult{Gas: 100, Output: out, Status: vm.StatusNone}, nil
	case selInsert, selUpdate:
		vals, err := abi.Decode(body, "string", "string", "string")
		if err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
		table, key, value := vals[0].(string), vals[1].(string), vals[2].(string)
		if err := ctx.Storage().SetRow(table, key, state.NewEntry([]string{value})); err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
		return blockctx.PrecompiledResult{Gas: 200, Status: vm.StatusNone}, nil
	case selRemove:
		vals, err := abi.Decode(body, "string", "string")
		if err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
		table, key := vals[0].(string), vals[1].(string)
		if err := ctx.Storage().SetRow(table, key, state.NewDeletedEntry()); err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
		return blockctx.PrecompiledResult{Gas: 100, Status: vm.StatusNone}, nil
	default:
		return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
	}
}
