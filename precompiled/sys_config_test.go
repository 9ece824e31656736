package precompiled

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bcos-x/executor-core/internal/abi"
)

func TestSysConfigSetThenGet(t *testing.T) {
	ctx := newFakeCtx()
	sc := &SysConfig{}

	set := encodeCall(t, selSysConfigSetValueByKey, []string{"string", "string"}, SysConfigTxGasLimit, "3000000")
	if _, err := sc.Call(ctx, set, common.Address{}, common.Address{}); err != nil {
		t.Fatalf("set: %v", err)
	}

	get := encodeCall(t, selSysConfigGetValueByKey, []string{"string"}, SysConfigTxGasLimit)
	res, err := sc.Call(ctx, get, common.Address{}, common.Address{})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	vals, err := abi.Decode(res.Output, "string")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if vals[0].(string) != "3000000" {
		t.Fatalf("expected 3000000, got %v", vals[0])
	}

	if v, ok := sc.ValueByKey(ctx, SysConfigTxGasLimit); !ok || v != "3000000" {
		t.Fatalf("ValueByKey mismatch: %v %v", v, ok)
	}
}

func TestConsensusConfigAddSealerThenRemove(t *testing.T) {
	ctx := newFakeCtx()
	cc := &ConsensusConfig{}
	node := common.HexToAddress("0x3333333333333333333333333333333333333333")

	add := encodeCall(t, selAddSealer, []string{"address", "uint256"}, node, bigFromInt64(10))
	if _, err := cc.Call(ctx, add, common.Address{}, common.Address{}); err != nil {
		t.Fatalf("addSealer: %v", err)
	}
	row, err := ctx.Storage().GetRow(consensusTableName, node.Hex())
	if err != nil || row == nil {
		t.Fatalf("expected sealer row, err=%v row=%v", err, row)
	}
	if row.GetField(0) != nodeRoleSealer {
		t.Fatalf("expected sealer role, got %v", row.GetField(0))
	}

	remove := encodeCall(t, selRemoveNode, []string{"address"}, node)
	if _, err := cc.Call(ctx, remove, common.Address{}, common.Address{}); err != nil {
		t.Fatalf("remove: %v", err)
	}
	row2, err := ctx.Storage().GetRow(consensusTableName, node.Hex())
	if err != nil {
		t.Fatalf("get after remove: %v", err)
	}
	if row2 != nil {
		t.Fatalf("expected tombstoned row to read as nil, got %v", row2)
	}
}

func TestParallelConfigRegisterAndLookup(t *testing.T) {
	ctx := newFakeCtx()
	pc := &ParallelConfig{}
	addr := common.HexToAddress("0x4444444444444444444444444444444444444444")

	reg := encodeCall(t, selRegisterParallelFunction, []string{"address", "string", "uint256"}, addr, "transfer(address,uint256)", bigFromInt64(1))
	if _, err := pc.Call(ctx, reg, common.Address{}, common.Address{}); err != nil {
		t.Fatalf("register: %v", err)
	}

	idx, ok := pc.LookupCriticalField(ctx, addr, "transfer(address,uint256)")
	if !ok || idx != 1 {
		t.Fatalf("expected field index 1, got %v ok=%v", idx, ok)
	}

	sig, idx2, ok2 := pc.LookupBySelector(ctx, addr, abi.Selector("transfer(address,uint256)"))
	if !ok2 || sig != "transfer(address,uint256)" || idx2 != 1 {
		t.Fatalf("expected selector lookup to resolve, got sig=%q idx=%v ok=%v", sig, idx2, ok2)
	}

	unreg := encodeCall(t, selUnregisterParallelFunc, []string{"address", "string"}, addr, "transfer(address,uint256)")
	if _, err := pc.Call(ctx, unreg, common.Address{}, common.Address{}); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	if _, _, ok3 := pc.LookupBySelector(ctx, addr, abi.Selector("transfer(address,uint256)")); ok3 {
		t.Fatalf("expected selector lookup to be gone after unregister")
	}
}
