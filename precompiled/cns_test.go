package precompiled

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bcos-x/executor-core/internal/abi"
)

func TestCNSInsertAndGetContractAddress(t *testing.T) {
	ctx := newFakeCtx()
	cns := &CNS{}
	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")

	insert := encodeCall(t, selCNSInsert, []string{"string", "string", "address", "string"},
		"Token", "1.0", addr, "[]")
	if _, err := cns.Call(ctx, insert, common.Address{}, common.Address{}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	get := encodeCall(t, selCNSGetContractAddress, []string{"string", "string"}, "Token", "1.0")
	res, err := cns.Call(ctx, get, common.Address{}, common.Address{})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	vals, err := abi.Decode(res.Output, "address")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if vals[0].(common.Address) != addr {
		t.Fatalf("expected %v, got %v", addr, vals[0])
	}
}

func TestCNSSelectByNameCountsVersions(t *testing.T) {
	ctx := newFakeCtx()
	cns := &CNS{}
	addr := common.HexToAddress("0x2222222222222222222222222222222222222222")

	for _, version := range []string{"1.0", "2.0"} {
		insert := encodeCall(t, selCNSInsert, []string{"string", "string", "address", "string"},
			"Token", version, addr, "[]")
		if _, err := cns.Call(ctx, insert, common.Address{}, common.Address{}); err != nil {
			t.Fatalf("insert %s: %v", version, err)
		}
	}

	sel := encodeCall(t, selCNSSelectByName, []string{"string"}, "Token")
	res, err := cns.Call(ctx, sel, common.Address{}, common.Address{})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	vals, _ := abi.Decode(res.Output, "uint256")
	if vals[0].(*big.Int).String() != "2" {
		t.Fatalf("expected 2 versions, got %v", vals[0])
	}
}
