package precompiled

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bcos-x/executor-core/internal/abi"
)

func TestDagTransferAddSaveDrawBalance(t *testing.T) {
	ctx := newFakeCtx()
	d := &DagTransfer{}

	add := encodeCall(t, selUserAdd, []string{"string", "uint256"}, "alice", big.NewInt(100))
	res, err := d.Call(ctx, add, common.Address{}, common.Address{})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	codeVals, _ := abi.Decode(res.Output, "int256")
	if codeVals[0].(*big.Int).Sign() != 0 {
		t.Fatalf("expected success, got %v", codeVals[0])
	}

	save := encodeCall(t, selUserSave, []string{"string", "uint256"}, "alice", big.NewInt(50))
	if _, err := d.Call(ctx, save, common.Address{}, common.Address{}); err != nil {
		t.Fatalf("save: %v", err)
	}

	draw := encodeCall(t, selUserDraw, []string{"string", "uint256"}, "alice", big.NewInt(30))
	if _, err := d.Call(ctx, draw, common.Address{}, common.Address{}); err != nil {
		t.Fatalf("draw: %v", err)
	}

	bal := encodeCall(t, selUserBalance, []string{"string"}, "alice")
	res2, err := d.Call(ctx, bal, common.Address{}, common.Address{})
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	balVals, err := abi.Decode(res2.Output, "int256", "uint256")
	if err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	if balVals[1].(*big.Int).Cmp(big.NewInt(120)) != 0 {
		t.Fatalf("expected balance 120, got %v", balVals[1])
	}
}

func TestDagTransferUserTransferMovesBalance(t *testing.T) {
	ctx := newFakeCtx()
	d := &DagTransfer{}

	for _, u := range []string{"alice", "bob"} {
		add := encodeCall(t, selUserAdd, []string{"string", "uint256"}, u, big.NewInt(100))
		if _, err := d.Call(ctx, add, common.Address{}, common.Address{}); err != nil {
			t.Fatalf("add %s: %v", u, err)
		}
	}

	transfer := encodeCall(t, selUserTransfer, []string{"string", "string", "uint256"}, "alice", "bob", big.NewInt(40))
	res, err := d.Call(ctx, transfer, common.Address{}, common.Address{})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	code, _ := abi.Decode(res.Output, "int256")
	if code[0].(*big.Int).Sign() != 0 {
		t.Fatalf("expected success, got %v", code[0])
	}

	aliceBal := encodeCall(t, selUserBalance, []string{"string"}, "alice")
	resA, _ := d.Call(ctx, aliceBal, common.Address{}, common.Address{})
	valsA, _ := abi.Decode(resA.Output, "int256", "uint256")
	if valsA[1].(*big.Int).Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("expected alice balance 60, got %v", valsA[1])
	}

	bobBal := encodeCall(t, selUserBalance, []string{"string"}, "bob")
	resB, _ := d.Call(ctx, bobBal, common.Address{}, common.Address{})
	valsB, _ := abi.Decode(resB.Output, "int256", "uint256")
	if valsB[1].(*big.Int).Cmp(big.NewInt(140)) != 0 {
		t.Fatalf("expected bob balance 140, got %v", valsB[1])
	}
}

func TestDagTransferSelfTransferIsNoop(t *testing.T) {
	ctx := newFakeCtx()
	d := &DagTransfer{}

	add := encodeCall(t, selUserAdd, []string{"string", "uint256"}, "alice", big.NewInt(100))
	if _, err := d.Call(ctx, add, common.Address{}, common.Address{}); err != nil {
		t.Fatalf("add: %v", err)
	}

	transfer := encodeCall(t, selUserTransfer, []string{"string", "string", "uint256"}, "alice", "alice", big.NewInt(10))
	res, err := d.Call(ctx, transfer, common.Address{}, common.Address{})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	code, _ := abi.Decode(res.Output, "int256")
	if code[0].(*big.Int).Sign() != 0 {
		t.Fatalf("expected no-op success, got %v", code[0])
	}

	bal := encodeCall(t, selUserBalance, []string{"string"}, "alice")
	resB, _ := d.Call(ctx, bal, common.Address{}, common.Address{})
	vals, _ := abi.Decode(resB.Output, "int256", "uint256")
	if vals[1].(*big.Int).Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected balance unchanged at 100, got %v", vals[1])
	}
}

func TestDagTransferParallelTags(t *testing.T) {
	d := &DagTransfer{}
	body, err := abi.Encode([]string{"string", "string", "uint256"}, "alice", "bob", big.NewInt(5))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	input := append(append([]byte(nil), selUserTransfer[:]...), body...)
	tags := d.ParallelTags(input)
	if len(tags) != 2 || tags[0] != "alice" || tags[1] != "bob" {
		t.Fatalf("unexpected tags: %v", tags)
	}
}
