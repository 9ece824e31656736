package precompiled

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bcos-x/executor-core/internal/abi"
)

func TestAssetRegistryFungibleIssueAndBalance(t *testing.T) {
	ctx := newFakeCtx()
	ar := &AssetRegistry{}
	issuer := common.HexToAddress("0x5555555555555555555555555555555555555555")
	holder := common.HexToAddress("0x6666666666666666666666666666666666666666")

	reg := encodeCall(t, selRegisterAsset, []string{"string", "address", "bool", "uint256", "string"},
		"GOLD", issuer, true, big.NewInt(1000), "gold coin")
	res, err := ar.Call(ctx, reg, common.Address{}, issuer)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	ok, _ := abi.Decode(res.Output, "bool")
	if !ok[0].(bool) {
		t.Fatalf("expected registration success")
	}

	issue := encodeCall(t, selIssueFungibleAsset, []string{"address", "string", "uint256"}, holder, "GOLD", big.NewInt(200))
	res2, err := ar.Call(ctx, issue, common.Address{}, issuer)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	ok2, _ := abi.Decode(res2.Output, "bool")
	if !ok2[0].(bool) {
		t.Fatalf("expected issue success")
	}

	bal := encodeCall(t, selGetAssetBanlance, []string{"address", "string"}, holder, "GOLD")
	res3, err := ar.Call(ctx, bal, common.Address{}, common.Address{})
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	balVals, _ := abi.Decode(res3.Output, "uint256")
	if balVals[0].(*big.Int).Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("expected balance 200, got %v", balVals[0])
	}
}

func TestAssetRegistryIssueByNonIssuerFails(t *testing.T) {
	ctx := newFakeCtx()
	ar := &AssetRegistry{}
	issuer := common.HexToAddress("0x7777777777777777777777777777777777777777")
	stranger := common.HexToAddress("0x8888888888888888888888888888888888888888")
	holder := common.HexToAddress("0x9999999999999999999999999999999999999999")

	reg := encodeCall(t, selRegisterAsset, []string{"string", "address", "bool", "uint256", "string"},
		"SILVER", issuer, true, big.NewInt(100), "silver coin")
	if _, err := ar.Call(ctx, reg, common.Address{}, issuer); err != nil {
		t.Fatalf("register: %v", err)
	}

	issue := encodeCall(t, selIssueFungibleAsset, []string{"address", "string", "uint256"}, holder, "SILVER", big.NewInt(10))
	res, err := ar.Call(ctx, issue, common.Address{}, stranger)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	ok, _ := abi.Decode(res.Output, "bool")
	if ok[0].(bool) {
		t.Fatalf("expected issue by non-issuer to fail")
	}
}
