package abi

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	data, err := Encode([]string{"string", "uint256"}, "alice", big.NewInt(100))
	require.NoError(t, err)

	vals, err := Decode(data, "string", "uint256")
	require.NoError(t, err)
	require.Equal(t, "alice", vals[0])
}

func TestSplitCallRejectsShortData(t *testing.T) {
	_, _, err := SplitCall([]byte{0x01, 0x02})
	require.Error(t, err)
}

func TestConflictFieldVarResolvesArgument(t *testing.T) {
	fa := FunctionAbi{
		Signature: "userTransfer(string,string,uint256)",
		Fields: []ConflictField{
			{Kind: FieldVar, ArgIndex: 0, ArgTypes: []string{"string", "string", "uint256"}},
			{Kind: FieldVar, ArgIndex: 1, ArgTypes: []string{"string", "string", "uint256"}},
		},
	}
	data, err := Encode([]string{"string", "string", "uint256"}, "alice", "bob", big.NewInt(5))
	require.NoError(t, err)

	keys, err := fa.Resolve(data, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "bob"}, keys)
}

func TestConflictFieldAllShortCircuits(t *testing.T) {
	fa := FunctionAbi{Fields: []ConflictField{{Kind: FieldAll}}}
	keys, err := fa.Resolve(nil, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"*"}, keys)
}

func TestCachePutGet(t *testing.T) {
	c, err := NewCache(4)
	require.NoError(t, err)
	addr := common.HexToAddress("0xc0ffee")
	sel := Selector("userAdd(string,uint256)")
	c.Put(addr, FunctionAbi{Signature: "userAdd(string,uint256)", Selector: sel})

	got, ok := c.Get(addr, sel)
	require.True(t, ok)
	require.Equal(t, "userAdd(string,uint256)", got.Signature)
}
