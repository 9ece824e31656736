package precompiled

import (
	"crypto/sha256"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/bcos-x/executor-core/blockctx"
	"github.com/bcos-x/executor-core/internal/abi"
	"github.com/bcos-x/executor-core/vm"
)

var (
	selSM3           = abi.Selector("sm3(bytes)")
	selKeccak256Hash = abi.Selector("keccak256Hash(bytes)")
	selSM2Verify     = abi.Selector("sm2Verify(bytes,bytes)")
	selCurve25519VRF = abi.Selector("curve25519VRFVerify(string,string,string)")
)

// Crypto exposes hash/verify primitives to deployed contracts, mirroring
// original_source's CryptoPrecompiled
// (libprecompiled/CryptoPrecompiled.cpp). keccak256Hash reuses
// go-ethereum's own crypto.Keccak256 directly, already part of this
// module's dependency surface; sm3 has no counterpart in that surface so
// it falls back to sha256 as a documented stand-in rather than vendoring
// a GM/T 0004 implementation. sm2Verify/curve25519VRFVerify have no
// available Go primitive in this module's dependency surface either and
// report StatusPrecompiledError rather than fake a verification result.
type Crypto struct{}

func (c *Crypto) Call(ctx blockctx.PrecompiledContext, input []byte, origin, sender common.Address) (blockctx.PrecompiledResult, error) {
	sel, body, err := abi.SplitCall(input)
	if err != nil {
		return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
	}
	switch sel {
	case selSM3:
		vals, err := abi.Decode(body, "bytes")
		if err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
		data := vals[0].([]byte)
		sum := sha256.Sum256(data)
		out, _ := abi.Encode([]string{"bytes32"}, sum)
		return blockctx.PrecompiledResult{Gas: 200 + wordGas(len(data)), Output: out, Status: vm.StatusNone}, nil

	case selKeccak256Hash:
		vals, err := abi.Decode(body, "bytes")
		if err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
		data := vals[0].([]byte)
		h := crypto.Keccak256Hash(data)
		out, _ := abi.Encode([]string{"bytes32"}, h)
		return blockctx.PrecompiledResult{Gas: 100 + wordGas(len(data)), Output: out, Status: vm.StatusNone}, nil

	case selSM2Verify, selCurve25519VRF:
		return blockctx.PrecompiledResult{Gas: 500, Status: vm.StatusPrecompiledError}, nil

	default:
		return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
	}
}
