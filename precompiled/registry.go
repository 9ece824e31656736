// Package precompiled implements the fixed and system precompiled
// contracts of spec §4.F: deterministic functions of
// (blockContext-visible state, input) addressed by reserved 20-byte
// addresses. Numeric precompiles (ecrecover, sha256, …) occupy the
// Ethereum-compatible low address range; system precompiles (table
// factory, CNS, consensus config, …) occupy fixed constants above it,
// ported from original_source/libprecompiled and
// original_source/src/precompiled and re-expressed in the teacher's idiom.
package precompiled

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/bcos-x/executor-core/blockctx"
)

// Ethereum-compatible numeric precompile addresses (spec §4.F "Addresses
// ≤ 9").
var (
	AddrEcrecover = common.BytesToAddress([]byte{1})
	AddrSha256    = common.BytesToAddress([]byte{2})
	AddrRipemd160 = common.BytesToAddress([]byte{3})
	AddrIdentity  = common.BytesToAddress([]byte{4})
	AddrModexp    = common.BytesToAddress([]byte{5})
	AddrBn128Add  = common.BytesToAddress([]byte{6})
	AddrBn128Mul  = common.BytesToAddress([]byte{7})
	AddrBn128Pair = common.BytesToAddress([]byte{8})
	AddrBlake2F   = common.BytesToAddress([]byte{9})
)

// System precompiled addresses: fixed constants starting at 0x1000, well
// clear of the Ethereum-compatible range and the synthesized range
// blockctx.RegisterPrecompiled hands out at runtime (spec §4.E).
var (
	AddrTableFactory    = common.BytesToAddress([]byte{0x10, 0x00})
	AddrKVTable         = common.BytesToAddress([]byte{0x10, 0x01})
	AddrCNS             = common.BytesToAddress([]byte{0x10, 0x02})
	AddrConsensusConfig = common.BytesToAddress([]byte{0x10, 0x03})
	AddrParallelConfig  = common.BytesToAddress([]byte{0x10, 0x04})
	AddrCrypto          = common.BytesToAddress([]byte{0x10, 0x05})
	AddrDagTransfer     = common.BytesToAddress([]byte{0x10, 0x06})
	AddrSysConfig       = common.BytesToAddress([]byte{0x10, 0x07})
	AddrAssetRegistry   = common.BytesToAddress([]byte{0x10, 0x08})
)

// BuildRegistry returns the fixed address -> Precompiled map an executor
// seeds its first Block Context with at construction (spec §4.F
// "populated at executor construction").
func BuildRegistry() map[common.Address]blockctx.Precompiled {
	return map[common.Address]blockctx.Precompiled{
		AddrEcrecover: ecrecoverPrecompiled{},
		AddrSha256:    sha256Precompiled{},
		AddrRipemd160: ripemd160Precompiled{},
		AddrIdentity:  identityPrecompiled{},
		AddrModexp:    modexpPrecompiled{},
		AddrBn128Add:  bn128AddPrecompiled{},
		AddrBn128Mul:  bn128MulPrecompiled{},
		AddrBn128Pair: bn128PairPrecompiled{},
		AddrBlake2F:   blake2FPrecompiled{},

		AddrTableFactory:    &TableFactory{},
		AddrKVTable:         &KVTable{},
		AddrCNS:             &CNS{},
		AddrConsensusConfig: &ConsensusConfig{},
		AddrParallelConfig:  &ParallelConfig{},
		AddrCrypto:          &Crypto{},
		AddrDagTransfer:     &DagTransfer{},
		AddrSysConfig:       &SysConfig{},
		AddrAssetRegistry:   &AssetRegistry{},
	}
}
