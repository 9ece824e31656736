package executive

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/bcos-x/executor-core/vm"
)

// deriveCreateAddress computes the address a create frame deploys to,
// reusing go-ethereum's own crypto.CreateAddress/CreateAddress2 rather than
// re-deriving the RLP(sender, nonce) / keccak(0xff||sender||salt||codehash)
// rules locally (spec §4.D "address derivation"; EVM-path rule).
func deriveCreateAddress(sender common.Address, nonce uint64, kind vm.CreateKind, salt *common.Hash, code []byte) common.Address {
	if kind == vm.CreateKindCreate2 && salt != nil {
		codeHash := crypto.Keccak256Hash(code)
		return crypto.CreateAddress2(sender, *salt, codeHash.Bytes())
	}
	return crypto.CreateAddress(sender, nonce)
}
