package executive

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bcos-x/executor-core/state"
)

// nonceTable is the well-known system table tracking per-sender creation
// nonces, mirrored on the code table convention in vm/host_impl.go.
const nonceTable = "_sys_nonce_"

// nonceSource hands out the next creation nonce for a sender, persisting it
// through the same Storage a frame's Host Context writes to so the nonce
// participates in the overlay's versioning and rollback machinery like any
// other row.
type nonceSource struct {
	overlay *state.Overlay
}

func (n *nonceSource) next(addr common.Address) uint64 {
	e, _ := n.overlay.GetRow(nonceTable, addr.Hex())
	var cur uint64
	if e != nil && len(e.Fields) > 0 {
		cur, _ = strconv.ParseUint(e.Fields[0], 10, 64)
	}
	next := state.NewEntry([]string{strconv.FormatUint(cur+1, 10)})
	_ = n.overlay.SetRow(nonceTable, addr.Hex(), next)
	return cur
}
