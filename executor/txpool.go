package executor

import "github.com/ethereum/go-ethereum/common"

// Transaction is one materialized item out of the tx pool: its hash (for
// receipt/log correlation) plus the call it resolves to.
type Transaction struct {
	Hash    common.Hash
	Message ExecutionMessage
}

// TxPool is the external collaborator FillAndExecute pulls from (spec §6.2
// "fillBlock(hashes[]) -> Transaction[]"). Its own retrieval/ordering/eviction policy is out of
// scope (spec §1); the executor only ever asks it to resolve hashes it
// already has from a proposed block.
type TxPool interface {
	FillBlock(hashes []common.Hash) ([]Transaction, error)
}
