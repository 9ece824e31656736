package dag

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/bcos-x/executor-core/blockctx"
	"github.com/bcos-x/executor-core/internal/abi"
	"github.com/bcos-x/executor-core/precompiled"
)

// parallelConfigResolver looks up one contract's declared critical field
// (the single argument position that determines its DAG conflict key)
// through the parallel-config precompiled table, translating a registered
// (signature, fieldIndex) pair into a one-field FunctionAbi the scheduler
// can Resolve directly.
//
// A registered function conflicts on exactly one decoded argument: richer
// multi-field declarations (FieldAll/FieldLen/FieldEnv combinations) are
// reserved for the fixed-address system contracts, which implement
// ParallelTagger directly instead of going through this table.
type parallelConfigResolver struct {
	ctx    blockctx.PrecompiledContext
	config *precompiled.ParallelConfig
}

// NewBlockProvider builds the ABIProvider a Scheduler consults for
// ordinary (non-precompiled) contracts registered via
// registerParallelFunction (spec §6.4 "/sys/parallelConfig/<address>").
func NewBlockProvider(ctx blockctx.PrecompiledContext) ABIProvider {
	return &parallelConfigResolver{ctx: ctx, config: &precompiled.ParallelConfig{}}
}

func (r *parallelConfigResolver) Lookup(addr common.Address, selector [4]byte) (abi.FunctionAbi, bool) {
	signature, fieldIndex, ok := r.config.LookupBySelector(r.ctx, addr, selector)
	if !ok {
		return abi.FunctionAbi{}, false
	}
	argTypes, err := abi.ParseSignatureTypes(signature)
	if err != nil || fieldIndex < 0 || fieldIndex >= len(argTypes) {
		return abi.FunctionAbi{}, false
	}
	return abi.FunctionAbi{
		Signature: signature,
		Selector:  selector,
		Fields: []abi.ConflictField{
			{Kind: abi.FieldVar, ArgIndex: fieldIndex, ArgTypes: argTypes, Slot: uint64(fieldIndex) + 1},
		},
	}, true
}

// blockEnv adapts a blockctx.BlockContext's Number/Timestamp fields into the
// dag.BlockEnv a Scheduler needs to resolve Env(now)/Env(blockNumber)
// conflict fields (spec §4.G step 2d).
type blockEnv struct {
	number    uint64
	timestamp uint64
}

func (e blockEnv) BlockNumber() uint64 { return e.number }
func (e blockEnv) Now() uint64         { return e.timestamp }

// NewBlockEnv builds the BlockEnv for the block `bc` belongs to.
func NewBlockEnv(bc *blockctx.BlockContext) BlockEnv {
	return blockEnv{number: bc.Number, timestamp: bc.Timestamp}
}

// NewPrecompiledLookup adapts a blockctx.BlockContext's fixed-address
// registry into the PrecompiledLookup the scheduler uses to bypass ABI
// decoding for system contracts that declare their own conflict tags.
func NewPrecompiledLookup(bc *blockctx.BlockContext) PrecompiledLookup {
	return func(addr common.Address) (ParallelTagger, bool) {
		p, ok := bc.LookupPrecompiled(addr)
		if !ok {
			return nil, false
		}
		tagger, ok := p.(blockctx.ParallelPrecompiled)
		if !ok {
			return nil, false
		}
		return tagger, true
	}
}
