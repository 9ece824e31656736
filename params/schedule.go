// Package params holds the executor's configuration surface: per-block gas
// schedule and fork activation, modeled on go-ethereum's params.ChainConfig
// fork-activation-height idiom (IsLondon, IsPrague, …) and on the teacher's
// core/vm/spec.go fork-to-numeric-ID switch.
package params

// Fork enumerates the gas-schedule revisions this executor understands, in
// activation order.
type Fork uint8

const (
	ForkGenesis Fork = iota
	ForkFreeStorage
	ForkSolidity06
	ForkSolidity08
)

// Schedule carries the gas costs and limits the Transaction Executive and
// Host Context consult while running one frame.
type Schedule struct {
	Fork Fork

	TxGasLimit     uint64
	MaxCodeSize    uint64
	CreateDataGas  uint64
	CallGas        uint64
	SstoreSetGas   uint64
	SstoreResetGas uint64
	ZeroByteGas    uint64
	NonZeroByteGas uint64
	TxBaseGas      uint64

	// LargeTxGasThreshold gates the slow-path execution-time logging the
	// teacher's core/tx_executor.go applies to transactions heavier than
	// largeTxGasLimit.
	LargeTxGasThreshold uint64
}

// DefaultSchedule returns a conservative, EVM-compatible baseline schedule.
func DefaultSchedule() Schedule {
	return Schedule{
		Fork:                ForkSolidity08,
		TxGasLimit:          30_000_000,
		MaxCodeSize:         24_576,
		CreateDataGas:       200,
		CallGas:             700,
		SstoreSetGas:        20_000,
		SstoreResetGas:      5_000,
		ZeroByteGas:         4,
		NonZeroByteGas:      68,
		TxBaseGas:           21_000,
		LargeTxGasThreshold: 10_000_000,
	}
}

// IntrinsicGas computes the base cost of a transaction: the flat tx cost
// plus per-byte zero/non-zero data costs, plus CreateDataGas once for a
// create (spec §4.D "Gas").
func (s Schedule) IntrinsicGas(data []byte, isCreate bool) uint64 {
	gas := s.TxBaseGas
	for _, b := range data {
		if b == 0 {
			gas += s.ZeroByteGas
		} else {
			gas += s.NonZeroByteGas
		}
	}
	if isCreate {
		gas += s.CreateDataGas
	}
	return gas
}

// Config is the per-executor construction-time configuration: the gas
// schedule plus the Wasm/EVM selection and chain identity fields the Block
// Context needs (spec §3 BlockContext fields).
type Config struct {
	ChainID     uint64
	Schedule    Schedule
	WasmEnabled bool
	// DAGWorkers bounds the DAG scheduler's worker-pool size; 0 means
	// "hardware parallelism" (spec §5).
	DAGWorkers int
}
