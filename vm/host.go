package vm

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bcos-x/executor-core/state"
)

// HostContext is the narrow interface the VM calls while executing the
// bytecode of a single frame (spec §4.C). Implementations must route every
// read/write through the overlay and must never touch the wall clock,
// randomness, or I/O beyond the operations listed here.
type HostContext interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error

	Code() []byte
	CodeHash() common.Hash
	CodeSizeAt(addr common.Address) int
	CodeHashAt(addr common.Address) common.Hash

	BlockHash(number uint64) common.Hash

	Log(topics []common.Hash, data []byte)

	Call(params CallParameters) (CallParameters, error)
	Create(code []byte, kind CreateKind, salt *common.Hash) (CallParameters, error)

	Suicide(beneficiary common.Address)

	MyAddress() common.Address
	Caller() common.Address
	Origin() common.Address
	InputData() []byte
	IsCreate() bool
	IsStaticCall() bool
	Depth() int
	GasLeft() uint64
	Schedule() Schedule
}

// Schedule is the subset of the gas schedule the Host Context surfaces to
// the VM (kept local to avoid vm depending on the params package's full
// construction-time Config).
type Schedule struct {
	MaxCodeSize   uint64
	CreateDataGas uint64
}

// Storage is the narrow slice of the versioned state store a Host Context
// needs: get/set on a single contract table plus code/codeHash lookups on
// arbitrary addresses (for EXTCODESIZE/EXTCODEHASH-equivalent operations).
type Storage interface {
	GetRow(table, key string) (*state.Entry, error)
	SetRow(table, key string, entry *state.Entry) error
	OpenTable(name string) (*state.Table, error)
	CreateTable(name string, valueFields []string) (*state.Table, error)
	GetPrimaryKeys(table string, condition func(key string) bool) ([]string, error)
}

// ChainCallback resolves chain-level facts the Host Context cannot derive
// from the overlay alone (spec §4.C "via chain-callback").
type ChainCallback interface {
	BlockHash(number uint64) common.Hash
}

// CallDispatcher is implemented by the Transaction Executive: it is how the
// Host Context yields an external call/create across the suspension
// boundary (spec §4.B/§4.D) instead of blocking its own goroutine directly
// against another frame.
type CallDispatcher interface {
	DispatchCall(params CallParameters) (CallParameters, error)
	DispatchCreate(params CallParameters) (CallParameters, error)
}

// SubState accumulates the side effects of one frame that only take effect
// if the frame succeeds: logs and the suicide (self-destruct) set (spec §7
// "Sub-state and logs").
type SubState struct {
	mu       sync.Mutex
	logs     []LogEntry
	suicides map[common.Address]common.Address
}

func NewSubState() *SubState {
	return &SubState{suicides: make(map[common.Address]common.Address)}
}

func (s *SubState) AddLog(l LogEntry) {
	s.mu.Lock()
	s.logs = append(s.logs, l)
	s.mu.Unlock()
}

func (s *SubState) Logs() []LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LogEntry, len(s.logs))
	copy(out, s.logs)
	return out
}

// Clear discards all buffered logs and suicides, including any already
// merged in from child frames.
func (s *SubState) Clear() {
	s.mu.Lock()
	s.logs = nil
	s.suicides = make(map[common.Address]common.Address)
	s.mu.Unlock()
}

func (s *SubState) Suicide(addr, beneficiary common.Address) {
	s.mu.Lock()
	s.suicides[addr] = beneficiary
	s.mu.Unlock()
}

func (s *SubState) Suicides() map[common.Address]common.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[common.Address]common.Address, len(s.suicides))
	for k, v := range s.suicides {
		out[k] = v
	}
	return out
}

// Merge folds a committed child frame's sub-state into the parent's, per
// the finalize-frame rule in spec §7 (suicides only apply at the outer
// frame's finalization).
func (s *SubState) Merge(child *SubState) {
	if child == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, child.Logs()...)
	for addr, ben := range child.Suicides() {
		s.suicides[addr] = ben
	}
}
