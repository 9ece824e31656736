package vm

import (
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bcos-x/executor-core/state"
)

// codeTable is the well-known system table holding deployed contract code,
// keyed by the checksummed hex address from common.Address.Hex (spec §4.C "code/codeHash via a
// well-known system table", mirrored on FISCO BCOS's _sys_code_ table in
// original_source/src/state/State.h).
const codeTable = "_sys_code_"

// storageTableFor returns the per-contract storage table name. Every
// contract gets its own table rather than sharing one giant table, matching
// the AMOP-table-per-contract layout State.h builds on.
func storageTableFor(addr common.Address) string {
	return "c_" + addr.Hex()
}

// HostImpl is the concrete Host Context implementation: every read/write
// goes through a Storage (an *state.Overlay in production, or a test
// double), external calls/creates are yielded to a CallDispatcher, and
// chain facts are resolved through a ChainCallback.
type HostImpl struct {
	storage    Storage
	chain      ChainCallback
	dispatcher CallDispatcher
	sub        *SubState

	myAddress common.Address
	caller    common.Address
	origin    common.Address
	codeAddr  common.Address
	input     []byte
	static    bool
	create    bool
	depth     int
	gas       uint64
	schedule  Schedule

	code     []byte
	codeHash common.Hash
}

// NewHostContext constructs a Host Context for one call frame. code/codeHash
// are loaded lazily from the code table on first access.
func NewHostContext(storage Storage, chain ChainCallback, dispatcher CallDispatcher, sub *SubState, params CallParameters, schedule Schedule, depth int) *HostImpl {
	return &HostImpl{
		storage:    storage,
		chain:      chain,
		dispatcher: dispatcher,
		sub:        sub,
		myAddress:  params.Receiver,
		caller:     params.Sender,
		origin:     params.Origin,
		codeAddr:   params.CodeAddr,
		input:      params.Input,
		static:     params.StaticCall,
		create:     params.Create,
		depth:      depth,
		gas:        params.Gas,
		schedule:   schedule,
	}
}

func (h *HostImpl) Get(key string) ([]byte, error) {
	e, err := h.storage.GetRow(storageTableFor(h.myAddress), key)
	if err != nil {
		return nil, err
	}
	if e == nil || len(e.Fields) == 0 {
		return nil, nil
	}
	return hex.DecodeString(e.Fields[0])
}

func (h *HostImpl) Set(key string, value []byte) error {
	if h.static {
		return fmt.Errorf("vm: write to %q attempted in a static call", key)
	}
	entry := state.NewEntry([]string{hex.EncodeToString(value)})
	return h.storage.SetRow(storageTableFor(h.myAddress), key, entry)
}

func (h *HostImpl) loadCode(addr common.Address) ([]byte, common.Hash) {
	e, err := h.storage.GetRow(codeTable, addr.Hex())
	if err != nil || e == nil || len(e.Fields) < 2 {
		return nil, common.Hash{}
	}
	codeHashBytes, err1 := hex.DecodeString(e.Fields[0])
	codeBytes, err2 := hex.DecodeString(e.Fields[1])
	if err1 != nil || err2 != nil {
		return nil, common.Hash{}
	}
	return codeBytes, common.BytesToHash(codeHashBytes)
}

// SetCode installs deployed code for an address, used by the Transaction
// Executive after a successful create frame.
func SetCode(storage Storage, addr common.Address, code []byte, codeHash common.Hash) error {
	entry := state.NewEntry([]string{hex.EncodeToString(codeHash[:]), hex.EncodeToString(code)})
	return storage.SetRow(codeTable, addr.Hex(), entry)
}

func (h *HostImpl) Code() []byte {
	if h.code == nil && h.codeAddr != (common.Address{}) {
		h.code, h.codeHash = h.loadCode(h.codeAddr)
	}
	return h.code
}

func (h *HostImpl) CodeHash() common.Hash {
	if h.code == nil {
		h.Code()
	}
	return h.codeHash
}

func (h *HostImpl) CodeSizeAt(addr common.Address) int {
	code, _ := h.loadCode(addr)
	return len(code)
}

func (h *HostImpl) CodeHashAt(addr common.Address) common.Hash {
	_, hash := h.loadCode(addr)
	return hash
}

func (h *HostImpl) BlockHash(number uint64) common.Hash {
	if h.chain == nil {
		return common.Hash{}
	}
	return h.chain.BlockHash(number)
}

func (h *HostImpl) Log(topics []common.Hash, data []byte) {
	h.sub.AddLog(LogEntry{Address: h.myAddress, Topics: append([]common.Hash(nil), topics...), Data: append([]byte(nil), data...)})
}

func (h *HostImpl) Call(params CallParameters) (CallParameters, error) {
	if h.dispatcher == nil {
		return CallParameters{}, fmt.Errorf("vm: no call dispatcher installed")
	}
	params.Sender = h.myAddress
	params.Origin = h.origin
	if h.static {
		params.StaticCall = true
	}
	return h.dispatcher.DispatchCall(params)
}

func (h *HostImpl) Create(code []byte, kind CreateKind, salt *common.Hash) (CallParameters, error) {
	if h.dispatcher == nil {
		return CallParameters{}, fmt.Errorf("vm: no call dispatcher installed")
	}
	if h.static {
		return CallParameters{}, fmt.Errorf("vm: create attempted in a static call")
	}
	params := CallParameters{
		Sender:     h.myAddress,
		Origin:     h.origin,
		Input:      code,
		Create:     true,
		CreateKind: kind,
		CreateSalt: salt,
	}
	return h.dispatcher.DispatchCreate(params)
}

func (h *HostImpl) Suicide(beneficiary common.Address) {
	h.sub.Suicide(h.myAddress, beneficiary)
}

func (h *HostImpl) MyAddress() common.Address { return h.myAddress }
func (h *HostImpl) Caller() common.Address    { return h.caller }
func (h *HostImpl) Origin() common.Address    { return h.origin }
func (h *HostImpl) InputData() []byte         { return h.input }
func (h *HostImpl) IsCreate() bool            { return h.create }
func (h *HostImpl) IsStaticCall() bool        { return h.static }
func (h *HostImpl) Depth() int                { return h.depth }
func (h *HostImpl) GasLeft() uint64           { return h.gas }
func (h *HostImpl) Schedule() Schedule        { return h.schedule }

var _ HostContext = (*HostImpl)(nil)
