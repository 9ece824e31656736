// Package vm defines the narrow Host Context contract the VM sees (spec
// §4.C) plus the call-frame message shapes (CallParameters, logs, VM
// results) that flow between the Transaction Executive, the Host Context,
// and the external VM collaborator.
package vm

import "github.com/ethereum/go-ethereum/common"

// CallKind distinguishes the four shapes a CallParameters message can take
// as it crosses the suspension boundary (spec §3).
type CallKind uint8

const (
	CallKindMessage CallKind = iota
	CallKindFinished
	CallKindRevert
	CallKindWaitKey
)

// CreateKind selects the address-derivation rule for a create frame.
type CreateKind uint8

const (
	CreateKindNone CreateKind = iota
	CreateKindCreate
	CreateKindCreate2
)

// Status is the transaction-level outcome taxonomy of spec §7. Status is a
// value, never a Go error: VM-level failure never escapes as an exception
// (spec §7 propagation policy).
type Status int

const (
	StatusNone Status = iota
	StatusOutOfGas
	StatusOutOfGasLimit
	StatusBadInstruction
	StatusBadJumpDestination
	StatusOutOfStack
	StatusStackUnderflow
	StatusRevertInstruction
	StatusPermissionDenied
	StatusPrecompiledError
	StatusWASMValidationFailure
	StatusWASMArgumentOutOfRange
	StatusWASMUnreachableInstruction
	StatusCallAddressError
	StatusContractAddressAlreadyUsed
	StatusNotEnoughCash
	StatusUnknown
)

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "None"
	case StatusOutOfGas:
		return "OutOfGas"
	case StatusOutOfGasLimit:
		return "OutOfGasLimit"
	case StatusBadInstruction:
		return "BadInstruction"
	case StatusBadJumpDestination:
		return "BadJumpDestination"
	case StatusOutOfStack:
		return "OutOfStack"
	case StatusStackUnderflow:
		return "StackUnderflow"
	case StatusRevertInstruction:
		return "RevertInstruction"
	case StatusPermissionDenied:
		return "PermissionDenied"
	case StatusPrecompiledError:
		return "PrecompiledError"
	case StatusWASMValidationFailure:
		return "WASMValidationFailure"
	case StatusWASMArgumentOutOfRange:
		return "WASMArgumentOutOfRange"
	case StatusWASMUnreachableInstruction:
		return "WASMUnreachableInstruction"
	case StatusCallAddressError:
		return "CallAddressError"
	case StatusContractAddressAlreadyUsed:
		return "ContractAddressAlreadyUsed"
	case StatusNotEnoughCash:
		return "NotEnoughCash"
	default:
		return "Unknown"
	}
}

// LogEntry is one emitted event: the emitting address, indexed topics, and
// opaque data.
type LogEntry struct {
	Address common.Address
	Topics  []common.Hash
	Data    []byte
}

// KeyLock identifies a scheduler-granted right to read/write a (table, key)
// pair for the lifetime of a frame (spec glossary).
type KeyLock struct {
	Table string
	Key   string
}

// CallParameters is the inbound or outbound message between call frames
// (spec §3). The same struct is reused for the initial message, the
// external-call request a Host Context yields, and the terminal
// finished/revert response.
type CallParameters struct {
	Kind CallKind

	Sender   common.Address
	Receiver common.Address
	CodeAddr common.Address
	Origin   common.Address

	Gas   uint64
	Input []byte

	StaticCall bool
	Create     bool
	CreateKind CreateKind
	CreateSalt *common.Hash

	// Output/result fields, populated on Finished/Revert.
	Output              []byte
	Status              Status
	Message             string
	Logs                []LogEntry
	NewContractAddress  *common.Address
	KeyLocks            []KeyLock

	// ContextID/Seq identify the (contextID, seq) pair this message belongs
	// to, for routing through the Block Context's executive registry.
	ContextID int64
	Seq       int64

	// WaitKey is populated when Kind == CallKindWaitKey.
	WaitKey *KeyLock
}

// VMStatus is the raw status code returned by the external VM collaborator,
// prior to translation into a transaction Status (spec §4.D table).
type VMStatus int

const (
	VMSuccess VMStatus = iota
	VMRevert
	VMOutOfGas
	VMFailure
	VMInvalidInstruction
	VMUndefinedInstruction
	VMBadJumpDestination
	VMStackOverflow
	VMStackUnderflow
	VMInvalidMemoryAccess
	VMStaticModeViolation
	VMContractValidationFailure
	VMArgumentOutOfRange
	VMWasmUnreachableInstruction
	VMInternalError
)

// TranslateVMStatus maps a VM status to a transaction Status per spec §4.D.
// VMInternalError has no case of its own and falls through to StatusUnknown;
// no caller in this module treats it as fatal or aborts the executor on it.
func TranslateVMStatus(s VMStatus) Status {
	switch s {
	case VMSuccess:
		return StatusNone
	case VMRevert:
		return StatusRevertInstruction
	case VMOutOfGas, VMFailure:
		return StatusOutOfGas
	case VMInvalidInstruction, VMUndefinedInstruction:
		return StatusBadInstruction
	case VMBadJumpDestination:
		return StatusBadJumpDestination
	case VMStackOverflow:
		return StatusOutOfStack
	case VMStackUnderflow, VMInvalidMemoryAccess:
		return StatusStackUnderflow
	case VMStaticModeViolation:
		return StatusUnknown
	case VMContractValidationFailure:
		return StatusWASMValidationFailure
	case VMArgumentOutOfRange:
		return StatusWASMArgumentOutOfRange
	case VMWasmUnreachableInstruction:
		return StatusWASMUnreachableInstruction
	default:
		return StatusUnknown
	}
}

// Result is what an external VM collaborator returns for one frame.
type Result struct {
	Status   VMStatus
	GasLeft  uint64
	Output   []byte
	Reverted bool
}
