// Package executor implements the Executor Facade (spec §4.H): the single
// entry point the consensus/RPC layer drives, mirroring the shape of the
// teacher's core.TxExecutor / vmExecutorAdapter pair — a narrow interface
// in front of a concrete engine that owns the Block Context, the DAG
// scheduler, and the durable backend.
package executor

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/bcos-x/executor-core/vm"
)

// MessageType tags an ExecutionMessage: an inbound message is either a bare
// transaction-hash reference (TxHash, the zero value) or a materialized
// call (Call); once
// running, a transaction can yield an intermediate message (a suspended
// externalCall) or a wait_key (a suspended key-lock acquisition); it
// finally resolves to finished, reverted, or sent back to the caller for
// serial retry.
type MessageType uint8

const (
	MessageTypeTxHash MessageType = iota
	MessageTypeCall
	MessageTypeMessage
	MessageTypeFinished
	MessageTypeRevert
	MessageTypeSendBack
	MessageTypeWaitKey
)

// ExecutionMessage is the wire shape crossing the Executor Facade boundary
// (spec §6.1): one field per entry named in the spec's ExecutionMessage
// table, translated to/from vm.CallParameters internally so the rest of the
// module never has to import this package.
type ExecutionMessage struct {
	Type            MessageType
	ContextID       int64
	Seq             int64
	From            common.Address
	To              common.Address
	Origin          common.Address
	TransactionHash common.Hash
	Data            []byte
	GasAvailable    uint64
	StaticCall      bool
	Create          bool
	CreateSalt      *common.Hash

	Status                vm.Status
	Message               string
	LogEntries            []vm.LogEntry
	NewEVMContractAddress *common.Address
	KeyLocks              []vm.KeyLock
}

func toCallParameters(m ExecutionMessage) vm.CallParameters {
	kind := vm.CreateKindNone
	if m.Create {
		kind = vm.CreateKindCreate
		if m.CreateSalt != nil {
			kind = vm.CreateKindCreate2
		}
	}
	return vm.CallParameters{
		Sender:     m.From,
		Receiver:   m.To,
		CodeAddr:   m.To,
		Origin:     m.Origin,
		Gas:        m.GasAvailable,
		Input:      m.Data,
		StaticCall: m.StaticCall,
		Create:     m.Create,
		CreateKind: kind,
		CreateSalt: m.CreateSalt,
		ContextID:  m.ContextID,
		Seq:        m.Seq,
	}
}

func fromCallParameters(contextID int64, p vm.CallParameters) ExecutionMessage {
	msgType := MessageTypeFinished
	switch p.Kind {
	case vm.CallKindRevert:
		msgType = MessageTypeRevert
	case vm.CallKindMessage:
		msgType = MessageTypeMessage
	case vm.CallKindWaitKey:
		msgType = MessageTypeWaitKey
	}
	return ExecutionMessage{
		Type:                  msgType,
		ContextID:             contextID,
		Seq:                   p.Seq,
		Status:                p.Status,
		Message:               p.Message,
		LogEntries:            p.Logs,
		NewEVMContractAddress: p.NewContractAddress,
		KeyLocks:              p.KeyLocks,
		Data:                  p.Output,
		GasAvailable:          p.Gas,
	}
}
