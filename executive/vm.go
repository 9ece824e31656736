// Package executive implements the Transaction Executive (spec §4.D): the
// per-transaction driver that owns one root fiber, builds the Host Context
// for each frame, runs nested calls/creates on the same executive's recoder
// stack (yielding each one to the Executor Facade when running under Start,
// recursing directly when running under Execute), and translates the VM's
// raw result into the transaction Status taxonomy.
package executive

import "github.com/bcos-x/executor-core/vm"

// VM is the external bytecode-interpreter collaborator the executive
// drives. Its internals are out of scope (spec §1); the executive only
// needs to hand it a Host Context and receive back a raw Result.
type VM interface {
	Run(host vm.HostContext, code []byte) vm.Result
}

// KeyLockAcquirer is satisfied by whatever owns the DAG scheduler's
// key-lock table (spec glossary "KeyLocks"). AcquireKey blocks until the
// lock is granted or returns an error if the scheduler detects a deadlock
// and asks this executive to revert instead.
type KeyLockAcquirer interface {
	AcquireKey(table, key string) error
	ReleaseAll()
}
