// Package fiber implements the cooperative-suspension primitive of spec
// §4.B: each executive runs on its own goroutine paired with a push/pull
// channel pair to the scheduling thread. A goroutine blocked on a channel
// costs no OS thread, which is what makes this style of "stackful fiber"
// idiomatic in Go rather than a design borrowed wholesale from the source's
// native coroutines (spec §9 design note (a)).
//
// The registry below mirrors the opaque-handle pattern the teacher uses to
// hand stable identifiers across a boundary that must not hold a live
// pointer (github.com/ethereum/go-ethereum-style revm_bridge handle map):
// a sync.Map keyed by an atomically incremented counter.
package fiber

import (
	"sync"
	"sync/atomic"
)

// MessageKind tags the payload carried across the push/pull channel pair.
type MessageKind int

const (
	// KindStorageGet/Set/OpenTable/CreateTable/GetPrimaryKeys are storage
	// requests the fiber yields for the scheduler to satisfy via the
	// versioned state store.
	KindStorageGet MessageKind = iota
	KindStorageGetRows
	KindStorageSet
	KindStorageOpenTable
	KindStorageCreateTable
	KindStorageGetPrimaryKeys
	// KindWaitKey requests a key-lock grant from the scheduler.
	KindWaitKey
	// KindExternalCall asks the scheduler to run a nested call/create frame.
	KindExternalCall
	// KindFinished carries the fiber's terminal result; no response follows.
	KindFinished
)

// Request is one message a fiber yields to the scheduler.
type Request struct {
	Kind    MessageKind
	Payload any
}

// Response is what the scheduler sends back for all but KindFinished.
type Response struct {
	Payload any
	// Err, when set, asks the yield point to raise a revert at the
	// acquisition site (used for WaitKey -> Revert(DeadLock), spec §4.B).
	Err error
}

// Yielder is the fiber-side handle passed into the function run on its own
// goroutine. Calling Yield blocks the fiber until the scheduler replies.
type Yielder struct {
	push chan<- Request
	pull <-chan Response
}

// Yield sends req to the scheduler and blocks for the matching response.
// Requests from one fiber are totally ordered and match responses
// one-to-one (spec §4.B); a single Yielder is never used concurrently.
// A KindFinished request gets no response, so Yield returns a zero
// Response for it as soon as it has been received.
func (y *Yielder) Yield(kind MessageKind, payload any) Response {
	y.push <- Request{Kind: kind, Payload: payload}
	if kind == KindFinished {
		return Response{}
	}
	return <-y.pull
}

// Handle is the scheduler-side view of a spawned fiber.
type Handle struct {
	ID   uint64
	Push <-chan Request
	pull chan<- Response
}

// Reply answers the most recent pending request on this fiber.
func (h *Handle) Reply(resp Response) {
	h.pull <- resp
}

var (
	handles  sync.Map // map[uint64]*Handle
	idSeq    uint64
)

// Spawn starts fn on its own goroutine and returns a Handle the scheduler
// drives by receiving from Handle.Push and replying via Handle.Reply. fn
// must send exactly one KindFinished request as its last action.
func Spawn(fn func(y *Yielder)) *Handle {
	push := make(chan Request)
	pull := make(chan Response)
	id := atomic.AddUint64(&idSeq, 1)
	h := &Handle{ID: id, Push: push, pull: pull}
	handles.Store(id, h)

	go func() {
		defer handles.Delete(id)
		y := &Yielder{push: push, pull: pull}
		fn(y)
	}()
	return h
}

// Lookup resolves a previously spawned fiber by its stable ID. Used when a
// resumed message arrives out of band (e.g. a later ExecutionMessage
// referencing the same contextID/seq) rather than over a held Go reference.
func Lookup(id uint64) (*Handle, bool) {
	v, ok := handles.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Handle), true
}

// Release forgets a fiber handle (used once its terminal result has been
// consumed).
func Release(id uint64) {
	handles.Delete(id)
}
