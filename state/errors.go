package state

import "errors"

// Sentinel errors surfaced by the store, per spec §4.A.
var (
	ErrTableAlreadyExists  = errors.New("state: table already exists")
	ErrTableNotFound       = errors.New("state: table not found")
	ErrNumberMismatch      = errors.New("state: block number mismatch")
	ErrNoUncommittedState  = errors.New("state: no uncommitted overlay")
	ErrNotPrepared         = errors.New("state: overlay has not been prepared")
	ErrOverlayAlreadyExist = errors.New("state: overlay for this block number already exists")
)
