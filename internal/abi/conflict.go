package abi

import (
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
)

// FieldKind is the shape of one declared conflict field (spec §4.G
// "ABI-declared static conflict fields"): either the whole transaction
// conflicts with everything (All), touches a size/length (Len, resolved to
// one fixed key shared by every Len field),
// reads an environment value (Env, e.g. msg.sender), or names a specific
// decoded argument (Var).
type FieldKind int

const (
	FieldAll FieldKind = iota
	FieldLen
	FieldEnv
	FieldVar
)

// EnvKind selects which environment value an Env conflict field resolves to
// (spec §4.G step 2d: "Env(caller|origin|now|blockNumber|self)").
type EnvKind int

const (
	EnvCaller EnvKind = iota
	EnvOrigin
	EnvNow
	EnvBlockNumber
	EnvSelf
)

// ConflictField is one entry of a function's declared conflict-field list
// (spec §4.B glossary "ConflictField: a tuple (kind, accessPath, slot,
// readOnly)").
type ConflictField struct {
	Kind FieldKind
	// Env selects the environment value to read when Kind == FieldEnv.
	Env EnvKind
	// ArgIndex is the zero-based decoded-argument index, used when Kind ==
	// FieldVar.
	ArgIndex int
	// ArgTypes names the Solidity types of the function's arguments, in
	// order, needed to decode ArgIndex out of the call data.
	ArgTypes []string
	// Slot is the salted integer fingerprinting this field's conflict
	// domain (spec §4.G step 2d "field.slot"), combined with hash(to) to
	// produce the coarse lastSlot edge independent of the decoded value.
	Slot uint64
}

// FunctionAbi is the static, per-selector conflict declaration the DAG
// scheduler looks up before running a transaction.
type FunctionAbi struct {
	Signature string
	Selector  [4]byte
	Fields    []ConflictField
}

// Resolve decodes the declared conflict keys out of one call's data. An
// All field short-circuits to a single sentinel key ("*"); a Len field
// contributes the fixed key "len"; an Env field is
// supplied by the caller via `env` (keyed by field index since Env values
// come from outside the call data); a Var field decodes and stringifies
// the named argument.
func (f FunctionAbi) Resolve(data []byte, env map[int]string) ([]string, error) {
	var keys []string
	var decoded []interface{}
	needDecode := false
	for _, field := range f.Fields {
		if field.Kind == FieldVar {
			needDecode = true
		}
	}
	if needDecode {
		var err error
		decoded, err = Decode(data, f.Fields[0].ArgTypes...)
		if err != nil {
			return nil, err
		}
	}
	for i, field := range f.Fields {
		switch field.Kind {
		case FieldAll:
			return []string{"*"}, nil
		case FieldLen:
			keys = append(keys, "len")
		case FieldEnv:
			keys = append(keys, env[i])
		case FieldVar:
			if field.ArgIndex >= len(decoded) {
				continue
			}
			keys = append(keys, stringify(decoded[field.ArgIndex]))
		}
	}
	return keys, nil
}

type stringer interface{ String() string }

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case stringer:
		return t.String()
	default:
		return ""
	}
}

// Key identifies one contract method for conflict-field lookup: the
// 4-byte selector alone isn't enough since two contracts can declare the
// same selector with different conflict-field layouts.
type Key struct {
	Address  common.Address
	Selector [4]byte
}

// Cache is a bounded LRU of (contract, selector) -> FunctionAbi, so
// repeated calls to the same contract method don't re-resolve its
// conflict-field declaration on every transaction.
type Cache struct {
	lru *lru.Cache[Key, FunctionAbi]
}

// NewCache returns a Cache holding at most `size` entries.
func NewCache(size int) (*Cache, error) {
	c, err := lru.New[Key, FunctionAbi](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: c}, nil
}

func (c *Cache) Get(addr common.Address, sel [4]byte) (FunctionAbi, bool) {
	return c.lru.Get(Key{Address: addr, Selector: sel})
}

func (c *Cache) Put(addr common.Address, abi FunctionAbi) {
	c.lru.Add(Key{Address: addr, Selector: abi.Selector}, abi)
}
