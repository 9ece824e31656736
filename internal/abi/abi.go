// Package abi decodes precompiled-contract call data and the ABI-declared
// static conflict fields the DAG scheduler needs to build its dependency
// graph (spec §4.G "decode conflict fields"). It reuses go-ethereum's own
// accounts/abi package for the actual Solidity ABI encoding rules rather
// than hand-rolling a second implementation.
package abi

import (
	"fmt"
	"strings"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

// Selector returns the 4-byte Solidity function selector for `signature`
// (e.g. "userTransfer(string,string,uint256)").
func Selector(signature string) [4]byte {
	var sel [4]byte
	copy(sel[:], crypto.Keccak256([]byte(signature))[:4])
	return sel
}

// SplitCall separates a precompiled call's 4-byte selector from its
// argument payload. It returns an error if `data` is shorter than 4 bytes.
func SplitCall(data []byte) ([4]byte, []byte, error) {
	var sel [4]byte
	if len(data) < 4 {
		return sel, nil, fmt.Errorf("abi: call data too short: %d bytes", len(data))
	}
	copy(sel[:], data[:4])
	return sel, data[4:], nil
}

// argType builds a go-ethereum abi.Type from one of the small set of
// Solidity type names this module's precompiled contracts use.
func argType(name string) (gethabi.Type, error) {
	return gethabi.NewType(name, "", nil)
}

// Decode unpacks `data` against the Solidity types named in `types` (e.g.
// "string", "uint256", "address"), returning one Go value per type in
// order.
func Decode(data []byte, types ...string) ([]interface{}, error) {
	args := make(gethabi.Arguments, 0, len(types))
	for i, t := range types {
		typ, err := argType(t)
		if err != nil {
			return nil, fmt.Errorf("abi: bad type %q at arg %d: %w", t, i, err)
		}
		args = append(args, gethabi.Argument{Type: typ})
	}
	return args.UnpackValues(data)
}

// ParseSignatureTypes splits a Solidity function signature such as
// "transfer(address,uint256)" into its ordered argument type names. It
// returns an error if `signature` has no balanced parenthesized argument
// list.
func ParseSignatureTypes(signature string) ([]string, error) {
	open := strings.IndexByte(signature, '(')
	close := strings.LastIndexByte(signature, ')')
	if open < 0 || close < open {
		return nil, fmt.Errorf("abi: malformed signature %q", signature)
	}
	body := signature[open+1 : close]
	if body == "" {
		return nil, nil
	}
	return strings.Split(body, ","), nil
}

// Encode packs `values` against the Solidity types named in `types`.
func Encode(types []string, values ...interface{}) ([]byte, error) {
	args := make(gethabi.Arguments, 0, len(types))
	for i, t := range types {
		typ, err := argType(t)
		if err != nil {
			return nil, fmt.Errorf("abi: bad type %q at arg %d: %w", t, i, err)
		}
		args = append(args, gethabi.Argument{Type: typ})
	}
	return args.Pack(values...)
}
