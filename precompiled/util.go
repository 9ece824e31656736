package precompiled

import (
	"strconv"

	"math/big"
)

func bigFromInt64(v int64) *big.Int { return big.NewInt(v) }

// stringifyBig renders a decoded uint256/int256 ABI value (always a
// *big.Int from go-ethereum's accounts/abi) as a decimal string for
// storage in an Entry field.
func stringifyBig(v interface{}) string {
	if b, ok := v.(*big.Int); ok {
		return b.String()
	}
	return ""
}

// parseDecimal parses a decimal-string Entry field back into an int,
// reporting false on empty or malformed input.
func parseDecimal(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
