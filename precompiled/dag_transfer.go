package precompiled

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bcos-x/executor-core/blockctx"
	"github.com/bcos-x/executor-core/internal/abi"
	"github.com/bcos-x/executor-core/state"
	"github.com/bcos-x/executor-core/vm"
)

var (
	selUserAdd      = abi.Selector("userAdd(string,uint256)")
	selUserSave     = abi.Selector("userSave(string,uint256)")
	selUserDraw     = abi.Selector("userDraw(string,uint256)")
	selUserTransfer = abi.Selector("userTransfer(string,string,uint256)")
	selUserBalance  = abi.Selector("userBalance(string)")
)

const (
	dagTransferTableName = "_dag_transfer_"

	codeInvalidUserName         = -1
	codeInvalidOpenTableFailed  = -2
	codeInvalidUserAlreadyExist = -3
	codeInvalidAmount           = -4
	codeInvalidBalanceOverflow  = -5
	codeInvalidUserNotExist     = -6
	codeInvalidInsufficientBal  = -7
)

// DagTransfer is a toy ledger contract over the "_dag_transfer_" table
// (fields user_name/user_balance), mirroring original_source's
// DagTransferPrecompiled (libprecompiled/extension/DagTransferPrecompiled.cpp).
// It implements blockctx.ParallelPrecompiled so the DAG scheduler can key
// conflict analysis on the user-name arguments the same way the
// original's getParallelTag does.
//
// userTransferCall's self-transfer guard is carried over verbatim
// (fromUser == toUser is a no-op success), but the original's final
// balance update has a copy-paste bug: it writes the recipient's new
// balance back under the sender's key (table->setRow(fromUser, entry)
// twice) instead of the recipient's. That bug is not reproduced here;
// the recipient row is written under toUser.
type DagTransfer struct{}

func (d *DagTransfer) IsParallel() bool { return true }

func (d *DagTransfer) ParallelTags(input []byte) []string {
	sel, body, err := abi.SplitCall(input)
	if err != nil {
		return nil
	}
	switch sel {
	case selUserAdd, selUserSave, selUserDraw:
		vals, err := abi.Decode(body, "string", "uint256")
		if err != nil {
			return nil
		}
		user := vals[0].(string)
		if user == "" {
			return nil
		}
		return []string{user}

	case selUserTransfer:
		vals, err := abi.Decode(body, "string", "string", "uint256")
		if err != nil {
			return nil
		}
		from, to := vals[0].(string), vals[1].(string)
		if from == "" || to == "" {
			return nil
		}
		return []string{from, to}

	case selUserBalance:
		return nil

	default:
		return nil
	}
}

func (d *DagTransfer) Call(ctx blockctx.PrecompiledContext, input []byte, origin, sender common.Address) (blockctx.PrecompiledResult, error) {
	sel, body, err := abi.SplitCall(input)
	if err != nil {
		return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
	}
	switch sel {
	case selUserAdd:
		return d.userAdd(ctx, body)
	case selUserSave:
		return d.userSave(ctx, body)
	case selUserDraw:
		return d.userDraw(ctx, body)
	case selUserTransfer:
		return d.userTransfer(ctx, body)
	case selUserBalance:
		return d.userBalance(ctx, body)
	default:
		return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
	}
}

func (d *DagTransfer) row(ctx blockctx.PrecompiledContext, user string) (*state.Entry, error) {
	return ctx.Storage().GetRow(dagTransferTableName, user)
}

func (d *DagTransfer) setBalance(ctx blockctx.PrecompiledContext, user string, balance *big.Int) error {
	return ctx.Storage().SetRow(dagTransferTableName, user, state.NewEntry([]string{balance.String()}))
}

func (d *DagTransfer) encodeCode(code int64) ([]byte, error) {
	return abi.Encode([]string{"int256"}, bigFromInt64(code))
}

func (d *DagTransfer) userAdd(ctx blockctx.PrecompiledContext, body []byte) (blockctx.PrecompiledResult, error) {
	vals, err := abi.Decode(body, "string", "uint256")
	if err != nil {
		return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
	}
	user, amount := vals[0].(string), vals[1].(*big.Int)
	code := int64(0)
	switch {
	case user == "":
		code = codeInvalidUserName
	default:
		existing, err := d.row(ctx, user)
		if err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
		if existing != nil {
			code = codeInvalidUserAlreadyExist
		} else if err := d.setBalance(ctx, user, amount); err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
	}
	out, _ := d.encodeCode(code)
	return blockctx.PrecompiledResult{Gas: 500, Output: out, Status: vm.StatusNone}, nil
}

func (d *DagTransfer) userSave(ctx blockctx.PrecompiledContext, body []byte) (blockctx.PrecompiledResult, error) {
	vals, err := abi.Decode(body, "string", "uint256")
	if err != nil {
		return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
	}
	user, amount := vals[0].(string), vals[1].(*big.Int)
	var code int64
	switch {
	case user == "":
		code = codeInvalidUserName
	case amount.Sign() == 0:
		code = codeInvalidAmount
	default:
		existing, err := d.row(ctx, user)
		if err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
		balance := new(big.Int)
		if existing != nil {
			balance.SetString(existing.GetField(0), 10)
		}
		newBalance := new(big.Int).Add(balance, amount)
		if newBalance.Cmp(balance) < 0 {
			code = codeInvalidBalanceOverflow
		} else if err := d.setBalance(ctx, user, newBalance); err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
	}
	out, _ := d.encodeCode(code)
	return blockctx.PrecompiledResult{Gas: 500, Output: out, Status: vm.StatusNone}, nil
}

func (d *DagTransfer) userDraw(ctx blockctx.PrecompiledContext, body []byte) (blockctx.PrecompiledResult, error) {
	vals, err := abi.Decode(body, "string", "uint256")
	if err != nil {
		return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
	}
	user, amount := vals[0].(string), vals[1].(*big.Int)
	var code int64
	switch {
	case user == "":
		code = codeInvalidUserName
	case amount.Sign() == 0:
		code = codeInvalidAmount
	default:
		existing, err := d.row(ctx, user)
		if err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
		if existing == nil {
			code = codeInvalidUserNotExist
		} else {
			balance := new(big.Int)
			balance.SetString(existing.GetField(0), 10)
			if balance.Cmp(amount) < 0 {
				code = codeInvalidInsufficientBal
			} else if err := d.setBalance(ctx, user, new(big.Int).Sub(balance, amount)); err != nil {
				return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
			}
		}
	}
	out, _ := d.encodeCode(code)
	return blockctx.PrecompiledResult{Gas: 500, Output: out, Status: vm.StatusNone}, nil
}

func (d *DagTransfer) userBalance(ctx blockctx.PrecompiledContext, body []byte) (blockctx.PrecompiledResult, error) {
	vals, err := abi.Decode(body, "string")
	if err != nil {
		return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
	}
	user := vals[0].(string)
	var code int64
	balance := new(big.Int)
	switch {
	case user == "":
		code = codeInvalidUserName
	default:
		existing, err := d.row(ctx, user)
		if err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
		if existing == nil {
			code = codeInvalidUserNotExist
		} else {
			balance.SetString(existing.GetField(0), 10)
		}
	}
	out, _ := abi.Encode([]string{"int256", "uint256"}, bigFromInt64(code), balance)
	return blockctx.PrecompiledResult{Gas: 300, Output: out, Status: vm.StatusNone}, nil
}

func (d *DagTransfer) userTransfer(ctx blockctx.PrecompiledContext, body []byte) (blockctx.PrecompiledResult, error) {
	vals, err := abi.Decode(body, "string", "string", "uint256")
	if err != nil {
		return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
	}
	from, to, amount := vals[0].(string), vals[1].(string), vals[2].(*big.Int)
	var code int64
	switch {
	case from == "" || to == "":
		code = codeInvalidUserName
	case amount.Sign() == 0:
		code = codeInvalidAmount
	case from == to:
		// transfer to self is a no-op success, matching the original.
	default:
		fromRow, err := d.row(ctx, from)
		if err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
		if fromRow == nil {
			code = codeInvalidUserNotExist
			break
		}
		fromBalance := new(big.Int)
		fromBalance.SetString(fromRow.GetField(0), 10)
		if fromBalance.Cmp(amount) < 0 {
			code = codeInvalidInsufficientBal
			break
		}
		toRow, err := d.row(ctx, to)
		if err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
		toBalance := new(big.Int)
		if toRow != nil {
			toBalance.SetString(toRow.GetField(0), 10)
		}
		newToBalance := new(big.Int).Add(toBalance, amount)
		if newToBalance.Cmp(toBalance) < 0 {
			code = codeInvalidBalanceOverflow
			break
		}
		newFromBalance := new(big.Int).Sub(fromBalance, amount)
		if err := d.setBalance(ctx, from, newFromBalance); err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
		if err := d.setBalance(ctx, to, newToBalance); err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
	}
	out, _ := d.encodeCode(code)
	return blockctx.PrecompiledResult{Gas: 800, Output: out, Status: vm.StatusNone}, nil
}

var (
	_ blockctx.Precompiled         = (*DagTransfer)(nil)
	_ blockctx.ParallelPrecompiled = (*DagTransfer)(nil)
)
