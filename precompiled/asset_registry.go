package precompiled

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bcos-x/executor-core/blockctx"
	"github.com/bcos-x/executor-core/internal/abi"
	"github.com/bcos-x/executor-core/state"
	"github.com/bcos-x/executor-core/vm"
)

var (
	selRegisterAsset          = abi.Selector("registerAsset(string,address,bool,uint256,string)")
	selIssueFungibleAsset     = abi.Selector("issueFungibleAsset(address,string,uint256)")
	selIssueNotFungibleAsset  = abi.Selector("issueNotFungibleAsset(address,string,string)")
	selTransferAsset          = abi.Selector("transferAsset(address,string,uint256,bool)")
	selGetAssetBanlance       = abi.Selector("getAssetBanlance(address,string)")
	selGetNotFungibleAssetIDs = abi.Selector("getNotFungibleAssetIDs(address,string)")
)

const (
	assetInfoTableName    = "_sys_asset_info_"
	assetBalanceTableName = "_sys_asset_balance_"
	assetNFTTableName     = "_sys_asset_nft_"
)

// assetInfoFields mirrors the commented-out SYS_ASSET_* field layout
// sketched (but never wired) in original_source's HostContext.cpp:
// name, issuer, fungible, total, supplied, description.
const (
	assetFieldIssuer      = 0
	assetFieldFungible    = 1
	assetFieldTotal       = 2
	assetFieldSupplied    = 3
	assetFieldDescription = 4
)

// AssetRegistry is the supplemented system contract that brings
// HostContext.cpp's registerAsset/issueFungibleAsset/issueNotFungibleAsset
// /transferAsset/getAssetBanlance/getNotFungibleAssetIDs family to life:
// that C++ file declares and calls these functions but every body beyond
// the header is commented out and hardcoded to return a success
// placeholder. This type implements the sketched semantics over two
// tables instead of the per-account contract tables the commented-out
// code assumed (this module has no per-account table namespace):
// assetBalanceTableName holds one row per (account,assetName) — a
// decimal balance for fungible assets, a comma-joined ID list for
// non-fungible ones — and assetNFTTableName holds one row per minted
// token, keyed "assetName-id", carrying its URI.
type AssetRegistry struct{}

func (a *AssetRegistry) Call(ctx blockctx.PrecompiledContext, input []byte, origin, sender common.Address) (blockctx.PrecompiledResult, error) {
	sel, body, err := abi.SplitCall(input)
	if err != nil {
		return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
	}
	switch sel {
	case selRegisterAsset:
		return a.registerAsset(ctx, body)
	case selIssueFungibleAsset:
		return a.issueFungibleAsset(ctx, body, sender)
	case selIssueNotFungibleAsset:
		return a.issueNotFungibleAsset(ctx, body, sender)
	case selTransferAsset:
		return a.transferAsset(ctx, body, sender)
	case selGetAssetBanlance:
		return a.getAssetBanlance(ctx, body)
	case selGetNotFungibleAssetIDs:
		return a.getNotFungibleAssetIDs(ctx, body)
	default:
		return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
	}
}

func (a *AssetRegistry) registerAsset(ctx blockctx.PrecompiledContext, body []byte) (blockctx.PrecompiledResult, error) {
	vals, err := abi.Decode(body, "string", "address", "bool", "uint256", "string")
	if err != nil {
		return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
	}
	name, issuer, fungible, total, description := vals[0].(string), vals[1].(common.Address), vals[2].(bool), vals[3].(*big.Int), vals[4].(string)
	existing, err := ctx.Storage().GetRow(assetInfoTableName, name)
	if err != nil {
		return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
	}
	ok := existing == nil
	if ok {
		entry := state.NewEntry([]string{
			issuer.Hex(),
			strconv.FormatBool(fungible),
			total.String(),
			"0",
			description,
		})
		if err := ctx.Storage().SetRow(assetInfoTableName, name, entry); err != nil {
			return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
		}
	}
	out, _ := abi.Encode([]string{"bool"}, ok)
	return blockctx.PrecompiledResult{Gas: 500, Output: out, Status: vm.StatusNone}, nil
}

func (a *AssetRegistry) issueFungibleAsset(ctx blockctx.PrecompiledContext, body []byte, caller common.Address) (blockctx.PrecompiledResult, error) {
	vals, err := abi.Decode(body, "address", "string", "uint256")
	if err != nil {
		return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
	}
	to, name, amount := vals[0].(common.Address), vals[1].(string), vals[2].(*big.Int)
	ok, err := a.issue(ctx, name, caller, amount, func() error {
		return a.depositFungible(ctx, to, name, amount)
	})
	if err != nil {
		return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
	}
	out, _ := abi.Encode([]string{"bool"}, ok)
	return blockctx.PrecompiledResult{Gas: 600, Output: out, Status: vm.StatusNone}, nil
}

// issue centralizes the issuer/supply checks shared by
// issueFungibleAsset and issueNotFungibleAsset, then runs deposit on
// success.
func (a *AssetRegistry) issue(ctx blockctx.PrecompiledContext, name string, caller common.Address, amount *big.Int, deposit func() error) (bool, error) {
	info, err := ctx.Storage().GetRow(assetInfoTableName, name)
	if err != nil {
		return false, err
	}
	if info == nil {
		return false, nil
	}
	if !strings.EqualFold(info.GetField(assetFieldIssuer), caller.Hex()) {
		return false, nil
	}
	total, _ := new(big.Int).SetString(info.GetField(assetFieldTotal), 10)
	supplied, _ := new(big.Int).SetString(info.GetField(assetFieldSupplied), 10)
	if total == nil {
		total = new(big.Int)
	}
	if supplied == nil {
		supplied = new(big.Int)
	}
	remaining := new(big.Int).Sub(total, supplied)
	if remaining.Cmp(amount) < 0 {
		return false, nil
	}
	newSupplied := new(big.Int).Add(supplied, amount)
	updated := state.NewEntry([]string{
		info.GetField(assetFieldIssuer),
		info.GetField(assetFieldFungible),
		info.GetField(assetFieldTotal),
		newSupplied.String(),
		info.GetField(assetFieldDescription),
	})
	if err := ctx.Storage().SetRow(assetInfoTableName, name, updated); err != nil {
		return false, err
	}
	if err := deposit(); err != nil {
		return false, err
	}
	return true, nil
}

func (a *AssetRegistry) issueNotFungibleAsset(ctx blockctx.PrecompiledContext, body []byte, caller common.Address) (blockctx.PrecompiledResult, error) {
	vals, err := abi.Decode(body, "address", "string", "string")
	if err != nil {
		return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
	}
	to, name, uri := vals[0].(common.Address), vals[1].(string), vals[2].(string)

	info, err := ctx.Storage().GetRow(assetInfoTableName, name)
	if err != nil {
		return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
	}
	assetID := 0
	if info != nil && strings.EqualFold(info.GetField(assetFieldIssuer), caller.Hex()) {
		total, _ := parseDecimal(info.GetField(assetFieldTotal))
		supplied, _ := parseDecimal(info.GetField(assetFieldSupplied))
		if total-supplied > 0 {
			assetID = supplied + 1
			updated := state.NewEntry([]string{
				info.GetField(assetFieldIssuer),
				info.GetField(assetFieldFungible),
				info.GetField(assetFieldTotal),
				strconv.Itoa(assetID),
				info.GetField(assetFieldDescription),
			})
			if err := ctx.Storage().SetRow(assetInfoTableName, name, updated); err != nil {
				return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
			}
			if err := a.depositNotFungible(ctx, to, name, assetID, uri); err != nil {
				return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
			}
		}
	}
	out, _ := abi.Encode([]string{"uint256"}, bigFromInt64(int64(assetID)))
	return blockctx.PrecompiledResult{Gas: 700, Output: out, Status: vm.StatusNone}, nil
}

func (a *AssetRegistry) balanceKey(account common.Address, assetName string) string {
	return account.Hex() + "/" + assetName
}

func (a *AssetRegistry) depositFungible(ctx blockctx.PrecompiledContext, to common.Address, assetName string, amount *big.Int) error {
	key := a.balanceKey(to, assetName)
	existing, err := ctx.Storage().GetRow(assetBalanceTableName, key)
	if err != nil {
		return err
	}
	value := new(big.Int).Set(amount)
	if existing != nil {
		if cur, ok := new(big.Int).SetString(existing.GetField(0), 10); ok {
			value.Add(cur, amount)
		}
	}
	return ctx.Storage().SetRow(assetBalanceTableName, key, state.NewEntry([]string{value.String()}))
}

func (a *AssetRegistry) depositNotFungible(ctx blockctx.PrecompiledContext, to common.Address, assetName string, assetID int, uri string) error {
	key := a.balanceKey(to, assetName)
	existing, err := ctx.Storage().GetRow(assetBalanceTableName, key)
	if err != nil {
		return err
	}
	ids := strconv.Itoa(assetID)
	if existing != nil && existing.GetField(0) != "" {
		ids = existing.GetField(0) + "," + ids
	}
	if err := ctx.Storage().SetRow(assetBalanceTableName, key, state.NewEntry([]string{ids})); err != nil {
		return err
	}
	tokenKey := assetName + "-" + strconv.Itoa(assetID)
	return ctx.Storage().SetRow(assetNFTTableName, tokenKey, state.NewEntry([]string{uri}))
}

func (a *AssetRegistry) transferAsset(ctx blockctx.PrecompiledContext, body []byte, caller common.Address) (blockctx.PrecompiledResult, error) {
	vals, err := abi.Decode(body, "address", "string", "uint256", "bool")
	if err != nil {
		return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
	}
	to, name, amountOrID, fromSelf := vals[0].(common.Address), vals[1].(string), vals[2].(*big.Int), vals[3].(bool)

	info, err := ctx.Storage().GetRow(assetInfoTableName, name)
	if err != nil || info == nil {
		out, _ := abi.Encode([]string{"bool"}, false)
		return blockctx.PrecompiledResult{Gas: 400, Output: out, Status: vm.StatusNone}, nil
	}
	from := caller
	if fromSelf {
		from = to
	}
	fungible := info.GetField(assetFieldFungible) == "true"
	fromKey := a.balanceKey(from, name)
	fromRow, err := ctx.Storage().GetRow(assetBalanceTableName, fromKey)
	if err != nil || fromRow == nil {
		out, _ := abi.Encode([]string{"bool"}, false)
		return blockctx.PrecompiledResult{Gas: 400, Output: out, Status: vm.StatusNone}, nil
	}

	ok := true
	n := int(amountOrID.Int64())
	if fungible {
		cur, _ := new(big.Int).SetString(fromRow.GetField(0), 10)
		if cur == nil {
			cur = new(big.Int)
		}
		if cur.Cmp(amountOrID) < 0 {
			ok = false
		} else {
			newBalance := new(big.Int).Sub(cur, amountOrID)
			if err := ctx.Storage().SetRow(assetBalanceTableName, fromKey, state.NewEntry([]string{newBalance.String()})); err != nil {
				return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
			}
			if err := a.depositFungible(ctx, to, name, amountOrID); err != nil {
				return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
			}
		}
	} else {
		ids := splitIDs(fromRow.GetField(0))
		idx := indexOfID(ids, n)
		if idx < 0 {
			ok = false
		} else {
			remaining := append(ids[:idx], ids[idx+1:]...)
			if err := ctx.Storage().SetRow(assetBalanceTableName, fromKey, state.NewEntry([]string{joinIDs(remaining)})); err != nil {
				return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
			}
			tokenKey := name + "-" + strconv.Itoa(n)
			tokenRow, err := ctx.Storage().GetRow(assetNFTTableName, tokenKey)
			if err != nil {
				return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
			}
			uri := ""
			if tokenRow != nil {
				uri = tokenRow.GetField(0)
			}
			if err := a.depositNotFungible(ctx, to, name, n, uri); err != nil {
				return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
			}
		}
	}
	out, _ := abi.Encode([]string{"bool"}, ok)
	return blockctx.PrecompiledResult{Gas: 800, Output: out, Status: vm.StatusNone}, nil
}

func (a *AssetRegistry) getAssetBanlance(ctx blockctx.PrecompiledContext, body []byte) (blockctx.PrecompiledResult, error) {
	vals, err := abi.Decode(body, "address", "string")
	if err != nil {
		return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
	}
	account, name := vals[0].(common.Address), vals[1].(string)
	info, err := ctx.Storage().GetRow(assetInfoTableName, name)
	if err != nil || info == nil {
		out, _ := abi.Encode([]string{"uint256"}, bigFromInt64(0))
		return blockctx.PrecompiledResult{Gas: 200, Output: out, Status: vm.StatusNone}, nil
	}
	row, err := ctx.Storage().GetRow(assetBalanceTableName, a.balanceKey(account, name))
	if err != nil {
		return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
	}
	balance := new(big.Int)
	if row != nil {
		if info.GetField(assetFieldFungible) == "true" {
			if v, ok := new(big.Int).SetString(row.GetField(0), 10); ok {
				balance = v
			}
		} else {
			balance = big.NewInt(int64(len(splitIDs(row.GetField(0)))))
		}
	}
	out, _ := abi.Encode([]string{"uint256"}, balance)
	return blockctx.PrecompiledResult{Gas: 200, Output: out, Status: vm.StatusNone}, nil
}

func (a *AssetRegistry) getNotFungibleAssetIDs(ctx blockctx.PrecompiledContext, body []byte) (blockctx.PrecompiledResult, error) {
	vals, err := abi.Decode(body, "address", "string")
	if err != nil {
		return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
	}
	account, name := vals[0].(common.Address), vals[1].(string)
	row, err := ctx.Storage().GetRow(assetBalanceTableName, a.balanceKey(account, name))
	if err != nil {
		return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
	}
	var ids []int
	if row != nil {
		ids = splitIDs(row.GetField(0))
	}
	out, err := encodeUint256Array(ids)
	if err != nil {
		return blockctx.PrecompiledResult{Status: vm.StatusPrecompiledError}, nil
	}
	return blockctx.PrecompiledResult{Gas: 200 + wordGas(len(ids)*32), Output: out, Status: vm.StatusNone}, nil
}

func splitIDs(s string) []int {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		if n, err := strconv.Atoi(p); err == nil {
			ids = append(ids, n)
		}
	}
	return ids
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, n := range ids {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

func indexOfID(ids []int, target int) int {
	for i, n := range ids {
		if n == target {
			return i
		}
	}
	return -1
}

func encodeUint256Array(ids []int) ([]byte, error) {
	vals := make([]*big.Int, len(ids))
	for i, n := range ids {
		vals[i] = big.NewInt(int64(n))
	}
	return abi.Encode([]string{"uint256[]"}, vals)
}
