package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc721ABIJSON = `[
{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"ownerOf","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"tokenOfOwnerByIndex","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"index","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"isApprovedForAll","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"operator","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"event","name":"Transfer","anonymous":false,"inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"tokenId","type":"uint256","indexed":true}]}
]`

const stakingABIJSON = `[
{"type":"function","name":"getStakedTokens","stateMutability":"view","inputs":[{"name":"user","type":"address"},{"name":"collection","type":"address"}],"outputs":[{"name":"","type":"uint256[]"}]},
{"type":"function","name":"getStakedNFTCount","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"pendingRewards","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"getUserStats","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"totalStaked","type":"uint256"},{"name":"stakedSToadz","type":"uint256"},{"name":"stakedLofts","type":"uint256"},{"name":"stakedCity","type":"uint256"},{"name":"pendingPond","type":"uint256"}]},
{"type":"function","name":"getGlobalStats","stateMutability":"view","inputs":[],"outputs":[{"name":"totalNFTsStaked","type":"uint256"},{"name":"dailyReward","type":"uint256"},{"name":"rewardPerNFTPerDay","type":"uint256"},{"name":"contractPondBalance","type":"uint256"}]},
{"type":"event","name":"Staked","anonymous":false,"inputs":[{"name":"user","type":"address","indexed":true},{"name":"collection","type":"address","indexed":true},{"name":"tokenId","type":"uint256","indexed":false}]}
]`

const marketplaceABIJSON = `[
{"type":"function","name":"getListing","stateMutability":"view","inputs":[{"name":"collection","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"seller","type":"address"},{"name":"priceSGB","type":"uint256"},{"name":"pricePOND","type":"uint256"},{"name":"active","type":"bool"}]},
{"type":"function","name":"getOffers","stateMutability":"view","inputs":[{"name":"collection","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"tuple[]","components":[{"name":"buyer","type":"address"},{"name":"amountSGB","type":"uint256"},{"name":"amountPOND","type":"uint256"},{"name":"expiry","type":"uint256"}]}]},
{"type":"function","name":"getStats","stateMutability":"view","inputs":[],"outputs":[{"name":"volumeSGB","type":"uint256"},{"name":"volumePOND","type":"uint256"},{"name":"sales","type":"uint256"}]},
{"type":"function","name":"getCollectionStats","stateMutability":"view","inputs":[{"name":"collection","type":"address"}],"outputs":[{"name":"volumeSGB","type":"uint256"},{"name":"volumePOND","type":"uint256"},{"name":"sales","type":"uint256"}]},
{"type":"function","name":"getActiveListings","stateMutability":"view","inputs":[{"name":"collection","type":"address"}],"outputs":[{"name":"","type":"uint256[]"}]},
{"type":"function","name":"getActiveListingCount","stateMutability":"view","inputs":[{"name":"collection","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"event","name":"Listed","anonymous":false,"inputs":[{"name":"collection","type":"address","indexed":true},{"name":"tokenId","type":"uint256","indexed":true},{"name":"seller","type":"address","indexed":true},{"name":"priceSGB","type":"uint256","indexed":false},{"name":"pricePOND","type":"uint256","indexed":false}]},
{"type":"event","name":"Unlisted","anonymous":false,"inputs":[{"name":"collection","type":"address","indexed":true},{"name":"tokenId","type":"uint256","indexed":true},{"name":"seller","type":"address","indexed":true}]},
{"type":"event","name":"Sold","anonymous":false,"inputs":[{"name":"collection","type":"address","indexed":true},{"name":"tokenId","type":"uint256","indexed":true},{"name":"seller","type":"address","indexed":false},{"name":"buyer","type":"address","indexed":true},{"name":"priceSGB","type":"uint256","indexed":false},{"name":"pricePOND","type":"uint256","indexed":false}]}
]`

const poolABIJSON = `[
{"type":"function","name":"reserveSGB","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"reservePOND","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"getUserInfo","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"sgbDeposited","type":"uint256"},{"name":"pondDeposited","type":"uint256"},{"name":"lockTier","type":"uint256"},{"name":"lockExpires","type":"uint256"},{"name":"weightedShares","type":"uint256"},{"name":"poolShareBps","type":"uint256"},{"name":"multiplier","type":"uint256"},{"name":"pendingPond","type":"uint256"},{"name":"pendingSgb","type":"uint256"},{"name":"claimableIn","type":"uint256"}]}
]`

var (
	erc721ABI      = mustParseABI(erc721ABIJSON)
	stakingABI     = mustParseABI(stakingABIJSON)
	marketplaceABI = mustParseABI(marketplaceABIJSON)
	poolABI        = mustParseABI(poolABIJSON)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("parsing ABI: %v", err))
	}
	return parsed
}

// Caller executes read-only contract calls.
type Caller interface {
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// contract binds an ABI to an address.
type contract struct {
	address common.Address
	abi     abi.ABI
	caller  Caller
}

// call packs, executes and unpacks a view method. An empty return is treated as a revert.
func (c contract) call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("packing %s: %w", method, err)
	}

	out, err := c.caller.Call(ctx, c.address, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s on %s: empty result: %w", method, c.address.Hex(), ErrReverted)
	}

	values, err := c.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpacking %s: %w", method, err)
	}
	return values, nil
}

func bigToInt(v any) int {
	b, ok := v.(*big.Int)
	if !ok || b == nil || !b.IsInt64() {
		return 0
	}
	return int(b.Int64())
}

func bigToInt64(v any) int64 {
	b, ok := v.(*big.Int)
	if !ok || b == nil || !b.IsInt64() {
		return 0
	}
	return b.Int64()
}

func asBig(v any) *big.Int {
	b, _ := v.(*big.Int)
	return b
}

func bigSliceToInts(v any) []int {
	items, _ := v.([]*big.Int)
	out := make([]int, 0, len(items))
	for _, b := range items {
		if b != nil && b.IsInt64() {
			out = append(out, int(b.Int64()))
		}
	}
	return out
}
