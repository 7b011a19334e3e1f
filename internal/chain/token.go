package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TransferEventID is the topic of ERC-721 Transfer(address,address,uint256).
var TransferEventID = erc721ABI.Events["Transfer"].ID

// LogSource fetches event logs and the chain head.
type LogSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	GetLogs(ctx context.Context, q FilterQuery) ([]Log, error)
}

// ERC721 reads any ERC-721 collection; the collection address is passed per call.
type ERC721 struct {
	caller Caller
	logs   LogSource
}

// NewERC721 creates a token reader.
func NewERC721(caller Caller, logs LogSource) *ERC721 {
	return &ERC721{caller: caller, logs: logs}
}

func (t *ERC721) bind(collection string) contract {
	return contract{address: common.HexToAddress(collection), abi: erc721ABI, caller: t.caller}
}

// BalanceOf returns the number of tokens held by owner.
func (t *ERC721) BalanceOf(ctx context.Context, collection, owner string) (int, error) {
	out, err := t.bind(collection).call(ctx, "balanceOf", common.HexToAddress(owner))
	if err != nil {
		return 0, err
	}
	return bigToInt(out[0]), nil
}

// OwnerOf returns the current owner of a token.
func (t *ERC721) OwnerOf(ctx context.Context, collection string, tokenID int) (string, error) {
	out, err := t.bind(collection).call(ctx, "ownerOf", big.NewInt(int64(tokenID)))
	if err != nil {
		return "", err
	}
	addr, _ := out[0].(common.Address)
	return addr.Hex(), nil
}

// TokenOfOwnerByIndex returns the token at position index of owner's enumeration.
// Collections without ERC721Enumerable revert, which surfaces as ErrReverted.
func (t *ERC721) TokenOfOwnerByIndex(ctx context.Context, collection, owner string, index int) (int, error) {
	out, err := t.bind(collection).call(ctx, "tokenOfOwnerByIndex", common.HexToAddress(owner), big.NewInt(int64(index)))
	if err != nil {
		return 0, err
	}
	return bigToInt(out[0]), nil
}

// IsApprovedForAll reports whether operator may move every token of owner.
func (t *ERC721) IsApprovedForAll(ctx context.Context, collection, owner, operator string) (bool, error) {
	out, err := t.bind(collection).call(ctx, "isApprovedForAll", common.HexToAddress(owner), common.HexToAddress(operator))
	if err != nil {
		return false, err
	}
	approved, _ := out[0].(bool)
	return approved, nil
}

// BlockNumber returns the chain head.
func (t *ERC721) BlockNumber(ctx context.Context) (uint64, error) {
	return t.logs.BlockNumber(ctx)
}

// TransfersTo returns token ids transferred to the recipient within [fromBlock, toBlock].
func (t *ERC721) TransfersTo(ctx context.Context, collection, recipient string, fromBlock, toBlock uint64) ([]int, error) {
	logs, err := t.logs.GetLogs(ctx, FilterQuery{
		FromBlock: fromBlock,
		ToBlock:   toBlock,
		Addresses: []common.Address{common.HexToAddress(collection)},
		Topics:    [][]common.Hash{{TransferEventID}, nil, {AddressTopic(recipient)}},
	})
	if err != nil {
		return nil, fmt.Errorf("scanning transfers of %s: %w", collection, err)
	}

	ids := make([]int, 0, len(logs))
	for _, l := range logs {
		if l.Removed || len(l.Topics) < 4 {
			continue
		}
		id := new(big.Int).SetBytes(l.Topics[3].Bytes())
		if id.IsInt64() {
			ids = append(ids, int(id.Int64()))
		}
	}
	return ids, nil
}
