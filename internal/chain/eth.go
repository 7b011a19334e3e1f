package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Log is an EVM event log as returned by eth_getLogs and eth_subscribe.
type Log = types.Log

// FilterQuery selects logs in an inclusive block range. A nil topic position matches anything.
type FilterQuery struct {
	FromBlock uint64
	ToBlock   uint64
	Addresses []common.Address
	Topics    [][]common.Hash
}

func (q FilterQuery) rangeQuery() ethereum.FilterQuery {
	return ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(q.FromBlock),
		ToBlock:   new(big.Int).SetUint64(q.ToBlock),
		Addresses: q.Addresses,
		Topics:    q.Topics,
	}
}

// liveQuery drops the block range; subscriptions only see new blocks.
func (q FilterQuery) liveQuery() ethereum.FilterQuery {
	return ethereum.FilterQuery{Addresses: q.Addresses, Topics: q.Topics}
}

// Call executes a read-only contract call against the latest block.
func (c *Client) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	var out []byte
	err := c.do(ctx, "eth_call", func(ctx context.Context) (err error) {
		out, err = c.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("eth_call %s: %w", to.Hex(), err)
	}
	return out, nil
}

// BlockNumber returns the latest block height.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var out uint64
	err := c.do(ctx, "eth_blockNumber", func(ctx context.Context) (err error) {
		out, err = c.eth.BlockNumber(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("eth_blockNumber: %w", err)
	}
	return out, nil
}

// GetLogs returns logs matching the query.
func (c *Client) GetLogs(ctx context.Context, q FilterQuery) ([]Log, error) {
	var out []Log
	err := c.do(ctx, "eth_getLogs", func(ctx context.Context) (err error) {
		out, err = c.eth.FilterLogs(ctx, q.rangeQuery())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("eth_getLogs [%d,%d]: %w", q.FromBlock, q.ToBlock, err)
	}
	return out, nil
}

// AddressTopic left-pads an address into a 32-byte topic.
func AddressTopic(address string) common.Hash {
	return common.BytesToHash(common.HexToAddress(address).Bytes())
}

// SameAddress compares two hex addresses ignoring case.
func SameAddress(a, b string) bool {
	return strings.EqualFold(common.HexToAddress(a).Hex(), common.HexToAddress(b).Hex())
}
