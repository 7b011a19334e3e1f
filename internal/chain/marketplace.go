package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/mtlprog/nftstate/internal/domain"
)

// Marketplace event topics.
var (
	ListedEventID   = marketplaceABI.Events["Listed"].ID
	UnlistedEventID = marketplaceABI.Events["Unlisted"].ID
	SoldEventID     = marketplaceABI.Events["Sold"].ID
)

// Marketplace reads the marketplace contract.
type Marketplace struct {
	contract
	logs LogSource
}

// NewMarketplace binds the marketplace contract at address.
func NewMarketplace(caller Caller, logs LogSource, address string) *Marketplace {
	return &Marketplace{
		contract: contract{address: common.HexToAddress(address), abi: marketplaceABI, caller: caller},
		logs:     logs,
	}
}

// Address returns the contract address.
func (m *Marketplace) Address() common.Address {
	return m.address
}

// GetActiveListings returns the token ids with an active listing in the collection.
func (m *Marketplace) GetActiveListings(ctx context.Context, collection string) ([]int, error) {
	out, err := m.call(ctx, "getActiveListings", common.HexToAddress(collection))
	if err != nil {
		return nil, err
	}
	return bigSliceToInts(out[0]), nil
}

// GetListing returns the listing slot of a token. Inactive slots are returned with Active=false.
func (m *Marketplace) GetListing(ctx context.Context, collection string, tokenID int) (domain.Listing, error) {
	out, err := m.call(ctx, "getListing", common.HexToAddress(collection), big.NewInt(int64(tokenID)))
	if err != nil {
		return domain.Listing{}, err
	}
	seller, _ := out[0].(common.Address)
	active, _ := out[3].(bool)
	return domain.Listing{
		CollectionAddress: collection,
		TokenID:           tokenID,
		Seller:            seller.Hex(),
		PriceA:            domain.FromWei(asBig(out[1])),
		PriceB:            domain.FromWei(asBig(out[2])),
		Active:            active,
	}, nil
}

type offerTuple struct {
	Buyer      common.Address
	AmountSGB  *big.Int
	AmountPOND *big.Int
	Expiry     *big.Int
}

func convertOffers(v any) (tuples []offerTuple, ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	converted, ok := abi.ConvertType(v, new([]offerTuple)).(*[]offerTuple)
	if !ok {
		return nil, false
	}
	return *converted, true
}

// GetOffers returns every offer slot of a token, including cancelled ones.
func (m *Marketplace) GetOffers(ctx context.Context, collection string, tokenID int) ([]domain.Offer, error) {
	out, err := m.call(ctx, "getOffers", common.HexToAddress(collection), big.NewInt(int64(tokenID)))
	if err != nil {
		return nil, err
	}

	tuples, ok := convertOffers(out[0])
	if !ok {
		return nil, fmt.Errorf("unexpected getOffers result type %T", out[0])
	}

	offers := make([]domain.Offer, len(tuples))
	for i, t := range tuples {
		offers[i] = domain.Offer{
			Index:   i,
			Buyer:   t.Buyer.Hex(),
			AmountA: domain.FromWei(t.AmountSGB),
			AmountB: domain.FromWei(t.AmountPOND),
			Expiry:  time.Unix(bigToInt64(t.Expiry), 0).UTC(),
		}
	}
	return offers, nil
}

// GetStats returns protocol-wide volume counters.
func (m *Marketplace) GetStats(ctx context.Context) (domain.VolumeStats, error) {
	out, err := m.call(ctx, "getStats")
	if err != nil {
		return domain.VolumeStats{}, err
	}
	return volumeFromOutputs(out), nil
}

// GetCollectionStats returns volume counters of one collection.
func (m *Marketplace) GetCollectionStats(ctx context.Context, collection string) (domain.VolumeStats, error) {
	out, err := m.call(ctx, "getCollectionStats", common.HexToAddress(collection))
	if err != nil {
		return domain.VolumeStats{}, err
	}
	return volumeFromOutputs(out), nil
}

func volumeFromOutputs(out []any) domain.VolumeStats {
	return domain.VolumeStats{
		VolumeA: domain.FromWei(asBig(out[0])),
		VolumeB: domain.FromWei(asBig(out[1])),
		Sales:   bigToInt64(out[2]),
	}
}

// Sale is a decoded Sold event.
type Sale struct {
	Collection  string
	TokenID     int
	Seller      string
	Buyer       string
	PriceA      *big.Int
	PriceB      *big.Int
	BlockNumber uint64
}

// SalesSince returns Sold events from the last lookback blocks.
func (m *Marketplace) SalesSince(ctx context.Context, lookback uint64) ([]Sale, error) {
	head, err := m.logs.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}
	from := uint64(0)
	if head > lookback {
		from = head - lookback
	}

	logs, err := m.logs.GetLogs(ctx, FilterQuery{
		FromBlock: from,
		ToBlock:   head,
		Addresses: []common.Address{m.address},
		Topics:    [][]common.Hash{{SoldEventID}},
	})
	if err != nil {
		return nil, fmt.Errorf("scanning sales: %w", err)
	}

	sales := make([]Sale, 0, len(logs))
	for _, l := range logs {
		s, err := DecodeSale(l)
		if err != nil {
			continue
		}
		sales = append(sales, s)
	}
	return sales, nil
}

// DecodeSale decodes a Sold log.
func DecodeSale(l Log) (Sale, error) {
	if len(l.Topics) < 4 || l.Topics[0] != SoldEventID {
		return Sale{}, fmt.Errorf("not a Sold log")
	}
	values, err := marketplaceABI.Events["Sold"].Inputs.NonIndexed().Unpack(l.Data)
	if err != nil {
		return Sale{}, fmt.Errorf("decoding Sold data: %w", err)
	}
	seller, _ := values[0].(common.Address)
	return Sale{
		Collection:  common.BytesToAddress(l.Topics[1].Bytes()).Hex(),
		TokenID:     int(new(big.Int).SetBytes(l.Topics[2].Bytes()).Int64()),
		Seller:      seller.Hex(),
		Buyer:       common.BytesToAddress(l.Topics[3].Bytes()).Hex(),
		PriceA:      asBig(values[1]),
		PriceB:      asBig(values[2]),
		BlockNumber: l.BlockNumber,
	}, nil
}

// MarketEvent is a decoded Listed, Unlisted or Sold log.
type MarketEvent struct {
	Kind       string
	Collection string
	TokenID    int
}

// DecodeMarketEvent classifies a marketplace log by its topic.
func DecodeMarketEvent(l Log) (MarketEvent, bool) {
	if len(l.Topics) < 3 {
		return MarketEvent{}, false
	}
	var kind string
	switch l.Topics[0] {
	case ListedEventID:
		kind = "listed"
	case UnlistedEventID:
		kind = "unlisted"
	case SoldEventID:
		kind = "sold"
	default:
		return MarketEvent{}, false
	}
	return MarketEvent{
		Kind:       kind,
		Collection: common.BytesToAddress(l.Topics[1].Bytes()).Hex(),
		TokenID:    int(new(big.Int).SetBytes(l.Topics[2].Bytes()).Int64()),
	}, true
}
