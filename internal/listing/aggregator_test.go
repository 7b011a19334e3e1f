package listing

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtlprog/nftstate/internal/currency"
	"github.com/mtlprog/nftstate/internal/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type mockMarket struct {
	active     map[string][]int
	listings   map[int]domain.Listing
	failIDs    map[int]bool
	stats      map[string]domain.VolumeStats
	global     domain.VolumeStats
	offers     []domain.Offer
	activeErr  error
	listingHit atomic.Int32
}

func (m *mockMarket) GetActiveListings(_ context.Context, collection string) ([]int, error) {
	if m.activeErr != nil {
		return nil, m.activeErr
	}
	return m.active[strings.ToLower(collection)], nil
}

func (m *mockMarket) GetListing(_ context.Context, collection string, tokenID int) (domain.Listing, error) {
	m.listingHit.Add(1)
	if m.failIDs[tokenID] {
		return domain.Listing{}, errors.New("rpc timeout")
	}
	l := m.listings[tokenID]
	l.CollectionAddress = collection
	l.TokenID = tokenID
	return l, nil
}

func (m *mockMarket) GetCollectionStats(_ context.Context, collection string) (domain.VolumeStats, error) {
	s, ok := m.stats[strings.ToLower(collection)]
	if !ok {
		return domain.VolumeStats{}, domain.ErrSourceUnavailable
	}
	return s, nil
}

func (m *mockMarket) GetStats(context.Context) (domain.VolumeStats, error) {
	return m.global, nil
}

func (m *mockMarket) GetOffers(context.Context, string, int) ([]domain.Offer, error) {
	return m.offers, nil
}

type fixedRate struct {
	rate domain.ExchangeRate
	conv *currency.Converter
}

func (f fixedRate) Snapshot(context.Context) domain.ExchangeRate { return f.rate }
func (f fixedRate) Converter() *currency.Converter               { return f.conv }

func rateOf(aPerB string) fixedRate {
	return fixedRate{rate: domain.ExchangeRate{APerB: d(aPerB), Degraded: d(aPerB).IsZero()}, conv: currency.NewConverter(decimal.Zero)}
}

const col = "0xabc"

func TestActiveListings_BatchesAndDropsFailures(t *testing.T) {
	ids := make([]int, 0, 120)
	listings := make(map[int]domain.Listing)
	for i := 1; i <= 120; i++ {
		ids = append(ids, i)
		listings[i] = domain.Listing{PriceA: d("10"), Active: i != 50}
	}
	m := &mockMarket{active: map[string][]int{col: ids}, listings: listings, failIDs: map[int]bool{7: true}}

	got, err := NewAggregator(m, rateOf("0.5"), nil, 50).ActiveListings(t.Context(), col)
	require.NoError(t, err)
	assert.Len(t, got, 118)
	assert.Equal(t, int32(120), m.listingHit.Load())
	assert.Equal(t, 1, got[0].TokenID)
	assert.Equal(t, 120, got[len(got)-1].TokenID)
}

func TestActiveListings_SourceError(t *testing.T) {
	m := &mockMarket{activeErr: domain.ErrSourceUnavailable}
	_, err := NewAggregator(m, rateOf("0.5"), nil, 0).ActiveListings(t.Context(), col)
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestMarket_FloorAndVolume(t *testing.T) {
	m := &mockMarket{
		active: map[string][]int{col: {1, 2, 3, 4}},
		listings: map[int]domain.Listing{
			1: {PriceA: d("30"), Active: true},
			2: {PriceB: d("50"), Active: true},
			3: {Active: true},
			4: {PriceA: d("40"), PriceB: d("100"), Active: true},
		},
		stats: map[string]domain.VolumeStats{col: {VolumeA: d("100"), VolumeB: d("1000"), Sales: 4}},
	}

	market, err := NewAggregator(m, rateOf("0.5"), nil, 0).Market(t.Context(), col)
	require.NoError(t, err)

	require.NotNil(t, market.Floor)
	assert.Equal(t, "25", market.Floor.String())
	assert.Equal(t, "25.00 SGB", market.FloorDisplay)
	assert.Equal(t, 3, market.ListedCount, "listing priced zero in both currencies is not counted")
	assert.Len(t, market.Listings, 4)
	assert.False(t, market.Listings[2].Quote.Valid)
	require.NotNil(t, market.Volume)
	assert.Equal(t, "600", market.Volume.EquivalentA.String())
	assert.Equal(t, int64(4), market.Volume.Sales)
}

func TestMarket_NoFloorWhenAllInvalid(t *testing.T) {
	m := &mockMarket{
		active:   map[string][]int{col: {1}},
		listings: map[int]domain.Listing{1: {Active: true}},
	}

	market, err := NewAggregator(m, rateOf("0.5"), nil, 0).Market(t.Context(), col)
	require.NoError(t, err)
	assert.Nil(t, market.Floor)
	assert.Empty(t, market.FloorDisplay)
	assert.Zero(t, market.ListedCount)
	assert.Nil(t, market.Volume, "unread collection stats are unknown, not zero")
}

func TestMarketAt_UsesGivenRate(t *testing.T) {
	m := &mockMarket{
		active:   map[string][]int{col: {1}},
		listings: map[int]domain.Listing{1: {PriceB: d("10"), Active: true}},
		stats:    map[string]domain.VolumeStats{col: {VolumeB: d("100")}},
	}
	rate := domain.ExchangeRate{APerB: d("2")}

	market, err := NewAggregator(m, rateOf("0.5"), nil, 0).MarketAt(t.Context(), col, rate)
	require.NoError(t, err)
	assert.Equal(t, rate, market.Rate)
	require.NotNil(t, market.Floor)
	assert.Equal(t, "20", market.Floor.String())
	require.NotNil(t, market.Volume)
	assert.Equal(t, "200", market.Volume.EquivalentA.String())
}

func TestFloor(t *testing.T) {
	_, ok := Floor(nil)
	assert.False(t, ok)

	floor, ok := Floor([]domain.PriceQuote{
		{EquivalentA: d("5"), Valid: true},
		{EquivalentA: d("0"), Valid: false},
		{EquivalentA: d("2.5"), Valid: true},
	})
	require.True(t, ok)
	assert.Equal(t, "2.5", floor.String())
}

func TestProtocolVolume_ConvertsBeforeSumming(t *testing.T) {
	m := &mockMarket{
		global: domain.VolumeStats{VolumeA: d("10"), VolumeB: d("50"), Sales: 3},
		stats: map[string]domain.VolumeStats{
			"0xa": {VolumeA: d("10"), VolumeB: d("0"), Sales: 1},
			"0xb": {VolumeA: d("0"), VolumeB: d("50"), Sales: 2},
		},
	}

	pv, err := NewAggregator(m, rateOf("0"), nil, 0).ProtocolVolume(t.Context(), []string{"0xa", "0xb", "0xc"})
	require.NoError(t, err)
	assert.Equal(t, "10.05", pv.Global.EquivalentA.String())
	assert.Equal(t, "10.05", pv.TotalA.String())
	assert.Equal(t, int64(3), pv.TotalSales)
	assert.Len(t, pv.Collections, 2)
	assert.True(t, pv.Rate.Degraded)
}

func TestOffers(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	m := &mockMarket{offers: []domain.Offer{
		{Index: 0, Buyer: "0x00000000000000000000000000000000000000cc", AmountB: d("100"), Expiry: now.Add(time.Hour)},
		{Index: 1, Buyer: domain.ZeroAddress},
		{Index: 2, Buyer: "0x00000000000000000000000000000000000000dd", AmountA: d("3"), Expiry: now.Add(-time.Hour)},
	}}
	agg := NewAggregator(m, rateOf("0.5"), nil, 0)
	agg.now = func() time.Time { return now }

	offers, err := agg.Offers(t.Context(), col, 9)
	require.NoError(t, err)
	require.Len(t, offers, 2)
	assert.False(t, offers[0].Expired)
	assert.Equal(t, "50", offers[0].Quote.EquivalentA.String())
	assert.True(t, offers[1].Expired)
	assert.Equal(t, 2, offers[1].Index)
}
