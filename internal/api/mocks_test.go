package api

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/nftstate/internal/chain"
	"github.com/mtlprog/nftstate/internal/currency"
	"github.com/mtlprog/nftstate/internal/domain"
	"github.com/mtlprog/nftstate/internal/indexer"
	"github.com/mtlprog/nftstate/internal/listing"
	"github.com/mtlprog/nftstate/internal/metadata"
	"github.com/mtlprog/nftstate/internal/ownership"
	"github.com/mtlprog/nftstate/internal/portfolio"
	"github.com/mtlprog/nftstate/internal/snapshot"
)

const (
	testWallet     = "0x1111111111111111111111111111111111111111"
	testCollection = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
)

var testCollections = []domain.Collection{
	{Address: "0xAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAa", Name: "Alpha", Symbol: "ALPHA", Supply: 100},
}

type mockSnapshots struct {
	snapshots     []snapshot.Snapshot
	lastListLimit int
	floors        []snapshot.FloorPoint
	generateErr   error
}

func (m *mockSnapshots) Generate(_ context.Context, date time.Time) (snapshot.MarketSnapshot, error) {
	if m.generateErr != nil {
		return snapshot.MarketSnapshot{}, m.generateErr
	}
	return snapshot.MarketSnapshot{Date: date}, nil
}

func (m *mockSnapshots) GetLatest(_ context.Context) (*snapshot.Snapshot, error) {
	if len(m.snapshots) == 0 {
		return nil, snapshot.ErrNotFound
	}
	return &m.snapshots[0], nil
}

func (m *mockSnapshots) GetByDate(_ context.Context, date time.Time) (*snapshot.Snapshot, error) {
	for _, s := range m.snapshots {
		if s.SnapshotDate.Equal(date) {
			return &s, nil
		}
	}
	return nil, snapshot.ErrNotFound
}

func (m *mockSnapshots) List(_ context.Context, limit int) ([]snapshot.Snapshot, error) {
	m.lastListLimit = limit
	return m.snapshots[:min(limit, len(m.snapshots))], nil
}

func (m *mockSnapshots) FloorHistory(_ context.Context, _ string, limit int) ([]snapshot.FloorPoint, error) {
	return m.floors[:min(limit, len(m.floors))], nil
}

type mockResolver struct {
	holdings ownership.Holdings
	lastCols []domain.Collection
}

func (m *mockResolver) Resolve(_ context.Context, wallet string, cols []domain.Collection) (ownership.Holdings, error) {
	m.lastCols = cols
	if wallet != testWallet {
		return ownership.Holdings{}, fmt.Errorf("%w: %q", ownership.ErrInvalidWallet, wallet)
	}
	return m.holdings, nil
}

type mockProfiles struct{}

func (mockProfiles) Profile(_ context.Context, wallet string) (portfolio.Profile, error) {
	return portfolio.Profile{Wallet: wallet}, nil
}

type mockMarket struct {
	lastQuery listing.BrowseQuery
	offers    []domain.Offer
	noVolume  bool
	err       error
}

func (m *mockMarket) Market(_ context.Context, collection string) (listing.CollectionMarket, error) {
	market := listing.CollectionMarket{Collection: collection}
	if !m.noVolume {
		market.Volume = &domain.VolumeStats{Sales: 3}
	}
	return market, m.err
}

func (m *mockMarket) Browse(_ context.Context, col domain.Collection, q listing.BrowseQuery) (listing.BrowseResult, error) {
	m.lastQuery = q
	return listing.BrowseResult{Collection: col.Address}, m.err
}

func (m *mockMarket) Offers(_ context.Context, _ string, _ int) ([]domain.Offer, error) {
	return m.offers, m.err
}

func (m *mockMarket) ProtocolVolume(_ context.Context, _ []string) (listing.ProtocolVolume, error) {
	return listing.ProtocolVolume{}, m.err
}

type mockMetadata struct {
	table       *metadata.Table
	invalidated []string
}

func (m *mockMetadata) Load(_ context.Context, _ domain.Collection) (*metadata.Table, error) {
	return m.table, nil
}

func (m *mockMetadata) Invalidate(address string) bool {
	m.invalidated = append(m.invalidated, address)
	return true
}

type mockIndexer struct {
	leaderboard []indexer.LeaderboardEntry
	err         error
	cleared     []string
}

func (m *mockIndexer) FetchNotifications(_ context.Context, _ string) ([]indexer.Notification, error) {
	return []indexer.Notification{{Type: "sale", Title: "Sold"}}, m.err
}

func (m *mockIndexer) FetchUnreadCounts(_ context.Context, _ string) (indexer.UnreadCounts, error) {
	var c indexer.UnreadCounts
	c.Counts.Red = 2
	return c, m.err
}

func (m *mockIndexer) ClearNotifications(_ context.Context, address string) error {
	m.cleared = append(m.cleared, address)
	return m.err
}

func (m *mockIndexer) FetchUserActivity(_ context.Context, _ string) ([]indexer.ActivityEvent, error) {
	return nil, m.err
}

func (m *mockIndexer) FetchRecentActivity(_ context.Context, limit int) ([]indexer.ActivityEvent, error) {
	return make([]indexer.ActivityEvent, limit), m.err
}

func (m *mockIndexer) FetchLeaderboard(_ context.Context, _ indexer.LeaderboardKind) ([]indexer.LeaderboardEntry, error) {
	return slices.Clone(m.leaderboard), m.err
}

func (m *mockIndexer) FetchCollectionStats(_ context.Context, _ string) (indexer.CollectionStats, error) {
	return indexer.CollectionStats{Sales: 9}, m.err
}

type mockSales struct {
	sales []chain.Sale
}

func (m mockSales) SalesSince(_ context.Context, _ uint64) ([]chain.Sale, error) {
	return m.sales, nil
}

type mockStaking struct {
	err error
}

func (m mockStaking) GetGlobalStats(_ context.Context) (domain.StakingGlobalStats, error) {
	return domain.StakingGlobalStats{TotalNFTsStaked: 42}, m.err
}

type mockRates struct{}

func (mockRates) Snapshot(_ context.Context) domain.ExchangeRate {
	return domain.ExchangeRate{APerB: decimal.NewFromInt(2)}
}

func (mockRates) Converter() *currency.Converter {
	return currency.NewConverter(decimal.NewFromInt(1))
}

func newTestHandler() *Handler {
	return NewHandler(Deps{
		Collections: testCollections,
		Holdings:    &mockResolver{},
		Profiles:    mockProfiles{},
		Market:      &mockMarket{},
		Metadata:    &mockMetadata{},
		Indexer:     &mockIndexer{},
		Sales:       mockSales{},
		Staking:     mockStaking{},
		Rates:       mockRates{},
		Snapshots:   &mockSnapshots{},
	})
}
