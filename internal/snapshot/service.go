package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/nftstate/internal/domain"
	"github.com/mtlprog/nftstate/internal/listing"
)

const generateConcurrency = 4

// MarketSource assembles the live market of a collection at a given rate.
type MarketSource interface {
	Rate(ctx context.Context) domain.ExchangeRate
	MarketAt(ctx context.Context, collection string, rate domain.ExchangeRate) (listing.CollectionMarket, error)
}

// USDSource prices currency A in USD.
type USDSource interface {
	USDPerA(ctx context.Context) (decimal.Decimal, error)
}

// Service manages snapshot generation and retrieval.
type Service struct {
	market      MarketSource
	repo        Repository
	collections []domain.Collection
	usd         USDSource
	now         func() time.Time
}

// NewService creates a new snapshot service. usd may be nil, in which case USD floors are omitted.
func NewService(market MarketSource, repo Repository, collections []domain.Collection, usd USDSource) *Service {
	return &Service{
		market:      market,
		repo:        repo,
		collections: collections,
		usd:         usd,
		now:         time.Now,
	}
}

// Generate captures the market of every collection at a single exchange rate and stores it under date.
// A collection whose market or volume cannot be read is listed in Missing; if no market can be read
// the snapshot is not stored.
func (s *Service) Generate(ctx context.Context, date time.Time) (MarketSnapshot, error) {
	date = date.UTC().Truncate(24 * time.Hour)

	snap := MarketSnapshot{
		Date:         date,
		Rate:         s.market.Rate(ctx),
		TotalVolumeA: decimal.Zero,
		GeneratedAt:  s.now().UTC(),
	}

	if s.usd != nil {
		if price, err := s.usd.USDPerA(ctx); err != nil {
			slog.Warn("USD quote unavailable for snapshot", "error", err)
		} else {
			snap.USDPerA = &price
		}
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, generateConcurrency)
	)
	for _, col := range s.collections {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			m, err := s.market.MarketAt(ctx, col.Address, snap.Rate)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.Warn("failed to read market for snapshot", "collection", col.Name, "error", err)
				snap.Missing = append(snap.Missing, col.Address)
				return
			}
			if m.Volume == nil {
				slog.Warn("volume unavailable for snapshot", "collection", col.Name)
				snap.Missing = append(snap.Missing, col.Address)
			}
			snap.Collections = append(snap.Collections, collectionRow(col, m, snap.USDPerA))
		}()
	}
	wg.Wait()

	if len(snap.Collections) == 0 && len(s.collections) > 0 {
		return MarketSnapshot{}, fmt.Errorf("no collection market could be read: %w", domain.ErrSourceUnavailable)
	}

	order := make(map[string]int, len(s.collections))
	for i, c := range s.collections {
		order[c.Key()] = i
	}
	slices.SortFunc(snap.Collections, func(a, b CollectionSnapshot) int {
		return order[strings.ToLower(a.Address)] - order[strings.ToLower(b.Address)]
	})
	slices.Sort(snap.Missing)

	for _, c := range snap.Collections {
		snap.TotalListed += c.ListedCount
		if c.Volume != nil {
			snap.TotalVolumeA = snap.TotalVolumeA.Add(c.Volume.EquivalentA)
			snap.TotalSales += c.Volume.Sales
		}
	}

	s.applyFloorChange(ctx, &snap)

	data, err := json.Marshal(snap)
	if err != nil {
		return MarketSnapshot{}, fmt.Errorf("marshaling snapshot: %w", err)
	}

	if err := s.repo.Save(ctx, date, data, snap.Collections); err != nil {
		return MarketSnapshot{}, fmt.Errorf("saving snapshot: %w", err)
	}

	slog.Info("market snapshot generated",
		"date", date.Format(time.DateOnly),
		"collections", len(snap.Collections),
		"missing", len(snap.Missing),
		"volumeA", snap.TotalVolumeA.StringFixed(2))

	return snap, nil
}

func collectionRow(col domain.Collection, m listing.CollectionMarket, usdPerA *decimal.Decimal) CollectionSnapshot {
	row := CollectionSnapshot{
		Address:     col.Address,
		Name:        col.Name,
		Symbol:      col.Symbol,
		ListedCount: m.ListedCount,
		Floor:       m.Floor,
		Volume:      m.Volume,
	}
	if m.Floor != nil && usdPerA != nil {
		usd := m.Floor.Mul(*usdPerA).Round(2)
		row.FloorUSD = &usd
	}
	return row
}

// applyFloorChange sets each collection's floor change in percent against the previous stored snapshot.
func (s *Service) applyFloorChange(ctx context.Context, snap *MarketSnapshot) {
	prevRow, err := s.repo.GetNearestBefore(ctx, snap.Date)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Warn("failed to load previous snapshot", "error", err)
		}
		return
	}
	prev, err := prevRow.Decode()
	if err != nil {
		slog.Warn("failed to decode previous snapshot", "error", err)
		return
	}

	for i, c := range snap.Collections {
		p, ok := prev.Collection(c.Address)
		if !ok || p.Floor == nil || c.Floor == nil || !p.Floor.IsPositive() {
			continue
		}
		change := c.Floor.Sub(*p.Floor).Div(*p.Floor).Mul(decimal.NewFromInt(100)).Round(2)
		snap.Collections[i].FloorChange = &change
	}
}

// GetLatest retrieves the most recent snapshot.
func (s *Service) GetLatest(ctx context.Context) (*Snapshot, error) {
	return s.repo.GetLatest(ctx)
}

// GetByDate retrieves a snapshot for a specific date.
func (s *Service) GetByDate(ctx context.Context, date time.Time) (*Snapshot, error) {
	return s.repo.GetByDate(ctx, date)
}

// List retrieves recent snapshots.
func (s *Service) List(ctx context.Context, limit int) ([]Snapshot, error) {
	return s.repo.List(ctx, limit)
}

// FloorHistory retrieves the stored floor series of a collection.
func (s *Service) FloorHistory(ctx context.Context, collection string, limit int) ([]FloorPoint, error) {
	return s.repo.FloorHistory(ctx, collection, limit)
}
