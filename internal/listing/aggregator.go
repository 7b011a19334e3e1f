package listing

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/nftstate/internal/currency"
	"github.com/mtlprog/nftstate/internal/domain"
)

// DefaultBatchSize is the number of getListing calls issued together.
const DefaultBatchSize = 50

// MarketReader is the marketplace contract surface used by the aggregator.
type MarketReader interface {
	GetActiveListings(ctx context.Context, collection string) ([]int, error)
	GetListing(ctx context.Context, collection string, tokenID int) (domain.Listing, error)
	GetCollectionStats(ctx context.Context, collection string) (domain.VolumeStats, error)
	GetStats(ctx context.Context) (domain.VolumeStats, error)
	GetOffers(ctx context.Context, collection string, tokenID int) ([]domain.Offer, error)
}

// RateSource takes exchange-rate snapshots.
type RateSource interface {
	Snapshot(ctx context.Context) domain.ExchangeRate
	Converter() *currency.Converter
}

// QuotedListing is a listing with its comparable price.
type QuotedListing struct {
	domain.Listing
	Quote domain.PriceQuote `json:"quote"`
}

// CollectionMarket is the market state of one collection within a single pass.
// ListedCount counts valid listings only. Volume is nil when the collection counters could not be read.
type CollectionMarket struct {
	Collection   string              `json:"collection"`
	Listings     []QuotedListing     `json:"listings"`
	ListedCount  int                 `json:"listedCount"`
	Floor        *decimal.Decimal    `json:"floor"`
	FloorDisplay string              `json:"floorDisplay,omitempty"`
	Volume       *domain.VolumeStats `json:"volume"`
	Rate         domain.ExchangeRate `json:"rate"`
}

// Aggregator computes listings, floors and volumes from the marketplace contract.
type Aggregator struct {
	market    MarketReader
	rates     RateSource
	metadata  MetadataSource
	batchSize int
	now       func() time.Time
}

// NewAggregator creates an aggregator. metadata may be nil when Browse is not used.
func NewAggregator(market MarketReader, rates RateSource, metadata MetadataSource, batchSize int) *Aggregator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Aggregator{market: market, rates: rates, metadata: metadata, batchSize: batchSize, now: time.Now}
}

// ActiveListings returns the active listings of a collection ordered by token id.
// Listings that fail to load are logged and dropped.
func (a *Aggregator) ActiveListings(ctx context.Context, collection string) ([]domain.Listing, error) {
	ids, err := a.market.GetActiveListings(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("getting active listings of %s: %w", collection, err)
	}

	var (
		mu       sync.Mutex
		listings = make([]domain.Listing, 0, len(ids))
	)
	for batch := range slices.Chunk(ids, a.batchSize) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var wg sync.WaitGroup
		for _, id := range batch {
			wg.Add(1)
			go func() {
				defer wg.Done()
				l, err := a.market.GetListing(ctx, collection, id)
				if err != nil {
					slog.Warn("getListing failed", "collection", collection, "token", id, "error", err)
					return
				}
				if !l.Active {
					return
				}
				mu.Lock()
				listings = append(listings, l)
				mu.Unlock()
			}()
		}
		wg.Wait()
	}

	slices.SortFunc(listings, func(x, y domain.Listing) int { return cmp.Compare(x.TokenID, y.TokenID) })
	return listings, nil
}

// Rate takes an exchange-rate snapshot for callers that price several collections in one pass.
func (a *Aggregator) Rate(ctx context.Context) domain.ExchangeRate {
	return a.rates.Snapshot(ctx)
}

// Market assembles listings with quotes, the floor and volume of a collection at the current rate.
func (a *Aggregator) Market(ctx context.Context, collection string) (CollectionMarket, error) {
	return a.MarketAt(ctx, collection, a.rates.Snapshot(ctx))
}

// MarketAt is Market priced at a rate taken by the caller.
func (a *Aggregator) MarketAt(ctx context.Context, collection string, rate domain.ExchangeRate) (CollectionMarket, error) {
	conv := a.rates.Converter()

	listings, err := a.ActiveListings(ctx, collection)
	if err != nil {
		return CollectionMarket{}, err
	}

	m := CollectionMarket{
		Collection: collection,
		Listings:   QuoteAll(conv, listings, rate),
		Rate:       rate,
	}
	quotes := make([]domain.PriceQuote, len(m.Listings))
	for i, l := range m.Listings {
		quotes[i] = l.Quote
		if err := l.Validate(); err != nil {
			slog.Debug("listing excluded from floor", "collection", collection, "error", err)
			continue
		}
		m.ListedCount++
	}
	if floor, ok := Floor(quotes); ok {
		m.Floor = &floor
		m.FloorDisplay = currency.DisplayA(floor)
	}

	stats, err := a.market.GetCollectionStats(ctx, collection)
	if err != nil {
		slog.Warn("getCollectionStats failed", "collection", collection, "error", err)
	} else {
		stats.EquivalentA = conv.Sum(stats.VolumeA, stats.VolumeB, rate.APerB)
		m.Volume = &stats
	}

	return m, nil
}

// QuoteAll prices every listing at rate.
func QuoteAll(conv *currency.Converter, listings []domain.Listing, rate domain.ExchangeRate) []QuotedListing {
	out := make([]QuotedListing, len(listings))
	for i, l := range listings {
		out[i] = QuotedListing{Listing: l, Quote: conv.Quote(l.PriceA, l.PriceB, rate.APerB)}
	}
	return out
}

// Floor is the lowest A-equivalent over valid quotes. ok is false when there is none.
func Floor(quotes []domain.PriceQuote) (floor decimal.Decimal, ok bool) {
	for _, q := range quotes {
		if !q.Valid {
			continue
		}
		if !ok || q.EquivalentA.LessThan(floor) {
			floor = q.EquivalentA
			ok = true
		}
	}
	return floor, ok
}

// ProtocolVolume is marketplace volume across collections with each leg converted before summing.
type ProtocolVolume struct {
	Global      domain.VolumeStats            `json:"global"`
	Collections map[string]domain.VolumeStats `json:"collections"`
	TotalA      decimal.Decimal               `json:"totalA"`
	TotalSales  int64                         `json:"totalSales"`
	Rate        domain.ExchangeRate           `json:"rate"`
}

// ProtocolVolume reads global and per-collection volume. Per-collection failures leave the collection out.
func (a *Aggregator) ProtocolVolume(ctx context.Context, collections []string) (ProtocolVolume, error) {
	rate := a.rates.Snapshot(ctx)
	conv := a.rates.Converter()

	global, err := a.market.GetStats(ctx)
	if err != nil {
		return ProtocolVolume{}, fmt.Errorf("getting marketplace stats: %w", err)
	}
	global.EquivalentA = conv.Sum(global.VolumeA, global.VolumeB, rate.APerB)

	pv := ProtocolVolume{
		Global:      global,
		Collections: make(map[string]domain.VolumeStats, len(collections)),
		TotalA:      decimal.Zero,
		Rate:        rate,
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, col := range collections {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stats, err := a.market.GetCollectionStats(ctx, col)
			if err != nil {
				slog.Warn("getCollectionStats failed", "collection", col, "error", err)
				return
			}
			stats.EquivalentA = conv.Sum(stats.VolumeA, stats.VolumeB, rate.APerB)
			mu.Lock()
			pv.Collections[col] = stats
			pv.TotalA = pv.TotalA.Add(stats.EquivalentA)
			pv.TotalSales += stats.Sales
			mu.Unlock()
		}()
	}
	wg.Wait()

	return pv, nil
}

// Offers returns the live offers on a token, each priced at the current rate. Cancelled slots are removed.
func (a *Aggregator) Offers(ctx context.Context, collection string, tokenID int) ([]domain.Offer, error) {
	offers, err := a.market.GetOffers(ctx, collection, tokenID)
	if err != nil {
		return nil, fmt.Errorf("getting offers on %s #%d: %w", collection, tokenID, err)
	}

	rate := a.rates.Snapshot(ctx)
	conv := a.rates.Converter()
	now := a.now()

	out := make([]domain.Offer, 0, len(offers))
	for _, o := range offers {
		if o.Cancelled() {
			continue
		}
		o.Expired = !o.Expiry.After(now)
		o.Quote = conv.Quote(o.AmountA, o.AmountB, rate.APerB)
		out = append(out, o)
	}
	return out, nil
}
