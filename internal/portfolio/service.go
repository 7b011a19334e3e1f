package portfolio

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/nftstate/internal/currency"
	"github.com/mtlprog/nftstate/internal/domain"
	"github.com/mtlprog/nftstate/internal/indexer"
	"github.com/mtlprog/nftstate/internal/listing"
	"github.com/mtlprog/nftstate/internal/ownership"
)

const listingConcurrency = 8

// Profile parts reported in Unavailable when their source fails.
const (
	PartHoldings = "holdings"
	PartListings = "listings"
	PartStaking  = "staking"
	PartLP       = "lp"
	PartTrading  = "trading"
)

// HoldingsResolver reconciles the tokens of a wallet.
type HoldingsResolver interface {
	Resolve(ctx context.Context, wallet string, cols []domain.Collection) (ownership.Holdings, error)
}

// ListingReader reads a single marketplace listing.
type ListingReader interface {
	GetListing(ctx context.Context, collection string, tokenID int) (domain.Listing, error)
}

// StakingReader reads per-user staking stats.
type StakingReader interface {
	GetUserStats(ctx context.Context, user string) (domain.StakingUserStats, error)
}

// PoolReader reads a liquidity provider position.
type PoolReader interface {
	GetUserInfo(ctx context.Context, user string) (domain.LPPosition, error)
}

// TradingStatsSource provides indexed trading statistics of a wallet.
type TradingStatsSource interface {
	FetchUserStats(ctx context.Context, address string) (indexer.UserStats, error)
}

// RateSource provides the pass exchange rate and converter.
type RateSource interface {
	Snapshot(ctx context.Context) domain.ExchangeRate
	Converter() *currency.Converter
}

// Profile is everything known about one wallet.
type Profile struct {
	Wallet      string                   `json:"wallet"`
	Holdings    *ownership.Holdings      `json:"holdings,omitempty"`
	Listings    []listing.QuotedListing  `json:"listings"`
	Staking     *domain.StakingUserStats `json:"staking,omitempty"`
	Multiplier  *decimal.Decimal         `json:"multiplier,omitempty"`
	LP          *domain.LPPosition       `json:"lp,omitempty"`
	Trading     *indexer.UserStats       `json:"trading,omitempty"`
	Rate        domain.ExchangeRate      `json:"rate"`
	Unavailable []string                 `json:"unavailable,omitempty"`
}

// Service assembles wallet profiles from independent sources.
type Service struct {
	resolver    HoldingsResolver
	listings    ListingReader
	staking     StakingReader
	pool        PoolReader
	trading     TradingStatsSource
	rates       RateSource
	collections []domain.Collection
}

// NewService creates a new portfolio Service.
func NewService(
	resolver HoldingsResolver,
	listings ListingReader,
	staking StakingReader,
	pool PoolReader,
	trading TradingStatsSource,
	rates RateSource,
	collections []domain.Collection,
) *Service {
	return &Service{
		resolver:    resolver,
		listings:    listings,
		staking:     staking,
		pool:        pool,
		trading:     trading,
		rates:       rates,
		collections: collections,
	}
}

// Profile builds the profile of wallet. Every part is fetched independently and a failing
// part is named in Unavailable. Only an invalid wallet address fails the whole call.
func (s *Service) Profile(ctx context.Context, wallet string) (Profile, error) {
	p := Profile{Wallet: wallet, Listings: []listing.QuotedListing{}}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	fail := func(part string, err error) {
		slog.Warn("profile part unavailable", "wallet", wallet, "part", part, "error", err)
		mu.Lock()
		p.Unavailable = append(p.Unavailable, part)
		mu.Unlock()
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		stats, err := s.staking.GetUserStats(ctx, wallet)
		if err != nil {
			fail(PartStaking, err)
			return
		}
		mult := stats.Multiplier()
		mu.Lock()
		p.Staking, p.Multiplier = &stats, &mult
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		lp, err := s.pool.GetUserInfo(ctx, wallet)
		if err != nil {
			fail(PartLP, err)
			return
		}
		mu.Lock()
		p.LP = &lp
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		stats, err := s.trading.FetchUserStats(ctx, wallet)
		if err != nil {
			fail(PartTrading, err)
			return
		}
		mu.Lock()
		p.Trading = &stats
		mu.Unlock()
	}()

	holdings, err := s.resolver.Resolve(ctx, wallet, s.collections)
	if err != nil {
		wg.Wait()
		if errors.Is(err, ownership.ErrInvalidWallet) {
			return Profile{}, err
		}
		fail(PartHoldings, err)
		slices.Sort(p.Unavailable)
		return p, nil
	}
	p.Holdings = &holdings

	p.Rate = s.rates.Snapshot(ctx)
	listings, complete := s.ownListings(ctx, holdings.InState(domain.TokenStateListed))
	p.Listings = listing.QuoteAll(s.rates.Converter(), listings, p.Rate)

	wg.Wait()
	if !complete {
		fail(PartListings, fmt.Errorf("some listings of %s could not be read", wallet))
	}
	slices.Sort(p.Unavailable)
	return p, nil
}

// ownListings reads the listing behind every listed token. complete is false when any read failed.
func (s *Service) ownListings(ctx context.Context, tokens []domain.OwnedToken) (listings []domain.Listing, complete bool) {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, listingConcurrency)
	)
	complete = true
	for _, t := range tokens {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			l, err := s.listings.GetListing(ctx, t.CollectionAddress, t.TokenID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.Warn("getListing failed", "collection", t.CollectionAddress, "tokenId", t.TokenID, "error", err)
				complete = false
				return
			}
			if l.Valid() {
				listings = append(listings, l)
			}
		}()
	}
	wg.Wait()

	slices.SortFunc(listings, func(a, b domain.Listing) int {
		return cmp.Or(cmp.Compare(a.CollectionAddress, b.CollectionAddress), cmp.Compare(a.TokenID, b.TokenID))
	})
	return listings, complete
}
