package external

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/nftstate/internal/domain"
)

// MaxQuoteAge is how old a stored quote may be before USD values are withheld.
const MaxQuoteAge = 24 * time.Hour

// PriceFetcher fetches current USD prices keyed by currency.
type PriceFetcher interface {
	FetchPrices(ctx context.Context) (map[domain.Currency]decimal.Decimal, error)
}

// Service manages external USD quotes.
type Service struct {
	fetcher PriceFetcher
	repo    QuoteRepository
	now     func() time.Time
}

// NewService creates a new external quote service.
func NewService(fetcher PriceFetcher, repo QuoteRepository) *Service {
	return &Service{
		fetcher: fetcher,
		repo:    repo,
		now:     time.Now,
	}
}

// FetchAndStoreQuotes fetches the USD prices and stores them together.
// A fetch without a quote for currency A is stored but reported as ErrNotFound.
func (s *Service) FetchAndStoreQuotes(ctx context.Context) error {
	prices, err := s.fetcher.FetchPrices(ctx)
	if err != nil {
		return fmt.Errorf("fetching external prices: %w", err)
	}
	if err := s.repo.SaveQuotes(ctx, prices); err != nil {
		return fmt.Errorf("storing quotes: %w", err)
	}
	if _, ok := prices[domain.CurrencyA]; !ok {
		return fmt.Errorf("%s price missing from fetch: %w", domain.CurrencyA, ErrNotFound)
	}
	return nil
}

// USDPerA returns the stored USD price of one unit of currency A.
// Quotes older than MaxQuoteAge are reported as ErrNotFound.
func (s *Service) USDPerA(ctx context.Context) (decimal.Decimal, error) {
	q, err := s.repo.GetQuote(ctx, domain.CurrencyA)
	if err != nil {
		return decimal.Zero, err
	}
	if s.now().Sub(q.UpdatedAt) > MaxQuoteAge {
		return decimal.Zero, fmt.Errorf("quote for %s is stale since %s: %w",
			q.Currency, q.UpdatedAt.Format(time.RFC3339), ErrNotFound)
	}
	return q.PriceInUSD, nil
}

// ValueInUSD converts an amount of currency A to USD.
func (s *Service) ValueInUSD(ctx context.Context, amountA decimal.Decimal) (decimal.Decimal, error) {
	price, err := s.USDPerA(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return amountA.Mul(price), nil
}
