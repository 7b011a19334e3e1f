package external

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/nftstate/internal/domain"
)

// ErrNotFound is returned when no usable quote is stored for a currency.
var ErrNotFound = errors.New("quote not found")

// Quote is the last stored USD price of a currency.
type Quote struct {
	Currency   domain.Currency `json:"currency" db:"symbol"`
	PriceInUSD decimal.Decimal `json:"priceInUsd" db:"price_in_usd"`
	UpdatedAt  time.Time       `json:"updatedAt" db:"updated_at"`
}

// QuoteRepository keeps the latest USD quote per currency.
type QuoteRepository interface {
	// SaveQuotes upserts every price in one transaction.
	SaveQuotes(ctx context.Context, prices map[domain.Currency]decimal.Decimal) error
	GetQuote(ctx context.Context, currency domain.Currency) (Quote, error)
}

// PgQuoteRepository implements QuoteRepository with PostgreSQL.
type PgQuoteRepository struct {
	pool *pgxpool.Pool
}

// NewPgQuoteRepository creates a new PostgreSQL quote repository.
func NewPgQuoteRepository(pool *pgxpool.Pool) *PgQuoteRepository {
	return &PgQuoteRepository{pool: pool}
}

func (r *PgQuoteRepository) SaveQuotes(ctx context.Context, prices map[domain.Currency]decimal.Decimal) error {
	if len(prices) == 0 {
		return nil
	}
	currencies := lo.Keys(prices)
	slices.Sort(currencies)

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, c := range currencies {
			batch.Queue(
				`INSERT INTO external_quotes (symbol, price_in_usd, updated_at)
				 VALUES ($1, $2, NOW())
				 ON CONFLICT (symbol) DO UPDATE SET price_in_usd = $2, updated_at = NOW()`,
				string(c), prices[c])
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("saving %d quotes: %w", len(currencies), err)
		}
		return nil
	})
}

func (r *PgQuoteRepository) GetQuote(ctx context.Context, currency domain.Currency) (Quote, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT symbol, price_in_usd, updated_at FROM external_quotes WHERE symbol = $1`,
		string(currency))
	if err != nil {
		return Quote{}, fmt.Errorf("getting %s quote: %w", currency, err)
	}
	q, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[Quote])
	if errors.Is(err, pgx.ErrNoRows) {
		return Quote{}, fmt.Errorf("%s quote: %w", currency, ErrNotFound)
	}
	if err != nil {
		return Quote{}, fmt.Errorf("scanning %s quote: %w", currency, err)
	}
	return q, nil
}
