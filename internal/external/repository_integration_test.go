//go:build integration

package external

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtlprog/nftstate/internal/database/dbtest"
	"github.com/mtlprog/nftstate/internal/domain"
)

func TestPgQuoteRepository(t *testing.T) {
	repo := NewPgQuoteRepository(dbtest.Pool(t))
	ctx := context.Background()

	_, err := repo.GetQuote(ctx, domain.CurrencyA)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.SaveQuotes(ctx, map[domain.Currency]decimal.Decimal{
		domain.CurrencyA: decimal.RequireFromString("0.01"),
		"ETH":            decimal.NewFromInt(2500),
	}))
	require.NoError(t, repo.SaveQuotes(ctx, map[domain.Currency]decimal.Decimal{
		domain.CurrencyA: decimal.RequireFromString("0.0123"),
	}))
	require.NoError(t, repo.SaveQuotes(ctx, nil))

	q, err := repo.GetQuote(ctx, domain.CurrencyA)
	require.NoError(t, err)
	assert.Equal(t, domain.CurrencyA, q.Currency)
	assert.True(t, q.PriceInUSD.Equal(decimal.RequireFromString("0.0123")), "got %s", q.PriceInUSD)

	eth, err := repo.GetQuote(ctx, "ETH")
	require.NoError(t, err)
	assert.True(t, eth.PriceInUSD.Equal(decimal.NewFromInt(2500)))
}
