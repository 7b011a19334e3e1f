package currency

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/nftstate/internal/domain"
)

// ReserveReader reads the A and B reserves of the exchange pool.
type ReserveReader interface {
	Reserves(ctx context.Context) (reserveA, reserveB decimal.Decimal, err error)
}

// Service takes one exchange-rate snapshot per aggregation pass.
type Service struct {
	pool      ReserveReader
	converter *Converter
	now       func() time.Time
}

// NewService creates a new rate service.
func NewService(pool ReserveReader, converter *Converter) *Service {
	return &Service{pool: pool, converter: converter, now: time.Now}
}

// Converter returns the converter used with snapshots of this service.
func (s *Service) Converter() *Converter {
	return s.converter
}

// Snapshot reads the pool reserves once. Failures are logged and yield a degraded zero rate.
func (s *Service) Snapshot(ctx context.Context) domain.ExchangeRate {
	rate := domain.ExchangeRate{FetchedAt: s.now()}

	reserveA, reserveB, err := s.pool.Reserves(ctx)
	if err != nil {
		slog.Warn("reading pool reserves failed, using degraded rate", "divisor", s.converter.Divisor(), "error", err)
		rate.APerB = decimal.Zero
		rate.Degraded = true
		return rate
	}

	rate.ReserveA = reserveA
	rate.ReserveB = reserveB
	rate.APerB = Rate(reserveA, reserveB)
	rate.Degraded = rate.APerB.IsZero()
	return rate
}
