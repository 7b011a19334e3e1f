package chain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/nftstate/internal/domain"
)

// multiplierScale is the fixed-point denominator of the on-chain multiplier (10000 = 1x).
const multiplierScale = 10000

// Pool reads the SGB/POND liquidity pool.
type Pool struct {
	contract
}

// NewPool binds the pool contract at address.
func NewPool(caller Caller, address string) *Pool {
	return &Pool{contract{address: common.HexToAddress(address), abi: poolABI, caller: caller}}
}

// Reserves returns the pool's SGB and POND reserves.
func (p *Pool) Reserves(ctx context.Context) (reserveA, reserveB decimal.Decimal, err error) {
	outA, err := p.call(ctx, "reserveSGB")
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	outB, err := p.call(ctx, "reservePOND")
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return domain.FromWei(asBig(outA[0])), domain.FromWei(asBig(outB[0])), nil
}

// GetUserInfo returns the LP position of user.
func (p *Pool) GetUserInfo(ctx context.Context, user string) (domain.LPPosition, error) {
	out, err := p.call(ctx, "getUserInfo", common.HexToAddress(user))
	if err != nil {
		return domain.LPPosition{}, err
	}

	tier := domain.LockTier(bigToInt64(out[2]))
	pos := domain.LPPosition{
		DepositedA:     domain.FromWei(asBig(out[0])),
		DepositedB:     domain.FromWei(asBig(out[1])),
		LockTier:       tier,
		LockTierName:   tier.String(),
		WeightedShares: domain.FromWei(asBig(out[4])),
		PoolShareBps:   bigToInt64(out[5]),
		Multiplier:     decimal.NewFromInt(bigToInt64(out[6])).Div(decimal.NewFromInt(multiplierScale)),
		PendingB:       domain.FromWei(asBig(out[7])),
		PendingA:       domain.FromWei(asBig(out[8])),
		ClaimableIn:    time.Duration(bigToInt64(out[9])) * time.Second,
	}
	if expires := bigToInt64(out[3]); expires > 0 {
		t := time.Unix(expires, 0).UTC()
		pos.LockExpires = &t
	}
	return pos, nil
}
