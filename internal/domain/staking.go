package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// maxMultiplierNFTs caps the number of staked NFTs counted towards the LP multiplier.
const maxMultiplierNFTs = 1000

// StakingUserStats is a user's position in the NFT staking contract.
type StakingUserStats struct {
	TotalStaked  int64           `json:"totalStaked"`
	StakedSToadz int64           `json:"stakedSToadz"`
	StakedLofts  int64           `json:"stakedLofts"`
	StakedCity   int64           `json:"stakedCity"`
	PendingPond  decimal.Decimal `json:"pendingPond"`
}

// Multiplier is the LP reward boost earned by staking: +0.1% per NFT, capped at 1000 NFTs (2x).
func (s StakingUserStats) Multiplier() decimal.Decimal {
	counted := min(max(s.TotalStaked, 0), maxMultiplierNFTs)
	return decimal.NewFromInt(1).Add(decimal.NewFromInt(counted).Mul(decimal.RequireFromString("0.001")))
}

// StakingGlobalStats are protocol-wide staking counters.
type StakingGlobalStats struct {
	TotalNFTsStaked     int64           `json:"totalNftsStaked"`
	DailyReward         decimal.Decimal `json:"dailyReward"`
	RewardPerNFTPerDay  decimal.Decimal `json:"rewardPerNftPerDay"`
	ContractPondBalance decimal.Decimal `json:"contractPondBalance"`
}

// LockTier is the liquidity lock duration chosen by a depositor.
type LockTier int

var lockTierNames = []string{"None", "30 Days", "90 Days", "180 Days", "365 Days"}

func (t LockTier) String() string {
	if t < 0 || int(t) >= len(lockTierNames) {
		return "Unknown"
	}
	return lockTierNames[t]
}

// LPPosition is a user's liquidity-pool deposit.
type LPPosition struct {
	DepositedA     decimal.Decimal `json:"depositedA"`
	DepositedB     decimal.Decimal `json:"depositedB"`
	LockTier       LockTier        `json:"lockTier"`
	LockTierName   string          `json:"lockTierName"`
	LockExpires    *time.Time      `json:"lockExpires,omitempty"`
	WeightedShares decimal.Decimal `json:"weightedShares"`
	PoolShareBps   int64           `json:"poolShareBps"`
	Multiplier     decimal.Decimal `json:"multiplier"`
	PendingB       decimal.Decimal `json:"pendingB"`
	PendingA       decimal.Decimal `json:"pendingA"`
	ClaimableIn    time.Duration   `json:"claimableIn"`
}

// PoolSharePercent converts basis points into a percentage.
func (p LPPosition) PoolSharePercent() decimal.Decimal {
	return decimal.NewFromInt(p.PoolShareBps).Div(decimal.NewFromInt(100))
}

// HasPosition reports whether anything is deposited.
func (p LPPosition) HasPosition() bool {
	return p.DepositedA.IsPositive() || p.DepositedB.IsPositive()
}
