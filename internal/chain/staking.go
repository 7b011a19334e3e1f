package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mtlprog/nftstate/internal/domain"
)

// Staking reads the NFT staking contract.
type Staking struct {
	contract
}

// NewStaking binds the staking contract at address.
func NewStaking(caller Caller, address string) *Staking {
	return &Staking{contract{address: common.HexToAddress(address), abi: stakingABI, caller: caller}}
}

// GetStakedTokens returns the token ids user has staked from collection.
func (s *Staking) GetStakedTokens(ctx context.Context, user, collection string) ([]int, error) {
	out, err := s.call(ctx, "getStakedTokens", common.HexToAddress(user), common.HexToAddress(collection))
	if err != nil {
		return nil, err
	}
	return bigSliceToInts(out[0]), nil
}

// GetStakedCount returns the number of NFTs user has staked across collections.
func (s *Staking) GetStakedCount(ctx context.Context, user string) (int64, error) {
	out, err := s.call(ctx, "getStakedNFTCount", common.HexToAddress(user))
	if err != nil {
		return 0, err
	}
	return bigToInt64(out[0]), nil
}

// PendingRewards returns unclaimed POND rewards.
func (s *Staking) PendingRewards(ctx context.Context, user string) (*big.Int, error) {
	out, err := s.call(ctx, "pendingRewards", common.HexToAddress(user))
	if err != nil {
		return nil, err
	}
	return asBig(out[0]), nil
}

// GetUserStats returns the staking position of user.
func (s *Staking) GetUserStats(ctx context.Context, user string) (domain.StakingUserStats, error) {
	out, err := s.call(ctx, "getUserStats", common.HexToAddress(user))
	if err != nil {
		return domain.StakingUserStats{}, err
	}
	return domain.StakingUserStats{
		TotalStaked:  bigToInt64(out[0]),
		StakedSToadz: bigToInt64(out[1]),
		StakedLofts:  bigToInt64(out[2]),
		StakedCity:   bigToInt64(out[3]),
		PendingPond:  domain.FromWei(asBig(out[4])),
	}, nil
}

// GetGlobalStats returns protocol-wide staking counters.
func (s *Staking) GetGlobalStats(ctx context.Context) (domain.StakingGlobalStats, error) {
	out, err := s.call(ctx, "getGlobalStats")
	if err != nil {
		return domain.StakingGlobalStats{}, err
	}
	return domain.StakingGlobalStats{
		TotalNFTsStaked:     bigToInt64(out[0]),
		DailyReward:         domain.FromWei(asBig(out[1])),
		RewardPerNFTPerDay:  domain.FromWei(asBig(out[2])),
		ContractPondBalance: domain.FromWei(asBig(out[3])),
	}, nil
}
