package indexer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// FlexInt decodes token ids that the indexer emits either as numbers or as strings.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid token id %s: %w", string(data), err)
	}
	*f = FlexInt(n)
	return nil
}

// CollectionTokens is the per-collection part of a user's holdings.
type CollectionTokens struct {
	Collection string    `json:"collection"`
	TokenIDs   []FlexInt `json:"tokenIds"`
}

// Ints returns token ids as plain ints.
func (c CollectionTokens) Ints() []int {
	ids := make([]int, len(c.TokenIDs))
	for i, id := range c.TokenIDs {
		ids[i] = int(id)
	}
	return ids
}

// UserNFTs is the response of GET /user/{address}/nfts.
type UserNFTs struct {
	Total       int                `json:"total"`
	Collections []CollectionTokens `json:"collections"`
}

// UnreadCounts is the response of GET /user/{address}/notifications/unread.
type UnreadCounts struct {
	Counts struct {
		Red   int `json:"red"`
		Green int `json:"green"`
	} `json:"counts"`
}

// Notification is a single user notification.
type Notification struct {
	ID          json.RawMessage `json:"id,omitempty"`
	Type        string          `json:"type"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Timestamp   int64           `json:"timestamp"`
}

// ActivityEvent is a marketplace or staking event recorded by the indexer.
type ActivityEvent struct {
	EventType  string          `json:"event_type"`
	Collection string          `json:"collection"`
	TokenID    FlexInt         `json:"token_id"`
	PriceSGB   decimal.Decimal `json:"price_sgb"`
	PricePOND  decimal.Decimal `json:"price_pond"`
	Timestamp  int64           `json:"timestamp"`
	TimeAgo    string          `json:"time_ago,omitempty"`
}

// UserStats is the response of GET /user/{address}/stats.
type UserStats struct {
	VolumeSGB decimal.Decimal `json:"volumeSGB"`
	Sales     int64           `json:"sales"`
}

// CollectionStats is the response of GET /collection/{address}/stats.
type CollectionStats struct {
	VolumeSGB  decimal.Decimal `json:"volumeSGB"`
	VolumePOND decimal.Decimal `json:"volumePOND"`
	Sales      int64           `json:"sales"`
}

// LeaderboardKind selects a leaderboard.
type LeaderboardKind string

const (
	LeaderboardStakers LeaderboardKind = "stakers"
	LeaderboardTraders LeaderboardKind = "traders"
	LeaderboardLP      LeaderboardKind = "lp"
)

// ParseLeaderboardKind validates a leaderboard name.
func ParseLeaderboardKind(s string) (LeaderboardKind, bool) {
	switch k := LeaderboardKind(s); k {
	case LeaderboardStakers, LeaderboardTraders, LeaderboardLP:
		return k, true
	}
	return "", false
}

// LeaderboardEntry covers all three leaderboards; unused fields stay zero.
type LeaderboardEntry struct {
	Address     string          `json:"address"`
	Count       int64           `json:"count,omitempty"`
	NFTsStaked  int64           `json:"nftsStaked,omitempty"`
	PondClaimed decimal.Decimal `json:"pondClaimed"`
	Volume      decimal.Decimal `json:"volume"`
	Sales       int64           `json:"sales,omitempty"`
	Liquidity   decimal.Decimal `json:"liquidity"`
	LockTier    int             `json:"lockTier,omitempty"`
}
