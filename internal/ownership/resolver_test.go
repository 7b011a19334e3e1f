package ownership

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtlprog/nftstate/internal/domain"
	"github.com/mtlprog/nftstate/internal/indexer"
)

func TestMerge_StakedRemovesFromWallet(t *testing.T) {
	tokens := Merge(
		map[string][]int{"0xabc": {7, 8}},
		map[string][]int{"0xABC": {7}},
		nil,
	)

	require.Len(t, tokens, 2)
	assert.Equal(t, domain.OwnedToken{CollectionAddress: "0xabc", TokenID: 7, State: domain.TokenStateStaked}, tokens[0])
	assert.Equal(t, domain.OwnedToken{CollectionAddress: "0xabc", TokenID: 8, State: domain.TokenStateWallet}, tokens[1])
}

func TestMerge_ListedWinsOverStaked(t *testing.T) {
	tokens := Merge(
		map[string][]int{"0xabc": {1}},
		map[string][]int{"0xabc": {1, 2}},
		map[string][]int{"0xabc": {1}},
	)

	states := make(map[int]domain.TokenState)
	for _, tk := range tokens {
		_, dup := states[tk.TokenID]
		require.False(t, dup, "token %d appears twice", tk.TokenID)
		states[tk.TokenID] = tk.State
	}
	assert.Equal(t, domain.TokenStateListed, states[1])
	assert.Equal(t, domain.TokenStateStaked, states[2])
}

func TestMerge_Empty(t *testing.T) {
	assert.Empty(t, Merge(nil, nil, nil))
}

func TestResolve_InvalidWallet(t *testing.T) {
	r := NewResolver(nil, nil, nil, 0)
	_, err := r.Resolve(t.Context(), "not-an-address", nil)
	assert.ErrorIs(t, err, ErrInvalidWallet)
}

func TestResolve_Cascade(t *testing.T) {
	c := newMockChain()
	c.own(toadz.Address, alice, 7, 9)
	c.enumerable[toadz.Key()] = true
	c.own(cats.Address, alice, 42)

	ids := make([]int, 100)
	for i := range ids {
		ids[i] = i + 1
	}

	idx := &mockIndex{err: domain.ErrSourceUnavailable}
	obs := &countingObserver{}
	r := NewResolver([]Strategy{
		NewIndexerStrategy(idx),
		NewEnumerableStrategy(c),
		NewEventScanStrategy(c, 10_000, 2),
		NewProbeStrategy(c, mockIDs{ids: map[string][]int{cats.Key(): ids}}, 50),
	},
		mockStaking{staked: map[string][]int{toadz.Key(): {7}}},
		mockListings{listings: map[string][]domain.Listing{
			cats.Key(): {
				{CollectionAddress: cats.Address, TokenID: 3, Seller: "0x00000000000000000000000000000000000000a1", PriceA: decimal.NewFromInt(5), Active: true},
				{CollectionAddress: cats.Address, TokenID: 4, Seller: bob, PriceA: decimal.NewFromInt(5), Active: true},
			},
		}},
		2,
	)
	r.SetObserver(obs)

	h, err := r.Resolve(t.Context(), alice, []domain.Collection{toadz, cats})
	require.NoError(t, err)

	assert.NotEmpty(t, h.PassID)
	assert.Empty(t, h.Unavailable)
	assert.Equal(t, "enumerable", h.Sources[toadz.Address])
	assert.Equal(t, "probe", h.Sources[cats.Address])
	assert.Equal(t, int32(1), idx.calls.Load())

	staked := h.InState(domain.TokenStateStaked)
	require.Len(t, staked, 1)
	assert.Equal(t, 7, staked[0].TokenID)
	assert.Equal(t, toadz.Address, staked[0].CollectionAddress)

	wallet := h.InState(domain.TokenStateWallet)
	assert.ElementsMatch(t, []int{9, 42}, []int{wallet[0].TokenID, wallet[1].TokenID})

	listed := h.InState(domain.TokenStateListed)
	require.Len(t, listed, 1)
	assert.Equal(t, 3, listed[0].TokenID)

	assert.Equal(t, map[domain.TokenState]int{
		domain.TokenStateWallet: 2,
		domain.TokenStateStaked: 1,
		domain.TokenStateListed: 1,
	}, h.Counts())
	assert.Len(t, h.InCollection(toadz.Address), 2)

	assert.Equal(t, 2, obs.counts["indexer/error"])
	assert.Equal(t, 1, obs.counts["enumerable/hit"])
	assert.Equal(t, 1, obs.counts["probe/hit"])
}

func TestResolve_IndexerHit(t *testing.T) {
	idx := &mockIndex{nfts: indexer.UserNFTs{Total: 1, Collections: []indexer.CollectionTokens{
		{Collection: cats.Address, TokenIDs: []indexer.FlexInt{11}},
	}}}
	c := newMockChain()

	r := NewResolver([]Strategy{NewIndexerStrategy(idx), NewEnumerableStrategy(c)}, nil, nil, 4)
	h, err := r.Resolve(t.Context(), alice, []domain.Collection{cats})
	require.NoError(t, err)

	require.Len(t, h.Tokens, 1)
	assert.Equal(t, 11, h.Tokens[0].TokenID)
	assert.Equal(t, "indexer", h.Sources[cats.Address])
	assert.Equal(t, int32(0), c.balanceCalls.Load())
}

func TestResolve_ExhaustedCollectionIsUnavailable(t *testing.T) {
	c := newMockChain()
	c.failBalance[cats.Key()] = true
	c.own(toadz.Address, alice, 1)
	c.enumerable[toadz.Key()] = true

	r := NewResolver([]Strategy{
		NewEnumerableStrategy(c),
		NewProbeStrategy(c, mockIDs{}, 50),
	}, mockStaking{err: domain.ErrSourceUnavailable}, nil, 4)

	h, err := r.Resolve(t.Context(), alice, []domain.Collection{toadz, cats})
	require.NoError(t, err)
	assert.Equal(t, []string{cats.Address}, h.Unavailable)
	assert.True(t, h.IsUnavailable(cats.Address))
	assert.False(t, h.IsUnavailable(toadz.Address))
	require.Len(t, h.Tokens, 1)
	assert.Equal(t, domain.TokenStateWallet, h.Tokens[0].State)
}
