package listing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtlprog/nftstate/internal/domain"
	"github.com/mtlprog/nftstate/internal/metadata"
	"github.com/mtlprog/nftstate/internal/rarity"
)

func meta(id int, attrs ...string) domain.TokenMetadata {
	m := domain.TokenMetadata{TokenID: id}
	for i := 0; i+1 < len(attrs); i += 2 {
		m.Attributes = append(m.Attributes, domain.Attribute{TraitType: attrs[i], Value: attrs[i+1]})
	}
	return m
}

func TestFilterByTraits_Conjunctive(t *testing.T) {
	md := map[int]domain.TokenMetadata{
		1: meta(1, "A", "x", "B", "y"),
		2: meta(2, "A", "x"),
		3: meta(3, "A", "z", "B", "y"),
		4: meta(4),
	}
	ids := []int{1, 2, 3, 4, 5}

	assert.Equal(t, []int{1}, FilterByTraits(ids, md, map[string]string{"A": "x", "B": "y"}))
	assert.Equal(t, []int{1, 2}, FilterByTraits(ids, md, map[string]string{"A": "x"}))
	assert.Equal(t, ids, FilterByTraits(ids, md, nil))
	assert.Equal(t, ids, FilterByTraits(ids, md, map[string]string{"A": ""}))
}

func view(id int, rank int, price string) TokenView {
	v := TokenView{TokenID: id}
	if rank > 0 {
		v.Rarity = &domain.RarityRecord{TokenID: id, Rank: rank}
	}
	if price != "" {
		v.Listing = &QuotedListing{Quote: domain.PriceQuote{EquivalentA: d(price), Valid: true}}
	}
	return v
}

func ids(views []TokenView) []int {
	out := make([]int, len(views))
	for i, v := range views {
		out[i] = v.TokenID
	}
	return out
}

func TestSortTokens(t *testing.T) {
	base := func() []TokenView {
		return []TokenView{
			view(4, 2, ""),
			view(1, 0, "30"),
			view(3, 1, "10"),
			view(2, 3, ""),
			view(5, 4, "30"),
		}
	}

	tests := []struct {
		name string
		opts SortOptions
		want []int
	}{
		{"price asc", SortOptions{Field: SortPrice}, []int{3, 1, 5, 2, 4}},
		{"price desc", SortOptions{Field: SortPrice, Desc: true}, []int{1, 5, 3, 2, 4}},
		{"rarity rarest first", SortOptions{Field: SortRarity, Desc: true}, []int{3, 4, 2, 5, 1}},
		{"rarity common first", SortOptions{Field: SortRarity}, []int{5, 2, 4, 3, 1}},
		{"id asc", SortOptions{Field: SortID}, []int{1, 2, 3, 4, 5}},
		{"id desc", SortOptions{Field: SortID, Desc: true}, []int{5, 4, 3, 2, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := base()
			SortTokens(tokens, tt.opts)
			assert.Equal(t, tt.want, ids(tokens))
		})
	}
}

func TestParseSortField(t *testing.T) {
	assert.Equal(t, SortRarity, ParseSortField("rarity"))
	assert.Equal(t, SortID, ParseSortField("id"))
	assert.Equal(t, SortPrice, ParseSortField(""))
	assert.Equal(t, SortPrice, ParseSortField("bogus"))
}

type staticMetadata struct {
	table *metadata.Table
}

func (s staticMetadata) Load(context.Context, domain.Collection) (*metadata.Table, error) {
	return s.table, nil
}

func TestBrowse(t *testing.T) {
	md := map[int]domain.TokenMetadata{
		1: meta(1, "Background", "Red"),
		2: meta(2, "Background", "Blue"),
		3: meta(3, "Background", "Red"),
		4: meta(4, "Background", "Green"),
	}
	c := domain.Collection{Address: col, Name: "Toadz", BaseImageURI: "https://img/"}
	table := &metadata.Table{Collection: c, Metadata: md, Rarity: rarity.Compute(md)}

	m := &mockMarket{
		active:   map[string][]int{col: {3}},
		listings: map[int]domain.Listing{3: {PriceA: d("12.5"), Active: true}},
	}
	agg := NewAggregator(m, rateOf("0.5"), staticMetadata{table: table}, 0)

	res, err := agg.Browse(t.Context(), c, BrowseQuery{
		Sort:   SortOptions{Field: SortPrice},
		Traits: map[string]string{"Background": "Red"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, []int{3, 1}, ids(res.Tokens))
	require.NotNil(t, res.Tokens[0].Listing)
	assert.Equal(t, "12.50 SGB", res.Tokens[0].Listing.Quote.Display)
	assert.Equal(t, "https://img/1.png", res.Tokens[1].Image)
	require.NotNil(t, res.Tokens[1].Rarity)

	page, err := agg.Browse(t.Context(), c, BrowseQuery{Sort: SortOptions{Field: SortID}, Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
	assert.Equal(t, []int{2, 3}, ids(page.Tokens))

	listed, err := agg.Browse(t.Context(), c, BrowseQuery{ListedOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []int{3}, ids(listed.Tokens))
}

func TestBrowse_ListingsDownIsPartial(t *testing.T) {
	md := map[int]domain.TokenMetadata{1: meta(1)}
	c := domain.Collection{Address: col}
	m := &mockMarket{activeErr: domain.ErrSourceUnavailable}

	res, err := NewAggregator(m, rateOf("0.5"), staticMetadata{table: &metadata.Table{Metadata: md}}, 0).Browse(t.Context(), c, BrowseQuery{})
	require.NoError(t, err)
	assert.True(t, res.Partial)
	assert.Equal(t, 1, res.Total)
}
