package listing

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/samber/lo"

	"github.com/mtlprog/nftstate/internal/domain"
	"github.com/mtlprog/nftstate/internal/metadata"
)

// MetadataSource loads collection metadata tables.
type MetadataSource interface {
	Load(ctx context.Context, col domain.Collection) (*metadata.Table, error)
}

// SortField selects the browse ordering.
type SortField string

const (
	SortPrice  SortField = "price"
	SortRarity SortField = "rarity"
	SortID     SortField = "id"
)

// ParseSortField returns the field for s, defaulting to price.
func ParseSortField(s string) SortField {
	switch SortField(s) {
	case SortRarity, SortID:
		return SortField(s)
	default:
		return SortPrice
	}
}

// SortOptions orders browse results. For rarity, Desc means rarest first.
type SortOptions struct {
	Field SortField
	Desc  bool
}

// TokenView is one token of a collection joined with its listing and rarity.
type TokenView struct {
	TokenID    int                  `json:"tokenId"`
	Name       string               `json:"name,omitempty"`
	Image      string               `json:"image"`
	Attributes []domain.Attribute   `json:"attributes,omitempty"`
	Rarity     *domain.RarityRecord `json:"rarity,omitempty"`
	Listing    *QuotedListing       `json:"listing,omitempty"`
}

// BrowseQuery selects and orders tokens of a collection.
type BrowseQuery struct {
	Sort       SortOptions
	Traits     map[string]string
	ListedOnly bool
	Limit      int
	Offset     int
}

// BrowseResult is one page of tokens.
type BrowseResult struct {
	Collection string              `json:"collection"`
	Total      int                 `json:"total"`
	Tokens     []TokenView         `json:"tokens"`
	Rate       domain.ExchangeRate `json:"rate"`
	Partial    bool                `json:"partial"`
}

// Browse joins metadata, rarity and listings of a collection, then filters, sorts and paginates.
// When listings cannot be read the result is marked partial instead of failing.
func (a *Aggregator) Browse(ctx context.Context, col domain.Collection, q BrowseQuery) (BrowseResult, error) {
	if a.metadata == nil {
		return BrowseResult{}, fmt.Errorf("browse requires a metadata source")
	}
	table, err := a.metadata.Load(ctx, col)
	if err != nil {
		return BrowseResult{}, fmt.Errorf("loading metadata: %w", err)
	}

	res := BrowseResult{Collection: col.Address, Rate: a.rates.Snapshot(ctx)}

	listings, err := a.ActiveListings(ctx, col.Address)
	if err != nil {
		slog.Warn("browse without listings", "collection", col.Name, "error", err)
		res.Partial = true
	}
	quoted := lo.SliceToMap(QuoteAll(a.rates.Converter(), listings, res.Rate), func(l QuotedListing) (int, QuotedListing) {
		return l.TokenID, l
	})

	ids := FilterByTraits(table.TokenIDs(), table.Metadata, q.Traits)
	views := make([]TokenView, 0, len(ids))
	for _, id := range ids {
		v := buildView(col, table, id)
		if l, ok := quoted[id]; ok {
			v.Listing = &l
		}
		if q.ListedOnly && v.Listing == nil {
			continue
		}
		views = append(views, v)
	}

	SortTokens(views, q.Sort)
	res.Total = len(views)
	res.Tokens = paginate(views, q.Offset, q.Limit)
	return res, nil
}

func buildView(col domain.Collection, table *metadata.Table, id int) TokenView {
	v := TokenView{TokenID: id}
	if m, ok := table.Token(id); ok {
		if m.Name != nil {
			v.Name = *m.Name
		}
		v.Attributes = m.Attributes
		v.Image = metadata.ImageURL(col, id, &m)
	} else {
		v.Image = metadata.ImageURL(col, id, nil)
	}
	if r, ok := table.RarityOf(id); ok {
		v.Rarity = &r
	}
	return v
}

func paginate[T any](items []T, offset, limit int) []T {
	offset = min(max(offset, 0), len(items))
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// SortTokens orders views in place.
// Price: listed tokens by A-equivalent, then unlisted by ascending id.
// Rarity: by rank, tokens without rank last. ID: by token id.
func SortTokens(tokens []TokenView, opts SortOptions) {
	byID := func(a, b TokenView) int { return cmp.Compare(a.TokenID, b.TokenID) }

	switch opts.Field {
	case SortRarity:
		slices.SortStableFunc(tokens, func(a, b TokenView) int {
			switch {
			case a.Rarity == nil && b.Rarity == nil:
				return byID(a, b)
			case a.Rarity == nil:
				return 1
			case b.Rarity == nil:
				return -1
			}
			c := cmp.Compare(b.Rarity.Rank, a.Rarity.Rank)
			if opts.Desc {
				c = -c
			}
			return cmp.Or(c, byID(a, b))
		})

	case SortID:
		slices.SortStableFunc(tokens, func(a, b TokenView) int {
			if opts.Desc {
				return byID(b, a)
			}
			return byID(a, b)
		})

	default:
		slices.SortStableFunc(tokens, func(a, b TokenView) int {
			listedA := a.Listing != nil && a.Listing.Quote.Valid
			listedB := b.Listing != nil && b.Listing.Quote.Valid
			switch {
			case listedA && listedB:
				c := a.Listing.Quote.EquivalentA.Cmp(b.Listing.Quote.EquivalentA)
				if opts.Desc {
					c = -c
				}
				return cmp.Or(c, byID(a, b))
			case listedA:
				return -1
			case listedB:
				return 1
			default:
				return byID(a, b)
			}
		})
	}
}

// FilterByTraits keeps ids whose metadata carries every requested trait value.
// Empty filter values are ignored; tokens without attributes fail any non-empty filter.
func FilterByTraits(ids []int, meta map[int]domain.TokenMetadata, filters map[string]string) []int {
	active := lo.PickBy(filters, func(_ string, v string) bool { return v != "" })
	if len(active) == 0 {
		return ids
	}
	return lo.Filter(ids, func(id int, _ int) bool {
		m, ok := meta[id]
		if !ok || !m.HasAttributes() {
			return false
		}
		for traitType, want := range active {
			if got, ok := m.Trait(traitType); !ok || got != want {
				return false
			}
		}
		return true
	})
}
