package rarity

import (
	"cmp"
	"slices"

	"github.com/samber/lo"

	"github.com/mtlprog/nftstate/internal/domain"
)

// TraitValue is one value of a trait type with its frequency.
type TraitValue struct {
	Value   string  `json:"value"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// TraitCategory lists the values seen for one trait type.
type TraitCategory struct {
	TraitType string       `json:"traitType"`
	Values    []TraitValue `json:"values"`
}

// Catalog groups every non-empty trait value by type, sorted by type then value.
func Catalog(metadata map[int]domain.TokenMetadata) []TraitCategory {
	counts := make(map[string]map[string]int)
	for _, m := range metadata {
		for _, a := range m.Attributes {
			if a.TraitType == "" || a.Value == "" {
				continue
			}
			if counts[a.TraitType] == nil {
				counts[a.TraitType] = make(map[string]int)
			}
			counts[a.TraitType][a.Value]++
		}
	}

	total := float64(len(metadata))
	types := lo.Keys(counts)
	slices.Sort(types)

	out := make([]TraitCategory, 0, len(types))
	for _, tt := range types {
		values := lo.MapToSlice(counts[tt], func(v string, n int) TraitValue {
			return TraitValue{Value: v, Count: n, Percent: float64(n) / total * 100}
		})
		slices.SortFunc(values, func(a, b TraitValue) int { return cmp.Compare(a.Value, b.Value) })
		out = append(out, TraitCategory{TraitType: tt, Values: values})
	}
	return out
}

// CountTraitValue returns how many tokens carry the given trait value.
func CountTraitValue(metadata map[int]domain.TokenMetadata, traitType, value string) int {
	return lo.CountBy(lo.Values(metadata), func(m domain.TokenMetadata) bool {
		v, ok := m.Trait(traitType)
		return ok && v == value
	})
}
