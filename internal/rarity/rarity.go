package rarity

import (
	"cmp"
	"math"
	"slices"

	"github.com/mtlprog/nftstate/internal/domain"
)

// uniformScore is assigned to every token when all positive raw scores are equal.
const uniformScore = 50

type traitPair struct {
	traitType string
	value     string
}

// Compute ranks every token of a collection by the sum of inverse trait frequencies.
// Tokens without attributes get raw score 0, are excluded from normalization bounds and rank last.
func Compute(metadata map[int]domain.TokenMetadata) map[int]domain.RarityRecord {
	total := len(metadata)
	if total == 0 {
		return map[int]domain.RarityRecord{}
	}

	counts := make(map[traitPair]int)
	for _, m := range metadata {
		for _, a := range m.Attributes {
			counts[traitPair{a.TraitType, a.Value}]++
		}
	}

	records := make([]domain.RarityRecord, 0, total)
	minScore, maxScore := math.Inf(1), 0.0
	for id, m := range metadata {
		raw := 0.0
		for _, a := range m.Attributes {
			raw += 1 / (float64(counts[traitPair{a.TraitType, a.Value}]) / float64(total))
		}
		if raw > 0 {
			minScore = min(minScore, raw)
			maxScore = max(maxScore, raw)
		}
		records = append(records, domain.RarityRecord{TokenID: id, RawScore: raw})
	}

	slices.SortFunc(records, func(a, b domain.RarityRecord) int {
		if c := cmp.Compare(b.RawScore, a.RawScore); c != 0 {
			return c
		}
		return cmp.Compare(a.TokenID, b.TokenID)
	})

	out := make(map[int]domain.RarityRecord, total)
	for i, r := range records {
		r.Rank = i + 1
		r.NormalizedScore = normalize(r.RawScore, minScore, maxScore)
		r.Tier = TierFor(r.Rank, total)
		out[r.TokenID] = r
	}
	return out
}

func normalize(raw, minScore, maxScore float64) int {
	if math.IsInf(minScore, 1) || maxScore == minScore {
		return uniformScore
	}
	score := int(math.Round((raw-minScore)/(maxScore-minScore)*99)) + 1
	return min(max(score, 1), 100)
}

// TierFor buckets a rank by its percentile within the collection.
func TierFor(rank, totalSupply int) domain.Tier {
	if totalSupply <= 0 {
		return domain.TierCommon
	}
	percentile := float64(rank) / float64(totalSupply) * 100
	switch {
	case percentile <= 1:
		return domain.TierLegendary
	case percentile <= 5:
		return domain.TierEpic
	case percentile <= 15:
		return domain.TierRare
	case percentile <= 35:
		return domain.TierUncommon
	default:
		return domain.TierCommon
	}
}
