package snapshot

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/nftstate/internal/domain"
)

// CollectionSnapshot is the market state of one collection on a snapshot date.
// Volume is nil when the collection counters could not be read.
type CollectionSnapshot struct {
	Address     string              `json:"address"`
	Name        string              `json:"name"`
	Symbol      string              `json:"symbol"`
	ListedCount int                 `json:"listedCount"`
	Floor       *decimal.Decimal    `json:"floor,omitempty"`
	FloorUSD    *decimal.Decimal    `json:"floorUsd,omitempty"`
	FloorChange *decimal.Decimal    `json:"floorChangePct,omitempty"`
	Volume      *domain.VolumeStats `json:"volume,omitempty"`
}

// MarketSnapshot is the stored market state across all collections.
// Missing lists collections whose market or volume could not be read.
type MarketSnapshot struct {
	Date         time.Time            `json:"date"`
	Rate         domain.ExchangeRate  `json:"rate"`
	USDPerA      *decimal.Decimal     `json:"usdPerA,omitempty"`
	Collections  []CollectionSnapshot `json:"collections"`
	TotalVolumeA decimal.Decimal      `json:"totalVolumeA"`
	TotalListed  int                  `json:"totalListed"`
	TotalSales   int64                `json:"totalSales"`
	Missing      []string             `json:"missing,omitempty"`
	GeneratedAt  time.Time            `json:"generatedAt"`
}

// Collection returns the snapshot row of a collection.
func (m MarketSnapshot) Collection(address string) (CollectionSnapshot, bool) {
	for _, c := range m.Collections {
		if strings.EqualFold(c.Address, address) {
			return c, true
		}
	}
	return CollectionSnapshot{}, false
}

// FloorPoint is one day of a collection's floor history.
// VolumeA and Sales are nil for days whose counters were not read.
type FloorPoint struct {
	Date        time.Time        `json:"date"`
	Floor       *decimal.Decimal `json:"floor"`
	ListedCount int              `json:"listedCount"`
	VolumeA     *decimal.Decimal `json:"volumeA"`
	Sales       *int64           `json:"sales"`
}
