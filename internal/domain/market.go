package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Currency is a ticker symbol. CurrencyA and CurrencyB are the two settlement currencies.
type Currency string

const (
	// CurrencyA is the native gas token.
	CurrencyA Currency = "SGB"
	// CurrencyB is the protocol utility token.
	CurrencyB Currency = "POND"
)

// ZeroAddress marks an empty slot in contract results.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// Listing is a marketplace entry as reported by the marketplace contract.
type Listing struct {
	CollectionAddress string          `json:"collection"`
	TokenID           int             `json:"tokenId"`
	Seller            string          `json:"seller"`
	PriceA            decimal.Decimal `json:"priceA"`
	PriceB            decimal.Decimal `json:"priceB"`
	Active            bool            `json:"active"`
}

// Validate returns ErrInvalidListing when the listing is inactive or priced zero in both currencies.
func (l Listing) Validate() error {
	if !l.Active {
		return fmt.Errorf("%w: token %d is not active", ErrInvalidListing, l.TokenID)
	}
	if !l.PriceA.IsPositive() && !l.PriceB.IsPositive() {
		return fmt.Errorf("%w: token %d is priced zero in both currencies", ErrInvalidListing, l.TokenID)
	}
	return nil
}

// Valid reports whether the listing is active and priced in at least one currency.
func (l Listing) Valid() bool {
	return l.Validate() == nil
}

// SoldBy reports whether the listing belongs to the given seller.
func (l Listing) SoldBy(address string) bool {
	return strings.EqualFold(l.Seller, address)
}

// PriceQuote is a comparable price expressed in currency A.
type PriceQuote struct {
	SourceCurrency Currency        `json:"sourceCurrency"`
	Amount         decimal.Decimal `json:"amount"`
	EquivalentA    decimal.Decimal `json:"equivalentA"`
	Display        string          `json:"display"`
	Valid          bool            `json:"valid"`
}

// ExchangeRate is a per-pass snapshot of the pool rate.
type ExchangeRate struct {
	APerB     decimal.Decimal `json:"aPerB"`
	ReserveA  decimal.Decimal `json:"reserveA"`
	ReserveB  decimal.Decimal `json:"reserveB"`
	Degraded  bool            `json:"degraded"`
	FetchedAt time.Time       `json:"fetchedAt"`
}

// VolumeStats are aggregate marketplace counters, per currency leg.
type VolumeStats struct {
	VolumeA     decimal.Decimal `json:"volumeA"`
	VolumeB     decimal.Decimal `json:"volumeB"`
	EquivalentA decimal.Decimal `json:"equivalentA"`
	Sales       int64           `json:"sales"`
}

// Offer is a bid on a single token.
type Offer struct {
	Index   int             `json:"index"`
	Buyer   string          `json:"buyer"`
	AmountA decimal.Decimal `json:"amountA"`
	AmountB decimal.Decimal `json:"amountB"`
	Expiry  time.Time       `json:"expiry"`
	Expired bool            `json:"expired"`
	Quote   PriceQuote      `json:"quote"`
}

// Cancelled reports whether the offer slot was cleared on-chain.
func (o Offer) Cancelled() bool {
	return o.Buyer == "" || strings.EqualFold(o.Buyer, ZeroAddress)
}
