package domain

import "errors"

// Failure classes shared by every data source. None of them is surfaced to API callers as a hard error.
var (
	// ErrSourceUnavailable means the indexer or RPC node failed; callers fall back or degrade.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrCapabilityUnsupported means the contract lacks the requested capability; callers fall through immediately.
	ErrCapabilityUnsupported = errors.New("capability unsupported")
	// ErrPartialData means token metadata is absent or malformed.
	ErrPartialData = errors.New("partial data missing")
	// ErrInvalidListing means a listing is inactive or priced zero in both currencies.
	ErrInvalidListing = errors.New("invalid listing")
)
