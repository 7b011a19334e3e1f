package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Attribute is a single trait of a token.
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// UnmarshalJSON accepts string, numeric and boolean trait values; metadata files mix them freely.
func (a *Attribute) UnmarshalJSON(data []byte) error {
	var raw struct {
		TraitType string          `json:"trait_type"`
		Value     json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	a.TraitType = raw.TraitType
	a.Value = ""

	v := bytes.TrimSpace(raw.Value)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return nil
	}
	if v[0] == '"' {
		return json.Unmarshal(v, &a.Value)
	}
	a.Value = string(v)
	return nil
}

// TokenMetadata is the off-chain description of one token.
type TokenMetadata struct {
	TokenID    int         `json:"tokenId"`
	Name       *string     `json:"name,omitempty"`
	Image      *string     `json:"image,omitempty"`
	Attributes []Attribute `json:"attributes,omitempty"`
}

// HasAttributes reports whether the token carries any trait.
func (m TokenMetadata) HasAttributes() bool {
	return len(m.Attributes) > 0
}

// Trait returns the value of the given trait type.
func (m TokenMetadata) Trait(traitType string) (string, bool) {
	for _, a := range m.Attributes {
		if a.TraitType == traitType {
			return a.Value, true
		}
	}
	return "", false
}

// Tier is a rarity bucket derived from rank percentile.
type Tier string

const (
	TierLegendary Tier = "Legendary"
	TierEpic      Tier = "Epic"
	TierRare      Tier = "Rare"
	TierUncommon  Tier = "Uncommon"
	TierCommon    Tier = "Common"
)

// RarityRecord is the derived rarity of one token within its collection.
type RarityRecord struct {
	TokenID         int     `json:"tokenId"`
	Rank            int     `json:"rank"`
	NormalizedScore int     `json:"score"`
	RawScore        float64 `json:"rawScore"`
	Tier            Tier    `json:"tier"`
}

// RawScoreDisplay is the raw score rounded to two decimals.
func (r RarityRecord) RawScoreDisplay() string {
	return strconv.FormatFloat(r.RawScore, 'f', 2, 64)
}

// TokenState is the reconciled location of an owned token.
type TokenState string

const (
	TokenStateWallet TokenState = "wallet"
	TokenStateStaked TokenState = "staked"
	TokenStateListed TokenState = "listed"
)

// statePriority orders states by authority; higher wins on merge.
var statePriority = map[TokenState]int{
	TokenStateWallet: 0,
	TokenStateStaked: 1,
	TokenStateListed: 2,
}

// Outranks reports whether s takes precedence over other when the same token is seen in both.
func (s TokenState) Outranks(other TokenState) bool {
	return statePriority[s] > statePriority[other]
}

// OwnedToken is one token held by a wallet in a reconciled view.
type OwnedToken struct {
	CollectionAddress string     `json:"collection"`
	TokenID           int        `json:"tokenId"`
	State             TokenState `json:"state"`
}

// TokenKey is the canonical identity of a token across sources.
type TokenKey struct {
	Collection string
	TokenID    int
}

// NewTokenKey normalizes the collection address.
func NewTokenKey(collection string, tokenID int) TokenKey {
	return TokenKey{Collection: strings.ToLower(collection), TokenID: tokenID}
}

func (k TokenKey) String() string {
	return fmt.Sprintf("%s-%d", k.Collection, k.TokenID)
}

// Key returns the canonical identity of the owned token.
func (t OwnedToken) Key() TokenKey {
	return NewTokenKey(t.CollectionAddress, t.TokenID)
}
