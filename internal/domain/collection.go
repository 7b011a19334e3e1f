package domain

import (
	"strings"

	"github.com/samber/lo"
)

// Contract addresses of the protocol on Songbird.
const (
	PondTokenAddress   = "0x39fec3F97668e393862Dbb3C442f3Dd3d5016D69"
	PondPoolAddress    = "0xBe942e51AB1617AFfe7E40F2f7bD4b022548e1Bd"
	NFTStakingAddress  = "0xAC3E3651a4FA87784dee501a962aBD5005EebB64"
	MarketplaceAddress = "0xc99c294224BCB259F1860F0EeaABa664b29d1633"
)

// Collection is a static NFT collection known to the marketplace.
type Collection struct {
	Address             string  `json:"address" yaml:"address"`
	Name                string  `json:"name" yaml:"name"`
	Symbol              string  `json:"symbol" yaml:"symbol"`
	Supply              int     `json:"supply" yaml:"supply"`
	Stakeable           bool    `json:"stakeable" yaml:"stakeable"`
	NoRarity            bool    `json:"noRarity" yaml:"noRarity"`
	SupportsEnumeration bool    `json:"supportsEnumeration" yaml:"supportsEnumeration"`
	BaseImageURI        string  `json:"baseImageUri" yaml:"baseImageUri"`
	ThumbnailURI        *string `json:"thumbnailUri,omitempty" yaml:"thumbnailUri"`
	MetadataSourceURI   *string `json:"metadataSourceUri,omitempty" yaml:"metadataSourceUri"`
}

// Key returns the canonical (lowercase) address used for map keys and comparisons.
func (c Collection) Key() string {
	return strings.ToLower(c.Address)
}

func ptr(s string) *string { return &s }

// CollectionRegistry is the built-in collection list. A YAML registry file replaces it when configured.
var CollectionRegistry = []Collection{
	// Protocol collections (stakeable)
	{Address: "0x35afb6Ba51839dEDD33140A3b704b39933D1e642", Name: "sToadz", Symbol: "STOADZ", Supply: 10000, Stakeable: true, SupportsEnumeration: true,
		BaseImageURI: "https://ipfs.io/ipfs/QmP45Rfhy75RybFuLcwd1CR9vF6qznw95qQPxcA5TeBNYk/", ThumbnailURI: ptr("https://ipfs.io/ipfs/QmP45Rfhy75RybFuLcwd1CR9vF6qznw95qQPxcA5TeBNYk/"),
		MetadataSourceURI: ptr("0x35afb6Ba51839dEDD33140A3b704b39933D1e642.json")},
	{Address: "0x91Aa85a172DD3e7EEA4ad1A4B33E90cbF3B99ed8", Name: "Luxury Lofts", Symbol: "LOFT", Supply: 10000, Stakeable: true,
		BaseImageURI: "https://ipfs.io/ipfs/QmZ42mWPA3xihoQxnm7ufKh51n5fhJe7hwfN7VPfy4cZcg/", MetadataSourceURI: ptr("0x91Aa85a172DD3e7EEA4ad1A4B33E90cbF3B99ed8.json")},
	{Address: "0x360f8B7d9530F55AB8E52394E6527935635f51E7", Name: "Songbird City", Symbol: "SBCITY", Supply: 10000, Stakeable: true,
		BaseImageURI: "https://ipfs.io/ipfs/QmY5ZwdLP4z2PBXmRgh3djcDYzWvMuizyqfTDhPnXErgBm/", MetadataSourceURI: ptr("0x360f8B7d9530F55AB8E52394E6527935635f51E7.json")},

	// External collections
	{Address: "0x0e759aa7166ab3b2b81abd6d9ed16ac83368f97e", Name: "The Fat Cats", Symbol: "FATCAT", Supply: 1000,
		BaseImageURI: "https://ipfs.io/ipfs/QmSDmNVAXnEandkTaCpiU4wEBzp7Hjv8Wyy8ZHb9BPzYWo/", MetadataSourceURI: ptr("0x0e759aa7166ab3b2b81abd6d9ed16ac83368f97e.json")},
	{Address: "0x12c40516c7bf32002FF0e3431082C9e28Ab76066", Name: "The Fat Leopards", Symbol: "FATLEOPARD", Supply: 3000,
		BaseImageURI: "https://ipfs.io/ipfs/QmeW1iCPC4zyFkfFMarhWosUwXYmBTg1PaYEcZv2GtoreY/", MetadataSourceURI: ptr("0x12c40516c7bf32002ff0e3431082c9e28ab76066.json")},
	{Address: "0xFdD87A263ba929E14Dd0A2D879D9C66d5c8fF3ae", Name: "Fat Tigers", Symbol: "FATTIGER", Supply: 6000,
		BaseImageURI: "https://ipfs.io/ipfs/QmYuLjrHG9dDDc8bYSjkS7F2Tefx9otDkA8ET7nfPdaT4n/", MetadataSourceURI: ptr("0xfdd87a263ba929e14dd0a2d879d9c66d5c8ff3ae.json")},
	{Address: "0xCdB019C0990c033724DA55f5A04bE6fd6ec1809d", Name: "The Oracles", Symbol: "ORACLE", Supply: 22222,
		BaseImageURI: "https://ipfs.io/ipfs/QmV3yAjc2WXQNZycGq3G8B6KGfNZutJFcQM3UuCRiXYgBH/", MetadataSourceURI: ptr("0xcdb019c0990c033724da55f5a04be6fd6ec1809d.json")},
	{Address: "0xd167c20575c284dF75BCfe1794d54d3E057Cd4EC", Name: "Sparkles Genesis", Symbol: "SPARKLE", Supply: 9999,
		BaseImageURI: "https://ipfs.io/ipfs/QmXe2RLWnagcD62nSxr45CwA9vPKVNoALwazY9UbiVNF6g/", MetadataSourceURI: ptr("0xd167c20575c284df75bcfe1794d54d3e057cd4ec.json")},
	{Address: "0xd83Ae2C70916a2360e23683A0d3a3556b2c09935", Name: "Songbird Punks", Symbol: "SBPUNK", Supply: 20000,
		BaseImageURI: "https://ipfs.io/ipfs/QmVEABGSJp2YSXYdULyJuiJLLbeSrexf2iY3zmZrecc5u8/", MetadataSourceURI: ptr("0xd83ae2c70916a2360e23683a0d3a3556b2c09935.json")},
	{Address: "0x279a222a18C033124Ab02290dDec97912A8b7185", Name: "doodcats", Symbol: "DOODCAT", Supply: 10000,
		BaseImageURI: "https://ipfs.io/ipfs/QmdjzdH9N5QYpBVRc3FoKo2z77piHHrzh6QstztVA8TfyE/", MetadataSourceURI: ptr("0x279a222a18c033124ab02290ddec97912a8b7185.json")},
	{Address: "0x2972ea6e6CC45c5837CE909DeF032DD325B48415", Name: "Bazooka Chicks", Symbol: "BAZOOKA", Supply: 10000,
		BaseImageURI: "https://ipfs.io/ipfs/QmNSQh2m4aozJESozZnCj37szuiRvyab57Nkqd25HeGMHY/", MetadataSourceURI: ptr("0x2972ea6e6cc45c5837ce909def032dd325b48415.json")},
	{Address: "0x972edfF4D09a4fd8ABDe8e8f669B7e1E3B1f7e3D", Name: "Grumpy Monkeys", Symbol: "GRUMPY", Supply: 1000,
		BaseImageURI: "https://ipfs.io/ipfs/QmQQ1aSzdZaZ1KBR8dWJbnPN1BnFvr3ATtG2BcpeHvgND6/", MetadataSourceURI: ptr("0x972edff4d09a4fd8abde8e8f669b7e1e3b1f7e3d.json")},
	{Address: "0x34FF649D709ccCEc77bCf433317176fD13246296", Name: "CYBRs", Symbol: "CYBR", Supply: 20000,
		BaseImageURI: "https://ipfs.io/ipfs/QmV6fgsPwsT3kbUPoHyeMrZ7Cx761pmMg82sKLgghAVeKy/", MetadataSourceURI: ptr("0x34ff649d709cccec77bcf433317176fd13246296.json")},
	{Address: "0x23A18A46c67301864f5b341e87f89B8Ccb690c44", Name: "Super Bad Babies", Symbol: "SBB", Supply: 3333,
		BaseImageURI: "https://ipfs.io/ipfs/QmbkGuLePd9rgtyfzkV5iJnbKEYhkd4R6zcyQ9X9X6g12Q/", MetadataSourceURI: ptr("0x23a18a46c67301864f5b341e87f89b8ccb690c44.json")},
	{Address: "0xf4b4D366f9B4855690Bb7530abC76C857B259093", Name: "Super Bad Genesis Seed", Symbol: "SBGS", Supply: 666,
		BaseImageURI: "https://ipfs.io/ipfs/QmPWDzHNbD6QghZ5ajRELFjKNQWSRh4G3qjfYjkgUPfqNX/", MetadataSourceURI: ptr("0xf4b4d366f9b4855690bb7530abc76c857b259093.json")},
	{Address: "0xfF063937523c4514179A4d9A6769694bAab357A8", Name: "888 Inner Circle", Symbol: "888IC", Supply: 4086,
		BaseImageURI: "https://ipfs.io/ipfs/QmNiEd6pymnSambZraBWn5NCqGXUJwbUFxKHW1mhUX7Vxw/", MetadataSourceURI: ptr("0xff063937523c4514179a4d9a6769694baab357a8.json")},
	{Address: "0x4F52A074De9f2651d2f711FEe63FEe9E3b439A7e", Name: "The Grungies", Symbol: "GRUNGIE", Supply: 1990,
		BaseImageURI: "https://ipfs.io/ipfs/bafybeigl7q35qc5bqgcpwtjs6dpahquf4iloyd34taidrwhdkvgz2czzeu/", MetadataSourceURI: ptr("0x4f52a074de9f2651d2f711fee63fee9e3b439a7e.json")},
	{Address: "0x927463265eDE6a52604D179d7110B7B2fc057a3f", Name: "The Senators", Symbol: "SENATOR", Supply: 350,
		BaseImageURI: "https://ipfs.io/ipfs/bafybeia3lq7i5jfprtohxiqtmy5olprhwchs4zih3vmerz5zueudjij5hu/", MetadataSourceURI: ptr("0x927463265ede6a52604d179d7110b7b2fc057a3f.json")},
	{Address: "0x3157537399860305ebE9e7fd17cfA00AAE291c82", Name: "FORT", Symbol: "FORT", Supply: 52,
		BaseImageURI: "https://ipfs.io/ipfs/Qmbdb3opaLGKqJi1yD5uAohJMVmqSgArQvZVohEuW6YddB/", MetadataSourceURI: ptr("0x3157537399860305ebe9e7fd17cfa00aae291c82.json")},
}

// StakeableCollections returns collections accepted by the staking contract.
func StakeableCollections(collections []Collection) []Collection {
	return lo.Filter(collections, func(c Collection, _ int) bool {
		return c.Stakeable
	})
}

// CollectionByAddress looks up a collection by address, ignoring case.
func CollectionByAddress(collections []Collection, address string) (Collection, bool) {
	return lo.Find(collections, func(c Collection) bool {
		return strings.EqualFold(c.Address, address)
	})
}
