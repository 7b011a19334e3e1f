package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mtlprog/nftstate/internal/domain"
)

type documentItem struct {
	ID         json.RawMessage    `json:"id"`
	Name       *string            `json:"name"`
	Image      *string            `json:"image"`
	Art        *string            `json:"art"`
	Attributes []domain.Attribute `json:"attributes"`
}

func (it documentItem) toMetadata(id int) domain.TokenMetadata {
	image := it.Image
	if it.Art != nil && *it.Art != "" {
		image = it.Art
	}
	return domain.TokenMetadata{TokenID: id, Name: it.Name, Image: image, Attributes: it.Attributes}
}

// parseDocument accepts either a JSON array of items carrying an "id" or an object keyed by token id.
// Malformed items in an object keep their id with no attributes; malformed array items are dropped.
func parseDocument(data []byte) (map[int]domain.TokenMetadata, int, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, 0, fmt.Errorf("empty metadata document")
	}

	out := make(map[int]domain.TokenMetadata)
	skipped := 0

	switch data[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, 0, fmt.Errorf("decoding metadata array: %w", err)
		}
		for _, raw := range items {
			var it documentItem
			if err := json.Unmarshal(raw, &it); err != nil {
				skipped++
				continue
			}
			id, err := parseID(it.ID)
			if err != nil {
				skipped++
				continue
			}
			out[id] = it.toMetadata(id)
		}

	case '{':
		var items map[string]json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, 0, fmt.Errorf("decoding metadata object: %w", err)
		}
		for key, raw := range items {
			id, err := strconv.Atoi(strings.TrimSpace(key))
			if err != nil {
				skipped++
				continue
			}
			var it documentItem
			if err := json.Unmarshal(raw, &it); err != nil {
				skipped++
				out[id] = domain.TokenMetadata{TokenID: id}
				continue
			}
			out[id] = it.toMetadata(id)
		}

	default:
		return nil, 0, fmt.Errorf("metadata document must be an array or object")
	}

	return out, skipped, nil
}

func parseID(raw json.RawMessage) (int, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return 0, fmt.Errorf("missing id")
	}
	return strconv.Atoi(s)
}

// generate builds name-only metadata for collections without a metadata document.
func generate(col domain.Collection) map[int]domain.TokenMetadata {
	out := make(map[int]domain.TokenMetadata, col.Supply)
	for i := 1; i <= col.Supply; i++ {
		name := fmt.Sprintf("%s #%d", col.Name, i)
		out[i] = domain.TokenMetadata{TokenID: i, Name: &name}
	}
	return out
}

// ImageURL resolves the display image of a token: collection thumbnails first, then metadata art, then the base URI.
func ImageURL(col domain.Collection, tokenID int, meta *domain.TokenMetadata) string {
	if col.ThumbnailURI != nil && *col.ThumbnailURI != "" {
		return fmt.Sprintf("%s%d.png", *col.ThumbnailURI, tokenID)
	}
	if meta != nil && meta.Image != nil && *meta.Image != "" {
		return ipfsToHTTP(*meta.Image)
	}
	return fmt.Sprintf("%s%d.png", col.BaseImageURI, tokenID)
}

func ipfsToHTTP(uri string) string {
	if rest, ok := strings.CutPrefix(uri, "ipfs://"); ok {
		return "https://dweb.link/ipfs/" + rest
	}
	return uri
}
