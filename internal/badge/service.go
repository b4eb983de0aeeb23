package badge

import (
	"context"
	"encoding/json"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/spliteth/spliteth/internal/apperr"
)

// Badge is the metadata document a collection points at.
type Badge struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
	ImageMedium string          `json:"image_medium"`
	ImageSmall  string          `json:"image_small"`
	TokenID     string          `json:"tokenId"`
	URL         string          `json:"url"`
	Start       json.RawMessage `json:"start,omitempty"`
	End         json.RawMessage `json:"end,omitempty"`
	Type        string          `json:"type"`
	Location    Location        `json:"location"`
}

// Location of an in-person badge event.
type Location struct {
	Name        string `json:"name"`
	Coordinates string `json:"coordinates"`
}

// URIReader resolves a token id to its metadata URI.
type URIReader interface {
	BadgeURI(ctx context.Context, collection common.Address, id *big.Int) (string, error)
}

// Fetcher loads content-addressed JSON.
type Fetcher interface {
	Get(ctx context.Context, hash string, out any) error
	URL(ref string) string
}

// Service reads badge metadata through the collection contract and IPFS.
type Service struct {
	chain URIReader
	ipfs  Fetcher
}

// NewService builds a badge service.
func NewService(chain URIReader, ipfs Fetcher) *Service {
	return &Service{chain: chain, ipfs: ipfs}
}

// Get returns the badge with image links rewritten to the gateway.
func (s *Service) Get(ctx context.Context, collection common.Address, id *big.Int) (Badge, error) {
	uri, err := s.chain.BadgeURI(ctx, collection, id)
	if err != nil {
		return Badge{}, apperr.Upstream("failed to read badge uri", err)
	}
	var b Badge
	if err := s.ipfs.Get(ctx, uri, &b); err != nil {
		return Badge{}, apperr.Upstream("failed to fetch badge metadata", err)
	}
	b.Image = s.resolve(b.Image)
	b.ImageMedium = s.resolve(b.ImageMedium)
	b.ImageSmall = s.resolve(b.ImageSmall)
	return b, nil
}

func (s *Service) resolve(ref string) string {
	if ref == "" || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	return s.ipfs.URL(ref)
}
