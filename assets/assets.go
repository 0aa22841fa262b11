// Package assets resolves knowledge assets by UAL (Universal Asset Locator).
// The live implementation queries an OriginTrail DKG node; a mock store serves
// canned content for "mock:"-prefixed UALs so the API works without a node.
package assets

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned when no asset exists under the requested UAL.
var ErrNotFound = errors.New("asset not found")

// MockUALPrefix marks UALs served from the local mock store.
const MockUALPrefix = "mock:"

// Metadata is the provenance attached to fetched content.
type Metadata struct {
	Source        string `json:"source"`
	UAL           string `json:"ual"`
	Publisher     string `json:"publisher,omitempty"`
	Verifiability string `json:"verifiability"`
}

// Asset is opaque content plus its provenance.
type Asset struct {
	Content  string
	Metadata Metadata
}

// Store fetches assets by UAL.
type Store interface {
	Get(ctx context.Context, ual string) (*Asset, error)
}

// MockStore serves canned content keyed by UAL.
type MockStore struct {
	content map[string]string
}

// NewMockStore creates a mock store over the given UAL-to-content map.
func NewMockStore(content map[string]string) *MockStore {
	return &MockStore{content: content}
}

// Get returns the canned asset for the UAL, ErrNotFound otherwise.
func (s *MockStore) Get(_ context.Context, ual string) (*Asset, error) {
	content, ok := s.content[ual]
	if !ok {
		return nil, ErrNotFound
	}
	return &Asset{
		Content: content,
		Metadata: Metadata{
			Source:        "Evice Local Cache (Mock Mode)",
			UAL:           ual,
			Verifiability: "Simulated Verification",
		},
	}, nil
}

// Router dispatches mock UALs to the mock store and everything else to the
// live store. A nil live store makes real UALs report not found.
type Router struct {
	Mock Store
	Live Store
}

// Get routes the lookup by UAL prefix.
func (r *Router) Get(ctx context.Context, ual string) (*Asset, error) {
	if strings.HasPrefix(ual, MockUALPrefix) {
		if r.Mock == nil {
			return nil, ErrNotFound
		}
		return r.Mock.Get(ctx, ual)
	}
	if r.Live == nil {
		return nil, ErrNotFound
	}
	return r.Live.Get(ctx, ual)
}

// Ensure implementations satisfy Store
var (
	_ Store = (*MockStore)(nil)
	_ Store = (*Router)(nil)
)
