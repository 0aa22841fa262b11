package assets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DKGConfig configures the DKG node client.
type DKGConfig struct {
	// Endpoint is the base URL of the OT node (ex: "http://localhost").
	Endpoint string

	// Port is the node's API port (optional, defaults to 8900). A negative
	// port means Endpoint already carries one.
	Port int

	// HTTPClient is the HTTP client to use (optional).
	HTTPClient *http.Client

	// Timeout for requests (optional, defaults to 30s).
	Timeout time.Duration
}

// DefaultDKGPort is the standard OT node API port.
const DefaultDKGPort = 8900

// DKGStore fetches knowledge assets from an OriginTrail DKG node.
type DKGStore struct {
	baseURL    string
	httpClient *http.Client
}

// NewDKGStore creates a client for the configured node.
func NewDKGStore(config DKGConfig) *DKGStore {
	baseURL := config.Endpoint
	if config.Port >= 0 {
		port := config.Port
		if port == 0 {
			port = DefaultDKGPort
		}
		baseURL = fmt.Sprintf("%s:%d", config.Endpoint, port)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &DKGStore{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// assetResponse mirrors the node's get-asset payload shape.
type assetResponse struct {
	Assertion struct {
		Public struct {
			Text   string `json:"text"`
			Author struct {
				Name string `json:"name"`
			} `json:"author"`
		} `json:"public"`
	} `json:"assertion"`
}

// Get fetches the asset behind a UAL from the node.
func (s *DKGStore) Get(ctx context.Context, ual string) (*Asset, error) {
	reqBody, err := json.Marshal(map[string]string{"ual": ual})
	if err != nil {
		return nil, fmt.Errorf("assets: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/asset/get", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("assets: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("assets: fetch %s: %w", ual, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("assets: node returned status %d for %s", resp.StatusCode, ual)
	}

	var body assetResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("assets: decode response: %w", err)
	}
	if body.Assertion.Public.Text == "" {
		return nil, fmt.Errorf("assets: asset %s found but empty", ual)
	}

	publisher := body.Assertion.Public.Author.Name
	if publisher == "" {
		publisher = "Anonymous"
	}

	return &Asset{
		Content: body.Assertion.Public.Text,
		Metadata: Metadata{
			Source:        "OriginTrail DKG (NeuroWeb)",
			UAL:           ual,
			Publisher:     publisher,
			Verifiability: "Cryptographically Verified",
		},
	}, nil
}

// Ensure DKGStore implements Store
var _ Store = (*DKGStore)(nil)
