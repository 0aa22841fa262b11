package server

import (
	"os"
	"strconv"

	"github.com/shopspring/decimal"
)

// Config wires the API server to its collaborators. Values come from the
// environment via FromEnv; tests construct Config directly.
type Config struct {
	// ListenAddr is the address the HTTP server binds to.
	ListenAddr string

	// RecipientWallet receives all payments and deposits.
	RecipientWallet string

	// RPCURL is the EVM endpoint transactions are verified against.
	RPCURL string

	// RedisURL selects the durable ledger backend; empty means in-memory only.
	RedisURL string

	// DKGEndpoint and DKGPort locate the OT node for live asset fetches.
	DKGEndpoint string
	DKGPort     int

	// KnowledgeAssets maps public document ids to their UALs.
	KnowledgeAssets map[string]string

	// MockContent seeds the mock asset store, keyed by UAL.
	MockContent map[string]string

	// Tools is the catalog served by /api/agent-tools.
	Tools []Tool
}

// Tool describes one paid endpoint in the agent-facing catalog.
type Tool struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Endpoint    string
}

// DefaultRPCURL is the NeuroWeb testnet endpoint.
const DefaultRPCURL = "https://lofar-testnet.origin-trail.network"

var defaultKnowledgeAssets = map[string]string{
	"tokenomics": "mock:did:dkg:otp:20430/tokenomics",
	"roadmap":    "mock:did:dkg:otp:20430/roadmap",
}

var defaultMockContent = map[string]string{
	"mock:did:dkg:otp:20430/tokenomics": "Tokenomics: 50% Community, 30% Team, 20% Foundation. Vesting 4 years. (Verified via Mock DKG)",
	"mock:did:dkg:otp:20430/roadmap":    "Roadmap: Q1 DKG Integration, Q2 Mainnet Launch, Q3 AI Agents Swarm. (Verified via Mock DKG)",
}

func defaultTools() []Tool {
	return []Tool{
		{
			Name:        "get_tokenomics",
			Description: "Retrieve verified tokenomics data",
			Price:       contextPrice,
			Endpoint:    "/api/get-context?docId=tokenomics",
		},
		{
			Name:        "get_roadmap",
			Description: "Retrieve verified project roadmap",
			Price:       contextPrice,
			Endpoint:    "/api/get-context?docId=roadmap",
		},
	}
}

// FromEnv reads configuration from the environment, applying testnet
// defaults for everything optional.
func FromEnv() Config {
	cfg := Config{
		ListenAddr:      ":3001",
		RecipientWallet: os.Getenv("MY_EVM_WALLET_ADDRESS"),
		RPCURL:          envOr("NEUROWEB_RPC", DefaultRPCURL),
		RedisURL:        os.Getenv("REDIS_URL"),
		DKGEndpoint:     envOr("OT_NODE_ENDPOINT", "http://localhost"),
		KnowledgeAssets: map[string]string{
			"tokenomics": envOr("TOKENOMICS_UAL", defaultKnowledgeAssets["tokenomics"]),
			"roadmap":    envOr("ROADMAP_UAL", defaultKnowledgeAssets["roadmap"]),
		},
		MockContent: defaultMockContent,
		Tools:       defaultTools(),
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.ListenAddr = ":" + port
	}
	if port := os.Getenv("OT_NODE_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			cfg.DKGPort = n
		}
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
