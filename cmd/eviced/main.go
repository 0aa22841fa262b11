// Command eviced runs the Evice API: knowledge-asset endpoints gated behind
// x402 budget and one-time payments on NeuroWeb.
package main

import (
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/evice-protocol/evice/assets"
	"github.com/evice-protocol/evice/chain"
	"github.com/evice-protocol/evice/ledger"
	"github.com/evice-protocol/evice/server"
)

func main() {
	cfg := server.FromEnv()
	if cfg.RecipientWallet == "" {
		log.Fatal("MY_EVM_WALLET_ADDRESS must be set")
	}

	store := buildStore(cfg.RedisURL)

	verifier, err := chain.Dial(cfg.RPCURL)
	if err != nil {
		log.Fatalf("failed to connect to RPC endpoint %s: %v", cfg.RPCURL, err)
	}

	assetStore := &assets.Router{
		Mock: assets.NewMockStore(cfg.MockContent),
		Live: assets.NewDKGStore(assets.DKGConfig{
			Endpoint: cfg.DKGEndpoint,
			Port:     cfg.DKGPort,
		}),
	}

	srv := server.New(cfg, store, verifier, assetStore)
	log.Printf("Evice Protocol running on %s", cfg.ListenAddr)
	if err := srv.Router().Run(cfg.ListenAddr); err != nil {
		log.Fatal(err)
	}
}

// buildStore wires the ledger: Redis behind an in-memory fallback when
// configured, purely in-memory otherwise.
func buildStore(redisURL string) ledger.Store {
	if redisURL == "" {
		log.Print("REDIS_URL not set, ledger state is in-memory and lost on restart")
		return ledger.NewFallbackStore(nil)
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Printf("invalid REDIS_URL, falling back to in-memory ledger: %v", err)
		return ledger.NewFallbackStore(nil)
	}
	return ledger.NewFallbackStore(ledger.NewRedisStore(redis.NewClient(opts)))
}
