package wallet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
)

// DefaultBlockhashMaxAge keeps cached blockhashes comfortably inside the
// roughly 60 second validity window the chain allows.
const DefaultBlockhashMaxAge = 20 * time.Second

// BlockhashCache serves a recent blockhash without an RPC round trip on the
// submit path. A hash older than maxAge is refetched on demand.
type BlockhashCache struct {
	wallet *Wallet
	maxAge time.Duration

	mu        sync.Mutex
	hash      solana.Hash
	fetchedAt time.Time
}

func NewBlockhashCache(w *Wallet, maxAge time.Duration) *BlockhashCache {
	if maxAge <= 0 {
		maxAge = DefaultBlockhashMaxAge
	}
	return &BlockhashCache{wallet: w, maxAge: maxAge}
}

// Get returns a cached blockhash, refreshing it when stale.
func (c *BlockhashCache) Get(ctx context.Context) (solana.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.fetchedAt.IsZero() && time.Since(c.fetchedAt) < c.maxAge {
		return c.hash, nil
	}

	result, err := c.wallet.RPC().GetLatestBlockhash(ctx)
	if err != nil {
		// A stale hash may still be valid on-chain; prefer it over failing
		// the submit outright.
		if !c.fetchedAt.IsZero() {
			return c.hash, nil
		}
		return solana.Hash{}, fmt.Errorf("fetch blockhash: %w", err)
	}

	hash, err := solana.HashFromBase58(result.Value.Blockhash)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("invalid blockhash format: %w", err)
	}

	c.hash = hash
	c.fetchedAt = time.Now()
	return c.hash, nil
}
