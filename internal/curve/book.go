package curve

import "sync"

// Virtual reserve values a pump.fun bonding curve starts with at launch.
const (
	initialVirtualSOLReserves   uint64 = 30_000_000_000        // 30 SOL in lamports
	initialVirtualTokenReserves uint64 = 1_073_000_000_000_000 // ~1.073B tokens, 6 decimals
)

const (
	lamportsPerSOL = 1_000_000_000
	tokenPrecision = 1_000_000
)

type reserves struct {
	virtualSOL    uint64
	virtualTokens uint64
}

// Book tracks per-mint virtual reserves observed on the feed and derives the
// current bonding-curve unit price from them. Safe for concurrent use by many
// decode workers.
type Book struct {
	mu     sync.RWMutex
	tokens map[string]reserves
}

func NewBook() *Book {
	return &Book{tokens: make(map[string]reserves)}
}

// Track initializes reserves for a newly created mint. Repeated calls for the
// same mint keep the existing state.
func (b *Book) Track(mint string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.tokens[mint]; ok {
		return
	}
	b.tokens[mint] = reserves{
		virtualSOL:    initialVirtualSOLReserves,
		virtualTokens: initialVirtualTokenReserves,
	}
}

// Tracked reports whether the book has reserve state for mint.
func (b *Book) Tracked(mint string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.tokens[mint]
	return ok
}

// ApplyBuy folds an observed buy into the mint's virtual reserves. Unknown
// mints are ignored; reserves saturate instead of wrapping.
func (b *Book) ApplyBuy(mint string, tokenAmount, solLamports uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.tokens[mint]
	if !ok {
		return
	}
	r.virtualSOL += solLamports
	if tokenAmount <= r.virtualTokens {
		r.virtualTokens -= tokenAmount
	}
	b.tokens[mint] = r
}

// UnitPrice returns the current bonding-curve price in SOL per token, or 0
// when the mint is untracked or its token reserves are exhausted.
func (b *Book) UnitPrice(mint string) float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.tokens[mint]
	if !ok || r.virtualTokens == 0 {
		return 0
	}
	sol := float64(r.virtualSOL) / lamportsPerSOL
	tokens := float64(r.virtualTokens) / tokenPrecision
	return sol / tokens
}

// Forget drops reserve state for a mint once a decision on it is final.
func (b *Book) Forget(mint string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.tokens, mint)
}
