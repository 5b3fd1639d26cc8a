package ledger

import (
	"context"
	"sync"
	"time"

	"solana-launch-sniper/internal/models"
)

type memoryEntry struct {
	state     models.DecisionState
	expiresAt time.Time
}

// MemoryLedger is an in-process Ledger with the same semantics as the Redis
// one. Meant for tests and single-instance runs without Redis.
type MemoryLedger struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemory(ttl time.Duration) *MemoryLedger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryLedger{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (l *MemoryLedger) TryAdmit(_ context.Context, mint string) (Result, error) {
	if err := ValidateMint(mint); err != nil {
		return Result{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.entries[mint]; ok && l.now().Before(e.expiresAt) {
		return Result{State: e.state}, nil
	}
	l.entries[mint] = memoryEntry{
		state:     models.DecisionPending,
		expiresAt: l.now().Add(l.ttl),
	}
	return Result{Admitted: true}, nil
}

func (l *MemoryLedger) MarkOutcome(_ context.Context, mint string, state models.DecisionState) error {
	if err := ValidateMint(mint); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[mint]
	if !ok || !l.now().Before(e.expiresAt) {
		return ErrUnknownMint
	}
	e.state = state
	l.entries[mint] = e
	return nil
}

func (l *MemoryLedger) Lookup(_ context.Context, mint string) (models.DecisionState, error) {
	if err := ValidateMint(mint); err != nil {
		return "", err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[mint]
	if !ok || !l.now().Before(e.expiresAt) {
		return "", ErrUnknownMint
	}
	return e.state, nil
}
