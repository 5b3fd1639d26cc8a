package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"solana-launch-sniper/internal/models"
)

const keyPrefix = "sniper:mint:"

// RedisLedger implements Ledger on Redis. Atomicity comes from SET NX with a
// TTL; outcome updates use SET XX KEEPTTL so they can never create an entry
// or extend its life.
type RedisLedger struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedis(client redis.Cmdable, ttl time.Duration) (*RedisLedger, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLedger{client: client, ttl: ttl}, nil
}

func (l *RedisLedger) TryAdmit(ctx context.Context, mint string) (Result, error) {
	if err := ValidateMint(mint); err != nil {
		return Result{}, err
	}

	ok, err := l.client.SetNX(ctx, mintKey(mint), string(models.DecisionPending), l.ttl).Result()
	if err != nil {
		return Result{}, fmt.Errorf("admit mint: %w", err)
	}
	if ok {
		return Result{Admitted: true}, nil
	}

	val, err := l.client.Get(ctx, mintKey(mint)).Result()
	if err == redis.Nil {
		// Lost the race and the winner's entry already expired. Treat it as
		// decided; the next event for this mint gets a fresh claim.
		return Result{State: models.DecisionPending}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("read mint state: %w", err)
	}
	return Result{State: models.DecisionState(val)}, nil
}

func (l *RedisLedger) MarkOutcome(ctx context.Context, mint string, state models.DecisionState) error {
	if err := ValidateMint(mint); err != nil {
		return err
	}

	// XX: only overwrite an existing entry. KEEPTTL: the claim window set at
	// admission keeps running.
	err := l.client.SetArgs(ctx, mintKey(mint), string(state), redis.SetArgs{
		Mode:    "XX",
		KeepTTL: true,
	}).Err()
	if err == redis.Nil {
		return ErrUnknownMint
	}
	if err != nil {
		return fmt.Errorf("mark outcome: %w", err)
	}
	return nil
}

func (l *RedisLedger) Lookup(ctx context.Context, mint string) (models.DecisionState, error) {
	if err := ValidateMint(mint); err != nil {
		return "", err
	}

	val, err := l.client.Get(ctx, mintKey(mint)).Result()
	if err == redis.Nil {
		return "", ErrUnknownMint
	}
	if err != nil {
		return "", fmt.Errorf("lookup mint: %w", err)
	}
	return models.DecisionState(val), nil
}

func mintKey(mint string) string {
	return keyPrefix + mint
}
