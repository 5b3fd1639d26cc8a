package trader

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-launch-sniper/internal/ledger"
	"solana-launch-sniper/internal/models"
)

const testMint = "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R"

type fakeSubmitter struct {
	mu sync.Mutex

	buyErrs  []error // consumed one per SubmitBuy call, nil after exhaustion
	sellErrs []error
	confirm  error

	buyCalls   int
	sellCalls  int
	sellSubmit time.Time
}

func (f *fakeSubmitter) SubmitBuy(_ context.Context, _ *models.Position) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buyCalls++
	if len(f.buyErrs) > 0 {
		err := f.buyErrs[0]
		f.buyErrs = f.buyErrs[1:]
		if err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("buy-sig-%d", f.buyCalls), nil
}

func (f *fakeSubmitter) SubmitSell(_ context.Context, _ *models.Position) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sellCalls++
	if f.sellSubmit.IsZero() {
		f.sellSubmit = time.Now()
	}
	if len(f.sellErrs) > 0 {
		err := f.sellErrs[0]
		f.sellErrs = f.sellErrs[1:]
		if err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("sell-sig-%d", f.sellCalls), nil
}

func (f *fakeSubmitter) Confirm(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.confirm
}

func (f *fakeSubmitter) sellSubmitAt() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sellSubmit
}

func (f *fakeSubmitter) buys() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buyCalls
}

type fakeJournal struct {
	mu       sync.Mutex
	recorded []*models.Position
}

func (j *fakeJournal) Record(_ context.Context, pos *models.Position) error {
	j.mu.Lock()
	j.recorded = append(j.recorded, pos)
	j.mu.Unlock()
	return nil
}

func (j *fakeJournal) count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.recorded)
}

func admitted(t *testing.T, led ledger.Ledger) *models.Position {
	t.Helper()
	res, err := led.TryAdmit(context.Background(), testMint)
	require.NoError(t, err)
	require.True(t, res.Admitted)

	cand := &models.SwapCandidate{Mint: testMint, Slot: 42}
	return models.NewPosition(cand, 100_000_000, 2_500_000_000)
}

func waitTerminal(t *testing.T, pos *models.Position) {
	t.Helper()
	require.Eventually(t, func() bool {
		return pos.State().Terminal()
	}, 5*time.Second, 5*time.Millisecond)
}

func TestOrchestrator_HappyPathClosesAfterDelay(t *testing.T) {
	led := ledger.NewMemory(time.Minute)
	sub := &fakeSubmitter{}
	journal := &fakeJournal{}

	o := New(Config{
		SellDelay:      60 * time.Millisecond,
		MaxRetries:     3,
		RetryBackoff:   10 * time.Millisecond,
		ConfirmTimeout: time.Second,
	}, sub, led, journal, nil)
	defer o.Shutdown(context.Background())

	pos := admitted(t, led)
	require.True(t, o.Open(pos))

	waitTerminal(t, pos)

	assert.Equal(t, models.PositionClosed, pos.State())
	assert.NotEmpty(t, pos.BuySignature())
	assert.NotEmpty(t, pos.SellSignature())

	// The sell must not fire before the configured delay has passed.
	elapsed := sub.sellSubmitAt().Sub(pos.BuyConfirmedAt())
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)

	state, err := led.Lookup(context.Background(), testMint)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionBought, state)

	assert.Equal(t, 1, journal.count())
	assert.Equal(t, 0, o.OpenPositions())
}

func TestOrchestrator_BuyRetriesExhausted(t *testing.T) {
	led := ledger.NewMemory(time.Minute)
	sub := &fakeSubmitter{
		buyErrs: []error{
			fmt.Errorf("node busy"),
			fmt.Errorf("node busy"),
			fmt.Errorf("node busy"),
		},
	}

	o := New(Config{
		MaxRetries:     3,
		RetryBackoff:   5 * time.Millisecond,
		ConfirmTimeout: time.Second,
	}, sub, led, nil, nil)
	defer o.Shutdown(context.Background())

	pos := admitted(t, led)
	require.True(t, o.Open(pos))

	waitTerminal(t, pos)

	assert.Equal(t, models.PositionFailed, pos.State())
	assert.Equal(t, models.LegBuy, pos.FailedLeg())
	assert.Equal(t, 3, pos.Attempts())
	assert.Equal(t, 3, sub.buys())

	state, err := led.Lookup(context.Background(), testMint)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionFailed, state)
}

func TestOrchestrator_PermanentBuyErrorAbandons(t *testing.T) {
	led := ledger.NewMemory(time.Minute)
	sub := &fakeSubmitter{
		buyErrs: []error{fmt.Errorf("bad mint: %w", ErrPermanent)},
	}

	o := New(Config{
		MaxRetries:     3,
		RetryBackoff:   5 * time.Millisecond,
		ConfirmTimeout: time.Second,
	}, sub, led, nil, nil)
	defer o.Shutdown(context.Background())

	pos := admitted(t, led)
	require.True(t, o.Open(pos))

	waitTerminal(t, pos)

	assert.Equal(t, models.PositionAbandoned, pos.State())
	assert.Equal(t, 1, sub.buys())

	state, err := led.Lookup(context.Background(), testMint)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionFailed, state)
}

func TestOrchestrator_SellRetriesExhausted(t *testing.T) {
	led := ledger.NewMemory(time.Minute)
	sub := &fakeSubmitter{
		sellErrs: []error{
			fmt.Errorf("node busy"),
			fmt.Errorf("node busy"),
		},
	}

	o := New(Config{
		SellDelay:      10 * time.Millisecond,
		MaxRetries:     2,
		RetryBackoff:   5 * time.Millisecond,
		ConfirmTimeout: time.Second,
	}, sub, led, nil, nil)
	defer o.Shutdown(context.Background())

	pos := admitted(t, led)
	require.True(t, o.Open(pos))

	waitTerminal(t, pos)

	assert.Equal(t, models.PositionFailed, pos.State())
	assert.Equal(t, models.LegSell, pos.FailedLeg())

	// The buy went through, so the ledger keeps the bought outcome even
	// though the exit leg failed.
	state, err := led.Lookup(context.Background(), testMint)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionBought, state)
}

func TestOrchestrator_DuplicateMintRefused(t *testing.T) {
	led := ledger.NewMemory(time.Minute)
	sub := &fakeSubmitter{}

	o := New(Config{
		SellDelay:      50 * time.Millisecond,
		MaxRetries:     1,
		RetryBackoff:   5 * time.Millisecond,
		ConfirmTimeout: time.Second,
	}, sub, led, nil, nil)
	defer o.Shutdown(context.Background())

	pos := admitted(t, led)
	require.True(t, o.Open(pos))

	dup := models.NewPosition(&models.SwapCandidate{Mint: testMint}, 1, 1)
	assert.False(t, o.Open(dup))
}

func TestOrchestrator_OpenAfterShutdownRefused(t *testing.T) {
	led := ledger.NewMemory(time.Minute)
	o := New(Config{MaxRetries: 1}, &fakeSubmitter{}, led, nil, nil)
	o.Shutdown(context.Background())

	pos := models.NewPosition(&models.SwapCandidate{Mint: testMint}, 1, 1)
	assert.False(t, o.Open(pos))
}

func TestOrchestrator_ShutdownWaitsForSettlement(t *testing.T) {
	led := ledger.NewMemory(time.Minute)
	sub := &fakeSubmitter{}
	journal := &fakeJournal{}

	o := New(Config{
		SellDelay:      30 * time.Millisecond,
		MaxRetries:     2,
		RetryBackoff:   5 * time.Millisecond,
		ConfirmTimeout: time.Second,
	}, sub, led, journal, nil)

	pos := admitted(t, led)
	require.True(t, o.Open(pos))

	o.Shutdown(context.Background())

	assert.True(t, pos.State().Terminal())
	assert.Equal(t, 1, journal.count())
}
