package engine

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-launch-sniper/internal/ledger"
	"solana-launch-sniper/internal/models"
)

const testMint = "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R"

type fakeOpener struct {
	mu     sync.Mutex
	opened []*models.Position
	refuse bool
}

func (f *fakeOpener) Open(pos *models.Position) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refuse {
		return false
	}
	f.opened = append(f.opened, pos)
	return true
}

func (f *fakeOpener) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.opened)
}

func candidate(unitPrice float64) *models.SwapCandidate {
	return &models.SwapCandidate{
		Mint:       testMint,
		Symbol:     "TEST",
		UnitPrice:  unitPrice,
		Slot:       7,
		ObservedAt: time.Now(),
	}
}

func TestProcess_OpensPosition(t *testing.T) {
	led := ledger.NewMemory(time.Minute)
	opener := &fakeOpener{}
	e := New(led, opener, 100_000_000, nil) // 0.1 SOL

	out, err := e.Process(context.Background(), candidate(30.0/1_073_000_000.0))
	require.NoError(t, err)
	assert.Equal(t, OutcomeOpened, out)
	require.Equal(t, 1, opener.count())

	pos := opener.opened[0]
	assert.Equal(t, testMint, pos.Mint)
	assert.Equal(t, uint64(100_000_000), pos.BuyLamports)
	assert.Equal(t, SizeBuy(100_000_000, 30.0/1_073_000_000.0), pos.TokenAmount)
	assert.Equal(t, models.PositionDetected, pos.State())
}

func TestProcess_DuplicateMint(t *testing.T) {
	led := ledger.NewMemory(time.Minute)
	opener := &fakeOpener{}
	e := New(led, opener, 100_000_000, nil)

	out, err := e.Process(context.Background(), candidate(0))
	require.NoError(t, err)
	assert.Equal(t, OutcomeOpened, out)

	out, err = e.Process(context.Background(), candidate(0))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, out)
	assert.Equal(t, 1, opener.count())
}

func TestProcess_OpenerRefusalMarksSkipped(t *testing.T) {
	led := ledger.NewMemory(time.Minute)
	opener := &fakeOpener{refuse: true}
	e := New(led, opener, 100_000_000, nil)

	out, err := e.Process(context.Background(), candidate(0))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, out)

	state, err := led.Lookup(context.Background(), testMint)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionSkipped, state)
}

func TestProcess_ZeroBudgetSkips(t *testing.T) {
	led := ledger.NewMemory(time.Minute)
	opener := &fakeOpener{}
	e := New(led, opener, 0, nil)

	out, err := e.Process(context.Background(), candidate(0))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, out)
	assert.Equal(t, 0, opener.count())
}

func TestSizeBuy(t *testing.T) {
	// 0.1 SOL at the launch curve price: 0.1 / (30/1.073e9) SOL-per-token,
	// haircut 0.85, scaled to base units and floored.
	unit := 30.0 / 1_073_000_000.0
	want := uint64(math.Floor(0.1 / unit * 0.85 * 1_000_000))
	assert.Equal(t, want, SizeBuy(100_000_000, unit))

	// Unknown price falls back to the typical launch price.
	fallback := uint64(math.Floor(0.1 / 0.000000033 * 0.85 * 1_000_000))
	assert.Equal(t, fallback, SizeBuy(100_000_000, 0))

	assert.Zero(t, SizeBuy(0, unit))
}
