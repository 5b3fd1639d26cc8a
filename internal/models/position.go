package models

import (
	"fmt"
	"sync"
	"time"
)

// PositionState is the execution lifecycle state of a sniped position.
type PositionState string

const (
	PositionDetected      PositionState = "detected"
	PositionBuySubmitted  PositionState = "buy_submitted"
	PositionBuyConfirmed  PositionState = "buy_confirmed"
	PositionSellScheduled PositionState = "sell_scheduled"
	PositionSellSubmitted PositionState = "sell_submitted"
	PositionClosed        PositionState = "closed"
	PositionFailed        PositionState = "failed"
	PositionAbandoned     PositionState = "abandoned"
)

// Terminal reports whether no further transitions are allowed out of s.
func (s PositionState) Terminal() bool {
	return s == PositionClosed || s == PositionFailed || s == PositionAbandoned
}

// Leg identifies one side of a position's execution.
type Leg string

const (
	LegBuy  Leg = "buy"
	LegSell Leg = "sell"
)

// DecisionState is the ledger-visible outcome for a token identity.
type DecisionState string

const (
	DecisionPending DecisionState = "pending"
	DecisionBought  DecisionState = "bought"
	DecisionSkipped DecisionState = "skipped"
	DecisionFailed  DecisionState = "failed"
)

// Position is one accepted candidate that proceeds to execution. All state
// mutation goes through Transition and the setters below, which hold the
// position's own mutex; positions never share locks, so unrelated mints
// never serialize on each other.
type Position struct {
	ID          string
	Mint        string
	BuyLamports uint64
	TokenAmount uint64
	Slot        uint64
	CreatedAt   time.Time

	mu             sync.Mutex
	state          PositionState
	buySignature   string
	buyConfirmedAt time.Time
	sellAt         time.Time
	sellSignature  string
	failedLeg      Leg
	attempts       int
}

// NewPosition creates a position in state Detected for an admitted candidate.
func NewPosition(cand *SwapCandidate, buyLamports, tokenAmount uint64) *Position {
	now := time.Now()
	return &Position{
		ID:          fmt.Sprintf("%s-%d", cand.Mint, now.UnixNano()),
		Mint:        cand.Mint,
		BuyLamports: buyLamports,
		TokenAmount: tokenAmount,
		Slot:        cand.Slot,
		CreatedAt:   now,
		state:       PositionDetected,
	}
}

func (p *Position) State() PositionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Transition moves the position from one state to the next. It returns false
// without mutating when the current state does not match from, or when the
// position is already terminal. Re-delivered events on a Closed or Failed
// position therefore become no-ops.
func (p *Position) Transition(from, to PositionState) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Terminal() || p.state != from {
		return false
	}
	p.state = to
	return true
}

// Fail marks the position terminal after retry exhaustion on the given leg.
func (p *Position) Fail(leg Leg, attempts int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Terminal() {
		return false
	}
	p.state = PositionFailed
	p.failedLeg = leg
	p.attempts = attempts
	return true
}

// Abandon marks a position that could not even be submitted.
func (p *Position) Abandon() bool {
	return p.Transition(PositionDetected, PositionAbandoned)
}

func (p *Position) SetBuySignature(sig string) {
	p.mu.Lock()
	p.buySignature = sig
	p.mu.Unlock()
}

// ConfirmBuy records the buy confirmation and the scheduled sell time in one
// step: BuySubmitted -> BuyConfirmed -> SellScheduled. The second hop carries
// no wait; the delay is realized by the sell scheduler.
func (p *Position) ConfirmBuy(at time.Time, sellDelay time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != PositionBuySubmitted {
		return false
	}
	p.state = PositionSellScheduled
	p.buyConfirmedAt = at
	p.sellAt = at.Add(sellDelay)
	return true
}

// Close records the sell confirmation: SellSubmitted -> Closed.
func (p *Position) Close(sig string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != PositionSellSubmitted {
		return false
	}
	p.state = PositionClosed
	p.sellSignature = sig
	return true
}

func (p *Position) BuySignature() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buySignature
}

func (p *Position) SellSignature() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sellSignature
}

func (p *Position) BuyConfirmedAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buyConfirmedAt
}

func (p *Position) SellAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sellAt
}

func (p *Position) FailedLeg() Leg {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failedLeg
}

func (p *Position) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}
