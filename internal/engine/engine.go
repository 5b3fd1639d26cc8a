package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"solana-launch-sniper/internal/ledger"
	"solana-launch-sniper/internal/models"
)

const (
	// sizingHaircut shrinks the target below the quoted curve price so the
	// buy survives other snipers landing first.
	sizingHaircut = 0.85

	// fallbackUnitPrice is the typical launch price in SOL per token, used
	// when the curve book has no quote for the mint.
	fallbackUnitPrice = 0.000000033

	tokenPrecision = 1_000_000
	lamportsPerSOL = 1_000_000_000
)

// Outcome is the decision reached for one candidate.
type Outcome string

const (
	OutcomeOpened    Outcome = "opened"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeSkipped   Outcome = "skipped"
)

// Opener takes ownership of positions the engine decides to trade.
type Opener interface {
	Open(pos *models.Position) bool
}

// Engine turns admitted candidates into positions. The ledger guarantees one
// decision per mint; the engine sizes the buy and hands the position to the
// opener.
type Engine struct {
	led         ledger.Ledger
	opener      Opener
	buyLamports uint64
	logger      *logrus.Logger
}

func New(led ledger.Ledger, opener Opener, buyLamports uint64, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{
		led:         led,
		opener:      opener,
		buyLamports: buyLamports,
		logger:      logger,
	}
}

// Process decides one filtered candidate. Replays and concurrent duplicates
// of a mint resolve to OutcomeDuplicate through the ledger.
func (e *Engine) Process(ctx context.Context, cand *models.SwapCandidate) (Outcome, error) {
	res, err := e.led.TryAdmit(ctx, cand.Mint)
	if err != nil {
		return "", fmt.Errorf("admit %s: %w", cand.Mint, err)
	}
	if !res.Admitted {
		e.logger.WithFields(logrus.Fields{
			"mint":  cand.Mint,
			"state": res.State,
		}).Debug("Mint already decided")
		return OutcomeDuplicate, nil
	}

	tokens := SizeBuy(e.buyLamports, cand.UnitPrice)
	if tokens == 0 {
		e.markSkipped(ctx, cand.Mint)
		return OutcomeSkipped, nil
	}

	pos := models.NewPosition(cand, e.buyLamports, tokens)
	if !e.opener.Open(pos) {
		e.markSkipped(ctx, cand.Mint)
		return OutcomeSkipped, nil
	}

	e.logger.WithFields(logrus.Fields{
		"mint":     cand.Mint,
		"symbol":   cand.Symbol,
		"lamports": e.buyLamports,
		"tokens":   tokens,
		"price":    cand.UnitPrice,
	}).Info("Position opened")
	return OutcomeOpened, nil
}

func (e *Engine) markSkipped(ctx context.Context, mint string) {
	if err := e.led.MarkOutcome(ctx, mint, models.DecisionSkipped); err != nil {
		e.logger.WithError(err).WithField("mint", mint).Warn("Ledger skip update failed")
	}
}

// SizeBuy converts a lamport budget into a token target at the given unit
// price, haircut applied, floored to base units. A missing price falls back
// to the typical launch price.
func SizeBuy(buyLamports uint64, unitPrice float64) uint64 {
	if unitPrice <= 0 {
		unitPrice = fallbackUnitPrice
	}
	buySOL := float64(buyLamports) / lamportsPerSOL
	tokens := buySOL / unitPrice * sizingHaircut * tokenPrecision
	if tokens <= 0 || math.IsInf(tokens, 0) || math.IsNaN(tokens) {
		return 0
	}
	return uint64(math.Floor(tokens))
}
