package filter

import (
	"github.com/sirupsen/logrus"

	"solana-launch-sniper/internal/models"
)

// Reason explains why a candidate was dropped by the admission filter.
type Reason string

const (
	// ReasonNone accompanies an accepted candidate.
	ReasonNone Reason = ""
	// ReasonPriceBelowMin marks launches whose initial buy is too small.
	ReasonPriceBelowMin Reason = "price_below_min"
	// ReasonPriceAboveMax marks launches whose initial buy is too large.
	ReasonPriceAboveMax Reason = "price_above_max"
	// ReasonTipTooHigh marks launches whose priority fee exceeds the cap.
	ReasonTipTooHigh Reason = "tip_too_high"
)

// Bounds holds the static admission thresholds. Both price bounds are
// inclusive; a candidate sitting exactly on a bound passes.
type Bounds struct {
	MinPriceSOL    float64
	MaxPriceSOL    float64
	MaxTipLamports uint64

	logger *logrus.Logger
}

func New(minPrice, maxPrice float64, maxTip uint64, logger *logrus.Logger) *Bounds {
	if logger == nil {
		logger = logrus.New()
	}
	return &Bounds{
		MinPriceSOL:    minPrice,
		MaxPriceSOL:    maxPrice,
		MaxTipLamports: maxTip,
		logger:         logger,
	}
}

// Check evaluates one candidate against the bounds. It is pure apart from
// debug logging and never mutates the candidate.
func (b *Bounds) Check(cand *models.SwapCandidate) Reason {
	reason := ReasonNone
	switch {
	case cand.PriceSOL < b.MinPriceSOL:
		reason = ReasonPriceBelowMin
	case cand.PriceSOL > b.MaxPriceSOL:
		reason = ReasonPriceAboveMax
	case cand.TipLamports > b.MaxTipLamports:
		reason = ReasonTipTooHigh
	}

	if reason != ReasonNone {
		b.logger.WithFields(logrus.Fields{
			"mint":   cand.Mint,
			"price":  cand.PriceSOL,
			"tip":    cand.TipLamports,
			"reason": reason,
		}).Debug("Candidate filtered")
	}
	return reason
}
