package pump

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"solana-launch-sniper/internal/models"
	"solana-launch-sniper/internal/trader"
	"solana-launch-sniper/internal/wallet"
)

const defaultConfirmTimeout = 30 * time.Second

// Submitter builds, signs, and sends pump trades for the orchestrator. A
// shared rate limiter keeps the RPC node from throttling bursts of launches.
type Submitter struct {
	wallet    *wallet.Wallet
	blockhash *wallet.BlockhashCache
	limiter   *rate.Limiter
	logger    *logrus.Logger
}

func NewSubmitter(w *wallet.Wallet, blockhash *wallet.BlockhashCache, limiter *rate.Limiter, logger *logrus.Logger) *Submitter {
	if logger == nil {
		logger = logrus.New()
	}
	return &Submitter{
		wallet:    w,
		blockhash: blockhash,
		limiter:   limiter,
		logger:    logger,
	}
}

func (s *Submitter) SubmitBuy(ctx context.Context, pos *models.Position) (string, error) {
	mint, err := solana.PublicKeyFromBase58(pos.Mint)
	if err != nil {
		return "", fmt.Errorf("mint %q: %v: %w", pos.Mint, err, trader.ErrPermanent)
	}

	ixs, err := BuildBuy(s.wallet.PublicKey(), mint, pos.TokenAmount, pos.BuyLamports)
	if err != nil {
		return "", fmt.Errorf("build buy: %v: %w", err, trader.ErrPermanent)
	}

	sig, err := s.send(ctx, ixs)
	if err != nil {
		return "", fmt.Errorf("submit buy: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"mint":      pos.Mint,
		"signature": sig,
		"lamports":  pos.BuyLamports,
		"tokens":    pos.TokenAmount,
	}).Info("Buy submitted")
	return sig, nil
}

func (s *Submitter) SubmitSell(ctx context.Context, pos *models.Position) (string, error) {
	mint, err := solana.PublicKeyFromBase58(pos.Mint)
	if err != nil {
		return "", fmt.Errorf("mint %q: %v: %w", pos.Mint, err, trader.ErrPermanent)
	}

	// Exit the whole position; the floor stays at zero because getting out
	// beats getting a price.
	ixs, err := BuildSell(s.wallet.PublicKey(), mint, pos.TokenAmount, 0)
	if err != nil {
		return "", fmt.Errorf("build sell: %v: %w", err, trader.ErrPermanent)
	}

	sig, err := s.send(ctx, ixs)
	if err != nil {
		return "", fmt.Errorf("submit sell: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"mint":      pos.Mint,
		"signature": sig,
		"tokens":    pos.TokenAmount,
	}).Info("Sell submitted")
	return sig, nil
}

// Confirm waits for the signature to reach confirmed commitment, bounded by
// the context deadline.
func (s *Submitter) Confirm(ctx context.Context, signature string) error {
	timeout := defaultConfirmTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	return s.wallet.ConfirmTransaction(ctx, signature, "confirmed", timeout)
}

func (s *Submitter) send(ctx context.Context, ixs []solana.Instruction) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	hash, err := s.blockhash.Get(ctx)
	if err != nil {
		return "", err
	}

	tx, err := s.wallet.BuildTransaction(ixs, hash)
	if err != nil {
		return "", err
	}
	if err := s.wallet.SignTx(tx); err != nil {
		return "", err
	}
	return s.wallet.SendTx(ctx, tx)
}
