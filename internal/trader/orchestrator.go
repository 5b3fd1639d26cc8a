package trader

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"solana-launch-sniper/internal/ledger"
	"solana-launch-sniper/internal/models"
)

// ErrPermanent wraps submit failures that no retry can fix, such as an
// unparseable mint address. The orchestrator abandons instead of retrying.
var ErrPermanent = errors.New("permanent submit failure")

// Submitter executes and confirms transactions for a position. Implementations
// must wrap unretryable failures with ErrPermanent.
type Submitter interface {
	SubmitBuy(ctx context.Context, pos *models.Position) (string, error)
	SubmitSell(ctx context.Context, pos *models.Position) (string, error)
	Confirm(ctx context.Context, signature string) error
}

// Journal receives every position that reaches a terminal state.
type Journal interface {
	Record(ctx context.Context, pos *models.Position) error
}

type Config struct {
	SellDelay      time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
	ConfirmTimeout time.Duration
}

// Orchestrator drives positions through buy, delayed sell, and settlement.
// Each position runs on its own goroutine against the orchestrator's
// background lifecycle, so a feed disconnect never cancels an in-flight
// trade.
type Orchestrator struct {
	cfg     Config
	sub     Submitter
	ledger  ledger.Ledger
	journal Journal
	logger  *logrus.Logger
	sched   *sellScheduler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	open   map[string]*models.Position
	closed bool
}

func New(cfg Config, sub Submitter, led ledger.Ledger, journal Journal, logger *logrus.Logger) *Orchestrator {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 200 * time.Millisecond
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		cfg:     cfg,
		sub:     sub,
		ledger:  led,
		journal: journal,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		open:    make(map[string]*models.Position),
	}
	o.sched = newSellScheduler(func(pos *models.Position) {
		go o.runSell(pos)
	})
	return o
}

// Open takes ownership of a freshly created position and starts its buy leg.
// A position for a mint already in flight, or an Open after Shutdown, is
// refused.
func (o *Orchestrator) Open(pos *models.Position) bool {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false
	}
	if _, ok := o.open[pos.Mint]; ok {
		o.mu.Unlock()
		return false
	}
	o.open[pos.Mint] = pos
	o.mu.Unlock()

	o.wg.Add(1)
	go o.runBuy(pos)
	return true
}

// OpenPositions reports how many positions are currently in flight.
func (o *Orchestrator) OpenPositions() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.open)
}

// Shutdown stops accepting positions and waits for in-flight ones to settle.
// When ctx expires first, remaining positions are cut short and marked
// failed.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		o.cancel()
		o.sched.Flush()
		<-done
	}

	o.sched.Stop()
	o.cancel()
}

func (o *Orchestrator) runBuy(pos *models.Position) {
	log := o.logger.WithFields(logrus.Fields{"mint": pos.Mint, "position": pos.ID})

	backoff := o.cfg.RetryBackoff
	for attempt := 1; attempt <= o.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			if !o.sleep(backoff) {
				pos.Fail(models.LegBuy, attempt-1)
				o.settle(pos, models.DecisionFailed)
				return
			}
			backoff *= 2
		}

		sig, err := o.sub.SubmitBuy(o.ctx, pos)
		if err != nil {
			if errors.Is(err, ErrPermanent) {
				log.WithError(err).Warn("Buy cannot be submitted, abandoning")
				if !pos.Abandon() {
					pos.Fail(models.LegBuy, attempt)
				}
				o.settle(pos, models.DecisionFailed)
				return
			}
			log.WithError(err).WithField("attempt", attempt).Warn("Buy submit failed")
			continue
		}

		pos.Transition(models.PositionDetected, models.PositionBuySubmitted)
		pos.SetBuySignature(sig)

		cctx, cancel := context.WithTimeout(o.ctx, o.cfg.ConfirmTimeout)
		err = o.sub.Confirm(cctx, sig)
		cancel()
		if err != nil {
			// An unconfirmed buy spends an attempt like a failed submit.
			log.WithError(err).WithField("attempt", attempt).Warn("Buy confirmation failed")
			continue
		}

		if !pos.ConfirmBuy(time.Now(), o.cfg.SellDelay) {
			o.settle(pos, "")
			return
		}
		o.markOutcome(pos.Mint, models.DecisionBought)

		log.WithFields(logrus.Fields{
			"signature": sig,
			"sell_at":   pos.SellAt(),
		}).Info("Buy confirmed, sell scheduled")

		o.sched.Schedule(pos.SellAt(), pos)
		return
	}

	log.WithField("attempts", o.cfg.MaxRetries).Error("Buy retries exhausted")
	pos.Fail(models.LegBuy, o.cfg.MaxRetries)
	o.settle(pos, models.DecisionFailed)
}

func (o *Orchestrator) runSell(pos *models.Position) {
	log := o.logger.WithFields(logrus.Fields{"mint": pos.Mint, "position": pos.ID})

	backoff := o.cfg.RetryBackoff
	for attempt := 1; attempt <= o.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			if !o.sleep(backoff) {
				pos.Fail(models.LegSell, attempt-1)
				o.settle(pos, "")
				return
			}
			backoff *= 2
		}

		sig, err := o.sub.SubmitSell(o.ctx, pos)
		if err != nil {
			if errors.Is(err, ErrPermanent) {
				log.WithError(err).Error("Sell cannot be submitted")
				pos.Fail(models.LegSell, attempt)
				o.settle(pos, "")
				return
			}
			log.WithError(err).WithField("attempt", attempt).Warn("Sell submit failed")
			continue
		}

		pos.Transition(models.PositionSellScheduled, models.PositionSellSubmitted)

		cctx, cancel := context.WithTimeout(o.ctx, o.cfg.ConfirmTimeout)
		err = o.sub.Confirm(cctx, sig)
		cancel()
		if err != nil {
			log.WithError(err).WithField("attempt", attempt).Warn("Sell confirmation failed")
			continue
		}

		pos.Close(sig)
		log.WithField("signature", sig).Info("Position closed")
		o.settle(pos, "")
		return
	}

	// The tokens were bought and could not be sold; the ledger keeps the
	// bought outcome, the journal records the failed sell for operators.
	log.WithField("attempts", o.cfg.MaxRetries).Error("Sell retries exhausted, position stuck")
	pos.Fail(models.LegSell, o.cfg.MaxRetries)
	o.settle(pos, "")
}

// settle records the terminal position and releases its slot. outcome may be
// empty when the ledger entry is already final.
func (o *Orchestrator) settle(pos *models.Position, outcome models.DecisionState) {
	if outcome != "" {
		o.markOutcome(pos.Mint, outcome)
	}

	if o.journal != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := o.journal.Record(ctx, pos); err != nil {
			o.logger.WithError(err).WithField("mint", pos.Mint).Warn("Journal write failed")
		}
		cancel()
	}

	o.mu.Lock()
	delete(o.open, pos.Mint)
	o.mu.Unlock()
	o.wg.Done()
}

func (o *Orchestrator) markOutcome(mint string, state models.DecisionState) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.ledger.MarkOutcome(ctx, mint, state); err != nil && !errors.Is(err, ledger.ErrUnknownMint) {
		o.logger.WithError(err).WithField("mint", mint).Warn("Ledger outcome update failed")
	}
}

// sleep waits out a retry backoff; false means the orchestrator is shutting
// down.
func (o *Orchestrator) sleep(d time.Duration) bool {
	select {
	case <-o.ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
