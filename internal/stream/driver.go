package stream

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"solana-launch-sniper/internal/decoder"
	"solana-launch-sniper/internal/engine"
	"solana-launch-sniper/internal/filter"
	"solana-launch-sniper/internal/models"
)

const (
	initialReconnectBackoff = time.Second
	maxReconnectBackoff     = 30 * time.Second
)

// Stats is a snapshot of driver counters.
type Stats struct {
	Received    uint64
	Dropped     uint64
	NotRelevant uint64
	Malformed   uint64
	Filtered    uint64
	Opened      uint64
	Duplicates  uint64
	Skipped     uint64
	Errors      uint64
}

// Driver owns the ingestion loop: it reads raw messages from the feed into a
// bounded queue and fans them out to decode workers. When the queue is full
// the newest message is dropped; a stale launch is worthless, so losing it
// beats stalling the reader.
type Driver struct {
	feed    Feed
	dec     *decoder.Decoder
	bounds  *filter.Bounds
	eng     *engine.Engine
	logger  *logrus.Logger
	workers int
	queue   chan models.RawMessage

	received    atomic.Uint64
	dropped     atomic.Uint64
	notRelevant atomic.Uint64
	malformed   atomic.Uint64
	filtered    atomic.Uint64
	opened      atomic.Uint64
	duplicates  atomic.Uint64
	skipped     atomic.Uint64
	errors      atomic.Uint64
}

type DriverConfig struct {
	Feed      Feed
	Decoder   *decoder.Decoder
	Bounds    *filter.Bounds
	Engine    *engine.Engine
	Workers   int
	QueueSize int
	Logger    *logrus.Logger
}

func NewDriver(cfg DriverConfig) *Driver {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1024
	}
	return &Driver{
		feed:    cfg.Feed,
		dec:     cfg.Decoder,
		bounds:  cfg.Bounds,
		eng:     cfg.Engine,
		logger:  cfg.Logger,
		workers: cfg.Workers,
		queue:   make(chan models.RawMessage, cfg.QueueSize),
	}
}

// Run blocks until ctx is canceled, reconnecting to the feed on errors with
// doubling backoff. Decode workers drain the queue before Run returns.
func (d *Driver) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.worker(ctx)
		}()
	}

	err := d.readLoop(ctx)

	close(d.queue)
	wg.Wait()
	_ = d.feed.Close()
	return err
}

func (d *Driver) readLoop(ctx context.Context) error {
	backoff := initialReconnectBackoff

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := d.feed.Connect(ctx); err != nil {
			d.logger.WithError(err).WithField("backoff", backoff).Warn("Feed connect failed")
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = initialReconnectBackoff

		for {
			payload, err := d.feed.Read(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				d.logger.WithError(err).Warn("Feed read failed, reconnecting")
				break
			}

			d.received.Add(1)
			raw := models.RawMessage{
				Payload:    payload,
				Source:     "ws",
				ReceivedAt: time.Now(),
			}

			select {
			case d.queue <- raw:
			default:
				d.dropped.Add(1)
			}
		}
	}
}

func (d *Driver) worker(ctx context.Context) {
	for raw := range d.queue {
		cand, reason := d.dec.Decode(raw)
		switch reason {
		case decoder.RejectNotRelevant:
			d.notRelevant.Add(1)
			continue
		case decoder.RejectMalformed:
			d.malformed.Add(1)
			d.logger.WithField("source", raw.Source).Debug("Malformed feed message")
			continue
		}

		if r := d.bounds.Check(cand); r != filter.ReasonNone {
			d.filtered.Add(1)
			continue
		}

		out, err := d.eng.Process(ctx, cand)
		if err != nil {
			d.errors.Add(1)
			d.logger.WithError(err).WithField("mint", cand.Mint).Error("Decision failed")
			continue
		}
		switch out {
		case engine.OutcomeOpened:
			d.opened.Add(1)
		case engine.OutcomeDuplicate:
			d.duplicates.Add(1)
		case engine.OutcomeSkipped:
			d.skipped.Add(1)
		}
	}
}

// Stats returns a snapshot of the driver's counters.
func (d *Driver) Stats() Stats {
	return Stats{
		Received:    d.received.Load(),
		Dropped:     d.dropped.Load(),
		NotRelevant: d.notRelevant.Load(),
		Malformed:   d.malformed.Load(),
		Filtered:    d.filtered.Load(),
		Opened:      d.opened.Load(),
		Duplicates:  d.duplicates.Load(),
		Skipped:     d.skipped.Load(),
		Errors:      d.errors.Load(),
	}
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxReconnectBackoff {
		d = maxReconnectBackoff
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
