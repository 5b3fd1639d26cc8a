package journal

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sirupsen/logrus"

	"solana-launch-sniper/internal/models"
)

// ClickHouseJournal persists settled positions for offline analysis. Writes
// happen off the trading path, one row per terminal position.
type ClickHouseJournal struct {
	conn   driver.Conn
	logger *logrus.Logger
}

type Config struct {
	Addr     string
	Database string
	Username string
	Password string
}

func New(cfg Config, logger *logrus.Logger) (*ClickHouseJournal, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.Database == "" {
		cfg.Database = "sniper"
	}
	if cfg.Username == "" {
		cfg.Username = "default"
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	logger.WithField("addr", cfg.Addr).Info("Journal connected")

	return &ClickHouseJournal{conn: conn, logger: logger}, nil
}

// EnsureSchema creates the positions table when it does not exist.
func (j *ClickHouseJournal) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS positions (
			id String,
			mint String,
			state LowCardinality(String),
			buy_lamports UInt64,
			token_amount UInt64,
			slot UInt64,
			buy_signature String,
			sell_signature String,
			failed_leg LowCardinality(String),
			attempts UInt8,
			created_at DateTime64(3),
			buy_confirmed_at DateTime64(3)
		) ENGINE = MergeTree()
		ORDER BY (created_at, mint)
	`
	if err := j.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create positions table: %w", err)
	}
	return nil
}

// Record writes one settled position.
func (j *ClickHouseJournal) Record(ctx context.Context, pos *models.Position) error {
	query := `
		INSERT INTO positions (
			id, mint, state, buy_lamports, token_amount, slot,
			buy_signature, sell_signature, failed_leg, attempts,
			created_at, buy_confirmed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := j.conn.Exec(ctx, query,
		pos.ID,
		pos.Mint,
		string(pos.State()),
		pos.BuyLamports,
		pos.TokenAmount,
		pos.Slot,
		pos.BuySignature(),
		pos.SellSignature(),
		string(pos.FailedLeg()),
		uint8(pos.Attempts()),
		pos.CreatedAt,
		pos.BuyConfirmedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert position: %w", err)
	}

	return nil
}

func (j *ClickHouseJournal) Close() error {
	return j.conn.Close()
}
