package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/mselser95/kalshi-mm/internal/ledger"
	"go.uber.org/zap"
)

// PostgresStorage implements Storage using PostgreSQL.
// The decisions and fills tables are created on connect when Migrate is set.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Migrate  bool
	Logger   *zap.Logger
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS decisions (
	id          UUID PRIMARY KEY,
	ticker      TEXT        NOT NULL,
	action      TEXT        NOT NULL,
	reason      TEXT        NOT NULL,
	side        TEXT,
	price_cents INTEGER     NOT NULL,
	size        INTEGER     NOT NULL,
	mode        TEXT,
	fair_cents  INTEGER     NOT NULL,
	market_bid  INTEGER     NOT NULL,
	market_ask  INTEGER     NOT NULL,
	accepted    BOOLEAN     NOT NULL,
	reject_code TEXT,
	decided_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS fills (
	id          TEXT PRIMARY KEY,
	order_id    TEXT        NOT NULL,
	ticker      TEXT        NOT NULL,
	side        TEXT        NOT NULL,
	price_cents INTEGER     NOT NULL,
	size        INTEGER     NOT NULL,
	fee_cents   NUMERIC     NOT NULL,
	maker       BOOLEAN     NOT NULL,
	filled_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_ticker ON decisions(ticker, decided_at DESC);
CREATE INDEX IF NOT EXISTS idx_fills_ticker ON fills(ticker, filled_at DESC);
`

// NewPostgresStorage creates a new PostgreSQL storage.
func NewPostgresStorage(cfg *PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if cfg.Migrate {
		_, err = db.Exec(postgresSchema)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	cfg.Logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
		zap.Bool("migrated", cfg.Migrate))

	return &PostgresStorage{
		db:     db,
		logger: cfg.Logger,
	}, nil
}

// StoreDecision inserts a decision record.
func (p *PostgresStorage) StoreDecision(ctx context.Context, rec DecisionRecord) error {
	query := `
		INSERT INTO decisions (
			id, ticker, action, reason, side, price_cents, size, mode,
			fair_cents, market_bid, market_ask, accepted, reject_code, decided_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
	`

	_, err := p.db.ExecContext(ctx, query,
		rec.ID,
		rec.Ticker,
		rec.Action,
		rec.Reason,
		rec.Side,
		rec.PriceCents,
		rec.Size,
		rec.Mode,
		rec.FairCents,
		rec.MarketBid,
		rec.MarketAsk,
		rec.Accepted,
		rec.RejectCode,
		rec.DecidedAt,
	)
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}

	p.logger.Debug("decision-stored",
		zap.String("decision-id", rec.ID),
		zap.String("ticker", rec.Ticker),
		zap.Bool("accepted", rec.Accepted))

	return nil
}

// StoreFill inserts a fill. Replayed fills with a known id are ignored.
func (p *PostgresStorage) StoreFill(ctx context.Context, fill ledger.Fill) error {
	query := `
		INSERT INTO fills (
			id, order_id, ticker, side, price_cents, size, fee_cents, maker, filled_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := p.db.ExecContext(ctx, query,
		fill.ID,
		fill.OrderID,
		fill.Ticker,
		string(fill.Side),
		fill.PriceCents,
		fill.Size,
		fill.FeeCents,
		fill.Maker,
		fill.Time,
	)
	if err != nil {
		return fmt.Errorf("insert fill: %w", err)
	}

	p.logger.Debug("fill-stored",
		zap.String("fill-id", fill.ID),
		zap.String("ticker", fill.Ticker))

	return nil
}

// Close closes the database connection.
func (p *PostgresStorage) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}
