package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mselser95/kalshi-mm/internal/ledger"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS decisions (
	id          TEXT PRIMARY KEY,
	ticker      TEXT     NOT NULL,
	action      TEXT     NOT NULL,
	reason      TEXT     NOT NULL,
	side        TEXT,
	price_cents INTEGER  NOT NULL DEFAULT 0,
	size        INTEGER  NOT NULL DEFAULT 0,
	mode        TEXT,
	fair_cents  INTEGER  NOT NULL DEFAULT 0,
	market_bid  INTEGER  NOT NULL DEFAULT 0,
	market_ask  INTEGER  NOT NULL DEFAULT 0,
	accepted    INTEGER  NOT NULL DEFAULT 1,
	reject_code TEXT,
	decided_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS fills (
	id          TEXT PRIMARY KEY,
	order_id    TEXT     NOT NULL,
	ticker      TEXT     NOT NULL,
	side        TEXT     NOT NULL,
	price_cents INTEGER  NOT NULL,
	size        INTEGER  NOT NULL,
	fee_cents   REAL     NOT NULL,
	maker       INTEGER  NOT NULL,
	filled_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_ticker ON decisions(ticker, decided_at DESC);
CREATE INDEX IF NOT EXISTS idx_fills_ticker ON fills(ticker, filled_at DESC);
`

// SQLiteStorage implements Storage on a local SQLite file (pure Go, no cgo).
type SQLiteStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStorage opens or creates the database at path and applies the schema.
func NewSQLiteStorage(path string, logger *zap.Logger) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, err = db.Exec(sqliteSchema)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	logger.Info("sqlite-storage-opened", zap.String("path", path))

	return &SQLiteStorage{db: db, logger: logger}, nil
}

// StoreDecision inserts a decision record.
func (s *SQLiteStorage) StoreDecision(ctx context.Context, rec DecisionRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO decisions (id, ticker, action, reason, side, price_cents, size, mode,
			fair_cents, market_bid, market_ask, accepted, reject_code, decided_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Ticker, rec.Action, rec.Reason, rec.Side, rec.PriceCents, rec.Size, rec.Mode,
		rec.FairCents, rec.MarketBid, rec.MarketAsk, rec.Accepted, rec.RejectCode, rec.DecidedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

// StoreFill inserts a fill. Replayed fills with a known id are ignored.
func (s *SQLiteStorage) StoreFill(ctx context.Context, fill ledger.Fill) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fills (id, order_id, ticker, side, price_cents, size, fee_cents, maker, filled_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		fill.ID, fill.OrderID, fill.Ticker, string(fill.Side), fill.PriceCents, fill.Size,
		fill.FeeCents, fill.Maker, fill.Time.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert fill: %w", err)
	}
	return nil
}

// FillCount returns the number of fills stored for ticker.
func (s *SQLiteStorage) FillCount(ctx context.Context, ticker string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fills WHERE ticker = ?`, ticker).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count fills: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	s.logger.Info("closing-sqlite-storage")
	return s.db.Close()
}
