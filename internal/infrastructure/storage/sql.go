package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/vitos/signal_engine/internal/domain"
)

// OpenDB connects to sqlite3 or postgres and creates the schema.
func OpenDB(driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", driver, err)
	}
	if driver == "sqlite3" {
		// A single connection serializes writers and keeps :memory: databases shared.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", driver, err)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func initSchema(db *sqlx.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS signal_state (
			namespace TEXT NOT NULL,
			strategy TEXT NOT NULL,
			symbol TEXT NOT NULL,
			payload TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (namespace, strategy, symbol)
		);`,
		`CREATE TABLE IF NOT EXISTS trades (
			signal_id TEXT NOT NULL,
			strategy TEXT NOT NULL,
			exchange TEXT NOT NULL,
			symbol TEXT NOT NULL,
			position TEXT NOT NULL,
			price_open REAL NOT NULL,
			price_close REAL NOT NULL,
			pnl_pct REAL NOT NULL,
			reason TEXT NOT NULL,
			backtest BOOLEAN NOT NULL DEFAULT FALSE,
			opened_at TIMESTAMP NOT NULL,
			closed_at TIMESTAMP NOT NULL,
			PRIMARY KEY (signal_id, backtest)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_closed_at ON trades(closed_at);`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

// SQLStore keeps one namespace of signal state in the signal_state table.
// Every write runs in its own transaction.
type SQLStore struct {
	db        *sqlx.DB
	namespace string
}

func NewSQLStore(db *sqlx.DB, namespace string) *SQLStore {
	return &SQLStore{db: db, namespace: namespace}
}

func (s *SQLStore) WaitForInit(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) HasValue(ctx context.Context, key domain.StoreKey) (bool, error) {
	var n int
	query := s.db.Rebind(`SELECT COUNT(*) FROM signal_state WHERE namespace = ? AND strategy = ? AND symbol = ?`)
	if err := s.db.GetContext(ctx, &n, query, s.namespace, key.StrategyName, key.Symbol); err != nil {
		return false, fmt.Errorf("failed to check %s: %w", key, err)
	}
	return n > 0, nil
}

func (s *SQLStore) ReadValue(ctx context.Context, key domain.StoreKey) (*domain.Signal, error) {
	var payload string
	query := s.db.Rebind(`SELECT payload FROM signal_state WHERE namespace = ? AND strategy = ? AND symbol = ?`)
	err := s.db.GetContext(ctx, &payload, query, s.namespace, key.StrategyName, key.Symbol)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return decodeSignal([]byte(payload))
}

func (s *SQLStore) WriteValue(ctx context.Context, key domain.StoreKey, value *domain.Signal) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	if value == nil {
		query := s.db.Rebind(`DELETE FROM signal_state WHERE namespace = ? AND strategy = ? AND symbol = ?`)
		if _, err := tx.ExecContext(ctx, query, s.namespace, key.StrategyName, key.Symbol); err != nil {
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
		return tx.Commit()
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	query := s.db.Rebind(`INSERT INTO signal_state (namespace, strategy, symbol, payload, updated_at)
			  VALUES (?, ?, ?, ?, ?)
			  ON CONFLICT(namespace, strategy, symbol) DO UPDATE SET
			  payload=excluded.payload,
			  updated_at=excluded.updated_at`)
	if _, err := tx.ExecContext(ctx, query, s.namespace, key.StrategyName, key.Symbol, string(payload), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return tx.Commit()
}

// Keys lists the stored keys of the namespace.
func (s *SQLStore) Keys(ctx context.Context) ([]domain.StoreKey, error) {
	var rows []struct {
		Strategy string `db:"strategy"`
		Symbol   string `db:"symbol"`
	}
	query := s.db.Rebind(`SELECT strategy, symbol FROM signal_state WHERE namespace = ? ORDER BY strategy, symbol`)
	if err := s.db.SelectContext(ctx, &rows, query, s.namespace); err != nil {
		return nil, err
	}
	keys := make([]domain.StoreKey, 0, len(rows))
	for _, r := range rows {
		keys = append(keys, domain.StoreKey{StrategyName: r.Strategy, Symbol: r.Symbol})
	}
	return keys, nil
}

// TradeStore is the journal of closed trades.
type TradeStore struct {
	db *sqlx.DB
}

func NewTradeStore(db *sqlx.DB) *TradeStore {
	return &TradeStore{db: db}
}

func (s *TradeStore) SaveTrade(ctx context.Context, trade *domain.Trade) error {
	query := s.db.Rebind(`INSERT INTO trades (signal_id, strategy, exchange, symbol, position, price_open, price_close, pnl_pct, reason, backtest, opened_at, closed_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(signal_id, backtest) DO NOTHING`)
	_, err := s.db.ExecContext(ctx, query,
		trade.SignalID, trade.Strategy, trade.Exchange, trade.Symbol, trade.Position,
		trade.PriceOpen, trade.PriceClose, trade.PnLPct, trade.Reason, trade.Backtest,
		trade.OpenedAt.UTC(), trade.ClosedAt.UTC())
	return err
}

func (s *TradeStore) ListTrades(ctx context.Context, limit int) ([]*domain.Trade, error) {
	query := s.db.Rebind(`SELECT signal_id, strategy, exchange, symbol, position, price_open, price_close, pnl_pct, reason, backtest, opened_at, closed_at
			  FROM trades ORDER BY closed_at DESC LIMIT ?`)
	var trades []*domain.Trade
	if err := s.db.SelectContext(ctx, &trades, query, limit); err != nil {
		return nil, err
	}
	return trades, nil
}
