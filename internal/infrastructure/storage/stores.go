package storage

import (
	"fmt"
	"io"

	"github.com/vitos/signal_engine/internal/config"
	"github.com/vitos/signal_engine/internal/domain"
	"go.uber.org/zap"
)

// Namespaces of persisted signal state.
const (
	NamespaceSignal   = "signal"
	NamespaceSchedule = "schedule"
)

// Stores bundles the two signal namespaces and, for SQL drivers, the trade journal.
type Stores struct {
	Active   domain.SignalStore
	Schedule domain.SignalStore
	Trades   domain.TradeRepository
	closer   io.Closer
}

func (s *Stores) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Open builds the stores selected by cfg.Driver.
func Open(cfg config.Storage, logger *zap.Logger) (*Stores, error) {
	switch cfg.Driver {
	case "", "file":
		return &Stores{
			Active:   NewFileStore(cfg.Path, NamespaceSignal, logger),
			Schedule: NewFileStore(cfg.Path, NamespaceSchedule, logger),
		}, nil
	case "memory":
		return &Stores{Active: NewMemoryStore(), Schedule: NewMemoryStore()}, nil
	case "sqlite":
		return openSQL("sqlite3", cfg.Path)
	case "postgres":
		return openSQL("postgres", cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func openSQL(driver, dsn string) (*Stores, error) {
	db, err := OpenDB(driver, dsn)
	if err != nil {
		return nil, err
	}
	return &Stores{
		Active:   NewSQLStore(db, NamespaceSignal),
		Schedule: NewSQLStore(db, NamespaceSchedule),
		Trades:   NewTradeStore(db),
		closer:   db,
	}, nil
}
