package repository

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

// Manager owns the database handle and the repositories built on it
type Manager struct {
	db       *bun.DB
	activity *ActivityRepository
}

// Open connects to a SQLite database and prepares the schema
func Open(ctx context.Context, dsn string, debug bool) (*Manager, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}
	// shared cache in-memory databases vanish with their last connection
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	m := NewManager(db)
	if err := m.activity.CreateSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return m, nil
}

// NewManager wraps an existing connection
func NewManager(db *bun.DB) *Manager {
	return &Manager{
		db:       db,
		activity: NewActivityRepository(db),
	}
}

func (m *Manager) Validate() error {
	if m.db == nil {
		return errors.New("repository db should be initialized")
	}

	if m.activity == nil {
		return errors.New("repository activity should be initialized")
	}

	return nil
}

func (m *Manager) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m *Manager) Activity() *ActivityRepository {
	return m.activity
}

func (m *Manager) Close() error {
	return m.db.Close()
}
