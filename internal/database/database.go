// Package database opens the embedded SQLite store and owns its schema.
// The rest of the engine consumes it through four primitives only: execute a
// statement, query all rows, query the first row, and run in a transaction,
// all of which GORM exposes on *gorm.DB.
package database

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/heywood8/money-tracker-sub005/internal/logger"
	"github.com/heywood8/money-tracker-sub005/internal/models"
)

// allModels is the list of GORM models owned by the ledger core.
var allModels = []interface{}{
	&models.Account{},
	&models.Category{},
	&models.Operation{},
	&models.BalanceSnapshot{},
	&models.Budget{},
}

// Manager handles the embedded database connection
type Manager struct {
	db *gorm.DB
}

// NewManager opens the SQLite database at the given path. SQLite holds a
// single writer; the connection pool is pinned to one connection so the
// engine never races itself.
func NewManager(dbPath string) (*Manager, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return &Manager{db: db}, nil
}

// Migrate brings the schema up to date for all core models.
func (m *Manager) Migrate() error {
	logger.Named("database").Info("Running schema migration")

	if err := m.db.AutoMigrate(allModels...); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	logger.Named("database").Info("Schema migration completed")
	return nil
}

// DB returns the underlying GORM database instance
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// Close closes the underlying connection.
func (m *Manager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
