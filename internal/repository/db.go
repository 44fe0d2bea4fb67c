package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/timmy/llavacap/internal/config"
	"github.com/timmy/llavacap/internal/domain"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// InitDB opens the run journal and migrates its schema.
// Parameters:
//   - cfg: journal configuration with driver and DSN.
//   - verbose: log every SQL statement when true.
//
// Returns:
//   - *gorm.DB: initialized database handle.
//   - error: non-nil if connection or migration fails.
func InitDB(cfg config.JournalConfig, verbose bool) (*gorm.DB, error) {
	level := gormlogger.Silent
	if verbose {
		level = gormlogger.Info
	}
	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
	}

	var db *gorm.DB
	var err error

	switch cfg.Driver {
	case "postgres":
		db, err = initPostgres(cfg.DSN, gormConfig)
	case "sqlite", "":
		db, err = initSQLite(cfg.DSN, gormConfig)
	default:
		return nil, fmt.Errorf("unknown journal driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&domain.CaptionRun{}); err != nil {
		return nil, fmt.Errorf("failed to migrate journal: %w", err)
	}
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB instance: %w", err)
	}
	return sqlDB.Close()
}

func initPostgres(dsn string, gormConfig *gorm.Config) (*gorm.DB, error) {
	// Simple protocol keeps transaction poolers working.
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	return db, nil
}

func initSQLite(path string, gormConfig *gorm.Config) (*gorm.DB, error) {
	if path != "" && path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite: %w", err)
	}
	db.Exec("PRAGMA journal_mode=WAL")
	return db, nil
}
