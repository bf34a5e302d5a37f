package database

import (
	"fmt"
	"time"

	"maitred/internal/config"
	"maitred/internal/models"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres" // PostgreSQL dialect
	_ "github.com/mattn/go-sqlite3"              // SQLite driver
)

// Open opens the configured database connection
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(cfg.Driver, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.LogMode(cfg.Debug)

	if cfg.Driver == "sqlite3" {
		// sqlite serializes writers anyway; one connection also keeps :memory: databases shared
		db.DB().SetMaxOpenConns(1)
	} else {
		db.DB().SetMaxIdleConns(10)
		db.DB().SetMaxOpenConns(100)
		db.DB().SetConnMaxLifetime(time.Hour)
	}

	return db, nil
}

// OpenInMemory opens and migrates a private sqlite database
func OpenInMemory() (*gorm.DB, error) {
	db, err := Open(config.DatabaseConfig{Driver: "sqlite3", URL: ":memory:"})
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates every table the engine uses
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Tenant{},
		&models.MenuItem{},
		&models.MenuSynonym{},
		&models.OptionGroup{},
		&models.MenuOption{},
		&models.CrossSellRule{},
		&models.Conversation{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderIntent{},
		&models.UpsellEvent{},
	).Error
	if err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// Store implements the persistence needs of every engine component on top of gorm.
// All queries are scoped by tenant id.
type Store struct {
	db *gorm.DB
}

// NewStore wraps an open connection
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying connection
func (s *Store) DB() *gorm.DB {
	return s.db
}
