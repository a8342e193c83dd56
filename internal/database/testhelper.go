package database

import (
	"fmt"

	"github.com/jinzhu/gorm"
)

// NewInMemory creates an in-memory database for testing purposes.
// Migrations run; the catalog is left empty for tests to seed.
func NewInMemory() (*gorm.DB, error) {
	db, err := gorm.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory database: %w", err)
	}

	db.DB().SetMaxOpenConns(1)
	db.DB().SetMaxIdleConns(1)

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating in-memory database: %w", err)
	}
	return db, nil
}
