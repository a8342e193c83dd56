package database

import (
	"fmt"
	"time"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"fridgechef/internal/models"
)

// Open connects to the database and configures the connection pool.
func Open(dialect, dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.DB().SetMaxIdleConns(10)
	db.DB().SetMaxOpenConns(100)
	db.DB().SetConnMaxLifetime(time.Hour)

	return db, nil
}

// Migrate creates and updates all tables owned or read by this subsystem.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.IngredientRef{},
		&models.Recipe{},
		&models.StockLot{},
		&models.ConsumptionReceipt{},
	).Error
}
