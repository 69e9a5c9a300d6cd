package database

import (
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/comanda/internal/models"
)

// Connect opens the PostgreSQL store, creating the database on first run,
// and migrates the schema.
func Connect(dsn string, verbose bool) (*gorm.DB, error) {
	if err := ensureDatabase(dsn); err != nil {
		return nil, fmt.Errorf("ensure database: %w", err)
	}

	level := logger.Warn
	if verbose {
		level = logger.Info
	}

	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(level),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := Migrate(conn); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[Database] connected and migrated")
	return conn, nil
}

// Migrate creates or updates every table the pipeline uses.
func Migrate(conn *gorm.DB) error {
	migrations := []interface{}{
		&models.Product{},
		&models.DeliveryFee{},
		&models.Coupon{},
		&models.Customer{},
		&models.CustomerAddress{},
		&models.Table{},
		&models.Tab{},
		&models.OrderCounter{},
		&models.Order{},
		&models.OrderItem{},
	}

	for _, migration := range migrations {
		if err := conn.AutoMigrate(migration); err != nil {
			return err
		}
	}

	// Occupancy counts and terminal boards only ever scan open orders.
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_orders_open_table ON orders (table_id) WHERE status IN ('pending','preparing','ready')`,
		`CREATE INDEX IF NOT EXISTS idx_orders_open_tab ON orders (tab_id) WHERE status IN ('pending','preparing','ready')`,
	}
	for _, stmt := range indexes {
		if err := conn.Exec(stmt).Error; err != nil {
			return err
		}
	}

	return nil
}

func ensureDatabase(dsn string) error {
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return nil
	}

	parsed, err := url.Parse(dsn)
	if err != nil {
		return err
	}

	dbName := strings.TrimPrefix(parsed.Path, "/")
	if dbName == "" {
		return nil
	}

	parsed.Path = "/postgres"
	masterDSN := parsed.String()

	sqlDB, err := sql.Open("postgres", masterDSN)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return err
	}

	var exists bool
	if err := sqlDB.QueryRow("SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", dbName).Scan(&exists); err != nil {
		return err
	}

	if exists {
		return nil
	}

	log.Printf("[Database] creating database %s", dbName)
	_, err = sqlDB.Exec("CREATE DATABASE " + pq.QuoteIdentifier(dbName))
	return err
}
