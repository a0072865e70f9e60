package database

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqlitePrefix = "sqlite://"

// Dialector picks the GORM driver for a DSN. DSNs prefixed with sqlite://
// (or the bare ":memory:") open SQLite; everything else is treated as PostgreSQL.
func Dialector(dsn string) (gorm.Dialector, error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case dsn == "":
		return nil, errors.New("database: dsn must be provided")
	case dsn == ":memory:":
		return sqlite.Open(dsn), nil
	case strings.HasPrefix(dsn, sqlitePrefix):
		return sqlite.Open(strings.TrimPrefix(dsn, sqlitePrefix)), nil
	default:
		return postgres.Open(dsn), nil
	}
}

// Open connects to the database behind dsn and configures the pool.
func Open(dsn string) (*gorm.DB, error) {
	dialector, err := Dialector(dsn)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("database: open: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("database: pool: %w", err)
	}
	if dialector.Name() == "sqlite" {
		// Every SQLite connection to :memory: is a separate database.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return conn, nil
}

// ConnectWithDSN opens the database for the named service or exits the process.
func ConnectWithDSN(service, dsn string) *gorm.DB {
	conn, err := Open(dsn)
	if err != nil {
		slog.Error("failed to connect to database", "service", service, "error", err)
		os.Exit(1)
	}
	return conn
}
