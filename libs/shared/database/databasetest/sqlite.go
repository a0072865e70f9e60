// Package databasetest provides database fixtures for package tests.
package databasetest

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/formvault/formvault/libs/shared/database"
)

// SQLite opens an in-memory SQLite database and migrates the given models.
// The database lives as long as the test.
func SQLite(t testing.TB, models ...any) *gorm.DB {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.Logger = logger.Discard

	if len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			t.Fatalf("failed to migrate test database: %v", err)
		}
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// Mock returns a GORM handle on the postgres dialector backed by sqlmock.
// Default transactions are skipped so single statements map to single expectations.
func Mock(t testing.TB) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       conn,
		DriverName: "postgres",
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Discard,
	})
	if err != nil {
		t.Fatalf("failed to open gorm on sqlmock: %v", err)
	}

	t.Cleanup(func() { _ = conn.Close() })
	return db, mock
}
