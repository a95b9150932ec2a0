// Package database opens the SQL pool daily roots are stored in and runs repository
// calls inside transactions.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

const pingTimeout = 10 * time.Second

// Config holds database pool settings.
type Config struct {
	Driver             string
	ConnectionString   string
	MaxOpenConnections int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// Connect opens the pool and pings it. The pool is closed again if the ping fails.
func Connect(cfg Config) (*sql.DB, error) {
	dsn, err := normalizeDSN(cfg.Driver, cfg.ConnectionString)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// normalizeDSN forces parseTime and UTC on MySQL DSNs so computed_at scans into a
// UTC time.Time whatever the operator wrote. Other drivers are left untouched.
func normalizeDSN(driver, dsn string) (string, error) {
	if driver != "mysql" {
		return dsn, nil
	}

	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid mysql connection string: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}
