package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"profile-service/config"

	_ "github.com/lib/pq" // Postgres driver
)

//go:embed schema.sql
var schema string

var openDB = sql.Open

// Connect opens and pings the profiles database. The caller owns the handle
// and closes it on shutdown.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.Engine != "postgres" {
		return nil, fmt.Errorf("unsupported database engine: %s", cfg.Engine)
	}

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Name, cfg.SSLMode)

	conn, err := openDB("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err = conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	return conn, nil
}

// Migrate creates the profiles table when it does not exist yet.
func Migrate(ctx context.Context, conn *sql.DB) error {
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("error applying schema: %w", err)
	}
	return nil
}
