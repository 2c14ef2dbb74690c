// Package postgres implements the durable half of §4.4's persistence
// layer: folders, assets, and edit states in PostgreSQL, reached through
// sqlx with OpenTelemetry instrumentation exactly as the teacher's
// internal/database package connects, adapted from a single-tenant API
// database to the catalog engine's own schema.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// DB wraps a connection pool to the catalog database.
type DB struct {
	*sqlx.DB
}

// New connects to databaseURL and verifies reachability before returning.
func New(databaseURL string) (*DB, error) {
	db, err := otelsqlx.Connect("postgres", databaseURL,
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to catalog database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping catalog database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Health checks connectivity by pinging the database.
func (db *DB) Health(ctx context.Context) error {
	return db.PingContext(ctx)
}

// BeginTx starts a transaction for the batch operations in §4.4
// (batch flag updates, scan-batch upserts).
func (db *DB) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return db.BeginTxx(ctx, nil)
}
