// Package journal mirrors admitted requests and assignments into Postgres.
// It is an audit trail only: the in-memory store stays authoritative and a
// journal failure never blocks dispatch.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/fleet-dispatch/internal/models"
)

type Journal struct {
	db *sql.DB
}

func Open(dsn string) (*Journal, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) RecordRequest(ctx context.Context, orderID string, kind models.RequestKind, requesterID string, candidates int) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO dispatch_journal(order_id, kind, requester_id, candidates, created_at) VALUES($1,$2,$3,$4,$5)
		 ON CONFLICT (order_id) DO NOTHING`,
		orderID, string(kind), requesterID, candidates, time.Now())
	return err
}

func (j *Journal) RecordAssignment(ctx context.Context, orderID, workerID string) error {
	_, err := j.db.ExecContext(ctx,
		`UPDATE dispatch_journal SET worker_id=$1, assigned_at=$2 WHERE order_id=$3`,
		workerID, time.Now(), orderID)
	return err
}

// Migrate applies the journal schema. Safe to run repeatedly.
func (j *Journal) Migrate(ctx context.Context) error {
	_, err := j.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS dispatch_journal (
			order_id     TEXT PRIMARY KEY,
			kind         TEXT NOT NULL,
			requester_id TEXT NOT NULL,
			candidates   INT NOT NULL,
			worker_id    TEXT,
			created_at   TIMESTAMPTZ NOT NULL,
			assigned_at  TIMESTAMPTZ
		)`)
	return err
}

func (j *Journal) Close() error { return j.db.Close() }
