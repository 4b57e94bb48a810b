package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS dataset_items (
	id BIGSERIAL PRIMARY KEY,
	run_id UUID NOT NULL,
	data_type TEXT NOT NULL,
	payload JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_dataset_items_run ON dataset_items(run_id, data_type);
`

const insertSQL = `
INSERT INTO dataset_items (run_id, data_type, payload)
VALUES ($1::uuid, $2, $3::jsonb)
`

// Postgres stores items in the dataset_items table, one INSERT per Push.
type Postgres struct {
	pool   *pgxpool.Pool
	closed atomic.Bool
}

// NewPostgres connects to dsn and verifies the connection.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// EnsureSchema creates the dataset table if needed.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// Push inserts one item.
func (s *Postgres) Push(ctx context.Context, item Item) error {
	if s.closed.Load() {
		return ErrClosed
	}
	payload, err := json.Marshal(item)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, insertSQL, item.RunID.String(), item.DataType, string(payload)); err != nil {
		return fmt.Errorf("insert %s item: %w", item.DataType, err)
	}
	itemsPushed.WithLabelValues("postgres", item.DataType).Inc()
	return nil
}

// Count returns the number of items of dataType stored for runID.
func (s *Postgres) Count(ctx context.Context, runID uuid.UUID, dataType string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM dataset_items WHERE run_id = $1::uuid AND data_type = $2`,
		runID.String(), dataType,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return n, nil
}

// Close releases the pool.
func (s *Postgres) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.pool.Close()
	}
	return nil
}
