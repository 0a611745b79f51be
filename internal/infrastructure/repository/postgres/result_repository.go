// Package postgres persists stored search results so combine requests can
// reference earlier searches by identifier across processes.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/notegraph/graphsearch/internal/core/domain"
)

type ResultRepository struct {
	db *sql.DB
}

func NewResultRepository(db *sql.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ResultRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/mcp startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS result_sets (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	kind TEXT NOT NULL,
	records JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_result_sets_created_at ON result_sets(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *ResultRepository) Save(ctx context.Context, result *domain.StoredResult) error {
	if result == nil || result.ID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "save result", errors.New("missing result id"))
	}
	recordsJSON, err := json.Marshal(result.Records)
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}
	createdAt := result.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO result_sets (id, name, kind, records, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	kind = EXCLUDED.kind,
	records = EXCLUDED.records,
	created_at = EXCLUDED.created_at`,
		result.ID, result.Name, string(result.Kind), recordsJSON, createdAt,
	)
	if err != nil {
		return domain.WrapError(domain.ErrBackend, "save result", err)
	}
	return nil
}

func (r *ResultRepository) Get(ctx context.Context, id string) (*domain.StoredResult, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, kind, records, created_at
FROM result_sets
WHERE id = $1`, id)

	var (
		result      domain.StoredResult
		kind        string
		recordsJSON []byte
	)
	err := row.Scan(&result.ID, &result.Name, &kind, &recordsJSON, &result.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		available, listErr := r.ListIDs(ctx)
		if listErr != nil {
			available = nil
		}
		return nil, &domain.ResultLookupError{ID: id, Available: available}
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrBackend, "get result", err)
	}
	result.Kind = domain.NodeKind(kind)
	if err := json.Unmarshal(recordsJSON, &result.Records); err != nil {
		return nil, fmt.Errorf("unmarshal records: %w", err)
	}
	return &result, nil
}

func (r *ResultRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id FROM result_sets ORDER BY created_at DESC`)
	if err != nil {
		return nil, domain.WrapError(domain.ErrBackend, "list result ids", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.WrapError(domain.ErrBackend, "list result ids", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrBackend, "list result ids", err)
	}
	return ids, nil
}
