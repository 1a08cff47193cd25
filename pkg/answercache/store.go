package answercache

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// DB is the slice of the pgx pool the store needs. pgxpool.Pool satisfies it,
// as does pgxmock in tests.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore persists the answer map in a single flat table.
type PostgresStore struct {
	db  DB
	log *zap.Logger
}

// NewPostgresStore wraps an open pool.
func NewPostgresStore(db DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, log: logger.Named("answerstore")}
}

// Migrate creates the answers table when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS answers (
			question   TEXT PRIMARY KEY,
			answer     TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create answers table: %w", err)
	}
	return nil
}

// Load reads the whole persisted map.
func (s *PostgresStore) Load(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.Query(ctx, `SELECT question, answer FROM answers`)
	if err != nil {
		return nil, fmt.Errorf("failed to load answers: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var q, a string
		if err := rows.Scan(&q, &a); err != nil {
			return nil, fmt.Errorf("failed to scan answer row: %w", err)
		}
		out[q] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate answers: %w", err)
	}
	return out, nil
}

// Save upserts one entry, last write wins.
func (s *PostgresStore) Save(ctx context.Context, key, answer string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO answers (question, answer, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (question)
		DO UPDATE SET answer = EXCLUDED.answer, updated_at = now()`,
		key, answer)
	if err != nil {
		return fmt.Errorf("failed to save answer: %w", err)
	}
	return nil
}
