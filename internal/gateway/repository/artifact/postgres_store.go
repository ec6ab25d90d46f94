package artifact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore keeps artifact content in a single table, created on first
// use. Suitable for deployments without an object store.
type PostgresStore struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS artifact_files (
				session_id TEXT NOT NULL,
				path       TEXT NOT NULL,
				content    BYTEA NOT NULL,
				size       BIGINT NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				PRIMARY KEY (session_id, path)
			)`)
	})
	return s.schemaErr
}

func (s *PostgresStore) Put(ctx context.Context, sessionID, path string, content []byte) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store is nil")
	}
	if _, err := objectKey(sessionID, path); err != nil {
		return err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	if content == nil {
		content = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO artifact_files (session_id, path, content, size, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (session_id, path)
		DO UPDATE SET content = EXCLUDED.content, size = EXCLUDED.size, updated_at = now()`,
		strings.TrimSpace(sessionID), strings.TrimSpace(path), content, int64(len(content)))
	return err
}

func (s *PostgresStore) Get(ctx context.Context, sessionID, path string) ([]byte, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if _, err := objectKey(sessionID, path); err != nil {
		return nil, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	var content []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT content FROM artifact_files WHERE session_id = $1 AND path = $2`,
		strings.TrimSpace(sessionID), strings.TrimSpace(path)).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return content, nil
}

func (s *PostgresStore) List(ctx context.Context, sessionID string) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store is nil")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT path FROM artifact_files WHERE session_id = $1 ORDER BY path ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	paths := make([]string, 0, 16)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// GetURL is unsupported: content lives in a BYTEA column.
func (s *PostgresStore) GetURL(_ context.Context, _, _ string) (string, error) {
	return "", nil
}
