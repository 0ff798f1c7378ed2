package tokenstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresStore はtoken_storeテーブルを使用したStore実装。
// 行は(origin, key)で一意になる。
type PostgresStore struct {
	db     *sql.DB
	origin string
}

// NewPostgresStore はPostgresStoreを生成する。
func NewPostgresStore(db *sql.DB, origin string) *PostgresStore {
	return &PostgresStore{db: db, origin: origin}
}

// Get は値を取得する。
func (s *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM token_store WHERE origin = $1 AND key = $2`,
		s.origin, key,
	).Scan(&value)

	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get token %s: %w", key, err)
	}
	return value, true, nil
}

// Set は値をUPSERTする。
func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO token_store (origin, key, value, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (origin, key) DO UPDATE
		 SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		s.origin, key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set token %s: %w", key, err)
	}
	return nil
}

// Delete は値を削除する。
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM token_store WHERE origin = $1 AND key = $2`,
		s.origin, key,
	)
	if err != nil {
		return fmt.Errorf("failed to delete token %s: %w", key, err)
	}
	return nil
}
