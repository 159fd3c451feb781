package rubric

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"teacherhr/internal/platform/db"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const versionColumns = "id, key, version, is_active, description, COALESCE(created_by::text, ''), created_at, value"

func scanVersion(row pgx.Row) (Version, error) {
	var v Version
	var raw []byte
	if err := row.Scan(&v.ID, &v.Key, &v.Version, &v.IsActive, &v.Description, &v.CreatedBy, &v.CreatedAt, &raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Version{}, ErrNotFound
		}
		return Version{}, err
	}
	if err := json.Unmarshal(raw, &v.Value); err != nil {
		return Version{}, fmt.Errorf("decode rubric %s v%d: %w", v.Key, v.Version, err)
	}
	return v, nil
}

func (s *Store) ActiveVersion(ctx context.Context, key string) (Version, error) {
	return scanVersion(s.DB.QueryRow(ctx, `
    SELECT `+versionColumns+`
    FROM system_configurations
    WHERE key = $1 AND is_active
  `, key))
}

func (s *Store) VersionByNumber(ctx context.Context, key string, version int) (Version, error) {
	return scanVersion(s.DB.QueryRow(ctx, `
    SELECT `+versionColumns+`
    FROM system_configurations
    WHERE key = $1 AND version = $2
  `, key, version))
}

func (s *Store) ListVersions(ctx context.Context, key string) ([]Version, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+versionColumns+`
    FROM system_configurations
    WHERE key = $1
    ORDER BY version DESC
  `, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// CreateVersion appends the next version for key and makes it the only active
// one. Concurrent writers for the same key are serialized by an advisory lock.
func (s *Store) CreateVersion(ctx context.Context, key string, value Rubric, createdBy, description string) (Version, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return Version{}, err
	}

	var out Version
	err = db.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", key); err != nil {
			return err
		}

		var next int
		if err := tx.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) + 1 FROM system_configurations WHERE key = $1", key).Scan(&next); err != nil {
			return err
		}
		if description == "" {
			description = fmt.Sprintf("Updated configuration (v%d)", next)
		}

		if _, err := tx.Exec(ctx, "UPDATE system_configurations SET is_active = false WHERE key = $1 AND is_active", key); err != nil {
			return err
		}

		v, err := scanVersion(tx.QueryRow(ctx, `
      INSERT INTO system_configurations (key, value, version, is_active, description, created_by)
      VALUES ($1,$2,$3,true,$4,$5)
      RETURNING `+versionColumns+`
    `, key, payload, next, description, nullIfEmpty(createdBy)))
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
