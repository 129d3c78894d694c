package postgres

import (
	"context"

	"github.com/dukerupert/ponto/internal/domain"
	"github.com/jackc/pgx/v5"
)

// GetSettings returns every setting whose key starts with prefix.
func (s *Store) GetSettings(ctx context.Context, prefix string) (map[string]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT key, value FROM payment_settings WHERE starts_with(key, $1)`, prefix)
	if err != nil {
		return nil, domain.Internal(err, "settings.get", "failed to read settings")
	}
	defer rows.Close()

	values := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, domain.Internal(err, "settings.get", "failed to read setting")
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "settings.get", "failed to read settings")
	}
	return values, nil
}

// UpsertSettings writes values in one batch.
func (s *Store) UpsertSettings(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for k, v := range values {
			batch.Queue(
				`INSERT INTO payment_settings (key, value, updated_at) VALUES ($1, $2, now())
				 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
				k, v)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return domain.Internal(err, "settings.upsert", "failed to save settings")
		}
		return nil
	})
}
