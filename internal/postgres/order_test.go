package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/dukerupert/ponto/internal"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore connects to PONTO_TEST_DATABASE_URL and applies migrations.
// Tests using it are skipped when the variable is unset.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv("PONTO_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("PONTO_TEST_DATABASE_URL not set")
	}

	sqlDB, err := sql.Open("pgx", url)
	require.NoError(t, err)
	defer sqlDB.Close()
	require.NoError(t, internal.RunMigrations(sqlDB))

	pool, err := NewPool(context.Background(), url, PoolConfig{MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return New(pool)
}

func TestStore_LastOrderNumberPastSixDigits(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	prefix := "T" + uuid.NewString()[:8] + "-2025-"
	t.Cleanup(func() {
		_, _ = store.pool.Exec(context.Background(), `DELETE FROM orders WHERE starts_with(order_number, $1)`, prefix)
	})

	for _, seq := range []string{"000042", "999999", "1000000"} {
		_, err := store.pool.Exec(ctx,
			`INSERT INTO orders (order_number, email, total_amount) VALUES ($1, 'buyer@example.com', 10)`,
			prefix+seq)
		require.NoError(t, err)
	}

	last, err := store.LastOrderNumber(ctx, prefix)
	require.NoError(t, err)
	assert.Equal(t, prefix+"1000000", last)

	last, err = store.LastOrderNumber(ctx, "T"+uuid.NewString()[:8]+"-2025-")
	require.NoError(t, err)
	assert.Empty(t, last)
}
