package tx

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "certhub/pkg/domain-errors"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite3", filepath.Join(t.TempDir(), "tx.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE items (v TEXT NOT NULL)`)
	require.NoError(t, err)
	return db
}

func countItems(t *testing.T, db *sqlx.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM items`))
	return n
}

func TestRunInTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commits when fn succeeds", func(t *testing.T) {
		db := openTestDB(t)

		err := RunInTx(ctx, db, time.Second, func(ctx context.Context, tx *sqlx.Tx) error {
			_, err := tx.ExecContext(ctx, `INSERT INTO items (v) VALUES ('a'), ('b')`)
			return err
		})

		require.NoError(t, err)
		assert.Equal(t, 2, countItems(t, db))
	})

	t.Run("rolls back when fn fails", func(t *testing.T) {
		db := openTestDB(t)
		boom := errors.New("boom")

		err := RunInTx(ctx, db, time.Second, func(ctx context.Context, tx *sqlx.Tx) error {
			if _, err := tx.ExecContext(ctx, `INSERT INTO items (v) VALUES ('a')`); err != nil {
				return err
			}
			return boom
		})

		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, countItems(t, db))
	})

	t.Run("cancelled context never begins", func(t *testing.T) {
		db := openTestDB(t)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		called := false
		err := RunInTx(cancelled, db, time.Second, func(context.Context, *sqlx.Tx) error {
			called = true
			return nil
		})

		assert.False(t, called)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
	})
}
