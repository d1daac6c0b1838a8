package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenInMemory(t *testing.T) {
	ctx := context.Background()

	db, err := Open(ctx, "", Settings{Threads: 2, MemoryLimitGB: 1})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Ping(ctx))

	var threads int64
	require.NoError(t, db.Conn.QueryRowContext(ctx, "SELECT current_setting('threads')").Scan(&threads))
	assert.Equal(t, int64(2), threads)
}

func TestHealthCheck(t *testing.T) {
	ctx := context.Background()

	db, err := Open(ctx, "", Settings{})
	require.NoError(t, err)
	defer db.Close()

	status, err := db.HealthCheck(ctx)
	require.NoError(t, err)

	assert.True(t, status.Healthy)
	assert.NotEmpty(t, status.Version)
	assert.Empty(t, status.Error)
}

func TestCountAndTableExists(t *testing.T) {
	ctx := context.Background()

	db, err := Open(ctx, "", Settings{})
	require.NoError(t, err)
	defer db.Close()

	exists, err := db.TableExists(ctx, "ticks")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = db.Exec(ctx, "CREATE TABLE ticks (symbol VARCHAR, px INTEGER)")
	require.NoError(t, err)

	exists, err = db.TableExists(ctx, "ticks")
	require.NoError(t, err)
	assert.True(t, exists)

	n, err := db.Exec(ctx, "INSERT INTO ticks VALUES ('A', 1), ('B', 2)")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	count, err := db.Count(ctx, "ticks")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	_, err = db.Count(ctx, "missing")
	assert.Error(t, err)
}

func TestWithAppender(t *testing.T) {
	ctx := context.Background()

	db, err := Open(ctx, "", Settings{})
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(ctx, "CREATE TABLE bars (d DATE, t TIME, px INTEGER, note VARCHAR)")
	require.NoError(t, err)

	day := time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC)
	clock := time.Date(1970, 1, 1, 9, 15, 0, 0, time.UTC)

	err = db.WithAppender(ctx, "bars", func(a *Appender) error {
		for i := 0; i < 3; i++ {
			if err := a.Append(day, clock, int32(100+i), nil); err != nil {
				return err
			}
		}
		assert.Equal(t, int64(3), a.Rows())
		return a.Flush()
	})
	require.NoError(t, err)

	count, err := db.Count(ctx, "bars")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	var nulls int64
	require.NoError(t, db.Conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM bars WHERE note IS NULL").Scan(&nulls))
	assert.Equal(t, int64(3), nulls)
}

func TestScratchPath(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"/data/25-01-2024.parquet", "/data/25-01-2024.duckdb"},
		{"day.PARQUET", "day.duckdb"},
		{"noext", "noext.duckdb"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ScratchPath(tt.input))
		})
	}
}

func TestRemoveFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scratch.duckdb")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(path+".wal", []byte("x"), 0o644))

	require.NoError(t, RemoveFiles(path))
	assert.NoFileExists(t, path)
	assert.NoFileExists(t, path+".wal")

	// Second removal is a no-op.
	assert.NoError(t, RemoveFiles(path))
}

func TestQuote(t *testing.T) {
	assert.Equal(t, "'plain'", Quote("plain"))
	assert.Equal(t, "'o''brien.parquet'", Quote("o'brien.parquet"))
	assert.Equal(t, `"cal_data"`, QuoteIdent("cal_data"))
}
