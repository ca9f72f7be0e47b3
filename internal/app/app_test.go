package app

import (
	"context"
	"database/sql"
	"io"
	"path/filepath"
	"testing"

	"github.com/jgivc/fetchguard/internal/common"
	"github.com/jgivc/fetchguard/internal/config"
	"github.com/jgivc/fetchguard/internal/entity"
	"github.com/stretchr/testify/require"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "reference.db")
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`
CREATE TABLE locations (name TEXT);
CREATE TABLE figures (name TEXT, label TEXT, value TEXT);
INSERT INTO locations VALUES ('Los Angeles'), ('San Diego');
INSERT INTO figures VALUES ('Los Angeles', 'cases', '1200');
`)
	require.NoError(t, err)

	cfg := &config.Config{
		// Nothing listens on port 1, counters get disabled.
		RedisURL: "redis://127.0.0.1:1/0",
		ReferenceConfig: config.ReferenceConfig{
			DBPath:    dbPath,
			Auxiliary: []string{"Clark", "Cook", "King"},
		},
	}
	cfg.SetDefaults()

	return cfg
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		_, err := NewLogger(level, io.Discard)
		require.NoError(t, err, level)
	}

	_, err := NewLogger("trace", io.Discard)
	require.ErrorIs(t, err, common.ErrConfiguration)
}

func TestNewBadRedisURL(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.RedisURL = "mysql://localhost"

	_, err := New(context.Background(), cfg, io.Discard)
	require.ErrorIs(t, err, common.ErrConfiguration)
}

func TestClassifyWithoutRedis(t *testing.T) {
	a, err := New(context.Background(), newTestConfig(t), io.Discard)
	require.NoError(t, err)
	defer a.Close()

	rep, err := a.Classify(context.Background(), "Los Angeles")
	require.NoError(t, err)
	require.Equal(t, entity.Primary("Los Angeles"), rep.Result)
	require.Equal(t, []entity.Figure{{Label: "cases", Value: "1200"}}, rep.Figures)

	rep, err = a.Classify(context.Background(), "Clark")
	require.NoError(t, err)
	require.Equal(t, entity.KnownButOutOfScope("Clark"), rep.Result)

	rep, err = a.Classify(context.Background(), "Sna Diego")
	require.NoError(t, err)
	require.Equal(t, entity.Unrecognized("Sna Diego"), rep.Result)

	_, err = a.Stats(context.Background())
	require.ErrorIs(t, err, common.ErrRedisUnavailable)
}

func TestFetchMissingDirectory(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.DownloadConfig.Dir = filepath.Join(t.TempDir(), "missing")

	a, err := New(context.Background(), cfg, io.Discard)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Fetch(context.Background(), FetchOptions{PageURL: "https://example.org", LinkText: "report"})
	require.ErrorIs(t, err, common.ErrConfiguration)
}
