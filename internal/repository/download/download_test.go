package download

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jgivc/fetchguard/internal/entity"
	"github.com/jgivc/fetchguard/internal/util"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestGetKey(t *testing.T) {
	require.Equal(t, "fg:fs", getKey(KeyNamespace, KeyFileStats))
	require.Equal(t, "fm", getKey(KeyFilesMap))
}

func TestRecordEncoding(t *testing.T) {
	rec := &entity.FetchRecord{
		ID:       "c1f0",
		PageURL:  "https://example.org/reports",
		Path:     "/downloads/report.pdf",
		Ticks:    3,
		Elapsed:  1500 * time.Millisecond,
		Finished: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}

	data, err := encodeRecord(rec)
	require.NoError(t, err)

	decoded, err := decodeRecord(data)
	require.NoError(t, err)
	require.Equal(t, rec, decoded)

	_, err = decodeRecord("{broken")
	require.Error(t, err)
}

func TestParseCounter(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	require.Equal(t, int64(42), parseCounter("42", log))
	require.Equal(t, int64(0), parseCounter("forty-two", log))
}

func newTestRepository(t *testing.T) (*downloadRepository, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	cl := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cl.Close() })

	return NewDownloadRepository(cl, slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))), mr
}

func TestSaveFetch(t *testing.T) {
	repo, mr := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Ping(ctx))

	for i, path := range []string{"/downloads/report.pdf", "/downloads/report.pdf", "/downloads/data.csv"} {
		_, err := repo.SaveFetch(ctx, &entity.FetchRecord{ID: strconv.Itoa(i), Path: path})
		require.NoError(t, err)
	}

	counter, err := repo.SaveFetch(ctx, &entity.FetchRecord{ID: "3", Path: "/downloads/report.pdf"})
	require.NoError(t, err)
	require.EqualValues(t, 3, counter)

	counters, err := repo.FileCounters(ctx)
	require.NoError(t, err)
	require.Equal(t, []entity.FileCounter{
		{ID: idOf("/downloads/data.csv"), Path: "/downloads/data.csv", Counter: 1},
		{ID: idOf("/downloads/report.pdf"), Path: "/downloads/report.pdf", Counter: 3},
	}, counters)

	recent, err := repo.RecentFetches(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "3", recent[0].ID)
	require.Equal(t, "2", recent[1].ID)

	mr.SetError("server is down")
	_, err = repo.SaveFetch(ctx, &entity.FetchRecord{ID: "4", Path: "/downloads/report.pdf"})
	require.Error(t, err)
}

func TestFetchLogIsTrimmed(t *testing.T) {
	repo, mr := newTestRepository(t)
	ctx := context.Background()

	for i := range maxFetchLog + 5 {
		_, err := repo.SaveFetch(ctx, &entity.FetchRecord{ID: strconv.Itoa(i), Path: "/downloads/report.pdf"})
		require.NoError(t, err)
	}

	items, err := mr.List(getKey(KeyNamespace, KeyFetchLog))
	require.NoError(t, err)
	require.Len(t, items, maxFetchLog)

	recent, err := repo.RecentFetches(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recent, maxFetchLog)
	require.Equal(t, strconv.Itoa(maxFetchLog+4), recent[0].ID)
	require.Equal(t, "5", recent[maxFetchLog-1].ID)
}

func TestFileCountersMissingCounter(t *testing.T) {
	repo, mr := newTestRepository(t)
	ctx := context.Background()

	counters, err := repo.FileCounters(ctx)
	require.NoError(t, err)
	require.Empty(t, counters)

	mr.HSet(getKey(KeyNamespace, KeyFilesMap), "orphan", "/downloads/orphan.pdf")
	mr.HSet(getKey(KeyNamespace, KeyFilesMap), "known", "/downloads/known.pdf")
	mr.HSet(getKey(KeyNamespace, KeyFileStats), "known", "2")

	counters, err = repo.FileCounters(ctx)
	require.NoError(t, err)
	require.Equal(t, []entity.FileCounter{
		{ID: "known", Path: "/downloads/known.pdf", Counter: 2},
		{ID: "orphan", Path: "/downloads/orphan.pdf", Counter: 0},
	}, counters)
}

func TestOutcomeCounters(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	for _, kind := range []string{"primary", "unrecognized", "primary"} {
		_, err := repo.IncOutcome(ctx, kind)
		require.NoError(t, err)
	}

	counters, err := repo.OutcomeCounters(ctx)
	require.NoError(t, err)
	require.Equal(t, []entity.OutcomeCounter{
		{Kind: "primary", Counter: 2},
		{Kind: "unrecognized", Counter: 1},
	}, counters)
}

func TestRecentFetchesSkipsBrokenEntries(t *testing.T) {
	repo, mr := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.SaveFetch(ctx, &entity.FetchRecord{ID: "ok", Path: "/downloads/report.pdf"})
	require.NoError(t, err)

	_, err = mr.Lpush(getKey(KeyNamespace, KeyFetchLog), "{not json")
	require.NoError(t, err)

	recent, err := repo.RecentFetches(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, "ok", recent[0].ID)
}

func idOf(path string) string {
	return util.GetIDFromString(&path)
}
