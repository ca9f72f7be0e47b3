package counter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/jgivc/fetchguard/internal/entity"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	files    []entity.FileCounter
	outcomes []entity.OutcomeCounter
	recent   []*entity.FetchRecord
	err      error
	n        int
}

func (r *fakeRepo) FileCounters(context.Context) ([]entity.FileCounter, error) {
	return r.files, r.err
}

func (r *fakeRepo) OutcomeCounters(context.Context) ([]entity.OutcomeCounter, error) {
	return r.outcomes, nil
}

func (r *fakeRepo) RecentFetches(_ context.Context, n int) ([]*entity.FetchRecord, error) {
	r.n = n

	return r.recent, nil
}

func TestStats(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	repo := &fakeRepo{
		files:    []entity.FileCounter{{ID: "a", Path: "/downloads/report.pdf", Counter: 2}},
		outcomes: []entity.OutcomeCounter{{Kind: "primary", Counter: 5}},
		recent:   []*entity.FetchRecord{{ID: "r1", Path: "/downloads/report.pdf"}},
	}

	stats, err := NewCounterService(repo, log).Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, repo.files, stats.Files)
	require.Equal(t, repo.outcomes, stats.Outcomes)
	require.Len(t, stats.Recent, 1)
	require.Equal(t, recentFetches, repo.n)

	repo.err = errors.New("redis is down")
	_, err = NewCounterService(repo, log).Stats(context.Background())
	require.ErrorIs(t, err, repo.err)
}
