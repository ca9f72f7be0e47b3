package counter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jgivc/fetchguard/internal/entity"
)

const (
	serviceName = "counter"

	recentFetches = 10
)

type CounterRepository interface {
	FileCounters(ctx context.Context) ([]entity.FileCounter, error)
	OutcomeCounters(ctx context.Context) ([]entity.OutcomeCounter, error)
	RecentFetches(ctx context.Context, n int) ([]*entity.FetchRecord, error)
}

type counterService struct {
	repo CounterRepository
	log  *slog.Logger
}

func NewCounterService(repo CounterRepository, log *slog.Logger) *counterService {
	return &counterService{
		repo: repo,
		log:  log.With(slog.String("service", serviceName)),
	}
}

func (c *counterService) Stats(ctx context.Context) (*entity.Stats, error) {
	files, err := c.repo.FileCounters(ctx)
	if err != nil {
		c.log.Error("Cannot get file counters", slog.Any("error", err))

		return nil, fmt.Errorf("cannot get file counters: %w", err)
	}

	outcomes, err := c.repo.OutcomeCounters(ctx)
	if err != nil {
		c.log.Error("Cannot get outcome counters", slog.Any("error", err))

		return nil, fmt.Errorf("cannot get outcome counters: %w", err)
	}

	recent, err := c.repo.RecentFetches(ctx, recentFetches)
	if err != nil {
		c.log.Error("Cannot get recent fetches", slog.Any("error", err))

		return nil, fmt.Errorf("cannot get recent fetches: %w", err)
	}

	return &entity.Stats{Files: files, Outcomes: outcomes, Recent: recent}, nil
}
