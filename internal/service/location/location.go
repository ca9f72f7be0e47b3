package location

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jgivc/fetchguard/internal/common"
	"github.com/jgivc/fetchguard/internal/entity"
)

const (
	serviceName = "location"
)

type ReferenceSource interface {
	PrimaryNames(ctx context.Context) ([]string, error)
	Figures(ctx context.Context, name string) ([]entity.Figure, error)
}

type OutcomeRepository interface {
	IncOutcome(ctx context.Context, kind string) (int64, error)
}

type locationService struct {
	mu        sync.Mutex
	refs      *entity.ReferenceSets
	source    ReferenceSource
	repo      OutcomeRepository
	auxiliary []string
	policy    MatchPolicy
	log       *slog.Logger
}

func NewLocationService(source ReferenceSource, repo OutcomeRepository, auxiliary []string, policy MatchPolicy, log *slog.Logger) *locationService {
	return &locationService{
		source:    source,
		repo:      repo,
		auxiliary: auxiliary,
		policy:    policy,
		log:       log.With(slog.String("service", serviceName)),
	}
}

// References loads the reference sets on first use and returns the same value afterwards.
// A failed load is retried on the next call.
func (s *locationService) References(ctx context.Context) (*entity.ReferenceSets, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refs != nil {
		return s.refs, nil
	}

	primary, err := s.source.PrimaryNames(ctx)
	if err != nil {
		s.log.Error("Cannot load primary names", slog.Any("error", err))

		return nil, fmt.Errorf("cannot load primary names: %w", err)
	}

	refs, err := entity.NewReferenceSets(primary, s.auxiliary)
	if err != nil {
		s.log.Error("Invalid reference sets", slog.Any("error", err))

		return nil, fmt.Errorf("%w: %w", common.ErrConfiguration, err)
	}

	s.log.Info("Reference sets loaded", slog.Int("primary", len(refs.Primary)), slog.Int("auxiliary", len(refs.AuxiliaryKnown)))
	s.refs = refs

	return refs, nil
}

func (s *locationService) Classify(ctx context.Context, raw string) (*entity.LocationReport, error) {
	q, err := entity.NewLocationQuery(raw)
	if err != nil {
		return nil, err
	}

	refs, err := s.References(ctx)
	if err != nil {
		return nil, err
	}

	report := &entity.LocationReport{
		ID:     uuid.NewString(),
		Query:  q.RawText,
		Result: ClassifyWithPolicy(q, refs, s.policy),
	}

	log := s.log.With(slog.String("id", report.ID), slog.String("query", q.RawText), slog.String("kind", report.Result.Kind.String()))
	log.Info("Classified")

	if report.Result.Kind == entity.KindPrimary {
		figures, err := s.source.Figures(ctx, report.Result.Name)
		switch {
		case err == nil:
			report.Figures = figures
		case errors.Is(err, common.ErrNoFiguresFoundError):
			log.Info("No figures for location")
		default:
			log.Error("Cannot get figures", slog.Any("error", err))
			report.FiguresUnavailable = true
		}
	}

	if s.repo != nil {
		if _, err := s.repo.IncOutcome(ctx, report.Result.Kind.String()); err != nil {
			log.Warn("Cannot record outcome", slog.Any("error", err))
		}
	}

	return report, nil
}
