package refsource

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/jgivc/fetchguard/internal/common"
	"github.com/jgivc/fetchguard/internal/config"
	"github.com/jgivc/fetchguard/internal/entity"
)

type refSource struct {
	db           *sql.DB
	primaryQuery string
	figuresQuery string
	log          *slog.Logger
}

// Open connects to the sqlite reference database read-only.
func Open(ctx context.Context, cfg *config.ReferenceConfig, log *slog.Logger) (*refSource, error) {
	db, err := sql.Open("sqlite", "file:"+cfg.DBPath+"?mode=ro&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("cannot open reference db: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("%w: cannot connect to reference db %s: %w", common.ErrConfiguration, cfg.DBPath, err)
	}

	return New(db, cfg, log), nil
}

func New(db *sql.DB, cfg *config.ReferenceConfig, log *slog.Logger) *refSource {
	return &refSource{
		db:           db,
		primaryQuery: cfg.PrimaryQuery,
		figuresQuery: cfg.FiguresQuery,
		log:          log.With(slog.String("item", "ReferenceSource")),
	}
}

// PrimaryNames runs the primary query and returns the first column of every row. NULL and
// empty names are skipped, duplicates are returned once.
func (s *refSource) PrimaryNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.primaryQuery)
	if err != nil {
		return nil, fmt.Errorf("cannot query primary names: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	var names []string

	for rows.Next() {
		var name sql.NullString
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("cannot scan primary name: %w", err)
		}

		if !name.Valid || name.String == "" {
			continue
		}

		if _, exists := seen[name.String]; exists {
			continue
		}

		seen[name.String] = struct{}{}
		names = append(names, name.String)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cannot read primary names: %w", err)
	}

	s.log.Info("Primary names loaded", slog.Int("count", len(names)))

	return names, nil
}

// Figures runs the figures query with name as its only argument. Rows are (label, value).
func (s *refSource) Figures(ctx context.Context, name string) ([]entity.Figure, error) {
	rows, err := s.db.QueryContext(ctx, s.figuresQuery, name)
	if err != nil {
		return nil, fmt.Errorf("cannot query figures for %s: %w", name, err)
	}
	defer rows.Close()

	var figures []entity.Figure
	for rows.Next() {
		var label, value sql.NullString
		if err := rows.Scan(&label, &value); err != nil {
			return nil, fmt.Errorf("cannot scan figure: %w", err)
		}

		figures = append(figures, entity.Figure{Label: label.String, Value: value.String})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cannot read figures: %w", err)
	}

	if len(figures) == 0 {
		return nil, common.ErrNoFiguresFoundError
	}

	return figures, nil
}

func (s *refSource) Close() error {
	return s.db.Close()
}
