package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/jgivc/fetchguard/internal/common"
	"github.com/jgivc/fetchguard/internal/entity"
)

const (
	serviceName = "download"
)

type DirectoryLister interface {
	CheckDir(dir string) error
	IsPartial(name string) bool
	Snapshot(dir string) (*entity.DirectorySnapshot, error)
}

// Result is a completed wait. Ticks counts poll intervals waited before the
// successful check; 0 means the file was already complete.
type Result struct {
	Path    string
	Ticks   int
	Elapsed time.Duration
}

// TimeoutError is returned when the completion condition did not hold in time.
type TimeoutError struct {
	Filename string
	Elapsed  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("download %s not completed after %s", e.Filename, e.Elapsed.Round(time.Millisecond))
}

func (e *TimeoutError) Is(target error) bool {
	return target == common.ErrTimeout
}

type detectorService struct {
	lister DirectoryLister
	log    *slog.Logger
}

func NewDetectorService(lister DirectoryLister, log *slog.Logger) *detectorService {
	return &detectorService{
		lister: lister,
		log:    log.With(slog.String("service", serviceName)),
	}
}

/*
Wait polls target.Dir until target.ExpectedFilename is present and no partial artifact of
any name is left. The first check happens immediately, then once per interval.
The wait stops with:
 1. common.ErrConfiguration when the directory is missing (checked before polling) or disappears,
    or when the expected name itself looks like a partial artifact;
 2. *TimeoutError after timeout;
 3. ctx.Err() when ctx is done.
*/
func (d *detectorService) Wait(ctx context.Context, target entity.DownloadTarget, timeout, interval time.Duration) (*Result, error) {
	log := d.log.With(slog.String("dir", target.Dir), slog.String("file", target.ExpectedFilename))

	if err := validate(target, timeout, interval, d.lister.IsPartial); err != nil {
		log.Error("Invalid wait parameters", slog.Any("error", err))

		return nil, err
	}

	if err := d.lister.CheckDir(target.Dir); err != nil {
		log.Error("Cannot watch directory", slog.Any("error", err))

		return nil, err
	}

	start := time.Now()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for tick := 0; ; tick++ {
		snapshot, err := d.lister.Snapshot(target.Dir)
		if err != nil {
			log.Error("Cannot take directory snapshot", slog.Int("tick", tick), slog.Any("error", err))

			return nil, fmt.Errorf("cannot take snapshot: %w", err)
		}

		if snapshot.Complete(target.ExpectedFilename) {
			res := &Result{
				Path:    filepath.Join(target.Dir, target.ExpectedFilename),
				Ticks:   tick,
				Elapsed: time.Since(start),
			}
			log.Info("Download completed", slog.Int("tick", tick), slog.Duration("elapsed", res.Elapsed))

			return res, nil
		}

		log.Debug("Download not completed", slog.Int("tick", tick), slog.Int("in_progress", len(snapshot.InProgress)))

		select {
		case <-ctx.Done():
			log.Info("Interrupted", slog.Int("tick", tick))

			return nil, fmt.Errorf("wait for %s interrupted: %w", target.ExpectedFilename, ctx.Err())
		case <-deadline.C:
			err := &TimeoutError{Filename: target.ExpectedFilename, Elapsed: time.Since(start)}
			log.Warn("Download timed out", slog.Duration("elapsed", err.Elapsed))

			return nil, err
		case <-ticker.C:
		}
	}
}

func validate(target entity.DownloadTarget, timeout, interval time.Duration, isPartial func(string) bool) error {
	var errs []error

	switch {
	case target.ExpectedFilename == "":
		errs = append(errs, fmt.Errorf("expected file name is empty"))
	case isPartial(target.ExpectedFilename):
		errs = append(errs, fmt.Errorf("expected file name %q matches a partial download suffix", target.ExpectedFilename))
	}

	if timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", timeout))
	}

	if interval <= 0 {
		errs = append(errs, fmt.Errorf("poll interval must be positive, got %s", interval))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", common.ErrConfiguration, errors.Join(errs...))
	}

	return nil
}
