package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/jgivc/fetchguard/internal/common"
	"github.com/jgivc/fetchguard/internal/entity"
	"github.com/jgivc/fetchguard/internal/service/download"
	"github.com/jgivc/fetchguard/internal/util"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName    = "fetch"
	lockFilePrefix = "fetchguard-"
	lockFileSuffix = ".lock"
)

type Driver interface {
	Open(ctx context.Context, url string) error
	ResolveLink(ctx context.Context, partialText string) (string, error)
	ClickLink(ctx context.Context) error
}

type Detector interface {
	Wait(ctx context.Context, target entity.DownloadTarget, timeout, interval time.Duration) (*download.Result, error)
}

type DirectoryLister interface {
	IsPartial(name string) bool
	Snapshot(dir string) (*entity.DirectorySnapshot, error)
}

type FetchRepository interface {
	SaveFetch(ctx context.Context, rec *entity.FetchRecord) (int64, error)
}

type Options struct {
	PageURL      string
	LinkText     string
	Dir          string
	Timeout      time.Duration
	PollInterval time.Duration
	Retries      int // Extra trigger-and-wait attempts after a timeout
}

type fetchService struct {
	driver   Driver
	detector Detector
	lister   DirectoryLister
	repo     FetchRepository
	lockDir  string
	log      *slog.Logger
}

func NewFetchService(driver Driver, detector Detector, lister DirectoryLister, repo FetchRepository, lockDir string, log *slog.Logger) *fetchService {
	return &fetchService{
		driver:   driver,
		detector: detector,
		lister:   lister,
		repo:     repo,
		lockDir:  lockDir,
		log:      log.With(slog.String("service", serviceName)),
	}
}

/*
Fetch opens the page, resolves the link and waits for its file while clicking it.
 1. The download dir is locked for the whole call, so one directory has one watcher.
 2. An expected file already on disk is refused, it would complete the wait at once. So is
    an expected name that matches the partial download suffixes.
 3. A failed click cancels the wait.
 4. Only timeouts are retried, up to opts.Retries times.
*/
func (s *fetchService) Fetch(ctx context.Context, opts Options) (*entity.FetchRecord, error) {
	log := s.log.With(slog.String("url", opts.PageURL), slog.String("link", opts.LinkText))

	lock, err := s.lock(opts.Dir)
	if err != nil {
		log.Error("Cannot lock download directory", slog.String("dir", opts.Dir), slog.Any("error", err))

		return nil, err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Warn("Cannot release lock", slog.Any("error", err))
		}
	}()

	if err := s.driver.Open(ctx, opts.PageURL); err != nil {
		log.Error("Cannot open page", slog.Any("error", err))

		return nil, fmt.Errorf("cannot open page: %w", err)
	}

	href, err := s.driver.ResolveLink(ctx, opts.LinkText)
	if err != nil {
		log.Error("Cannot resolve link", slog.Any("error", err))

		return nil, fmt.Errorf("cannot resolve link: %w", err)
	}

	name, err := entity.FilenameFromURL(href)
	if err != nil {
		return nil, err
	}

	if s.lister.IsPartial(name) {
		err := fmt.Errorf("%w: file %s would never leave the partial download state", common.ErrConfiguration, name)
		log.Error("Cannot start download", slog.Any("error", err))

		return nil, err
	}

	target := entity.DownloadTarget{Dir: opts.Dir, ExpectedFilename: name}
	log = log.With(slog.String("file", name))

	var res *download.Result
	for attempt := 0; ; attempt++ {
		if err := s.checkNotPresent(target); err != nil {
			log.Error("Cannot start download", slog.Any("error", err))

			return nil, err
		}

		res, err = s.triggerAndWait(ctx, target, opts)
		if err == nil {
			break
		}

		if !errors.Is(err, common.ErrTimeout) || attempt >= opts.Retries {
			log.Error("Download failed", slog.Int("attempt", attempt), slog.Any("error", err))

			return nil, err
		}

		log.Warn("Download timed out, retrying", slog.Int("attempt", attempt))
	}

	rec := &entity.FetchRecord{
		ID:       uuid.NewString(),
		PageURL:  opts.PageURL,
		Path:     res.Path,
		Ticks:    res.Ticks,
		Elapsed:  res.Elapsed,
		Finished: time.Now().UTC(),
	}

	if s.repo != nil {
		counter, err := s.repo.SaveFetch(ctx, rec)
		if err != nil {
			log.Warn("Cannot record fetch", slog.Any("error", err))
		} else {
			log.Info("Fetch recorded", slog.String("id", rec.ID), slog.Int64("counter", counter))
		}
	}

	return rec, nil
}

func (s *fetchService) triggerAndWait(ctx context.Context, target entity.DownloadTarget, opts Options) (*download.Result, error) {
	var res *download.Result

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		res, err = s.detector.Wait(gctx, target, opts.Timeout, opts.PollInterval)

		return err
	})
	g.Go(func() error {
		if err := s.driver.ClickLink(gctx); err != nil {
			return fmt.Errorf("cannot trigger download: %w", err)
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return res, nil
}

func (s *fetchService) checkNotPresent(target entity.DownloadTarget) error {
	snapshot, err := s.lister.Snapshot(target.Dir)
	if err != nil {
		return err
	}

	if _, exists := snapshot.Completed[target.ExpectedFilename]; exists {
		return fmt.Errorf("%w: %s", common.ErrFileExistsError, filepath.Join(target.Dir, target.ExpectedFilename))
	}

	return nil
}

func (s *fetchService) lock(dir string) (*flock.Flock, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot resolve download dir %s: %w", common.ErrConfiguration, dir, err)
	}

	lock := flock.New(LockPath(s.lockDir, absDir))

	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("cannot acquire lock: %w", err)
	}

	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrDirectoryLockedError, absDir)
	}

	return lock, nil
}

// LockPath is the lock file guarding dir. It lives outside dir so it never shows up in
// the directory snapshots.
func LockPath(lockDir, dir string) string {
	return filepath.Join(lockDir, lockFilePrefix+util.GetIDFromString(&dir)+lockFileSuffix)
}
