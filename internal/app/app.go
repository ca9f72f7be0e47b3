package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jgivc/fetchguard/internal/adapter/browser"
	"github.com/jgivc/fetchguard/internal/adapter/fsadapter"
	"github.com/jgivc/fetchguard/internal/adapter/refsource"
	"github.com/jgivc/fetchguard/internal/adapter/report"
	"github.com/jgivc/fetchguard/internal/common"
	"github.com/jgivc/fetchguard/internal/config"
	"github.com/jgivc/fetchguard/internal/entity"
	httphandler "github.com/jgivc/fetchguard/internal/handler/http"
	"github.com/jgivc/fetchguard/internal/repository/download"
	"github.com/jgivc/fetchguard/internal/service/counter"
	sdownload "github.com/jgivc/fetchguard/internal/service/download"
	"github.com/jgivc/fetchguard/internal/service/fetch"
	"github.com/jgivc/fetchguard/internal/service/location"
	"github.com/redis/go-redis/v9"
)

const (
	redisTimeout    = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

type counterRepository interface {
	fetch.FetchRepository
	location.OutcomeRepository
	counter.CounterRepository
	Ping(ctx context.Context) error
}

type classifier interface {
	Classify(ctx context.Context, raw string) (*entity.LocationReport, error)
}

type App struct {
	cfg *config.Config
	log *slog.Logger

	rdb  *redis.Client
	repo counterRepository

	mu       sync.Mutex
	refs     io.Closer
	location classifier
}

// New builds the logger and connects to redis. Counters are optional: when redis cannot be
// reached the app logs a warning and runs without them.
func New(ctx context.Context, cfg *config.Config, logW io.Writer) (*App, error) {
	log, err := NewLogger(cfg.LogLevel, logW)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, log: log}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot parse redis url: %w", common.ErrConfiguration, err)
	}

	rdb := redis.NewClient(opt)
	repo := download.NewDownloadRepository(rdb, log)

	pingCtx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	if err := repo.Ping(pingCtx); err != nil {
		log.Warn("Counters disabled", slog.String("redis_url", opt.Addr), slog.Any("error", err))
		_ = rdb.Close()

		return a, nil
	}

	a.rdb = rdb
	a.repo = repo

	return a, nil
}

func NewLogger(level string, w io.Writer) (*slog.Logger, error) {
	lo := &slog.HandlerOptions{}
	switch level {
	case config.LogLevelInfo:
		lo.Level = slog.LevelInfo
	case config.LogLevelWarn:
		lo.Level = slog.LevelWarn
	case config.LogLevelError:
		lo.Level = slog.LevelError
	case config.LogLevelDebug:
		lo.Level = slog.LevelDebug
	default:
		return nil, fmt.Errorf("%w: unknown log level %q", common.ErrConfiguration, level)
	}

	return slog.New(slog.NewTextHandler(w, lo)), nil
}

func (a *App) Logger() *slog.Logger {
	return a.log
}

type FetchOptions struct {
	PageURL  string
	LinkText string
}

// Fetch runs one trigger-and-wait sequence with a fresh browser.
func (a *App) Fetch(ctx context.Context, opts FetchOptions) (*entity.FetchRecord, error) {
	dc := a.cfg.DownloadConfig

	lister := fsadapter.NewFSAdapter(fsadapter.SuffixPredicate(dc.PartialSuffixes...), a.log)
	if err := lister.CheckDir(dc.Dir); err != nil {
		return nil, err
	}

	driver := browser.NewRodDriver(&a.cfg.BrowserConfig, a.log)
	if err := driver.Start(ctx, dc.Dir); err != nil {
		return nil, fmt.Errorf("cannot start browser: %w", err)
	}
	defer func() {
		if err := driver.Close(); err != nil {
			a.log.Warn("Cannot close browser", slog.Any("error", err))
		}
	}()

	srv := fetch.NewFetchService(driver, sdownload.NewDetectorService(lister, a.log), lister, a.repo, dc.LockDir, a.log)

	return srv.Fetch(ctx, fetch.Options{
		PageURL:      opts.PageURL,
		LinkText:     opts.LinkText,
		Dir:          dc.Dir,
		Timeout:      dc.Timeout,
		PollInterval: dc.PollInterval,
		Retries:      dc.Retries,
	})
}

// Classify classifies raw with the session's reference sets, opening them on first use.
func (a *App) Classify(ctx context.Context, raw string) (*entity.LocationReport, error) {
	srv, err := a.locationService(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.ReferenceConfig.Timeout)
	defer cancel()

	return srv.Classify(ctx, raw)
}

func (a *App) locationService(ctx context.Context) (classifier, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.location != nil {
		return a.location, nil
	}

	rc := a.cfg.ReferenceConfig

	policy, err := location.PolicyByName(rc.MatchPolicy)
	if err != nil {
		return nil, err
	}

	src, err := refsource.Open(ctx, &rc, a.log)
	if err != nil {
		return nil, err
	}

	a.refs = src
	a.location = location.NewLocationService(src, a.repo, rc.Auxiliary, policy, a.log)

	return a.location, nil
}

func (a *App) Stats(ctx context.Context) (*entity.Stats, error) {
	if a.repo == nil {
		return nil, common.ErrRedisUnavailable
	}

	return counter.NewCounterService(a.repo, a.log).Stats(ctx)
}

func (a *App) HTMLRenderer() (httphandler.ReportRenderer, error) {
	return report.NewHTMLRenderer(a.cfg.ReportConfig.HeaderFileName, a.log)
}

// Serve runs the http api until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	renderer, err := a.HTMLRenderer()
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("GET /classify/{$}", httphandler.NewClassifyHandler(a, a.log))
	mux.Handle("GET /report/{$}", httphandler.NewReportHandler(a, renderer, a.log))
	mux.Handle("GET /stat/{$}", httphandler.NewCounterHandler(a, a.log))

	srv := &http.Server{
		Addr:    a.cfg.Listen,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("Start listen", slog.String("addr", a.cfg.Listen))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("Could not serve", slog.String("listen_addr", a.cfg.Listen), slog.Any("error", err))
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("cannot shutdown server: %w", err)
	}

	return nil
}

func (a *App) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.refs != nil {
		if err := a.refs.Close(); err != nil {
			a.log.Warn("Cannot close reference db", slog.Any("error", err))
		}
	}

	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Warn("Cannot close redis client", slog.Any("error", err))
		}
	}
}
