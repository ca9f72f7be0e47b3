package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/jgivc/fetchguard/internal/adapter/fsadapter"
	"github.com/jgivc/fetchguard/internal/common"
	"github.com/jgivc/fetchguard/internal/entity"
	"github.com/jgivc/fetchguard/internal/service/download"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const (
	unit = 20 * time.Millisecond
	dir  = "/downloads"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeDriver simulates a browser writing a partial file and renaming it when done.
type fakeDriver struct {
	fs       afero.Fs
	href     string
	clickErr error
	clicks   int
	mu       sync.Mutex
	// completeAfterClick is the click number whose download finishes. Earlier clicks stall.
	completeAfterClick int
}

func (d *fakeDriver) Open(context.Context, string) error {
	return nil
}

func (d *fakeDriver) ResolveLink(_ context.Context, text string) (string, error) {
	if d.href == "" {
		return "", common.ErrLinkNotFoundError
	}

	return d.href, nil
}

func (d *fakeDriver) ClickLink(ctx context.Context) error {
	d.mu.Lock()
	d.clicks++
	click := d.clicks
	d.mu.Unlock()

	if d.clickErr != nil {
		time.Sleep(unit)

		return d.clickErr
	}

	name, _ := entity.FilenameFromURL(d.href)
	partial := filepath.Join(dir, name+".crdownload")
	if err := afero.WriteFile(d.fs, partial, []byte("%PDF"), 0o644); err != nil {
		return err
	}

	if click < d.completeAfterClick {
		return nil
	}

	time.Sleep(2 * unit)

	return d.fs.Rename(partial, filepath.Join(dir, name))
}

func (d *fakeDriver) Clicks() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.clicks
}

type fakeRepo struct {
	records []*entity.FetchRecord
}

func (r *fakeRepo) SaveFetch(_ context.Context, rec *entity.FetchRecord) (int64, error) {
	r.records = append(r.records, rec)

	return int64(len(r.records)), nil
}

type fixture struct {
	fs      afero.Fs
	driver  *fakeDriver
	repo    *fakeRepo
	srv     *fetchService
	lockDir string
}

func newFixture(t *testing.T, driver *fakeDriver) *fixture {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(dir, os.ModeDir|0o755))

	driver.fs = fs
	lister := fsadapter.NewFSAdapterWithFS(fs, fsadapter.SuffixPredicate(".crdownload"), log)
	repo := &fakeRepo{}
	lockDir := t.TempDir()

	return &fixture{
		fs:      fs,
		driver:  driver,
		repo:    repo,
		srv:     NewFetchService(driver, download.NewDetectorService(lister, log), lister, repo, lockDir, log),
		lockDir: lockDir,
	}
}

func options() Options {
	return Options{
		PageURL:      "https://example.org/reports",
		LinkText:     "Annual report",
		Dir:          dir,
		Timeout:      20 * unit,
		PollInterval: unit,
	}
}

func TestFetch(t *testing.T) {
	f := newFixture(t, &fakeDriver{href: "/files/report.pdf"})

	rec, err := f.srv.Fetch(context.Background(), options())
	require.NoError(t, err)
	require.Equal(t, "/downloads/report.pdf", rec.Path)
	require.Equal(t, "https://example.org/reports", rec.PageURL)
	require.NotEmpty(t, rec.ID)
	require.Len(t, f.repo.records, 1)

	_, err = f.fs.Stat("/downloads/report.pdf.crdownload")
	require.True(t, os.IsNotExist(err))
}

func TestFetchClickFailureCancelsWait(t *testing.T) {
	clickErr := errors.New("element detached")
	f := newFixture(t, &fakeDriver{href: "/files/report.pdf", clickErr: clickErr})

	opts := options()
	opts.Timeout = time.Minute

	start := time.Now()
	_, err := f.srv.Fetch(context.Background(), opts)
	require.ErrorIs(t, err, clickErr)
	require.False(t, errors.Is(err, common.ErrTimeout))
	require.Less(t, time.Since(start), 5*time.Second)
	require.Empty(t, f.repo.records)
}

func TestFetchRetriesTimeout(t *testing.T) {
	f := newFixture(t, &fakeDriver{href: "/files/report.pdf", completeAfterClick: 2})

	opts := options()
	opts.Timeout = 5 * unit
	opts.Retries = 1

	rec, err := f.srv.Fetch(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, "/downloads/report.pdf", rec.Path)
	require.Equal(t, 2, f.driver.Clicks())
}

func TestFetchTimeoutWithoutRetries(t *testing.T) {
	f := newFixture(t, &fakeDriver{href: "/files/report.pdf", completeAfterClick: 2})

	opts := options()
	opts.Timeout = 5 * unit

	_, err := f.srv.Fetch(context.Background(), opts)

	var timeoutErr *download.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	require.Equal(t, "report.pdf", timeoutErr.Filename)
	require.Equal(t, 1, f.driver.Clicks())
}

func TestFetchFileAlreadyPresent(t *testing.T) {
	f := newFixture(t, &fakeDriver{href: "/files/report.pdf"})
	require.NoError(t, afero.WriteFile(f.fs, "/downloads/report.pdf", []byte("old"), 0o644))

	_, err := f.srv.Fetch(context.Background(), options())
	require.ErrorIs(t, err, common.ErrFileExistsError)
	require.Zero(t, f.driver.Clicks())
}

func TestFetchExpectedNameLooksPartial(t *testing.T) {
	f := newFixture(t, &fakeDriver{href: "/files/report.pdf.crdownload"})

	_, err := f.srv.Fetch(context.Background(), options())
	require.ErrorIs(t, err, common.ErrConfiguration)
	require.Zero(t, f.driver.Clicks())
}

func TestFetchLinkNotFound(t *testing.T) {
	f := newFixture(t, &fakeDriver{})

	_, err := f.srv.Fetch(context.Background(), options())
	require.ErrorIs(t, err, common.ErrLinkNotFoundError)
}

func TestFetchDirectoryLocked(t *testing.T) {
	f := newFixture(t, &fakeDriver{href: "/files/report.pdf"})

	held := flock.New(LockPath(f.lockDir, dir))
	ok, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer held.Unlock()

	_, err = f.srv.Fetch(context.Background(), options())
	require.ErrorIs(t, err, common.ErrDirectoryLockedError)
	require.Zero(t, f.driver.Clicks())
}

func TestLockPath(t *testing.T) {
	a := LockPath("/tmp", "/downloads")
	b := LockPath("/tmp", "/other")

	require.NotEqual(t, a, b)
	require.Equal(t, "/tmp", filepath.Dir(a))
	require.Equal(t, a, LockPath("/tmp", "/downloads"))
}
