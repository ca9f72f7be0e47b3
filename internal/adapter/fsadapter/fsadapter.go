package fsadapter

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/jgivc/fetchguard/internal/common"
	"github.com/jgivc/fetchguard/internal/entity"
	"github.com/spf13/afero"
)

// PartialPredicate reports whether a directory entry is a download still in progress.
type PartialPredicate func(name string) bool

// SuffixPredicate matches names ending with any of suffixes. Matching is case-insensitive
// since some agents upper-case the extension on Windows shares.
func SuffixPredicate(suffixes ...string) PartialPredicate {
	lowered := make([]string, 0, len(suffixes))
	for _, suffix := range suffixes {
		if suffix = strings.TrimSpace(suffix); suffix != "" {
			lowered = append(lowered, strings.ToLower(suffix))
		}
	}

	return func(name string) bool {
		name = strings.ToLower(name)
		for _, suffix := range lowered {
			if strings.HasSuffix(name, suffix) {
				return true
			}
		}

		return false
	}
}

type fsAdapter struct {
	fs      afero.Fs
	partial PartialPredicate
	log     *slog.Logger
}

func NewFSAdapter(partial PartialPredicate, log *slog.Logger) *fsAdapter {
	return NewFSAdapterWithFS(afero.NewOsFs(), partial, log)
}

func NewFSAdapterWithFS(fs afero.Fs, partial PartialPredicate, log *slog.Logger) *fsAdapter {
	if partial == nil {
		partial = func(string) bool { return false }
	}

	return &fsAdapter{
		fs:      fs,
		partial: partial,
		log:     log.With(slog.String("item", "FSAdapter")),
	}
}

// IsPartial reports whether name would be taken for a download in progress.
func (a *fsAdapter) IsPartial(name string) bool {
	return a.partial(name)
}

// CheckDir fails with common.ErrConfiguration when dir is missing, unreadable or a file.
func (a *fsAdapter) CheckDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("%w: download directory is not set", common.ErrConfiguration)
	}

	stat, err := a.fs.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: cannot access download directory %s: %w", common.ErrConfiguration, dir, err)
	}

	if !stat.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", common.ErrConfiguration, dir)
	}

	return nil
}

// Snapshot lists dir once and splits the entries. Both halves come from the same listing.
func (a *fsAdapter) Snapshot(dir string) (*entity.DirectorySnapshot, error) {
	entries, err := afero.ReadDir(a.fs, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: cannot list download directory %s: %w", common.ErrConfiguration, dir, err)
		}

		return nil, fmt.Errorf("cannot list download directory %s: %w", dir, err)
	}

	snapshot := entity.NewDirectorySnapshot()
	for _, entry := range entries {
		name := entry.Name()

		switch {
		case a.partial(name):
			snapshot.InProgress[name] = struct{}{}
		case entry.IsDir():
			continue
		default:
			snapshot.Completed[name] = struct{}{}
		}
	}

	a.log.Debug("Snapshot", slog.String("dir", dir), slog.Int("completed", len(snapshot.Completed)), slog.Int("in_progress", len(snapshot.InProgress)))

	return snapshot, nil
}
