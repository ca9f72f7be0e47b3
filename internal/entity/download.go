package entity

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
)

// DownloadTarget is the directory a download lands in and the name it will have once done.
type DownloadTarget struct {
	Dir              string
	ExpectedFilename string
}

// FilenameFromURL returns the last segment of the link target path. It is the name the
// browser gives the completed download.
func FilenameFromURL(href string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("cannot parse link %q: %w", href, err)
	}

	if u.Path == "" || strings.HasSuffix(u.Path, "/") {
		return "", fmt.Errorf("link %q has no file name", href)
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return "", fmt.Errorf("link %q has no file name", href)
	}

	return name, nil
}

// DirectorySnapshot is one listing of a download directory split into finished files and
// in-progress markers.
type DirectorySnapshot struct {
	Completed  map[string]struct{}
	InProgress map[string]struct{}
}

func NewDirectorySnapshot() *DirectorySnapshot {
	return &DirectorySnapshot{
		Completed:  make(map[string]struct{}),
		InProgress: make(map[string]struct{}),
	}
}

// Complete reports whether name is present and no partial artifact of any name remains.
func (s *DirectorySnapshot) Complete(name string) bool {
	if s == nil {
		return false
	}

	_, exists := s.Completed[name]

	return exists && len(s.InProgress) == 0
}

// FetchRecord describes one finished trigger-and-wait run.
type FetchRecord struct {
	ID       string        `json:"id"`
	PageURL  string        `json:"page_url"`
	Path     string        `json:"path"`
	Ticks    int           `json:"ticks"`
	Elapsed  time.Duration `json:"elapsed"`
	Finished time.Time     `json:"finished"`
}
