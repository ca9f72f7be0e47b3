package common

import "fmt"

var (
	ErrConfiguration             = fmt.Errorf("configuration error")
	ErrTimeout                   = fmt.Errorf("timeout")
	ErrDirectoryLockedError      = fmt.Errorf("download directory is watched by another process")
	ErrLinkNotFoundError         = fmt.Errorf("link not found")
	ErrEmptyQueryError           = fmt.Errorf("empty location query")
	ErrReferenceSetsOverlapError = fmt.Errorf("primary and auxiliary reference sets overlap")
	ErrNoFiguresFoundError       = fmt.Errorf("no figures found")
	ErrFileExistsError           = fmt.Errorf("file already exists in download directory")
	ErrRedisUnavailable          = fmt.Errorf("redis is not available")
)
