// Package watermark provides the file and database watermark stores.
package watermark

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	core "github.com/tigerroll/tablesync/pkg/batch/core/watermark"
	"github.com/tigerroll/tablesync/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/tablesync/pkg/batch/support/util/logger"
)

const moduleName = "watermark"

// zonelessLayouts are accepted for files written without an offset; they are read in the
// store's location.
var zonelessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses an ISO-8601 timestamp. Values without an offset are in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range zonelessLayouts {
		if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// FormatTimestamp renders ts as RFC 3339 in UTC.
func FormatTimestamp(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339Nano)
}

// FileStore keeps the watermark as a single timestamp in a text file.
type FileStore struct {
	path string
	loc  *time.Location
}

// NewFileStore creates a FileStore for path. loc interprets timestamps written without an offset.
func NewFileStore(path string, loc *time.Location) *FileStore {
	if loc == nil {
		loc = time.UTC
	}
	return &FileStore{path: path, loc: loc}
}

// Get implements watermark.Store. A missing or empty file yields the zero time.
func (s *FileStore) Get(ctx context.Context) (time.Time, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Infof("No watermark file at %s; syncing from the beginning.", s.path)
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, exception.NewBatchError(moduleName, "failed to read watermark file "+s.path, err, false, true)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return time.Time{}, nil
	}
	ts, err := ParseTimestamp(text, s.loc)
	if err != nil {
		return time.Time{}, exception.NewBatchError(moduleName, "watermark file "+s.path+" is corrupt", errors.Join(exception.ErrInvalidConfiguration, err), false, false)
	}
	return ts, nil
}

// Set implements watermark.Store. The file is replaced by rename so readers never see a
// partial value.
func (s *FileStore) Set(ctx context.Context, ts time.Time) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return exception.NewBatchError(moduleName, "failed to write watermark", err, false, true)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(FormatTimestamp(ts) + "\n"); err != nil {
		_ = tmp.Close()
		return exception.NewBatchError(moduleName, "failed to write watermark", err, false, true)
	}
	if err := tmp.Close(); err != nil {
		return exception.NewBatchError(moduleName, "failed to write watermark", err, false, true)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return exception.NewBatchError(moduleName, "failed to replace watermark file "+s.path, err, false, true)
	}
	logger.Infof("Watermark set to %s.", FormatTimestamp(ts))
	return nil
}

var _ core.Store = (*FileStore)(nil)
