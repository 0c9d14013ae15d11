package domain

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Vovarama1992/hope/internal/ports"
)

// RecordingsDir manages files in the legacy recordings directory, which
// is still written by in-app recordings until the next sweep absorbs them.
type RecordingsDir struct {
	dir string
	now func() time.Time
}

func NewRecordingsDir(dir string) *RecordingsDir {
	return &RecordingsDir{dir: dir, now: time.Now}
}

func (r *RecordingsDir) Dir() string { return r.dir }

// Save writes data as "<sanitized title>.webm" and returns the file name.
func (r *RecordingsDir) Save(title string, data []byte) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ports.ErrIOFailure, err)
	}

	name := SanitizeTitle(title)
	if name == "" {
		name = strconv.FormatInt(r.now().UnixMilli(), 10)
	}
	name += ".webm"

	if err := os.WriteFile(filepath.Join(r.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("%w: %v", ports.ErrIOFailure, err)
	}
	return name, nil
}

func (r *RecordingsDir) List() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrIOFailure, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (r *RecordingsDir) Remove(name string) error {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: recording name %q", ports.ErrInvalidIdentifier, name)
	}

	err := os.Remove(filepath.Join(r.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return ports.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ports.ErrIOFailure, err)
	}
	return nil
}

// SanitizeTitle replaces everything but ASCII letters and digits with '_'.
func SanitizeTitle(title string) string {
	return strings.Map(func(r rune) rune {
		if r < 128 && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, title)
}
