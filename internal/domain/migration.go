package domain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/hope/internal/domain/stations"
	"github.com/Vovarama1992/hope/internal/models"
	"github.com/Vovarama1992/hope/internal/ports"
	"go.uber.org/multierr"
	"golang.org/x/text/unicode/norm"
)

const orphanURLPrefix = "https://youtube.com/watch?v="

// SweepReport summarizes one pass of the sweeper. Err aggregates the
// per-file failures; the files involved stay on disk.
type SweepReport struct {
	Scanned  int
	Attached int
	Created  int
	Skipped  int
	Err      error
}

func (r *SweepReport) Failed() int { return len(multierr.Errors(r.Err)) }

// Sweeper folds files from the legacy recordings directory into the store.
type Sweeper struct {
	repo     ports.MediaRepository
	s4       *stations.S4AbsorbPayload
	notifier *Notifier
	log      *logger.ZapLogger

	dataDir       string
	recordingsDir string
}

func NewSweeper(repo ports.MediaRepository, notifier *Notifier, log *logger.ZapLogger, dataDir, recordingsDir string) *Sweeper {
	return &Sweeper{
		repo:          repo,
		s4:            stations.NewS4AbsorbPayload(log),
		notifier:      notifier,
		log:           log,
		dataDir:       dataDir,
		recordingsDir: recordingsDir,
	}
}

// Run scans the recordings directory once. A file that fails is logged
// and left in place; the sweep goes on with the next one. Running it again
// is safe: absorbed files are gone and stored entries are skipped.
func (s *Sweeper) Run(ctx context.Context) (*SweepReport, error) {
	rep := &SweepReport{}

	entries, err := os.ReadDir(s.recordingsDir)
	if errors.Is(err, os.ErrNotExist) {
		return rep, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ports.ErrIOFailure, s.recordingsDir, err)
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			rep.Err = multierr.Append(rep.Err, err)
			break
		}
		if !e.Type().IsRegular() {
			continue
		}
		rep.Scanned++

		if err := s.sweepOne(ctx, e.Name(), rep); err != nil {
			s.log.Log(logger.LogEntry{
				Level:   "error",
				Message: "migrate file",
				Error:   err,
				Fields:  map[string]any{"file": e.Name()},
			})
			rep.Err = multierr.Append(rep.Err, fmt.Errorf("%s: %w", e.Name(), err))
		}
	}

	s.log.Log(logger.LogEntry{
		Level:   "info",
		Message: "migration sweep done",
		Fields: map[string]any{
			"scanned":  rep.Scanned,
			"attached": rep.Attached,
			"created":  rep.Created,
			"skipped":  rep.Skipped,
			"failed":   rep.Failed(),
		},
	})

	if rep.Attached+rep.Created > 0 {
		s.notifier.LibraryChanged(ctx)
	}
	return rep, nil
}

func (s *Sweeper) sweepOne(ctx context.Context, name string, rep *SweepReport) error {
	path := filepath.Join(s.recordingsDir, name)

	entry, err := s.repo.FindByLegacyPath(ctx, s.legacyPaths(name)...)
	switch {
	case err == nil:
		if entry.IsDownloaded() {
			rep.Skipped++
			return nil
		}
		if err := s.attach(ctx, entry.ID, path); err != nil {
			return err
		}
		rep.Attached++
		return nil
	case !errors.Is(err, ports.ErrNotFound):
		return err
	}

	stem := strings.TrimSuffix(name, filepath.Ext(name))
	url := orphanURLPrefix + stem

	// an entry registered for the same url but never downloaded takes the file
	existing, err := s.repo.FindByURL(ctx, url)
	switch {
	case err == nil && existing.IsDownloaded():
		rep.Skipped++
		return nil
	case err == nil:
		if err := s.attach(ctx, existing.ID, path); err != nil {
			return err
		}
		rep.Attached++
		return nil
	case !errors.Is(err, ports.ErrNotFound):
		return err
	}

	orphan := &models.Media{
		URL:      url,
		Title:    OrphanTitle(name),
		Hashtags: []string{},
	}
	_, err = s.s4.Run(ctx, path, func(ctx context.Context, p *models.Payload) error {
		_, err := s.repo.Insert(ctx, orphan, p)
		return err
	})
	if err != nil {
		return err
	}
	rep.Created++
	return nil
}

func (s *Sweeper) attach(ctx context.Context, id, path string) error {
	_, err := s.s4.Run(ctx, path, func(ctx context.Context, p *models.Payload) error {
		return s.repo.AttachPayload(ctx, id, p, "")
	})
	return err
}

// legacyPaths lists the forms a localPath for name may have been written
// in: relative to the data dir, with either separator.
func (s *Sweeper) legacyPaths(name string) []string {
	rel, err := filepath.Rel(s.dataDir, filepath.Join(s.recordingsDir, name))
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Join(filepath.Base(s.recordingsDir), name)
	}
	slash := filepath.ToSlash(rel)
	back := strings.ReplaceAll(slash, "/", `\`)
	if slash == back {
		return []string{slash}
	}
	return []string{slash, back}
}

// Cleanup drops the legacy localPath from every entry that still has one.
func (s *Sweeper) Cleanup(ctx context.Context) (int64, error) {
	n, err := s.repo.ClearLegacyPaths(ctx)
	if err != nil {
		return 0, err
	}
	s.log.Log(logger.LogEntry{
		Level:   "info",
		Message: "cleared legacy localPath",
		Fields:  map[string]any{"entries": n},
	})
	if n > 0 {
		s.notifier.LibraryChanged(ctx)
	}
	return n, nil
}

// OrphanTitle derives a display title from a recording file name.
func OrphanTitle(name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return norm.NFC.String(strings.ReplaceAll(stem, "_", " "))
}
