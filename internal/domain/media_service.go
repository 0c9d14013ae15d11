package domain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/hope/internal/models"
	"github.com/Vovarama1992/hope/internal/ports"
)

var (
	_ ports.MediaService = (*MediaService)(nil)
	_ ports.Intake       = (*IntakeService)(nil)
	_ ports.EventSource  = (*Notifier)(nil)
	_ ports.Recordings   = (*RecordingsDir)(nil)
)

// MediaService implements the control operations used by the HTTP API.
// Every caller-visible change publishes exactly one library snapshot.
type MediaService struct {
	repo      ports.MediaRepository
	meta      ports.MetadataResolver
	downloads *Downloader
	notifier  *Notifier
	log       *logger.ZapLogger
	dataDir   string
}

func NewMediaService(
	repo ports.MediaRepository,
	meta ports.MetadataResolver,
	downloads *Downloader,
	notifier *Notifier,
	log *logger.ZapLogger,
	dataDir string,
) *MediaService {
	return &MediaService{
		repo:      repo,
		meta:      meta,
		downloads: downloads,
		notifier:  notifier,
		log:       log,
		dataDir:   dataDir,
	}
}

func (s *MediaService) Library(ctx context.Context) (*ports.LibrarySnapshot, error) {
	return Snapshot(ctx, s.repo)
}

func (s *MediaService) Search(ctx context.Context, query string) ([]*models.Media, error) {
	return s.repo.Search(ctx, strings.TrimSpace(query))
}

// StoreLink registers url unless it is already known. The bool reports
// whether a new entry was created.
func (s *MediaService) StoreLink(ctx context.Context, url, title string) (*models.Media, bool, error) {
	url = strings.TrimSpace(url)
	if !strings.HasPrefix(url, "http") {
		return nil, false, fmt.Errorf("%w: %q", ports.ErrInvalidLink, url)
	}

	if existing, err := s.repo.FindByURL(ctx, url); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, ports.ErrNotFound) {
		return nil, false, err
	}

	if title = strings.TrimSpace(title); title == "" {
		title = s.FetchTitle(ctx, url)
	}

	m, err := s.repo.Insert(ctx, &models.Media{URL: url, Title: title, Hashtags: []string{}}, nil)
	if errors.Is(err, ports.ErrDuplicateKey) {
		existing, ferr := s.repo.FindByURL(ctx, url)
		if ferr != nil {
			return nil, false, ferr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	s.log.Log(logger.LogEntry{
		Level:   "info",
		Message: "link stored",
		Fields:  map[string]any{"mediaID": m.ID, "title": m.Title},
	})
	s.notifier.LibraryChanged(ctx)
	return m, true, nil
}

func (s *MediaService) RenameLink(ctx context.Context, url, newTitle string) error {
	m, err := s.repo.FindByURL(ctx, url)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateMetadata(ctx, m.ID, ports.MetadataUpdate{Title: &newTitle}); err != nil {
		return err
	}
	s.notifier.LibraryChanged(ctx)
	return nil
}

// DeleteMedia removes a still referenced legacy file first, then the record.
// If the file cannot be removed the record is kept.
func (s *MediaService) DeleteMedia(ctx context.Context, id string) error {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if p, ok := m.LegacyPath(); ok {
		if err := s.removeLegacyFile(p); err != nil {
			return err
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.log.Log(logger.LogEntry{
		Level:   "info",
		Message: "media deleted",
		Fields:  map[string]any{"mediaID": id},
	})
	s.notifier.LibraryChanged(ctx)
	return nil
}

func (s *MediaService) removeLegacyFile(localPath string) error {
	path, err := resolveLegacyPath(s.dataDir, localPath)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("%w: remove %s: %v", ports.ErrIOFailure, path, err)
}

// resolveLegacyPath maps a stored localPath, written with either separator,
// onto dataDir. Paths escaping dataDir are refused.
func resolveLegacyPath(dataDir, localPath string) (string, error) {
	rel := filepath.FromSlash(strings.ReplaceAll(localPath, `\`, "/"))
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: absolute legacy path %q", ports.ErrIOFailure, localPath)
	}
	path := filepath.Join(dataDir, rel)
	if r, err := filepath.Rel(dataDir, path); err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: legacy path %q escapes data dir", ports.ErrIOFailure, localPath)
	}
	return path, nil
}

// AddHashtag adds tag (without a leading '#') unless already present.
func (s *MediaService) AddHashtag(ctx context.Context, id, tag string) error {
	tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
	if tag == "" {
		_, err := s.repo.Get(ctx, id)
		return err
	}
	if err := s.repo.UpdateMetadata(ctx, id, ports.MetadataUpdate{AddHashtags: []string{tag}}); err != nil {
		return err
	}
	s.notifier.LibraryChanged(ctx)
	return nil
}

func (s *MediaService) Download(ctx context.Context, id string, class models.FormatClass) error {
	return s.downloads.Download(ctx, id, class)
}

func (s *MediaService) StartDownload(ctx context.Context, id string, class models.FormatClass) error {
	return s.downloads.Start(ctx, id, class)
}

// StreamURLDirect resolves a playable remote url without downloading.
func (s *MediaService) StreamURLDirect(ctx context.Context, url string) (string, error) {
	stream, err := s.meta.StreamURL(ctx, url)
	if err != nil {
		s.notifier.Debug(fmt.Sprintf("error getting stream url for %s: %v", url, err))
		return "", err
	}
	return stream, nil
}

// FetchTitle never fails: on error the url itself is the title.
func (s *MediaService) FetchTitle(ctx context.Context, url string) string {
	title, err := s.meta.Title(ctx, url)
	if err != nil {
		s.log.Log(logger.LogEntry{
			Level:   "warn",
			Message: "fetch title failed",
			Error:   err,
			Fields:  map[string]any{"url": url},
		})
		return url
	}
	return title
}

func (s *MediaService) Payload(ctx context.Context, id string) (*models.Payload, error) {
	return s.repo.Payload(ctx, id)
}
