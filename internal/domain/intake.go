package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/hope/internal/models"
	"github.com/Vovarama1992/hope/internal/ports"
)

// IntakeService registers links sent by the single allowed chat.
type IntakeService struct {
	repo     ports.MediaRepository
	meta     ports.MetadataResolver
	notifier *Notifier
	log      *logger.ZapLogger
	allowed  string
}

func NewIntakeService(repo ports.MediaRepository, meta ports.MetadataResolver, notifier *Notifier, log *logger.ZapLogger, allowedSender string) *IntakeService {
	return &IntakeService{
		repo:     repo,
		meta:     meta,
		notifier: notifier,
		log:      log,
		allowed:  allowedSender,
	}
}

// Receive creates a pending entry for text if it is a new link. Known
// links are ignored without error.
func (s *IntakeService) Receive(ctx context.Context, sender, text string) error {
	if s.allowed == "" || sender != s.allowed {
		s.log.Log(logger.LogEntry{
			Level:   "warn",
			Message: "message from unauthorized chat",
			Fields:  map[string]any{"sender": sender},
		})
		return fmt.Errorf("%w: sender %s", ports.ErrUnauthorized, sender)
	}

	link := strings.TrimSpace(text)
	if !strings.HasPrefix(link, "http") {
		s.log.Log(logger.LogEntry{
			Level:   "info",
			Message: "invalid url or empty message",
			Fields:  map[string]any{"text": link},
		})
		return fmt.Errorf("%w: %q", ports.ErrInvalidLink, link)
	}

	_, err := s.repo.FindByURL(ctx, link)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ports.ErrNotFound) {
		return err
	}

	title, err := s.meta.Title(ctx, link)
	if err != nil {
		s.notifier.Debug(fmt.Sprintf("failed to process telegram link %s: %v", link, err))
		return err
	}

	m, err := s.repo.Insert(ctx, &models.Media{URL: link, Title: title, Hashtags: []string{}}, nil)
	if errors.Is(err, ports.ErrDuplicateKey) {
		return nil
	}
	if err != nil {
		return err
	}

	s.log.Log(logger.LogEntry{
		Level:   "info",
		Message: "link stored",
		Fields:  map[string]any{"mediaID": m.ID, "title": m.Title},
	})
	s.notifier.LibraryChanged(ctx)
	return nil
}
