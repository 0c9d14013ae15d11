package stations

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/hope/internal/models"
	"github.com/Vovarama1992/hope/internal/ports"
)

// StoreFunc persists a payload read from disk.
type StoreFunc func(ctx context.Context, payload *models.Payload) error

// S4AbsorbPayload moves a file from disk into the store.
type S4AbsorbPayload struct {
	log *logger.ZapLogger
}

func NewS4AbsorbPayload(log *logger.ZapLogger) *S4AbsorbPayload {
	return &S4AbsorbPayload{log: log}
}

// Run reads path fully, hands the payload to store and removes the file
// only once store succeeded. A failed store leaves the file in place.
func (s *S4AbsorbPayload) Run(ctx context.Context, path string, store StoreFunc) (*models.Payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ports.ErrIOFailure, path, err)
	}

	payload := &models.Payload{
		Data:      data,
		Extension: strings.ToLower(filepath.Ext(path)),
	}

	if err := store(ctx, payload); err != nil {
		return nil, err
	}

	if err := os.Remove(path); err != nil {
		// payload is safe in the store; a leftover file is only clutter
		s.log.Log(logger.LogEntry{
			Level:   "warn",
			Message: "stored payload but could not remove file",
			Error:   err,
			Fields:  map[string]any{"path": path},
		})
	}
	return payload, nil
}
