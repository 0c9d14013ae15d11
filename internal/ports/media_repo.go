package ports

import (
	"context"

	"github.com/Vovarama1992/hope/internal/models"
)

// MetadataUpdate is a partial update; nil / empty fields are left alone.
type MetadataUpdate struct {
	Title       *string
	AddHashtags []string
}

// MediaRepository is the media store: one record per source url, metadata
// plus an optional payload kept in the same record.
type MediaRepository interface {
	Get(ctx context.Context, id string) (*models.Media, error)
	FindByURL(ctx context.Context, url string) (*models.Media, error)
	// FindByLegacyPath matches entries whose localPath equals any of paths.
	FindByLegacyPath(ctx context.Context, paths ...string) (*models.Media, error)

	// Insert assigns ID and CreatedAt. A non-nil payload is stored in the
	// same write. Fails with ErrDuplicateKey when the url exists.
	Insert(ctx context.Context, media *models.Media, payload *models.Payload) (*models.Media, error)
	UpdateMetadata(ctx context.Context, id string, upd MetadataUpdate) error
	// AttachPayload sets payload, extension, size, isDownloaded, clears
	// localPath and adds tag (if non-empty) in one atomic write.
	AttachPayload(ctx context.Context, id string, payload *models.Payload, tag string) error
	Payload(ctx context.Context, id string) (*models.Payload, error)
	Delete(ctx context.Context, id string) error

	// List and Search never load payload bytes. Both sort by CreatedAt desc.
	List(ctx context.Context) ([]*models.Media, error)
	Search(ctx context.Context, query string) ([]*models.Media, error)

	// ClearLegacyPaths removes localPath from every entry having one.
	ClearLegacyPaths(ctx context.Context) (int64, error)

	Close(ctx context.Context) error
}
