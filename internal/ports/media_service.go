package ports

import (
	"context"

	"github.com/Vovarama1992/hope/internal/models"
)

type EventType string

const (
	EventLibraryUpdated EventType = "links-updated"
	EventLog            EventType = "debug-log"
)

// LibrarySnapshot is the full listing plus the byte total of downloaded entries.
type LibrarySnapshot struct {
	Media     []*models.Media `json:"media"`
	TotalSize int64           `json:"totalSize"`
}

// MediaEvent is what presentation layers receive. Library is set for
// EventLibraryUpdated, Message for EventLog.
type MediaEvent struct {
	Type EventType `json:"type"`
	*LibrarySnapshot
	Message string `json:"message,omitempty"`
}

// EventSource lets presentation layers subscribe to change events.
type EventSource interface {
	Subscribe() (<-chan MediaEvent, func())
}

// MediaService is the control boundary the UI and the bot consume.
type MediaService interface {
	Library(ctx context.Context) (*LibrarySnapshot, error)
	Search(ctx context.Context, query string) ([]*models.Media, error)
	StoreLink(ctx context.Context, url, title string) (*models.Media, bool, error)
	RenameLink(ctx context.Context, url, newTitle string) error
	DeleteMedia(ctx context.Context, id string) error
	AddHashtag(ctx context.Context, id, tag string) error
	// Download runs to completion; StartDownload returns once the download
	// is accepted and reports the outcome through events.
	Download(ctx context.Context, id string, class models.FormatClass) error
	StartDownload(ctx context.Context, id string, class models.FormatClass) error
	StreamURLDirect(ctx context.Context, url string) (string, error)
	FetchTitle(ctx context.Context, url string) string
	Payload(ctx context.Context, id string) (*models.Payload, error)
}

// Intake registers links arriving from the chat bot.
type Intake interface {
	Receive(ctx context.Context, sender, text string) error
}

// Recordings manages the legacy recordings directory.
type Recordings interface {
	Save(title string, data []byte) (string, error)
	List() ([]string, error)
	Remove(name string) error
	Dir() string
}
