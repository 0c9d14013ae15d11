package ports

import "context"

// MetadataResolver answers metadata-only queries against the external
// downloader without fetching media.
type MetadataResolver interface {
	Title(ctx context.Context, pageURL string) (string, error)
	// SourceID is the source's own stable identifier (e.g. a video id).
	SourceID(ctx context.Context, pageURL string) (string, error)
	// StreamURL is a directly playable remote url for the best audio.
	StreamURL(ctx context.Context, pageURL string) (string, error)
}

// MediaFetcher runs the external downloader process to completion.
type MediaFetcher interface {
	Fetch(ctx context.Context, pageURL, format, output string) error
}
