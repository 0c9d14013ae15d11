package ports

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrDuplicateKey       = errors.New("duplicate key")
	ErrInvalidIdentifier  = errors.New("invalid identifier")
	ErrDownloadFailed     = errors.New("download failed")
	ErrDownloadIncomplete = errors.New("download incomplete")
	ErrDownloadInProgress = errors.New("download already in progress")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrIOFailure          = errors.New("io failure")
	ErrInvalidLink        = errors.New("invalid link")
)
