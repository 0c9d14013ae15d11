package models

import "strings"

// Payload is the downloaded binary content of an entry.
type Payload struct {
	Data      []byte
	Extension string // with leading dot, e.g. ".m4a"
}

func (p *Payload) Size() int64 { return int64(len(p.Data)) }

// FormatClass selects what the downloader is asked for.
type FormatClass string

const (
	FormatAudio FormatClass = "audio"
	FormatVideo FormatClass = "video"
)

// provenance tags
const (
	TagAudioOnly = "audioonly"
	TagFullMedia = "fullmedia"
)

func (f FormatClass) Valid() bool {
	return f == FormatAudio || f == FormatVideo
}

// Spec is the yt-dlp format selector for the class.
func (f FormatClass) Spec() string {
	if f == FormatVideo {
		return "best[ext=mp4]/best"
	}
	return "bestaudio/best"
}

// ProvenanceTag is the hashtag added once a payload of this class is attached.
func (f FormatClass) ProvenanceTag() string {
	if f == FormatVideo {
		return TagFullMedia
	}
	return TagAudioOnly
}

// ContentType maps a stored file extension to the served MIME type.
func ContentType(ext string) string {
	switch strings.ToLower(ext) {
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "audio/webm"
	case ".m4a":
		return "audio/mp4"
	default:
		return "audio/mpeg"
	}
}
