package models

import (
	"encoding/json"
	"slices"
	"time"
)

// Media is one library entry. Exactly one of the State variants describes
// where its content lives.
type Media struct {
	ID        string    `json:"_id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Hashtags  []string  `json:"hashtags"`
	CreatedAt time.Time `json:"createdAt"`
	State     State     `json:"-"`
}

// State is a closed set: Pending, OnDisk, Stored.
type State interface {
	isState()
}

// Pending: link registered, nothing downloaded yet.
type Pending struct{}

// OnDisk is a legacy entry whose content still sits in the recordings
// directory. LocalPath is relative to the data dir, either separator.
type OnDisk struct {
	LocalPath string
}

// Stored means the payload lives in the store next to the metadata.
type Stored struct {
	Extension string
	Size      int64
}

func (Pending) isState() {}
func (OnDisk) isState()  {}
func (Stored) isState()  {}

func (m *Media) IsDownloaded() bool {
	_, ok := m.State.(Stored)
	return ok
}

// Stored returns the stored variant if the entry has a payload.
func (m *Media) Stored() (Stored, bool) {
	s, ok := m.State.(Stored)
	return s, ok
}

// LegacyPath returns the on-disk path of a not yet migrated entry.
func (m *Media) LegacyPath() (string, bool) {
	d, ok := m.State.(OnDisk)
	if !ok || d.LocalPath == "" {
		return "", false
	}
	return d.LocalPath, true
}

// HasHashtag reports whether tag is already on the entry.
func (m *Media) HasHashtag(tag string) bool {
	return slices.Contains(m.Hashtags, tag)
}

// AddHashtag appends tag unless present. Order of first insertion is kept.
func AddHashtag(tags []string, tag string) []string {
	if tag == "" || slices.Contains(tags, tag) {
		return tags
	}
	return append(tags, tag)
}

// Clone returns a deep copy so callers can't mutate store-owned slices.
func (m *Media) Clone() *Media {
	c := *m
	c.Hashtags = append([]string{}, m.Hashtags...)
	return &c
}

type mediaView struct {
	ID            string    `json:"_id"`
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	Hashtags      []string  `json:"hashtags"`
	CreatedAt     time.Time `json:"createdAt"`
	IsDownloaded  bool      `json:"isDownloaded"`
	FileExtension string    `json:"fileExtension,omitempty"`
	FileSize      int64     `json:"fileSize,omitempty"`
	LocalPath     string    `json:"localPath,omitempty"`
}

// MarshalJSON flattens the state into the field set the player UI reads.
func (m Media) MarshalJSON() ([]byte, error) {
	v := mediaView{
		ID:        m.ID,
		URL:       m.URL,
		Title:     m.Title,
		Hashtags:  m.Hashtags,
		CreatedAt: m.CreatedAt,
	}
	if v.Hashtags == nil {
		v.Hashtags = []string{}
	}
	switch s := m.State.(type) {
	case Stored:
		v.IsDownloaded = true
		v.FileExtension = s.Extension
		v.FileSize = s.Size
	case OnDisk:
		v.LocalPath = s.LocalPath
	}
	return json.Marshal(v)
}
