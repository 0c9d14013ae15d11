package infra

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Vovarama1992/hope/internal/models"
	"github.com/Vovarama1992/hope/internal/ports"
	"github.com/google/uuid"
)

var (
	_ ports.MediaRepository = (*MemoryMediaRepo)(nil)
	_ ports.MediaRepository = (*MongoMediaRepo)(nil)
	_ ports.MediaRepository = (*PostgresMediaRepo)(nil)
)

type memoryRecord struct {
	media   *models.Media
	payload *models.Payload
}

// MemoryMediaRepo keeps everything in process. Used for local runs
// without a database and by tests.
type MemoryMediaRepo struct {
	mu      sync.RWMutex
	records map[string]*memoryRecord
	now     func() time.Time
	last    time.Time
}

func NewMemoryMediaRepo() *MemoryMediaRepo {
	return &MemoryMediaRepo{
		records: make(map[string]*memoryRecord),
		now:     time.Now,
	}
}

func parseUUID(id string) (uuid.UUID, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ports.ErrInvalidIdentifier, id)
	}
	return u, nil
}

func (r *MemoryMediaRepo) Get(ctx context.Context, id string) (*models.Media, error) {
	if _, err := parseUUID(id); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return rec.media.Clone(), nil
}

func (r *MemoryMediaRepo) FindByURL(ctx context.Context, url string) (*models.Media, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.records {
		if rec.media.URL == url {
			return rec.media.Clone(), nil
		}
	}
	return nil, ports.ErrNotFound
}

func (r *MemoryMediaRepo) FindByLegacyPath(ctx context.Context, paths ...string) (*models.Media, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.records {
		if p, ok := rec.media.LegacyPath(); ok && slices.Contains(paths, p) {
			return rec.media.Clone(), nil
		}
	}
	return nil, ports.ErrNotFound
}

func (r *MemoryMediaRepo) Insert(ctx context.Context, media *models.Media, payload *models.Payload) (*models.Media, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.records {
		if rec.media.URL == media.URL {
			return nil, fmt.Errorf("%w: url %s", ports.ErrDuplicateKey, media.URL)
		}
	}

	m := media.Clone()
	m.ID = uuid.NewString()
	m.CreatedAt = r.tick()
	rec := &memoryRecord{media: m}

	if payload != nil {
		rec.payload = copyPayload(payload)
		m.State = models.Stored{Extension: payload.Extension, Size: payload.Size()}
	} else if m.State == nil {
		m.State = models.Pending{}
	}

	r.records[m.ID] = rec
	return m.Clone(), nil
}

func (r *MemoryMediaRepo) UpdateMetadata(ctx context.Context, id string, upd ports.MetadataUpdate) error {
	if _, err := parseUUID(id); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return ports.ErrNotFound
	}
	if upd.Title != nil {
		rec.media.Title = *upd.Title
	}
	for _, tag := range upd.AddHashtags {
		rec.media.Hashtags = models.AddHashtag(rec.media.Hashtags, tag)
	}
	return nil
}

func (r *MemoryMediaRepo) AttachPayload(ctx context.Context, id string, payload *models.Payload, tag string) error {
	if _, err := parseUUID(id); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return ports.ErrNotFound
	}
	rec.payload = copyPayload(payload)
	rec.media.State = models.Stored{Extension: payload.Extension, Size: payload.Size()}
	rec.media.Hashtags = models.AddHashtag(rec.media.Hashtags, tag)
	return nil
}

func (r *MemoryMediaRepo) Payload(ctx context.Context, id string) (*models.Payload, error) {
	if _, err := parseUUID(id); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok || rec.payload == nil {
		return nil, ports.ErrNotFound
	}
	return copyPayload(rec.payload), nil
}

func (r *MemoryMediaRepo) Delete(ctx context.Context, id string) error {
	if _, err := parseUUID(id); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; !ok {
		return ports.ErrNotFound
	}
	delete(r.records, id)
	return nil
}

func (r *MemoryMediaRepo) List(ctx context.Context) ([]*models.Media, error) {
	return r.Search(ctx, "")
}

func (r *MemoryMediaRepo) Search(ctx context.Context, query string) ([]*models.Media, error) {
	terms := strings.Fields(strings.ToLower(query))

	r.mu.RLock()
	out := make([]*models.Media, 0, len(r.records))
	for _, rec := range r.records {
		if len(terms) == 0 || matchesAny(rec.media, terms) {
			out = append(out, rec.media.Clone())
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// matchesAny mirrors a text index: any term hitting the title or a hashtag.
func matchesAny(m *models.Media, terms []string) bool {
	title := strings.ToLower(m.Title)
	for _, term := range terms {
		if strings.Contains(title, term) {
			return true
		}
		for _, tag := range m.Hashtags {
			if strings.EqualFold(tag, term) {
				return true
			}
		}
	}
	return false
}

func (r *MemoryMediaRepo) ClearLegacyPaths(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, rec := range r.records {
		if _, ok := rec.media.State.(models.OnDisk); ok {
			rec.media.State = models.Pending{}
			n++
		}
	}
	return n, nil
}

func (r *MemoryMediaRepo) Close(ctx context.Context) error { return nil }

// Seed inserts a record as-is, keeping its ID, CreatedAt and state. It
// exists to model documents written by older versions of the app.
func (r *MemoryMediaRepo) Seed(media *models.Media, payload *models.Payload) *models.Media {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := media.Clone()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = r.tick()
	}
	rec := &memoryRecord{media: m}
	if payload != nil {
		rec.payload = copyPayload(payload)
		m.State = models.Stored{Extension: payload.Extension, Size: payload.Size()}
	} else if m.State == nil {
		m.State = models.Pending{}
	}
	r.records[m.ID] = rec
	return m.Clone()
}

// tick keeps creation times strictly increasing so listings have a total order.
func (r *MemoryMediaRepo) tick() time.Time {
	t := r.now()
	if !t.After(r.last) {
		t = r.last.Add(time.Nanosecond)
	}
	r.last = t
	return t
}

func copyPayload(p *models.Payload) *models.Payload {
	return &models.Payload{
		Data:      append([]byte(nil), p.Data...),
		Extension: p.Extension,
	}
}
