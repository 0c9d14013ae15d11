package infra

import (
	"context"
	"sync"
	"testing"

	"github.com/Vovarama1992/hope/internal/models"
	"github.com/Vovarama1992/hope/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepo_InsertRejectsDuplicateURL(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryMediaRepo()

	m, err := repo.Insert(ctx, &models.Media{URL: "https://youtube.com/watch?v=a", Title: "A"}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	assert.IsType(t, models.Pending{}, m.State)
	assert.False(t, m.CreatedAt.IsZero())

	_, err = repo.Insert(ctx, &models.Media{URL: "https://youtube.com/watch?v=a"}, nil)
	assert.ErrorIs(t, err, ports.ErrDuplicateKey)
}

func TestMemoryRepo_InsertWithPayloadIsStored(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryMediaRepo()

	m, err := repo.Insert(ctx, &models.Media{URL: "u"}, &models.Payload{Data: []byte("abcd"), Extension: ".webm"})
	require.NoError(t, err)

	s, ok := m.Stored()
	require.True(t, ok)
	assert.EqualValues(t, 4, s.Size)

	p, err := repo.Payload(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcd"), p.Data)
	assert.Equal(t, s.Size, p.Size())
}

func TestMemoryRepo_AttachPayload(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryMediaRepo()

	m, err := repo.Insert(ctx, &models.Media{URL: "u", Hashtags: []string{"x"}}, nil)
	require.NoError(t, err)

	_, err = repo.Payload(ctx, m.ID)
	assert.ErrorIs(t, err, ports.ErrNotFound)

	payload := &models.Payload{Data: []byte("123"), Extension: ".m4a"}
	require.NoError(t, repo.AttachPayload(ctx, m.ID, payload, models.TagAudioOnly))
	require.NoError(t, repo.AttachPayload(ctx, m.ID, payload, models.TagAudioOnly))

	got, err := repo.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDownloaded())
	assert.Equal(t, []string{"x", models.TagAudioOnly}, got.Hashtags)

	payload.Data[0] = '9'
	p, err := repo.Payload(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("123"), p.Data)
}

func TestMemoryRepo_AttachPayloadClearsLegacyPath(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryMediaRepo()

	legacy := repo.Seed(&models.Media{URL: "u", State: models.OnDisk{LocalPath: "recordings/a.webm"}}, nil)

	found, err := repo.FindByLegacyPath(ctx, `recordings\a.webm`, "recordings/a.webm")
	require.NoError(t, err)
	assert.Equal(t, legacy.ID, found.ID)

	require.NoError(t, repo.AttachPayload(ctx, legacy.ID, &models.Payload{Data: []byte("a"), Extension: ".webm"}, ""))

	_, err = repo.FindByLegacyPath(ctx, "recordings/a.webm")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestMemoryRepo_InvalidIdentifier(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryMediaRepo()

	_, err := repo.Get(ctx, "not-an-id")
	assert.ErrorIs(t, err, ports.ErrInvalidIdentifier)
	assert.ErrorIs(t, repo.Delete(ctx, "nope"), ports.ErrInvalidIdentifier)

	_, err = repo.Get(ctx, "6c1f6f7e-7c55-4e34-9e88-6d2d1b7d3b10")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestMemoryRepo_UpdateMetadataAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryMediaRepo()

	m, err := repo.Insert(ctx, &models.Media{URL: "u", Title: "old"}, nil)
	require.NoError(t, err)

	title := "new"
	require.NoError(t, repo.UpdateMetadata(ctx, m.ID, ports.MetadataUpdate{Title: &title, AddHashtags: []string{"a", "a", "b"}}))

	got, err := repo.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Title)
	assert.Equal(t, []string{"a", "b"}, got.Hashtags)

	require.NoError(t, repo.Delete(ctx, m.ID))
	assert.ErrorIs(t, repo.Delete(ctx, m.ID), ports.ErrNotFound)
}

func TestMemoryRepo_SearchAndOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryMediaRepo()

	first, err := repo.Insert(ctx, &models.Media{URL: "1", Title: "Morning Jazz"}, nil)
	require.NoError(t, err)
	second, err := repo.Insert(ctx, &models.Media{URL: "2", Title: "Evening talk", Hashtags: []string{"jazz"}}, nil)
	require.NoError(t, err)
	_, err = repo.Insert(ctx, &models.Media{URL: "3", Title: "Rock"}, nil)
	require.NoError(t, err)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "3", all[0].URL)

	hits, err := repo.Search(ctx, "JAZZ")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, second.ID, hits[0].ID)
	assert.Equal(t, first.ID, hits[1].ID)
}

func TestMemoryRepo_ClearLegacyPaths(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryMediaRepo()

	repo.Seed(&models.Media{URL: "a", State: models.OnDisk{LocalPath: "recordings/a.webm"}}, nil)
	repo.Seed(&models.Media{URL: "b", State: models.OnDisk{LocalPath: "recordings/b.webm"}}, nil)
	repo.Seed(&models.Media{URL: "c"}, &models.Payload{Data: []byte("c"), Extension: ".webm"})

	n, err := repo.ClearLegacyPaths(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = repo.ClearLegacyPaths(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryRepo_ConcurrentHashtags(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryMediaRepo()

	m, err := repo.Insert(ctx, &models.Media{URL: "u"}, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, tag := range []string{"a", "b", "c", "d", "a", "b"} {
		wg.Add(1)
		go func(tag string) {
			defer wg.Done()
			assert.NoError(t, repo.UpdateMetadata(ctx, m.ID, ports.MetadataUpdate{AddHashtags: []string{tag}}))
		}(tag)
	}
	wg.Wait()

	got, err := repo.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, got.Hashtags)
}
