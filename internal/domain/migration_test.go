package domain

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Vovarama1992/hope/internal/infra"
	"github.com/Vovarama1992/hope/internal/models"
	"github.com/Vovarama1992/hope/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRecording(t *testing.T, dir, name, data string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func newTestSweeper(repo ports.MediaRepository, dataDir string) *Sweeper {
	log := testLogger()
	return NewSweeper(repo, NewNotifier(repo, log), log, dataDir, filepath.Join(dataDir, "recordings"))
}

func TestSweeper_AttachesToLegacyEntry(t *testing.T) {
	ctx := context.Background()
	dataDir := t.TempDir()
	recDir := filepath.Join(dataDir, "recordings")
	repo := infra.NewMemoryMediaRepo()

	// written on windows by an older build
	legacy := repo.Seed(&models.Media{
		URL:   "https://youtube.com/watch?v=legacy1",
		Title: "Legacy",
		State: models.OnDisk{LocalPath: `recordings\legacy1.webm`},
	}, nil)
	path := writeRecording(t, recDir, "legacy1.webm", "old bytes")

	rep, err := newTestSweeper(repo, dataDir).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Scanned)
	assert.Equal(t, 1, rep.Attached)
	assert.Zero(t, rep.Created)
	assert.NoError(t, rep.Err)

	got, err := repo.Get(ctx, legacy.ID)
	require.NoError(t, err)
	s, ok := got.Stored()
	require.True(t, ok)
	assert.Equal(t, ".webm", s.Extension)
	assert.EqualValues(t, len("old bytes"), s.Size)
	_, hasPath := got.LegacyPath()
	assert.False(t, hasPath)
	assert.NoFileExists(t, path)
}

func TestSweeper_CreatesOrphan(t *testing.T) {
	ctx := context.Background()
	dataDir := t.TempDir()
	repo := infra.NewMemoryMediaRepo()
	path := writeRecording(t, filepath.Join(dataDir, "recordings"), "Café_Live_Set.m4a", "abc")

	rep, err := newTestSweeper(repo, dataDir).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Created)
	assert.NoFileExists(t, path)

	orphan, err := repo.FindByURL(ctx, "https://youtube.com/watch?v=Café_Live_Set")
	require.NoError(t, err)
	assert.Equal(t, "Café Live Set", orphan.Title)
	assert.True(t, orphan.IsDownloaded())
	assert.Empty(t, orphan.Hashtags)

	p, err := repo.Payload(ctx, orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, ".m4a", p.Extension)
}

func TestSweeper_SkipsStoredAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	dataDir := t.TempDir()
	recDir := filepath.Join(dataDir, "recordings")
	repo := infra.NewMemoryMediaRepo()

	stored := repo.Seed(&models.Media{URL: "https://youtube.com/watch?v=done"}, &models.Payload{Data: []byte("kept"), Extension: ".webm"})
	stale := writeRecording(t, recDir, "done.webm", "stale copy")
	writeRecording(t, recDir, "fresh.webm", "fresh")

	sweeper := newTestSweeper(repo, dataDir)

	rep, err := sweeper.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Skipped)
	assert.Equal(t, 1, rep.Created)
	assert.FileExists(t, stale)

	before, err := repo.List(ctx)
	require.NoError(t, err)

	rep, err = sweeper.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Skipped)
	assert.Zero(t, rep.Created+rep.Attached)

	after, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	p, err := repo.Payload(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, "kept", string(p.Data))
}

func TestSweeper_AttachesToPendingEntryWithSameURL(t *testing.T) {
	ctx := context.Background()
	dataDir := t.TempDir()
	repo := infra.NewMemoryMediaRepo()
	pending := mustInsert(t, repo, "https://youtube.com/watch?v=abc")
	writeRecording(t, filepath.Join(dataDir, "recordings"), "abc.webm", "x")

	rep, err := newTestSweeper(repo, dataDir).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Attached)

	got, err := repo.Get(ctx, pending.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDownloaded())
}

func TestSweeper_ContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	dataDir := t.TempDir()
	recDir := filepath.Join(dataDir, "recordings")
	repo := &flakyRepo{
		MemoryMediaRepo: infra.NewMemoryMediaRepo(),
		insertErr:       map[string]error{"https://youtube.com/watch?v=broken": errStoreDown},
	}
	broken := writeRecording(t, recDir, "broken.webm", "x")
	ok := writeRecording(t, recDir, "ok.webm", "y")
	require.NoError(t, os.Mkdir(filepath.Join(recDir, "subdir"), 0o755))

	rep, err := newTestSweeper(repo, dataDir).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Scanned)
	assert.Equal(t, 1, rep.Created)
	assert.Equal(t, 1, rep.Failed())
	assert.ErrorIs(t, rep.Err, errStoreDown)

	assert.FileExists(t, broken)
	assert.NoFileExists(t, ok)
}

func TestSweeper_MissingDirectory(t *testing.T) {
	rep, err := newTestSweeper(infra.NewMemoryMediaRepo(), t.TempDir()).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, rep.Scanned)
}

func TestSweeper_LegacyPaths(t *testing.T) {
	s := &Sweeper{dataDir: "/app", recordingsDir: "/app/recordings"}
	assert.Equal(t, []string{"recordings/a b.webm", `recordings\a b.webm`}, s.legacyPaths("a b.webm"))

	s = &Sweeper{dataDir: "/elsewhere", recordingsDir: "/data/recordings"}
	assert.Equal(t, []string{"recordings/x.m4a", `recordings\x.m4a`}, s.legacyPaths("x.m4a"))
}

func TestSweeper_Cleanup(t *testing.T) {
	ctx := context.Background()
	repo := infra.NewMemoryMediaRepo()
	repo.Seed(&models.Media{URL: "a", State: models.OnDisk{LocalPath: "recordings/a.webm"}}, nil)

	sweeper := newTestSweeper(repo, t.TempDir())
	n, err := sweeper.Cleanup(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = sweeper.Cleanup(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOrphanTitle(t *testing.T) {
	assert.Equal(t, "my old song", OrphanTitle("my_old_song.webm"))
	assert.Equal(t, "no ext", OrphanTitle("no_ext"))
}
