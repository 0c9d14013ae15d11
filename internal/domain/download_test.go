package domain

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Vovarama1992/hope/internal/infra"
	"github.com/Vovarama1992/hope/internal/models"
	"github.com/Vovarama1992/hope/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type downloadFixture struct {
	repo     ports.MediaRepository
	notifier *Notifier
	fetcher  *fakeFetcher
	meta     *fakeMeta
	dl       *Downloader
	dir      string
}

func newDownloadFixture(t *testing.T, repo ports.MediaRepository, fetcher *fakeFetcher, cfg DownloaderConfig) *downloadFixture {
	t.Helper()
	if repo == nil {
		repo = infra.NewMemoryMediaRepo()
	}
	if cfg.OutDir == "" {
		cfg.OutDir = t.TempDir()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Minute
	}
	log := testLogger()
	notifier := NewNotifier(repo, log)
	meta := &fakeMeta{}
	return &downloadFixture{
		repo:     repo,
		notifier: notifier,
		fetcher:  fetcher,
		meta:     meta,
		dl:       NewDownloader(context.Background(), repo, meta, fetcher, notifier, log, cfg),
		dir:      cfg.OutDir,
	}
}

func TestDownload_AudioStoresPayload(t *testing.T) {
	ctx := context.Background()
	f := newDownloadFixture(t, nil, &fakeFetcher{ext: "f140.m4a"}, DownloaderConfig{})
	m := mustInsert(t, f.repo, "https://example.com/watch?v=abc")

	events, unsubscribe := f.notifier.Subscribe()
	defer unsubscribe()

	require.NoError(t, f.dl.Download(ctx, m.ID, models.FormatAudio))

	got, err := f.repo.Get(ctx, m.ID)
	require.NoError(t, err)
	s, ok := got.Stored()
	require.True(t, ok)
	assert.Equal(t, ".m4a", s.Extension)
	assert.Contains(t, got.Hashtags, models.TagAudioOnly)

	p, err := f.repo.Payload(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "payload:bestaudio/best", string(p.Data))
	assert.Equal(t, s.Size, p.Size())

	assert.NoFileExists(t, filepath.Join(f.dir, "abc.f140.m4a"))

	ev := nextEvent(t, events, ports.EventLibraryUpdated)
	require.Len(t, ev.Media, 1)
	assert.Equal(t, s.Size, ev.TotalSize)
}

func TestDownload_VideoStoresMP4(t *testing.T) {
	ctx := context.Background()
	f := newDownloadFixture(t, nil, &fakeFetcher{ext: "unused"}, DownloaderConfig{})
	m := mustInsert(t, f.repo, "https://example.com/watch?v=vid")

	require.NoError(t, f.dl.Download(ctx, m.ID, models.FormatVideo))

	got, err := f.repo.Get(ctx, m.ID)
	require.NoError(t, err)
	s, ok := got.Stored()
	require.True(t, ok)
	assert.Equal(t, ".mp4", s.Extension)
	assert.Contains(t, got.Hashtags, models.TagFullMedia)
	assert.Equal(t, []string{"best[ext=mp4]/best"}, f.fetcher.formats)
}

func TestDownload_FailureLeavesEntryPending(t *testing.T) {
	ctx := context.Background()
	f := newDownloadFixture(t, nil, &fakeFetcher{err: ports.ErrDownloadFailed}, DownloaderConfig{})
	m := mustInsert(t, f.repo, "https://example.com/watch?v=bad")

	events, unsubscribe := f.notifier.Subscribe()
	defer unsubscribe()

	err := f.dl.Download(ctx, m.ID, models.FormatAudio)
	assert.ErrorIs(t, err, ports.ErrDownloadFailed)

	got, err := f.repo.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, got.IsDownloaded())
	_, err = f.repo.Payload(ctx, m.ID)
	assert.ErrorIs(t, err, ports.ErrNotFound)

	ev := nextEvent(t, events, ports.EventLog)
	assert.Contains(t, ev.Message, "failed")
}

func TestDownload_NoOutputIsIncomplete(t *testing.T) {
	ctx := context.Background()
	f := newDownloadFixture(t, nil, &fakeFetcher{}, DownloaderConfig{})
	m := mustInsert(t, f.repo, "https://example.com/watch?v=none")

	err := f.dl.Download(ctx, m.ID, models.FormatAudio)
	assert.ErrorIs(t, err, ports.ErrDownloadIncomplete)

	got, err := f.repo.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, got.IsDownloaded())
}

func TestDownload_StoreFailureKeepsFile(t *testing.T) {
	ctx := context.Background()
	repo := &flakyRepo{MemoryMediaRepo: infra.NewMemoryMediaRepo(), attachErr: errStoreDown}
	f := newDownloadFixture(t, repo, &fakeFetcher{ext: "webm"}, DownloaderConfig{})
	m := mustInsert(t, repo, "https://example.com/watch?v=keep")

	err := f.dl.Download(ctx, m.ID, models.FormatAudio)
	assert.ErrorIs(t, err, errStoreDown)
	assert.FileExists(t, filepath.Join(f.dir, "keep.webm"))
}

func TestDownload_UnknownAndInvalidIDs(t *testing.T) {
	ctx := context.Background()
	f := newDownloadFixture(t, nil, &fakeFetcher{ext: "m4a"}, DownloaderConfig{})

	err := f.dl.Download(ctx, "6c1f6f7e-7c55-4e34-9e88-6d2d1b7d3b10", models.FormatAudio)
	assert.ErrorIs(t, err, ports.ErrNotFound)

	err = f.dl.Download(ctx, "garbage", models.FormatAudio)
	assert.ErrorIs(t, err, ports.ErrInvalidIdentifier)

	m := mustInsert(t, f.repo, "https://example.com/watch?v=x")
	err = f.dl.Download(ctx, m.ID, models.FormatClass("gif"))
	assert.ErrorIs(t, err, ports.ErrInvalidIdentifier)
}

func TestDownload_RejectsSecondDownloadOfSameEntry(t *testing.T) {
	ctx := context.Background()
	fetcher := &fakeFetcher{ext: "m4a", block: make(chan struct{}), started: make(chan string, 4)}
	f := newDownloadFixture(t, nil, fetcher, DownloaderConfig{})
	m := mustInsert(t, f.repo, "https://example.com/watch?v=dup")

	require.NoError(t, f.dl.Start(ctx, m.ID, models.FormatAudio))
	<-fetcher.started

	err := f.dl.Start(ctx, m.ID, models.FormatVideo)
	assert.ErrorIs(t, err, ports.ErrDownloadInProgress)
	err = f.dl.Download(ctx, m.ID, models.FormatAudio)
	assert.ErrorIs(t, err, ports.ErrDownloadInProgress)

	close(fetcher.block)
	f.dl.Wait()

	got, err := f.repo.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDownloaded())

	// guard is released once done
	require.NoError(t, f.dl.Download(ctx, m.ID, models.FormatAudio))
}

func TestDownload_BoundedParallelism(t *testing.T) {
	ctx := context.Background()
	fetcher := &fakeFetcher{ext: "m4a", block: make(chan struct{}), started: make(chan string, 4)}
	f := newDownloadFixture(t, nil, fetcher, DownloaderConfig{MaxParallel: 1})
	a := mustInsert(t, f.repo, "https://example.com/watch?v=a")
	b := mustInsert(t, f.repo, "https://example.com/watch?v=b")

	require.NoError(t, f.dl.Start(ctx, a.ID, models.FormatAudio))
	require.NoError(t, f.dl.Start(ctx, b.ID, models.FormatAudio))

	<-fetcher.started
	select {
	case <-fetcher.started:
		t.Fatal("second download started while the only slot was taken")
	case <-time.After(50 * time.Millisecond):
	}

	close(fetcher.block)
	f.dl.Wait()
	assert.Equal(t, 1, fetcher.peak())

	for _, id := range []string{a.ID, b.ID} {
		got, err := f.repo.Get(ctx, id)
		require.NoError(t, err)
		assert.True(t, got.IsDownloaded())
	}
}

func TestDownload_Timeout(t *testing.T) {
	ctx := context.Background()
	fetcher := &fakeFetcher{ext: "m4a", block: make(chan struct{})}
	f := newDownloadFixture(t, nil, fetcher, DownloaderConfig{Timeout: 50 * time.Millisecond})
	m := mustInsert(t, f.repo, "https://example.com/watch?v=slow")

	err := f.dl.Download(ctx, m.ID, models.FormatAudio)
	assert.ErrorIs(t, err, ports.ErrDownloadFailed)

	got, err := f.repo.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, got.IsDownloaded())
}

func TestOutputTemplateAndSafeBase(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "abc.%(ext)s"), outputTemplate("out", "abc", models.FormatAudio))
	assert.Equal(t, filepath.Join("out", "abc.mp4"), outputTemplate("out", "abc", models.FormatVideo))

	assert.Equal(t, "a_b_c", safeBase("a/b\\c"))
	assert.Equal(t, "x", safeBase("..x"))
	assert.Equal(t, "dQw4w9WgXcQ", safeBase("dQw4w9WgXcQ"))
}

func TestDownload_CreatesOutDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	f := newDownloadFixture(t, nil, &fakeFetcher{ext: "m4a"}, DownloaderConfig{OutDir: dir})
	m := mustInsert(t, f.repo, "https://example.com/watch?v=n")

	require.NoError(t, f.dl.Download(context.Background(), m.ID, models.FormatAudio))
	_, err := os.Stat(dir)
	assert.NoError(t, err)
}
