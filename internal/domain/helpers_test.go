package domain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/hope/internal/infra"
	"github.com/Vovarama1992/hope/internal/models"
	"github.com/Vovarama1992/hope/internal/ports"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger() *logger.ZapLogger {
	return logger.NewZapLogger(zap.NewNop().Sugar())
}

// fakeMeta derives everything from the "v=" query value of the url.
type fakeMeta struct {
	titleErr  error
	idErr     error
	streamErr error
}

func sourceID(url string) string {
	if i := strings.LastIndex(url, "="); i >= 0 {
		return url[i+1:]
	}
	return "noid"
}

func (f *fakeMeta) Title(ctx context.Context, url string) (string, error) {
	if f.titleErr != nil {
		return "", f.titleErr
	}
	return "Title " + sourceID(url), nil
}

func (f *fakeMeta) SourceID(ctx context.Context, url string) (string, error) {
	if f.idErr != nil {
		return "", f.idErr
	}
	return sourceID(url), nil
}

func (f *fakeMeta) StreamURL(ctx context.Context, url string) (string, error) {
	if f.streamErr != nil {
		return "", f.streamErr
	}
	return "https://cdn.example.com/" + sourceID(url), nil
}

// fakeFetcher writes a file where yt-dlp would. ext replaces the
// "%(ext)s" placeholder; an empty ext produces no file at all.
type fakeFetcher struct {
	ext   string
	err   error
	block chan struct{}

	started chan string

	mu        sync.Mutex
	active    int
	maxActive int
	formats   []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, pageURL, format, output string) error {
	f.mu.Lock()
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.formats = append(f.formats, format)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if f.started != nil {
		f.started <- pageURL
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ports.ErrDownloadFailed, ctx.Err())
		}
	}
	if f.err != nil {
		return f.err
	}
	if f.ext == "" {
		return nil
	}
	path := strings.Replace(output, "%(ext)s", f.ext, 1)
	return os.WriteFile(path, []byte("payload:"+format), 0o644)
}

func (f *fakeFetcher) peak() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive
}

// flakyRepo fails selected writes.
type flakyRepo struct {
	*infra.MemoryMediaRepo
	attachErr error
	insertErr map[string]error
}

func (r *flakyRepo) AttachPayload(ctx context.Context, id string, p *models.Payload, tag string) error {
	if r.attachErr != nil {
		return r.attachErr
	}
	return r.MemoryMediaRepo.AttachPayload(ctx, id, p, tag)
}

func (r *flakyRepo) Insert(ctx context.Context, m *models.Media, p *models.Payload) (*models.Media, error) {
	if err, ok := r.insertErr[m.URL]; ok {
		return nil, err
	}
	return r.MemoryMediaRepo.Insert(ctx, m, p)
}

var errStoreDown = errors.New("store down")

// nextEvent waits for the next event of type typ, skipping others.
func nextEvent(t *testing.T, ch <-chan ports.MediaEvent, typ ports.EventType) ports.MediaEvent {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			require.True(t, ok, "event channel closed")
			if ev.Type == typ {
				return ev
			}
		case <-timeout:
			require.FailNow(t, "no event", "type %s", typ)
		}
	}
}

func mustInsert(t *testing.T, repo ports.MediaRepository, url string) *models.Media {
	t.Helper()
	m, err := repo.Insert(context.Background(), &models.Media{URL: url, Title: "t", Hashtags: []string{}}, nil)
	require.NoError(t, err)
	return m
}
