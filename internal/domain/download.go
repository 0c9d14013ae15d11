package domain

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/hope/internal/domain/stations"
	"github.com/Vovarama1992/hope/internal/models"
	"github.com/Vovarama1992/hope/internal/ports"
	"golang.org/x/sync/semaphore"
)

type DownloaderConfig struct {
	OutDir      string
	Timeout     time.Duration
	MaxParallel int
}

// Downloader drives one download per call: resolve the source id, run
// yt-dlp, locate the produced file and move it into the store.
type Downloader struct {
	repo     ports.MediaRepository
	meta     ports.MetadataResolver
	fetcher  ports.MediaFetcher
	s3       *stations.S3LocateOutput
	s4       *stations.S4AbsorbPayload
	notifier *Notifier
	log      *logger.ZapLogger

	outDir  string
	timeout time.Duration
	sem     *semaphore.Weighted

	mu       sync.Mutex
	inFlight map[string]struct{}

	// background downloads started via Start
	base context.Context
	wg   sync.WaitGroup
}

func NewDownloader(
	base context.Context,
	repo ports.MediaRepository,
	meta ports.MetadataResolver,
	fetcher ports.MediaFetcher,
	notifier *Notifier,
	log *logger.ZapLogger,
	cfg DownloaderConfig,
) *Downloader {
	if cfg.MaxParallel < 1 {
		cfg.MaxParallel = 1
	}
	return &Downloader{
		repo:     repo,
		meta:     meta,
		fetcher:  fetcher,
		s3:       stations.NewS3LocateOutput(),
		s4:       stations.NewS4AbsorbPayload(log),
		notifier: notifier,
		log:      log,
		outDir:   cfg.OutDir,
		timeout:  cfg.Timeout,
		sem:      semaphore.NewWeighted(int64(cfg.MaxParallel)),
		inFlight: make(map[string]struct{}),
		base:     base,
	}
}

// Download runs synchronously and returns the typed failure, if any.
func (d *Downloader) Download(ctx context.Context, id string, class models.FormatClass) error {
	media, err := d.claim(ctx, id, class)
	if err != nil {
		return err
	}
	defer d.release(media.ID)

	return d.run(ctx, media, class)
}

// Start checks the entry and the in-flight guard, then downloads in the
// background. The outcome reaches subscribers through the notifier.
func (d *Downloader) Start(ctx context.Context, id string, class models.FormatClass) error {
	media, err := d.claim(ctx, id, class)
	if err != nil {
		return err
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.release(media.ID)
		_ = d.run(d.base, media, class)
	}()
	return nil
}

// Wait blocks until background downloads have finished.
func (d *Downloader) Wait() { d.wg.Wait() }

func (d *Downloader) claim(ctx context.Context, id string, class models.FormatClass) (*models.Media, error) {
	if !class.Valid() {
		return nil, fmt.Errorf("%w: format class %q", ports.ErrInvalidIdentifier, class)
	}

	media, err := d.repo.Get(ctx, id)
	if err != nil {
		d.fail(id, class, err)
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, busy := d.inFlight[media.ID]; busy {
		return nil, fmt.Errorf("%w: %s", ports.ErrDownloadInProgress, media.ID)
	}
	d.inFlight[media.ID] = struct{}{}
	return media, nil
}

func (d *Downloader) release(id string) {
	d.mu.Lock()
	delete(d.inFlight, id)
	d.mu.Unlock()
}

func (d *Downloader) run(ctx context.Context, media *models.Media, class models.FormatClass) error {
	start := time.Now()

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	if err := d.sem.Acquire(ctx, 1); err != nil {
		err = fmt.Errorf("%w: waiting for a download slot: %v", ports.ErrDownloadFailed, err)
		d.fail(media.ID, class, err)
		return err
	}
	defer d.sem.Release(1)

	if err := d.fetch(ctx, media, class); err != nil {
		d.fail(media.ID, class, err)
		return err
	}

	d.log.Log(logger.LogEntry{
		Level:   "info",
		Message: "download stored",
		Fields: map[string]any{
			"mediaID": media.ID,
			"class":   string(class),
			"dur":     time.Since(start).String(),
		},
	})
	d.notifier.Debug(fmt.Sprintf("%s downloaded: %s", class, media.Title))
	d.notifier.LibraryChanged(context.WithoutCancel(ctx))
	return nil
}

func (d *Downloader) fetch(ctx context.Context, media *models.Media, class models.FormatClass) error {
	sourceID, err := d.meta.SourceID(ctx, media.URL)
	if err != nil {
		return err
	}
	base := safeBase(sourceID)

	if err := os.MkdirAll(d.outDir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", ports.ErrIOFailure, d.outDir, err)
	}

	if err := d.fetcher.Fetch(ctx, media.URL, class.Spec(), outputTemplate(d.outDir, base, class)); err != nil {
		return err
	}

	path, err := d.s3.Run(d.outDir, base, class)
	if err != nil {
		return err
	}

	_, err = d.s4.Run(ctx, path, func(ctx context.Context, p *models.Payload) error {
		return d.repo.AttachPayload(ctx, media.ID, p, class.ProvenanceTag())
	})
	return err
}

func (d *Downloader) fail(id string, class models.FormatClass, err error) {
	d.log.Log(logger.LogEntry{
		Level:   "error",
		Message: "download failed",
		Error:   err,
		Fields:  map[string]any{"mediaID": id, "class": string(class)},
	})
	d.notifier.Debug(fmt.Sprintf("%s download failed for %s: %v", class, id, err))
}

// outputTemplate lets yt-dlp pick the audio extension; video is pinned to mp4.
func outputTemplate(dir, base string, class models.FormatClass) string {
	if class == models.FormatVideo {
		return filepath.Join(dir, base+".mp4")
	}
	return filepath.Join(dir, base+".%(ext)s")
}

// safeBase keeps a source id usable as a single path element.
func safeBase(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '%', 0:
			return '_'
		}
		return r
	}, strings.TrimLeft(id, "."))
}
