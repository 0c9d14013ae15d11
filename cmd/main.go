package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/hope/internal/config"
	"github.com/Vovarama1992/hope/internal/delivery"
	"github.com/Vovarama1992/hope/internal/delivery/telegram"
	"github.com/Vovarama1992/hope/internal/delivery/ws"
	"github.com/Vovarama1992/hope/internal/domain"
	"github.com/Vovarama1992/hope/internal/domain/stations"
	"github.com/Vovarama1992/hope/internal/infra"
	"github.com/Vovarama1992/hope/internal/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "hope",
		Short:         "Media library: link intake, yt-dlp downloads, streaming",
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), serve)
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "migrate",
			Short: "Absorb files from the recordings directory into the store",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
					_, err := a.migrate(ctx)
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "cleanup",
			Short: "Remove leftover localPath fields from every entry",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
					_, err := a.sweeper.Cleanup(ctx)
					return err
				})
			},
		},
	)
	return root
}

type app struct {
	cfg      *config.Config
	log      *logger.ZapLogger
	repo     ports.MediaRepository
	notifier *domain.Notifier
	meta     *stations.S1ResolveMeta
	sweeper  *domain.Sweeper
}

// withApp loads config, opens the store and closes it after fn returns.
func withApp(ctx context.Context, fn func(context.Context, *app) error) (err error) {
	// LOGGER
	zcore, _ := zap.NewProduction()
	defer func() { _ = zcore.Sync() }()
	zl := logger.NewZapLogger(zcore.Sugar())

	cfg, err := config.Load()
	if err != nil {
		zl.Log(logger.LogEntry{Level: "error", Message: "load config", Error: err})
		return err
	}

	// STORE
	repo, err := openStore(ctx, cfg)
	if err != nil {
		zl.Log(logger.LogEntry{
			Level:   "error",
			Message: "open store",
			Error:   err,
			Fields:  map[string]any{"driver": cfg.StoreDriver},
		})
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = multierr.Append(err, repo.Close(closeCtx))
	}()

	notifier := domain.NewNotifier(repo, zl)
	a := &app{
		cfg:      cfg,
		log:      zl,
		repo:     repo,
		notifier: notifier,
		meta:     stations.NewS1ResolveMeta(cfg.YTDLPPath, cfg.CookieFile, cfg.MetadataTimeout, zl),
		sweeper:  domain.NewSweeper(repo, notifier, zl, cfg.DataDir, cfg.RecordingsDir),
	}

	if cfg.CookieFile == "" {
		zl.Log(logger.LogEntry{
			Level:   "warn",
			Message: "YTDLP_COOKIES_FILE is not set; yt-dlp may fail on YouTube",
		})
	}

	return fn(ctx, a)
}

func openStore(ctx context.Context, cfg *config.Config) (ports.MediaRepository, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	switch cfg.StoreDriver {
	case config.StoreMongo:
		return infra.NewMongoMediaRepo(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
	case config.StorePostgres:
		pool, err := infra.NewPgxPool(connectCtx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := infra.EnsureSchema(connectCtx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return infra.NewPostgresMediaRepo(pool), nil
	case config.StoreMemory:
		return infra.NewMemoryMediaRepo(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func (a *app) migrate(ctx context.Context) (*domain.SweepReport, error) {
	rep, err := a.sweeper.Run(ctx)
	if err != nil {
		return nil, err
	}
	a.log.Log(logger.LogEntry{
		Level:   "info",
		Message: "migration finished",
		Error:   rep.Err,
		Fields: map[string]any{
			"scanned":  rep.Scanned,
			"attached": rep.Attached,
			"created":  rep.Created,
			"skipped":  rep.Skipped,
			"failed":   rep.Failed(),
		},
	})
	return rep, nil
}

func serve(ctx context.Context, a *app) error {
	cfg, zl := a.cfg, a.log

	if cfg.MigrateOnStart {
		if _, err := a.migrate(ctx); err != nil {
			zl.Log(logger.LogEntry{Level: "error", Message: "migration on start", Error: err})
		}
	}

	// SERVICES
	fetcher := stations.NewS2FetchMedia(cfg.YTDLPPath, cfg.CookieFile, zl)
	downloader := domain.NewDownloader(ctx, a.repo, a.meta, fetcher, a.notifier, zl, domain.DownloaderConfig{
		OutDir:      filepath.Join(cfg.DataDir, "downloads"),
		Timeout:     cfg.DownloadTimeout,
		MaxParallel: cfg.MaxParallel,
	})
	defer downloader.Wait()

	mediaService := domain.NewMediaService(a.repo, a.meta, downloader, a.notifier, zl, cfg.DataDir)
	authService := domain.NewAuthService(cfg.ControlPassword, cfg.AuthSecret)
	recordings := domain.NewRecordingsDir(cfg.RecordingsDir)

	// WS HUB
	hub := ws.NewHub(zl)

	// ROUTER
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-Auth", "Range"},
		ExposedHeaders:   []string{"Content-Length", "Content-Range"},
		AllowCredentials: true,
	}))

	delivery.RegisterRoutes(r, authService, delivery.Handlers{
		Log:        zl,
		Auth:       delivery.NewAuthHandler(authService, zl),
		Media:      delivery.NewMediaHandler(mediaService, zl, cfg.Port),
		Stream:     delivery.NewStreamHandler(mediaService, zl),
		Recordings: delivery.NewRecordingsHandler(recordings, zl),
		WS:         ws.WSHandler(hub, mediaService, zl),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zl.Log(logger.LogEntry{
			Level:   "info",
			Message: "server started",
			Fields:  map[string]any{"port": cfg.Port, "store": cfg.StoreDriver},
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return hub.Pump(gctx, a.notifier)
	})

	if cfg.TelegramToken != "" {
		intake := domain.NewIntakeService(a.repo, a.meta, a.notifier, zl, cfg.TelegramChatID)
		bot, err := telegram.NewBot(cfg.TelegramToken, intake, zl)
		if err != nil {
			zl.Log(logger.LogEntry{Level: "error", Message: "telegram bot init", Error: err})
		} else {
			g.Go(func() error { return bot.Run(gctx) })
		}
	} else {
		zl.Log(logger.LogEntry{Level: "warn", Message: "TELEGRAM_BOT_TOKEN is not set; chat intake disabled"})
	}

	err := g.Wait()
	zl.Log(logger.LogEntry{Level: "info", Message: "server stopped", Error: err})
	return err
}
