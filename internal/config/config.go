package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Port string `env:"PORT" envDefault:"3000"`

	StoreDriver   string `env:"STORE_DRIVER" envDefault:"mongo"`
	MongoURI      string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"hope-app"`
	DatabaseURL   string `env:"DATABASE_URL"`

	// DataDir is the base that legacy localPath values are relative to.
	DataDir       string `env:"DATA_DIR" envDefault:"."`
	RecordingsDir string `env:"RECORDINGS_DIR"` // defaults to DataDir/recordings

	YTDLPPath       string        `env:"YTDLP_PATH" envDefault:"yt-dlp"`
	CookieFile      string        `env:"YTDLP_COOKIES_FILE"`
	DownloadTimeout time.Duration `env:"DOWNLOAD_TIMEOUT" envDefault:"30m"`
	MetadataTimeout time.Duration `env:"METADATA_TIMEOUT" envDefault:"60s"`
	MaxParallel     int           `env:"MAX_PARALLEL_DOWNLOADS" envDefault:"2"`

	TelegramToken  string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID string `env:"TELEGRAM_CHAT_ID"`

	ControlPassword string `env:"CONTROL_PASSWORD"`
	AuthSecret      string `env:"AUTH_SECRET"`

	MigrateOnStart bool `env:"MIGRATE_ON_START" envDefault:"false"`
}

// Load reads .env (if any) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	if cfg.RecordingsDir == "" {
		cfg.RecordingsDir = filepath.Join(cfg.DataDir, "recordings")
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StoreMongo, StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is not set")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.MaxParallel < 1 {
		return fmt.Errorf("MAX_PARALLEL_DOWNLOADS must be >= 1, got %d", c.MaxParallel)
	}
	if c.TelegramToken != "" && c.TelegramChatID == "" {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}
	if c.ControlPassword != "" && c.AuthSecret == "" {
		return fmt.Errorf("AUTH_SECRET is required when CONTROL_PASSWORD is set")
	}
	return nil
}
