package config

import (
	"flag"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

const (
	DefaultSyncInterval  = 5 * time.Minute
	DefaultRemoteTimeout = 10 * time.Second
	DefaultAudioMaxMB    = 25
)

type Config struct {
	// Server-side settings
	DatabaseDSN      string `env:"DATABASE_URI"`
	AuthSecret       string `env:"AUTH_SECRET"`
	TranscribeURL    string `env:"TRANSCRIBE_URL"`
	TranscribeAPIKey string `env:"TRANSCRIBE_API_KEY"`
	AudioMaxSizeMB   int    `env:"AUDIO_MAX_MB"`

	// Shared settings
	BaseURL     string `env:"BASE_URL"`
	EnableHTTPS bool   `env:"ENABLE_HTTPS"`
	LogLevel    string `env:"LOG_LEVEL"`

	// Client-side settings
	ServerURL     string        `env:"-"`
	ClientDir     string        `env:"CLIENT_DIR"`     // токен, последний логин, лог
	ClientDBPath  string        `env:"CLIENT_DB_PATH"` // каталог с кэшами пользователей
	LogFile       string        `env:"LOG_FILE"`
	SyncInterval  time.Duration `env:"SYNC_INTERVAL"`
	RemoteTimeout time.Duration `env:"REMOTE_TIMEOUT"`
	Version       bool          `env:"-"` // show client version and exit (flag only)
}

func NewConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{}
	_ = env.Parse(cfg)

	// flags работают ТОЛЬКО если переменные из env не заданы
	// Server flags
	flag.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "строка подключения к БД")
	flag.StringVar(&cfg.AuthSecret, "auth-secret", cfg.AuthSecret, "секрет для подписи JWT")
	flag.StringVar(&cfg.TranscribeURL, "transcribe-url", cfg.TranscribeURL, "URL сервиса распознавания речи")
	flag.IntVar(&cfg.AudioMaxSizeMB, "audio-max-mb", cfg.AudioMaxSizeMB, "максимальный размер аудиофайла, МБ")
	// Shared/client flags
	flag.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "address of the Taskly server (host:port)")
	flag.BoolVar(&cfg.EnableHTTPS, "https", cfg.EnableHTTPS, "enable HTTPS (client: prefer https scheme for BaseURL)")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	// Client flags
	flag.StringVar(&cfg.ClientDir, "client-dir", cfg.ClientDir, "directory for client session files")
	flag.StringVar(&cfg.ClientDBPath, "client-db", cfg.ClientDBPath, "directory for per-user SQLite caches")
	flag.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "client log file")
	flag.DurationVar(&cfg.SyncInterval, "sync-interval", cfg.SyncInterval, "background sync interval")
	flag.DurationVar(&cfg.RemoteTimeout, "remote-timeout", cfg.RemoteTimeout, "timeout of a single remote call")
	flag.BoolVar(&cfg.Version, "version", cfg.Version, "Show client version and exit")

	flag.Parse()

	// Defaults
	if cfg.AuthSecret == "" {
		cfg.AuthSecret = "dev-secret-key"
	}
	if cfg.AudioMaxSizeMB <= 0 {
		cfg.AudioMaxSizeMB = DefaultAudioMaxMB
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = DefaultSyncInterval
	}
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = DefaultRemoteTimeout
	}
	// validate BaseURL: must be in "address:port" (no scheme, no path). Otherwise use default.
	hostPortRe := regexp.MustCompile(`^[A-Za-z0-9\.\-]+:\d{1,5}$`)
	if !hostPortRe.MatchString(cfg.BaseURL) {
		cfg.BaseURL = "localhost:8081"
	}

	if cfg.EnableHTTPS {
		cfg.ServerURL = "https://" + cfg.BaseURL
	} else {
		cfg.ServerURL = "http://" + cfg.BaseURL
	}

	// Fill client defaults if empty
	if cfg.ClientDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			base, _ = os.UserHomeDir()
		}
		cfg.ClientDir = filepath.Join(base, "Taskly")
	}
	if cfg.ClientDBPath == "" {
		cfg.ClientDBPath = filepath.Join(cfg.ClientDir, "users")
	}
	if cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(cfg.ClientDir, "tskcli.log")
	}

	return cfg
}
