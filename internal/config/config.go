// Package config builds the process configuration once at startup from the
// environment (and an optional .env file).
package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/xerrors"
)

type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	GitHub   GitHubConfig
	Telegram TelegramConfig
	Database DatabaseConfig
	Log      LogConfig
}

type ServerConfig struct {
	Addr      string
	StaticDir string
}

type StoreConfig struct {
	ProjectsDir string
	ExportsDir  string
	DataDir     string
	MaxFileSize int64
	// Locking enables the per-project advisory lock
	Locking bool
}

type GitHubConfig struct {
	Token           string
	Owner           string
	APIURL          string
	Timeout         time.Duration
	MaxArchiveBytes int64
}

type TelegramConfig struct {
	BotToken    string
	MiniAppURL  string
	APIURL      string
	PollTimeout int
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type LogConfig struct {
	Level  string
	Format string
}

// Enabled reports whether an activity database was configured
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// Configured reports whether publishing has both a credential and an account
func (g GitHubConfig) Configured() bool {
	return g.Token != "" && g.Owner != ""
}

func defaults(v *viper.Viper) {
	v.SetDefault("ADDR", ":8080")
	v.SetDefault("STATIC_DIR", "static")
	v.SetDefault("PROJECTS_DIR", "data/projects")
	v.SetDefault("EXPORTS_DIR", "data/exports")
	v.SetDefault("DATA_DIR", "data")
	v.SetDefault("STORE_LOCKING", false)
	v.SetDefault("STORE_MAX_FILE_BYTES", 25*1024*1024)
	v.SetDefault("GITHUB_API_URL", "https://api.github.com")
	v.SetDefault("HTTP_CLIENT_TIMEOUT", "30s")
	v.SetDefault("GITHUB_MAX_ARCHIVE_BYTES", 50*1024*1024)
	v.SetDefault("TELEGRAM_API_URL", "https://api.telegram.org")
	v.SetDefault("BOT_POLL_TIMEOUT", 30)
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

// Load reads .env (if present) and the process environment
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance
func FromViper(v *viper.Viper) (*Config, error) {
	defaults(v)

	cfg := &Config{
		Server: ServerConfig{
			Addr:      v.GetString("ADDR"),
			StaticDir: v.GetString("STATIC_DIR"),
		},
		Store: StoreConfig{
			ProjectsDir: v.GetString("PROJECTS_DIR"),
			ExportsDir:  v.GetString("EXPORTS_DIR"),
			DataDir:     v.GetString("DATA_DIR"),
			MaxFileSize: v.GetInt64("STORE_MAX_FILE_BYTES"),
			Locking:     v.GetBool("STORE_LOCKING"),
		},
		GitHub: GitHubConfig{
			Token:           v.GetString("GITHUB_TOKEN"),
			Owner:           v.GetString("GITHUB_OWNER"),
			APIURL:          v.GetString("GITHUB_API_URL"),
			Timeout:         seconds(v, "HTTP_CLIENT_TIMEOUT"),
			MaxArchiveBytes: v.GetInt64("GITHUB_MAX_ARCHIVE_BYTES"),
		},
		Telegram: TelegramConfig{
			BotToken:    v.GetString("BOT_TOKEN"),
			MiniAppURL:  v.GetString("MINIAPP_URL"),
			APIURL:      v.GetString("TELEGRAM_API_URL"),
			PollTimeout: v.GetInt("BOT_POLL_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("POSTGRES_HOST"),
			Port:     v.GetString("POSTGRES_PORT"),
			User:     v.GetString("POSTGRES_USER"),
			Password: v.GetString("POSTGRES_PASSWORD"),
			Name:     v.GetString("POSTGRES_DB"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// seconds reads a duration such as "30s" or "1m"; a bare number is seconds
func seconds(v *viper.Viper, key string) time.Duration {
	s := strings.TrimSpace(v.GetString(key))
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(n * float64(time.Second))
	}
	return v.GetDuration(key)
}

func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return xerrors.New("ADDR is required")
	}
	if c.Store.ProjectsDir == "" {
		return xerrors.New("PROJECTS_DIR is required")
	}
	if c.Store.ExportsDir == "" {
		return xerrors.New("EXPORTS_DIR is required")
	}
	if c.Store.MaxFileSize <= 0 {
		return xerrors.Errorf("STORE_MAX_FILE_BYTES must be positive, got %d", c.Store.MaxFileSize)
	}
	if c.Store.Locking && c.Store.DataDir == "" {
		return xerrors.New("DATA_DIR is required when STORE_LOCKING is enabled")
	}
	if c.GitHub.Timeout < time.Second {
		return xerrors.Errorf("HTTP_CLIENT_TIMEOUT must be at least 1s, got %s", c.GitHub.Timeout)
	}
	return nil
}
