package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ernie/shoot-or-shield/internal/match"
)

// Config holds the application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Match      MatchConfig      `yaml:"match"`
	AI         AIConfig         `yaml:"ai"`
	Auth       AuthConfig       `yaml:"auth"`
	NATS       NATSConfig       `yaml:"nats"`
	RemoteSync RemoteSyncConfig `yaml:"remote_sync"`
}

// ServerConfig holds the host's listener settings
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	HTTPPort   int    `yaml:"http_port"`
}

// Addr returns host:port for the listener
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.ListenAddr, s.HTTPPort)
}

// DatabaseConfig holds SQLite settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// MatchConfig holds phase timings and resolution behaviour
type MatchConfig struct {
	Timings      match.Timings `yaml:"timings"`
	EarlyResolve bool          `yaml:"early_resolve"`
}

// AIConfig points at an optional remote move generator. An empty endpoint
// means bots only use the local heuristic.
type AIConfig struct {
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
}

// AuthConfig holds room ticket settings
type AuthConfig struct {
	TicketSecret   string        `yaml:"ticket_secret"`
	TicketDuration time.Duration `yaml:"ticket_duration"`
}

// NATSConfig holds the match event publisher settings
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// RemoteSyncConfig holds the S3-compatible profile backup target
type RemoteSyncConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// LoadEnv loads the first .env file found in paths into the environment.
// It returns the path that was loaded, or "" when none was found.
func LoadEnv(paths ...string) string {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err == nil {
			return path
		}
	}
	return ""
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults. Environment variables override both.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = "0.0.0.0"
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 7777
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = defaultDBPath()
	}

	d := match.DefaultTimings()
	t := &cfg.Match.Timings
	if t.Intro == 0 {
		t.Intro = d.Intro
	}
	if t.Shopping == 0 {
		t.Shopping = d.Shopping
	}
	if t.Resolution == 0 {
		t.Resolution = d.Resolution
	}
	if t.Preparation == 0 {
		t.Preparation = d.Preparation
	}
	if t.RoundOver == 0 {
		t.RoundOver = d.RoundOver
	}

	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 3 * time.Second
	}
	if cfg.Auth.TicketDuration == 0 {
		cfg.Auth.TicketDuration = time.Hour
	}
	if cfg.NATS.SubjectPrefix == "" {
		cfg.NATS.SubjectPrefix = "sos"
	}
	if cfg.RemoteSync.Region == "" {
		cfg.RemoteSync.Region = "auto"
	}
	if cfg.RemoteSync.Prefix == "" {
		cfg.RemoteSync.Prefix = "profiles"
	}
}

func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "sos.db"
	}
	return dir + "/shoot-or-shield/sos.db"
}

// applyEnv overlays SOS_* environment variables
func applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	str("SOS_LISTEN_ADDR", &cfg.Server.ListenAddr)
	str("SOS_DB_PATH", &cfg.Database.Path)
	str("SOS_AI_ENDPOINT", &cfg.AI.Endpoint)
	str("SOS_AI_API_KEY", &cfg.AI.APIKey)
	str("SOS_TICKET_SECRET", &cfg.Auth.TicketSecret)
	str("SOS_NATS_URL", &cfg.NATS.URL)
	str("SOS_S3_ENDPOINT", &cfg.RemoteSync.Endpoint)
	str("SOS_S3_REGION", &cfg.RemoteSync.Region)
	str("SOS_S3_BUCKET", &cfg.RemoteSync.Bucket)
	str("SOS_S3_ACCESS_KEY_ID", &cfg.RemoteSync.AccessKeyID)
	str("SOS_S3_SECRET_ACCESS_KEY", &cfg.RemoteSync.SecretAccessKey)

	if v := os.Getenv("SOS_HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing SOS_HTTP_PORT: %w", err)
		}
		cfg.Server.HTTPPort = port
	}
	if cfg.RemoteSync.Bucket != "" && os.Getenv("SOS_S3_BUCKET") != "" {
		cfg.RemoteSync.Enabled = true
	}
	return nil
}
