package platform

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds the complete server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Media    MediaConfig    `yaml:"media"`
	Audio    AudioConfig    `yaml:"audio"`
}

// ServerConfig configures the HTTP server and the public base URL.
type ServerConfig struct {
	// URL is the public base URL used to derive session URLs. Always
	// normalized to end with a slash.
	URL string `yaml:"url" env:"RUMBA_SERVER_URL"`

	// Address is the HTTP listen address.
	Address string `yaml:"address" env:"RUMBA_ADDRESS"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	Host         string `yaml:"host" env:"RUMBA_DB_HOST"`
	Port         int    `yaml:"port" env:"RUMBA_DB_PORT"`
	User         string `yaml:"user" env:"RUMBA_DB_USER"`
	Password     string `yaml:"password" env:"RUMBA_DB_PASSWORD"`
	Name         string `yaml:"name" env:"RUMBA_DB_NAME"`
	SSLMode      string `yaml:"ssl_mode" env:"RUMBA_DB_SSLMODE"`
	MaxOpenConns int    `yaml:"max_open_conns" env:"RUMBA_DB_MAX_OPEN_CONNS"`
}

// DSN returns the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// MediaConfig configures session artifact storage.
type MediaConfig struct {
	// Root is the directory session directories are created under.
	Root string `yaml:"root" env:"RUMBA_MEDIA_ROOT"`
}

// AudioConfig configures the audio capture subprocess.
type AudioConfig struct {
	FFmpegPath  string        `yaml:"ffmpeg_path" env:"RUMBA_FFMPEG_PATH"`
	Source      string        `yaml:"source" env:"RUMBA_AUDIO_SOURCE"`
	Format      string        `yaml:"format" env:"RUMBA_AUDIO_FORMAT"`
	StopTimeout time.Duration `yaml:"stop_timeout" env:"RUMBA_AUDIO_STOP_TIMEOUT"`
}

// LoadConfig loads configuration from a file, overlays environment
// variables and applies defaults.
// The path is expected to come from command line arguments, controlled by the administrator.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		// #nosec G304 -- path is from CLI args, controlled by admin
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		// Expand environment variables
		data = []byte(expandEnvVars(string(data)))

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// applyDefaults applies default values to the config.
func applyDefaults(cfg *Config) {
	if cfg.Server.URL == "" {
		cfg.Server.URL = "http://localhost:8080/"
	}
	if !strings.HasSuffix(cfg.Server.URL, "/") {
		cfg.Server.URL += "/"
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Media.Root == "" {
		cfg.Media.Root = "/var/lib/rumba/sessions"
	}
}
