package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "CHECKMATE"

type Remote struct {
	URL   string
	Token string
}

type Sync struct {
	Timeout  time.Duration
	Attempts int
	Backoff  time.Duration
	Auto     bool
	Debounce time.Duration
	Interval time.Duration
}

type Serve struct {
	Addr  string
	Token string
	DB    string
	Redis string
}

type Config struct {
	Dir    string
	DB     string
	Format string
	Remote Remote
	Sync   Sync
	Serve  Serve
}

// Dir is the config directory. CHECKMATE_CONFIG_DIR overrides ~/.checkmate
// (tests use it to stay out of the real home).
func Dir() (string, error) {
	if v := strings.TrimSpace(os.Getenv(EnvPrefix + "_CONFIG_DIR")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".checkmate"), nil
}

func defaults(v *viper.Viper, dir string) {
	v.SetDefault("db", filepath.Join(dir, "checkmate.sqlite"))
	v.SetDefault("format", "text")
	v.SetDefault("remote.url", "")
	v.SetDefault("remote.token", "")
	v.SetDefault("sync.timeout", "30s")
	v.SetDefault("sync.attempts", 3)
	v.SetDefault("sync.backoff", "1s")
	v.SetDefault("sync.auto", false)
	v.SetDefault("sync.debounce", "2s")
	v.SetDefault("sync.interval", "1m")
	v.SetDefault("serve.addr", "127.0.0.1:8750")
	v.SetDefault("serve.token", "")
	v.SetDefault("serve.db", filepath.Join(dir, "server.sqlite"))
	v.SetDefault("serve.redis", "")
}

// Load reads config.json from dir (a missing file is fine) and applies env
// and any changed flags in flags whose names match config keys.
func Load(dir string, flags *pflag.FlagSet) (*Config, error) {
	if strings.TrimSpace(dir) == "" {
		d, err := Dir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	v := viper.New()
	defaults(v, dir)
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(dir)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config in %s: %w", dir, err)
		}
	}
	if flags != nil {
		for _, key := range []string{"db", "format"} {
			if f := flags.Lookup(key); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	cfg := &Config{
		Dir:    dir,
		DB:     v.GetString("db"),
		Format: strings.ToLower(strings.TrimSpace(v.GetString("format"))),
		Remote: Remote{
			URL:   strings.TrimSpace(v.GetString("remote.url")),
			Token: v.GetString("remote.token"),
		},
		Sync: Sync{
			Timeout:  v.GetDuration("sync.timeout"),
			Attempts: v.GetInt("sync.attempts"),
			Backoff:  v.GetDuration("sync.backoff"),
			Auto:     v.GetBool("sync.auto"),
			Debounce: v.GetDuration("sync.debounce"),
			Interval: v.GetDuration("sync.interval"),
		},
		Serve: Serve{
			Addr:  v.GetString("serve.addr"),
			Token: v.GetString("serve.token"),
			DB:    v.GetString("serve.db"),
			Redis: strings.TrimSpace(v.GetString("serve.redis")),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Format {
	case "json", "text":
	default:
		return fmt.Errorf("config: unsupported format %q (want json or text)", c.Format)
	}
	if strings.TrimSpace(c.DB) == "" {
		return errors.New("config: db path is empty")
	}
	if c.Sync.Attempts < 1 {
		return fmt.Errorf("config: sync.attempts must be at least 1, got %d", c.Sync.Attempts)
	}
	return nil
}

// RemoteConfigured reports whether a sync target is set.
func (c *Config) RemoteConfigured() bool { return c.Remote.URL != "" }
