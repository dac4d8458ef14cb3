// Package config loads the resolver settings from moopa.yml, a .env file and
// MOOPA_ environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. MOOPA_SERVER_ADDR
const EnvPrefix = "MOOPA"

// Config holds all configuration settings. It maps directly to moopa.yml.
type Config struct {
	Debug          bool          `mapstructure:"debug"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	HTTP           struct {
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"http"`
	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`
	Cache struct {
		TTL        time.Duration `mapstructure:"ttl"`
		MaxEntries int           `mapstructure:"max_entries"`
	} `mapstructure:"cache"`
	Store struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"store"`
	Matcher struct {
		SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	} `mapstructure:"matcher"`
	Providers struct {
		HiAnime struct {
			BaseURL string `mapstructure:"base_url"`
		} `mapstructure:"hianime"`
		AniCrush struct {
			SiteURL string `mapstructure:"site_url"`
			APIURL  string `mapstructure:"api_url"`
		} `mapstructure:"anicrush"`
		Comix struct {
			BaseURL string `mapstructure:"base_url"`
			APIURL  string `mapstructure:"api_url"`
		} `mapstructure:"comix"`
	} `mapstructure:"providers"`
	Extractor struct {
		RelayURL string `mapstructure:"relay_url"`
	} `mapstructure:"extractor"`
	AniList struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"anilist"`
}

// Options controls where Load looks for its inputs
type Options struct {
	// ConfigFile is an explicit config path. Empty searches "." and $HOME/.config/moopa.
	ConfigFile string
	// EnvFile is loaded before the environment is read. Empty means ".env"; a missing file is ignored.
	EnvFile string
}

// DefaultStorePath returns the default location of the mapping database
func DefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "mappings.db")
	}
	return filepath.Join(home, ".local", "share", "moopa", "mappings.db")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("request_timeout", 8*time.Second)
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("cache.max_entries", 512)
	v.SetDefault("store.path", DefaultStorePath())
	v.SetDefault("matcher.similarity_threshold", 0.7)
	v.SetDefault("providers.hianime.base_url", "https://hianime.to")
	v.SetDefault("providers.anicrush.site_url", "https://anicrush.to")
	v.SetDefault("providers.anicrush.api_url", "https://api.anicrush.to")
	v.SetDefault("providers.comix.base_url", "https://comix.to")
	v.SetDefault("providers.comix.api_url", "https://comix.to/api/v2")
	v.SetDefault("extractor.relay_url", "https://ac-api.ofchaos.com/api/anime/embed/convert/v2")
	v.SetDefault("anilist.url", "https://graphql.anilist.co")
}

// Load reads the configuration. A missing config file is not an error.
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("moopa")
		v.SetConfigType("yml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "moopa"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the resolver cannot run with
func (c *Config) Validate() error {
	if c.RequestTimeout < 0 || c.HTTP.Timeout < 0 || c.Cache.TTL < 0 {
		return errors.New("config: durations must not be negative")
	}
	if c.Cache.MaxEntries < 0 {
		return errors.New("config: cache.max_entries must not be negative")
	}
	if t := c.Matcher.SimilarityThreshold; t < 0 || t >= 1 {
		return fmt.Errorf("config: matcher.similarity_threshold %.2f out of range [0,1)", t)
	}
	return nil
}
