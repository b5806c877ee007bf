// Package config - настройки клиента pdfsync
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"stargate/internal/client/cache"
)

const envPrefix = "PDFSYNC"

type Config struct {
	ServerURL    string        `mapstructure:"ServerURL"`
	Token        string        `mapstructure:"Token"`
	StoreTimeout time.Duration `mapstructure:"StoreTimeout"`
	LogLevel     string        `mapstructure:"LogLevel"`
	Cache        cache.Config  `mapstructure:"Cache"`
}

var envBindings = map[string]string{
	"ServerURL":        "SERVER_URL",
	"Token":            "TOKEN",
	"StoreTimeout":     "STORE_TIMEOUT",
	"LogLevel":         "LOG_LEVEL",
	"Cache.Driver":     "CACHE_DRIVER",
	"Cache.Dir":        "CACHE_DIR",
	"Cache.SQLitePath": "CACHE_SQLITE_PATH",
	"Cache.RedisAddr":  "CACHE_REDIS_ADDR",
	"Cache.RedisDB":    "CACHE_REDIS_DB",
}

// Load читает YAML-файл path, если он задан, и переменные окружения PDFSYNC_*.
// Окружение имеет приоритет над файлом.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("ServerURL", "http://localhost:2525")
	v.SetDefault("StoreTimeout", 10*time.Second)
	v.SetDefault("LogLevel", "warn")
	v.SetDefault("Cache.Driver", cache.DriverFile)
	v.SetDefault("Cache.Dir", defaultCacheDir())
	v.SetDefault("Cache.SQLitePath", "pdfsync.db")
	v.SetDefault("Cache.RedisAddr", "localhost:6379")
	v.SetDefault("Cache.RedisDB", 0)

	for key, env := range envBindings {
		v.BindEnv(key, envPrefix+"_"+env)
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.ServerURL = strings.TrimRight(strings.TrimSpace(cfg.ServerURL), "/")

	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("server url is required")
	}
	if cfg.StoreTimeout <= 0 {
		return nil, fmt.Errorf("store timeout must be positive, got %s", cfg.StoreTimeout)
	}
	return &cfg, nil
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ".pdfsync"
	}
	return dir + string(os.PathSeparator) + "pdfsync"
}
