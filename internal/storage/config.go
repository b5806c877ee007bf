package storage

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	DriverS3     = "s3"
	DriverMinio  = "minio"
	DriverMemory = "memory"
)

type Config struct {
	Driver          string `mapstructure:"Driver"`
	Endpoint        string `mapstructure:"Endpoint"`
	Region          string `mapstructure:"Region"`
	AccessKeyID     string `mapstructure:"AccessKeyID"`
	SecretAccessKey string `mapstructure:"SecretAccessKey"`
	Bucket          string `mapstructure:"Bucket"`
	UseSSL          bool   `mapstructure:"UseSSL"`
}

var envBindings = map[string]string{
	"Driver":          "STORAGE_DRIVER",
	"Endpoint":        "STORAGE_ENDPOINT",
	"Region":          "STORAGE_REGION",
	"AccessKeyID":     "STORAGE_ACCESS_KEY_ID",
	"SecretAccessKey": "STORAGE_SECRET_ACCESS_KEY",
	"Bucket":          "STORAGE_BUCKET",
	"UseSSL":          "STORAGE_USE_SSL",
}

func NewConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")

	v.SetDefault("Driver", DriverS3)
	v.SetDefault("Endpoint", "https://storage.yandexcloud.net")
	v.SetDefault("Region", "ru-central1")
	v.SetDefault("UseSSL", true)

	for key, env := range envBindings {
		v.BindEnv(key, env)
	}

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Warning: storage config %s not read, using environment: %v\n", path, err)
	}
	for key, env := range envBindings {
		if v.InConfig(env) {
			v.SetDefault(key, v.Get(env))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("cannot unmarshal storage config: %w", err)
	}
	cfg.Driver = strings.ToLower(strings.TrimSpace(cfg.Driver))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Driver {
	case DriverMemory:
		return nil
	case DriverS3, DriverMinio:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Driver)
	}

	// Проверяем, что все необходимые поля заполнены
	if c.AccessKeyID == "" {
		return fmt.Errorf("AccessKeyID is required")
	}
	if c.SecretAccessKey == "" {
		return fmt.Errorf("SecretAccessKey is required")
	}
	if c.Bucket == "" {
		return fmt.Errorf("Bucket is required")
	}
	return nil
}
