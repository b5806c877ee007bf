package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"Server"`
	Database DatabaseConfig `mapstructure:"Database"`
	Auth     AuthConfig     `mapstructure:"Auth"`
	Log      LogConfig      `mapstructure:"Log"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"Port"`
	BaseURL         string        `mapstructure:"BaseURL"`
	ShutdownTimeout time.Duration `mapstructure:"ShutdownTimeout"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"Host"`
	Port         string `mapstructure:"Port"`
	User         string `mapstructure:"User"`
	Password     string `mapstructure:"Password"`
	Name         string `mapstructure:"Name"`
	SSLMode      string `mapstructure:"SSLMode"`
	MaxOpenConns int    `mapstructure:"MaxOpenConns"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"JWTSecret"`
}

type LogConfig struct {
	Level string `mapstructure:"Level"`
}

var envBindings = map[string]string{
	"Database.Host":          "DATABASE_HOST",
	"Database.Port":          "DATABASE_PORT",
	"Database.User":          "DATABASE_USER",
	"Database.Password":      "DATABASE_PASSWORD",
	"Database.Name":          "DATABASE_NAME",
	"Database.SSLMode":       "DATABASE_SSLMODE",
	"Database.MaxOpenConns":  "DATABASE_MAX_OPEN_CONNS",
	"Server.Port":            "HTTP_PORT",
	"Server.BaseURL":         "BASE_URL",
	"Server.ShutdownTimeout": "SHUTDOWN_TIMEOUT",
	"Auth.JWTSecret":         "JWT_SECRET",
	"Log.Level":              "LOG_LEVEL",
}

// NewConfig читает конфигурацию из файла path; переменные окружения имеют приоритет.
// Перед этим подгружается .env, если он есть.
func NewConfig(path string) (*Config, error) {
	// .env необязателен: в контейнере всё приходит из окружения
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")

	v.SetDefault("Server.Port", "2525")
	v.SetDefault("Server.ShutdownTimeout", 30*time.Second)
	v.SetDefault("Database.SSLMode", "disable")
	v.SetDefault("Database.MaxOpenConns", 25)
	v.SetDefault("Log.Level", "info")

	// Привязываем переменные окружения
	for key, env := range envBindings {
		v.BindEnv(key, env)
	}

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Warning: using only environment variables: %v\n", err)
	}

	// В .env-файле ключи плоские (DATABASE_HOST), переносим их во вложенные секции.
	// Окружение по-прежнему перекрывает значения из файла.
	for key, env := range envBindings {
		if v.InConfig(env) {
			v.SetDefault(key, v.Get(env))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Database.Host == "" ||
		c.Database.Port == "" ||
		c.Database.User == "" ||
		c.Database.Password == "" ||
		c.Database.Name == "" {
		return fmt.Errorf("database configuration is incomplete: host=%s, port=%s, user=%s, name=%s",
			c.Database.Host, c.Database.Port, c.Database.User, c.Database.Name)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth configuration is incomplete: JWT_SECRET is required")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}

// GetURL - строка подключения в формате URL для golang-migrate
func (c *DatabaseConfig) GetURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Name,
		c.SSLMode,
	)
}
