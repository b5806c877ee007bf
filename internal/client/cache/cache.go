// Package cache - локальное хранилище ключ-значение, в которое клиент
// откатывается, когда сервер недоступен. Запись всегда целиком
// перезаписывает значение ключа (побеждает последний писатель).
package cache

import (
	"context"
	"fmt"
	"io"
	"strings"
)

const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Adapter - единственная точка доступа к кэшу
type Adapter interface {
	// Get возвращает значение ключа; ok=false, если ключа нет
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Put(ctx context.Context, key string, value []byte) error
}

type Config struct {
	Driver     string `mapstructure:"Driver"`
	Dir        string `mapstructure:"Dir"`
	SQLitePath string `mapstructure:"SQLitePath"`
	RedisAddr  string `mapstructure:"RedisAddr"`
	RedisDB    int    `mapstructure:"RedisDB"`
}

// New создает адаптер по конфигурации. Возвращаемый io.Closer освобождает
// соединения бэкенда.
func New(ctx context.Context, cfg Config) (Adapter, io.Closer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverMemory:
		return NewMemory(), nopCloser{}, nil
	case DriverFile:
		f, err := NewFile(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return f, nopCloser{}, nil
	case DriverSQLite:
		s, err := OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case DriverRedis:
		r, err := NewRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return r, r, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
