package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound возвращается, когда ключа нет в хранилище
var ErrObjectNotFound = errors.New("object not found")

// Object - поток содержимого объекта с метаданными
type Object interface {
	io.ReadCloser
	ContentLength() int64
	ContentType() string
}

// object реализует интерфейс Object
type object struct {
	io.ReadCloser
	contentLength int64
	contentType   string
}

func (o *object) ContentLength() int64 {
	return o.contentLength
}

func (o *object) ContentType() string {
	return o.contentType
}

// Storage определяет интерфейс объектного хранилища бинарников версий
type Storage interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) (Object, error)
	// GetRange читает байты [start, end] включительно
	GetRange(ctx context.Context, key string, start, end int64) (Object, error)
	Delete(ctx context.Context, key string) error
}

// New создаёт хранилище по драйверу из конфигурации
func New(conf *Config) (Storage, error) {
	switch conf.Driver {
	case DriverMinio:
		return NewMinioClient(conf)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return NewS3Client(conf)
	}
}
