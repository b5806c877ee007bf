package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

type memoryObject struct {
	data        []byte
	contentType string
}

// Memory - хранилище в памяти процесса для локального запуска и тестов
type Memory struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string]memoryObject)}
}

func (m *Memory) Put(_ context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{data: bytes.Clone(data), contentType: contentType}
	return nil
}

func (m *Memory) Get(_ context.Context, key string) (Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return &object{
		ReadCloser:    io.NopCloser(bytes.NewReader(obj.data)),
		contentLength: int64(len(obj.data)),
		contentType:   obj.contentType,
	}, nil
}

func (m *Memory) GetRange(_ context.Context, key string, start, end int64) (Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	size := int64(len(obj.data))
	if start < 0 || start >= size || end < start {
		return nil, fmt.Errorf("invalid range %d-%d for object of %d bytes", start, end, size)
	}
	if end >= size {
		end = size - 1
	}
	part := obj.data[start : end+1]
	return &object{
		ReadCloser:    io.NopCloser(bytes.NewReader(part)),
		contentLength: int64(len(part)),
		contentType:   obj.contentType,
	}, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Len возвращает количество объектов
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
