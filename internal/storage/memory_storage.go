// internal/storage/memory_storage.go
package storage

import (
	"context"
	"sync"
)

// MemoryStorage 进程内存储，用于测试与临时运行
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStorage 创建内存存储
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]byte)}
}

// Get 读取键值
func (m *MemoryStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.data[key]
	return cloneBytes(value), ok, nil
}

// Put 整体覆盖键值
func (m *MemoryStorage) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = cloneBytes(value)
	return nil
}

// Close 无操作
func (m *MemoryStorage) Close() error { return nil }
