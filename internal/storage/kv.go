// internal/storage/kv.go
package storage

import (
	"context"
	"fmt"
	"path/filepath"
)

// KVStore 键值存储：按键整体读取、整体覆盖
type KVStore interface {
	// Get 读取键值，不存在时 found 为 false
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	// Put 整体覆盖键值
	Put(ctx context.Context, key string, value []byte) error
	Close() error
}

// Open 按后端名称打开存储
func Open(backend, dataDir string) (KVStore, error) {
	switch backend {
	case "file":
		return NewFileStorage(filepath.Join(dataDir, "kv"))
	case "sqlite":
		return NewSQLiteStorage(filepath.Join(dataDir, "cinegen.db"))
	case "memory":
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("未知的存储后端: %s", backend)
	}
}
