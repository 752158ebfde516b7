// internal/storage/file_storage.go
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// FileStorage 每个键一个文件的存储，写入为临时文件 + 重命名
type FileStorage struct {
	BaseDir string

	// 文件级别锁 path -> *sync.RWMutex
	fileLocks sync.Map

	// 读缓存，命中前需与磁盘文件比对
	cache *cache.Cache
}

// cachedFile 缓存的文件内容及写入时的文件信息
type cachedFile struct {
	data []byte
	info os.FileInfo
}

// sameFile 同一文件且修改时间、大小均未变化
func sameFile(a, b os.FileInfo) bool {
	return os.SameFile(a, b) && a.ModTime().Equal(b.ModTime()) && a.Size() == b.Size()
}

// NewFileStorage 创建文件存储服务
func NewFileStorage(baseDir string) (*FileStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("创建存储目录失败: %w", err)
	}

	return &FileStorage{
		BaseDir: baseDir,
		cache:   cache.New(5*time.Minute, 10*time.Minute),
	}, nil
}

// 获取文件锁
func (fs *FileStorage) getFileLock(fullPath string) *sync.RWMutex {
	value, _ := fs.fileLocks.LoadOrStore(fullPath, &sync.RWMutex{})
	return value.(*sync.RWMutex)
}

// pathFor 键映射为文件路径，非法字符替换为下划线
func (fs *FileStorage) pathFor(key string) string {
	return filepath.Join(fs.BaseDir, unsafeKeyChars.ReplaceAllString(key, "_")+".json")
}

// Get 读取键值
func (fs *FileStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	fullPath := fs.pathFor(key)

	lock := fs.getFileLock(fullPath)
	lock.RLock()
	defer lock.RUnlock()

	// 其他进程可能写过同一目录，缓存只在文件未变时有效
	info, err := os.Stat(fullPath)
	if os.IsNotExist(err) {
		fs.cache.Delete(fullPath)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("读取文件信息失败: %w", err)
	}
	if cached, ok := fs.cache.Get(fullPath); ok {
		if entry := cached.(cachedFile); sameFile(entry.info, info) {
			return cloneBytes(entry.data), true, nil
		}
	}

	file, err := os.Open(fullPath)
	if os.IsNotExist(err) {
		fs.cache.Delete(fullPath)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("读取文件失败: %w", err)
	}
	defer file.Close()

	// 以打开的句柄为准，避免 Stat 与读取之间文件被替换
	info, err = file.Stat()
	if err != nil {
		return nil, false, fmt.Errorf("读取文件信息失败: %w", err)
	}
	content, err := io.ReadAll(file)
	if err != nil {
		return nil, false, fmt.Errorf("读取文件失败: %w", err)
	}

	fs.cache.SetDefault(fullPath, cachedFile{data: cloneBytes(content), info: info})
	return content, true, nil
}

// Put 原子性覆盖写入
func (fs *FileStorage) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fullPath := fs.pathFor(key)

	lock := fs.getFileLock(fullPath)
	lock.Lock()
	defer lock.Unlock()

	tempPath := fullPath + ".tmp"
	if err := os.WriteFile(tempPath, value, 0644); err != nil {
		return fmt.Errorf("保存临时文件失败: %w", err)
	}

	if err := os.Rename(tempPath, fullPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("保存文件失败: %w", err)
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		fs.cache.Delete(fullPath)
		return nil
	}
	fs.cache.SetDefault(fullPath, cachedFile{data: cloneBytes(value), info: info})
	return nil
}

// Close 清空缓存
func (fs *FileStorage) Close() error {
	fs.cache.Flush()
	return nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
