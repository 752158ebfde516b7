// internal/services/lock_manager.go
package services

import "sync"

// LockManager 按项目 ID 分配互斥锁，无人持有时回收
type LockManager struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// NewLockManager 创建锁管理器
func NewLockManager() *LockManager {
	return &LockManager{locks: make(map[string]*lockEntry)}
}

func (lm *LockManager) acquire(id string) *lockEntry {
	lm.mu.Lock()
	entry, ok := lm.locks[id]
	if !ok {
		entry = &lockEntry{}
		lm.locks[id] = entry
	}
	entry.refs++
	lm.mu.Unlock()

	entry.mu.Lock()
	return entry
}

func (lm *LockManager) release(id string, entry *lockEntry) {
	entry.mu.Unlock()

	lm.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(lm.locks, id)
	}
	lm.mu.Unlock()
}

// ExecuteWithProjectLock 在项目锁保护下执行操作
func (lm *LockManager) ExecuteWithProjectLock(projectID string, fn func() error) error {
	entry := lm.acquire(projectID)
	defer lm.release(projectID, entry)
	return fn()
}

// Len 当前持有或等待中的锁数量
func (lm *LockManager) Len() int {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return len(lm.locks)
}
