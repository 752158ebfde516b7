// internal/services/Progress_service.go
package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/ashrithajanga/CineGen/internal/models"
)

// ProgressTracker 跟踪一次生成任务的进度，nil 跟踪器上的方法均为空操作
type ProgressTracker struct {
	TaskID      string
	Progress    int
	Message     string
	Status      string
	ResultID    string
	StartTime   time.Time
	UpdateTime  time.Time
	Subscribers map[chan models.ProgressUpdate]bool
	Done        chan struct{}
	mutex       sync.Mutex
}

// ProgressService 管理所有进度跟踪器
type ProgressService struct {
	trackers map[string]*ProgressTracker
	mutex    sync.RWMutex
}

// NewProgressService 创建进度服务实例
func NewProgressService() *ProgressService {
	return &ProgressService{
		trackers: make(map[string]*ProgressTracker),
	}
}

// Track 为任务创建（或取回）跟踪器，taskID 为空时返回 nil
func (s *ProgressService) Track(taskID string) *ProgressTracker {
	if s == nil || taskID == "" {
		return nil
	}
	return s.CreateTracker(taskID)
}

// CreateTracker 创建新的进度跟踪器
func (s *ProgressService) CreateTracker(taskID string) *ProgressTracker {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	// 如果已存在，返回现有追踪器
	if tracker, exists := s.trackers[taskID]; exists {
		return tracker
	}

	now := time.Now()
	tracker := &ProgressTracker{
		TaskID:      taskID,
		Message:     "任务初始化中...",
		Status:      models.TaskStatusRunning,
		StartTime:   now,
		UpdateTime:  now,
		Subscribers: make(map[chan models.ProgressUpdate]bool),
		Done:        make(chan struct{}),
	}

	s.trackers[taskID] = tracker
	return tracker
}

// GetTracker 获取进度跟踪器
func (s *ProgressService) GetTracker(taskID string) (*ProgressTracker, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	tracker, exists := s.trackers[taskID]
	return tracker, exists
}

// snapshotLocked 生成当前状态，调用方需持有锁
func (t *ProgressTracker) snapshotLocked() models.ProgressUpdate {
	return models.ProgressUpdate{
		TaskID:   t.TaskID,
		Progress: t.Progress,
		Message:  t.Message,
		Status:   t.Status,
		ResultID: t.ResultID,
	}
}

// broadcastLocked 非阻塞通知所有订阅者，通道已满则跳过
func (t *ProgressTracker) broadcastLocked() {
	update := t.snapshotLocked()
	for subscriber := range t.Subscribers {
		select {
		case subscriber <- update:
		default:
		}
	}
}

func (t *ProgressTracker) finishedLocked() bool {
	return t.Status != models.TaskStatusRunning
}

// Snapshot 返回当前状态
func (t *ProgressTracker) Snapshot() models.ProgressUpdate {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.snapshotLocked()
}

// UpdateProgress 更新任务进度，进度只增不减
func (t *ProgressTracker) UpdateProgress(progress int, message string) {
	if t == nil {
		return
	}
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.finishedLocked() {
		return
	}
	if progress > t.Progress {
		t.Progress = progress
	}
	if message != "" {
		t.Message = message
	}
	t.UpdateTime = time.Now()
	t.broadcastLocked()
}

// Complete 标记任务完成，resultID 为产出记录的 ID（可为空）
func (t *ProgressTracker) Complete(message, resultID string) {
	if t == nil {
		return
	}
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.finishedLocked() {
		return
	}
	t.Progress = 100
	if message == "" {
		message = "任务已完成"
	}
	t.Message = message
	t.ResultID = resultID
	t.Status = models.TaskStatusCompleted
	t.UpdateTime = time.Now()

	t.broadcastLocked()
	close(t.Done)
}

// Fail 标记任务失败
func (t *ProgressTracker) Fail(err error) {
	if t == nil {
		return
	}
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.finishedLocked() {
		return
	}
	t.Message = fmt.Sprintf("任务失败: %v", err)
	t.Status = models.TaskStatusFailed
	t.UpdateTime = time.Now()

	t.broadcastLocked()
	close(t.Done)
}

// Subscribe 订阅进度更新，订阅时立即收到当前状态
func (t *ProgressTracker) Subscribe() chan models.ProgressUpdate {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	subscriber := make(chan models.ProgressUpdate, 10)
	t.Subscribers[subscriber] = true
	subscriber <- t.snapshotLocked()

	return subscriber
}

// Unsubscribe 取消订阅
func (t *ProgressTracker) Unsubscribe(subscriber chan models.ProgressUpdate) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if _, ok := t.Subscribers[subscriber]; !ok {
		return
	}
	delete(t.Subscribers, subscriber)
	close(subscriber)
}

// CleanupCompletedTasks 清理已结束且超过 maxAge 的任务
func (s *ProgressService) CleanupCompletedTasks(maxAge time.Duration) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	removed := 0
	now := time.Now()
	for id, tracker := range s.trackers {
		tracker.mutex.Lock()
		expired := tracker.finishedLocked() && now.Sub(tracker.UpdateTime) > maxAge
		tracker.mutex.Unlock()

		if expired {
			delete(s.trackers, id)
			removed++
		}
	}
	return removed
}
