// internal/models/progress.go
package models

// 任务状态
const (
	TaskStatusRunning   = "running"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
)

// ProgressUpdate 表示进度更新
type ProgressUpdate struct {
	TaskID   string `json:"task_id"`
	Progress int    `json:"progress"` // 进度百分比 (0-100)
	Message  string `json:"message"`
	Status   string `json:"status"`
	ResultID string `json:"result_id,omitempty"`
}
