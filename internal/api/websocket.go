// internal/api/websocket.go
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashrithajanga/CineGen/internal/models"
	"github.com/ashrithajanga/CineGen/internal/services"
	"github.com/ashrithajanga/CineGen/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingInterval = 54 * time.Second
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketClient 一个订阅任务进度的连接
type WebSocketClient struct {
	conn      *websocket.Conn
	taskID    string
	closed    int32 // 0=开启，1=关闭
	createdAt time.Time
}

// Close 安全关闭客户端连接
func (client *WebSocketClient) Close() {
	if atomic.CompareAndSwapInt32(&client.closed, 0, 1) {
		client.conn.Close()
	}
}

// IsClosed 检查连接是否已关闭
func (client *WebSocketClient) IsClosed() bool {
	return atomic.LoadInt32(&client.closed) == 1
}

// WebSocketManager 按任务ID管理连接
type WebSocketManager struct {
	mu          sync.RWMutex
	connections map[string]map[*WebSocketClient]struct{}
}

// NewWebSocketManager 创建连接管理器
func NewWebSocketManager() *WebSocketManager {
	return &WebSocketManager{connections: make(map[string]map[*WebSocketClient]struct{})}
}

func (manager *WebSocketManager) register(client *WebSocketClient) {
	manager.mu.Lock()
	defer manager.mu.Unlock()

	if manager.connections[client.taskID] == nil {
		manager.connections[client.taskID] = make(map[*WebSocketClient]struct{})
	}
	manager.connections[client.taskID][client] = struct{}{}
}

func (manager *WebSocketManager) unregister(client *WebSocketClient) {
	manager.mu.Lock()
	defer manager.mu.Unlock()

	if clients, ok := manager.connections[client.taskID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(manager.connections, client.taskID)
		}
	}
	client.Close()
}

// GetStatus 获取连接状态
func (manager *WebSocketManager) GetStatus() map[string]interface{} {
	manager.mu.RLock()
	defer manager.mu.RUnlock()

	tasks := make(map[string]int, len(manager.connections))
	total := 0
	for taskID, clients := range manager.connections {
		tasks[taskID] = len(clients)
		total += len(clients)
	}
	return map[string]interface{}{
		"total_tasks":       len(manager.connections),
		"total_connections": total,
		"tasks":             tasks,
	}
}

// Shutdown 关闭全部连接
func (manager *WebSocketManager) Shutdown() {
	manager.mu.Lock()
	defer manager.mu.Unlock()

	for _, clients := range manager.connections {
		for client := range clients {
			client.Close()
		}
	}
	manager.connections = make(map[string]map[*WebSocketClient]struct{})
}

// WebSocketHandler 任务进度推送
type WebSocketHandler struct {
	progress *services.ProgressService
	manager  *WebSocketManager
	response *ResponseHelper
	logger   *utils.Logger
}

// NewWebSocketHandler 创建 WebSocket 处理器
func NewWebSocketHandler(progress *services.ProgressService, manager *WebSocketManager, logger *utils.Logger) *WebSocketHandler {
	if manager == nil {
		manager = NewWebSocketManager()
	}
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &WebSocketHandler{
		progress: progress,
		manager:  manager,
		response: NewResponseHelper(),
		logger:   logger,
	}
}

// TaskWebSocket 推送任务进度，任务结束后服务端关闭连接
func (wh *WebSocketHandler) TaskWebSocket(c *gin.Context) {
	taskID := c.Param("task_id")
	tracker, ok := wh.progress.GetTracker(taskID)
	if !ok {
		wh.response.NotFound(c, ErrorTaskNotFound, "任务不存在", "任务ID: "+taskID)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		wh.logger.Warn("WebSocket 升级失败", map[string]interface{}{"task_id": taskID, "error": err})
		return
	}

	client := &WebSocketClient{conn: conn, taskID: taskID, createdAt: time.Now()}
	wh.manager.register(client)
	defer wh.manager.unregister(client)

	updates := tracker.Subscribe()
	defer tracker.Unsubscribe(updates)

	readDone := make(chan struct{})
	go wh.handleReads(client, readDone)

	wh.handleWrites(client, updates, readDone)
}

// handleReads 只处理控制帧，连接断开时通知写协程
func (wh *WebSocketHandler) handleReads(client *WebSocketClient, done chan<- struct{}) {
	defer close(done)

	client.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && !client.IsClosed() {
				wh.logger.Debug("WebSocket 读取结束", map[string]interface{}{"task_id": client.taskID, "error": err})
			}
			return
		}
	}
}

// handleWrites 转发进度更新并定期发送 ping
func (wh *WebSocketHandler) handleWrites(client *WebSocketClient, updates <-chan models.ProgressUpdate, readDone <-chan struct{}) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			data, err := json.Marshal(gin.H{"type": "progress", "update": update})
			if err != nil {
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
			if update.Status != models.TaskStatusRunning {
				client.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, update.Status))
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-readDone:
			return
		}
	}
}

// Shutdown 关闭所有 WebSocket 连接
func (wh *WebSocketHandler) Shutdown() {
	wh.manager.Shutdown()
}
