// internal/api/handlers.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ashrithajanga/CineGen/internal/catalog"
	"github.com/ashrithajanga/CineGen/internal/config"
	"github.com/ashrithajanga/CineGen/internal/models"
	"github.com/ashrithajanga/CineGen/internal/services"
	"github.com/ashrithajanga/CineGen/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const sseHeartbeatInterval = 15 * time.Second

// Handler 处理API请求
type Handler struct {
	// 核心服务
	StudioService     *services.StudioService     // 写作与改写
	ArchiveService    *services.ArchiveService    // 项目归档
	CharacterService  *services.CharacterService  // 角色识别与改名
	ExportService     *services.ExportService     // 分页导出
	CampaignService   *services.CampaignService   // 社媒文案
	GenerationService *services.GenerationService // 生成后端
	ProgressService   *services.ProgressService   // 进度跟踪服务

	Catalog     *catalog.Catalog
	Config      *config.Config
	Credentials *config.CredentialStore
	Metrics     *utils.GenerationMetrics

	WebSocketHandler *WebSocketHandler // WebSocket 处理器
	Response         *ResponseHelper   // 响应助手
	logger           *utils.Logger
}

// RenameRequest 角色改名请求
type RenameRequest struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to"`
}

// CredentialRequest 保存凭证请求
type CredentialRequest struct {
	Credential string `json:"credential" binding:"required"`
	APIKey     string `json:"api_key" binding:"required"`
}

// Health 健康检查
func (h *Handler) Health(c *gin.Context) {
	available := 0
	for _, p := range h.GenerationService.Providers() {
		if p.Available {
			available++
		}
	}
	h.Response.Success(c, gin.H{
		"status":              "ok",
		"available_providers": available,
		"archive_backend":     h.Config.ArchiveBackend,
	})
}

// GetCatalog 返回可选的类型、基调、篇幅与语言
func (h *Handler) GetCatalog(c *gin.Context) {
	h.Response.Success(c, h.Catalog)
}

// GetProviders 列出生成后端及可用状态
func (h *Handler) GetProviders(c *gin.Context) {
	h.Response.Success(c, gin.H{
		"default":   h.Config.DefaultProvider,
		"providers": h.GenerationService.Providers(),
	})
}

// CreateTask 预先创建进度任务，客户端可先订阅再发起生成
func (h *Handler) CreateTask(c *gin.Context) {
	taskID := uuid.NewString()
	h.ProgressService.CreateTracker(taskID)
	h.Response.Created(c, gin.H{"task_id": taskID}, "任务已创建")
}

// CreateProject 根据故事概念生成新剧本
func (h *Handler) CreateProject(c *gin.Context) {
	var req services.WriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求参数错误", err.Error())
		return
	}

	project, err := h.StudioService.Write(c.Request.Context(), req)
	if err != nil {
		h.Response.HandleError(c, err)
		return
	}
	h.Response.Created(c, project, "剧本生成成功")
}

// RewriteProject 按修改说明改写剧本
func (h *Handler) RewriteProject(c *gin.Context) {
	var req services.RewriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求参数错误", err.Error())
		return
	}

	project, err := h.StudioService.Rewrite(c.Request.Context(), req)
	if err != nil {
		h.Response.HandleError(c, err)
		return
	}
	h.Response.Created(c, project, "剧本改写成功")
}

// ListProjects 按保存时间倒序列出项目
func (h *Handler) ListProjects(c *gin.Context) {
	projects, err := h.ArchiveService.List(c.Request.Context())
	if err != nil {
		h.Response.HandleError(c, err)
		return
	}

	summaries := make([]models.ProjectSummary, 0, len(projects))
	for _, p := range projects {
		summaries = append(summaries, p.Summary())
	}
	h.Response.Success(c, gin.H{"projects": summaries, "total": len(summaries)})
}

// GetProject 获取项目详情
func (h *Handler) GetProject(c *gin.Context) {
	project, err := h.ArchiveService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.HandleError(c, err)
		return
	}
	h.Response.Success(c, project)
}

// GetCharacters 识别项目剧本中的角色
func (h *Handler) GetCharacters(c *gin.Context) {
	projectID := c.Param("id")
	names, err := h.CharacterService.Detect(c.Request.Context(), projectID)
	if err != nil {
		h.Response.HandleError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"project_id": projectID, "characters": names})
}

// RenameCharacter 在剧本中重命名角色
func (h *Handler) RenameCharacter(c *gin.Context) {
	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求参数错误", err.Error())
		return
	}

	project, err := h.CharacterService.Rename(c.Request.Context(), c.Param("id"), req.From, req.To)
	if err != nil {
		h.Response.HandleError(c, err)
		return
	}
	h.Response.Success(c, project, "角色已重命名")
}

// ExportProject 导出分页后的项目文档
func (h *Handler) ExportProject(c *gin.Context) {
	format := strings.ToLower(c.DefaultQuery("format", services.ExportFormatText))
	if format != services.ExportFormatText && format != services.ExportFormatJSON {
		h.Response.Error(c, http.StatusBadRequest, ErrorExportFormatInvalid, "不支持的导出格式",
			fmt.Sprintf("支持的格式: %s, %s", services.ExportFormatText, services.ExportFormatJSON))
		return
	}

	doc, err := h.ExportService.ExportProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.HandleError(c, err)
		return
	}

	content, contentType, fileName, err := h.ExportService.Render(doc, format)
	if err != nil {
		h.Response.HandleError(c, err)
		return
	}
	h.Response.FileResponse(c, content, fileName, contentType)
}

// CreateCampaign 生成社媒文案
func (h *Handler) CreateCampaign(c *gin.Context) {
	var req services.CampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求参数错误", err.Error())
		return
	}

	campaign, err := h.CampaignService.Generate(c.Request.Context(), req)
	if err != nil {
		h.Response.HandleError(c, err)
		return
	}
	h.Response.Success(c, campaign, "文案生成成功")
}

// UpdateCredentials 加密保存凭证并重新配置生成后端
func (h *Handler) UpdateCredentials(c *gin.Context) {
	var req CredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求参数错误", err.Error())
		return
	}

	if err := h.Credentials.Set(req.Credential, req.APIKey); err != nil {
		h.Response.HandleError(c, err)
		return
	}
	h.GenerationService.ConfigureProviders(h.Credentials.Resolve(h.Config))

	h.logger.Info("凭证已更新", map[string]interface{}{"credential": req.Credential})
	h.Response.Success(c, gin.H{"providers": h.GenerationService.Providers()}, "凭证已保存")
}

// GetMetrics 返回生成与请求指标
func (h *Handler) GetMetrics(c *gin.Context) {
	h.Response.Success(c, h.Metrics.Collector().GetMetrics())
}

// GetWebSocketStatus 获取 WebSocket 连接状态
func (h *Handler) GetWebSocketStatus(c *gin.Context) {
	h.Response.Success(c, h.WebSocketHandler.manager.GetStatus())
}

// SubscribeProgress 以 SSE 推送任务进度
func (h *Handler) SubscribeProgress(c *gin.Context) {
	taskID := c.Param("task_id")

	tracker, exists := h.ProgressService.GetTracker(taskID)
	if !exists {
		h.Response.NotFound(c, ErrorTaskNotFound, "任务不存在", "任务ID: "+taskID)
		return
	}

	// 设置SSE响应头
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	clientGone := c.Request.Context().Done()

	updateChan := tracker.Subscribe()
	defer tracker.Unsubscribe(updateChan)

	ticker := time.NewTicker(sseHeartbeatInterval)
	defer ticker.Stop()

	fmt.Fprintf(c.Writer, "event: connected\ndata: {\"task_id\":%q}\n\n", taskID)
	c.Writer.Flush()

	for {
		select {
		case <-clientGone:
			return
		case update, ok := <-updateChan:
			if !ok {
				return
			}
			data, _ := json.Marshal(update)
			fmt.Fprintf(c.Writer, "event: progress\ndata: %s\n\n", data)
			c.Writer.Flush()

			if update.Status != models.TaskStatusRunning {
				return
			}
		case <-ticker.C:
			fmt.Fprintf(c.Writer, "event: heartbeat\ndata: {\"time\":%d}\n\n", time.Now().Unix())
			c.Writer.Flush()
		}
	}
}

// TaskWebSocket 以 WebSocket 推送任务进度
func (h *Handler) TaskWebSocket(c *gin.Context) {
	h.WebSocketHandler.TaskWebSocket(c)
}
