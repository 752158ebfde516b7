// internal/api/router.go
package api

import (
	"errors"
	"fmt"

	"github.com/ashrithajanga/CineGen/internal/catalog"
	"github.com/ashrithajanga/CineGen/internal/config"
	"github.com/ashrithajanga/CineGen/internal/di"
	"github.com/ashrithajanga/CineGen/internal/services"
	"github.com/ashrithajanga/CineGen/internal/utils"
	"github.com/gin-gonic/gin"
)

// NewHandler 从容器中取出服务并创建API处理器
func NewHandler(container *di.Container) (*Handler, error) {
	var errs []error
	h := &Handler{
		StudioService:     lookup[*services.StudioService](container, di.ServiceStudio, &errs),
		ArchiveService:    lookup[*services.ArchiveService](container, di.ServiceArchive, &errs),
		CharacterService:  lookup[*services.CharacterService](container, di.ServiceCharacter, &errs),
		ExportService:     lookup[*services.ExportService](container, di.ServiceExport, &errs),
		CampaignService:   lookup[*services.CampaignService](container, di.ServiceCampaign, &errs),
		GenerationService: lookup[*services.GenerationService](container, di.ServiceGeneration, &errs),
		ProgressService:   lookup[*services.ProgressService](container, di.ServiceProgress, &errs),
		Catalog:           lookup[*catalog.Catalog](container, di.ServiceCatalog, &errs),
		Config:            lookup[*config.Config](container, di.ServiceConfig, &errs),
		Credentials:       lookup[*config.CredentialStore](container, di.ServiceCredentials, &errs),
		Metrics:           lookup[*utils.GenerationMetrics](container, di.ServiceMetrics, &errs),
		Response:          NewResponseHelper(),
		logger:            lookup[*utils.Logger](container, di.ServiceLogger, &errs),
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("API 处理器初始化失败: %w", err)
	}

	h.WebSocketHandler = NewWebSocketHandler(h.ProgressService, NewWebSocketManager(), h.logger)
	return h, nil
}

func lookup[T any](c *di.Container, name string, errs *[]error) T {
	service, err := di.Resolve[T](c, name)
	if err != nil {
		*errs = append(*errs, err)
	}
	return service
}

// SetupRouter 配置HTTP路由
func SetupRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestIDMiddleware())
	r.Use(requestLogger(h.logger, h.Metrics))
	r.Use(corsMiddleware())

	limiter := NewRateLimiter(h.Config.APIRateLimit)

	// WebSocket 支持
	r.GET("/ws/tasks/:task_id", h.TaskWebSocket)

	api := r.Group("/api")
	{
		api.GET("/health", h.Health)
		api.GET("/catalog", h.GetCatalog)
		api.GET("/providers", h.GetProviders)
		api.GET("/metrics", h.GetMetrics)

		// ===============================
		// 生成相关路由（限流）
		// ===============================
		generate := api.Group("", limiter.Middleware(h.Response))
		{
			generate.POST("/projects", h.CreateProject)
			generate.POST("/projects/rewrite", h.RewriteProject)
			generate.POST("/campaigns", h.CreateCampaign)
		}

		// ===============================
		// 项目相关路由
		// ===============================
		projects := api.Group("/projects")
		{
			projects.GET("", h.ListProjects)
			projects.GET("/:id", h.GetProject)
			projects.GET("/:id/characters", h.GetCharacters)
			projects.POST("/:id/characters/rename", h.RenameCharacter)
			projects.GET("/:id/export", h.ExportProject)
		}

		// ===============================
		// 设置与进度
		// ===============================
		api.PUT("/settings/credentials", h.UpdateCredentials)
		api.POST("/tasks", h.CreateTask)
		api.GET("/progress/:task_id", h.SubscribeProgress)
		api.GET("/ws/status", h.GetWebSocketStatus)
	}

	return r
}
