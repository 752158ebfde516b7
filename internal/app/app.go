// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ashrithajanga/CineGen/internal/api"
	"github.com/ashrithajanga/CineGen/internal/catalog"
	"github.com/ashrithajanga/CineGen/internal/config"
	"github.com/ashrithajanga/CineGen/internal/di"
	"github.com/ashrithajanga/CineGen/internal/llm"
	"github.com/ashrithajanga/CineGen/internal/services"
	"github.com/ashrithajanga/CineGen/internal/storage"
	"github.com/ashrithajanga/CineGen/internal/utils"
	"github.com/gin-gonic/gin"

	// 注册生成后端
	_ "github.com/ashrithajanga/CineGen/internal/llm/providers/chat"
	_ "github.com/ashrithajanga/CineGen/internal/llm/providers/google"
)

const (
	shutdownTimeout      = 30 * time.Second
	taskCleanupInterval  = 10 * time.Minute
	finishedTaskLifetime = time.Hour
)

// server 便于测试替换的 HTTP 服务器
type server interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// App 应用程序结构
type App struct {
	config    *config.Config
	container *di.Container
	handler   *api.Handler
	router    *gin.Engine
	server    server
	store     storage.KVStore
	logger    *utils.Logger
	stopChan  chan os.Signal
}

// BuildContainer 按依赖顺序创建并注册所有服务
// 返回的存储由调用方负责关闭
func BuildContainer(cfg *config.Config, logger *utils.Logger, registry *llm.Registry) (*di.Container, storage.KVStore, error) {
	if logger == nil {
		logger = utils.GetLogger()
	}
	if registry == nil {
		registry = llm.DefaultRegistry
	}

	store, err := storage.Open(cfg.ArchiveBackend, cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("打开存储失败: %w", err)
	}

	if _, ok := registry.Descriptor(cfg.DefaultProvider); !ok {
		logger.Warn("默认生成后端未注册", map[string]interface{}{"provider": cfg.DefaultProvider})
	}

	metrics := utils.NewGenerationMetrics(nil, logger)
	cat := catalog.Default()
	credentials := config.NewCredentialStore(cfg.DataDir, cfg.CredentialSecret)

	generation := services.NewGenerationService(registry, services.GenerationOptions{
		LatencyFloor:         cfg.LatencyFloor(),
		CampaignLatencyFloor: cfg.CampaignLatencyFloor(),
		Metrics:              metrics,
		Logger:               logger,
	})
	generation.ConfigureProviders(credentials.Resolve(cfg))

	displayNames := make(map[string]string)
	for _, d := range registry.Descriptors() {
		displayNames[d.ID] = d.DisplayName
	}

	archive := services.NewArchiveService(store)
	progress := services.NewProgressService()
	export, err := services.NewExportService(archive, services.PageLayout{Width: cfg.PageWidth, Height: cfg.PageHeight}, displayNames)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	container := di.NewContainer()
	container.Register(di.ServiceConfig, cfg)
	container.Register(di.ServiceLogger, logger)
	container.Register(di.ServiceMetrics, metrics)
	container.Register(di.ServiceStorage, store)
	container.Register(di.ServiceCatalog, cat)
	container.Register(di.ServiceCredentials, credentials)
	container.Register(di.ServiceGeneration, generation)
	container.Register(di.ServiceArchive, archive)
	container.Register(di.ServiceProgress, progress)
	container.Register(di.ServiceStudio, services.NewStudioService(generation, archive, cat, progress, cfg.DefaultProvider))
	container.Register(di.ServiceCharacter, services.NewCharacterService(archive, services.NewLockManager()))
	container.Register(di.ServiceExport, export)
	container.Register(di.ServiceCampaign, services.NewCampaignService(generation, cat, progress, cfg.DefaultProvider))

	logger.Info("服务初始化完成", map[string]interface{}{
		"services":        len(container.GetNames()),
		"archive_backend": cfg.ArchiveBackend,
	})
	return container, store, nil
}

// New 创建应用：服务容器、API 路由与 HTTP 服务器
func New(cfg *config.Config, logger *utils.Logger) (*App, error) {
	if logger == nil {
		logger = utils.GetLogger()
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}

	container, store, err := BuildContainer(cfg, logger, nil)
	if err != nil {
		return nil, err
	}

	handler, err := api.NewHandler(container)
	if err != nil {
		store.Close()
		return nil, err
	}
	router := api.SetupRouter(handler)

	return &App{
		config:    cfg,
		container: container,
		handler:   handler,
		router:    router,
		server:    &http.Server{Addr: ":" + cfg.Port, Handler: router},
		store:     store,
		logger:    logger,
		stopChan:  make(chan os.Signal, 1),
	}, nil
}

// InitLogger 初始化日志，写入 LOG_DIR/cinegen.log
func InitLogger(cfg *config.Config) error {
	if err := utils.InitLogger(filepath.Join(cfg.LogDir, "cinegen.log")); err != nil {
		return err
	}
	if cfg.DebugMode {
		utils.GetLogger().SetLogLevel(utils.DEBUG)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	return nil
}

// GetConfig 获取应用配置
func (a *App) GetConfig() *config.Config {
	return a.config
}

// GetDIContainer 获取依赖注入容器
func (a *App) GetDIContainer() *di.Container {
	return a.container
}

// Router 返回 HTTP 处理器
func (a *App) Router() http.Handler {
	return a.router
}

// Run 启动服务器，收到 SIGINT/SIGTERM 后优雅关闭
func (a *App) Run() error {
	signal.Notify(a.stopChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(a.stopChan)

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("服务器启动", map[string]interface{}{"port": a.config.Port})
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	done := make(chan struct{})
	go a.cleanupTasks(done)
	defer close(done)

	select {
	case <-a.stopChan:
	case err := <-serverErr:
		a.cleanup()
		return fmt.Errorf("启动服务器失败: %w", err)
	}

	a.logger.Info("正在关闭服务器...", nil)
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.handler.WebSocketHandler.Shutdown()
	err := a.server.Shutdown(ctx)
	a.cleanup()
	if err != nil {
		return fmt.Errorf("服务器强制关闭: %w", err)
	}
	a.logger.Info("服务器已关闭", nil)
	return nil
}

// Stop 触发优雅关闭
func (a *App) Stop() {
	select {
	case a.stopChan <- syscall.SIGTERM:
	default:
	}
}

// cleanupTasks 定期清理已结束的进度任务
func (a *App) cleanupTasks(done <-chan struct{}) {
	ticker := time.NewTicker(taskCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := a.handler.ProgressService.CleanupCompletedTasks(finishedTaskLifetime); removed > 0 {
				a.logger.Debug("已清理结束的任务", map[string]interface{}{"removed": removed})
			}
		case <-done:
			return
		}
	}
}

// cleanup 释放存储并刷新日志
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("关闭存储失败", map[string]interface{}{"error": err})
		}
	}
	a.logger.Sync()
}
