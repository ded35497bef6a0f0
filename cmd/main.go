package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"socialgen_dev_v1_202609/internal/controller"
	"socialgen_dev_v1_202609/internal/model"
	"socialgen_dev_v1_202609/internal/repository"
	"socialgen_dev_v1_202609/internal/router"
	"socialgen_dev_v1_202609/internal/service"
	"socialgen_dev_v1_202609/internal/task"
	"socialgen_dev_v1_202609/pkg/database"
)

func main() {
	// 1. 初始化数据库
	db := initDatabase()

	// 2. 初始化依赖
	deps := initDependencies(db)

	// 3. 启动定时任务
	initTasks(deps)

	// 4. 初始化路由
	r := gin.Default()
	router.InitRoutes(r, deps.Controllers.Content)

	// 5. 启动服务
	startServer(r, deps)
}

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	DB          *gorm.DB
	Repos       *Repositories
	Services    *Services
	Controllers *Controllers
	TaskManager *task.TaskManager
}

// Repositories 仓库集合
type Repositories struct {
	Profile   repository.BusinessProfileRepository
	Package   repository.ContentPackageRepository
	AiCallLog repository.AICallLogRepository
}

// Services 服务集合
type Services struct {
	Visual       *service.VisualAgentService
	Content      *service.ContentAgentService
	ImageChain   *service.ImageChainService
	VideoChain   *service.VideoChainService
	Storage      service.StorageProvider
	Assets       *service.AssetPersistenceService
	Orchestrator *service.OrchestratorService
}

// Controllers 控制器集合
type Controllers struct {
	Content *controller.ContentController
}

// ==================== 初始化函数 ====================

// initDatabase 初始化数据库
func initDatabase() *gorm.DB {
	dsn := getEnv("DATABASE_DSN",
		"host=localhost user=postgres password=postgres dbname=socialgen port=5432 sslmode=disable TimeZone=UTC")

	return database.InitDB(dsn,
		// Profile
		&model.BusinessProfile{},
		// Content
		&model.ContentPackage{}, &model.ContentPiece{}, &model.MediaAsset{},
		// Audit
		&model.AICallLog{},
	)
}

// initDependencies 初始化所有依赖
func initDependencies(db *gorm.DB) *Dependencies {
	// -------- Repo 层 --------
	repos := &Repositories{
		Profile:   repository.NewBusinessProfileRepository(db),
		Package:   repository.NewContentPackageRepository(db),
		AiCallLog: repository.NewAICallLogRepository(db),
	}

	// -------- LLM 智能体 --------
	geminiKey := getEnv("GEMINI_API_KEY", "")
	if geminiKey == "" {
		cfgErr := &service.ConfigurationError{Provider: "gemini", Missing: "GEMINI_API_KEY"}
		log.Fatalf("启动失败: %v", cfgErr)
	}

	visualSvc := service.NewVisualAgentService(&service.LLMConfig{ApiKey: geminiKey})
	contentSvc := service.NewContentAgentService(&service.LLMConfig{ApiKey: geminiKey})

	// -------- 媒体生成链 --------
	imageChain := service.NewImageChainService(
		service.NewImagenProvider(geminiKey, ""),
		service.NewGeminiImageProvider(geminiKey, ""),
		service.NewFlashImageProvider(geminiKey, ""),
	)

	var avatarProvider service.VideoProvider
	if avatar := service.NewAvatarProvider(
		getEnv("AVATAR_API_KEY", ""),
		getEnv("AVATAR_BASE_URL", ""),
		getEnv("AVATAR_ID", ""),
		getEnv("AVATAR_VOICE_ID", ""),
	); avatar.Enabled {
		avatarProvider = avatar
	} else {
		log.Println("警告: 数字人供应商未配置，视频链路仅使用通用文生视频")
	}
	videoChain := service.NewVideoChainService(
		avatarProvider,
		service.NewVeoProvider(geminiKey, ""),
		nil,
	)

	// -------- 存储 & 持久化 --------
	storageSvc := initStorageProvider()
	assetSvc := service.NewAssetPersistenceService(storageSvc)

	// -------- 编排服务 --------
	orchestrator := service.NewOrchestratorService(
		visualSvc, contentSvc,
		service.NewPromptBuilder(nil),
		imageChain, videoChain, assetSvc,
		repos.AiCallLog,
		service.OrchestratorConfig{
			VideoTypes:         parseVideoTypes(getEnv("VIDEO_CONTENT_TYPES", "")),
			ImageQuality:       getEnv("IMAGE_QUALITY", "standard"),
			LLMConcurrency:     getEnvInt64("LLM_CONCURRENCY", 4),
			ImageConcurrency:   getEnvInt64("IMAGE_CONCURRENCY", 4),
			VideoConcurrency:   getEnvInt64("VIDEO_CONCURRENCY", 4),
			StorageConcurrency: getEnvInt64("STORAGE_CONCURRENCY", 4),
		},
	)

	services := &Services{
		Visual:       visualSvc,
		Content:      contentSvc,
		ImageChain:   imageChain,
		VideoChain:   videoChain,
		Storage:      storageSvc,
		Assets:       assetSvc,
		Orchestrator: orchestrator,
	}

	// -------- Controller 层 --------
	controllers := &Controllers{
		Content: controller.NewContentController(orchestrator, repos.Profile, repos.Package, repos.AiCallLog, storageSvc),
	}

	return &Dependencies{
		DB:          db,
		Repos:       repos,
		Services:    services,
		Controllers: controllers,
	}
}

// initStorageProvider 初始化存储提供者
func initStorageProvider() service.StorageProvider {
	storageSvc, err := service.NewStorageProvider(&service.StorageConfig{
		Provider:  getEnv("STORAGE_PROVIDER", "s3"),
		Bucket:    getEnv("STORAGE_BUCKET", ""),
		Region:    getEnv("STORAGE_REGION", ""),
		AccessKey: getEnv("STORAGE_ACCESS_KEY", ""),
		SecretKey: getEnv("STORAGE_SECRET_KEY", ""),
		Endpoint:  getEnv("STORAGE_ENDPOINT", ""),
		CDNDomain: getEnv("STORAGE_CDN_DOMAIN", ""),
		BasePath:  getEnv("STORAGE_BASE_PATH", "content"),
	})
	if err != nil {
		log.Printf("警告: 存储服务初始化失败，媒体将保留临时地址: %v", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := storageSvc.EnsureBucket(ctx); err != nil {
		log.Printf("警告: 存储桶检查失败: %v", err)
	}
	return storageSvc
}

// parseVideoTypes 解析走视频链路的内容类型，逗号分隔
func parseVideoTypes(raw string) map[string]bool {
	result := map[string]bool{}
	for _, part := range strings.Split(raw, ",") {
		if t := strings.TrimSpace(part); t != "" {
			result[t] = true
		}
	}
	return result
}

// ==================== 定时任务 ====================

// initTasks 初始化定时任务
func initTasks(deps *Dependencies) {
	tm := task.NewTaskManager(
		&task.TaskManagerDeps{
			PackageRepo: deps.Repos.Package,
			LogRepo:     deps.Repos.AiCallLog,
			Storage:     deps.Services.Storage,
		},
		&task.TaskManagerConfig{
			CleanupEnabled:     getEnv("CLEANUP_ENABLED", "true") == "true",
			CleanupConcurrency: int(getEnvInt64("CLEANUP_CONCURRENCY", 5)),
			CleanupRetention:   time.Duration(getEnvInt64("CLEANUP_RETENTION_HOURS", 48)) * time.Hour,
			UsageRollupEnabled: getEnv("USAGE_ROLLUP_ENABLED", "true") == "true",
		},
	)
	tm.Start()
	deps.TaskManager = tm

	log.Println("定时任务已启动")
}

// ==================== 服务启动 ====================

// startServer 启动服务
func startServer(r *gin.Engine, deps *Dependencies) {
	port := getEnv("SERVER_PORT", "8080")

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	// 异步启动服务
	go func() {
		log.Printf("服务启动在 :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	if deps.TaskManager != nil {
		deps.TaskManager.Stop()
	}

	// 优雅关闭，最多等待 30 秒
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("服务强制关闭: %v", err)
	}

	log.Println("服务已退出")
}

// ==================== 工具函数 ====================

// getEnv 获取环境变量，不存在时返回默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt64 获取整型环境变量
func getEnvInt64(key string, defaultValue int64) int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Printf("警告: 环境变量 %s=%q 不是合法整数，使用默认值 %d", key, raw, defaultValue)
		return defaultValue
	}
	return value
}
