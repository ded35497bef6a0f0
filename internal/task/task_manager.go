package task

import (
	"context"
	"errors"
	"log"
	"time"

	"socialgen_dev_v1_202609/internal/repository"
	"socialgen_dev_v1_202609/internal/service"
)

// ErrTaskDisabled 任务未启用
var ErrTaskDisabled = errors.New("任务未启用")

// ==================== TaskManager 后台任务管理器 ====================

// TaskManager 统一管理后台维护任务
// 管理范围：过期资产清理、成本日报
type TaskManager struct {
	cleanupTask *AssetCleanupTask
	usageTask   *UsageRollupTask
}

// TaskManagerDeps 任务管理器依赖
type TaskManagerDeps struct {
	PackageRepo repository.ContentPackageRepository
	LogRepo     repository.AICallLogRepository
	Storage     service.StorageProvider
}

// TaskManagerConfig 任务管理器配置
type TaskManagerConfig struct {
	// 清理任务
	CleanupEnabled     bool
	CleanupConcurrency int
	CleanupRetention   time.Duration

	// 成本日报
	UsageRollupEnabled bool
}

// DefaultConfig 默认配置
func DefaultConfig() *TaskManagerConfig {
	return &TaskManagerConfig{
		CleanupEnabled:     true,
		CleanupConcurrency: 5,
		CleanupRetention:   48 * time.Hour,

		UsageRollupEnabled: true,
	}
}

// NewTaskManager 创建任务管理器
func NewTaskManager(deps *TaskManagerDeps, cfg *TaskManagerConfig) *TaskManager {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	tm := &TaskManager{}

	if cfg.CleanupEnabled && deps.PackageRepo != nil {
		tm.cleanupTask = NewAssetCleanupTask(deps.PackageRepo, deps.Storage)
		tm.cleanupTask.SetConcurrency(cfg.CleanupConcurrency, 100*time.Millisecond)
		tm.cleanupTask.SetRetention(cfg.CleanupRetention)
	}

	if cfg.UsageRollupEnabled && deps.LogRepo != nil {
		tm.usageTask = NewUsageRollupTask(deps.LogRepo)
	}

	return tm
}

// ==================== 生命周期管理 ====================

// Start 启动所有任务
func (tm *TaskManager) Start() {
	log.Println("[TaskManager] 正在启动后台维护任务...")

	if tm.cleanupTask != nil {
		tm.cleanupTask.Start()
	}
	if tm.usageTask != nil {
		tm.usageTask.Start()
	}

	log.Println("[TaskManager] 后台维护任务已全部启动")
}

// Stop 停止所有任务
func (tm *TaskManager) Stop() {
	log.Println("[TaskManager] 正在停止后台维护任务...")

	if tm.cleanupTask != nil {
		tm.cleanupTask.Stop()
	}
	if tm.usageTask != nil {
		tm.usageTask.Stop()
	}

	log.Println("[TaskManager] 后台维护任务已全部停止")
}

// ==================== 手动触发接口 ====================

// TriggerCleanup 触发资产清理
func (tm *TaskManager) TriggerCleanup(ctx context.Context) error {
	if tm.cleanupTask == nil {
		return ErrTaskDisabled
	}
	tm.cleanupTask.CleanupNow(ctx)
	return nil
}

// TriggerUsageRollup 触发成本汇总
func (tm *TaskManager) TriggerUsageRollup(ctx context.Context) error {
	if tm.usageTask == nil {
		return ErrTaskDisabled
	}
	tm.usageTask.RollupNow(ctx)
	return nil
}
