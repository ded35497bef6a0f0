package task

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"socialgen_dev_v1_202609/internal/model"
	"socialgen_dev_v1_202609/internal/repository"
	"socialgen_dev_v1_202609/internal/service"
)

// ==================== AssetCleanupTask 过期资产清理任务 ====================

// AssetCleanupTask 定时清理未持久化的过期资产
// 提供商临时地址通常数小时内失效，失效后记录只剩审计价值，按保留期清除
type AssetCleanupTask struct {
	packageRepo repository.ContentPackageRepository
	storage     service.StorageProvider
	cron        *cron.Cron

	retention        time.Duration
	batchSize        int
	concurrencyLimit int
	sleepTime        time.Duration
}

// NewAssetCleanupTask 创建清理任务
func NewAssetCleanupTask(packageRepo repository.ContentPackageRepository, storage service.StorageProvider) *AssetCleanupTask {
	return &AssetCleanupTask{
		packageRepo:      packageRepo,
		storage:          storage,
		cron:             cron.New(cron.WithSeconds()),
		retention:        48 * time.Hour,
		batchSize:        100,
		concurrencyLimit: 5,
		sleepTime:        100 * time.Millisecond,
	}
}

// SetConcurrency 设置并发参数
func (t *AssetCleanupTask) SetConcurrency(limit int, sleepTime time.Duration) {
	if limit > 0 {
		t.concurrencyLimit = limit
	}
	t.sleepTime = sleepTime
}

// SetRetention 设置保留期
func (t *AssetCleanupTask) SetRetention(retention time.Duration) {
	if retention > 0 {
		t.retention = retention
	}
}

// Start 启动定时任务
func (t *AssetCleanupTask) Start() {
	// 过期资产清理（每小时）
	_, err := t.cron.AddFunc("0 0 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		t.cleanupJob(ctx)
	})
	if err != nil {
		log.Fatalf("[AssetCleanupTask] 无法启动清理任务: %v", err)
	}

	t.cron.Start()
	log.Println("[AssetCleanupTask] 过期资产清理任务已启动")
}

// Stop 停止定时任务
func (t *AssetCleanupTask) Stop() {
	t.cron.Stop()
	log.Println("[AssetCleanupTask] 已停止")
}

// CleanupNow 手动触发一次清理
func (t *AssetCleanupTask) CleanupNow(ctx context.Context) {
	t.cleanupJob(ctx)
}

// cleanupJob 清理一批过期的未持久化资产，单条失败不影响其他
func (t *AssetCleanupTask) cleanupJob(ctx context.Context) {
	before := time.Now().Add(-t.retention)
	assets, err := t.packageRepo.ListExpiredUnpersistedAssets(ctx, before, t.batchSize)
	if err != nil {
		log.Printf("[AssetCleanupTask] 查询过期资产失败: %v", err)
		return
	}
	if len(assets) == 0 {
		return
	}

	log.Printf("[AssetCleanupTask] 开始清理 %d 条过期资产", len(assets))

	sem := make(chan struct{}, t.concurrencyLimit)
	var wg sync.WaitGroup
	var successCount, failCount int32

	for _, asset := range assets {
		select {
		case <-ctx.Done():
			log.Printf("[AssetCleanupTask] 上下文取消，中止清理")
			wg.Wait()
			return
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(a model.MediaAsset) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := t.cleanupOne(ctx, &a); err != nil {
				log.Printf("[AssetCleanupTask] 清理资产 %s 失败: %v", a.AssetID, err)
				atomic.AddInt32(&failCount, 1)
				return
			}
			atomic.AddInt32(&successCount, 1)
		}(asset)

		time.Sleep(t.sleepTime)
	}
	wg.Wait()

	log.Printf("[AssetCleanupTask] 清理完成: 成功 %d, 失败 %d", successCount, failCount)
}

func (t *AssetCleanupTask) cleanupOne(ctx context.Context, asset *model.MediaAsset) error {
	// 持久化失败的资产可能有残留对象，尽力删除
	if t.storage != nil && asset.PermanentURL != "" && asset.PermanentURL != asset.EphemeralURL {
		if err := t.storage.Delete(ctx, asset.PermanentURL); err != nil {
			log.Printf("[AssetCleanupTask] 删除存储对象失败 asset=%s: %v", asset.AssetID, err)
		}
	}
	return t.packageRepo.DeleteAsset(ctx, asset.ID)
}
