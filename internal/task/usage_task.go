package task

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"socialgen_dev_v1_202609/internal/repository"
)

// ==================== UsageRollupTask 成本日报任务 ====================

// UsageRollupTask 每日汇总前一天的AI调用成本
type UsageRollupTask struct {
	logRepo repository.AICallLogRepository
	cron    *cron.Cron
}

// NewUsageRollupTask 创建成本日报任务
func NewUsageRollupTask(logRepo repository.AICallLogRepository) *UsageRollupTask {
	return &UsageRollupTask{
		logRepo: logRepo,
		cron:    cron.New(cron.WithSeconds()),
	}
}

// Start 启动定时任务
func (t *UsageRollupTask) Start() {
	// 每日 00:10 汇总前一天
	_, err := t.cron.AddFunc("0 10 0 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		t.rollupJob(ctx)
	})
	if err != nil {
		log.Fatalf("[UsageRollupTask] 无法启动成本日报任务: %v", err)
	}

	t.cron.Start()
	log.Println("[UsageRollupTask] 成本日报任务已启动")
}

// Stop 停止定时任务
func (t *UsageRollupTask) Stop() {
	t.cron.Stop()
	log.Println("[UsageRollupTask] 已停止")
}

// RollupNow 手动触发一次汇总
func (t *UsageRollupTask) RollupNow(ctx context.Context) {
	t.rollupJob(ctx)
}

func (t *UsageRollupTask) rollupJob(ctx context.Context) {
	end := time.Now().Truncate(24 * time.Hour)
	start := end.Add(-24 * time.Hour)

	cost, err := t.logRepo.GetTotalCost(ctx, start, end)
	if err != nil {
		log.Printf("[UsageRollupTask] 汇总成本失败: %v", err)
		return
	}

	log.Printf("[UsageRollupTask] %s 成功调用总成本: $%.4f", start.Format("2006-01-02"), cost)
}
