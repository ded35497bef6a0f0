package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// ==================== GenerateRateLimiter 生成限流器 ====================

// GenerateRateLimiter 内容生成限流器
// 一次编排会触发多次模型与媒体调用，按用户维度设置冷却防止成本失控
type GenerateRateLimiter struct {
	locks sync.Map // key -> *lockEntry
}

// lockEntry 锁条目
type lockEntry struct {
	lastTime time.Time
	mu       sync.Mutex
}

// 全局限流器实例
var globalLimiter = &GenerateRateLimiter{}

// GetLimiter 获取全局限流器
func GetLimiter() *GenerateRateLimiter {
	return globalLimiter
}

// ==================== 限流检查 ====================

// CheckResult 检查结果
type CheckResult struct {
	Allowed    bool          // 是否允许
	RetryAfter time.Duration // 剩余冷却时间
}

// Check 检查是否允许执行，允许时立即更新最后执行时间
func (r *GenerateRateLimiter) Check(key string, interval time.Duration) CheckResult {
	actual, _ := r.locks.LoadOrStore(key, &lockEntry{})
	entry := actual.(*lockEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(entry.lastTime)

	if elapsed < interval {
		return CheckResult{
			Allowed:    false,
			RetryAfter: interval - elapsed,
		}
	}

	entry.lastTime = now
	return CheckResult{Allowed: true}
}

// Reset 重置指定 key 的限流（编排失败后放行重试）
func (r *GenerateRateLimiter) Reset(key string) {
	r.locks.Delete(key)
}

// OwnerGenerateKey 生成用户级限流 Key
func OwnerGenerateKey(ownerID int64) string {
	return fmt.Sprintf("owner:%d:generate", ownerID)
}

// ==================== 中间件 ====================

// 默认冷却：一次编排涉及多个付费调用
const DefaultGenerateInterval = 1 * time.Minute

// GenerateRateLimit 内容生成限流中间件
// 从请求体无法预读用户ID，因此用 owner_id 查询参数或全局维度限流
func GenerateRateLimit(interval time.Duration) gin.HandlerFunc {
	if interval == 0 {
		interval = DefaultGenerateInterval
	}

	return func(c *gin.Context) {
		key := "global:generate"
		if ownerID := c.Query("owner_id"); ownerID != "" {
			key = "owner:" + ownerID + ":generate"
		}

		result := GetLimiter().Check(key, interval)
		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":    429,
				"message": fmt.Sprintf("生成冷却中，请 %d 秒后重试", int(result.RetryAfter.Seconds())),
				"data": gin.H{
					"retry_after": int(result.RetryAfter.Seconds()),
				},
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
