package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"socialgen_dev_v1_202609/internal/model"
)

// ==================== 视频降级链 ====================

// VideoChainService 视频生成降级链
// 提交任务后轮询直至完成或超限；全部供应商失败时落到占位资产，对外永不返回错误
type VideoChainService struct {
	Avatar  VideoProvider // person 类目优先
	General VideoProvider
	LowCost VideoProvider

	PollInterval    time.Duration // 默认 5 秒
	MaxPollAttempts int           // 默认 60 次
	SubmitTimeout   time.Duration
	PollTimeout     time.Duration // 单次状态查询上限
}

// NewVideoChainService 创建视频降级链，供应商可为 nil 表示未配置
func NewVideoChainService(avatar, general, lowCost VideoProvider) *VideoChainService {
	return &VideoChainService{
		Avatar:          avatar,
		General:         general,
		LowCost:         lowCost,
		PollInterval:    5 * time.Second,
		MaxPollAttempts: 60,
		SubmitTimeout:   60 * time.Second,
		PollTimeout:     15 * time.Second,
	}
}

// orderedProviders 视觉类目为 person 时数字人优先，否则通用文生视频优先
func (s *VideoChainService) orderedProviders(category string) []VideoProvider {
	var ordered []VideoProvider
	if category == "person" {
		ordered = []VideoProvider{s.Avatar, s.General, s.LowCost}
	} else {
		ordered = []VideoProvider{s.General, s.Avatar, s.LowCost}
	}

	result := make([]VideoProvider, 0, len(ordered))
	for _, p := range ordered {
		if p == nil {
			continue
		}
		if av, ok := p.(*AvatarProvider); ok && !av.Enabled {
			continue
		}
		result = append(result, p)
	}
	return result
}

// Generate 执行降级链
// category 来自视觉策略，决定供应商顺序；返回的资产始终非 nil
func (s *VideoChainService) Generate(ctx context.Context, pieceID int64, category string, req *GenerationRequest) *model.MediaAsset {
	providers := s.orderedProviders(category)
	attempts := make([]model.ProviderAttempt, 0, len(providers))

	for i, provider := range providers {
		start := time.Now()
		videoURL, cost, err := s.runProvider(ctx, provider, req)
		latency := time.Since(start).Milliseconds()

		if err == nil {
			attempts = append(attempts, model.ProviderAttempt{
				Provider:  provider.Name(),
				Seq:       i + 1,
				Outcome:   model.AttemptOutcomeSuccess,
				LatencyMs: latency,
				CostUSD:   cost,
			})
			asset := s.newAsset(pieceID, req)
			asset.EphemeralURL = videoURL
			asset.Provider = provider.Name()
			asset.CostUSD = cost
			asset.SetAttempts(attempts)
			return asset
		}

		outcome := model.AttemptOutcomeTransient
		switch {
		case isTimeoutErr(err):
			outcome = model.AttemptOutcomeTimeout
		case !IsTransient(err):
			outcome = model.AttemptOutcomePermanent
		}
		attempts = append(attempts, model.ProviderAttempt{
			Provider:  provider.Name(),
			Seq:       i + 1,
			Outcome:   outcome,
			LatencyMs: latency,
			Error:     err.Error(),
		})
		log.Printf("[VideoChain] 供应商 %s 失败 (%s): %v", provider.Name(), outcome, err)
	}

	log.Printf("[VideoChain] 所有供应商失败，使用占位资产")
	asset := newPlaceholderAsset(pieceID, model.MediaKindVideo, req)
	asset.SetAttempts(attempts)
	return asset
}

// runProvider 一次完整的 提交 + 轮询 周期
func (s *VideoChainService) runProvider(ctx context.Context, provider VideoProvider, req *GenerationRequest) (string, float64, error) {
	jobID, err := callWithTimeout(ctx, s.SubmitTimeout, func(callCtx context.Context) (string, error) {
		return provider.Submit(callCtx, req)
	})
	if err != nil {
		return "", 0, err
	}

	for attempt := 0; attempt < s.MaxPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", 0, ctx.Err()
		case <-time.After(s.PollInterval):
		}

		// 单次查询同样受硬超时约束，卡死的状态接口只消耗一次轮询额度
		status, err := callWithTimeout(ctx, s.PollTimeout, func(callCtx context.Context) (*VideoJobStatus, error) {
			return provider.Poll(callCtx, jobID)
		})
		if err != nil {
			// 单次查询失败不终止任务，继续下一轮
			log.Printf("[VideoChain] %s 轮询失败: %v", provider.Name(), err)
			continue
		}
		if status.Failed {
			return "", 0, fmt.Errorf("视频任务失败: %s", status.Error)
		}
		if status.Done {
			return status.VideoURL, status.CostUSD, nil
		}
	}

	return "", 0, context.DeadlineExceeded
}

func (s *VideoChainService) newAsset(pieceID int64, req *GenerationRequest) *model.MediaAsset {
	size := aspectRatioSizes[req.AspectRatio]
	if size[0] == 0 {
		size = aspectRatioSizes["9:16"]
	}
	return &model.MediaAsset{
		AssetID:   uuid.New().String(),
		PieceID:   pieceID,
		Kind:      model.MediaKindVideo,
		State:     model.PersistenceStateUnpersisted,
		Width:     size[0],
		Height:    size[1],
		CreatedAt: time.Now(),
	}
}
