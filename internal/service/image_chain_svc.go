package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"socialgen_dev_v1_202609/internal/model"
)

// ==================== 图片降级链 ====================

// 各宽高比对应的占位图尺寸
var aspectRatioSizes = map[string][2]int{
	"1:1":    {1080, 1080},
	"4:5":    {1080, 1350},
	"9:16":   {1080, 1920},
	"16:9":   {1920, 1080},
	"1.91:1": {1200, 628},
}

// ImageChainService 图片生成降级链
// 依序尝试各供应商，全部失败时落到占位图，对外永不返回错误
type ImageChainService struct {
	Photographic ImageProvider // 写实风格优先
	General      ImageProvider
	LowCost      ImageProvider // 始终最后尝试
	Timeout      time.Duration // 单供应商调用上限
}

// NewImageChainService 创建图片降级链，供应商可为 nil 表示未配置
func NewImageChainService(photographic, general, lowCost ImageProvider) *ImageChainService {
	return &ImageChainService{
		Photographic: photographic,
		General:      general,
		LowCost:      lowCost,
		Timeout:      90 * time.Second,
	}
}

// orderedProviders 按风格决定尝试顺序，未配置的供应商直接跳过
func (s *ImageChainService) orderedProviders(style string) []ImageProvider {
	var ordered []ImageProvider
	if style == "realistic" || style == "photographic" {
		ordered = []ImageProvider{s.Photographic, s.General, s.LowCost}
	} else {
		ordered = []ImageProvider{s.General, s.Photographic, s.LowCost}
	}

	result := make([]ImageProvider, 0, len(ordered))
	for _, p := range ordered {
		if p != nil {
			result = append(result, p)
		}
	}
	return result
}

// Generate 执行降级链
// 返回的资产始终非 nil：成功时带临时地址，全部失败时为占位图资产
func (s *ImageChainService) Generate(ctx context.Context, pieceID int64, req *GenerationRequest) *model.MediaAsset {
	providers := s.orderedProviders(req.Style)
	attempts := make([]model.ProviderAttempt, 0, len(providers))

	for i, provider := range providers {
		start := time.Now()
		result, err := callWithTimeout(ctx, s.Timeout, func(callCtx context.Context) (*GenerationResult, error) {
			return provider.Generate(callCtx, req)
		})
		latency := time.Since(start).Milliseconds()

		if err == nil {
			attempts = append(attempts, model.ProviderAttempt{
				Provider:  provider.Name(),
				Seq:       i + 1,
				Outcome:   model.AttemptOutcomeSuccess,
				LatencyMs: latency,
				CostUSD:   result.CostUSD,
			})
			asset := s.newAsset(pieceID, req)
			asset.EphemeralURL = result.EphemeralURL
			asset.Provider = provider.Name()
			asset.CostUSD = result.CostUSD
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
		log.Printf("[ImageChain] 供应商 %s 失败 (%s): %v", provider.Name(), outcome, err)
	}

	// 全链失败：按宽高比生成占位图，内容包仍完整可用
	log.Printf("[ImageChain] 所有供应商失败，使用占位图 (aspectRatio=%s)", req.AspectRatio)
	asset := newPlaceholderAsset(pieceID, model.MediaKindImage, req)
	asset.SetAttempts(attempts)
	return asset
}

func (s *ImageChainService) newAsset(pieceID int64, req *GenerationRequest) *model.MediaAsset {
	size := aspectRatioSizes[req.AspectRatio]
	if size[0] == 0 {
		size = aspectRatioSizes["4:5"]
	}
	return &model.MediaAsset{
		AssetID:   uuid.New().String(),
		PieceID:   pieceID,
		Kind:      model.MediaKindImage,
		State:     model.PersistenceStateUnpersisted,
		Width:     size[0],
		Height:    size[1],
		CreatedAt: time.Now(),
	}
}

// placeholderURL 按宽高比生成尺寸正确的占位图地址
func placeholderURL(aspectRatio string) string {
	size, ok := aspectRatioSizes[aspectRatio]
	if !ok {
		size = aspectRatioSizes["4:5"]
	}
	return fmt.Sprintf("https://placehold.co/%dx%d/png", size[0], size[1])
}

// newPlaceholderAsset 构造占位资产
// 降级链全败或媒体池名额不可用时兜底：条目不允许缺媒体
func newPlaceholderAsset(pieceID int64, kind model.MediaKind, req *GenerationRequest) *model.MediaAsset {
	fallback := "4:5"
	if kind == model.MediaKindVideo {
		fallback = "9:16"
	}
	size, ok := aspectRatioSizes[req.AspectRatio]
	if !ok {
		size = aspectRatioSizes[fallback]
	}
	return &model.MediaAsset{
		AssetID:      uuid.New().String(),
		PieceID:      pieceID,
		Kind:         kind,
		State:        model.PersistenceStateUnpersisted,
		EphemeralURL: placeholderURL(req.AspectRatio),
		Provider:     "placeholder",
		Placeholder:  true,
		Width:        size[0],
		Height:       size[1],
		CreatedAt:    time.Now(),
	}
}

// ==================== 超时控制 ====================

// callWithTimeout 在受限时间内执行调用
// 超时后放弃等待：后台 goroutine 自行结束，结果丢弃
func callWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result T
		err    error
	}
	ch := make(chan outcome, 1)
	go func() {
		r, err := fn(callCtx)
		ch <- outcome{result: r, err: err}
	}()

	select {
	case o := <-ch:
		return o.result, o.err
	case <-callCtx.Done():
		var zero T
		return zero, callCtx.Err()
	}
}

func isTimeoutErr(err error) bool {
	return err == context.DeadlineExceeded || (err != nil && err.Error() == context.DeadlineExceeded.Error())
}
