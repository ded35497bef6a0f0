package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"gorm.io/datatypes"

	"socialgen_dev_v1_202609/internal/model"
	"socialgen_dev_v1_202609/internal/repository"
)

// ==================== 编排配置 ====================

const defaultPoolSize = 4

// OrchestratorConfig 编排服务配置
type OrchestratorConfig struct {
	ContentTypes []string        // 默认 educational/viral/sales
	VideoTypes   map[string]bool // 走视频链路的内容类型
	IdeaCount    int
	ImageQuality string // standard / hd

	LLMConcurrency     int64
	ImageConcurrency   int64
	VideoConcurrency   int64
	StorageConcurrency int64
}

func (c *OrchestratorConfig) normalize() {
	if len(c.ContentTypes) == 0 {
		c.ContentTypes = model.DefaultContentTypes()
	}
	if c.IdeaCount <= 0 {
		c.IdeaCount = 5
	}
	if c.ImageQuality == "" {
		c.ImageQuality = "standard"
	}
	if c.LLMConcurrency <= 0 {
		c.LLMConcurrency = defaultPoolSize
	}
	if c.ImageConcurrency <= 0 {
		c.ImageConcurrency = defaultPoolSize
	}
	if c.VideoConcurrency <= 0 {
		c.VideoConcurrency = defaultPoolSize
	}
	if c.StorageConcurrency <= 0 {
		c.StorageConcurrency = defaultPoolSize
	}
}

// ==================== 编排服务 ====================

// OrchestratorService 内容生成编排
// 串联视觉分析、文案生成、媒体生成与持久化；按提供商类别限制并发
type OrchestratorService struct {
	Visual  *VisualAgentService
	Content *ContentAgentService
	Prompts *PromptBuilder
	Images  *ImageChainService
	Videos  *VideoChainService
	Assets  *AssetPersistenceService
	LogRepo repository.AICallLogRepository // 可为 nil（测试场景）

	config OrchestratorConfig

	llmSem     *semaphore.Weighted
	imageSem   *semaphore.Weighted
	videoSem   *semaphore.Weighted
	storageSem *semaphore.Weighted
}

// NewOrchestratorService 创建编排服务
func NewOrchestratorService(
	visual *VisualAgentService,
	content *ContentAgentService,
	prompts *PromptBuilder,
	images *ImageChainService,
	videos *VideoChainService,
	assets *AssetPersistenceService,
	logRepo repository.AICallLogRepository,
	cfg OrchestratorConfig,
) *OrchestratorService {
	cfg.normalize()
	return &OrchestratorService{
		Visual:     visual,
		Content:    content,
		Prompts:    prompts,
		Images:     images,
		Videos:     videos,
		Assets:     assets,
		LogRepo:    logRepo,
		config:     cfg,
		llmSem:     semaphore.NewWeighted(cfg.LLMConcurrency),
		imageSem:   semaphore.NewWeighted(cfg.ImageConcurrency),
		videoSem:   semaphore.NewWeighted(cfg.VideoConcurrency),
		storageSem: semaphore.NewWeighted(cfg.StorageConcurrency),
	}
}

// ==================== 用量账本 ====================

// usageTally 并发安全的运行账本
// 成本只累计成功调用；失败调用记日志但不计费
type usageTally struct {
	mu          sync.Mutex
	ownerID     int64
	logRepo     repository.AICallLogRepository
	totalTokens int
	totalCost   float64
	failures    []string
}

func (t *usageTally) recordCall(callType, modelName string, usage *CallUsage, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry := &model.AICallLog{
		OwnerID:  t.ownerID,
		CallType: callType,
		Status:   model.AICallStatusSuccess,
	}
	if usage != nil {
		entry.ModelName = usage.ModelName
		entry.InputTokens = usage.InputTokens
		entry.OutputTokens = usage.OutputTokens
		entry.DurationMs = usage.DurationMs
		entry.CostUSD = usage.CostUSD
	}
	if entry.ModelName == "" {
		entry.ModelName = modelName
	}

	if err != nil {
		entry.Status = model.AICallStatusFailed
		entry.ErrorMsg = err.Error()
		entry.CostUSD = 0
	} else if usage != nil {
		t.totalTokens += usage.TotalTokens()
		t.totalCost += usage.CostUSD
	}

	t.saveLog(entry)
}

// recordAttempts 记录媒体降级链审计，仅成功的尝试计入总成本
func (t *usageTally) recordAttempts(callType string, attempts []model.ProviderAttempt) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, attempt := range attempts {
		entry := &model.AICallLog{
			OwnerID:    t.ownerID,
			CallType:   callType,
			ModelName:  attempt.Provider,
			DurationMs: attempt.LatencyMs,
			Status:     model.AICallStatusFailed,
			ErrorMsg:   attempt.Error,
		}
		if attempt.Outcome == model.AttemptOutcomeSuccess {
			entry.Status = model.AICallStatusSuccess
			entry.CostUSD = attempt.CostUSD
			entry.AssetCount = 1
			t.totalCost += attempt.CostUSD
		}
		t.saveLog(entry)
	}
}

func (t *usageTally) addFailure(format string, args ...interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures = append(t.failures, fmt.Sprintf(format, args...))
}

func (t *usageTally) saveLog(entry *model.AICallLog) {
	if t.logRepo == nil {
		return
	}
	// 日志写入不应随请求取消而丢失
	if err := t.logRepo.Create(context.Background(), entry); err != nil {
		log.Printf("[Orchestrator] 写入调用日志失败: %v", err)
	}
}

// ==================== 主流程 ====================

// GenerateOptions 单次编排的可选覆盖项
type GenerateOptions struct {
	ContentTypes []string
	VideoTypes   []string
}

// ProcessRequest 执行一次完整编排
// 视觉分析失败为致命错误；单条内容失败只进失败清单；所有条目失败返回 ErrAllPiecesFailed
func (s *OrchestratorService) ProcessRequest(ctx context.Context, ownerID int64, profile *model.BusinessProfile, opts *GenerateOptions) (*model.ContentPackage, error) {
	tally := &usageTally{ownerID: ownerID, logRepo: s.LogRepo}

	contentTypes := s.config.ContentTypes
	videoTypes := s.config.VideoTypes
	if opts != nil && len(opts.ContentTypes) > 0 {
		contentTypes = opts.ContentTypes
	}
	if opts != nil && len(opts.VideoTypes) > 0 {
		videoTypes = make(map[string]bool, len(opts.VideoTypes))
		for _, t := range opts.VideoTypes {
			videoTypes[t] = true
		}
	}

	// 第一步：视觉策略分析（所有条目共享，失败即整体失败）
	strategy, err := s.analyzeStrategy(ctx, profile, tally)
	if err != nil {
		return nil, err
	}
	log.Printf("[Orchestrator] 视觉策略: %s", strategy.Summary())

	// 第二步：后续选题建议（辅助环节，失败忽略）
	ideas := s.generateIdeas(ctx, profile, tally)

	// 第三步：各内容类型并发生成
	type pieceResult struct {
		index int
		piece *model.ContentPiece
	}
	results := make(chan pieceResult, len(contentTypes))
	var wg sync.WaitGroup
	for i, contentType := range contentTypes {
		wg.Add(1)
		go func(index int, ct string) {
			defer wg.Done()
			piece := s.generatePiece(ctx, ct, videoTypes[ct], profile, strategy, tally)
			results <- pieceResult{index: index, piece: piece}
		}(i, contentType)
	}
	wg.Wait()
	close(results)

	// 保持请求中的内容类型顺序
	ordered := make([]*model.ContentPiece, len(contentTypes))
	for r := range results {
		ordered[r.index] = r.piece
	}
	pieces := make([]model.ContentPiece, 0, len(ordered))
	for _, p := range ordered {
		if p != nil {
			pieces = append(pieces, *p)
		}
	}

	if len(pieces) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrAllPiecesFailed, tally.failures)
	}

	// 第四步：组装内容包（仅此一次，返回后不再修改）
	strategyJSON, _ := json.Marshal(strategy)
	pkg := &model.ContentPackage{
		OwnerID:         ownerID,
		ProfileID:       profile.ID,
		StrategySummary: strategy.Summary(),
		StrategyJSON:    datatypes.JSON(strategyJSON),
		Pieces:          pieces,
		ContentIdeas:    ideas,
		TotalTokens:     tally.totalTokens,
		TotalCostUSD:    tally.totalCost,
		GeneratedAt:     time.Now(),
		FailureManifest: tally.failures,
	}
	return pkg, nil
}

func (s *OrchestratorService) analyzeStrategy(ctx context.Context, profile *model.BusinessProfile, tally *usageTally) (*VisualStrategy, error) {
	if err := s.llmSem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.llmSem.Release(1)

	strategy, usage, err := s.Visual.AnalyzeBusinessVisuals(ctx, profile)
	tally.recordCall(model.AICallTypeText, "visual_analysis", usage, err)
	return strategy, err
}

func (s *OrchestratorService) generateIdeas(ctx context.Context, profile *model.BusinessProfile, tally *usageTally) []string {
	if err := s.llmSem.Acquire(ctx, 1); err != nil {
		return nil
	}
	defer s.llmSem.Release(1)

	ideas, usage, err := s.Content.GenerateContentIdeas(ctx, profile, s.config.IdeaCount)
	tally.recordCall(model.AICallTypeText, "content_ideas", usage, err)
	if err != nil {
		log.Printf("[Orchestrator] 选题建议生成失败（忽略）: %v", err)
		return nil
	}
	return ideas
}

// generatePiece 生成单条内容：文案与提示词并行，随后媒体生成与持久化
// 返回 nil 表示该条目失败，原因已进失败清单
func (s *OrchestratorService) generatePiece(ctx context.Context, contentType string, isVideo bool, profile *model.BusinessProfile, strategy *VisualStrategy, tally *usageTally) *model.ContentPiece {
	var (
		wg          sync.WaitGroup
		copyResult  *ContentResult
		copyErr     error
		mediaPrompt string
		promptErr   error
	)

	topic := fmt.Sprintf("%s content for %s", contentType, profile.Niche)

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := s.llmSem.Acquire(ctx, 1); err != nil {
			copyErr = err
			return
		}
		defer s.llmSem.Release(1)
		var usage *CallUsage
		copyResult, usage, copyErr = s.Content.Generate(ctx, contentType, topic, profile)
		tally.recordCall(model.AICallTypeText, "content_"+contentType, usage, copyErr)
	}()
	go func() {
		defer wg.Done()
		if err := s.llmSem.Acquire(ctx, 1); err != nil {
			promptErr = err
			return
		}
		defer s.llmSem.Release(1)
		var usage *CallUsage
		if isVideo {
			mediaPrompt, usage, promptErr = s.Visual.GenerateVideoPrompt(ctx, strategy, profile)
		} else {
			mediaPrompt, usage, promptErr = s.Visual.GeneratePromptForPost(ctx, strategy, contentType, profile)
		}
		tally.recordCall(model.AICallTypeText, "media_prompt_"+contentType, usage, promptErr)
	}()
	wg.Wait()

	// 文案失败则整条放弃
	if copyErr != nil {
		tally.addFailure("%s: 文案生成失败: %v", contentType, copyErr)
		return nil
	}
	// 提示词失败降级到策略基础模板，条目保留
	if promptErr != nil {
		tally.addFailure("%s: 媒体提示词生成失败，使用策略模板降级: %v", contentType, promptErr)
		mediaPrompt = strategy.PromptTemplate
	}

	platform := profile.PrimaryPlatform()
	req := &GenerationRequest{
		Prompt:      s.Prompts.Build(mediaPrompt, strategy.PhotographyStyle, platform),
		Style:       strategy.PhotographyStyle,
		AspectRatio: AspectRatioForPlatform(platform),
		Quality:     s.config.ImageQuality,
		Platform:    platform,
		Seed:        s.Prompts.Seed(),
	}

	// 条目不允许缺媒体：拿不到媒体池名额同样落到占位资产
	var asset *model.MediaAsset
	if isVideo {
		req.Kind = string(model.MediaKindVideo)
		req.AspectRatio = "9:16"
		if err := s.videoSem.Acquire(ctx, 1); err == nil {
			asset = s.Videos.Generate(ctx, 0, strategy.Category, req)
			s.videoSem.Release(1)
			tally.recordAttempts(model.AICallTypeVideo, asset.GetAttempts())
		} else {
			asset = newPlaceholderAsset(0, model.MediaKindVideo, req)
		}
	} else {
		req.Kind = string(model.MediaKindImage)
		if err := s.imageSem.Acquire(ctx, 1); err == nil {
			asset = s.Images.Generate(ctx, 0, req)
			s.imageSem.Release(1)
			tally.recordAttempts(model.AICallTypeImage, asset.GetAttempts())
		} else {
			asset = newPlaceholderAsset(0, model.MediaKindImage, req)
		}
	}

	if asset.Placeholder {
		tally.addFailure("%s: 媒体生成未完成，使用占位资产", contentType)
		// 占位资产只做状态迁移，不经过存储池
		s.Assets.Persist(ctx, asset, tally.ownerID)
	} else if err := s.storageSem.Acquire(ctx, 1); err == nil {
		s.Assets.Persist(ctx, asset, tally.ownerID)
		s.storageSem.Release(1)
	} else {
		asset.MarkPersistFailed()
	}
	if asset.State == model.PersistenceStateFailed {
		tally.addFailure("%s: 媒体持久化失败，保留临时地址", contentType)
	}

	return &model.ContentPiece{
		Type:                contentType,
		Hook:                copyResult.Hook,
		Caption:             copyResult.Caption,
		Hashtags:            copyResult.Hashtags,
		CTA:                 copyResult.CTA,
		EstimatedEngagement: copyResult.EstimatedEngagement,
		BestTimeToPost:      copyResult.BestTimeToPost,
		QualityScore:        copyResult.QualityScore,
		MediaAsset:          asset,
	}
}
