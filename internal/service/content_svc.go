package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"socialgen_dev_v1_202609/internal/model"
)

// ==================== 内容智能体 ====================

// ContentResult 单条内容文案结果
type ContentResult struct {
	Hook                string   `json:"hook"`
	Caption             string   `json:"caption"`
	Hashtags            []string `json:"hashtags"`
	CTA                 string   `json:"cta"`
	EstimatedEngagement string   `json:"estimated_engagement"`
	BestTimeToPost      string   `json:"best_time_to_post"`
	QualityScore        float64  `json:"quality_score"`
}

// ContentAgentService 文案生成智能体
// 每个内容类型（educational/viral/sales）独立生成，单条失败不影响其他条目
type ContentAgentService struct {
	Config *LLMConfig
}

// NewContentAgentService 创建文案智能体
func NewContentAgentService(cfg *LLMConfig) *ContentAgentService {
	cfg.normalize()
	return &ContentAgentService{Config: cfg}
}

// contentTypeGuides 各内容类型的写作要求
var contentTypeGuides = map[string]string{
	model.ContentTypeEducational: "Teach one concrete, actionable tip. Lead with the problem, deliver the insight, keep it scannable.",
	model.ContentTypeViral:       "Open with a pattern-interrupt hook. Be bold, slightly controversial or surprising, optimized for shares.",
	model.ContentTypeSales:       "Focus on transformation and outcome, not features. Soft-sell with social proof, end with a clear offer.",
}

// Generate 为指定内容类型生成文案
func (s *ContentAgentService) Generate(ctx context.Context, contentType, topic string, profile *model.BusinessProfile) (*ContentResult, *CallUsage, error) {
	guide := contentTypeGuides[contentType]
	if guide == "" {
		guide = "Write engaging social media content."
	}

	prompt := fmt.Sprintf(`You are a social media copywriter for a %s business.

Business:
- Audience: %s
- Objective: %s
- Tone: %s
- Primary platform: %s

Content type: %s
%s
Topic: %s

Output Format (JSON only, no markdown):
{
  "hook": "first line that stops the scroll",
  "caption": "full caption body, 2-4 short paragraphs",
  "hashtags": ["tag1", "tag2", "..."],
  "cta": "one clear call to action",
  "estimated_engagement": "low|medium|high",
  "best_time_to_post": "e.g. Tue 18:00 local",
  "quality_score": 8.5
}

Rules:
1. hashtags: exactly 10 relevant tags, no # prefix
2. caption must match the %s tone
3. quality_score: your honest 0-10 self-assessment`,
		profile.Niche, profile.Audience, profile.Objective, profile.Tone,
		profile.PrimaryPlatform(), contentType, guide, topic, profile.Tone)

	jsonText, usage, err := callGeminiJSON(ctx, s.Config, prompt)
	if err != nil {
		return nil, usage, err
	}

	var result ContentResult
	if err := json.Unmarshal([]byte(jsonText), &result); err != nil {
		return nil, usage, fmt.Errorf("解析文案结果失败: %v, raw: %s", err, jsonText)
	}
	if strings.TrimSpace(result.Caption) == "" {
		return nil, usage, fmt.Errorf("模型返回空文案")
	}

	// 标签超过 10 个则截断，不足不补
	if len(result.Hashtags) > 10 {
		result.Hashtags = result.Hashtags[:10]
	}

	return &result, usage, nil
}

// GenerateContentIdeas 生成后续选题建议
// 辅助环节：失败不影响主流程，调用方忽略错误即可
func (s *ContentAgentService) GenerateContentIdeas(ctx context.Context, profile *model.BusinessProfile, count int) ([]string, *CallUsage, error) {
	if count <= 0 {
		count = 5
	}

	prompt := fmt.Sprintf(`You are a content strategist for a %s business targeting %s.

Suggest %d future content topic ideas aligned with the objective: %s.

Output Format (JSON only, no markdown):
{"ideas": ["idea 1", "idea 2", "..."]}`,
		profile.Niche, profile.Audience, count, profile.Objective)

	jsonText, usage, err := callGeminiJSON(ctx, s.Config, prompt)
	if err != nil {
		return nil, usage, err
	}

	var result struct {
		Ideas []string `json:"ideas"`
	}
	if err := json.Unmarshal([]byte(jsonText), &result); err != nil {
		return nil, usage, fmt.Errorf("解析选题结果失败: %v", err)
	}

	return result.Ideas, usage, nil
}
