package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"socialgen_dev_v1_202609/internal/model"
)

// ==================== 视觉策略 ====================

// 视觉类目枚举
var validVisualCategories = map[string]bool{
	"product":   true,
	"service":   true,
	"lifestyle": true,
	"person":    true,
	"location":  true,
	"abstract":  true,
}

// VisualStrategy 业务视觉策略
// 每次编排仅分析一次，所有内容条目只读共享
type VisualStrategy struct {
	Category         string   `json:"category"`
	VisualElements   []string `json:"visual_elements"`
	PhotographyStyle string   `json:"photography_style"`
	PromptTemplate   string   `json:"prompt_template"`
}

// Summary 策略摘要，用于内容包记录
func (s *VisualStrategy) Summary() string {
	return fmt.Sprintf("%s | %s | %s", s.Category, s.PhotographyStyle, strings.Join(s.VisualElements, ", "))
}

// ==================== 服务 ====================

// VisualAgentService 视觉提示词智能体
// 负责业务视觉分析与各条目图片/视频提示词生成
type VisualAgentService struct {
	Config *LLMConfig
}

// NewVisualAgentService 创建视觉智能体
func NewVisualAgentService(cfg *LLMConfig) *VisualAgentService {
	cfg.normalize()
	return &VisualAgentService{Config: cfg}
}

// ==================== 视觉分析 ====================

// AnalyzeBusinessVisuals 分析业务视觉策略
// 基础环节：结构化输出不合法即整个运行失败（下游所有条目都依赖该结果）
func (s *VisualAgentService) AnalyzeBusinessVisuals(ctx context.Context, profile *model.BusinessProfile) (*VisualStrategy, *CallUsage, error) {
	prompt := fmt.Sprintf(`You are a visual brand strategist for social media content.

Business:
- Niche: %s
- Audience: %s
- Objective: %s
- Tone: %s
- Platforms: %s

Decide the visual direction for this business's social content.

Output Format (JSON only, no markdown):
{
  "category": "product|service|lifestyle|person|location|abstract",
  "visual_elements": ["element1", "element2", "element3", "element4", "element5", "element6"],
  "photography_style": "concise description of the photography style",
  "prompt_template": "a reusable base prompt describing subject, setting and mood"
}

Rules:
1. category must be exactly one of: product, service, lifestyle, person, location, abstract
2. visual_elements must contain between 5 and 8 concrete visual elements
3. photography_style uses real photography vocabulary (lens, lighting, composition)`,
		profile.Niche, profile.Audience, profile.Objective, profile.Tone, strings.Join(profile.Platforms, ", "))

	jsonText, usage, err := callGeminiJSON(ctx, s.Config, prompt)
	if err != nil {
		return nil, usage, err
	}

	var strategy VisualStrategy
	if err := json.Unmarshal([]byte(jsonText), &strategy); err != nil {
		return nil, usage, &ValidationError{
			Stage:  "visual_analysis",
			Reason: fmt.Sprintf("JSON 解析失败: %v", err),
			Raw:    jsonText,
		}
	}

	// 结构校验：类目枚举 + 元素数量 + 模板非空
	if !validVisualCategories[strategy.Category] {
		return nil, usage, &ValidationError{
			Stage:  "visual_analysis",
			Reason: fmt.Sprintf("非法类目: %q", strategy.Category),
			Raw:    jsonText,
		}
	}
	if n := len(strategy.VisualElements); n < 5 || n > 8 {
		return nil, usage, &ValidationError{
			Stage:  "visual_analysis",
			Reason: fmt.Sprintf("视觉元素数量 %d 超出 [5,8]", n),
			Raw:    jsonText,
		}
	}
	if strategy.PromptTemplate == "" {
		return nil, usage, &ValidationError{
			Stage:  "visual_analysis",
			Reason: "prompt_template 为空",
			Raw:    jsonText,
		}
	}

	return &strategy, usage, nil
}

// ==================== 提示词生成 ====================

// GeneratePromptForPost 基于共享策略为单条内容生成图片提示词
func (s *VisualAgentService) GeneratePromptForPost(ctx context.Context, strategy *VisualStrategy, postType string, profile *model.BusinessProfile) (string, *CallUsage, error) {
	prompt := fmt.Sprintf(`You are a professional photography prompt writer.

Visual strategy:
- Category: %s
- Elements: %s
- Photography style: %s
- Base template: %s

Write ONE image generation prompt for a %q social media post for a %s business.

Requirements:
1. Use photography vocabulary only: lens, aperture, lighting setup, composition
2. Include 2-3 elements from the strategy
3. End with explicit negative constraints: no text overlays, no watermarks, no CGI look, no plastic skin, no oversaturated colors

Output Format (JSON only, no markdown):
{"prompt": "the full image prompt"}`,
		strategy.Category, strings.Join(strategy.VisualElements, ", "),
		strategy.PhotographyStyle, strategy.PromptTemplate, postType, profile.Niche)

	return s.generatePromptText(ctx, prompt)
}

// GenerateVideoPrompt 基于共享策略生成视频提示词
func (s *VisualAgentService) GenerateVideoPrompt(ctx context.Context, strategy *VisualStrategy, profile *model.BusinessProfile) (string, *CallUsage, error) {
	prompt := fmt.Sprintf(`You are a professional videography prompt writer.

Visual strategy:
- Category: %s
- Elements: %s
- Photography style: %s

Write ONE short-form video generation prompt (under 15 seconds of footage) for a %s business targeting %s.

Requirements:
1. Use videography vocabulary: camera movement, framing, lighting, pacing
2. Describe a single continuous scene, no cuts
3. End with explicit negative constraints: no synthetic-looking motion, no morphing artifacts, no text overlays, no watermark

Output Format (JSON only, no markdown):
{"prompt": "the full video prompt"}`,
		strategy.Category, strings.Join(strategy.VisualElements, ", "),
		strategy.PhotographyStyle, profile.Niche, profile.Audience)

	return s.generatePromptText(ctx, prompt)
}

// generatePromptText 调用模型并提取 prompt 字段
func (s *VisualAgentService) generatePromptText(ctx context.Context, prompt string) (string, *CallUsage, error) {
	jsonText, usage, err := callGeminiJSON(ctx, s.Config, prompt)
	if err != nil {
		return "", usage, err
	}

	var result struct {
		Prompt string `json:"prompt"`
	}
	if err := json.Unmarshal([]byte(jsonText), &result); err != nil {
		return "", usage, fmt.Errorf("解析提示词结果失败: %v, raw: %s", err, jsonText)
	}
	if result.Prompt == "" {
		return "", usage, fmt.Errorf("模型返回空提示词")
	}

	return result.Prompt, usage, nil
}
