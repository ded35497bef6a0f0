package service

import (
	"math/rand"
	"strings"
)

// ==================== 提示词分层构建 ====================

// 风格修饰词
var styleModifiers = map[string]string{
	"realistic":    "photorealistic, shot on 35mm lens, natural lighting, shallow depth of field",
	"photographic": "professional photography, studio lighting, high detail, sharp focus",
	"artistic":     "artistic composition, dramatic lighting, rich color palette",
	"minimal":      "minimalist composition, clean background, negative space",
	"vibrant":      "vibrant saturated tones, energetic composition, bold contrast",
}

// 平台出图尺寸说明
var platformFraming = map[string]string{
	"instagram": "vertical 4:5 framing optimized for mobile feed",
	"tiktok":    "vertical 9:16 full-screen framing",
	"youtube":   "horizontal 16:9 cinematic framing",
	"linkedin":  "horizontal 1.91:1 professional framing",
	"facebook":  "square 1:1 framing",
	"twitter":   "horizontal 16:9 framing",
}

// 真实感短语池：写实类风格随机注入其一，避免每张图千篇一律
var authenticityPhrases = []string{
	"candid unposed moment, slight motion blur on edges",
	"natural skin texture with visible pores, imperfect symmetry",
	"ambient window light, true-to-life color grading",
	"handheld camera feel, authentic documentary style",
	"real-world clutter in background, lived-in atmosphere",
}

// 抗合成感的反向约束，写实类风格末尾固定附加
const antiSyntheticSuffix = "Avoid: CGI look, plastic skin, airbrushed faces, oversaturated colors, text overlays, watermarks, extra fingers"

// PromptBuilder 分层构建最终出图提示词
// rng 可注入：测试用固定种子保证确定性
type PromptBuilder struct {
	rng *rand.Rand
}

// NewPromptBuilder 创建构建器，rng 为 nil 时由调用方自行保证并发安全
func NewPromptBuilder(rng *rand.Rand) *PromptBuilder {
	return &PromptBuilder{rng: rng}
}

// Build 按 基础提示词 -> 风格修饰 -> 平台构图 -> 真实感增强 的顺序叠加
func (b *PromptBuilder) Build(basePrompt, style, platform string) string {
	parts := []string{strings.TrimSpace(basePrompt)}

	if mod, ok := styleModifiers[style]; ok {
		parts = append(parts, mod)
	}
	if framing, ok := platformFraming[platform]; ok {
		parts = append(parts, framing)
	}

	// 写实类风格追加真实感短语与反向约束
	if style == "realistic" || style == "photographic" {
		parts = append(parts, b.pickAuthenticity(), antiSyntheticSuffix)
	}

	return strings.Join(parts, ". ")
}

// Seed 为一次媒体生成提供随机种子，注入固定 rng 时结果可复现
func (b *PromptBuilder) Seed() int64 {
	if b.rng != nil {
		return b.rng.Int63()
	}
	return rand.Int63()
}

func (b *PromptBuilder) pickAuthenticity() string {
	if b.rng != nil {
		return authenticityPhrases[b.rng.Intn(len(authenticityPhrases))]
	}
	return authenticityPhrases[rand.Intn(len(authenticityPhrases))]
}

// AspectRatioForPlatform 平台对应的出图宽高比
func AspectRatioForPlatform(platform string) string {
	switch platform {
	case "tiktok":
		return "9:16"
	case "youtube", "twitter":
		return "16:9"
	case "facebook":
		return "1:1"
	case "linkedin":
		return "1.91:1"
	default:
		return "4:5"
	}
}
