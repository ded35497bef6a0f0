package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ==================== 配置 ====================

// 默认 Gemini REST 入口，测试时可替换为 httptest 地址
const defaultLLMBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// LLMConfig 文本模型配置
type LLMConfig struct {
	ApiKey    string
	BaseURL   string
	TextModel string
	Timeout   time.Duration
}

// normalize 填充默认值
func (c *LLMConfig) normalize() {
	if c.BaseURL == "" {
		c.BaseURL = defaultLLMBaseURL
	}
	if c.TextModel == "" {
		c.TextModel = "gemini-3-flash"
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
}

// ==================== 用量 ====================

// 文本模型计价（美元/百万token）
const (
	textInputPricePerMTok  = 0.30
	textOutputPricePerMTok = 2.50
)

// CallUsage 单次模型调用的用量与成本
type CallUsage struct {
	ModelName    string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	DurationMs   int64
}

// TotalTokens 总token数
func (u *CallUsage) TotalTokens() int {
	if u == nil {
		return 0
	}
	return u.InputTokens + u.OutputTokens
}

// ==================== Gemini 结构化输出调用 ====================

// callGeminiJSON 调用 Gemini generateContent，强制 JSON 输出
// 返回模型输出的 JSON 文本与本次调用用量
func callGeminiJSON(ctx context.Context, cfg *LLMConfig, prompt string) (string, *CallUsage, error) {
	if cfg.ApiKey == "" {
		return "", nil, &ConfigurationError{Provider: "gemini", Missing: "API Key"}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", cfg.BaseURL, cfg.TextModel, cfg.ApiKey)

	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]interface{}{{"text": prompt}}},
		},
		"generationConfig": map[string]interface{}{
			"responseMimeType": "application/json",
		},
	}

	bodyBytes, _ := json.Marshal(reqBody)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	client := &http.Client{Timeout: cfg.Timeout}
	resp, err := client.Do(httpReq)
	if err != nil {
		// 传输错误文本带完整请求地址，先抹掉密钥
		return "", nil, &TransientError{Provider: "gemini", Cause: errors.New(redactKey(err.Error()))}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		apiErr := fmt.Errorf("Gemini API 错误 [%d]: %s", resp.StatusCode, redactKey(string(respBody)))
		if transientStatusCode(resp.StatusCode) {
			return "", nil, &TransientError{Provider: "gemini", Cause: apiErr}
		}
		return "", nil, apiErr
	}

	// 解析响应
	var geminiResp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
		UsageMetadata struct {
			PromptTokenCount     int `json:"promptTokenCount"`
			CandidatesTokenCount int `json:"candidatesTokenCount"`
		} `json:"usageMetadata"`
	}

	if err := json.Unmarshal(respBody, &geminiResp); err != nil {
		return "", nil, fmt.Errorf("解析响应失败: %v", err)
	}

	if len(geminiResp.Candidates) == 0 {
		return "", nil, fmt.Errorf("无生成结果")
	}

	// 提取 JSON 文本
	var jsonText string
	for _, candidate := range geminiResp.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				jsonText = part.Text
				break
			}
		}
	}
	if jsonText == "" {
		return "", nil, fmt.Errorf("响应中未找到文本内容")
	}

	usage := &CallUsage{
		ModelName:    cfg.TextModel,
		InputTokens:  geminiResp.UsageMetadata.PromptTokenCount,
		OutputTokens: geminiResp.UsageMetadata.CandidatesTokenCount,
		DurationMs:   time.Since(start).Milliseconds(),
	}
	usage.CostUSD = float64(usage.InputTokens)/1e6*textInputPricePerMTok +
		float64(usage.OutputTokens)/1e6*textOutputPricePerMTok

	return jsonText, usage, nil
}
