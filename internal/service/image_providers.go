package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"
)

// ==================== 图片生成供应商 ====================

// 单张图片计费（美元）
const (
	imagenCostPerImage      = 0.040
	geminiImageCostPerImage = 0.039
	flashImageCostPerImage  = 0.010
)

// GenerationRequest 媒体生成请求
type GenerationRequest struct {
	Kind        string // image / video
	Prompt      string
	Style       string
	AspectRatio string
	Quality     string
	Platform    string
	Seed        int64
}

// GenerationResult 单次供应商调用结果
type GenerationResult struct {
	EphemeralURL string
	CostUSD      float64
}

// ImageProvider 图片供应商抽象
// 实现方负责单次调用；降级、超时与审计由调用链统一处理
type ImageProvider interface {
	Name() string
	Generate(ctx context.Context, req *GenerationRequest) (*GenerationResult, error)
}

// ==================== Imagen 风格供应商 ====================

// ImagenProvider 摄影级图片生成（:predict 接口）
type ImagenProvider struct {
	ApiKey  string
	BaseURL string
	Model   string
}

func NewImagenProvider(apiKey, baseURL string) *ImagenProvider {
	if baseURL == "" {
		baseURL = defaultLLMBaseURL
	}
	return &ImagenProvider{ApiKey: apiKey, BaseURL: baseURL, Model: "imagen-4.0-generate-001"}
}

func (p *ImagenProvider) Name() string { return "imagen" }

func (p *ImagenProvider) Generate(ctx context.Context, req *GenerationRequest) (*GenerationResult, error) {
	url := fmt.Sprintf("%s/models/%s:predict?key=%s", p.BaseURL, p.Model, p.ApiKey)

	params := map[string]interface{}{
		"sampleCount": 1,
		"aspectRatio": req.AspectRatio,
	}
	if req.Seed != 0 {
		params["seed"] = req.Seed
	}
	if req.Quality == "hd" {
		params["sampleImageSize"] = "2K"
	}
	body := map[string]interface{}{
		"instances": []map[string]interface{}{
			{"prompt": req.Prompt},
		},
		"parameters": params,
	}

	var resp struct {
		Predictions []struct {
			FileURI  string `json:"fileUri"`
			ImageURI string `json:"imageUri"`
		} `json:"predictions"`
	}
	if err := postJSON(ctx, p.Name(), url, body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Predictions) == 0 {
		return nil, fmt.Errorf("imagen 未返回图片")
	}
	uri := resp.Predictions[0].FileURI
	if uri == "" {
		uri = resp.Predictions[0].ImageURI
	}
	if uri == "" {
		return nil, fmt.Errorf("imagen 返回结果缺少图片地址")
	}

	return &GenerationResult{EphemeralURL: uri, CostUSD: imagenCostPerImage}, nil
}

// ==================== Gemini 图像供应商 ====================

// GeminiImageProvider 通用图片生成（:generateContent + responseModalities）
type GeminiImageProvider struct {
	ApiKey  string
	BaseURL string
	Model   string
	Cost    float64
}

func NewGeminiImageProvider(apiKey, baseURL string) *GeminiImageProvider {
	if baseURL == "" {
		baseURL = defaultLLMBaseURL
	}
	return &GeminiImageProvider{ApiKey: apiKey, BaseURL: baseURL, Model: "gemini-3-pro-image", Cost: geminiImageCostPerImage}
}

// NewFlashImageProvider 低成本兜底供应商，任何风格下始终排在降级链末位
func NewFlashImageProvider(apiKey, baseURL string) *GeminiImageProvider {
	if baseURL == "" {
		baseURL = defaultLLMBaseURL
	}
	return &GeminiImageProvider{ApiKey: apiKey, BaseURL: baseURL, Model: "gemini-2.5-flash-image", Cost: flashImageCostPerImage}
}

func (p *GeminiImageProvider) Name() string { return p.Model }

func (p *GeminiImageProvider) Generate(ctx context.Context, req *GenerationRequest) (*GenerationResult, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.BaseURL, p.Model, p.ApiKey)

	imageConfig := map[string]interface{}{
		"aspectRatio": req.AspectRatio,
	}
	if req.Quality == "hd" {
		imageConfig["imageSize"] = "2K"
	}
	generationConfig := map[string]interface{}{
		"responseModalities": []string{"IMAGE"},
		"imageConfig":        imageConfig,
	}
	if req.Seed != 0 {
		generationConfig["seed"] = req.Seed
	}
	body := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"parts": []map[string]interface{}{
					{"text": req.Prompt},
				},
			},
		},
		"generationConfig": generationConfig,
	}

	var resp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					FileData struct {
						FileURI string `json:"fileUri"`
					} `json:"fileData"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := postJSON(ctx, p.Name(), url, body, &resp); err != nil {
		return nil, err
	}
	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			if part.FileData.FileURI != "" {
				return &GenerationResult{EphemeralURL: part.FileData.FileURI, CostUSD: p.Cost}, nil
			}
		}
	}

	return nil, fmt.Errorf("%s 返回结果缺少图片地址", p.Model)
}

// ==================== HTTP 辅助 ====================

// 接口地址以 query 参数携带密钥，传输层错误会把完整地址带进错误文本
var apiKeyParam = regexp.MustCompile(`key=[^&\s"']+`)

// redactKey 抹掉文本中的密钥参数
// 错误信息会进入审计字段、调用日志与失败清单，绝不允许携带凭证
func redactKey(s string) string {
	return apiKeyParam.ReplaceAllString(s, "key=***")
}

// postJSON 发起 JSON POST 并按瞬时/永久分类错误
// 错误只携带供应商名，正文与传输错误先经过密钥抹除
func postJSON(ctx context.Context, provider, url string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("序列化请求失败: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("创建请求失败: %v", redactKey(err.Error()))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return doJSON(httpReq, provider, out)
}

// getJSON 发起 JSON GET，错误分类同 postJSON
func getJSON(ctx context.Context, provider, url string, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("创建请求失败: %v", redactKey(err.Error()))
	}
	return doJSON(httpReq, provider, out)
}

func doJSON(httpReq *http.Request, provider string, out interface{}) error {
	client := &http.Client{Timeout: 120 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return &TransientError{Provider: provider, Cause: errors.New(redactKey(err.Error()))}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransientError{Provider: provider, Cause: errors.New(redactKey(err.Error()))}
	}
	if resp.StatusCode != http.StatusOK {
		apiErr := fmt.Errorf("接口返回 %d: %s", resp.StatusCode, redactKey(string(respBody)))
		if transientStatusCode(resp.StatusCode) {
			return &TransientError{Provider: provider, Cause: apiErr}
		}
		return apiErr
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("解析响应失败: %v", err)
	}
	return nil
}
