package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ==================== 视频生成供应商 ====================

// 单条视频计费（美元）
const (
	veoCostPerVideo    = 0.400
	avatarCostPerVideo = 0.250
)

// VideoJobStatus 异步视频任务状态
type VideoJobStatus struct {
	Done     bool
	Failed   bool
	Error    string
	VideoURL string
	CostUSD  float64
}

// VideoProvider 视频供应商抽象
// 生成为异步任务：Submit 提交后由调用链按固定间隔 Poll
type VideoProvider interface {
	Name() string
	Submit(ctx context.Context, req *GenerationRequest) (jobID string, err error)
	Poll(ctx context.Context, jobID string) (*VideoJobStatus, error)
}

// ==================== Veo 风格供应商 ====================

// VeoProvider 通用文生视频（长任务接口）
type VeoProvider struct {
	ApiKey  string
	BaseURL string
	Model   string
}

func NewVeoProvider(apiKey, baseURL string) *VeoProvider {
	if baseURL == "" {
		baseURL = defaultLLMBaseURL
	}
	return &VeoProvider{ApiKey: apiKey, BaseURL: baseURL, Model: "veo-3.0-generate-001"}
}

func (p *VeoProvider) Name() string { return "veo" }

func (p *VeoProvider) Submit(ctx context.Context, req *GenerationRequest) (string, error) {
	url := fmt.Sprintf("%s/models/%s:predictLongRunning?key=%s", p.BaseURL, p.Model, p.ApiKey)

	body := map[string]interface{}{
		"instances": []map[string]interface{}{
			{"prompt": req.Prompt},
		},
		"parameters": map[string]interface{}{
			"aspectRatio": req.AspectRatio,
		},
	}

	var resp struct {
		Name string `json:"name"`
	}
	if err := postJSON(ctx, p.Name(), url, body, &resp); err != nil {
		return "", err
	}
	if resp.Name == "" {
		return "", fmt.Errorf("veo 未返回任务标识")
	}
	return resp.Name, nil
}

func (p *VeoProvider) Poll(ctx context.Context, jobID string) (*VideoJobStatus, error) {
	url := fmt.Sprintf("%s/%s?key=%s", p.BaseURL, jobID, p.ApiKey)

	var resp struct {
		Done  bool `json:"done"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
		Response struct {
			GenerateVideoResponse struct {
				GeneratedSamples []struct {
					Video struct {
						URI string `json:"uri"`
					} `json:"video"`
				} `json:"generatedSamples"`
			} `json:"generateVideoResponse"`
		} `json:"response"`
	}
	if err := getJSON(ctx, p.Name(), url, &resp); err != nil {
		return nil, err
	}

	status := &VideoJobStatus{Done: resp.Done}
	if resp.Error != nil {
		status.Failed = true
		status.Error = resp.Error.Message
		return status, nil
	}
	if resp.Done {
		samples := resp.Response.GenerateVideoResponse.GeneratedSamples
		if len(samples) == 0 || samples[0].Video.URI == "" {
			status.Failed = true
			status.Error = "veo 任务完成但缺少视频地址"
			return status, nil
		}
		status.VideoURL = samples[0].Video.URI
		status.CostUSD = veoCostPerVideo
	}
	return status, nil
}

// ==================== 数字人供应商 ====================

// AvatarProvider 数字人口播视频
// 声音不存在属于可补偿错误：自动用默认声音重试一次，其他错误不重试
type AvatarProvider struct {
	client        *resty.Client
	ApiKey        string
	AvatarID      string
	VoiceID       string
	FallbackVoice string
	Enabled       bool
}

const defaultFallbackVoice = "en-US-neutral-1"

func NewAvatarProvider(apiKey, baseURL, avatarID, voiceID string) *AvatarProvider {
	if baseURL == "" {
		baseURL = "https://api.heygen.com/v2"
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second). // 提交与状态查询都不允许无限等待
		SetHeader("X-Api-Key", apiKey).
		SetHeader("Content-Type", "application/json")

	return &AvatarProvider{
		client:        client,
		ApiKey:        apiKey,
		AvatarID:      avatarID,
		VoiceID:       voiceID,
		FallbackVoice: defaultFallbackVoice,
		Enabled:       apiKey != "" && avatarID != "",
	}
}

func (p *AvatarProvider) Name() string { return "avatar" }

func (p *AvatarProvider) Submit(ctx context.Context, req *GenerationRequest) (string, error) {
	jobID, err := p.submitOnce(ctx, req, p.VoiceID)
	if err != nil && isVoiceNotFound(err) {
		// 声音配置失效，换默认声音补偿一次
		log.Printf("[Avatar] 声音 %s 不存在，使用默认声音重试", p.VoiceID)
		return p.submitOnce(ctx, req, p.FallbackVoice)
	}
	return jobID, err
}

func (p *AvatarProvider) submitOnce(ctx context.Context, req *GenerationRequest, voiceID string) (string, error) {
	body := map[string]interface{}{
		"video_inputs": []map[string]interface{}{
			{
				"character": map[string]interface{}{
					"type":      "avatar",
					"avatar_id": p.AvatarID,
				},
				"voice": map[string]interface{}{
					"type":       "text",
					"voice_id":   voiceID,
					"input_text": req.Prompt,
				},
			},
		},
		"dimension": map[string]interface{}{
			"width":  720,
			"height": 1280,
		},
	}

	var result struct {
		Data struct {
			VideoID string `json:"video_id"`
		} `json:"data"`
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		SetError(&result).
		Post("/video/generate")
	if err != nil {
		return "", &TransientError{Provider: "avatar", Cause: err}
	}
	if result.Error != nil {
		return "", fmt.Errorf("数字人接口错误 %s: %s", result.Error.Code, result.Error.Message)
	}
	if resp.StatusCode() != 200 {
		apiErr := fmt.Errorf("数字人接口返回 %d: %s", resp.StatusCode(), resp.String())
		if transientStatusCode(resp.StatusCode()) {
			return "", &TransientError{Provider: "avatar", Cause: apiErr}
		}
		return "", apiErr
	}
	if result.Data.VideoID == "" {
		return "", fmt.Errorf("数字人接口未返回任务标识")
	}
	return result.Data.VideoID, nil
}

func (p *AvatarProvider) Poll(ctx context.Context, jobID string) (*VideoJobStatus, error) {
	var result struct {
		Data struct {
			Status   string `json:"status"`
			VideoURL string `json:"video_url"`
			Error    *struct {
				Message string `json:"message"`
			} `json:"error"`
		} `json:"data"`
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParam("video_id", jobID).
		SetResult(&result).
		Get("/video_status.get")
	if err != nil {
		return nil, &TransientError{Provider: "avatar", Cause: err}
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("数字人状态查询返回 %d", resp.StatusCode())
	}

	status := &VideoJobStatus{}
	switch result.Data.Status {
	case "completed":
		status.Done = true
		status.VideoURL = result.Data.VideoURL
		status.CostUSD = avatarCostPerVideo
		if status.VideoURL == "" {
			status.Failed = true
			status.Error = "数字人任务完成但缺少视频地址"
		}
	case "failed":
		status.Done = true
		status.Failed = true
		if result.Data.Error != nil {
			status.Error = result.Data.Error.Message
		}
	}
	return status, nil
}

// isVoiceNotFound 识别声音不存在的可补偿错误
func isVoiceNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "voice_not_found") || strings.Contains(msg, "voice not found")
}
