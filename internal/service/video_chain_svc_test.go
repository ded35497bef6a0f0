package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"socialgen_dev_v1_202609/internal/model"
)

// fakeVideoProvider 可编程的假视频供应商
type fakeVideoProvider struct {
	name        string
	submitErr   error
	pollsToDone int
	failed      bool
	videoURL    string
	cost        float64

	pollCount int
}

func (f *fakeVideoProvider) Name() string { return f.name }

func (f *fakeVideoProvider) Submit(ctx context.Context, req *GenerationRequest) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return "job-1", nil
}

func (f *fakeVideoProvider) Poll(ctx context.Context, jobID string) (*VideoJobStatus, error) {
	f.pollCount++
	if f.pollCount < f.pollsToDone {
		return &VideoJobStatus{}, nil
	}
	if f.failed {
		return &VideoJobStatus{Done: true, Failed: true, Error: "render error"}, nil
	}
	return &VideoJobStatus{Done: true, VideoURL: f.videoURL, CostUSD: f.cost}, nil
}

// hangingVideoProvider 状态查询永不返回的供应商
type hangingVideoProvider struct {
	name    string
	release chan struct{}
}

func (h *hangingVideoProvider) Name() string { return h.name }

func (h *hangingVideoProvider) Submit(ctx context.Context, req *GenerationRequest) (string, error) {
	return "job-hang", nil
}

func (h *hangingVideoProvider) Poll(ctx context.Context, jobID string) (*VideoJobStatus, error) {
	<-h.release
	return &VideoJobStatus{}, nil
}

func fastVideoChain(avatar, general, lowCost VideoProvider) *VideoChainService {
	chain := NewVideoChainService(avatar, general, lowCost)
	chain.PollInterval = time.Millisecond
	chain.SubmitTimeout = time.Second
	chain.PollTimeout = time.Second
	return chain
}

func TestVideoChainService_PollUntilDone(t *testing.T) {
	p := &fakeVideoProvider{name: "veo", pollsToDone: 3, videoURL: "https://e/v.mp4", cost: 0.4}
	chain := fastVideoChain(nil, p, nil)

	asset := chain.Generate(context.Background(), 1, "lifestyle", &GenerationRequest{AspectRatio: "9:16"})

	if asset.Provider != "veo" {
		t.Errorf("Provider = %s", asset.Provider)
	}
	if asset.EphemeralURL != "https://e/v.mp4" {
		t.Errorf("视频地址不正确: %s", asset.EphemeralURL)
	}
	if asset.Kind != model.MediaKindVideo {
		t.Errorf("Kind = %s, want video", asset.Kind)
	}
	if p.pollCount != 3 {
		t.Errorf("轮询次数 = %d, want 3", p.pollCount)
	}
	attempts := asset.GetAttempts()
	if len(attempts) != 1 || attempts[0].CostUSD != 0.4 {
		t.Errorf("审计不正确: %+v", attempts)
	}
}

func TestVideoChainService_AdvancesOnJobFailure(t *testing.T) {
	p1 := &fakeVideoProvider{name: "first", pollsToDone: 1, failed: true}
	p2 := &fakeVideoProvider{name: "second", pollsToDone: 1, videoURL: "https://e/v2.mp4", cost: 0.25}
	chain := fastVideoChain(nil, p1, p2)

	asset := chain.Generate(context.Background(), 1, "lifestyle", &GenerationRequest{AspectRatio: "9:16"})

	if asset.Provider != "second" {
		t.Errorf("应降级到 second, got %s", asset.Provider)
	}
	if len(asset.GetAttempts()) != 2 {
		t.Errorf("审计记录数 = %d, want 2", len(asset.GetAttempts()))
	}
}

func TestVideoChainService_PollLimitExceeded(t *testing.T) {
	// 永不完成的任务
	p1 := &fakeVideoProvider{name: "stuck", pollsToDone: 1 << 30}
	p2 := &fakeVideoProvider{name: "backup", pollsToDone: 1, videoURL: "https://e/b.mp4"}
	chain := fastVideoChain(nil, p1, p2)
	chain.MaxPollAttempts = 5

	asset := chain.Generate(context.Background(), 1, "lifestyle", &GenerationRequest{AspectRatio: "9:16"})

	if asset.Provider != "backup" {
		t.Errorf("轮询超限后应降级, got %s", asset.Provider)
	}
	if p1.pollCount != 5 {
		t.Errorf("轮询次数 = %d, want 5", p1.pollCount)
	}
	attempts := asset.GetAttempts()
	if attempts[0].Outcome != model.AttemptOutcomeTimeout {
		t.Errorf("超限应记为 timeout: %+v", attempts[0])
	}
}

func TestVideoChainService_HungPollDoesNotBlockChain(t *testing.T) {
	// 状态接口挂起时单次查询被硬超时切断，只消耗一次轮询额度
	p1 := &hangingVideoProvider{name: "hung", release: make(chan struct{})}
	defer close(p1.release)
	p2 := &fakeVideoProvider{name: "backup", pollsToDone: 1, videoURL: "https://e/b.mp4"}
	chain := fastVideoChain(nil, p1, p2)
	chain.MaxPollAttempts = 3
	chain.PollTimeout = 20 * time.Millisecond

	done := make(chan *model.MediaAsset, 1)
	go func() {
		done <- chain.Generate(context.Background(), 1, "lifestyle", &GenerationRequest{AspectRatio: "9:16"})
	}()

	select {
	case asset := <-done:
		if asset.Provider != "backup" {
			t.Errorf("挂起的供应商应被降级, got %s", asset.Provider)
		}
		attempts := asset.GetAttempts()
		if attempts[0].Outcome != model.AttemptOutcomeTimeout {
			t.Errorf("挂起应记为 timeout: %+v", attempts[0])
		}
	case <-time.After(3 * time.Second):
		t.Fatal("状态接口挂起导致整条链阻塞")
	}
}

func TestVideoChainService_CategoryOrdering(t *testing.T) {
	avatarSrv := newAvatarStub(t, false)
	defer avatarSrv.Close()
	avatar := NewAvatarProvider("key", avatarSrv.URL, "avatar-1", "voice-1")

	general := &fakeVideoProvider{name: "general", pollsToDone: 1, videoURL: "https://e/g.mp4"}

	t.Run("person类目数字人优先", func(t *testing.T) {
		chain := fastVideoChain(avatar, general, nil)
		asset := chain.Generate(context.Background(), 1, "person", &GenerationRequest{AspectRatio: "9:16"})
		if asset.Provider != "avatar" {
			t.Errorf("Provider = %s, want avatar", asset.Provider)
		}
	})

	t.Run("其他类目通用供应商优先", func(t *testing.T) {
		chain := fastVideoChain(avatar, general, nil)
		asset := chain.Generate(context.Background(), 1, "product", &GenerationRequest{AspectRatio: "9:16"})
		if asset.Provider != "general" {
			t.Errorf("Provider = %s, want general", asset.Provider)
		}
	})

	t.Run("未启用的数字人被跳过", func(t *testing.T) {
		disabled := NewAvatarProvider("", "", "", "")
		chain := fastVideoChain(disabled, general, nil)
		asset := chain.Generate(context.Background(), 1, "person", &GenerationRequest{AspectRatio: "9:16"})
		if asset.Provider != "general" {
			t.Errorf("Provider = %s, want general", asset.Provider)
		}
	})
}

func TestVideoChainService_AllFailedUsesPlaceholder(t *testing.T) {
	p := &fakeVideoProvider{name: "only", submitErr: errors.New("down")}
	chain := fastVideoChain(nil, p, nil)

	asset := chain.Generate(context.Background(), 1, "lifestyle", &GenerationRequest{AspectRatio: "9:16"})

	if !asset.Placeholder {
		t.Fatal("全链失败应返回占位资产")
	}
	if asset.Kind != model.MediaKindVideo {
		t.Errorf("Kind = %s, want video", asset.Kind)
	}
	if asset.Width != 1080 || asset.Height != 1920 {
		t.Errorf("占位尺寸 = %dx%d", asset.Width, asset.Height)
	}
}

// ==================== 数字人供应商 ====================

// newAvatarStub 构造假的数字人接口
// rejectFirstVoice 为真时，首个 voice_id 返回 voice_not_found
func newAvatarStub(t *testing.T, rejectFirstVoice bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/video/generate":
			var req struct {
				VideoInputs []struct {
					Voice struct {
						VoiceID string `json:"voice_id"`
					} `json:"voice"`
				} `json:"video_inputs"`
			}
			json.NewDecoder(r.Body).Decode(&req)

			voiceID := ""
			if len(req.VideoInputs) > 0 {
				voiceID = req.VideoInputs[0].Voice.VoiceID
			}
			if rejectFirstVoice && voiceID != defaultFallbackVoice {
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"error": map[string]string{"code": "voice_not_found", "message": "voice not found: " + voiceID},
				})
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": map[string]string{"video_id": "vid-1"},
			})
		case "/video_status.get":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": map[string]string{"status": "completed", "video_url": "https://e/a.mp4"},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestAvatarProvider_VoiceFallbackRetry(t *testing.T) {
	server := newAvatarStub(t, true)
	defer server.Close()

	provider := NewAvatarProvider("key", server.URL, "avatar-1", "missing-voice")

	jobID, err := provider.Submit(context.Background(), &GenerationRequest{Prompt: "hello"})
	if err != nil {
		t.Fatalf("声音缺失应自动用默认声音补偿: %v", err)
	}
	if jobID != "vid-1" {
		t.Errorf("jobID = %s", jobID)
	}
}

func TestAvatarProvider_ClientHardTimeout(t *testing.T) {
	provider := NewAvatarProvider("key", "", "avatar-1", "voice-1")
	if provider.client.GetClient().Timeout <= 0 {
		t.Error("数字人客户端必须设置硬超时")
	}
}

func TestAvatarProvider_NoRetryOnOtherErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"code": "quota_exceeded", "message": "quota exceeded"},
		})
	}))
	defer server.Close()

	provider := NewAvatarProvider("key", server.URL, "avatar-1", "voice-1")

	_, err := provider.Submit(context.Background(), &GenerationRequest{Prompt: "hello"})
	if err == nil {
		t.Fatal("期望错误")
	}
	// 非声音错误不补偿，只调用一次
	if calls != 1 {
		t.Errorf("调用次数 = %d, want 1", calls)
	}
}
