package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"socialgen_dev_v1_202609/internal/model"
)

// fakeImageProvider 可编程的假图片供应商
type fakeImageProvider struct {
	name  string
	url   string
	cost  float64
	err   error
	delay time.Duration
	calls int
}

func (f *fakeImageProvider) Name() string { return f.name }

func (f *fakeImageProvider) Generate(ctx context.Context, req *GenerationRequest) (*GenerationResult, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &GenerationResult{EphemeralURL: f.url, CostUSD: f.cost}, nil
}

func TestImageChainService_FallbackToSecondProvider(t *testing.T) {
	p1 := &fakeImageProvider{name: "p1", err: &TransientError{Provider: "p1", Cause: fmt.Errorf("boom")}}
	p2 := &fakeImageProvider{name: "p2", url: "https://cdn.example.com/img.png", cost: 0.04}
	chain := NewImageChainService(p1, p2, nil)

	asset := chain.Generate(context.Background(), 1, &GenerationRequest{Style: "realistic", AspectRatio: "4:5"})

	if asset.Provider != "p2" {
		t.Errorf("应降级到 p2, got %s", asset.Provider)
	}
	if asset.EphemeralURL != "https://cdn.example.com/img.png" {
		t.Errorf("临时地址不正确: %s", asset.EphemeralURL)
	}
	if asset.Placeholder {
		t.Error("不应是占位资产")
	}

	attempts := asset.GetAttempts()
	if len(attempts) != 2 {
		t.Fatalf("审计记录数 = %d, want 2", len(attempts))
	}
	if attempts[0].Outcome != model.AttemptOutcomeTransient || attempts[0].Provider != "p1" {
		t.Errorf("第一条审计不正确: %+v", attempts[0])
	}
	if attempts[1].Outcome != model.AttemptOutcomeSuccess || attempts[1].CostUSD != 0.04 {
		t.Errorf("第二条审计不正确: %+v", attempts[1])
	}
}

func TestImageChainService_AllFailedUsesPlaceholder(t *testing.T) {
	failErr := errors.New("permanent failure")
	p1 := &fakeImageProvider{name: "p1", err: failErr}
	p2 := &fakeImageProvider{name: "p2", err: failErr}
	chain := NewImageChainService(p1, p2, nil)

	asset := chain.Generate(context.Background(), 1, &GenerationRequest{Style: "artistic", AspectRatio: "9:16"})

	if !asset.Placeholder {
		t.Fatal("全链失败应返回占位资产")
	}
	if asset.Provider != "placeholder" {
		t.Errorf("Provider = %s", asset.Provider)
	}
	// 占位图尺寸必须匹配请求宽高比
	if asset.Width != 1080 || asset.Height != 1920 {
		t.Errorf("占位尺寸 = %dx%d, want 1080x1920", asset.Width, asset.Height)
	}
	if len(asset.GetAttempts()) != 2 {
		t.Errorf("审计记录数 = %d, want 2", len(asset.GetAttempts()))
	}
	for _, a := range asset.GetAttempts() {
		if a.Outcome != model.AttemptOutcomePermanent {
			t.Errorf("非瞬时错误应记为 permanent: %+v", a)
		}
	}
}

func TestImageChainService_StyleOrdering(t *testing.T) {
	tests := []struct {
		name      string
		style     string
		wantFirst string
	}{
		{name: "写实风格摄影供应商优先", style: "realistic", wantFirst: "photo"},
		{name: "摄影风格摄影供应商优先", style: "photographic", wantFirst: "photo"},
		{name: "其他风格通用供应商优先", style: "vibrant", wantFirst: "general"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			photo := &fakeImageProvider{name: "photo", url: "https://e/p.png"}
			general := &fakeImageProvider{name: "general", url: "https://e/g.png"}
			chain := NewImageChainService(photo, general, nil)

			asset := chain.Generate(context.Background(), 1, &GenerationRequest{Style: tt.style, AspectRatio: "1:1"})
			if asset.Provider != tt.wantFirst {
				t.Errorf("首选供应商 = %s, want %s", asset.Provider, tt.wantFirst)
			}
		})
	}
}

func TestImageChainService_LowCostAlwaysLast(t *testing.T) {
	failErr := errors.New("down")
	photo := &fakeImageProvider{name: "photo", err: failErr}
	general := &fakeImageProvider{name: "general", err: failErr}
	lowCost := &fakeImageProvider{name: "cheap", url: "https://e/c.png", cost: 0.01}
	chain := NewImageChainService(photo, general, lowCost)

	asset := chain.Generate(context.Background(), 1, &GenerationRequest{Style: "realistic", AspectRatio: "1:1"})
	if asset.Provider != "cheap" {
		t.Errorf("兜底供应商 = %s, want cheap", asset.Provider)
	}
	attempts := asset.GetAttempts()
	if len(attempts) != 3 || attempts[2].Provider != "cheap" {
		t.Errorf("低成本供应商应最后尝试: %+v", attempts)
	}
}

func TestImageChainService_ProviderTimeout(t *testing.T) {
	slow := &fakeImageProvider{name: "slow", url: "https://e/s.png", delay: 500 * time.Millisecond}
	fast := &fakeImageProvider{name: "fast", url: "https://e/f.png"}
	chain := NewImageChainService(slow, fast, nil)
	chain.Timeout = 50 * time.Millisecond

	start := time.Now()
	asset := chain.Generate(context.Background(), 1, &GenerationRequest{Style: "realistic", AspectRatio: "1:1"})
	elapsed := time.Since(start)

	if asset.Provider != "fast" {
		t.Errorf("超时后应降级到 fast, got %s", asset.Provider)
	}
	// 超时供应商被放弃等待，不阻塞整条链
	if elapsed > 300*time.Millisecond {
		t.Errorf("降级耗时过长: %v", elapsed)
	}
	attempts := asset.GetAttempts()
	if attempts[0].Outcome != model.AttemptOutcomeTimeout {
		t.Errorf("首条审计应为 timeout: %+v", attempts[0])
	}
}

func TestImageChainService_SkipsNilProviders(t *testing.T) {
	only := &fakeImageProvider{name: "only", url: "https://e/o.png"}
	chain := NewImageChainService(nil, only, nil)

	asset := chain.Generate(context.Background(), 1, &GenerationRequest{Style: "realistic", AspectRatio: "1:1"})
	if asset.Provider != "only" {
		t.Errorf("Provider = %s, want only", asset.Provider)
	}
	if len(asset.GetAttempts()) != 1 {
		t.Errorf("未配置的供应商不应产生审计: %+v", asset.GetAttempts())
	}
}
