package service

import (
	"context"
	"errors"
	"testing"

	"socialgen_dev_v1_202609/internal/model"
)

func testProfile() *model.BusinessProfile {
	return &model.BusinessProfile{
		OwnerID:   1,
		Niche:     "fitness coaching",
		Audience:  "busy professionals 30-45",
		Objective: "book discovery calls",
		Tone:      "encouraging",
		Platforms: model.StringSlice{"instagram"},
	}
}

func TestVisualAgentService_AnalyzeBusinessVisuals(t *testing.T) {
	validStrategy := `{
		"category": "person",
		"visual_elements": ["gym interior", "kettlebells", "morning light", "athletic wear", "water bottle"],
		"photography_style": "realistic",
		"prompt_template": "a personal trainer coaching a client in a bright gym"
	}`

	tests := []struct {
		name     string
		response string
		wantErr  bool
		wantVal  bool // 期望 ValidationError
	}{
		{
			name:     "合法策略",
			response: validStrategy,
			wantErr:  false,
		},
		{
			name:     "非法类目",
			response: `{"category": "banana", "visual_elements": ["a","b","c","d","e"], "photography_style": "x", "prompt_template": "y"}`,
			wantErr:  true,
			wantVal:  true,
		},
		{
			name:     "视觉元素过少",
			response: `{"category": "product", "visual_elements": ["a","b"], "photography_style": "x", "prompt_template": "y"}`,
			wantErr:  true,
			wantVal:  true,
		},
		{
			name:     "视觉元素过多",
			response: `{"category": "product", "visual_elements": ["a","b","c","d","e","f","g","h","i"], "photography_style": "x", "prompt_template": "y"}`,
			wantErr:  true,
			wantVal:  true,
		},
		{
			name:     "模板为空",
			response: `{"category": "product", "visual_elements": ["a","b","c","d","e"], "photography_style": "x", "prompt_template": ""}`,
			wantErr:  true,
			wantVal:  true,
		},
		{
			name:     "非JSON输出",
			response: `not json at all`,
			wantErr:  true,
			wantVal:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newGeminiStub(t, func(prompt string) string {
				return tt.response
			})
			defer server.Close()

			svc := NewVisualAgentService(stubLLMConfig(server.URL))
			strategy, usage, err := svc.AnalyzeBusinessVisuals(context.Background(), testProfile())

			if (err != nil) != tt.wantErr {
				t.Fatalf("AnalyzeBusinessVisuals() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantVal {
				var valErr *ValidationError
				if !errors.As(err, &valErr) {
					t.Errorf("期望 ValidationError, got %T: %v", err, err)
				}
			}
			if !tt.wantErr {
				if strategy.Category != "person" {
					t.Errorf("类目不正确: %s", strategy.Category)
				}
				if len(strategy.VisualElements) != 5 {
					t.Errorf("视觉元素数量不正确: %d", len(strategy.VisualElements))
				}
				if usage == nil || usage.TotalTokens() == 0 {
					t.Error("用量未记录")
				}
			}
		})
	}
}

func TestVisualAgentService_GeneratePromptForPost(t *testing.T) {
	server := newGeminiStub(t, func(prompt string) string {
		return `{"prompt": "85mm lens, golden hour, trainer demonstrating a squat"}`
	})
	defer server.Close()

	svc := NewVisualAgentService(stubLLMConfig(server.URL))
	strategy := &VisualStrategy{
		Category:         "person",
		VisualElements:   []string{"gym", "light", "gear", "people", "energy"},
		PhotographyStyle: "realistic",
		PromptTemplate:   "base template",
	}

	prompt, usage, err := svc.GeneratePromptForPost(context.Background(), strategy, "educational", testProfile())
	if err != nil {
		t.Fatalf("GeneratePromptForPost() error = %v", err)
	}
	if prompt == "" {
		t.Error("提示词为空")
	}
	if usage == nil {
		t.Error("用量未记录")
	}
}

func TestVisualAgentService_GenerateVideoPrompt_EmptyPrompt(t *testing.T) {
	server := newGeminiStub(t, func(prompt string) string {
		return `{"prompt": ""}`
	})
	defer server.Close()

	svc := NewVisualAgentService(stubLLMConfig(server.URL))
	strategy := &VisualStrategy{Category: "person", PhotographyStyle: "realistic"}

	_, _, err := svc.GenerateVideoPrompt(context.Background(), strategy, testProfile())
	if err == nil {
		t.Fatal("空提示词应返回错误")
	}
}
