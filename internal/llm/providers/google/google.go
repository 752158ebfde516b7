// internal/llm/providers/google/google.go
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ashrithajanga/CineGen/internal/config"
	apperrors "github.com/ashrithajanga/CineGen/internal/errors"
	"github.com/ashrithajanga/CineGen/internal/llm"
	"google.golang.org/genai"
)

func init() {
	register("gemini-3-pro", "Gemini 3 Pro", "gemini-3-pro-preview")
	register("gemini-3-flash", "Gemini 3 Flash", "gemini-3-flash-preview")
}

func register(id, displayName, model string) {
	llm.Register(llm.Descriptor{
		ID:          id,
		DisplayName: displayName,
		Credential:  config.CredentialGemini,
		Variant:     llm.VariantSync,
		Model:       model,
	}, func() llm.Provider {
		return &Provider{defaultModel: model}
	})
}

// Provider 基于 genai SDK 的单次请求适配器，响应为 JSON 模式
type Provider struct {
	client       *genai.Client
	defaultModel string
}

func (p *Provider) Initialize(cfg map[string]string) error {
	apiKey := cfg["api_key"]
	if apiKey == "" {
		return errors.New("Gemini API密钥未提供")
	}
	if model := cfg["default_model"]; model != "" {
		p.defaultModel = model
	}

	clientConfig := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: 5 * time.Minute},
	}
	if baseURL := cfg["base_url"]; baseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return fmt.Errorf("创建 Gemini 客户端失败: %w", err)
	}
	p.client = client
	return nil
}

func (p *Provider) GetName() string {
	return "google gemini"
}

func (p *Provider) GetSupportedModels() []string {
	return []string{p.defaultModel}
}

func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	genConfig := &genai.GenerateContentConfig{}
	if req.JSONMode {
		genConfig.ResponseMIMEType = "application/json"
	}
	if req.SystemPrompt != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), genConfig)
	if err != nil {
		return nil, apperrors.NewProviderRequestError("Gemini 请求失败", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, apperrors.NewProviderRequestError("Gemini 未返回任何结果", nil)
	}

	out := &llm.CompletionResponse{
		Text:         text,
		ModelName:    model,
		ProviderName: p.GetName(),
	}
	if len(resp.Candidates) > 0 {
		out.FinishReason = string(resp.Candidates[0].FinishReason)
	}
	if resp.UsageMetadata != nil {
		out.TokensUsed = int(resp.UsageMetadata.TotalTokenCount)
	}
	return out, nil
}
