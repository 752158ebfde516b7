// internal/llm/providers/chat/chat.go
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ashrithajanga/CineGen/internal/config"
	apperrors "github.com/ashrithajanga/CineGen/internal/errors"
	"github.com/ashrithajanga/CineGen/internal/llm"
)

const jsonOnlySystemPrompt = "You are a professional cinematic screenplay writer and social media strategist. Return ONLY valid JSON."

func init() {
	llm.Register(llm.Descriptor{
		ID:          "groq-llama-3.3",
		DisplayName: "Llama 3.3 70B (Groq)",
		Credential:  config.CredentialGroq,
		Variant:     llm.VariantChat,
		Model:       "llama-3.3-70b-versatile",
	}, func() llm.Provider {
		return New("Groq", "https://api.groq.com/openai/v1", "llama-3.3-70b-versatile")
	})

	llm.Register(llm.Descriptor{
		ID:          "openrouter",
		DisplayName: "OpenRouter",
		Credential:  config.CredentialOpenRouter,
		Variant:     llm.VariantChat,
		Model:       "meta-llama/llama-3.3-70b-instruct",
	}, func() llm.Provider {
		return New("OpenRouter", "https://openrouter.ai/api/v1", "meta-llama/llama-3.3-70b-instruct")
	})
}

// Provider OpenAI 兼容的 chat/completions 适配器
type Provider struct {
	name         string
	apiKey       string
	baseURL      string
	client       *http.Client
	defaultModel string
}

// New 创建未初始化的适配器
func New(name, baseURL, defaultModel string) *Provider {
	return &Provider{name: name, baseURL: baseURL, defaultModel: defaultModel}
}

func (p *Provider) Initialize(cfg map[string]string) error {
	apiKey := cfg["api_key"]
	if apiKey == "" {
		return fmt.Errorf("%s API密钥未提供", p.name)
	}
	p.apiKey = apiKey

	if model := cfg["default_model"]; model != "" {
		p.defaultModel = model
	}
	if baseURL := cfg["base_url"]; baseURL != "" {
		p.baseURL = strings.TrimRight(baseURL, "/")
	}
	p.client = &http.Client{Timeout: 5 * time.Minute}
	return nil
}

func (p *Provider) GetName() string {
	return p.name
}

func (p *Provider) GetSupportedModels() []string {
	return []string{p.defaultModel}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float32           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	system := req.SystemPrompt
	if system == "" {
		system = jsonOnlySystemPrompt
	}

	body := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: req.Prompt},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSONMode {
		body.ResponseFormat = map[string]string{"type": "json_object"}
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, apperrors.NewProviderRequestError(p.name+" 请求失败", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, apperrors.NewProviderRequestError(p.name+" 读取响应失败", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, apperrors.NewProviderRequestError(
			fmt.Sprintf("%s api错误(%d): %s", p.name, httpResp.StatusCode, errorMessage(raw, p.name+" Error")), nil)
	}

	var response chatResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		return nil, apperrors.NewProviderRequestError(p.name+" 响应格式无效", err)
	}
	if len(response.Choices) == 0 {
		return nil, apperrors.NewProviderRequestError(p.name+" 未返回任何结果", errors.New("empty choices"))
	}

	return &llm.CompletionResponse{
		Text:         response.Choices[0].Message.Content,
		FinishReason: response.Choices[0].FinishReason,
		TokensUsed:   response.Usage.TotalTokens,
		ModelName:    model,
		ProviderName: p.name,
	}, nil
}

// errorMessage 提取 {"error":{"message":...}}，取不到时使用 fallback
func errorMessage(body []byte, fallback string) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return fallback
}
