// internal/llm/interface.go
package llm

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// 错误定义
var ErrUnknownProvider = errors.New("未知的AI提供者")

// 适配器形态
const (
	VariantSync = "sync" // 单次请求，JSON 模式响应
	VariantChat = "chat" // 消息格式请求，JSON 模式响应
)

// CompletionRequest 请求参数标准化
type CompletionRequest struct {
	Prompt       string  `json:"prompt"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
	Temperature  float32 `json:"temperature,omitempty"`
	Model        string  `json:"model,omitempty"`
	JSONMode     bool    `json:"json_mode,omitempty"`
}

// CompletionResponse 响应结构标准化
type CompletionResponse struct {
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason,omitempty"`
	TokensUsed   int    `json:"tokens_used,omitempty"`
	ModelName    string `json:"model_name,omitempty"`
	ProviderName string `json:"provider_name,omitempty"`
}

// Provider 定义所有生成后端必须实现的接口
type Provider interface {
	// 初始化提供者，传入配置（api_key / default_model / base_url）
	Initialize(config map[string]string) error

	// 获取提供者名称
	GetName() string

	// 获取支持的模型列表
	GetSupportedModels() []string

	// 文本生成，返回后端原始文本
	CompleteText(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// Descriptor 描述一个可选后端
type Descriptor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Credential  string `json:"credential"` // 所需凭证族
	Variant     string `json:"variant"`
	Model       string `json:"model"`
}

// ProviderFactory 提供者工厂
type ProviderFactory func() Provider

type registration struct {
	descriptor Descriptor
	factory    ProviderFactory
}

// Registry 提供者注册表
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registration
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registration)}
}

// DefaultRegistry 全局注册表，各 provider 包在 init() 中注册
var DefaultRegistry = NewRegistry()

// Register 注册一个后端
func (r *Registry) Register(d Descriptor, factory ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[d.ID] = registration{descriptor: d, factory: factory}
}

// Descriptor 查询后端描述
func (r *Registry) Descriptor(id string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e.descriptor, ok
}

// Descriptors 按 ID 排序返回所有后端描述
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.descriptor)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetProvider 创建并初始化指定后端
func (r *Registry) GetProvider(id string, config map[string]string) (Provider, error) {
	r.mu.RLock()
	e, exists := r.entries[id]
	r.mu.RUnlock()
	if !exists {
		return nil, ErrUnknownProvider
	}

	provider := e.factory()
	if err := provider.Initialize(config); err != nil {
		return nil, err
	}
	return provider, nil
}

// Register 注册到全局注册表
func Register(d Descriptor, factory ProviderFactory) {
	DefaultRegistry.Register(d, factory)
}
