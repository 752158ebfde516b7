// internal/services/generation_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	apperrors "github.com/ashrithajanga/CineGen/internal/errors"
	"github.com/ashrithajanga/CineGen/internal/llm"
	"github.com/ashrithajanga/CineGen/internal/models"
	"github.com/ashrithajanga/CineGen/internal/utils"
	"golang.org/x/sync/errgroup"
)

const (
	generationTemperature = 0.7
	generationMaxTokens   = 2000
)

// ProviderStatus 后端可用状态
type ProviderStatus struct {
	llm.Descriptor
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// GenerationOptions 编排器配置
type GenerationOptions struct {
	LatencyFloor         time.Duration
	CampaignLatencyFloor time.Duration
	Metrics              *utils.GenerationMetrics
	Logger               *utils.Logger
}

// GenerationService 选择后端、构造提示词、保证最小耗时并校验结果结构
type GenerationService struct {
	registry *llm.Registry
	opts     GenerationOptions

	mu          sync.RWMutex
	providers   map[string]llm.Provider
	injected    map[string]llm.Provider
	unavailable map[string]string
}

// NewGenerationService 创建编排器，registry 为空时使用全局注册表
func NewGenerationService(registry *llm.Registry, opts GenerationOptions) *GenerationService {
	if registry == nil {
		registry = llm.DefaultRegistry
	}
	if opts.Logger == nil {
		opts.Logger = utils.GetLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = utils.NewGenerationMetrics(nil, opts.Logger)
	}
	return &GenerationService{
		registry:    registry,
		opts:        opts,
		providers:   make(map[string]llm.Provider),
		injected:    make(map[string]llm.Provider),
		unavailable: make(map[string]string),
	}
}

// ConfigureProviders 用已解析的凭证（凭证族 -> 密钥）初始化全部已注册后端
// RegisterProvider 注入的后端始终保留，并优先于按凭证创建的同名后端
func (s *GenerationService) ConfigureProviders(credentials map[string]string) {
	providers := make(map[string]llm.Provider)
	unavailable := make(map[string]string)

	for _, d := range s.registry.Descriptors() {
		key := credentials[d.Credential]
		if key == "" {
			unavailable[d.ID] = fmt.Sprintf("缺少 %s 凭证", d.Credential)
			continue
		}
		provider, err := s.registry.GetProvider(d.ID, map[string]string{"api_key": key})
		if err != nil {
			unavailable[d.ID] = err.Error()
			continue
		}
		providers[d.ID] = provider
	}

	s.mu.Lock()
	for id, provider := range s.injected {
		providers[id] = provider
		delete(unavailable, id)
	}
	s.providers = providers
	s.unavailable = unavailable
	s.mu.Unlock()

	s.opts.Logger.Info("生成后端已配置", map[string]interface{}{
		"available":   len(providers),
		"unavailable": len(unavailable),
	})
}

// RegisterProvider 直接注入一个已初始化的后端
func (s *GenerationService) RegisterProvider(id string, provider llm.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.injected[id] = provider
	s.providers[id] = provider
	delete(s.unavailable, id)
}

// Providers 列出全部后端及可用状态
func (s *GenerationService) Providers() []ProviderStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statuses := []ProviderStatus{}
	seen := map[string]bool{}
	for _, d := range s.registry.Descriptors() {
		_, ok := s.providers[d.ID]
		statuses = append(statuses, ProviderStatus{Descriptor: d, Available: ok, Reason: s.unavailable[d.ID]})
		seen[d.ID] = true
	}
	for id := range s.providers {
		if !seen[id] {
			statuses = append(statuses, ProviderStatus{Descriptor: llm.Descriptor{ID: id, DisplayName: id}, Available: true})
		}
	}
	return statuses
}

func (s *GenerationService) resolve(providerID string) (llm.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if provider, ok := s.providers[providerID]; ok {
		return provider, nil
	}
	if reason, ok := s.unavailable[providerID]; ok {
		return nil, apperrors.NewProviderUnavailableError(fmt.Sprintf("生成后端 %s 未配置: %s", providerID, reason), nil)
	}
	return nil, apperrors.NewProviderUnavailableError(fmt.Sprintf("未知的生成后端: %s", providerID), llm.ErrUnknownProvider)
}

// Generate 生成剧本、角色小传与声音设计，成功时耗时不少于 LatencyFloor
func (s *GenerationService) Generate(ctx context.Context, req *models.GenerationRequest) (*models.GenerationResult, error) {
	if req == nil {
		return nil, apperrors.NewValidationError("生成请求不能为空", nil)
	}
	start := time.Now()
	result, err := s.generate(ctx, req)
	s.record("screenplay", req.ProviderID(), err, time.Since(start))
	return result, err
}

func (s *GenerationService) generate(ctx context.Context, req *models.GenerationRequest) (*models.GenerationResult, error) {
	if strings.TrimSpace(req.Brief()) == "" {
		return nil, apperrors.NewValidationError("创意简报不能为空", nil)
	}

	raw, err := s.complete(ctx, req.ProviderID(), BuildPrompt(req), s.opts.LatencyFloor)
	if err != nil {
		return nil, err
	}
	return DecodeGenerationResult(raw)
}

// complete 并发执行后端调用与最小耗时计时器
// 后端失败立即返回，不等待计时器；成功时等两者都结束
func (s *GenerationService) complete(ctx context.Context, providerID, prompt string, floor time.Duration) (string, error) {
	provider, err := s.resolve(providerID)
	if err != nil {
		return "", err
	}

	g, gctx := errgroup.WithContext(ctx)

	var raw string
	g.Go(func() error {
		resp, err := provider.CompleteText(gctx, llm.CompletionRequest{
			Prompt:      prompt,
			Temperature: generationTemperature,
			MaxTokens:   generationMaxTokens,
			JSONMode:    true,
		})
		if err != nil {
			return asProviderError(providerID, err)
		}
		raw = resp.Text
		return nil
	})

	if floor > 0 {
		g.Go(func() error {
			timer := time.NewTimer(floor)
			defer timer.Stop()
			select {
			case <-timer.C:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}

	if err := g.Wait(); err != nil {
		if apperrors.TypeOf(err) == "" {
			err = asProviderError(providerID, err)
		}
		return "", err
	}
	return raw, nil
}

// asProviderError 非 AppError 的后端错误统一归为 ProviderRequestError
func asProviderError(providerID string, err error) error {
	if apperrors.TypeOf(err) != "" {
		return err
	}
	return apperrors.NewProviderRequestError(fmt.Sprintf("%s 请求失败", providerID), err)
}

func (s *GenerationService) record(kind, providerID string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = string(apperrors.TypeOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	s.opts.Metrics.RecordGeneration(kind, providerID, outcome, elapsed)
}

// DecodeGenerationResult 严格解析后端文本，缺字段或空字段返回 SchemaValidationError
func DecodeGenerationResult(raw string) (*models.GenerationResult, error) {
	fields, err := decodeJSONObject(raw)
	if err != nil {
		return nil, err
	}

	result := &models.GenerationResult{}
	targets := []struct {
		name string
		dst  *string
	}{
		{"screenplay", &result.Screenplay},
		{"characterNotes", &result.CharacterNotes},
		{"soundDesign", &result.SoundDesign},
	}
	for _, t := range targets {
		value, err := requiredString(fields, t.name)
		if err != nil {
			return nil, err
		}
		*t.dst = value
	}
	return result, nil
}

func decodeJSONObject(raw string) (map[string]json.RawMessage, error) {
	payload := extractJSONObject(raw)
	if payload == "" {
		return nil, apperrors.NewSchemaValidationError("响应中没有 JSON 对象", nil)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return nil, apperrors.NewSchemaValidationError("响应不是合法的 JSON", err)
	}
	return fields, nil
}

func requiredString(fields map[string]json.RawMessage, name string) (string, error) {
	value, ok := fields[name]
	if !ok {
		return "", apperrors.NewSchemaValidationError(fmt.Sprintf("缺少字段 %s", name), nil)
	}
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return "", apperrors.NewSchemaValidationError(fmt.Sprintf("字段 %s 必须是字符串", name), err)
	}
	if strings.TrimSpace(s) == "" {
		return "", apperrors.NewSchemaValidationError(fmt.Sprintf("字段 %s 为空", name), nil)
	}
	return s, nil
}

// extractJSONObject 去掉 Markdown 代码块与前后噪声，返回第一个完整的 JSON 对象文本
func extractJSONObject(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\u2060', '\ufeff':
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	// 括号计数，跳过字符串内的内容
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	// 未闭合，交给 json 解析报错
	return strings.TrimRightFunc(s[start:], unicode.IsSpace)
}
