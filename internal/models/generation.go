// internal/models/generation.go
package models

import (
	"maps"
	"sort"
)

// GenerationRequest 一次生成请求，构造后不可修改
type GenerationRequest struct {
	brief      string
	params     map[string]string
	providerID string
}

// NewGenerationRequest 构造请求，参数表会被复制
func NewGenerationRequest(brief string, params map[string]string, providerID string) *GenerationRequest {
	return &GenerationRequest{
		brief:      brief,
		params:     maps.Clone(params),
		providerID: providerID,
	}
}

// Brief 创意简报（标题/概念或待改写的剧本原文）
func (r *GenerationRequest) Brief() string { return r.brief }

// ProviderID 目标后端
func (r *GenerationRequest) ProviderID() string { return r.providerID }

// Param 读取单个结构参数
func (r *GenerationRequest) Param(name string) string { return r.params[name] }

// HasParam 参数是否存在且非空
func (r *GenerationRequest) HasParam(name string) bool { return r.params[name] != "" }

// Params 返回参数表副本
func (r *GenerationRequest) Params() map[string]string {
	return maps.Clone(r.params)
}

// ParamNames 按字典序返回参数名
func (r *GenerationRequest) ParamNames() []string {
	names := make([]string, 0, len(r.params))
	for name := range r.params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GenerationResult 校验后的规范结果，三个字段均非空
type GenerationResult struct {
	Screenplay     string `json:"screenplay"`
	CharacterNotes string `json:"characterNotes"`
	SoundDesign    string `json:"soundDesign"`
}
