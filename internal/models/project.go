// internal/models/project.go
package models

import "time"

// Project 一次成功生成或改写的成品记录
// 归档后只有 Screenplay 会被改名操作修改，ID 与 CreatedAt 不变
type Project struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	Title          string    `json:"title"`
	Genre          string    `json:"genre"`
	Tone           string    `json:"tone"`
	Length         string    `json:"length"`
	ProviderID     string    `json:"provider_id"`
	Screenplay     string    `json:"screenplay"`
	CharacterNotes string    `json:"character_notes"`
	SoundDesign    string    `json:"sound_design"`
	PromptUsed     string    `json:"prompt_used"`
}

// Clone 返回副本，调用方持有的始终是临时副本
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// ProjectSummary 列表视图
type ProjectSummary struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Title      string    `json:"title"`
	Genre      string    `json:"genre"`
	Tone       string    `json:"tone"`
	Length     string    `json:"length"`
	ProviderID string    `json:"provider_id"`
}

// Summary 生成列表视图
func (p *Project) Summary() ProjectSummary {
	return ProjectSummary{
		ID:         p.ID,
		CreatedAt:  p.CreatedAt,
		Title:      p.Title,
		Genre:      p.Genre,
		Tone:       p.Tone,
		Length:     p.Length,
		ProviderID: p.ProviderID,
	}
}
