// internal/services/studio_service.go
package services

import (
	"context"
	"strings"
	"time"

	"github.com/ashrithajanga/CineGen/internal/catalog"
	apperrors "github.com/ashrithajanga/CineGen/internal/errors"
	"github.com/ashrithajanga/CineGen/internal/models"
	"github.com/google/uuid"
)

// 改写项目的固定元数据
const (
	RewriteTitle  = "Rewrite Project"
	RewriteGenre  = "Drama"
	RewriteTone   = "Cinematic"
	RewriteLength = "Medium Film"
)

// WriteRequest 新剧本请求
type WriteRequest struct {
	Title      string `json:"title"`
	Genre      string `json:"genre"`
	Tone       string `json:"tone"`
	Length     string `json:"length"`
	Language   string `json:"language"`
	ProviderID string `json:"provider_id"`
	TaskID     string `json:"task_id,omitempty"`
}

// RewriteRequest 改写请求，Script 为外部提取好的纯文本
type RewriteRequest struct {
	Script       string `json:"script"`
	Instructions string `json:"instructions"`
	Language     string `json:"language"`
	ProviderID   string `json:"provider_id"`
	TaskID       string `json:"task_id,omitempty"`
}

// StudioService 组装项目：生成 -> 构造 Project -> 归档
type StudioService struct {
	generation *GenerationService
	archive    *ArchiveService
	catalog    *catalog.Catalog
	progress   *ProgressService
	defaultID  string
	now        func() time.Time
}

// NewStudioService 创建工作室服务
func NewStudioService(generation *GenerationService, archive *ArchiveService, cat *catalog.Catalog, progress *ProgressService, defaultProvider string) *StudioService {
	return &StudioService{
		generation: generation,
		archive:    archive,
		catalog:    cat,
		progress:   progress,
		defaultID:  defaultProvider,
		now:        time.Now,
	}
}

func (s *StudioService) provider(id string) string {
	if id == "" {
		return s.defaultID
	}
	return id
}

// Write 根据概念生成新剧本并归档
func (s *StudioService) Write(ctx context.Context, req WriteRequest) (*models.Project, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("故事概念不能为空", nil)
	}

	params := map[string]string{}
	for _, p := range []struct{ name, value string }{
		{catalog.ParamGenre, req.Genre},
		{catalog.ParamTone, req.Tone},
		{catalog.ParamLength, req.Length},
		{catalog.ParamLanguage, req.Language},
	} {
		v, err := s.catalog.NormalizeOrDefault(p.name, p.value)
		if err != nil {
			return nil, err
		}
		params[p.name] = v
	}

	genReq := models.NewGenerationRequest(title, params, s.provider(req.ProviderID))
	return s.produce(ctx, req.TaskID, genReq, func(p *models.Project) {
		p.Title = title
		p.Genre = params[catalog.ParamGenre]
		p.Tone = params[catalog.ParamTone]
		p.Length = params[catalog.ParamLength]
	})
}

// Rewrite 按修改说明改写已有剧本并归档
func (s *StudioService) Rewrite(ctx context.Context, req RewriteRequest) (*models.Project, error) {
	if strings.TrimSpace(req.Script) == "" {
		return nil, apperrors.NewValidationError("原剧本不能为空", nil)
	}
	instructions := strings.TrimSpace(req.Instructions)
	if instructions == "" {
		return nil, apperrors.NewValidationError("改写说明不能为空", nil)
	}
	language, err := s.catalog.NormalizeOrDefault(catalog.ParamLanguage, req.Language)
	if err != nil {
		return nil, err
	}

	genReq := models.NewGenerationRequest(req.Script, map[string]string{
		catalog.ParamInstructions: instructions,
		catalog.ParamLanguage:     language,
	}, s.provider(req.ProviderID))

	return s.produce(ctx, req.TaskID, genReq, func(p *models.Project) {
		p.Title = RewriteTitle
		p.Genre = RewriteGenre
		p.Tone = RewriteTone
		p.Length = RewriteLength
	})
}

func (s *StudioService) produce(ctx context.Context, taskID string, req *models.GenerationRequest, describe func(*models.Project)) (*models.Project, error) {
	tracker := s.progress.Track(taskID)
	tracker.UpdateProgress(10, "正在生成剧本...")

	result, err := s.generation.Generate(ctx, req)
	if err != nil {
		tracker.Fail(err)
		return nil, err
	}
	tracker.UpdateProgress(80, "正在归档...")

	project := &models.Project{
		ID:             uuid.NewString(),
		CreatedAt:      s.now(),
		ProviderID:     req.ProviderID(),
		Screenplay:     result.Screenplay,
		CharacterNotes: result.CharacterNotes,
		SoundDesign:    result.SoundDesign,
		PromptUsed:     BuildPrompt(req),
	}
	describe(project)

	if err := s.archive.Save(ctx, project); err != nil {
		tracker.Fail(err)
		return nil, err
	}

	tracker.Complete("剧本已生成", project.ID)
	return project.Clone(), nil
}
