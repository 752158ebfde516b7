// internal/services/campaign_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ashrithajanga/CineGen/internal/catalog"
	apperrors "github.com/ashrithajanga/CineGen/internal/errors"
	"github.com/ashrithajanga/CineGen/internal/models"
)

// CampaignRequest 社媒文案请求
type CampaignRequest struct {
	Topic      string `json:"topic"`
	Language   string `json:"language"`
	ProviderID string `json:"provider_id"`
	TaskID     string `json:"task_id,omitempty"`
}

// CampaignService 生成多平台社媒文案，结果不归档
type CampaignService struct {
	generation *GenerationService
	catalog    *catalog.Catalog
	progress   *ProgressService
	defaultID  string
}

// NewCampaignService 创建文案服务
func NewCampaignService(generation *GenerationService, cat *catalog.Catalog, progress *ProgressService, defaultProvider string) *CampaignService {
	return &CampaignService{
		generation: generation,
		catalog:    cat,
		progress:   progress,
		defaultID:  defaultProvider,
	}
}

// Generate 生成文案，成功时耗时不少于 CampaignLatencyFloor
func (s *CampaignService) Generate(ctx context.Context, req CampaignRequest) (*models.SocialCampaign, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return nil, apperrors.NewValidationError("主题不能为空", nil)
	}
	language, err := s.catalog.NormalizeOrDefault(catalog.ParamLanguage, req.Language)
	if err != nil {
		return nil, err
	}
	providerID := req.ProviderID
	if providerID == "" {
		providerID = s.defaultID
	}

	tracker := s.progress.Track(req.TaskID)
	tracker.UpdateProgress(10, "正在生成社媒文案...")

	start := time.Now()
	raw, err := s.generation.complete(ctx, providerID, BuildCampaignPrompt(topic, language), s.generation.opts.CampaignLatencyFloor)
	var campaign *models.SocialCampaign
	if err == nil {
		campaign, err = DecodeCampaign(raw)
	}
	s.generation.record("campaign", providerID, err, time.Since(start))
	if err != nil {
		tracker.Fail(err)
		return nil, err
	}

	campaign.Topic = topic
	campaign.Language = language
	campaign.ProviderID = providerID
	campaign.GeneratedAt = time.Now()

	tracker.Complete("文案生成完成", "")
	return campaign, nil
}

// DecodeCampaign 严格解析文案 JSON
func DecodeCampaign(raw string) (*models.SocialCampaign, error) {
	fields, err := decodeJSONObject(raw)
	if err != nil {
		return nil, err
	}

	campaign := &models.SocialCampaign{}

	instagram, ok := fields["instagram"]
	if !ok {
		return nil, apperrors.NewSchemaValidationError("缺少字段 instagram", nil)
	}
	if err := json.Unmarshal(instagram, &campaign.Instagram); err != nil {
		return nil, apperrors.NewSchemaValidationError("字段 instagram 结构无效", err)
	}
	if strings.TrimSpace(campaign.Instagram.Caption) == "" {
		return nil, apperrors.NewSchemaValidationError("字段 instagram.caption 为空", nil)
	}

	twitter, ok := fields["twitter"]
	if !ok {
		return nil, apperrors.NewSchemaValidationError("缺少字段 twitter", nil)
	}
	if err := json.Unmarshal(twitter, &campaign.Twitter); err != nil {
		return nil, apperrors.NewSchemaValidationError("字段 twitter 必须是字符串数组", err)
	}
	if len(campaign.Twitter) == 0 {
		return nil, apperrors.NewSchemaValidationError("字段 twitter 为空", nil)
	}
	for i, tweet := range campaign.Twitter {
		if strings.TrimSpace(tweet) == "" {
			return nil, apperrors.NewSchemaValidationError(fmt.Sprintf("twitter[%d] 为空", i), nil)
		}
	}

	if campaign.LinkedIn, err = requiredString(fields, "linkedin"); err != nil {
		return nil, err
	}
	if campaign.TikTok, err = requiredString(fields, "tiktok"); err != nil {
		return nil, err
	}
	return campaign, nil
}
