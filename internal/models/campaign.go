// internal/models/campaign.go
package models

import "time"

// InstagramPost Instagram 文案
type InstagramPost struct {
	Caption   string   `json:"caption"`
	Hashtags  []string `json:"hashtags"`
	ImageIdea string   `json:"imageIdea"`
}

// SocialCampaign 一组多平台社媒文案，不进入归档
type SocialCampaign struct {
	Topic       string        `json:"topic"`
	Language    string        `json:"language"`
	ProviderID  string        `json:"provider_id"`
	GeneratedAt time.Time     `json:"generated_at"`
	Instagram   InstagramPost `json:"instagram"`
	Twitter     []string      `json:"twitter"`
	LinkedIn    string        `json:"linkedin"`
	TikTok      string        `json:"tiktok"`
}
