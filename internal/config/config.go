// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// 凭证族，对应一类后端的 API 密钥
const (
	CredentialGemini     = "gemini"
	CredentialGroq       = "groq"
	CredentialOpenRouter = "openrouter"
)

// 归档后端
const (
	ArchiveBackendFile   = "file"
	ArchiveBackendSQLite = "sqlite"
	ArchiveBackendMemory = "memory"
)

// credentialEnvKeys 每个凭证族依次尝试的环境变量
var credentialEnvKeys = map[string][]string{
	CredentialGemini:     {"GEMINI_API_KEY", "API_KEY"},
	CredentialGroq:       {"GROQ_API_KEY", "VITE_GROQ_API_KEY"},
	CredentialOpenRouter: {"OPENROUTER_API_KEY"},
}

// Config 存储应用配置，由调用方显式传递
type Config struct {
	// 基础配置
	Port      string `yaml:"port"`
	DataDir   string `yaml:"data_dir"`
	LogDir    string `yaml:"log_dir"`
	DebugMode bool   `yaml:"debug_mode"`

	// 归档
	ArchiveBackend string `yaml:"archive_backend"`

	// 生成
	DefaultProvider        string `yaml:"default_provider"`
	LatencyFloorMS         int    `yaml:"latency_floor_ms"`
	CampaignLatencyFloorMS int    `yaml:"campaign_latency_floor_ms"`

	// 导出页面尺寸（列数 / 行数）
	PageWidth  int `yaml:"page_width"`
	PageHeight int `yaml:"page_height"`

	// 每分钟请求上限
	APIRateLimit int `yaml:"api_rate_limit"`

	// 本地凭证加密口令，只从环境变量读取
	CredentialSecret string `yaml:"-"`

	// 环境变量中的凭证，key 为凭证族
	Credentials map[string]string `yaml:"-"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Port:                   "8080",
		DataDir:                "data",
		LogDir:                 "logs",
		ArchiveBackend:         ArchiveBackendFile,
		DefaultProvider:        "groq-llama-3.3",
		LatencyFloorMS:         2500,
		CampaignLatencyFloorMS: 2000,
		PageWidth:              72,
		PageHeight:             54,
		APIRateLimit:           30,
		Credentials:            map[string]string{},
	}
}

// Load 加载配置：默认值 -> YAML 文件(CINEGEN_CONFIG) -> 环境变量
func Load() (*Config, error) {
	// 尝试加载.env文件（可选）
	_ = godotenv.Load()

	config := Default()

	if path := os.Getenv("CINEGEN_CONFIG"); path != "" {
		if err := config.mergeFile(path); err != nil {
			return nil, err
		}
	}

	config.Port = getEnv("PORT", config.Port)
	config.DataDir = getEnv("DATA_DIR", config.DataDir)
	config.LogDir = getEnv("LOG_DIR", config.LogDir)
	config.DebugMode = getEnvBool("DEBUG_MODE", config.DebugMode)
	config.ArchiveBackend = strings.ToLower(getEnv("ARCHIVE_BACKEND", config.ArchiveBackend))
	config.DefaultProvider = getEnv("DEFAULT_PROVIDER", config.DefaultProvider)
	config.LatencyFloorMS = getEnvInt("LATENCY_FLOOR_MS", config.LatencyFloorMS)
	config.CampaignLatencyFloorMS = getEnvInt("CAMPAIGN_LATENCY_FLOOR_MS", config.CampaignLatencyFloorMS)
	config.PageWidth = getEnvInt("PAGE_WIDTH", config.PageWidth)
	config.PageHeight = getEnvInt("PAGE_HEIGHT", config.PageHeight)
	config.APIRateLimit = getEnvInt("API_RATE_LIMIT", config.APIRateLimit)
	config.CredentialSecret = os.Getenv("CREDENTIAL_SECRET")

	for family, keys := range credentialEnvKeys {
		for _, key := range keys {
			if value := strings.TrimSpace(os.Getenv(key)); value != "" {
				config.Credentials[family] = value
				break
			}
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// mergeFile 用 YAML 文件覆盖默认值
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("解析配置文件失败: %w", err)
	}
	return nil
}

// Validate 检查配置取值
func (c *Config) Validate() error {
	switch c.ArchiveBackend {
	case ArchiveBackendFile, ArchiveBackendSQLite, ArchiveBackendMemory:
	default:
		return fmt.Errorf("未知的归档后端: %s", c.ArchiveBackend)
	}
	if c.LatencyFloorMS < 0 || c.CampaignLatencyFloorMS < 0 {
		return fmt.Errorf("延迟下限不能为负数")
	}
	if c.PageWidth < 20 || c.PageHeight < 12 {
		return fmt.Errorf("页面尺寸过小: %dx%d", c.PageWidth, c.PageHeight)
	}
	return nil
}

// LatencyFloor 剧本生成的最小耗时
func (c *Config) LatencyFloor() time.Duration {
	return time.Duration(c.LatencyFloorMS) * time.Millisecond
}

// CampaignLatencyFloor 社媒文案生成的最小耗时
func (c *Config) CampaignLatencyFloor() time.Duration {
	return time.Duration(c.CampaignLatencyFloorMS) * time.Millisecond
}

// EnsureDirs 创建数据与日志目录
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.DataDir, c.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建目录失败 %s: %w", dir, err)
		}
	}
	return nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt 获取整数环境变量，无法解析时使用默认值
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
