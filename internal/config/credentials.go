// internal/config/credentials.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	apperrors "github.com/ashrithajanga/CineGen/internal/errors"
	"github.com/ashrithajanga/CineGen/internal/utils"
)

// CredentialStore 本地保存的加密凭证（DATA_DIR/credentials.json）
type CredentialStore struct {
	path   string
	secret string
	mu     sync.Mutex
}

// NewCredentialStore 创建凭证存储
func NewCredentialStore(dataDir, secret string) *CredentialStore {
	return &CredentialStore{
		path:   filepath.Join(dataDir, "credentials.json"),
		secret: secret,
	}
}

// KnownCredential 判断是否为已知凭证族
func KnownCredential(family string) bool {
	_, ok := credentialEnvKeys[family]
	return ok
}

// ValidateCredential 校验密钥格式
func ValidateCredential(family, key string) error {
	if !KnownCredential(family) {
		return apperrors.NewValidationError(fmt.Sprintf("未知的凭证类型: %s", family), nil)
	}
	if strings.TrimSpace(key) == "" {
		return apperrors.NewValidationError("API 密钥不能为空", nil)
	}
	if family == CredentialGroq && !strings.HasPrefix(key, "gsk_") {
		return apperrors.NewValidationError("Groq API 密钥应以 gsk_ 开头", nil)
	}
	return nil
}

// Set 加密保存一个凭证
func (s *CredentialStore) Set(family, key string) error {
	key = strings.TrimSpace(key)
	if err := ValidateCredential(family, key); err != nil {
		return err
	}
	if s.secret == "" {
		return apperrors.NewValidationError("未设置 CREDENTIAL_SECRET，无法保存本地凭证", nil)
	}

	sealed, err := utils.Encrypt(key, s.secret)
	if err != nil {
		return apperrors.NewStorageError("加密凭证失败", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readLocked()
	if err != nil {
		return err
	}
	entries[family] = sealed
	return s.writeLocked(entries)
}

// Get 读取并解密一个凭证，不存在时返回空串
func (s *CredentialStore) Get(family string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readLocked()
	if err != nil {
		return "", err
	}
	sealed, ok := entries[family]
	if !ok {
		return "", nil
	}
	if s.secret == "" {
		return "", apperrors.NewValidationError("未设置 CREDENTIAL_SECRET，无法读取本地凭证", nil)
	}
	plain, err := utils.Decrypt(sealed, s.secret)
	if err != nil {
		return "", apperrors.NewStorageError("解密凭证失败", err)
	}
	return plain, nil
}

// Resolve 合并凭证：环境变量优先，其次本地保存的值
func (s *CredentialStore) Resolve(cfg *Config) map[string]string {
	resolved := make(map[string]string, len(credentialEnvKeys))
	for family := range credentialEnvKeys {
		if value := cfg.Credentials[family]; value != "" {
			resolved[family] = value
			continue
		}
		if s == nil {
			continue
		}
		if value, err := s.Get(family); err == nil && value != "" {
			resolved[family] = value
		} else if err != nil {
			utils.GetLogger().Warn("读取本地凭证失败", map[string]interface{}{
				"credential": family,
				"error":      err,
			})
		}
	}
	return resolved
}

func (s *CredentialStore) readLocked() (map[string]string, error) {
	entries := map[string]string{}
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return entries, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageError("读取凭证文件失败", err)
	}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, apperrors.NewStorageError("解析凭证文件失败", err)
	}
	return entries, nil
}

func (s *CredentialStore) writeLocked(entries map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return apperrors.NewStorageError("创建凭证目录失败", err)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return apperrors.NewStorageError("序列化凭证失败", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return apperrors.NewStorageError("写入凭证文件失败", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return apperrors.NewStorageError("替换凭证文件失败", err)
	}
	return nil
}
