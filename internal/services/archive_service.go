// internal/services/archive_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	apperrors "github.com/ashrithajanga/CineGen/internal/errors"
	"github.com/ashrithajanga/CineGen/internal/models"
	"github.com/ashrithajanga/CineGen/internal/storage"
)

// ArchiveKey 所有项目记录序列化在这一个键下
const ArchiveKey = "cwc_projects"

// ArchiveService 只追加的项目归档，最新保存的排在最前
type ArchiveService struct {
	store storage.KVStore
	// 写入串行化：读全量、改、写全量
	writeMu sync.Mutex
}

// NewArchiveService 创建归档服务
func NewArchiveService(store storage.KVStore) *ArchiveService {
	return &ArchiveService{store: store}
}

func (s *ArchiveService) load(ctx context.Context) ([]*models.Project, error) {
	raw, found, err := s.store.Get(ctx, ArchiveKey)
	if err != nil {
		return nil, apperrors.NewStorageError("读取归档失败", err)
	}
	if !found || len(raw) == 0 {
		return []*models.Project{}, nil
	}

	var projects []*models.Project
	if err := json.Unmarshal(raw, &projects); err != nil {
		return nil, apperrors.NewStorageError("解析归档失败", err)
	}
	return projects, nil
}

func (s *ArchiveService) persist(ctx context.Context, projects []*models.Project) error {
	raw, err := json.Marshal(projects)
	if err != nil {
		return apperrors.NewStorageError("序列化归档失败", err)
	}
	if err := s.store.Put(ctx, ArchiveKey, raw); err != nil {
		return apperrors.NewStorageError("写入归档失败", err)
	}
	return nil
}

// Save 将项目插入最前，只在存储失败时报错
func (s *ArchiveService) Save(ctx context.Context, project *models.Project) error {
	if project == nil {
		return apperrors.NewValidationError("项目不能为空", nil)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	projects, err := s.load(ctx)
	if err != nil {
		return err
	}

	projects = append([]*models.Project{project.Clone()}, projects...)
	return s.persist(ctx, projects)
}

// List 按保存时间倒序返回项目副本
func (s *ArchiveService) List(ctx context.Context) ([]*models.Project, error) {
	return s.load(ctx)
}

// Get 按 ID 查询
func (s *ArchiveService) Get(ctx context.Context, id string) (*models.Project, error) {
	projects, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range projects {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("项目不存在: %s", id), nil)
}

// UpdateScreenplay 原位替换一条记录的剧本文本，位置、ID 与创建时间不变
func (s *ArchiveService) UpdateScreenplay(ctx context.Context, id, screenplay string) (*models.Project, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	projects, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	for _, p := range projects {
		if p.ID != id {
			continue
		}
		p.Screenplay = screenplay
		if err := s.persist(ctx, projects); err != nil {
			return nil, err
		}
		return p.Clone(), nil
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("项目不存在: %s", id), nil)
}
