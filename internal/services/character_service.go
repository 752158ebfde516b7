// internal/services/character_service.go
package services

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/ashrithajanga/CineGen/internal/errors"
	"github.com/ashrithajanga/CineGen/internal/models"
	"github.com/ashrithajanga/CineGen/internal/screenplay"
)

// CharacterService 对已归档项目做角色识别与改名
type CharacterService struct {
	archive *ArchiveService
	locks   *LockManager
}

// NewCharacterService 创建角色服务
func NewCharacterService(archive *ArchiveService, locks *LockManager) *CharacterService {
	if locks == nil {
		locks = NewLockManager()
	}
	return &CharacterService{archive: archive, locks: locks}
}

// Detect 返回项目当前剧本中识别到的角色
func (s *CharacterService) Detect(ctx context.Context, projectID string) ([]string, error) {
	project, err := s.archive.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return screenplay.Detect(project.Screenplay), nil
}

// Rename 在项目锁内重命名角色并原位更新归档；to 为空时不做任何修改
func (s *CharacterService) Rename(ctx context.Context, projectID, from, to string) (*models.Project, error) {
	from = strings.TrimSpace(from)
	if from == "" {
		return nil, apperrors.NewValidationError("原角色名不能为空", nil)
	}

	var updated *models.Project
	err := s.locks.ExecuteWithProjectLock(projectID, func() error {
		project, err := s.archive.Get(ctx, projectID)
		if err != nil {
			return err
		}
		if !screenplay.Contains(project.Screenplay, from) {
			return apperrors.NewValidationError(fmt.Sprintf("剧本中没有角色 %s", from), nil)
		}
		if strings.TrimSpace(to) == "" {
			updated = project
			return nil
		}

		renamed := screenplay.Rename(project.Screenplay, from, to)
		if renamed == project.Screenplay {
			updated = project
			return nil
		}
		updated, err = s.archive.UpdateScreenplay(ctx, projectID, renamed)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
