// internal/services/character_service_test.go
package services

import (
	"context"
	"sync"
	"testing"

	apperrors "github.com/ashrithajanga/CineGen/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCharacters(t *testing.T) (*CharacterService, *ArchiveService) {
	t.Helper()
	archive := newTestArchive()
	ctx := context.Background()
	require.NoError(t, archive.Save(ctx, sampleProject("A", "First")))
	require.NoError(t, archive.Save(ctx, sampleProject("B", "Second")))
	require.NoError(t, archive.Save(ctx, sampleProject("C", "Third")))
	return NewCharacterService(archive, NewLockManager()), archive
}

func TestCharacterDetect(t *testing.T) {
	svc, _ := newTestCharacters(t)

	names, err := svc.Detect(context.Background(), "B")
	require.NoError(t, err)
	assert.Equal(t, []string{"JASON", "MORALES"}, names)

	_, err = svc.Detect(context.Background(), "missing")
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestCharacterRenamePersistsInPlace(t *testing.T) {
	ctx := context.Background()
	svc, archive := newTestCharacters(t)

	updated, err := svc.Rename(ctx, "B", "JASON", "Marcus")
	require.NoError(t, err)
	assert.Contains(t, updated.Screenplay, "MARCUS\nHello there.")
	assert.NotContains(t, updated.Screenplay, "JASON")

	stored, err := archive.Get(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, updated.Screenplay, stored.Screenplay)
	assert.Equal(t, "JASON: a tired detective.", stored.CharacterNotes, "角色小传不受改名影响")
	assert.Equal(t, []string{"C", "B", "A"}, projectIDs(t, archive))

	names, err := svc.Detect(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, []string{"MARCUS", "MORALES"}, names)
}

func TestCharacterRenameEmptyTargetIsNoop(t *testing.T) {
	ctx := context.Background()
	svc, archive := newTestCharacters(t)
	before, err := archive.Get(ctx, "A")
	require.NoError(t, err)

	project, err := svc.Rename(ctx, "A", "JASON", "   ")
	require.NoError(t, err)
	assert.Equal(t, before.Screenplay, project.Screenplay)
}

func TestCharacterRenameRejectsUnknownName(t *testing.T) {
	svc, _ := newTestCharacters(t)

	_, err := svc.Rename(context.Background(), "A", "NOBODY", "MARCUS")
	assert.True(t, apperrors.IsValidationError(err))

	_, err = svc.Rename(context.Background(), "A", "", "MARCUS")
	assert.True(t, apperrors.IsValidationError(err))

	_, err = svc.Rename(context.Background(), "missing", "JASON", "MARCUS")
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestCharacterRenameSerializesPerProject(t *testing.T) {
	ctx := context.Background()
	svc, archive := newTestCharacters(t)
	locks := svc.locks

	var wg sync.WaitGroup
	for _, target := range []string{"MARCUS", "VICTOR"} {
		wg.Add(1)
		go func(target string) {
			defer wg.Done()
			// 只有第一个改名能找到 JASON，另一个应返回校验错误
			_, err := svc.Rename(ctx, "A", "JASON", target)
			if err != nil {
				assert.True(t, apperrors.IsValidationError(err))
			}
		}(target)
	}
	wg.Wait()

	stored, err := archive.Get(ctx, "A")
	require.NoError(t, err)
	names, err := svc.Detect(ctx, "A")
	require.NoError(t, err)
	assert.Len(t, names, 2)
	assert.NotContains(t, stored.Screenplay, "JASON")
	assert.Zero(t, locks.Len())
}

func TestLockManagerReleasesEntries(t *testing.T) {
	lm := NewLockManager()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = lm.ExecuteWithProjectLock("p", func() error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Zero(t, lm.Len())
}
