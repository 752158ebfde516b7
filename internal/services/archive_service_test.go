// internal/services/archive_service_test.go
package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	apperrors "github.com/ashrithajanga/CineGen/internal/errors"
	"github.com/ashrithajanga/CineGen/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func projectIDs(t *testing.T, archive *ArchiveService) []string {
	t.Helper()
	projects, err := archive.List(context.Background())
	require.NoError(t, err)
	ids := make([]string, len(projects))
	for i, p := range projects {
		ids[i] = p.ID
	}
	return ids
}

func TestArchiveListsNewestFirst(t *testing.T) {
	ctx := context.Background()
	archive := newTestArchive()

	assert.Empty(t, projectIDs(t, archive))

	for _, id := range []string{"A", "B", "C"} {
		require.NoError(t, archive.Save(ctx, sampleProject(id, "Project "+id)))
	}
	assert.Equal(t, []string{"C", "B", "A"}, projectIDs(t, archive))
}

func TestArchiveGet(t *testing.T) {
	ctx := context.Background()
	archive := newTestArchive()
	require.NoError(t, archive.Save(ctx, sampleProject("A", "First")))

	project, err := archive.Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, "First", project.Title)

	_, err = archive.Get(ctx, "missing")
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestArchiveSaveCopiesProject(t *testing.T) {
	ctx := context.Background()
	archive := newTestArchive()
	project := sampleProject("A", "First")
	require.NoError(t, archive.Save(ctx, project))

	project.Title = "Changed after save"
	stored, err := archive.Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, "First", stored.Title)
}

func TestArchiveUpdateKeepsPosition(t *testing.T) {
	ctx := context.Background()
	archive := newTestArchive()
	for _, id := range []string{"A", "B", "C"} {
		require.NoError(t, archive.Save(ctx, sampleProject(id, "Project "+id)))
	}
	before, err := archive.Get(ctx, "B")
	require.NoError(t, err)

	updated, err := archive.UpdateScreenplay(ctx, "B", "NEW TEXT")
	require.NoError(t, err)
	assert.Equal(t, "NEW TEXT", updated.Screenplay)
	assert.Equal(t, before.CreatedAt, updated.CreatedAt)
	assert.Equal(t, before.CharacterNotes, updated.CharacterNotes)

	assert.Equal(t, []string{"C", "B", "A"}, projectIDs(t, archive))

	_, err = archive.UpdateScreenplay(ctx, "missing", "x")
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestArchiveConcurrentSavesLoseNothing(t *testing.T) {
	ctx := context.Background()
	archive := newTestArchive()

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, archive.Save(ctx, sampleProject(fmt.Sprintf("p-%02d", i), "Concurrent")))
		}(i)
	}
	wg.Wait()

	ids := projectIDs(t, archive)
	assert.Len(t, ids, n)
	assert.ElementsMatch(t, ids, uniqueStrings(ids))
}

func TestArchiveSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	require.NoError(t, NewArchiveService(store).Save(ctx, sampleProject("A", "Persisted")))

	reopened := NewArchiveService(store)
	project, err := reopened.Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, "Persisted", project.Title)
}

func TestArchiveStorageFailure(t *testing.T) {
	ctx := context.Background()
	archive := NewArchiveService(failingStore{})

	err := archive.Save(ctx, sampleProject("A", "x"))
	assert.True(t, apperrors.IsStorageError(err))

	_, err = archive.List(ctx)
	assert.True(t, apperrors.IsStorageError(err))
}

func TestArchiveCorruptPayload(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	require.NoError(t, store.Put(ctx, ArchiveKey, []byte("{not a list")))

	_, err := NewArchiveService(store).List(ctx)
	assert.True(t, apperrors.IsStorageError(err))
}

func uniqueStrings(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
