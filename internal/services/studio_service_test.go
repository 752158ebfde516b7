// internal/services/studio_service_test.go
package services

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/ashrithajanga/CineGen/internal/errors"
	"github.com/ashrithajanga/CineGen/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStudioWriteArchivesProject(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{text: validResult}
	studio, archive, progress := newTestStudio(provider)
	fixed := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	studio.now = func() time.Time { return fixed }

	project, err := studio.Write(ctx, WriteRequest{
		Title:    "  A heist gone wrong ",
		Genre:    "thriller",
		Tone:     "Suspenseful",
		Length:   "Short Film",
		Language: "English",
		TaskID:   "task-1",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, project.ID)
	assert.Equal(t, fixed, project.CreatedAt)
	assert.Equal(t, "A heist gone wrong", project.Title)
	assert.Equal(t, "Thriller", project.Genre, "参数按目录规范化")
	assert.Equal(t, "fake", project.ProviderID)
	assert.Equal(t, "Scene 1: rain on glass.", project.SoundDesign)
	assert.Equal(t, provider.prompt(), project.PromptUsed)
	assert.Contains(t, project.PromptUsed, `"A heist gone wrong"`)

	stored, err := archive.Get(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, project, stored)

	tracker, ok := progress.GetTracker("task-1")
	require.True(t, ok)
	snap := tracker.Snapshot()
	assert.Equal(t, models.TaskStatusCompleted, snap.Status)
	assert.Equal(t, 100, snap.Progress)
	assert.Equal(t, project.ID, snap.ResultID)
}

func TestStudioWriteDefaultsMissingParams(t *testing.T) {
	studio, _, _ := newTestStudio(&fakeProvider{text: validResult})

	project, err := studio.Write(context.Background(), WriteRequest{Title: "Lost at sea"})
	require.NoError(t, err)
	assert.NotEmpty(t, project.Genre)
	assert.NotEmpty(t, project.Tone)
	assert.NotEmpty(t, project.Length)
}

func TestStudioWriteValidatesBeforeCallingProvider(t *testing.T) {
	provider := &fakeProvider{text: validResult}
	studio, archive, _ := newTestStudio(provider)

	_, err := studio.Write(context.Background(), WriteRequest{Title: " "})
	assert.True(t, apperrors.IsValidationError(err))

	_, err = studio.Write(context.Background(), WriteRequest{Title: "x", Genre: "Opera"})
	assert.True(t, apperrors.IsValidationError(err))

	assert.Zero(t, provider.calls)
	assert.Empty(t, projectIDs(t, archive))
}

func TestStudioFailureArchivesNothing(t *testing.T) {
	ctx := context.Background()
	studio, archive, progress := newTestStudio(&fakeProvider{err: errors.New("boom")})

	_, err := studio.Write(ctx, WriteRequest{Title: "x", TaskID: "task-fail"})
	assert.True(t, apperrors.IsProviderRequestError(err))
	assert.Empty(t, projectIDs(t, archive))

	tracker, ok := progress.GetTracker("task-fail")
	require.True(t, ok)
	assert.Equal(t, models.TaskStatusFailed, tracker.Snapshot().Status)
}

func TestStudioSchemaFailureArchivesNothing(t *testing.T) {
	studio, archive, _ := newTestStudio(&fakeProvider{text: `{"screenplay":"x"}`})

	_, err := studio.Write(context.Background(), WriteRequest{Title: "x"})
	assert.True(t, apperrors.IsSchemaValidationError(err))
	assert.Empty(t, projectIDs(t, archive))
}

func TestStudioRewrite(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{text: validResult}
	studio, archive, _ := newTestStudio(provider)

	project, err := studio.Rewrite(ctx, RewriteRequest{
		Script:       "JASON\nHello.",
		Instructions: "Make it funnier",
	})
	require.NoError(t, err)

	assert.Equal(t, RewriteTitle, project.Title)
	assert.Equal(t, RewriteGenre, project.Genre)
	assert.Equal(t, RewriteTone, project.Tone)
	assert.Equal(t, RewriteLength, project.Length)
	assert.Contains(t, provider.prompt(), "ORIGINAL SCRIPT:\nJASON\nHello.")
	assert.Contains(t, provider.prompt(), `"Make it funnier"`)
	assert.Equal(t, []string{project.ID}, projectIDs(t, archive))
}

func TestStudioRewriteValidation(t *testing.T) {
	studio, _, _ := newTestStudio(&fakeProvider{text: validResult})

	_, err := studio.Rewrite(context.Background(), RewriteRequest{Script: "", Instructions: "x"})
	assert.True(t, apperrors.IsValidationError(err))

	_, err = studio.Rewrite(context.Background(), RewriteRequest{Script: "x", Instructions: " "})
	assert.True(t, apperrors.IsValidationError(err))
}
