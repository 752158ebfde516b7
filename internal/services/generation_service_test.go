// internal/services/generation_service_test.go
package services

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ashrithajanga/CineGen/internal/catalog"
	apperrors "github.com/ashrithajanga/CineGen/internal/errors"
	"github.com/ashrithajanga/CineGen/internal/llm"
	"github.com/ashrithajanga/CineGen/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freshRequest(provider string) *models.GenerationRequest {
	return models.NewGenerationRequest("A heist gone wrong", map[string]string{
		catalog.ParamGenre:    "Thriller",
		catalog.ParamTone:     "Suspenseful",
		catalog.ParamLength:   "Short Film",
		catalog.ParamLanguage: "English",
	}, provider)
}

func TestGenerateRespectsLatencyFloor(t *testing.T) {
	floor := 150 * time.Millisecond
	svc := newTestGeneration(floor, &fakeProvider{text: validResult})

	start := time.Now()
	result, err := svc.Generate(context.Background(), freshRequest("fake"))
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, elapsed, floor, "成功时耗时不应低于下限")
	assert.Equal(t, "JASON: a tired detective.", result.CharacterNotes)
	assert.Contains(t, result.Screenplay, "JASON")
	assert.Equal(t, "Scene 1: rain on glass.", result.SoundDesign)
}

func TestGenerateFloorDoesNotStackOnSlowProvider(t *testing.T) {
	floor := 100 * time.Millisecond
	svc := newTestGeneration(floor, &fakeProvider{text: validResult, delay: 150 * time.Millisecond})

	start := time.Now()
	_, err := svc.Generate(context.Background(), freshRequest("fake"))
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, elapsed, 150*time.Millisecond)
	assert.Less(t, elapsed, 240*time.Millisecond, "计时器与后端调用应并发执行")
}

func TestGenerateFailsFastOnProviderError(t *testing.T) {
	svc := newTestGeneration(3*time.Second, &fakeProvider{err: errors.New("connection reset")})

	start := time.Now()
	result, err := svc.Generate(context.Background(), freshRequest("fake"))
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, apperrors.IsProviderRequestError(err), "普通错误应归为 ProviderRequestError")
	assert.Contains(t, err.Error(), "connection reset")
	assert.Less(t, elapsed, time.Second, "失败时不应等待延迟下限")
}

func TestGenerateKeepsBackendMessage(t *testing.T) {
	backendErr := apperrors.NewProviderRequestError("Groq api错误(401): Invalid API Key", nil)
	svc := newTestGeneration(0, &fakeProvider{err: backendErr})

	_, err := svc.Generate(context.Background(), freshRequest("fake"))
	require.Error(t, err)
	assert.True(t, apperrors.IsProviderRequestError(err))
	assert.Contains(t, err.Error(), "Invalid API Key")
}

func TestGenerateSchemaValidation(t *testing.T) {
	cases := map[string]string{
		"not json":          "Sorry, I cannot help with that.",
		"truncated":         `{"screenplay":"INT. OFFICE`,
		"missing sound":     `{"screenplay":"x","characterNotes":"y"}`,
		"empty notes":       `{"screenplay":"x","characterNotes":"   ","soundDesign":"z"}`,
		"non-string field":  `{"screenplay":["x"],"characterNotes":"y","soundDesign":"z"}`,
		"legacy field name": `{"screenplay":"x","characters":"y","soundDesign":"z"}`,
		"array payload":     `[{"screenplay":"x"}]`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			svc := newTestGeneration(0, &fakeProvider{text: raw})
			result, err := svc.Generate(context.Background(), freshRequest("fake"))
			assert.Nil(t, result)
			assert.True(t, apperrors.IsSchemaValidationError(err), "应为结构校验错误: %v", err)
		})
	}
}

func TestGenerateExtractsFencedJSON(t *testing.T) {
	raw := "Here you go:\n```json\n" + validResult + "\n```\nEnjoy!"
	svc := newTestGeneration(0, &fakeProvider{text: raw})

	result, err := svc.Generate(context.Background(), freshRequest("fake"))
	require.NoError(t, err)
	assert.Equal(t, "Scene 1: rain on glass.", result.SoundDesign)
}

func TestExtractJSONObjectHandlesBracesInStrings(t *testing.T) {
	raw := "\ufeff" + `{"screenplay":"He draws a } on the wall \"}\"","characterNotes":"a","soundDesign":"b"} trailing`
	result, err := DecodeGenerationResult(raw)
	require.NoError(t, err)
	assert.Equal(t, `He draws a } on the wall "}"`, result.Screenplay)
}

func TestGenerateUnknownProvider(t *testing.T) {
	provider := &fakeProvider{text: validResult}
	svc := newTestGeneration(0, provider)

	_, err := svc.Generate(context.Background(), freshRequest("does-not-exist"))
	assert.True(t, apperrors.IsProviderUnavailableError(err))
	assert.Zero(t, provider.calls)
}

func TestConfigureProvidersMissingCredential(t *testing.T) {
	registry := llm.NewRegistry()
	registry.Register(llm.Descriptor{ID: "stub-a", Credential: "alpha"}, func() llm.Provider { return &fakeProvider{text: validResult} })
	registry.Register(llm.Descriptor{ID: "stub-b", Credential: "beta"}, func() llm.Provider { return &fakeProvider{text: validResult} })

	svc := NewGenerationService(registry, GenerationOptions{})
	svc.ConfigureProviders(map[string]string{"alpha": "key"})

	_, err := svc.Generate(context.Background(), freshRequest("stub-a"))
	assert.NoError(t, err)

	_, err = svc.Generate(context.Background(), freshRequest("stub-b"))
	assert.True(t, apperrors.IsProviderUnavailableError(err))
	assert.Contains(t, err.Error(), "beta")

	statuses := svc.Providers()
	require.Len(t, statuses, 2)
	assert.True(t, statuses[0].Available)
	assert.False(t, statuses[1].Available)
}

func TestConfigureProvidersKeepsInjectedProviders(t *testing.T) {
	registry := llm.NewRegistry()
	registry.Register(llm.Descriptor{ID: "stub-a", Credential: "alpha"}, func() llm.Provider { return &fakeProvider{text: validResult} })

	injected := &fakeProvider{text: validResult}
	svc := NewGenerationService(registry, GenerationOptions{})
	svc.RegisterProvider("fake", injected)
	svc.RegisterProvider("stub-a", injected)

	// 凭证更新后重新配置
	svc.ConfigureProviders(map[string]string{})

	_, err := svc.Generate(context.Background(), freshRequest("fake"))
	require.NoError(t, err)
	_, err = svc.Generate(context.Background(), freshRequest("stub-a"))
	require.NoError(t, err, "注入的后端不应因缺少凭证而失效")
	assert.Equal(t, int32(2), atomic.LoadInt32(&injected.calls))

	for _, status := range svc.Providers() {
		assert.True(t, status.Available, status.ID)
	}
}

func TestGenerateRejectsEmptyBrief(t *testing.T) {
	svc := newTestGeneration(0, &fakeProvider{text: validResult})
	_, err := svc.Generate(context.Background(), models.NewGenerationRequest("  ", nil, "fake"))
	assert.True(t, apperrors.IsValidationError(err))
}

func TestGenerateRecordsMetrics(t *testing.T) {
	svc := newTestGeneration(0, &fakeProvider{text: "nope"})
	_, _ = svc.Generate(context.Background(), freshRequest("fake"))

	c := svc.opts.Metrics.Collector()
	assert.Equal(t, int64(1), c.GetCounterValue("generation_screenplay_fake_schema_validation"))
	assert.Equal(t, int64(1), c.GetCounterValue("generation_failures_total"))
}

func TestBuildPromptFresh(t *testing.T) {
	req := models.NewGenerationRequest("A heist gone wrong", map[string]string{
		catalog.ParamGenre:    "Noir",
		catalog.ParamTone:     "Dark & Gritty",
		catalog.ParamLength:   "Feature Length",
		catalog.ParamLanguage: "Spanish",
		"audience":            "adults",
	}, "fake")

	prompt := BuildPrompt(req)
	for _, want := range []string{
		`"A heist gone wrong"`, "Feature Length Noir film", "Dark & Gritty", "Spanish",
		PageBreakMarker, `"screenplay"`, `"characterNotes"`, `"soundDesign"`, "- audience: adults",
	} {
		assert.Contains(t, prompt, want)
	}
	assert.NotContains(t, prompt, "Script Doctor")
}

func TestBuildPromptRewrite(t *testing.T) {
	req := models.NewGenerationRequest("JASON\nHello.", map[string]string{
		catalog.ParamInstructions: "Make it funnier",
		catalog.ParamLanguage:     "French",
	}, "fake")

	prompt := BuildPrompt(req)
	assert.Contains(t, prompt, "Script Doctor")
	assert.Contains(t, prompt, `"Make it funnier"`)
	assert.Contains(t, prompt, "Output Language: French")
	assert.True(t, strings.Contains(prompt, "ORIGINAL SCRIPT:\nJASON\nHello."))
	assert.Contains(t, prompt, PageBreakMarker)
}

func TestGenerationRequestIsImmutable(t *testing.T) {
	params := map[string]string{catalog.ParamGenre: "Drama"}
	req := models.NewGenerationRequest("brief", params, "fake")

	params[catalog.ParamGenre] = "Horror"
	assert.Equal(t, "Drama", req.Param(catalog.ParamGenre))

	copied := req.Params()
	copied[catalog.ParamGenre] = "Comedy"
	assert.Equal(t, "Drama", req.Param(catalog.ParamGenre))
}
