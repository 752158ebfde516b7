// internal/api/handlers_test.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashrithajanga/CineGen/internal/catalog"
	"github.com/ashrithajanga/CineGen/internal/config"
	"github.com/ashrithajanga/CineGen/internal/di"
	"github.com/ashrithajanga/CineGen/internal/llm"
	"github.com/ashrithajanga/CineGen/internal/models"
	"github.com/ashrithajanga/CineGen/internal/services"
	"github.com/ashrithajanga/CineGen/internal/storage"
	"github.com/ashrithajanga/CineGen/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stubScreenplay = `{"screenplay":"INT. OFFICE - DAY\n\nJASON\nHello there.\n\nMORALES (O.S.)\nWait!","characterNotes":"JASON: a detective.","soundDesign":"Rain."}`

const stubCampaign = `{"instagram":{"caption":"c","hashtags":["#a"],"imageIdea":"i"},"twitter":["t1","t2"],"linkedin":"l","tiktok":"k"}`

// stubProvider 返回固定文本的生成后端
type stubProvider struct {
	mu   sync.Mutex
	text string
}

func (p *stubProvider) Initialize(cfg map[string]string) error { return nil }
func (p *stubProvider) GetName() string                        { return "stub" }
func (p *stubProvider) GetSupportedModels() []string           { return []string{"stub-1"} }

func (p *stubProvider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &llm.CompletionResponse{Text: p.text}, nil
}

func (p *stubProvider) set(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.text = text
}

type testServer struct {
	router   *gin.Engine
	handler  *Handler
	provider *stubProvider
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.ArchiveBackend = config.ArchiveBackendMemory
	cfg.CredentialSecret = "test-secret"
	cfg.DefaultProvider = "stub"
	cfg.LatencyFloorMS = 0
	cfg.CampaignLatencyFloorMS = 0
	for _, m := range mutate {
		m(cfg)
	}

	provider := &stubProvider{text: stubScreenplay}
	registry := llm.NewRegistry()
	registry.Register(llm.Descriptor{ID: "stub", DisplayName: "Stub Model", Credential: config.CredentialGroq}, func() llm.Provider { return provider })

	logger := utils.NewNopLogger()
	metrics := utils.NewGenerationMetrics(nil, logger)
	cat := catalog.Default()
	credentials := config.NewCredentialStore(cfg.DataDir, cfg.CredentialSecret)

	generation := services.NewGenerationService(registry, services.GenerationOptions{Metrics: metrics, Logger: logger})
	generation.ConfigureProviders(map[string]string{config.CredentialGroq: "gsk_test"})

	archive := services.NewArchiveService(storage.NewMemoryStorage())
	progress := services.NewProgressService()
	export, err := services.NewExportService(archive, services.PageLayout{Width: cfg.PageWidth, Height: cfg.PageHeight}, map[string]string{"stub": "Stub Model"})
	require.NoError(t, err)

	container := di.NewContainer()
	container.Register(di.ServiceConfig, cfg)
	container.Register(di.ServiceLogger, logger)
	container.Register(di.ServiceMetrics, metrics)
	container.Register(di.ServiceCatalog, cat)
	container.Register(di.ServiceCredentials, credentials)
	container.Register(di.ServiceGeneration, generation)
	container.Register(di.ServiceArchive, archive)
	container.Register(di.ServiceProgress, progress)
	container.Register(di.ServiceStudio, services.NewStudioService(generation, archive, cat, progress, cfg.DefaultProvider))
	container.Register(di.ServiceCharacter, services.NewCharacterService(archive, nil))
	container.Register(di.ServiceExport, export)
	container.Register(di.ServiceCampaign, services.NewCampaignService(generation, cat, progress, cfg.DefaultProvider))

	handler, err := NewHandler(container)
	require.NoError(t, err)
	return &testServer{router: SetupRouter(handler), handler: handler, provider: provider}
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *APIError       `json:"error"`
	RequestID string          `json:"request_id"`
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") && w.Header().Get("Content-Disposition") == "" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func (s *testServer) seed(t *testing.T) *models.Project {
	t.Helper()
	project := &models.Project{
		ID:             "p-1",
		CreatedAt:      time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC),
		Title:          "Night Shift",
		Genre:          "Noir",
		Tone:           "Dark & Gritty",
		Length:         "Short Film",
		ProviderID:     "stub",
		Screenplay:     "INT. DINER - NIGHT\n\nJASON\nCoffee.\n\nMORALES (V.O.)\nJason never slept.",
		CharacterNotes: "JASON: a cook.",
		SoundDesign:    "Neon hum.",
	}
	require.NoError(t, s.handler.ArchiveService.Save(context.Background(), project))
	return project
}

func TestHealthAndCatalog(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.Contains(t, string(env.Data), `"available_providers":1`)

	w, env = s.do(t, http.MethodGet, "/api/catalog", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var cat catalog.Catalog
	require.NoError(t, json.Unmarshal(env.Data, &cat))
	assert.Contains(t, cat.Genres, "Noir")
}

func TestCreateAndFetchProject(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(t, http.MethodPost, "/api/projects", services.WriteRequest{Title: "A heist gone wrong", Genre: "noir"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var project models.Project
	require.NoError(t, json.Unmarshal(env.Data, &project))
	assert.Equal(t, "Noir", project.Genre)
	assert.Equal(t, "stub", project.ProviderID)

	w, env = s.do(t, http.MethodGet, "/api/projects", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Projects []models.ProjectSummary `json:"projects"`
		Total    int                     `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, project.ID, list.Projects[0].ID)

	w, env = s.do(t, http.MethodGet, "/api/projects/"+project.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var fetched models.Project
	require.NoError(t, json.Unmarshal(env.Data, &fetched))
	assert.Equal(t, project.Screenplay, fetched.Screenplay)
}

func TestRewriteProject(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(t, http.MethodPost, "/api/projects/rewrite", services.RewriteRequest{Script: "JASON\nHi.", Instructions: "Make it tense"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var project models.Project
	require.NoError(t, json.Unmarshal(env.Data, &project))
	assert.Equal(t, services.RewriteTitle, project.Title)
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		setup  func()
		body   interface{}
		status int
		code   string
	}{
		{"invalid genre", nil, services.WriteRequest{Title: "x", Genre: "Opera"}, http.StatusBadRequest, ErrorValidationFailed},
		{"unknown provider", nil, services.WriteRequest{Title: "x", ProviderID: "nope"}, http.StatusServiceUnavailable, ErrorProviderUnavailable},
		{"schema failure", func() { s.provider.set(`{"screenplay":"only"}`) }, services.WriteRequest{Title: "x"}, http.StatusBadGateway, ErrorSchemaValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			w, env := s.do(t, http.MethodPost, "/api/projects", tt.body)
			assert.Equal(t, tt.status, w.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
			assert.False(t, env.Success)
		})
	}

	w, env := s.do(t, http.MethodGet, "/api/projects/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ErrorProjectNotFound, env.Error.Code)

	w, env = s.do(t, http.MethodPost, "/api/projects", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrorValidationFailed, env.Error.Code)
}

func TestCharactersAndRename(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	w, env := s.do(t, http.MethodGet, "/api/projects/p-1/characters", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"project_id":"p-1","characters":["JASON","MORALES"]}`, string(env.Data))

	w, env = s.do(t, http.MethodPost, "/api/projects/p-1/characters/rename", RenameRequest{From: "JASON", To: "marcus"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var project models.Project
	require.NoError(t, json.Unmarshal(env.Data, &project))
	assert.Contains(t, project.Screenplay, "MARCUS\nCoffee.")
	assert.Contains(t, project.Screenplay, "Marcus never slept.")

	w, env = s.do(t, http.MethodPost, "/api/projects/p-1/characters/rename", RenameRequest{From: "JASON", To: "VICTOR"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrorValidationFailed, env.Error.Code)

	w, _ = s.do(t, http.MethodPost, "/api/projects/p-1/characters/rename", map[string]string{"to": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportProject(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	w, _ := s.do(t, http.MethodGet, "/api/projects/p-1/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "night_shift_script.txt")
	assert.Contains(t, w.Body.String(), "SCREENPLAY")
	assert.Contains(t, w.Body.String(), "\f")

	w, _ = s.do(t, http.MethodGet, "/api/projects/p-1/export?format=json", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "night_shift_script.json")
	var doc models.ExportDocument
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "p-1", doc.ProjectID)

	w, env := s.do(t, http.MethodGet, "/api/projects/p-1/export?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrorExportFormatInvalid, env.Error.Code)

	w, _ = s.do(t, http.MethodGet, "/api/projects/missing/export", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateCampaign(t *testing.T) {
	s := newTestServer(t)
	s.provider.set(stubCampaign)

	w, env := s.do(t, http.MethodPost, "/api/campaigns", services.CampaignRequest{Topic: "Film launch"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var campaign models.SocialCampaign
	require.NoError(t, json.Unmarshal(env.Data, &campaign))
	assert.Equal(t, []string{"t1", "t2"}, campaign.Twitter)
}

func TestUpdateCredentials(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(t, http.MethodPut, "/api/settings/credentials", CredentialRequest{Credential: "groq", APIKey: "not-a-groq-key"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrorValidationFailed, env.Error.Code)

	w, _ = s.do(t, http.MethodPut, "/api/settings/credentials", CredentialRequest{Credential: "groq", APIKey: "gsk_live"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	stored, err := s.handler.Credentials.Get("groq")
	require.NoError(t, err)
	assert.Equal(t, "gsk_live", stored)

	w, env = s.do(t, http.MethodGet, "/api/providers", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"available":true`)
}

func TestRateLimitOnGeneration(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) { cfg.APIRateLimit = 1 })

	w, _ := s.do(t, http.MethodPost, "/api/projects", services.WriteRequest{Title: "first"})
	assert.Equal(t, http.StatusCreated, w.Code)

	w, env := s.do(t, http.MethodPost, "/api/projects", services.WriteRequest{Title: "second"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, ErrorRateLimited, env.Error.Code)

	// 读取接口不限流
	w, _ = s.do(t, http.MethodGet, "/api/projects", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestIDAndMetrics(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(requestIDHeader, "req-42")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get(requestIDHeader))

	w, env := s.do(t, http.MethodGet, "/api/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
	assert.NotEmpty(t, env.RequestID)
	assert.Contains(t, string(env.Data), "api_requests_total")
}

func TestProgressSSE(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(t, http.MethodPost, "/api/tasks", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var task struct {
		TaskID string `json:"task_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &task))

	tracker, ok := s.handler.ProgressService.GetTracker(task.TaskID)
	require.True(t, ok)
	tracker.Complete("done", "p-9")

	req := httptest.NewRequest(http.MethodGet, "/api/progress/"+task.TaskID, nil)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	body := w.Body.String()
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Contains(t, body, "event: connected")
	assert.Contains(t, body, "event: progress")
	assert.Contains(t, body, `"status":"completed"`)
	assert.Contains(t, body, `"result_id":"p-9"`)

	w, env = s.do(t, http.MethodGet, "/api/progress/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ErrorTaskNotFound, env.Error.Code)
}

func TestTaskWebSocket(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	tracker := s.handler.ProgressService.CreateTracker("ws-task")
	tracker.UpdateProgress(30, "working")

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/tasks/ws-task"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var msg struct {
		Type   string                `json:"type"`
		Update models.ProgressUpdate `json:"update"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "progress", msg.Type)
	assert.Equal(t, 30, msg.Update.Progress)

	tracker.Complete("done", "p-1")
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, models.TaskStatusCompleted, msg.Update.Status)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "任务结束后服务端应关闭连接: %v", err)
}

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(2)
	now := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "不同客户端独立计数")

	now = now.Add(time.Minute)
	assert.True(t, rl.Allow("a"))

	assert.True(t, NewRateLimiter(0).Allow("a"))
}
