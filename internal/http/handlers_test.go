package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/inventoryd/internal/copilot"
	"github.com/fyrsmithlabs/inventoryd/internal/equipment"
	"github.com/fyrsmithlabs/inventoryd/internal/search"
)

// echoModel answers every chat with a fixed reply, or fails when err is set.
type echoModel struct {
	reply string
	err   error
}

func (m *echoModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: m.reply}},
	}, nil
}

func (m *echoModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", errors.New("not implemented")
}

// fixedProvider embeds everything to the same vector, so any two vectorized
// records are perfect matches for any query.
type fixedProvider struct{}

func (fixedProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (fixedProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

type fixture struct {
	server *Server
	store  *equipment.MemoryStore
	model  *echoModel
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := equipment.NewMemoryStore(equipment.MemoryStoreConfig{}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	svc, err := equipment.NewService(store, zap.NewNop())
	require.NoError(t, err)

	engine, err := search.NewLinearEngine(store, fixedProvider{}, zap.NewNop())
	require.NoError(t, err)

	model := &echoModel{reply: "Hello from the copilot."}
	registry := copilot.NewRegistry(zap.NewNop())
	tool, err := copilot.NewCreateEquipmentTool(svc, zap.NewNop())
	require.NoError(t, err)
	registry.Register(tool)

	orch, err := copilot.NewOrchestrator(model, registry, copilot.OrchestratorConfig{}, zap.NewNop())
	require.NoError(t, err)

	server, err := NewServer(Config{}, svc, engine, orch, copilot.NewSessions(), zap.NewNop())
	require.NoError(t, err)

	return &fixture{server: server, store: store, model: model}
}

func (f *fixture) do(t *testing.T, method, path, tenantID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tenantID != "" {
		req.Header.Set(TenantHeader, tenantID)
	}

	rec := httptest.NewRecorder()
	f.server.Echo().ServeHTTP(rec, req)
	return rec
}

func decodeRecord(t *testing.T, rec *httptest.ResponseRecorder) equipment.Record {
	t.Helper()
	var out equipment.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEquipmentCRUD_RequiresTenantHeader(t *testing.T) {
	f := newFixture(t)

	cases := []struct{ method, path string }{
		{http.MethodGet, "/api/v1/equipment"},
		{http.MethodPost, "/api/v1/equipment"},
		{http.MethodGet, "/api/v1/equipment/some-id"},
		{http.MethodPut, "/api/v1/equipment/some-id"},
		{http.MethodDelete, "/api/v1/equipment/some-id"},
		{http.MethodGet, "/api/v1/equipment/search?query=forklift"},
	}

	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := f.do(t, tc.method, tc.path, "", map[string]string{"name": "x"})
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "Tenant ID is required")
		})
	}
}

func TestCreateEquipment(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/equipment", "tenant-a", map[string]string{
		"name":        "Forklift FL-200",
		"description": "electric forklift",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	created := decodeRecord(t, rec)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "tenant-a", created.TenantID)
	assert.Equal(t, equipment.StatusAvailable, created.Status)
	assert.False(t, created.PurchaseDate.IsZero())
}

func TestGetEquipment(t *testing.T) {
	f := newFixture(t)

	created := decodeRecord(t, f.do(t, http.MethodPost, "/api/v1/equipment", "tenant-a", map[string]string{
		"name": "Forklift",
	}))

	t.Run("found", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/equipment/"+created.ID, "tenant-a", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		got := decodeRecord(t, rec)
		assert.Equal(t, created.ID, got.ID)
	})

	t.Run("not found", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/equipment/nonexistent", "tenant-a", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("wrong tenant", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/equipment/"+created.ID, "tenant-b", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestListEquipment(t *testing.T) {
	f := newFixture(t)

	for _, name := range []string{"Forklift", "Crane"} {
		f.do(t, http.MethodPost, "/api/v1/equipment", "tenant-a", map[string]string{"name": name})
	}
	f.do(t, http.MethodPost, "/api/v1/equipment", "tenant-b", map[string]string{"name": "Drill"})

	rec := f.do(t, http.MethodGet, "/api/v1/equipment", "tenant-a", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var records []equipment.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	assert.Len(t, records, 2)
}

func TestUpdateEquipment(t *testing.T) {
	f := newFixture(t)

	created := decodeRecord(t, f.do(t, http.MethodPost, "/api/v1/equipment", "tenant-a", map[string]string{
		"name": "Forklift",
	}))

	t.Run("success", func(t *testing.T) {
		rec := f.do(t, http.MethodPut, "/api/v1/equipment/"+created.ID, "tenant-a", map[string]string{
			"name":   "Forklift",
			"status": "In Repair",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		updated := decodeRecord(t, rec)
		assert.Equal(t, "In Repair", updated.Status)
	})

	t.Run("id mismatch is a client error", func(t *testing.T) {
		rec := f.do(t, http.MethodPut, "/api/v1/equipment/"+created.ID, "tenant-a", map[string]string{
			"id":   "different-id",
			"name": "Forklift",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("tenant mismatch is a client error", func(t *testing.T) {
		rec := f.do(t, http.MethodPut, "/api/v1/equipment/"+created.ID, "tenant-a", map[string]string{
			"tenantId": "tenant-b",
			"name":     "Forklift",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDeleteEquipment(t *testing.T) {
	f := newFixture(t)

	created := decodeRecord(t, f.do(t, http.MethodPost, "/api/v1/equipment", "tenant-a", map[string]string{
		"name": "Forklift",
	}))

	rec := f.do(t, http.MethodDelete, "/api/v1/equipment/"+created.ID, "tenant-a", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/v1/equipment/"+created.ID, "tenant-a", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearchEquipment(t *testing.T) {
	f := newFixture(t)

	t.Run("query required", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/equipment/search", "tenant-a", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "query is required")
	})

	t.Run("returns vectorized matches only", func(t *testing.T) {
		created := decodeRecord(t, f.do(t, http.MethodPost, "/api/v1/equipment", "tenant-a", map[string]string{
			"name":        "Forklift",
			"description": "electric forklift",
		}))

		// Not yet vectorized, so no hits.
		rec := f.do(t, http.MethodGet, "/api/v1/equipment/search?query=forklift", "tenant-a", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var results []search.Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
		assert.Empty(t, results)

		// Enrich the stored record directly; the provider embeds everything
		// identically so it becomes a perfect match.
		stored, err := f.store.Get(context.Background(), "tenant-a", created.ID)
		require.NoError(t, err)
		stored.Embedding = []float32{1, 0, 0}
		stored.SearchableText = stored.EmbeddingText()
		require.NoError(t, f.store.Put(context.Background(), stored))

		rec = f.do(t, http.MethodGet, "/api/v1/equipment/search?query=forklift", "tenant-a", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
		require.Len(t, results, 1)
		assert.Equal(t, created.ID, results[0].ID)
		assert.InDelta(t, 1.0, float64(results[0].SimilarityScore), 1e-6)
	})
}

func TestChat(t *testing.T) {
	f := newFixture(t)

	t.Run("success", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/v1/chat", "", ChatRequest{
			Message:  "hello",
			TenantID: "tenant-a",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp ChatResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, "Hello from the copilot.", resp.Message)
	})

	t.Run("empty message", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/v1/chat", "", ChatRequest{TenantID: "tenant-a"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Message cannot be empty")
	})

	t.Run("missing tenant", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/v1/chat", "", ChatRequest{Message: "hello"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "TenantId cannot be empty")
	})

	t.Run("model failure yields error envelope", func(t *testing.T) {
		f.model.err = fmt.Errorf("connection refused")
		defer func() { f.model.err = nil }()

		rec := f.do(t, http.MethodPost, "/api/v1/chat", "", ChatRequest{
			Message:  "hello",
			TenantID: "tenant-a",
		})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		var resp ChatResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		assert.Equal(t, "An error occurred while processing your request.", resp.Message)
	})
}

func TestChatClear(t *testing.T) {
	f := newFixture(t)

	// Seed some conversation state.
	f.do(t, http.MethodPost, "/api/v1/chat", "", ChatRequest{Message: "hello", TenantID: "tenant-a"})

	rec := f.do(t, http.MethodPost, "/api/v1/chat/clear", "", ClearRequest{TenantID: "tenant-a"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Conversation cleared.", resp.Message)

	t.Run("missing tenant", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/v1/chat/clear", "", ClearRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestNewServer_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := NewServer(Config{}, nil, f.server.engine, f.server.orchestrator, f.server.sessions, zap.NewNop())
	assert.Error(t, err)

	_, err = NewServer(Config{}, f.server.equipment, f.server.engine, f.server.orchestrator, f.server.sessions, nil)
	assert.Error(t, err)
}
