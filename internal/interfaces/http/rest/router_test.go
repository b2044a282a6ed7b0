package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"channelflow-backend/internal/config"
	"channelflow-backend/internal/domain"
	"channelflow-backend/internal/flow"
	"channelflow-backend/internal/observability"
	"channelflow-backend/internal/runner"
	"channelflow-backend/internal/service/triage"
	appErrors "channelflow-backend/pkg/errors"
)

// stubService implements triage.Service with overridable hooks so router
// tests can exercise status mapping without a real pipeline.
type stubService struct {
	process   func(req triage.ProcessRequest) (*triage.ProcessResult, error)
	listItems func(channelID, category string) ([]domain.Item, error)
	update    func(channelID, category, itemID string, updates map[string]any) (*domain.Channel, error)
	flows     []*flow.Document
	getFlow   func(id string) (*flow.Document, error)
	validate  func(doc *flow.Document) error
	runFlow   func(id string, tweaks map[string]map[string]any) (*runner.Result, error)
	listRuns  func(flowID string, limit int) ([]domain.RunRecord, error)
	getRun    func(flowID, runID string) (*domain.RunRecord, error)
	query     func(question string) (*triage.KnowledgeAnswer, error)
}

func (s *stubService) ProcessMessage(_ context.Context, req triage.ProcessRequest) (*triage.ProcessResult, error) {
	if s.process != nil {
		return s.process(req)
	}
	return &triage.ProcessResult{RunID: "01TESTRUN", Result: map[string]any{"status": 0}}, nil
}

func (s *stubService) ListItems(_ context.Context, channelID, category string) ([]domain.Item, error) {
	if s.listItems != nil {
		return s.listItems(channelID, category)
	}
	return nil, nil
}

func (s *stubService) UpdateItem(_ context.Context, channelID, category, itemID string, updates map[string]any) (*domain.Channel, error) {
	if s.update != nil {
		return s.update(channelID, category, itemID, updates)
	}
	return &domain.Channel{ChannelID: channelID}, nil
}

func (s *stubService) Flows() []*flow.Document {
	if s.flows != nil {
		return s.flows
	}
	return flow.Builtins()
}

func (s *stubService) GetFlow(id string) (*flow.Document, error) {
	if s.getFlow != nil {
		return s.getFlow(id)
	}
	return nil, appErrors.NewNotFound("flow not found: " + id)
}

func (s *stubService) ValidateDocument(doc *flow.Document) error {
	if s.validate != nil {
		return s.validate(doc)
	}
	return nil
}

func (s *stubService) RunFlow(_ context.Context, id string, tweaks map[string]map[string]any) (*runner.Result, error) {
	if s.runFlow != nil {
		return s.runFlow(id, tweaks)
	}
	return &runner.Result{RunID: "01TESTRUN", FlowID: id}, nil
}

func (s *stubService) ListRuns(_ context.Context, flowID string, limit int) ([]domain.RunRecord, error) {
	if s.listRuns != nil {
		return s.listRuns(flowID, limit)
	}
	return nil, nil
}

func (s *stubService) GetRun(_ context.Context, flowID, runID string) (*domain.RunRecord, error) {
	if s.getRun != nil {
		return s.getRun(flowID, runID)
	}
	return nil, appErrors.NewNotFound("run not found: " + runID)
}

func (s *stubService) QueryKnowledge(_ context.Context, question string) (*triage.KnowledgeAnswer, error) {
	if s.query != nil {
		return s.query(question)
	}
	return &triage.KnowledgeAnswer{RunID: "01TESTRUN", Answer: "stub answer"}, nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type stubLLM struct{ ok bool }

func (l stubLLM) IsAvailable() bool { return l.ok }

func newTestHandler(svc *stubService, mutate func(cfg *config.Config)) http.Handler {
	cfg := &config.Config{Environment: "test"}
	if mutate != nil {
		mutate(cfg)
	}
	return NewRouter(svc, nil, nil, cfg, nil, zap.NewNop()).Setup()
}

func doRequest(t *testing.T, handler http.Handler, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthEndpoint(t *testing.T) {
	handler := newTestHandler(&stubService{}, nil)

	rec := doRequest(t, handler, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestReadyEndpoint(t *testing.T) {
	cfg := &config.Config{Environment: "test"}

	t.Run("all checks passing", func(t *testing.T) {
		handler := NewRouter(&stubService{}, stubPinger{}, stubLLM{ok: true}, cfg, nil, zap.NewNop()).Setup()

		rec := doRequest(t, handler, http.MethodGet, "/ready", "", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "ready", body["status"])
		checks := body["checks"].(map[string]any)
		assert.Equal(t, "ok", checks["store"])
		assert.Equal(t, "ok", checks["llm"])
	})

	t.Run("store unreachable", func(t *testing.T) {
		handler := NewRouter(&stubService{}, stubPinger{err: errors.New("connection refused")}, stubLLM{ok: true}, cfg, nil, zap.NewNop()).Setup()

		rec := doRequest(t, handler, http.MethodGet, "/ready", "", nil)

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "degraded", body["status"])
		checks := body["checks"].(map[string]any)
		assert.Contains(t, checks["store"], "connection refused")
	})

	t.Run("llm unavailable", func(t *testing.T) {
		handler := NewRouter(&stubService{}, stubPinger{}, stubLLM{ok: false}, cfg, nil, zap.NewNop()).Setup()

		rec := doRequest(t, handler, http.MethodGet, "/ready", "", nil)

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "degraded", body["status"])
	})

	t.Run("no checks configured", func(t *testing.T) {
		handler := newTestHandler(&stubService{}, nil)

		rec := doRequest(t, handler, http.MethodGet, "/ready", "", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ready", decodeBody(t, rec)["status"])
	})
}

func TestProcessMessageEndpoint(t *testing.T) {
	t.Run("returns run result", func(t *testing.T) {
		var got triage.ProcessRequest
		svc := &stubService{process: func(req triage.ProcessRequest) (*triage.ProcessResult, error) {
			got = req
			return &triage.ProcessResult{
				RunID:    "01HRUN",
				Result:   map[string]any{"message": "build is broken", "status": 0},
				IsUpdate: false,
				DBResult: map[string]any{"channel_id": "team-a"},
			}, nil
		}}
		handler := newTestHandler(svc, nil)

		rec := doRequest(t, handler, http.MethodPost, "/api/v1/messages",
			`{"channel_id":"team-a","category":"bugs","message":"build is broken"}`, nil)

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "01HRUN", body["run_id"])
		assert.Equal(t, false, body["is_update"])
		assert.Equal(t, "team-a", got.ChannelID)
		assert.Equal(t, "bugs", got.Category)
	})

	t.Run("malformed body", func(t *testing.T) {
		handler := newTestHandler(&stubService{}, nil)

		rec := doRequest(t, handler, http.MethodPost, "/api/v1/messages", `{"channel_id":`, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeBody(t, rec)["error"], "invalid request body")
	})

	t.Run("missing channel_id", func(t *testing.T) {
		handler := newTestHandler(&stubService{}, nil)

		rec := doRequest(t, handler, http.MethodPost, "/api/v1/messages",
			`{"category":"bugs","message":"hello"}`, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeBody(t, rec)["error"], "channel_id is required")
	})

	t.Run("conflict maps to 409", func(t *testing.T) {
		svc := &stubService{process: func(triage.ProcessRequest) (*triage.ProcessResult, error) {
			return nil, appErrors.NewConflict("channel version changed")
		}}
		handler := newTestHandler(svc, nil)

		rec := doRequest(t, handler, http.MethodPost, "/api/v1/messages",
			`{"channel_id":"team-a","category":"bugs","message":"hello"}`, nil)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, decodeBody(t, rec)["error"], "channel version changed")
	})

	t.Run("internal errors are not leaked", func(t *testing.T) {
		svc := &stubService{process: func(triage.ProcessRequest) (*triage.ProcessResult, error) {
			return nil, errors.New("dynamodb: table missing")
		}}
		handler := newTestHandler(svc, nil)

		rec := doRequest(t, handler, http.MethodPost, "/api/v1/messages",
			`{"channel_id":"team-a","category":"bugs","message":"hello"}`, nil)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decodeBody(t, rec)
		assert.NotContains(t, body["error"], "dynamodb")
	})
}

func TestAPIKeyProtection(t *testing.T) {
	withKey := func(cfg *config.Config) { cfg.APIKey = "secret-key" }
	payload := `{"channel_id":"team-a","category":"bugs","message":"hello"}`

	t.Run("missing key rejected", func(t *testing.T) {
		handler := newTestHandler(&stubService{}, withKey)

		rec := doRequest(t, handler, http.MethodPost, "/api/v1/messages", payload, nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong key rejected", func(t *testing.T) {
		handler := newTestHandler(&stubService{}, withKey)

		rec := doRequest(t, handler, http.MethodPost, "/api/v1/messages", payload,
			map[string]string{"X-API-Key": "nope"})

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("header key accepted", func(t *testing.T) {
		handler := newTestHandler(&stubService{}, withKey)

		rec := doRequest(t, handler, http.MethodPost, "/api/v1/messages", payload,
			map[string]string{"X-API-Key": "secret-key"})

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("bearer token accepted", func(t *testing.T) {
		handler := newTestHandler(&stubService{}, withKey)

		rec := doRequest(t, handler, http.MethodPost, "/api/v1/messages", payload,
			map[string]string{"Authorization": "Bearer secret-key"})

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("health stays open", func(t *testing.T) {
		handler := newTestHandler(&stubService{}, withKey)

		rec := doRequest(t, handler, http.MethodGet, "/health", "", nil)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestItemEndpoints(t *testing.T) {
	t.Run("list items", func(t *testing.T) {
		svc := &stubService{listItems: func(channelID, category string) ([]domain.Item, error) {
			assert.Equal(t, "team-a", channelID)
			assert.Equal(t, "bugs", category)
			return []domain.Item{{ID: "bugs_1", Message: "login broken", Status: domain.StatusNew}}, nil
		}}
		handler := newTestHandler(svc, nil)

		rec := doRequest(t, handler, http.MethodGet, "/api/v1/channels/team-a/items?category=bugs", "", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "team-a", body["channel_id"])
		assert.Equal(t, "BUGS", body["category"])
		items := body["items"].([]any)
		require.Len(t, items, 1)
		assert.Equal(t, "bugs_1", items[0].(map[string]any)["id"])
	})

	t.Run("unknown channel maps to 404", func(t *testing.T) {
		svc := &stubService{listItems: func(string, string) ([]domain.Item, error) {
			return nil, appErrors.NewNotFound("channel not found")
		}}
		handler := newTestHandler(svc, nil)

		rec := doRequest(t, handler, http.MethodGet, "/api/v1/channels/ghost/items?category=bugs", "", nil)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("update item", func(t *testing.T) {
		svc := &stubService{update: func(channelID, category, itemID string, updates map[string]any) (*domain.Channel, error) {
			assert.Equal(t, "team-a", channelID)
			assert.Equal(t, "bugs_1", itemID)
			assert.Equal(t, float64(2), updates["status"])
			return &domain.Channel{
				ChannelID: channelID,
				Items:     []domain.Item{{ID: itemID, Message: "login broken", Status: domain.StatusResolved}},
				Version:   3,
			}, nil
		}}
		handler := newTestHandler(svc, nil)

		rec := doRequest(t, handler, http.MethodPatch, "/api/v1/channels/team-a/items/bugs_1",
			`{"category":"bugs","updates":{"status":2}}`, nil)

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, float64(3), body["version"])
	})

	t.Run("empty updates rejected", func(t *testing.T) {
		handler := newTestHandler(&stubService{}, nil)

		rec := doRequest(t, handler, http.MethodPatch, "/api/v1/channels/team-a/items/bugs_1",
			`{"category":"bugs","updates":{}}`, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestFlowEndpoints(t *testing.T) {
	t.Run("list flows", func(t *testing.T) {
		handler := newTestHandler(&stubService{}, nil)

		rec := doRequest(t, handler, http.MethodGet, "/api/v1/flows", "", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		flows := body["flows"].([]any)
		require.Len(t, flows, 2)
		ids := []string{
			flows[0].(map[string]any)["id"].(string),
			flows[1].(map[string]any)["id"].(string),
		}
		assert.Contains(t, ids, flow.MessageProcessingFlowID)
		assert.Contains(t, ids, flow.KnowledgeQueryFlowID)
	})

	t.Run("get flow", func(t *testing.T) {
		svc := &stubService{getFlow: func(id string) (*flow.Document, error) {
			require.Equal(t, flow.MessageProcessingFlowID, id)
			return flow.BuiltinMessageProcessing(), nil
		}}
		handler := newTestHandler(svc, nil)

		rec := doRequest(t, handler, http.MethodGet, "/api/v1/flows/"+flow.MessageProcessingFlowID, "", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, flow.MessageProcessingFlowID, body["id"])
		assert.NotEmpty(t, body["nodes"])
	})

	t.Run("get unknown flow", func(t *testing.T) {
		handler := newTestHandler(&stubService{}, nil)

		rec := doRequest(t, handler, http.MethodGet, "/api/v1/flows/nope", "", nil)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("validate good document", func(t *testing.T) {
		doc, err := json.Marshal(flow.BuiltinKnowledgeQuery())
		require.NoError(t, err)
		handler := newTestHandler(&stubService{}, nil)

		rec := doRequest(t, handler, http.MethodPost, "/api/v1/flows/validate", string(doc), nil)

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, true, body["valid"])
	})

	t.Run("validate bad document", func(t *testing.T) {
		svc := &stubService{validate: func(doc *flow.Document) error {
			return appErrors.NewValidation(`node "n1" has unknown component type "NoSuchComponent"`)
		}}
		handler := newTestHandler(svc, nil)

		rec := doRequest(t, handler, http.MethodPost, "/api/v1/flows/validate",
			`{"id":"x","name":"X","nodes":[{"id":"n1","type":"NoSuchComponent"}],"edges":[]}`, nil)

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, false, body["valid"])
		assert.Contains(t, body["error"], "unknown component type")
	})

	t.Run("validate unparseable body", func(t *testing.T) {
		handler := newTestHandler(&stubService{}, nil)

		rec := doRequest(t, handler, http.MethodPost, "/api/v1/flows/validate", `not json`, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("run flow with tweaks", func(t *testing.T) {
		var gotTweaks map[string]map[string]any
		svc := &stubService{runFlow: func(id string, tweaks map[string]map[string]any) (*runner.Result, error) {
			gotTweaks = tweaks
			return &runner.Result{RunID: "01HRUN", FlowID: id}, nil
		}}
		handler := newTestHandler(svc, nil)

		rec := doRequest(t, handler, http.MethodPost, "/api/v1/flows/"+flow.KnowledgeQueryFlowID+"/run",
			`{"tweaks":{"knowledge-1":{"question":"where is the runbook?"}}}`, nil)

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "01HRUN", body["run_id"])
		require.NotNil(t, gotTweaks)
		assert.Equal(t, "where is the runbook?", gotTweaks["knowledge-1"]["question"])
	})

	t.Run("run flow with empty body", func(t *testing.T) {
		handler := newTestHandler(&stubService{}, nil)

		rec := doRequest(t, handler, http.MethodPost, "/api/v1/flows/"+flow.MessageProcessingFlowID+"/run", "", nil)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("list runs", func(t *testing.T) {
		svc := &stubService{listRuns: func(flowID string, limit int) ([]domain.RunRecord, error) {
			assert.Equal(t, 5, limit)
			return []domain.RunRecord{{FlowID: flowID, RunID: "01B", Status: domain.RunSucceeded}}, nil
		}}
		handler := newTestHandler(svc, nil)

		rec := doRequest(t, handler, http.MethodGet, "/api/v1/flows/f1/runs?limit=5", "", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "f1", body["flow_id"])
		require.Len(t, body["runs"].([]any), 1)
	})

	t.Run("list runs with bad limit", func(t *testing.T) {
		handler := newTestHandler(&stubService{}, nil)

		rec := doRequest(t, handler, http.MethodGet, "/api/v1/flows/f1/runs?limit=zero", "", nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("get run", func(t *testing.T) {
		svc := &stubService{getRun: func(flowID, runID string) (*domain.RunRecord, error) {
			return &domain.RunRecord{FlowID: flowID, RunID: runID, Status: domain.RunSucceeded}, nil
		}}
		handler := newTestHandler(svc, nil)

		rec := doRequest(t, handler, http.MethodGet, "/api/v1/flows/f1/runs/01B", "", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "01B", body["run_id"])
		assert.Equal(t, domain.RunSucceeded, body["status"])
	})

	t.Run("get missing run", func(t *testing.T) {
		handler := newTestHandler(&stubService{}, nil)

		rec := doRequest(t, handler, http.MethodGet, "/api/v1/flows/f1/runs/nope", "", nil)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestKnowledgeEndpoint(t *testing.T) {
	t.Run("answers question", func(t *testing.T) {
		svc := &stubService{query: func(question string) (*triage.KnowledgeAnswer, error) {
			assert.Equal(t, "where is the runbook?", question)
			return &triage.KnowledgeAnswer{
				RunID:   "01HRUN",
				Answer:  "In the wiki.",
				Sources: []map[string]any{{"text": "Runbook lives in the wiki."}},
			}, nil
		}}
		handler := newTestHandler(svc, nil)

		rec := doRequest(t, handler, http.MethodPost, "/api/v1/knowledge/query",
			`{"question":"where is the runbook?"}`, nil)

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "In the wiki.", body["answer"])
		require.Len(t, body["sources"].([]any), 1)
	})

	t.Run("empty question rejected", func(t *testing.T) {
		handler := newTestHandler(&stubService{}, nil)

		rec := doRequest(t, handler, http.MethodPost, "/api/v1/knowledge/query", `{"question":""}`, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeBody(t, rec)["error"], "question is required")
	})
}

func TestMetricsEndpoint(t *testing.T) {
	observability.ResetForTesting()
	collector := observability.NewCollector("channelflow")
	cfg := &config.Config{Environment: "test"}
	handler := NewRouter(&stubService{}, nil, nil, cfg, collector, zap.NewNop()).Setup()

	doRequest(t, handler, http.MethodGet, "/health", "", nil)
	rec := doRequest(t, handler, http.MethodGet, "/metrics", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "channelflow_http_requests_total")
}

func TestSwaggerEndpoints(t *testing.T) {
	handler := newTestHandler(&stubService{}, nil)

	t.Run("spec", func(t *testing.T) {
		rec := doRequest(t, handler, http.MethodGet, "/api/swagger.yaml", "", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "yaml")
		assert.Contains(t, rec.Body.String(), "openapi:")
	})

	t.Run("ui", func(t *testing.T) {
		rec := doRequest(t, handler, http.MethodGet, "/api/docs", "", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	})
}
