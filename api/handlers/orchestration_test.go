package handlers

import (
	"net/http"
	"testing"

	"github.com/agorahq/agora/api"
	"github.com/agorahq/agora/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrchestrationMux(provider *stubProvider) *http.ServeMux {
	registry := newTestRegistry(provider)
	manager := newTestOrchManager(provider, registry)
	mux := http.NewServeMux()
	NewOrchestrationHandler(manager, registry, 2, nil).Register(mux)
	return mux
}

func TestOrchestrationHandler_Start(t *testing.T) {
	mux := newOrchestrationMux(newStubProvider())

	rec := postJSON(t, mux, "/api/v1/orchestration/start", api.OrchestrationStartRequest{
		SessionID:  "design-1",
		Task:       "design a rate limiter",
		AgentTypes: []string{"junior_engineer", "product_manager"},
		Mode:       "round_robin",
		Rounds:     1,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeEnvelope(t, rec)
	require.True(t, resp.Success)
	data := dataMap(t, resp)
	assert.Equal(t, "design-1", data["session_id"])
	assert.Equal(t, "round_robin", data["mode"])

	responses := data["responses"].([]any)
	require.Len(t, responses, 2)
	first := responses[0].(map[string]any)
	assert.Equal(t, "junior_engineer", first["agent_type"])
	assert.EqualValues(t, 1, first["round"])
	assert.Equal(t, "reply-1", first["response"])

	summary := data["summary"].(map[string]any)
	assert.EqualValues(t, 1, summary["rounds_run"])
	// 任务消息 + 两次发言
	assert.EqualValues(t, 3, summary["total_messages"])
}

func TestOrchestrationHandler_StartDefaults(t *testing.T) {
	mux := newOrchestrationMux(newStubProvider())

	// 不带 session_id/mode/rounds：生成会话 ID，默认 round_robin 两轮
	rec := postJSON(t, mux, "/api/v1/orchestration/start", api.OrchestrationStartRequest{
		Task:       "plan the sprint",
		AgentTypes: []string{"junior_engineer", "product_manager"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	data := dataMap(t, decodeEnvelope(t, rec))
	assert.NotEmpty(t, data["session_id"])
	assert.Equal(t, "round_robin", data["mode"])
	assert.EqualValues(t, 2, data["rounds"])
	assert.Len(t, data["responses"].([]any), 4)
}

func TestOrchestrationHandler_StartValidation(t *testing.T) {
	tests := []struct {
		name       string
		req        api.OrchestrationStartRequest
		wantStatus int
		wantCode   types.ErrorCode
	}{
		{
			name:       "missing task",
			req:        api.OrchestrationStartRequest{AgentTypes: []string{"junior_engineer", "product_manager"}},
			wantStatus: http.StatusBadRequest,
			wantCode:   types.ErrInvalidRequest,
		},
		{
			name:       "single agent",
			req:        api.OrchestrationStartRequest{Task: "t", AgentTypes: []string{"junior_engineer"}},
			wantStatus: http.StatusBadRequest,
			wantCode:   types.ErrNotEnoughAgents,
		},
		{
			name:       "unknown agent type",
			req:        api.OrchestrationStartRequest{Task: "t", AgentTypes: []string{"junior_engineer", "architect"}},
			wantStatus: http.StatusNotFound,
			wantCode:   types.ErrAgentTypeUnknown,
		},
		{
			name: "invalid mode",
			req: api.OrchestrationStartRequest{
				Task: "t", AgentTypes: []string{"junior_engineer", "product_manager"}, Mode: "parallel",
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   types.ErrInvalidMode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newOrchestrationMux(newStubProvider())
			rec := postJSON(t, mux, "/api/v1/orchestration/start", tt.req)
			require.Equal(t, tt.wantStatus, rec.Code)

			resp := decodeEnvelope(t, rec)
			require.NotNil(t, resp.Error)
			assert.Equal(t, string(tt.wantCode), resp.Error.Code)
		})
	}
}

func TestOrchestrationHandler_Continue(t *testing.T) {
	mux := newOrchestrationMux(newStubProvider())

	rec := postJSON(t, mux, "/api/v1/orchestration/start", api.OrchestrationStartRequest{
		SessionID:  "s1",
		Task:       "review the schema",
		AgentTypes: []string{"junior_engineer", "product_manager"},
		Rounds:     1,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, mux, "/api/v1/orchestration/continue/s1?rounds=1", struct{}{})
	require.Equal(t, http.StatusOK, rec.Code)

	data := dataMap(t, decodeEnvelope(t, rec))
	responses := data["responses"].([]any)
	require.Len(t, responses, 2)
	// 继续的发言在第二轮
	first := responses[0].(map[string]any)
	assert.EqualValues(t, 2, first["round"])

	summary := data["summary"].(map[string]any)
	assert.EqualValues(t, 2, summary["rounds_run"])
}

func TestOrchestrationHandler_ContinueErrors(t *testing.T) {
	mux := newOrchestrationMux(newStubProvider())

	rec := postJSON(t, mux, "/api/v1/orchestration/continue/ghost", struct{}{})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// 先创建会话再试非法 rounds
	postJSON(t, mux, "/api/v1/orchestration/start", api.OrchestrationStartRequest{
		SessionID: "s1", Task: "t",
		AgentTypes: []string{"junior_engineer", "product_manager"}, Rounds: 1,
	})
	rec = postJSON(t, mux, "/api/v1/orchestration/continue/s1?rounds=zero", struct{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrchestrationHandler_History(t *testing.T) {
	mux := newOrchestrationMux(newStubProvider())

	postJSON(t, mux, "/api/v1/orchestration/start", api.OrchestrationStartRequest{
		SessionID: "s1", Task: "draft the RFC",
		AgentTypes: []string{"junior_engineer", "product_manager"}, Rounds: 1,
	})

	rec := do(t, mux, http.MethodGet, "/api/v1/orchestration/history/s1")
	require.Equal(t, http.StatusOK, rec.Code)

	data := dataMap(t, decodeEnvelope(t, rec))
	assert.EqualValues(t, 3, data["count"])
	messages := data["messages"].([]any)
	first := messages[0].(map[string]any)
	assert.Equal(t, "user", first["role"])
	assert.Contains(t, first["content"], "[TASK] draft the RFC")

	rec = do(t, mux, http.MethodGet, "/api/v1/orchestration/history/ghost")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrchestrationHandler_SessionsAndDelete(t *testing.T) {
	mux := newOrchestrationMux(newStubProvider())

	postJSON(t, mux, "/api/v1/orchestration/start", api.OrchestrationStartRequest{
		SessionID: "s1", Task: "t",
		AgentTypes: []string{"junior_engineer", "product_manager"}, Rounds: 1,
	})

	rec := do(t, mux, http.MethodGet, "/api/v1/orchestration/sessions")
	require.Equal(t, http.StatusOK, rec.Code)
	data := dataMap(t, decodeEnvelope(t, rec))
	assert.Equal(t, []any{"s1"}, data["sessions"])

	rec = do(t, mux, http.MethodDelete, "/api/v1/orchestration/s1")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, mux, http.MethodDelete, "/api/v1/orchestration/s1")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, mux, http.MethodGet, "/api/v1/orchestration/sessions")
	data = dataMap(t, decodeEnvelope(t, rec))
	assert.EqualValues(t, 0, data["count"])
}
