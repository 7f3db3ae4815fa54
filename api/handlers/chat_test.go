package handlers

import (
	"net/http"
	"testing"

	"github.com/agorahq/agora/api"
	"github.com/agorahq/agora/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChatMux(provider *stubProvider) *http.ServeMux {
	mux := http.NewServeMux()
	NewChatHandler(newTestRegistry(provider), nil, nil).Register(mux)
	return mux
}

func TestChatHandler_Chat(t *testing.T) {
	mux := newChatMux(newStubProvider())

	rec := postJSON(t, mux, "/api/v1/chats", api.ChatRequest{
		AgentType: "junior_engineer",
		Message:   "how do we shard the cache?",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeEnvelope(t, rec)
	require.True(t, resp.Success)
	data := dataMap(t, resp)
	assert.Equal(t, DefaultSessionID, data["session_id"])
	assert.Equal(t, "junior_engineer", data["agent_type"])
	assert.Equal(t, "Junior Engineer", data["role"])
	assert.Equal(t, "reply-1", data["response"])
}

func TestChatHandler_Validation(t *testing.T) {
	tests := []struct {
		name       string
		req        api.ChatRequest
		wantStatus int
		wantCode   types.ErrorCode
	}{
		{
			name:       "missing message",
			req:        api.ChatRequest{AgentType: "junior_engineer"},
			wantStatus: http.StatusBadRequest,
			wantCode:   types.ErrInvalidRequest,
		},
		{
			name:       "missing agent type",
			req:        api.ChatRequest{Message: "hi"},
			wantStatus: http.StatusBadRequest,
			wantCode:   types.ErrInvalidRequest,
		},
		{
			name:       "unknown agent type",
			req:        api.ChatRequest{AgentType: "architect", Message: "hi"},
			wantStatus: http.StatusNotFound,
			wantCode:   types.ErrAgentTypeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newChatMux(newStubProvider())
			rec := postJSON(t, mux, "/api/v1/chats", tt.req)
			require.Equal(t, tt.wantStatus, rec.Code)

			resp := decodeEnvelope(t, rec)
			require.NotNil(t, resp.Error)
			assert.Equal(t, string(tt.wantCode), resp.Error.Code)
		})
	}
}

func TestChatHandler_HistoryRoundTrip(t *testing.T) {
	mux := newChatMux(newStubProvider())

	rec := postJSON(t, mux, "/api/v1/chats", api.ChatRequest{
		SessionID: "s1",
		AgentType: "junior_engineer",
		Message:   "first question",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, mux, http.MethodGet, "/api/v1/chats/s1/history?agent_type=junior_engineer")
	require.Equal(t, http.StatusOK, rec.Code)

	data := dataMap(t, decodeEnvelope(t, rec))
	assert.EqualValues(t, 2, data["count"]) // user + assistant
	messages := data["messages"].([]any)
	first := messages[0].(map[string]any)
	assert.Equal(t, "user", first["role"])
	assert.Equal(t, "first question", first["content"])
}

func TestChatHandler_HistoryErrors(t *testing.T) {
	mux := newChatMux(newStubProvider())

	// 会话不存在
	rec := do(t, mux, http.MethodGet, "/api/v1/chats/ghost/history?agent_type=junior_engineer")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// 缺少 agent_type
	rec = do(t, mux, http.MethodGet, "/api/v1/chats/ghost/history")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// 未知 agent_type
	rec = do(t, mux, http.MethodGet, "/api/v1/chats/ghost/history?agent_type=architect")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.Equal(t, string(types.ErrAgentTypeUnknown), resp.Error.Code)
}

func TestChatHandler_ResetClearsHistory(t *testing.T) {
	mux := newChatMux(newStubProvider())

	rec := postJSON(t, mux, "/api/v1/chats", api.ChatRequest{
		SessionID: "s1",
		AgentType: "junior_engineer",
		Message:   "hello",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, mux, http.MethodDelete, "/api/v1/chats/s1/history")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, mux, http.MethodGet, "/api/v1/chats/s1/history?agent_type=junior_engineer")
	require.Equal(t, http.StatusOK, rec.Code)
	data := dataMap(t, decodeEnvelope(t, rec))
	assert.EqualValues(t, 0, data["count"])
}

func TestChatHandler_ResetUnknownSession(t *testing.T) {
	mux := newChatMux(newStubProvider())

	rec := do(t, mux, http.MethodDelete, "/api/v1/chats/ghost/history")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatHandler_DeleteSession(t *testing.T) {
	mux := newChatMux(newStubProvider())

	rec := postJSON(t, mux, "/api/v1/chats", api.ChatRequest{
		SessionID: "s1",
		AgentType: "junior_engineer",
		Message:   "hello",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, mux, http.MethodDelete, "/api/v1/chats/s1")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, mux, http.MethodDelete, "/api/v1/chats/s1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatHandler_DefaultSessionProtected(t *testing.T) {
	mux := newChatMux(newStubProvider())

	rec := do(t, mux, http.MethodDelete, "/api/v1/chats/default")
	require.Equal(t, http.StatusForbidden, rec.Code)

	resp := decodeEnvelope(t, rec)
	assert.Equal(t, string(types.ErrSessionProtected), resp.Error.Code)
}

func TestChatHandler_ListSessions(t *testing.T) {
	mux := newChatMux(newStubProvider())

	rec := do(t, mux, http.MethodGet, "/api/v1/chats")
	require.Equal(t, http.StatusOK, rec.Code)
	data := dataMap(t, decodeEnvelope(t, rec))
	assert.EqualValues(t, 0, data["count"])

	postJSON(t, mux, "/api/v1/chats", api.ChatRequest{
		SessionID: "s1", AgentType: "junior_engineer", Message: "hi",
	})
	postJSON(t, mux, "/api/v1/chats", api.ChatRequest{
		SessionID: "s2", AgentType: "product_manager", Message: "hi",
	})

	rec = do(t, mux, http.MethodGet, "/api/v1/chats")
	require.Equal(t, http.StatusOK, rec.Code)
	data = dataMap(t, decodeEnvelope(t, rec))
	assert.EqualValues(t, 2, data["count"])
	assert.Equal(t, []any{"s1", "s2"}, data["sessions"])
}
