package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/agorahq/agora/agent"
	"github.com/agorahq/agora/api"
	"github.com/agorahq/agora/internal/metrics"
	"github.com/agorahq/agora/types"
	"go.uber.org/zap"
)

// DefaultSessionID 未指定会话时使用的会话 ID，不允许删除。
const DefaultSessionID = "default"

// =============================================================================
// 💬 单 Agent 聊天 Handler
// =============================================================================

// ChatHandler 单 Agent 聊天处理器。每个 (session, agent_type) 组合
// 拥有独立的 Agent 实例与历史。
type ChatHandler struct {
	registry *agent.Registry
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// NewChatHandler 创建聊天处理器。collector 可为 nil。
func NewChatHandler(registry *agent.Registry, collector *metrics.Collector, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{
		registry: registry,
		metrics:  collector,
		logger:   logger.With(zap.String("handler", "chat")),
	}
}

// Register 挂载聊天路由
func (h *ChatHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/chats", h.HandleChat)
	mux.HandleFunc("GET /api/v1/chats", h.HandleListSessions)
	mux.HandleFunc("GET /api/v1/chats/{session_id}/history", h.HandleHistory)
	mux.HandleFunc("DELETE /api/v1/chats/{session_id}/history", h.HandleReset)
	mux.HandleFunc("DELETE /api/v1/chats/{session_id}", h.HandleDeleteSession)
}

// HandleChat 处理 POST /api/v1/chats
// @Summary 与单个 Agent 对话
// @Description 向指定 Agent 发送消息并返回回复
// @Tags 聊天
// @Accept json
// @Produce json
// @Param request body api.ChatRequest true "聊天请求"
// @Success 200 {object} Response{data=api.ChatResponse} "聊天响应"
// @Failure 400 {object} Response "无效请求"
// @Failure 404 {object} Response "未知 Agent 类型"
// @Router /api/v1/chats [post]
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.ChatRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	if req.Message == "" {
		WriteError(w, r, types.NewError(types.ErrInvalidRequest, "message is required"), h.logger)
		return
	}
	if req.AgentType == "" {
		WriteError(w, r, types.NewError(types.ErrInvalidRequest, "agent_type is required"), h.logger)
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = DefaultSessionID
	}

	ag, err := h.registry.GetOrCreate(sessionID, agent.AgentType(req.AgentType))
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	start := time.Now()
	reply, err := ag.Chat(r.Context(), req.Message)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordAgentTurn(req.AgentType, "error", time.Since(start))
		}
		WriteError(w, r, err, h.logger)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordAgentTurn(req.AgentType, "ok", time.Since(start))
	}

	h.logger.Info("chat turn",
		zap.String("session_id", sessionID),
		zap.String("agent_type", req.AgentType),
		zap.Duration("duration", time.Since(start)),
	)

	WriteSuccess(w, r, api.ChatResponse{
		SessionID: sessionID,
		AgentType: string(ag.Type()),
		Role:      ag.Role(),
		Response:  reply,
	})
}

// HandleHistory 处理 GET /api/v1/chats/{session_id}/history?agent_type=
// @Summary 查看聊天历史
// @Description 返回会话内指定 Agent 的对话历史
// @Tags 聊天
// @Produce json
// @Param session_id path string true "会话 ID"
// @Param agent_type query string true "Agent 类型"
// @Success 200 {object} Response{data=api.ChatHistoryResponse} "聊天历史"
// @Failure 404 {object} Response "会话或 Agent 不存在"
// @Router /api/v1/chats/{session_id}/history [get]
func (h *ChatHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	agentType := r.URL.Query().Get("agent_type")
	if agentType == "" {
		WriteError(w, r, types.NewError(types.ErrInvalidRequest, "agent_type query parameter is required"), h.logger)
		return
	}
	if !h.registry.Known(agent.AgentType(agentType)) {
		WriteError(w, r, types.NewError(types.ErrAgentTypeUnknown,
			fmt.Sprintf("unknown agent type: %s", agentType)), h.logger)
		return
	}
	if !h.registry.SessionExists(sessionID) {
		WriteError(w, r, sessionNotFound(sessionID), h.logger)
		return
	}

	// 会话存在但该 Agent 尚未实例化时返回空历史
	var messages []types.Message
	if ag, ok := h.registry.Lookup(sessionID, agent.AgentType(agentType)); ok {
		messages = ag.History()
	}
	if messages == nil {
		messages = []types.Message{}
	}

	WriteSuccess(w, r, api.ChatHistoryResponse{
		SessionID: sessionID,
		AgentType: agentType,
		Messages:  messages,
		Count:     len(messages),
	})
}

// HandleReset 处理 DELETE /api/v1/chats/{session_id}/history
// @Summary 重置聊天历史
// @Description 清空会话内所有 Agent 的对话历史，Agent 实例保留
// @Tags 聊天
// @Produce json
// @Param session_id path string true "会话 ID"
// @Success 200 {object} Response "已重置"
// @Failure 404 {object} Response "会话不存在"
// @Router /api/v1/chats/{session_id}/history [delete]
func (h *ChatHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	if !h.registry.ResetSession(sessionID) {
		WriteError(w, r, sessionNotFound(sessionID), h.logger)
		return
	}

	h.logger.Info("chat history reset", zap.String("session_id", sessionID))
	WriteSuccess(w, r, map[string]string{
		"session_id": sessionID,
		"status":     "reset",
	})
}

// HandleDeleteSession 处理 DELETE /api/v1/chats/{session_id}
// @Summary 删除会话
// @Description 删除会话及其全部 Agent 实例，default 会话受保护
// @Tags 聊天
// @Produce json
// @Param session_id path string true "会话 ID"
// @Success 200 {object} Response "已删除"
// @Failure 403 {object} Response "默认会话不可删除"
// @Failure 404 {object} Response "会话不存在"
// @Router /api/v1/chats/{session_id} [delete]
func (h *ChatHandler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	if sessionID == DefaultSessionID {
		WriteError(w, r, types.NewError(types.ErrSessionProtected,
			"the default session cannot be deleted"), h.logger)
		return
	}
	if !h.registry.DeleteSession(sessionID) {
		WriteError(w, r, sessionNotFound(sessionID), h.logger)
		return
	}

	h.logger.Info("chat session deleted", zap.String("session_id", sessionID))
	WriteSuccess(w, r, map[string]string{
		"session_id": sessionID,
		"status":     "deleted",
	})
}

// HandleListSessions 处理 GET /api/v1/chats
// @Summary 列出会话
// @Description 返回所有存在 Agent 实例的会话 ID
// @Tags 聊天
// @Produce json
// @Success 200 {object} Response{data=api.SessionListResponse} "会话列表"
// @Router /api/v1/chats [get]
func (h *ChatHandler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.registry.Sessions()
	WriteSuccess(w, r, api.SessionListResponse{
		Sessions: sessions,
		Count:    len(sessions),
	})
}

func sessionNotFound(sessionID string) *types.Error {
	return types.NewError(types.ErrSessionNotFound,
		fmt.Sprintf("session not found: %s", sessionID))
}
