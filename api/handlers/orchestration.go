package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/agorahq/agora/agent"
	"github.com/agorahq/agora/api"
	"github.com/agorahq/agora/orchestration"
	"github.com/agorahq/agora/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// 🎭 同步编排 Handler
// =============================================================================

// OrchestrationHandler 同步多 Agent 讨论处理器。讨论在请求内
// 运行到结束，结果随响应返回；长讨论应使用异步 discussions 端点。
type OrchestrationHandler struct {
	manager       *orchestration.Manager
	registry      *agent.Registry
	defaultRounds int
	logger        *zap.Logger
}

// NewOrchestrationHandler 创建编排处理器
func NewOrchestrationHandler(manager *orchestration.Manager, registry *agent.Registry, defaultRounds int, logger *zap.Logger) *OrchestrationHandler {
	if defaultRounds <= 0 {
		defaultRounds = 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrchestrationHandler{
		manager:       manager,
		registry:      registry,
		defaultRounds: defaultRounds,
		logger:        logger.With(zap.String("handler", "orchestration")),
	}
}

// Register 挂载编排路由
func (h *OrchestrationHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/orchestration/start", h.HandleStart)
	mux.HandleFunc("POST /api/v1/orchestration/continue/{session_id}", h.HandleContinue)
	mux.HandleFunc("GET /api/v1/orchestration/history/{session_id}", h.HandleHistory)
	mux.HandleFunc("GET /api/v1/orchestration/sessions", h.HandleSessions)
	mux.HandleFunc("DELETE /api/v1/orchestration/{session_id}", h.HandleDelete)
}

// HandleStart 处理 POST /api/v1/orchestration/start
// @Summary 启动同步讨论
// @Description 创建编排会话并同步运行讨论，返回全部发言与摘要
// @Tags 编排
// @Accept json
// @Produce json
// @Param request body api.OrchestrationStartRequest true "编排请求"
// @Success 200 {object} Response{data=api.OrchestrationRunResponse} "讨论结果"
// @Failure 400 {object} Response "无效请求"
// @Failure 404 {object} Response "未知 Agent 类型"
// @Router /api/v1/orchestration/start [post]
func (h *OrchestrationHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.OrchestrationStartRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	if req.Task == "" {
		WriteError(w, r, types.NewError(types.ErrInvalidRequest, "task is required"), h.logger)
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	mode := req.Mode
	if mode == "" {
		mode = string(orchestration.ModeRoundRobin)
	}
	rounds := req.Rounds
	if rounds <= 0 {
		rounds = h.defaultRounds
	}

	orch, err := h.manager.Create(sessionID, req.AgentTypes, mode)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	orch.AddInitialTask(req.Task)

	start := time.Now()
	turns, err := orch.Run(r.Context(), rounds, orchestration.Hooks{})
	if err != nil {
		// 会话保留，调用方可以换参数重试或删除
		WriteError(w, r, err, h.logger)
		return
	}

	h.logger.Info("orchestration completed",
		zap.String("session_id", sessionID),
		zap.String("mode", mode),
		zap.Int("rounds", rounds),
		zap.Int("turns", len(turns)),
		zap.Duration("duration", time.Since(start)),
	)

	WriteSuccess(w, r, api.OrchestrationRunResponse{
		SessionID: sessionID,
		Task:      req.Task,
		Mode:      mode,
		Rounds:    rounds,
		Responses: toAgentTurns(turns),
		Summary:   toSummary(orch.Summarize()),
	})
}

// HandleContinue 处理 POST /api/v1/orchestration/continue/{session_id}?rounds=
// @Summary 继续讨论
// @Description 在已有编排会话上继续运行若干轮
// @Tags 编排
// @Produce json
// @Param session_id path string true "会话 ID"
// @Param rounds query int false "继续的轮数，默认 1"
// @Success 200 {object} Response{data=api.OrchestrationRunResponse} "新增发言"
// @Failure 404 {object} Response "会话不存在"
// @Router /api/v1/orchestration/continue/{session_id} [post]
func (h *OrchestrationHandler) HandleContinue(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	orch, ok := h.manager.Get(sessionID)
	if !ok {
		WriteError(w, r, sessionNotFound(sessionID), h.logger)
		return
	}

	rounds := 1
	if raw := r.URL.Query().Get("rounds"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			WriteError(w, r, types.NewError(types.ErrInvalidRequest,
				fmt.Sprintf("invalid rounds value: %s", raw)), h.logger)
			return
		}
		rounds = parsed
	}

	turns, err := orch.Continue(r.Context(), rounds, orchestration.Hooks{})
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	WriteSuccess(w, r, api.OrchestrationRunResponse{
		SessionID: sessionID,
		Mode:      string(orch.Mode()),
		Rounds:    rounds,
		Responses: toAgentTurns(turns),
		Summary:   toSummary(orch.Summarize()),
	})
}

// HandleHistory 处理 GET /api/v1/orchestration/history/{session_id}
// @Summary 查看讨论历史
// @Description 返回编排会话的共享对话历史
// @Tags 编排
// @Produce json
// @Param session_id path string true "会话 ID"
// @Success 200 {object} Response{data=api.OrchestrationHistoryResponse} "讨论历史"
// @Failure 404 {object} Response "会话不存在"
// @Router /api/v1/orchestration/history/{session_id} [get]
func (h *OrchestrationHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	orch, ok := h.manager.Get(sessionID)
	if !ok {
		WriteError(w, r, sessionNotFound(sessionID), h.logger)
		return
	}

	messages := orch.History()
	WriteSuccess(w, r, api.OrchestrationHistoryResponse{
		SessionID: sessionID,
		Messages:  messages,
		Count:     len(messages),
	})
}

// HandleSessions 处理 GET /api/v1/orchestration/sessions
// @Summary 列出编排会话
// @Tags 编排
// @Produce json
// @Success 200 {object} Response{data=api.SessionListResponse} "会话列表"
// @Router /api/v1/orchestration/sessions [get]
func (h *OrchestrationHandler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.manager.Sessions()
	WriteSuccess(w, r, api.SessionListResponse{
		Sessions: sessions,
		Count:    len(sessions),
	})
}

// HandleDelete 处理 DELETE /api/v1/orchestration/{session_id}
// @Summary 删除编排会话
// @Description 删除编排会话及其 Agent 实例
// @Tags 编排
// @Produce json
// @Param session_id path string true "会话 ID"
// @Success 200 {object} Response "已删除"
// @Failure 404 {object} Response "会话不存在"
// @Router /api/v1/orchestration/{session_id} [delete]
func (h *OrchestrationHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	if !h.manager.Delete(sessionID) {
		WriteError(w, r, sessionNotFound(sessionID), h.logger)
		return
	}
	h.registry.DeleteSession(sessionID)

	h.logger.Info("orchestration session deleted", zap.String("session_id", sessionID))
	WriteSuccess(w, r, map[string]string{
		"session_id": sessionID,
		"status":     "deleted",
	})
}

// =============================================================================
// 🔄 类型转换辅助函数
// =============================================================================

func toAgentTurns(turns []orchestration.Turn) []api.AgentTurn {
	out := make([]api.AgentTurn, len(turns))
	for i, t := range turns {
		out[i] = api.AgentTurn{
			AgentType: string(t.AgentType),
			Role:      t.Role,
			Round:     t.Round,
			Response:  t.Response,
			ElapsedMS: t.Elapsed.Milliseconds(),
		}
	}
	return out
}

func toSummary(s orchestration.Summary) api.OrchestrationSummary {
	agentTypes := make([]string, len(s.AgentTypes))
	for i, t := range s.AgentTypes {
		agentTypes[i] = string(t)
	}
	agents := make([]api.AgentInfo, len(s.Agents))
	for i, a := range s.Agents {
		agents[i] = api.AgentInfo{Type: string(a.Type), Role: a.Role}
	}
	return api.OrchestrationSummary{
		SessionID:     s.SessionID,
		AgentTypes:    agentTypes,
		Mode:          string(s.Mode),
		TotalMessages: s.TotalMessages,
		RoundsRun:     s.RoundsRun,
		Agents:        agents,
	}
}
