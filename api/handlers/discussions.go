package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/agorahq/agora/api"
	"github.com/agorahq/agora/discussion"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

// terminalPollInterval 是 WebSocket 流在无事件时检查讨论终态的间隔。
// 慢订阅者可能丢失终态事件，轮询保证连接最终关闭。
const terminalPollInterval = time.Second

// =============================================================================
// 🗣️ 异步讨论 Handler
// =============================================================================

// DiscussionHandler 异步讨论处理器。讨论在后台 goroutine 中运行，
// 事件通过 WebSocket 推送，轮询端点作为回退。
type DiscussionHandler struct {
	manager *discussion.Manager
	// 允许的 WebSocket Origin 模式，空表示仅同源
	originPatterns []string
	logger         *zap.Logger
}

// NewDiscussionHandler 创建讨论处理器
func NewDiscussionHandler(manager *discussion.Manager, originPatterns []string, logger *zap.Logger) *DiscussionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiscussionHandler{
		manager:        manager,
		originPatterns: originPatterns,
		logger:         logger.With(zap.String("handler", "discussions")),
	}
}

// Register 挂载讨论路由
func (h *DiscussionHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/discussions", h.HandleCreate)
	mux.HandleFunc("GET /api/v1/discussions", h.HandleList)
	mux.HandleFunc("GET /api/v1/discussions/{id}/status", h.HandleStatus)
	mux.HandleFunc("GET /api/v1/discussions/{id}/history", h.HandleHistory)
	mux.HandleFunc("DELETE /api/v1/discussions/{id}/history", h.HandleClearHistory)
	mux.HandleFunc("GET /api/v1/discussions/{id}/stream", h.HandleStream)
	mux.HandleFunc("DELETE /api/v1/discussions/{id}", h.HandleDelete)
}

// HandleCreate 处理 POST /api/v1/discussions
// @Summary 创建异步讨论
// @Description 创建讨论并在后台运行，通过 WebSocket 或轮询端点跟踪进度
// @Tags 讨论
// @Accept json
// @Produce json
// @Param request body api.DiscussionCreateRequest true "讨论请求"
// @Success 200 {object} Response{data=api.DiscussionCreateResponse} "讨论已启动"
// @Failure 400 {object} Response "无效请求"
// @Router /api/v1/discussions [post]
func (h *DiscussionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.DiscussionCreateRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	state, err := h.manager.Start(r.Context(), discussion.StartRequest{
		Task:       req.Task,
		AgentTypes: req.AgentTypes,
		Mode:       req.Mode,
		Rounds:     req.Rounds,
	})
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	WriteSuccess(w, r, api.DiscussionCreateResponse{
		DiscussionID: state.DiscussionID,
		SessionID:    state.SessionID,
		Status:       "started",
		WebSocketURL: fmt.Sprintf("/api/v1/discussions/%s/stream", state.DiscussionID),
	})
}

// HandleStatus 处理 GET /api/v1/discussions/{id}/status
// @Summary 查询讨论状态
// @Description 轮询回退端点，返回状态、进度与事件计数
// @Tags 讨论
// @Produce json
// @Param id path string true "讨论 ID"
// @Success 200 {object} Response{data=api.DiscussionStatusResponse} "讨论状态"
// @Failure 404 {object} Response "讨论不存在"
// @Router /api/v1/discussions/{id}/status [get]
func (h *DiscussionHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	discussionID := r.PathValue("id")
	state, err := h.manager.CachedStatus(r.Context(), discussionID)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	WriteSuccess(w, r, toStatusResponse(state))
}

// HandleHistory 处理 GET /api/v1/discussions/{id}/history
// @Summary 查看讨论历史
// @Description 返回讨论的完整状态与事件流
// @Tags 讨论
// @Produce json
// @Param id path string true "讨论 ID"
// @Success 200 {object} Response{data=api.DiscussionHistoryResponse} "讨论历史"
// @Failure 404 {object} Response "讨论不存在"
// @Router /api/v1/discussions/{id}/history [get]
func (h *DiscussionHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	discussionID := r.PathValue("id")
	state, err := h.manager.Get(r.Context(), discussionID)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	events, err := h.manager.Events(r.Context(), discussionID)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	apiEvents := make([]api.DiscussionEvent, len(events))
	for i, e := range events {
		apiEvents[i] = toAPIEvent(e)
	}

	WriteSuccess(w, r, api.DiscussionHistoryResponse{
		Status: toStatusResponse(state),
		Events: apiEvents,
		Count:  len(apiEvents),
	})
}

// HandleList 处理 GET /api/v1/discussions
// @Summary 列出讨论
// @Tags 讨论
// @Produce json
// @Success 200 {object} Response{data=api.DiscussionListResponse} "讨论列表"
// @Router /api/v1/discussions [get]
func (h *DiscussionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	states, err := h.manager.List(r.Context())
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	out := make([]api.DiscussionStatusResponse, len(states))
	for i, state := range states {
		out[i] = toStatusResponse(state)
	}

	WriteSuccess(w, r, api.DiscussionListResponse{
		Discussions: out,
		Count:       len(out),
	})
}

// HandleDelete 处理 DELETE /api/v1/discussions/{id}
// @Summary 删除讨论
// @Description 删除讨论状态、事件与编排会话，运行中的讨论拒绝删除
// @Tags 讨论
// @Produce json
// @Param id path string true "讨论 ID"
// @Success 200 {object} Response "已删除"
// @Failure 404 {object} Response "讨论不存在"
// @Failure 409 {object} Response "讨论仍在运行"
// @Router /api/v1/discussions/{id} [delete]
func (h *DiscussionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	discussionID := r.PathValue("id")
	if err := h.manager.Delete(r.Context(), discussionID); err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	WriteSuccess(w, r, map[string]string{
		"discussion_id": discussionID,
		"status":        "deleted",
	})
}

// HandleClearHistory 处理 DELETE /api/v1/discussions/{id}/history
// @Summary 清空讨论事件历史
// @Description 清空事件缓冲与持久化事件，讨论状态保留
// @Tags 讨论
// @Produce json
// @Param id path string true "讨论 ID"
// @Success 200 {object} Response "已清空"
// @Failure 404 {object} Response "讨论不存在"
// @Failure 409 {object} Response "讨论仍在运行"
// @Router /api/v1/discussions/{id}/history [delete]
func (h *DiscussionHandler) HandleClearHistory(w http.ResponseWriter, r *http.Request) {
	discussionID := r.PathValue("id")
	if err := h.manager.ClearEvents(r.Context(), discussionID); err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	WriteSuccess(w, r, map[string]string{
		"discussion_id": discussionID,
		"status":        "cleared",
	})
}

// =============================================================================
// 🔌 WebSocket 事件流
// =============================================================================

// HandleStream 处理 GET /api/v1/discussions/{id}/stream。
// 先回放已缓冲的事件，再推送实时事件；讨论终态后正常关闭连接。
// @Summary 订阅讨论事件流
// @Description WebSocket 端点：回放历史事件后持续推送实时事件
// @Tags 讨论
// @Param id path string true "讨论 ID"
// @Success 101 {string} string "协议切换"
// @Failure 404 {object} Response "讨论不存在"
// @Router /api/v1/discussions/{id}/stream [get]
func (h *DiscussionHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	discussionID := r.PathValue("id")

	// 升级前校验讨论存在，失败还能返回正常的 JSON 错误
	replay, sub, err := h.manager.Subscribe(r.Context(), discussionID)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	defer h.manager.Unsubscribe(sub)

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Warn("websocket accept failed",
			zap.String("discussion_id", discussionID),
			zap.Error(err))
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	logger := h.logger.With(zap.String("discussion_id", discussionID))
	logger.Debug("websocket subscriber connected", zap.Int("replay_events", len(replay)))

	for _, event := range replay {
		if err := wsjson.Write(ctx, conn, toAPIEvent(event)); err != nil {
			logger.Debug("websocket write failed during replay", zap.Error(err))
			return
		}
		if event.Type.Terminal() {
			conn.Close(websocket.StatusNormalClosure, "discussion finished")
			return
		}
	}

	ticker := time.NewTicker(terminalPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-sub.C:
			if !ok {
				// 讨论被删除，缓冲连同订阅者一起被丢弃
				conn.Close(websocket.StatusGoingAway, "discussion deleted")
				return
			}
			if err := wsjson.Write(ctx, conn, toAPIEvent(event)); err != nil {
				logger.Debug("websocket write failed", zap.Error(err))
				return
			}
			if event.Type.Terminal() {
				conn.Close(websocket.StatusNormalClosure, "discussion finished")
				return
			}

		case <-ticker.C:
			// 终态事件可能因订阅缓冲溢出而丢失，轮询状态兜底
			state, err := h.manager.CachedStatus(ctx, discussionID)
			if err != nil {
				conn.Close(websocket.StatusGoingAway, "discussion deleted")
				return
			}
			if state.Status.Terminal() {
				conn.Close(websocket.StatusNormalClosure, "discussion finished")
				return
			}
		}
	}
}

// =============================================================================
// 🔄 类型转换辅助函数
// =============================================================================

func toAPIEvent(e discussion.Event) api.DiscussionEvent {
	return api.DiscussionEvent{
		Sequence:     e.Sequence,
		Type:         string(e.Type),
		DiscussionID: e.DiscussionID,
		Timestamp:    e.Timestamp,
		Data:         e.Data,
	}
}

func toStatusResponse(state *discussion.State) api.DiscussionStatusResponse {
	return api.DiscussionStatusResponse{
		DiscussionID: state.DiscussionID,
		Status:       string(state.Status),
		Task:         state.Task,
		AgentTypes:   state.AgentTypes,
		Mode:         state.Mode,
		Rounds:       state.Rounds,
		EventsCount:  state.EventCount,
		Progress:     estimateProgress(state),
		CreatedAt:    state.CreatedAt,
		StartedAt:    state.StartedAt,
		CompletedAt:  state.CompletedAt,
		Error:        state.Error,
	}
}

// estimateProgress 按预期事件数估算进度。round_robin 每轮产生
// 1 个 round_start 加每个 Agent 的 thinking/response 事件对，
// 其他模式按同样公式近似。
func estimateProgress(state *discussion.State) float64 {
	switch {
	case state.Status.Terminal():
		return 1.0
	case state.Status == discussion.StatusPending:
		return 0.0
	}

	expected := 2 + state.Rounds*(1+2*len(state.AgentTypes))
	progress := float64(state.EventCount) / float64(expected)
	if progress > 0.99 {
		progress = 0.99
	}
	return progress
}
