package api

import (
	"time"

	"github.com/agorahq/agora/types"
)

// =============================================================================
// 👥 Agent 类型
// =============================================================================

// AgentInfo 描述一个可用的讨论角色。
// @Description Agent 角色信息
type AgentInfo struct {
	// Agent 类型标识
	Type string `json:"type" example:"junior_engineer"`
	// 展示用角色名
	Role string `json:"role" example:"Junior Engineer"`
	// 该角色使用的模型
	Model string `json:"model" example:"gpt-4o-mini"`
	// 采样温度
	Temperature float32 `json:"temperature" example:"0.7"`
}

// AgentListResponse 可用 Agent 列表响应。
// @Description Agent 列表
type AgentListResponse struct {
	Agents []AgentInfo `json:"agents"`
	Count  int         `json:"count" example:"2"`
}

// =============================================================================
// 💬 单 Agent 聊天类型
// =============================================================================

// ChatRequest 单 Agent 聊天请求。
// @Description 聊天请求结构
type ChatRequest struct {
	// 会话 ID，为空时使用 "default"
	SessionID string `json:"session_id,omitempty" example:"default"`
	// Agent 类型
	AgentType string `json:"agent_type" example:"junior_engineer" binding:"required"`
	// 用户消息
	Message string `json:"message" example:"How should we shard the cache?" binding:"required"`
}

// ChatResponse 单 Agent 聊天响应。
// @Description 聊天响应结构
type ChatResponse struct {
	SessionID string `json:"session_id" example:"default"`
	AgentType string `json:"agent_type" example:"junior_engineer"`
	// 展示用角色名
	Role string `json:"role" example:"Junior Engineer"`
	// Agent 的回复
	Response string `json:"response"`
}

// ChatHistoryResponse 会话内单个 Agent 的历史。
// @Description 聊天历史
type ChatHistoryResponse struct {
	SessionID string          `json:"session_id" example:"default"`
	AgentType string          `json:"agent_type" example:"junior_engineer"`
	Messages  []types.Message `json:"messages"`
	Count     int             `json:"count" example:"4"`
}

// SessionListResponse 会话 ID 列表。
// @Description 会话列表
type SessionListResponse struct {
	Sessions []string `json:"sessions"`
	Count    int      `json:"count" example:"1"`
}

// =============================================================================
// 🎭 同步编排类型
// =============================================================================

// OrchestrationStartRequest 同步多 Agent 讨论请求。
// @Description 编排启动请求
type OrchestrationStartRequest struct {
	// 会话 ID，为空时自动生成
	SessionID string `json:"session_id,omitempty" example:"design-review-1"`
	// 讨论任务
	Task string `json:"task" example:"Design a rate limiter" binding:"required"`
	// 参与讨论的 Agent 类型，至少两个
	AgentTypes []string `json:"agent_types" binding:"required"`
	// 编排模式：round_robin、sequential、adaptive
	Mode string `json:"mode,omitempty" example:"round_robin"`
	// 讨论轮数，为 0 时使用配置默认值
	Rounds int `json:"rounds,omitempty" example:"2"`
}

// AgentTurn 讨论中的一次 Agent 发言。
// @Description 单次发言
type AgentTurn struct {
	AgentType string `json:"agent_type" example:"junior_engineer"`
	Role      string `json:"role" example:"Junior Engineer"`
	Round     int    `json:"round" example:"1"`
	Response  string `json:"response"`
	// 发言耗时（毫秒）
	ElapsedMS int64 `json:"elapsed_ms" example:"1200"`
}

// OrchestrationSummary 编排会话摘要。
// @Description 编排摘要
type OrchestrationSummary struct {
	SessionID     string      `json:"session_id"`
	AgentTypes    []string    `json:"agent_types"`
	Mode          string      `json:"mode" example:"round_robin"`
	TotalMessages int         `json:"total_messages" example:"5"`
	RoundsRun     int         `json:"rounds_run" example:"2"`
	Agents        []AgentInfo `json:"agents"`
}

// OrchestrationRunResponse 同步讨论结果。
// @Description 编排运行结果
type OrchestrationRunResponse struct {
	SessionID string               `json:"session_id"`
	Task      string               `json:"task,omitempty"`
	Mode      string               `json:"mode" example:"round_robin"`
	Rounds    int                  `json:"rounds" example:"2"`
	Responses []AgentTurn          `json:"responses"`
	Summary   OrchestrationSummary `json:"summary"`
}

// OrchestrationHistoryResponse 编排会话的共享对话历史。
// @Description 编排历史
type OrchestrationHistoryResponse struct {
	SessionID string          `json:"session_id"`
	Messages  []types.Message `json:"messages"`
	Count     int             `json:"count" example:"5"`
}

// =============================================================================
// 🗣️ 异步讨论类型
// =============================================================================

// DiscussionCreateRequest 异步讨论创建请求。
// @Description 讨论创建请求
type DiscussionCreateRequest struct {
	// 讨论任务
	Task string `json:"task" example:"Plan the Q3 roadmap" binding:"required"`
	// 参与讨论的 Agent 类型，至少两个
	AgentTypes []string `json:"agent_types" binding:"required"`
	// 编排模式：round_robin、sequential、adaptive
	Mode string `json:"mode,omitempty" example:"round_robin"`
	// 讨论轮数，为 0 时使用配置默认值
	Rounds int `json:"rounds,omitempty" example:"2"`
}

// DiscussionCreateResponse 异步讨论创建响应。
// @Description 讨论创建结果
type DiscussionCreateResponse struct {
	DiscussionID string `json:"discussion_id" example:"0f8fad5b-d9cb-469f-a165-70867728950e"`
	SessionID    string `json:"session_id" example:"orchestration-0f8fad5b-..."`
	Status       string `json:"status" example:"started"`
	// 订阅实时事件的 WebSocket 路径
	WebSocketURL string `json:"websocket_url" example:"/api/v1/discussions/0f8fad5b-.../stream"`
}

// DiscussionStatusResponse 讨论状态（轮询回退端点）。
// @Description 讨论状态
type DiscussionStatusResponse struct {
	DiscussionID string   `json:"discussion_id"`
	Status       string   `json:"status" example:"running"`
	Task         string   `json:"task"`
	AgentTypes   []string `json:"agent_types"`
	Mode         string   `json:"mode" example:"round_robin"`
	Rounds       int      `json:"rounds" example:"2"`
	EventsCount  int      `json:"events_count" example:"7"`
	// 估算进度，0.0-1.0
	Progress    float64    `json:"progress" example:"0.5"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// DiscussionEvent 讨论事件（回放与实时推送共用同一结构）。
// @Description 讨论事件
type DiscussionEvent struct {
	Sequence     int            `json:"sequence" example:"1"`
	Type         string         `json:"event_type" example:"agent_response"`
	DiscussionID string         `json:"discussion_id"`
	Timestamp    time.Time      `json:"timestamp"`
	Data         map[string]any `json:"data"`
}

// DiscussionHistoryResponse 讨论的完整状态与事件历史。
// @Description 讨论历史
type DiscussionHistoryResponse struct {
	Status DiscussionStatusResponse `json:"status"`
	Events []DiscussionEvent        `json:"events"`
	Count  int                      `json:"count" example:"7"`
}

// DiscussionListResponse 讨论列表。
// @Description 讨论列表
type DiscussionListResponse struct {
	Discussions []DiscussionStatusResponse `json:"discussions"`
	Count       int                        `json:"count" example:"3"`
}
