// =====================================================================================
// 💬 讨论管理器：异步编排 + 生命周期状态机 + 事件广播
// =====================================================================================
// Start 立即返回，讨论在后台 goroutine 中运行：
//   pending -> running -> completed/failed
// 每一步都会通过 Hub 发布事件（discussion_start / round_start / agent_thinking /
// agent_response / discussion_complete / error），并同步到 Store 与状态缓存。
// =====================================================================================

package discussion

import (
	"context"
	"fmt"
	"time"

	"github.com/agorahq/agora/agent"
	"github.com/agorahq/agora/internal/cache"
	"github.com/agorahq/agora/internal/metrics"
	"github.com/agorahq/agora/orchestration"
	"github.com/agorahq/agora/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// statusCacheKey 讨论状态镜像的缓存键前缀
const statusCachePrefix = "agora:discussion:status:"

// SessionPrefix 讨论会话 ID 的前缀
const SessionPrefix = "orchestration-"

// ManagerConfig 讨论管理器配置
type ManagerConfig struct {
	// DefaultRounds 未指定时的讨论轮数
	DefaultRounds int `yaml:"default_rounds" json:"default_rounds"`

	// Timeout 单场讨论的运行上限
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// StatusCacheTTL 状态镜像在缓存中的保留时间
	StatusCacheTTL time.Duration `yaml:"status_cache_ttl" json:"status_cache_ttl"`
}

// DefaultManagerConfig 返回默认配置
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		DefaultRounds:  2,
		Timeout:        10 * time.Minute,
		StatusCacheTTL: time.Hour,
	}
}

// StartRequest 启动讨论的参数
type StartRequest struct {
	Task       string   `json:"task"`
	AgentTypes []string `json:"agent_types"`
	Mode       string   `json:"mode"`
	Rounds     int      `json:"rounds"`
}

// Manager 管理讨论的创建、后台运行与查询
type Manager struct {
	cfg      ManagerConfig
	store    Store
	archive  Store // 可选：终态讨论归档（数据库）
	hub      *Hub
	orch     *orchestration.Manager
	registry *agent.Registry
	cache    *cache.Manager // 可选：状态镜像
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// NewManager 创建讨论管理器。archive、cacheMgr 与 collector 可为 nil。
func NewManager(
	cfg ManagerConfig,
	store Store,
	archive Store,
	hub *Hub,
	orch *orchestration.Manager,
	registry *agent.Registry,
	cacheMgr *cache.Manager,
	collector *metrics.Collector,
	logger *zap.Logger,
) *Manager {
	if cfg.DefaultRounds <= 0 {
		cfg.DefaultRounds = 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg:      cfg,
		store:    store,
		archive:  archive,
		hub:      hub,
		orch:     orch,
		registry: registry,
		cache:    cacheMgr,
		metrics:  collector,
		logger:   logger.With(zap.String("component", "discussion_manager")),
	}
}

// Start 校验请求、登记 pending 状态并在后台启动讨论。
// 返回时讨论尚未运行；通过 WebSocket 或轮询获取进展。
func (m *Manager) Start(ctx context.Context, req StartRequest) (*State, error) {
	if req.Task == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "task must not be empty")
	}
	if req.Rounds <= 0 {
		req.Rounds = m.cfg.DefaultRounds
	}

	discussionID := uuid.NewString()
	sessionID := SessionPrefix + discussionID

	// 先建编排器：校验失败直接拒绝请求，不留下僵尸状态
	orch, err := m.orch.Create(sessionID, req.AgentTypes, req.Mode)
	if err != nil {
		return nil, err
	}

	state := &State{
		DiscussionID: discussionID,
		SessionID:    sessionID,
		Task:         req.Task,
		AgentTypes:   append([]string(nil), req.AgentTypes...),
		Mode:         req.Mode,
		Rounds:       req.Rounds,
		Status:       StatusPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := m.store.Save(ctx, state); err != nil {
		m.orch.Delete(sessionID)
		m.registry.DeleteSession(sessionID)
		return nil, err
	}
	m.mirrorStatus(ctx, state)

	go m.run(state.Clone(), orch)

	m.logger.Info("discussion started",
		zap.String("discussion_id", discussionID),
		zap.String("session_id", sessionID),
		zap.String("mode", req.Mode),
		zap.Int("rounds", req.Rounds),
		zap.Strings("agent_types", req.AgentTypes))
	return state.Clone(), nil
}

// run 在后台执行讨论并推进状态机
func (m *Manager) run(state *State, orch *orchestration.Orchestrator) {
	ctx := context.Background()
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}

	if err := m.transition(ctx, state, StatusRunning, ""); err != nil {
		m.logger.Error("discussion transition failed", zap.Error(err))
		return
	}

	orch.AddInitialTask(state.Task)

	m.publish(ctx, state, EventDiscussionStart, map[string]any{
		"discussion_id": state.DiscussionID,
		"task":          state.Task,
		"agent_types":   state.AgentTypes,
		"mode":          state.Mode,
	})

	hooks := orchestration.Hooks{
		OnRoundStart: func(round int) {
			m.publish(ctx, state, EventRoundStart, map[string]any{"round": round})
		},
		OnThinking: func(agentType agent.AgentType, role string, round int) {
			m.publish(ctx, state, EventAgentThinking, map[string]any{
				"agent_type": string(agentType),
				"role":       role,
				"round":      round,
			})
		},
		OnTurn: func(t orchestration.Turn) {
			if m.metrics != nil {
				m.metrics.RecordAgentTurn(string(t.AgentType), "ok", t.Elapsed)
			}
			m.publish(ctx, state, EventAgentResponse, map[string]any{
				"agent_type": string(t.AgentType),
				"role":       t.Role,
				"round":      t.Round,
				"response":   t.Response,
			})
		},
	}

	turns, err := orch.Run(ctx, state.Rounds, hooks)
	if err != nil {
		m.fail(ctx, state, err)
		return
	}

	m.publish(ctx, state, EventDiscussionComplete, map[string]any{
		"total_responses":      len(turns),
		"conversation_history": orch.History(),
		"result":               map[string]any{"responses": turns},
	})

	if err := m.transition(ctx, state, StatusCompleted, ""); err != nil {
		m.logger.Error("discussion transition failed", zap.Error(err))
	}
	m.recordTerminal(state)
	m.archiveState(ctx, state)
}

// fail 将讨论标记为失败并广播错误事件
func (m *Manager) fail(ctx context.Context, state *State, cause error) {
	m.logger.Warn("discussion failed",
		zap.String("discussion_id", state.DiscussionID),
		zap.Error(cause))
	if m.metrics != nil {
		m.metrics.RecordAgentTurn("unknown", "error", 0)
	}

	m.publish(ctx, state, EventError, map[string]any{"error": cause.Error()})
	if err := m.transition(ctx, state, StatusFailed, cause.Error()); err != nil {
		m.logger.Error("discussion transition failed", zap.Error(err))
	}
	m.recordTerminal(state)
	m.archiveState(ctx, state)
}

func (m *Manager) recordTerminal(state *State) {
	if m.metrics == nil || state.StartedAt == nil {
		return
	}
	m.metrics.RecordDiscussion(state.Mode, string(state.Status), time.Since(*state.StartedAt))
}

// archiveState 将终态讨论及其事件写入归档存储
func (m *Manager) archiveState(ctx context.Context, state *State) {
	if m.archive == nil {
		return
	}
	if err := m.archive.Save(ctx, state); err != nil {
		m.logger.Warn("discussion archive failed", zap.Error(err))
		return
	}
	if err := m.archive.AppendEvents(ctx, state.DiscussionID, m.hub.Events(state.DiscussionID)); err != nil {
		m.logger.Warn("discussion event archive failed", zap.Error(err))
	}
}

// publish 发布事件并同步 Store 中的事件计数
func (m *Manager) publish(ctx context.Context, state *State, eventType EventType, data map[string]any) {
	event := m.hub.Publish(state.DiscussionID, eventType, data)
	state.EventCount = event.Sequence

	if err := m.store.AppendEvents(ctx, state.DiscussionID, []Event{event}); err != nil {
		m.logger.Warn("event persist failed",
			zap.String("discussion_id", state.DiscussionID),
			zap.Error(err))
	}
	if err := m.store.Save(ctx, state); err != nil {
		m.logger.Warn("state persist failed",
			zap.String("discussion_id", state.DiscussionID),
			zap.Error(err))
	}
	m.mirrorStatus(ctx, state)
}

// transition 推进状态机并持久化
func (m *Manager) transition(ctx context.Context, state *State, next Status, errMsg string) error {
	if err := state.Transition(next, errMsg); err != nil {
		return err
	}
	if err := m.store.Save(ctx, state); err != nil {
		return err
	}
	m.mirrorStatus(ctx, state)
	return nil
}

// mirrorStatus 把最新状态镜像进缓存，轮询端点优先读这里
func (m *Manager) mirrorStatus(ctx context.Context, state *State) {
	if m.cache == nil {
		return
	}
	err := m.cache.SetJSON(ctx, statusCachePrefix+state.DiscussionID, state, m.cfg.StatusCacheTTL)
	if err != nil {
		m.logger.Debug("status mirror failed",
			zap.String("discussion_id", state.DiscussionID),
			zap.Error(err))
	}
}

// Get 返回讨论状态
func (m *Manager) Get(ctx context.Context, discussionID string) (*State, error) {
	return m.store.Get(ctx, discussionID)
}

// CachedStatus 从缓存读取讨论状态，未命中时回源 Store。
func (m *Manager) CachedStatus(ctx context.Context, discussionID string) (*State, error) {
	if m.cache != nil {
		var state State
		if err := m.cache.GetJSON(ctx, statusCachePrefix+discussionID, &state); err == nil {
			return &state, nil
		}
	}
	return m.store.Get(ctx, discussionID)
}

// List 返回全部讨论状态
func (m *Manager) List(ctx context.Context) ([]*State, error) {
	return m.store.List(ctx)
}

// Events 返回讨论的事件历史（活跃讨论走 Hub 缓冲，否则回源 Store）
func (m *Manager) Events(ctx context.Context, discussionID string) ([]Event, error) {
	if _, err := m.store.Get(ctx, discussionID); err != nil {
		return nil, err
	}
	if events := m.hub.Events(discussionID); len(events) > 0 {
		return events, nil
	}
	return m.store.Events(ctx, discussionID)
}

// ClearEvents 清空讨论的事件历史。运行中的讨论拒绝清空，
// 否则订阅者会看到序号回绕。
func (m *Manager) ClearEvents(ctx context.Context, discussionID string) error {
	state, err := m.store.Get(ctx, discussionID)
	if err != nil {
		return err
	}
	if state.Status == StatusRunning {
		return types.NewError(types.ErrDiscussionActive,
			fmt.Sprintf("discussion %s is still running", discussionID))
	}
	if err := m.store.ClearEvents(ctx, discussionID); err != nil {
		return err
	}
	m.hub.Clear(discussionID)

	state.EventCount = 0
	if err := m.store.Save(ctx, state); err != nil {
		return err
	}
	m.mirrorStatus(ctx, state)
	return nil
}

// Subscribe 订阅讨论事件流，返回已缓冲事件的回放
func (m *Manager) Subscribe(ctx context.Context, discussionID string) ([]Event, *Subscription, error) {
	if _, err := m.store.Get(ctx, discussionID); err != nil {
		return nil, nil, err
	}
	replay, sub := m.hub.Subscribe(discussionID)
	return replay, sub, nil
}

// Unsubscribe 退订讨论事件流
func (m *Manager) Unsubscribe(sub *Subscription) {
	m.hub.Unsubscribe(sub)
}

// Delete 删除讨论及其会话。运行中的讨论拒绝删除。
func (m *Manager) Delete(ctx context.Context, discussionID string) error {
	state, err := m.store.Get(ctx, discussionID)
	if err != nil {
		return err
	}
	if state.Status == StatusRunning {
		return types.NewError(types.ErrDiscussionActive,
			fmt.Sprintf("discussion %s is still running", discussionID))
	}

	if err := m.store.Delete(ctx, discussionID); err != nil {
		return err
	}
	m.hub.Drop(discussionID)
	m.orch.Delete(state.SessionID)
	m.registry.DeleteSession(state.SessionID)
	if m.cache != nil {
		_ = m.cache.Delete(ctx, statusCachePrefix+discussionID)
	}

	m.logger.Info("discussion deleted", zap.String("discussion_id", discussionID))
	return nil
}
