package handlers

import (
	"net/http"

	"github.com/agorahq/agora/agent"
	"github.com/agorahq/agora/api"
	"go.uber.org/zap"
)

// =============================================================================
// 👥 Agent 目录 Handler
// =============================================================================

// AgentHandler 暴露可用的讨论角色目录
type AgentHandler struct {
	registry *agent.Registry
	logger   *zap.Logger
}

// NewAgentHandler 创建 Agent 目录处理器
func NewAgentHandler(registry *agent.Registry, logger *zap.Logger) *AgentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AgentHandler{
		registry: registry,
		logger:   logger.With(zap.String("handler", "agents")),
	}
}

// Register 挂载 Agent 目录路由
func (h *AgentHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/agents", h.HandleList)
}

// HandleList 处理 GET /api/v1/agents
// @Summary 列出可用 Agent
// @Description 返回可参与讨论的 Agent 类型及其角色配置
// @Tags Agent
// @Produce json
// @Success 200 {object} Response{data=api.AgentListResponse} "Agent 列表"
// @Router /api/v1/agents [get]
func (h *AgentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	agentTypes := h.registry.AvailableTypes()
	infos := make([]api.AgentInfo, 0, len(agentTypes))
	for _, t := range agentTypes {
		cfg, ok := h.registry.PersonaConfig(t)
		if !ok {
			continue
		}
		infos = append(infos, api.AgentInfo{
			Type:        string(cfg.Type),
			Role:        cfg.Role,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
		})
	}

	WriteSuccess(w, r, api.AgentListResponse{
		Agents: infos,
		Count:  len(infos),
	})
}
