// =====================================================================================
// 💬 Agent 核心：带系统提示词与会话历史的讨论参与者
// =====================================================================================
// 每个 Agent 由一个角色画像（persona）驱动：系统提示词、模型与温度。
// Chat 维护 Agent 自己的历史；ChatWithHistory 使用编排器传入的共享历史，
// 用于多 Agent 讨论场景。
// =====================================================================================

package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agorahq/agora/llm"
	"github.com/agorahq/agora/types"
	"go.uber.org/zap"
)

// AgentType 定义 Agent 类型
type AgentType string

// 内置的讨论角色类型
const (
	TypeJuniorEngineer AgentType = "junior_engineer" // 初级工程师
	TypeProductManager AgentType = "product_manager" // 产品经理
)

// Config 单个 Agent 的画像配置
type Config struct {
	Type        AgentType `json:"type" yaml:"type"`
	Role        string    `json:"role" yaml:"role"`                 // 展示用角色名，如 "Junior Engineer"
	PromptFile  string    `json:"prompt_file" yaml:"prompt_file"`   // prompts 目录下的系统提示词文件
	Model       string    `json:"model" yaml:"model"`               // LLM 模型
	Temperature float32   `json:"temperature" yaml:"temperature"`   // 采样温度
	MaxTokens   int       `json:"max_tokens" yaml:"max_tokens"`     // 单次回复上限，0 表示不限制
	TokenBudget int       `json:"token_budget" yaml:"token_budget"` // 历史裁剪预算，0 表示不裁剪
}

// DefaultCatalog 返回内置角色画像表。
// 与 AvailableTypes 返回的类型一一对应。
func DefaultCatalog() map[AgentType]Config {
	return map[AgentType]Config{
		TypeJuniorEngineer: {
			Type:        TypeJuniorEngineer,
			Role:        "Junior Engineer",
			PromptFile:  "junior_engineer.md",
			Model:       "gpt-4o-mini",
			Temperature: 0.7,
		},
		TypeProductManager: {
			Type:        TypeProductManager,
			Role:        "Product Manager",
			PromptFile:  "product_manager.md",
			Model:       "gpt-4o-mini",
			Temperature: 0.7,
		},
	}
}

// Agent 是一个带系统提示词和会话历史的讨论参与者
type Agent struct {
	cfg          Config
	systemPrompt string
	provider     llm.Provider
	logger       *zap.Logger

	mu      sync.Mutex
	history []types.Message
}

// New 创建一个 Agent 实例。systemPrompt 为空时返回错误，
// 角色画像缺少提示词说明配置损坏，不做静默降级。
func New(cfg Config, systemPrompt string, provider llm.Provider, logger *zap.Logger) (*Agent, error) {
	if systemPrompt == "" {
		return nil, types.NewError(types.ErrInternalError,
			fmt.Sprintf("agent %s: empty system prompt", cfg.Type))
	}
	if provider == nil {
		return nil, types.NewError(types.ErrInternalError,
			fmt.Sprintf("agent %s: nil provider", cfg.Type))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		cfg:          cfg,
		systemPrompt: systemPrompt,
		provider:     provider,
		logger:       logger,
	}, nil
}

// Type 返回 Agent 类型
func (a *Agent) Type() AgentType { return a.cfg.Type }

// Role 返回展示用角色名
func (a *Agent) Role() string { return a.cfg.Role }

// Model 返回 Agent 使用的模型
func (a *Agent) Model() string { return a.cfg.Model }

// Chat 发送一条消息并返回回复，历史由 Agent 自己维护。
func (a *Agent) Chat(ctx context.Context, message string) (string, error) {
	a.mu.Lock()
	history := make([]types.Message, len(a.history))
	copy(history, a.history)
	a.mu.Unlock()

	reply, err := a.complete(ctx, message, history)
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	a.history = append(a.history,
		types.NewUserMessage(message),
		types.NewAssistantMessage(reply).WithAgentType(string(a.cfg.Type)),
	)
	a.mu.Unlock()

	return reply, nil
}

// ChatWithHistory 使用外部传入的共享历史发送消息，不修改 Agent 自身历史。
// 供编排器在多 Agent 讨论中复用同一份上下文。
func (a *Agent) ChatWithHistory(ctx context.Context, message string, history []types.Message) (string, error) {
	return a.complete(ctx, message, history)
}

// ResetHistory 清空 Agent 自身的会话历史
func (a *Agent) ResetHistory() {
	a.mu.Lock()
	a.history = nil
	a.mu.Unlock()
}

// History 返回 Agent 自身会话历史的副本
func (a *Agent) History() []types.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]types.Message, len(a.history))
	copy(out, a.history)
	return out
}

// complete 组装 system + history + user 消息并调用 Provider。
func (a *Agent) complete(ctx context.Context, message string, history []types.Message) (string, error) {
	if a.cfg.TokenBudget > 0 {
		history = TrimToBudget(history, a.cfg.Model, a.cfg.TokenBudget)
	}

	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: a.systemPrompt})
	for _, m := range history {
		msgs = append(msgs, llm.Message{Role: llm.Role(m.Role), Content: m.Content})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: message})

	start := time.Now()
	resp, err := a.provider.Completion(ctx, &llm.ChatRequest{
		Model:       a.cfg.Model,
		AgentType:   string(a.cfg.Type),
		Messages:    msgs,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
	})
	if err != nil {
		a.logger.Warn("agent completion failed",
			zap.String("agent_type", string(a.cfg.Type)),
			zap.Error(err))
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", types.NewError(types.ErrUpstreamError,
			fmt.Sprintf("agent %s: provider returned no choices", a.cfg.Type))
	}

	a.logger.Debug("agent completion",
		zap.String("agent_type", string(a.cfg.Type)),
		zap.String("model", resp.Model),
		zap.Int("history_len", len(history)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("latency", time.Since(start)))

	return resp.Choices[0].Message.Content, nil
}
