package orchestration

import (
	"fmt"
	"sort"
	"sync"

	"github.com/agorahq/agora/agent"
	"github.com/agorahq/agora/llm"
	"github.com/agorahq/agora/types"
	"go.uber.org/zap"
)

// Manager tracks one orchestrator per session and validates creation input.
type Manager struct {
	mu            sync.RWMutex
	orchestrators map[string]*Orchestrator

	cfg      Config
	registry *agent.Registry
	provider llm.Provider
	logger   *zap.Logger
}

// NewManager creates an orchestration manager. The provider is used by the
// adaptive mode's speaker selector.
func NewManager(cfg Config, registry *agent.Registry, provider llm.Provider, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		orchestrators: make(map[string]*Orchestrator),
		cfg:           cfg,
		registry:      registry,
		provider:      provider,
		logger:        logger,
	}
}

// Create validates the request and builds a new orchestrator for the
// session, replacing any previous one.
func (m *Manager) Create(sessionID string, agentTypes []string, mode string) (*Orchestrator, error) {
	parsedMode, err := ParseMode(mode)
	if err != nil {
		return nil, err
	}
	if len(agentTypes) < 2 {
		return nil, types.NewError(types.ErrNotEnoughAgents,
			"a discussion needs at least 2 agents")
	}

	typed := make([]agent.AgentType, 0, len(agentTypes))
	for _, t := range agentTypes {
		at := agent.AgentType(t)
		if !m.registry.Known(at) {
			return nil, types.NewError(types.ErrAgentTypeUnknown,
				fmt.Sprintf("unknown agent type: %s", t))
		}
		typed = append(typed, at)
	}

	var selector SpeakerSelector
	if parsedMode == ModeAdaptive {
		selector = &LLMSelector{
			Provider: m.provider,
			Model:    m.cfg.SelectorModel,
			Logger:   m.logger,
		}
	}

	orch, err := New(sessionID, typed, parsedMode, m.cfg, m.registry, selector, m.logger)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.orchestrators[sessionID] = orch
	m.mu.Unlock()

	m.logger.Info("orchestrator created",
		zap.String("session_id", sessionID),
		zap.String("mode", mode),
		zap.Strings("agent_types", agentTypes))
	return orch, nil
}

// Get returns the orchestrator for a session.
func (m *Manager) Get(sessionID string) (*Orchestrator, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	orch, ok := m.orchestrators[sessionID]
	return orch, ok
}

// Delete removes the orchestrator for a session.
func (m *Manager) Delete(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orchestrators[sessionID]; !ok {
		return false
	}
	delete(m.orchestrators, sessionID)
	return true
}

// Sessions returns the ids of all sessions with an orchestrator.
func (m *Manager) Sessions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.orchestrators))
	for id := range m.orchestrators {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
