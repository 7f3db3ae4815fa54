package agent

import (
	"fmt"
	"sort"
	"sync"

	"github.com/agorahq/agora/llm"
	"github.com/agorahq/agora/types"
	"go.uber.org/zap"
)

// Registry manages agent instances keyed by (session, agent type).
// Each session gets its own agent instances so conversation histories
// never leak across sessions.
type Registry struct {
	mu        sync.RWMutex
	catalog   map[AgentType]Config
	instances map[string]map[AgentType]*Agent // session id -> type -> agent

	promptsDir string
	provider   llm.Provider
	logger     *zap.Logger
}

// NewRegistry creates a registry backed by the given persona catalog.
// A nil catalog falls back to DefaultCatalog.
func NewRegistry(catalog map[AgentType]Config, promptsDir string, provider llm.Provider, logger *zap.Logger) *Registry {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		catalog:    catalog,
		instances:  make(map[string]map[AgentType]*Agent),
		promptsDir: promptsDir,
		provider:   provider,
		logger:     logger,
	}
}

// AvailableTypes returns the sorted list of known agent types.
func (r *Registry) AvailableTypes() []AgentType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]AgentType, 0, len(r.catalog))
	for t := range r.catalog {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Known reports whether the agent type exists in the catalog.
func (r *Registry) Known(agentType AgentType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.catalog[agentType]
	return ok
}

// PersonaConfig returns the catalog entry for an agent type.
func (r *Registry) PersonaConfig(agentType AgentType) (Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.catalog[agentType]
	return cfg, ok
}

// GetOrCreate returns the session-scoped agent instance for the given type,
// creating it on first use.
func (r *Registry) GetOrCreate(sessionID string, agentType AgentType) (*Agent, error) {
	r.mu.RLock()
	if session, ok := r.instances[sessionID]; ok {
		if ag, ok := session[agentType]; ok {
			r.mu.RUnlock()
			return ag, nil
		}
	}
	cfg, known := r.catalog[agentType]
	r.mu.RUnlock()

	if !known {
		return nil, types.NewError(types.ErrAgentTypeUnknown,
			fmt.Sprintf("unknown agent type: %s", agentType))
	}

	prompt, err := LoadPrompt(r.promptsDir, cfg.PromptFile)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, err.Error()).WithCause(err)
	}

	ag, err := New(cfg, prompt, r.provider, r.logger.With(
		zap.String("session_id", sessionID),
		zap.String("agent_type", string(agentType)),
	))
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Re-check after acquiring the write lock; another goroutine may have won.
	if session, ok := r.instances[sessionID]; ok {
		if existing, ok := session[agentType]; ok {
			return existing, nil
		}
	} else {
		r.instances[sessionID] = make(map[AgentType]*Agent)
	}
	r.instances[sessionID][agentType] = ag

	r.logger.Debug("agent instance created",
		zap.String("session_id", sessionID),
		zap.String("agent_type", string(agentType)))
	return ag, nil
}

// Lookup returns the session-scoped agent instance if it already exists.
// Unlike GetOrCreate it never instantiates a new agent.
func (r *Registry) Lookup(sessionID string, agentType AgentType) (*Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.instances[sessionID]
	if !ok {
		return nil, false
	}
	ag, ok := session[agentType]
	return ag, ok
}

// SessionExists reports whether any agent instance exists for the session.
func (r *Registry) SessionExists(sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.instances[sessionID]
	return ok
}

// Sessions returns the ids of all sessions with live agent instances.
func (r *Registry) Sessions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.instances))
	for id := range r.instances {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SessionAgents returns the agent types instantiated in a session.
func (r *Registry) SessionAgents(sessionID string) []AgentType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.instances[sessionID]
	if !ok {
		return nil
	}
	out := make([]AgentType, 0, len(session))
	for t := range session {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ResetSession clears the conversation history of every agent in a session.
func (r *Registry) ResetSession(sessionID string) bool {
	r.mu.RLock()
	session, ok := r.instances[sessionID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	for _, ag := range session {
		ag.ResetHistory()
	}
	return true
}

// DeleteSession removes all agent instances for a session.
func (r *Registry) DeleteSession(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.instances[sessionID]; !ok {
		return false
	}
	delete(r.instances, sessionID)
	return true
}
