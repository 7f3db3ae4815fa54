package orchestration

import (
	"testing"

	"github.com/agorahq/agora/agent"
	"github.com/agorahq/agora/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	provider := &scriptedProvider{}
	reg := agent.NewRegistry(nil, "", provider, nil)
	return NewManager(DefaultConfig(), reg, provider, nil)
}

func TestManager_Create(t *testing.T) {
	tests := []struct {
		name       string
		agentTypes []string
		mode       string
		wantErr    types.ErrorCode
	}{
		{
			name:       "round robin ok",
			agentTypes: []string{"junior_engineer", "product_manager"},
			mode:       "round_robin",
		},
		{
			name:       "adaptive ok",
			agentTypes: []string{"junior_engineer", "product_manager"},
			mode:       "adaptive",
		},
		{
			name:       "invalid mode",
			agentTypes: []string{"junior_engineer", "product_manager"},
			mode:       "free_for_all",
			wantErr:    types.ErrInvalidMode,
		},
		{
			name:       "too few agents",
			agentTypes: []string{"junior_engineer"},
			mode:       "round_robin",
			wantErr:    types.ErrNotEnoughAgents,
		},
		{
			name:       "unknown agent type",
			agentTypes: []string{"junior_engineer", "astrologer"},
			mode:       "round_robin",
			wantErr:    types.ErrAgentTypeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(t)
			orch, err := m.Create("s1", tt.agentTypes, tt.mode)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, types.GetErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "s1", orch.SessionID())
		})
	}
}

func TestManager_AdaptiveGetsLLMSelector(t *testing.T) {
	m := newTestManager(t)
	orch, err := m.Create("s1", []string{"junior_engineer", "product_manager"}, "adaptive")
	require.NoError(t, err)
	_, ok := orch.selector.(*LLMSelector)
	assert.True(t, ok)
}

func TestManager_Lifecycle(t *testing.T) {
	m := newTestManager(t)

	_, ok := m.Get("s1")
	assert.False(t, ok)

	orch, err := m.Create("s1", []string{"junior_engineer", "product_manager"}, "sequential")
	require.NoError(t, err)

	got, ok := m.Get("s1")
	require.True(t, ok)
	assert.Same(t, orch, got)
	assert.Equal(t, []string{"s1"}, m.Sessions())

	// Re-creating replaces the previous orchestrator.
	orch2, err := m.Create("s1", []string{"junior_engineer", "product_manager"}, "round_robin")
	require.NoError(t, err)
	got, _ = m.Get("s1")
	assert.Same(t, orch2, got)

	assert.True(t, m.Delete("s1"))
	assert.False(t, m.Delete("s1"))
	assert.Empty(t, m.Sessions())
}
