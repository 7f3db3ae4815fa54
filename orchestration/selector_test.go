package orchestration

import (
	"context"
	"testing"

	"github.com/agorahq/agora/agent"
	"github.com/agorahq/agora/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAgents(t *testing.T, provider llm.Provider) []*agent.Agent {
	t.Helper()
	reg := agent.NewRegistry(nil, "", provider, nil)
	je, err := reg.GetOrCreate("s1", agent.TypeJuniorEngineer)
	require.NoError(t, err)
	pm, err := reg.GetOrCreate("s1", agent.TypeProductManager)
	require.NoError(t, err)
	return []*agent.Agent{je, pm}
}

func TestRoundRobinSelector_CyclesInOrder(t *testing.T) {
	agents := testAgents(t, &scriptedProvider{})
	s := &RoundRobinSelector{}

	var picked []agent.AgentType
	for i := 0; i < 5; i++ {
		ag, err := s.SelectNext(context.Background(), agents, nil)
		require.NoError(t, err)
		picked = append(picked, ag.Type())
	}
	assert.Equal(t, []agent.AgentType{
		agent.TypeJuniorEngineer, agent.TypeProductManager,
		agent.TypeJuniorEngineer, agent.TypeProductManager,
		agent.TypeJuniorEngineer,
	}, picked)
}

func TestRoundRobinSelector_NoAgents(t *testing.T) {
	s := &RoundRobinSelector{}
	_, err := s.SelectNext(context.Background(), nil, nil)
	require.Error(t, err)
}

func TestLLMSelector_PicksNamedAgent(t *testing.T) {
	agents := testAgents(t, &scriptedProvider{})
	selectorLLM := &scriptedProvider{script: map[int]string{1: "product_manager"}}

	s := &LLMSelector{Provider: selectorLLM}
	ag, err := s.SelectNext(context.Background(), agents, nil)
	require.NoError(t, err)
	assert.Equal(t, agent.TypeProductManager, ag.Type())
}

func TestLLMSelector_FallbackOnError(t *testing.T) {
	agents := testAgents(t, &scriptedProvider{})
	selectorLLM := &scriptedProvider{failOn: 1}

	s := &LLMSelector{Provider: selectorLLM}
	ag, err := s.SelectNext(context.Background(), agents, nil)
	require.NoError(t, err)
	assert.Equal(t, agent.TypeJuniorEngineer, ag.Type(), "round-robin fallback starts at the first agent")
}

func TestLLMSelector_FallbackOnUnknownAnswer(t *testing.T) {
	agents := testAgents(t, &scriptedProvider{})
	selectorLLM := &scriptedProvider{script: map[int]string{1: "the moderator"}}

	s := &LLMSelector{Provider: selectorLLM}
	ag, err := s.SelectNext(context.Background(), agents, nil)
	require.NoError(t, err)
	assert.Equal(t, agent.TypeJuniorEngineer, ag.Type())
}

func TestLLMSelector_NilProviderFallsBack(t *testing.T) {
	agents := testAgents(t, &scriptedProvider{})
	s := &LLMSelector{}

	ag, err := s.SelectNext(context.Background(), agents, nil)
	require.NoError(t, err)
	assert.Equal(t, agent.TypeJuniorEngineer, ag.Type())
}
