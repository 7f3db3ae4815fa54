package agent

import (
	"context"
	"testing"

	"github.com/agorahq/agora/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*Registry, *mockProvider) {
	t.Helper()
	mp := &mockProvider{}
	return NewRegistry(nil, "", mp, nil), mp
}

func TestRegistry_AvailableTypes(t *testing.T) {
	reg, _ := newTestRegistry(t)
	assert.Equal(t, []AgentType{TypeJuniorEngineer, TypeProductManager}, reg.AvailableTypes())
	assert.True(t, reg.Known(TypeProductManager))
	assert.False(t, reg.Known("astrologer"))
}

func TestRegistry_GetOrCreate_SameInstancePerSession(t *testing.T) {
	reg, _ := newTestRegistry(t)

	a1, err := reg.GetOrCreate("s1", TypeJuniorEngineer)
	require.NoError(t, err)
	a2, err := reg.GetOrCreate("s1", TypeJuniorEngineer)
	require.NoError(t, err)
	assert.Same(t, a1, a2)

	other, err := reg.GetOrCreate("s2", TypeJuniorEngineer)
	require.NoError(t, err)
	assert.NotSame(t, a1, other, "sessions must not share agent instances")
}

func TestRegistry_GetOrCreate_UnknownType(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := reg.GetOrCreate("s1", "astrologer")
	require.Error(t, err)
	assert.Equal(t, types.ErrAgentTypeUnknown, types.GetErrorCode(err))
}

func TestRegistry_SessionLifecycle(t *testing.T) {
	reg, _ := newTestRegistry(t)

	assert.False(t, reg.SessionExists("s1"))
	_, err := reg.GetOrCreate("s1", TypeJuniorEngineer)
	require.NoError(t, err)
	_, err = reg.GetOrCreate("s1", TypeProductManager)
	require.NoError(t, err)

	assert.True(t, reg.SessionExists("s1"))
	assert.Equal(t, []string{"s1"}, reg.Sessions())
	assert.Equal(t, []AgentType{TypeJuniorEngineer, TypeProductManager}, reg.SessionAgents("s1"))

	assert.True(t, reg.DeleteSession("s1"))
	assert.False(t, reg.SessionExists("s1"))
	assert.False(t, reg.DeleteSession("s1"))
}

func TestRegistry_ResetSession(t *testing.T) {
	reg, _ := newTestRegistry(t)

	ag, err := reg.GetOrCreate("s1", TypeJuniorEngineer)
	require.NoError(t, err)
	_, err = ag.Chat(context.Background(), "hello")
	require.NoError(t, err)
	require.NotEmpty(t, ag.History())

	assert.True(t, reg.ResetSession("s1"))
	assert.Empty(t, ag.History())
	assert.False(t, reg.ResetSession("missing"))
}

func TestRegistry_Lookup(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, ok := reg.Lookup("s1", TypeJuniorEngineer)
	assert.False(t, ok)

	created, err := reg.GetOrCreate("s1", TypeJuniorEngineer)
	require.NoError(t, err)

	found, ok := reg.Lookup("s1", TypeJuniorEngineer)
	assert.True(t, ok)
	assert.Same(t, created, found)

	// Lookup never instantiates.
	_, ok = reg.Lookup("s1", TypeProductManager)
	assert.False(t, ok)
	assert.Equal(t, []AgentType{TypeJuniorEngineer}, reg.SessionAgents("s1"))
}
