package discussion

import (
	"testing"
	"time"

	"github.com/agorahq/agora/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		{"pending to running", StatusPending, StatusRunning, true},
		{"pending to failed", StatusPending, StatusFailed, true},
		{"pending to completed", StatusPending, StatusCompleted, false},
		{"running to completed", StatusRunning, StatusCompleted, true},
		{"running to failed", StatusRunning, StatusFailed, true},
		{"running to pending", StatusRunning, StatusPending, false},
		{"completed is terminal", StatusCompleted, StatusRunning, false},
		{"failed is terminal", StatusFailed, StatusRunning, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestState_Transition_StampsTimestamps(t *testing.T) {
	state := &State{DiscussionID: "d1", Status: StatusPending, CreatedAt: time.Now().UTC()}

	require.NoError(t, state.Transition(StatusRunning, ""))
	require.NotNil(t, state.StartedAt)
	assert.Nil(t, state.CompletedAt)

	require.NoError(t, state.Transition(StatusCompleted, ""))
	require.NotNil(t, state.CompletedAt)
	assert.True(t, state.Status.Terminal())
}

func TestState_Transition_Invalid(t *testing.T) {
	state := &State{DiscussionID: "d1", Status: StatusCompleted}
	err := state.Transition(StatusRunning, "")
	require.Error(t, err)

	var domainErr *types.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, types.ErrInvalidTransition, domainErr.Code)
}

func TestState_Transition_FailureRecordsError(t *testing.T) {
	state := &State{DiscussionID: "d1", Status: StatusRunning}
	require.NoError(t, state.Transition(StatusFailed, "provider unavailable"))
	assert.Equal(t, "provider unavailable", state.Error)
	require.NotNil(t, state.CompletedAt)
}

func TestState_Clone_IsDeep(t *testing.T) {
	now := time.Now().UTC()
	state := &State{
		DiscussionID: "d1",
		AgentTypes:   []string{"junior_engineer", "product_manager"},
		Status:       StatusRunning,
		StartedAt:    &now,
	}

	clone := state.Clone()
	clone.AgentTypes[0] = "changed"
	*clone.StartedAt = now.Add(time.Hour)

	assert.Equal(t, "junior_engineer", state.AgentTypes[0])
	assert.True(t, state.StartedAt.Equal(now))
}

func TestEventType_Terminal(t *testing.T) {
	assert.True(t, EventDiscussionComplete.Terminal())
	assert.True(t, EventError.Terminal())
	assert.False(t, EventAgentResponse.Terminal())
	assert.False(t, EventRoundStart.Terminal())
}
