package agent

import (
	"testing"

	"github.com/agorahq/agora/types"
	"github.com/pkoukk/tiktoken-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trimTestModel maps to the cl100k_base encoding, matching msgCost below.
const trimTestModel = "gpt-3.5-turbo"

// msgCost mirrors the per-message accounting of TrimToBudget.
func msgCost(t *testing.T, content string) int {
	t.Helper()
	enc, err := tiktoken.GetEncoding("cl100k_base")
	require.NoError(t, err)
	return len(enc.Encode(content, nil, nil)) + perMessageOverhead
}

func TestTrimToBudget_EvictsOldestFirst(t *testing.T) {
	history := []types.Message{
		types.NewUserMessage("the very first message of a long discussion"),
		types.NewAssistantMessage("an early reply that should be evicted too"),
		types.NewUserMessage("a more recent question"),
		types.NewAssistantMessage("the newest answer"),
	}

	// Budget covers exactly the two newest messages.
	budget := msgCost(t, history[2].Content) + msgCost(t, history[3].Content)
	trimmed := TrimToBudget(history, trimTestModel, budget)

	require.Len(t, trimmed, 2)
	assert.Equal(t, history[2:], trimmed, "oldest messages go first, newest survive in order")

	// One token less and the second-newest no longer fits.
	trimmed = TrimToBudget(history, trimTestModel, budget-1)
	require.Len(t, trimmed, 1)
	assert.Equal(t, history[3:], trimmed)
}

func TestTrimToBudget_KeepsOversizedNewestMessage(t *testing.T) {
	history := []types.Message{
		types.NewUserMessage("older context"),
		types.NewAssistantMessage("a response far larger than any reasonable budget for this test"),
	}

	trimmed := TrimToBudget(history, trimTestModel, 1)

	require.Len(t, trimmed, 1, "the newest message is kept whole, never truncated")
	assert.Equal(t, history[1], trimmed[0])
}

func TestTrimToBudget_NoTrimWhenWithinBudget(t *testing.T) {
	history := []types.Message{
		types.NewUserMessage("short"),
		types.NewAssistantMessage("reply"),
	}

	budget := msgCost(t, history[0].Content) + msgCost(t, history[1].Content)
	assert.Equal(t, history, TrimToBudget(history, trimTestModel, budget))
}
