package agent

import (
	"github.com/agorahq/agora/types"
	"github.com/pkoukk/tiktoken-go"
)

// perMessageOverhead approximates the chat-format framing tokens per message.
const perMessageOverhead = 4

// TrimToBudget drops the oldest messages until the history fits the token
// budget. The most recent messages are always preferred; a single oversized
// message is kept as-is rather than truncated mid-content.
func TrimToBudget(history []types.Message, model string, budget int) []types.Message {
	if budget <= 0 || len(history) == 0 {
		return history
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Unknown model name, fall back to the common chat encoding.
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return history
		}
	}

	total := 0
	keepFrom := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		cost := len(enc.Encode(history[i].Content, nil, nil)) + perMessageOverhead
		if total+cost > budget && keepFrom < len(history) {
			break
		}
		total += cost
		keepFrom = i
	}

	if keepFrom == 0 {
		return history
	}
	return history[keepFrom:]
}
