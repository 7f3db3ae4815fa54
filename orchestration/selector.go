package orchestration

import (
	"context"
	"fmt"
	"strings"

	"github.com/agorahq/agora/agent"
	"github.com/agorahq/agora/llm"
	"github.com/agorahq/agora/types"
	"go.uber.org/zap"
)

// SpeakerSelector selects the next speaker for adaptive discussions.
type SpeakerSelector interface {
	SelectNext(ctx context.Context, agents []*agent.Agent, history []types.Message) (*agent.Agent, error)
}

// RoundRobinSelector selects agents in order.
type RoundRobinSelector struct {
	current int
}

func (s *RoundRobinSelector) SelectNext(_ context.Context, agents []*agent.Agent, _ []types.Message) (*agent.Agent, error) {
	if len(agents) == 0 {
		return nil, fmt.Errorf("no agents available")
	}
	ag := agents[s.current%len(agents)]
	s.current++
	return ag, nil
}

// selectorHistoryTail bounds how much conversation the selector model sees.
const selectorHistoryTail = 6

// LLMSelector asks a model to pick the next speaker based on the discussion
// so far. Any failure or unparseable answer falls back to round-robin so a
// selector outage never stalls a discussion.
type LLMSelector struct {
	Provider llm.Provider
	Model    string
	Logger   *zap.Logger

	fallback RoundRobinSelector
}

func (s *LLMSelector) SelectNext(ctx context.Context, agents []*agent.Agent, history []types.Message) (*agent.Agent, error) {
	if len(agents) == 0 {
		return nil, fmt.Errorf("no agents available")
	}
	if s.Provider == nil {
		return s.fallback.SelectNext(ctx, agents, history)
	}

	resp, err := s.Provider.Completion(ctx, &llm.ChatRequest{
		Model: s.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: s.buildPrompt(agents, history)},
			{Role: llm.RoleUser, Content: "Who should speak next? Answer with the agent type only."},
		},
		MaxTokens:   16,
		Temperature: 0,
	})
	if err != nil || len(resp.Choices) == 0 {
		if s.Logger != nil {
			s.Logger.Warn("speaker selection via llm failed, falling back to round-robin", zap.Error(err))
		}
		return s.fallback.SelectNext(ctx, agents, history)
	}

	answer := strings.ToLower(strings.TrimSpace(resp.Choices[0].Message.Content))
	for _, ag := range agents {
		if strings.Contains(answer, string(ag.Type())) {
			// Keep the fallback cursor moving so a later fallback does not
			// hand the turn straight back to the same agent.
			s.fallback.current++
			return ag, nil
		}
	}

	if s.Logger != nil {
		s.Logger.Warn("speaker selection returned no known agent type, falling back to round-robin",
			zap.String("answer", answer))
	}
	return s.fallback.SelectNext(ctx, agents, history)
}

func (s *LLMSelector) buildPrompt(agents []*agent.Agent, history []types.Message) string {
	var b strings.Builder
	b.WriteString("You moderate a multi-agent discussion. Participants:\n")
	for _, ag := range agents {
		fmt.Fprintf(&b, "- %s (%s)\n", ag.Type(), ag.Role())
	}
	b.WriteString("\nRecent discussion:\n")
	start := len(history) - selectorHistoryTail
	if start < 0 {
		start = 0
	}
	for _, m := range history[start:] {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	b.WriteString("\nPick the participant whose perspective would add the most next.")
	return b.String()
}
