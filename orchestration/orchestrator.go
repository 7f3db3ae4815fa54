package orchestration

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/agorahq/agora/agent"
	"github.com/agorahq/agora/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/agorahq/agora/orchestration")

// Turn is one agent response within a discussion.
type Turn struct {
	AgentType agent.AgentType `json:"agent_type"`
	Role      string          `json:"role"`
	Round     int             `json:"round"`
	Response  string          `json:"response"`
	Elapsed   time.Duration   `json:"elapsed"`
}

// Hooks lets the caller observe a discussion as it runs. All hooks are
// optional and are invoked synchronously from the discussion goroutine.
type Hooks struct {
	OnRoundStart func(round int)
	OnThinking   func(agentType agent.AgentType, role string, round int)
	OnTurn       func(t Turn)
}

func (h Hooks) roundStart(round int) {
	if h.OnRoundStart != nil {
		h.OnRoundStart(round)
	}
}

func (h Hooks) thinking(agentType agent.AgentType, role string, round int) {
	if h.OnThinking != nil {
		h.OnThinking(agentType, role, round)
	}
}

func (h Hooks) turn(t Turn) {
	if h.OnTurn != nil {
		h.OnTurn(t)
	}
}

// Config tunes an orchestrated discussion.
type Config struct {
	// TerminationMarkers end an adaptive discussion early when a response
	// equals one of them (after trimming).
	TerminationMarkers []string `json:"termination_markers" yaml:"termination_markers"`

	// SelectorModel is the model used by the adaptive speaker selector.
	// Empty means the provider default.
	SelectorModel string `json:"selector_model" yaml:"selector_model"`
}

// DefaultConfig returns the default orchestration tuning.
func DefaultConfig() Config {
	return Config{
		TerminationMarkers: []string{"TERMINATE", "DONE"},
	}
}

// Orchestrator runs a multi-agent discussion over a shared conversation
// history. All agents see everything said before their turn.
type Orchestrator struct {
	sessionID  string
	mode       Mode
	cfg        Config
	agentTypes []agent.AgentType
	agents     []*agent.Agent
	selector   SpeakerSelector
	logger     *zap.Logger

	mu        sync.Mutex
	history   []types.Message
	roundsRun int
}

// New builds an orchestrator for the given session. Agent instances are
// resolved through the registry so they are shared with direct chat calls
// against the same session.
func New(sessionID string, agentTypes []agent.AgentType, mode Mode, cfg Config, reg *agent.Registry, selector SpeakerSelector, logger *zap.Logger) (*Orchestrator, error) {
	if len(agentTypes) < 2 {
		return nil, types.NewError(types.ErrNotEnoughAgents,
			"a discussion needs at least 2 agents")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	agents := make([]*agent.Agent, 0, len(agentTypes))
	seen := make(map[agent.AgentType]bool, len(agentTypes))
	for _, t := range agentTypes {
		if seen[t] {
			return nil, types.NewError(types.ErrInvalidRequest,
				fmt.Sprintf("duplicate agent type: %s", t))
		}
		seen[t] = true
		ag, err := reg.GetOrCreate(sessionID, t)
		if err != nil {
			return nil, err
		}
		agents = append(agents, ag)
	}

	if selector == nil {
		selector = &RoundRobinSelector{}
	}

	return &Orchestrator{
		sessionID:  sessionID,
		mode:       mode,
		cfg:        cfg,
		agentTypes: agentTypes,
		agents:     agents,
		selector:   selector,
		logger:     logger.With(zap.String("session_id", sessionID), zap.String("mode", string(mode))),
	}, nil
}

// SessionID returns the session this orchestrator belongs to.
func (o *Orchestrator) SessionID() string { return o.sessionID }

// Mode returns the orchestration mode.
func (o *Orchestrator) Mode() Mode { return o.mode }

// AgentTypes returns the participating agent types in turn order.
func (o *Orchestrator) AgentTypes() []agent.AgentType {
	out := make([]agent.AgentType, len(o.agentTypes))
	copy(out, o.agentTypes)
	return out
}

// AddInitialTask seeds the shared history with the task statement.
func (o *Orchestrator) AddInitialTask(task string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.history = append(o.history, types.NewUserMessage(fmt.Sprintf("[TASK] %s", task)))
}

// Run executes the discussion according to the orchestration mode and
// returns the turns taken. For sequential mode the rounds argument is
// ignored; every agent speaks exactly once.
func (o *Orchestrator) Run(ctx context.Context, rounds int, hooks Hooks) ([]Turn, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runLocked(ctx, rounds, hooks)
}

// Continue resumes a finished discussion with additional rounds. Round
// numbering carries on from where the previous run stopped.
func (o *Orchestrator) Continue(ctx context.Context, rounds int, hooks Hooks) ([]Turn, error) {
	return o.Run(ctx, rounds, hooks)
}

func (o *Orchestrator) runLocked(ctx context.Context, rounds int, hooks Hooks) ([]Turn, error) {
	switch o.mode {
	case ModeRoundRobin:
		return o.runRoundRobin(ctx, rounds, hooks)
	case ModeSequential:
		return o.runSequential(ctx, hooks)
	case ModeAdaptive:
		return o.runAdaptive(ctx, rounds, hooks)
	default:
		return nil, types.NewError(types.ErrInvalidMode,
			fmt.Sprintf("unknown orchestration mode: %q", o.mode))
	}
}

// runRoundRobin has every agent speak once per round, in order.
func (o *Orchestrator) runRoundRobin(ctx context.Context, rounds int, hooks Hooks) ([]Turn, error) {
	turns := make([]Turn, 0, rounds*len(o.agents))
	for r := 0; r < rounds; r++ {
		round := o.roundsRun + r + 1
		hooks.roundStart(round)
		for _, ag := range o.agents {
			prompt := fmt.Sprintf("Round %d: Share your perspective on this task.", round)
			turn, err := o.takeTurn(ctx, ag, round, prompt, hooks)
			if err != nil {
				return turns, err
			}
			turns = append(turns, turn)
		}
	}
	o.roundsRun += rounds
	return turns, nil
}

// runSequential is a single ordered pass; each agent sees all prior turns.
func (o *Orchestrator) runSequential(ctx context.Context, hooks Hooks) ([]Turn, error) {
	round := o.roundsRun + 1
	hooks.roundStart(round)
	turns := make([]Turn, 0, len(o.agents))
	for _, ag := range o.agents {
		turn, err := o.takeTurn(ctx, ag, round, "Share your perspective on this task.", hooks)
		if err != nil {
			return turns, err
		}
		turns = append(turns, turn)
	}
	o.roundsRun++
	return turns, nil
}

// runAdaptive lets the selector pick each speaker. The turn budget is
// rounds * number of agents; termination markers end the discussion early.
func (o *Orchestrator) runAdaptive(ctx context.Context, rounds int, hooks Hooks) ([]Turn, error) {
	maxTurns := rounds * len(o.agents)
	turns := make([]Turn, 0, maxTurns)
	for i := 0; i < maxTurns; i++ {
		round := o.roundsRun + i/len(o.agents) + 1
		if i%len(o.agents) == 0 {
			hooks.roundStart(round)
		}

		ag, err := o.selector.SelectNext(ctx, o.agents, o.history)
		if err != nil {
			return turns, types.NewError(types.ErrInternalError, "speaker selection failed").WithCause(err)
		}

		prompt := fmt.Sprintf("Round %d: Share your perspective on this task.", round)
		turn, err := o.takeTurn(ctx, ag, round, prompt, hooks)
		if err != nil {
			return turns, err
		}
		turns = append(turns, turn)

		if o.terminated(turn.Response) {
			o.logger.Info("discussion terminated by agent",
				zap.String("agent_type", string(ag.Type())),
				zap.Int("turn", i+1))
			break
		}
	}
	// Early termination may leave later rounds unstarted; count only the
	// rounds actually entered so Continue numbering stays accurate.
	o.roundsRun += (len(turns) + len(o.agents) - 1) / len(o.agents)
	return turns, nil
}

// takeTurn runs a single agent turn against the shared history and appends
// the labeled response to it.
func (o *Orchestrator) takeTurn(ctx context.Context, ag *agent.Agent, round int, prompt string, hooks Hooks) (Turn, error) {
	ctx, span := tracer.Start(ctx, "orchestration.turn")
	span.SetAttributes(
		attribute.String("session.id", o.sessionID),
		attribute.String("agent.type", string(ag.Type())),
		attribute.String("orchestration.mode", string(o.mode)),
		attribute.Int("discussion.round", round),
	)
	defer span.End()

	hooks.thinking(ag.Type(), ag.Role(), round)

	start := time.Now()
	response, err := ag.ChatWithHistory(ctx, prompt, o.history)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "agent turn failed")
		o.logger.Warn("agent turn failed",
			zap.String("agent_type", string(ag.Type())),
			zap.Int("round", round),
			zap.Error(err))
		return Turn{}, err
	}

	labeled := types.NewAssistantMessage(fmt.Sprintf("[%s]: %s", ag.Role(), response)).
		WithAgentType(string(ag.Type()))
	o.history = append(o.history, labeled)

	turn := Turn{
		AgentType: ag.Type(),
		Role:      ag.Role(),
		Round:     round,
		Response:  response,
		Elapsed:   time.Since(start),
	}
	hooks.turn(turn)
	return turn, nil
}

func (o *Orchestrator) terminated(response string) bool {
	trimmed := strings.TrimSpace(response)
	for _, marker := range o.cfg.TerminationMarkers {
		if trimmed == marker {
			return true
		}
	}
	return false
}

// History returns a copy of the shared conversation history.
func (o *Orchestrator) History() []types.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]types.Message, len(o.history))
	copy(out, o.history)
	return out
}

// RoundsRun returns how many rounds have completed so far.
func (o *Orchestrator) RoundsRun() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.roundsRun
}

// AgentInfo describes one discussion participant.
type AgentInfo struct {
	Type agent.AgentType `json:"type"`
	Role string          `json:"role"`
}

// Summary describes the orchestration session.
type Summary struct {
	SessionID     string            `json:"session_id"`
	AgentTypes    []agent.AgentType `json:"agent_types"`
	Mode          Mode              `json:"mode"`
	TotalMessages int               `json:"total_messages"`
	RoundsRun     int               `json:"rounds_run"`
	Agents        []AgentInfo       `json:"agents"`
}

// Summarize returns a snapshot of the session.
func (o *Orchestrator) Summarize() Summary {
	o.mu.Lock()
	defer o.mu.Unlock()
	agents := make([]AgentInfo, 0, len(o.agents))
	for _, ag := range o.agents {
		agents = append(agents, AgentInfo{Type: ag.Type(), Role: ag.Role()})
	}
	return Summary{
		SessionID:     o.sessionID,
		AgentTypes:    o.AgentTypes(),
		Mode:          o.mode,
		TotalMessages: len(o.history),
		RoundsRun:     o.roundsRun,
		Agents:        agents,
	}
}
