// Package discussion tracks the lifecycle of orchestrated multi-agent
// discussions and streams their events to subscribers.
package discussion

import (
	"fmt"
	"time"

	"github.com/agorahq/agora/types"
)

// Status is the lifecycle state of a discussion.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// validTransitions encodes the lifecycle state machine:
// pending -> running | failed, running -> completed | failed.
var validTransitions = map[Status][]Status{
	StatusPending: {StatusRunning, StatusFailed},
	StatusRunning: {StatusCompleted, StatusFailed},
}

// CanTransitionTo reports whether the transition is allowed.
func (s Status) CanTransitionTo(next Status) bool {
	for _, t := range validTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// EventType classifies discussion events.
type EventType string

const (
	EventDiscussionStart    EventType = "discussion_start"
	EventRoundStart         EventType = "round_start"
	EventAgentThinking      EventType = "agent_thinking"
	EventAgentResponse      EventType = "agent_response"
	EventDiscussionComplete EventType = "discussion_complete"
	EventError              EventType = "error"
)

// Terminal reports whether the event ends the stream for subscribers.
func (t EventType) Terminal() bool {
	return t == EventDiscussionComplete || t == EventError
}

// Event is a single entry in a discussion's event stream. Sequence is
// assigned by the hub and is strictly increasing per discussion.
type Event struct {
	Sequence     int            `json:"sequence"`
	Type         EventType      `json:"event_type"`
	DiscussionID string         `json:"discussion_id"`
	Timestamp    time.Time      `json:"timestamp"`
	Data         map[string]any `json:"data"`
}

// State tracks one discussion's lifecycle and metadata.
type State struct {
	DiscussionID string     `json:"discussion_id"`
	SessionID    string     `json:"session_id"`
	Task         string     `json:"task"`
	AgentTypes   []string   `json:"agent_types"`
	Mode         string     `json:"mode"`
	Rounds       int        `json:"rounds"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Error        string     `json:"error,omitempty"`
	EventCount   int        `json:"event_count"`
}

// Transition moves the state to the next status, stamping the lifecycle
// timestamps. Invalid transitions are rejected.
func (s *State) Transition(next Status, errMsg string) error {
	if !s.Status.CanTransitionTo(next) {
		return types.NewError(types.ErrInvalidTransition,
			fmt.Sprintf("cannot transition discussion %s from %s to %s", s.DiscussionID, s.Status, next))
	}
	now := time.Now().UTC()
	s.Status = next
	switch {
	case next == StatusRunning && s.StartedAt == nil:
		s.StartedAt = &now
	case next.Terminal():
		s.CompletedAt = &now
	}
	if errMsg != "" {
		s.Error = errMsg
	}
	return nil
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	out := *s
	out.AgentTypes = append([]string(nil), s.AgentTypes...)
	if s.StartedAt != nil {
		t := *s.StartedAt
		out.StartedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}
