// Package orchestration coordinates multi-agent discussions: turn order,
// shared conversation history and round tracking.
package orchestration

import (
	"fmt"

	"github.com/agorahq/agora/types"
)

// Mode defines how agents take turns in a discussion.
type Mode string

const (
	// ModeRoundRobin runs a fixed number of rounds; every agent speaks once
	// per round in registration order.
	ModeRoundRobin Mode = "round_robin"

	// ModeSequential runs a single pass; every agent speaks exactly once and
	// sees everything said before its turn.
	ModeSequential Mode = "sequential"

	// ModeAdaptive lets a speaker selector pick the next agent each turn,
	// bounded by a turn budget and termination markers.
	ModeAdaptive Mode = "adaptive"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeRoundRobin, ModeSequential, ModeAdaptive:
		return Mode(s), nil
	default:
		return "", types.NewError(types.ErrInvalidMode,
			fmt.Sprintf("unknown orchestration mode: %q", s))
	}
}

// Modes returns all supported modes.
func Modes() []Mode {
	return []Mode{ModeRoundRobin, ModeSequential, ModeAdaptive}
}
