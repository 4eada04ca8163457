package matrix

import (
	"go.uber.org/zap"

	"webqa/internal/target"
)

type state int

const (
	statePending state = iota
	stateLoading
	stateLoadFailed
	stateLoaded
	stateInteracting
	stateConsoleCheck
	stateDone
)

func (s state) String() string {
	switch s {
	case statePending:
		return "PENDING"
	case stateLoading:
		return "LOADING"
	case stateLoadFailed:
		return "LOAD_FAILED"
	case stateLoaded:
		return "LOADED"
	case stateInteracting:
		return "INTERACTING"
	case stateConsoleCheck:
		return "CONSOLE_CHECK"
	case stateDone:
		return "DONE"
	}
	return "UNKNOWN"
}

// transitions lists the legal successors of each state.
var transitions = map[state][]state{
	statePending:      {stateLoading},
	stateLoading:      {stateLoadFailed, stateLoaded},
	stateLoadFailed:   {stateDone},
	stateLoaded:       {stateInteracting},
	stateInteracting:  {stateConsoleCheck},
	stateConsoleCheck: {stateDone},
}

// run tracks one engine's progress through the protocol.
type run struct {
	target  target.Target
	log     *zap.Logger
	state   state
	history []state
}

func (r *run) to(next state) {
	legal := false
	for _, s := range transitions[r.state] {
		if s == next {
			legal = true
			break
		}
	}
	if !legal {
		r.log.DPanic("illegal state transition", zap.Stringer("from", r.state), zap.Stringer("to", next))
	}
	r.log.Debug("state", zap.Stringer("from", r.state), zap.Stringer("to", next))
	r.history = append(r.history, next)
	r.state = next
}
