package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/seankim-business/accord/internal/event"
	"github.com/seankim-business/accord/internal/kv"
	"github.com/seankim-business/accord/internal/logger"
)

// transitions is the fixed table of event-driven state changes. A (state,
// event) pair absent from this table is an invalid transition and is ignored.
var transitions = map[State]map[event.Type]State{
	StateIdle: {
		event.TypeTaskAssigned: StateWorking,
	},
	StateWorking: {
		event.TypeTaskBlocked:      StateSeekingHelp,
		event.TypeOverloadDetected: StateSeekingHelp,
		event.TypeTaskCompleted:    StateIdle,
	},
	StateSeekingHelp: {
		event.TypeNegotiationStarted: StateNegotiating,
		event.TypeBlockerResolved:    StateWorking,
	},
	StateNegotiating: {
		event.TypeNegotiationSucceeded: StateWorking,
		event.TypeNegotiationFailed:    StateWaitingDirector,
		event.TypeNegotiationTimeout:   StateWaitingDirector,
	},
	StateWaitingDirector: {
		event.TypeDirectorDecisionReceived: StateExecutingDecision,
		event.TypeHumanOverride:            StateExecutingDecision,
	},
	StateExecutingDecision: {
		event.TypeExecutionComplete: StateWorking,
		event.TypeExecutionFailed:   StateWaitingDirector,
	},
}

// IsValidTransition reports whether ev moves an agent out of s. Pure; usable
// to pre-check before side-effecting calls.
func IsValidTransition(s State, ev event.Type) bool {
	_, ok := transitions[s][ev]
	return ok
}

// NextState returns the state ev leads to from s, if the transition is valid.
func NextState(s State, ev event.Type) (State, bool) {
	next, ok := transitions[s][ev]
	return next, ok
}

// Machine validates and applies agent state transitions, persisting each
// resulting context to the shared store with a refreshed TTL.
type Machine struct {
	store  kv.Store
	prefix string
	ttl    time.Duration
	log    *logger.Logger
}

// NewMachine creates a state machine over the given store. Keys are written
// as <prefix>:agent:<id>:state with the given TTL.
func NewMachine(store kv.Store, prefix string, ttl time.Duration, log *logger.Logger) *Machine {
	if log == nil {
		log = logger.New()
	}
	return &Machine{
		store:  store,
		prefix: prefix,
		ttl:    ttl,
		log:    log.WithField("component", "state-machine"),
	}
}

func (m *Machine) key(agentID string) string {
	return fmt.Sprintf("%s:agent:%s:state", m.prefix, agentID)
}

// State returns the agent's coordination context, lazily initializing and
// persisting an IDLE default for unseen agents.
func (m *Machine) State(ctx context.Context, agentID string) (*Context, error) {
	raw, ok, err := m.store.Get(ctx, m.key(agentID))
	if err != nil {
		return nil, err
	}
	if !ok {
		fresh := newContext(agentID)
		if err := m.persist(ctx, fresh); err != nil {
			return nil, err
		}
		return fresh, nil
	}

	var agent Context
	if err := json.Unmarshal([]byte(raw), &agent); err != nil {
		return nil, fmt.Errorf("corrupt state for agent %s: %w", agentID, err)
	}
	return &agent, nil
}

// Transition applies ev to the agent's current state. An invalid (state,
// event) pair is logged and ignored, returning the unchanged context.
func (m *Machine) Transition(ctx context.Context, agentID string, ev event.Type, patch Patch) (*Context, error) {
	agent, err := m.State(ctx, agentID)
	if err != nil {
		return nil, err
	}

	next, ok := NextState(agent.State, ev)
	if !ok {
		m.log.Warn("invalid transition for agent %s: %s + %s", agentID, agent.State, ev)
		return agent, nil
	}

	agent.State = next
	patch.apply(agent)
	agent.LastStateChange = time.Now().UTC()

	if err := m.persist(ctx, agent); err != nil {
		return nil, err
	}
	m.log.Debug("agent %s -> %s on %s", agentID, next, ev)
	return agent, nil
}

// SetState forces the agent into the given state, bypassing the table. It is
// the escalation path's way of parking both negotiation parties in
// WAITING_DIRECTOR regardless of where they were.
func (m *Machine) SetState(ctx context.Context, agentID string, s State, patch Patch) (*Context, error) {
	agent, err := m.State(ctx, agentID)
	if err != nil {
		return nil, err
	}

	agent.State = s
	patch.apply(agent)
	agent.LastStateChange = time.Now().UTC()

	if err := m.persist(ctx, agent); err != nil {
		return nil, err
	}
	m.log.Debug("agent %s set to %s", agentID, s)
	return agent, nil
}

func (m *Machine) persist(ctx context.Context, agent *Context) error {
	data, err := json.Marshal(agent)
	if err != nil {
		return fmt.Errorf("marshal state for agent %s: %w", agent.AgentID, err)
	}
	return m.store.Set(ctx, m.key(agent.AgentID), string(data), m.ttl)
}
