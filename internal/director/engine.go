// Package director arbitrates escalated negotiations. Given the same
// escalation context and workload readings, the engine always produces the
// same decision, and each negotiation is decided exactly once.
package director

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/seankim-business/accord/internal/audit"
	"github.com/seankim-business/accord/internal/event"
	"github.com/seankim-business/accord/internal/kv"
	"github.com/seankim-business/accord/internal/logger"
	"github.com/seankim-business/accord/internal/negotiation"
	"github.com/seankim-business/accord/internal/state"
)

// ErrEscalationNotFound is returned when a decision is requested for a
// negotiation that was never escalated or whose escalation record expired.
var ErrEscalationNotFound = errors.New("escalation not found")

// Verdict is the director's ruling on an escalated negotiation.
type Verdict string

const (
	// VerdictApproveOriginal upholds the requester's original ask.
	VerdictApproveOriginal Verdict = "approve_original"
	// VerdictApproveCounter adopts the target's counter terms.
	VerdictApproveCounter Verdict = "approve_counter"
	// VerdictOverride sides with the target; the requester must find
	// another path.
	VerdictOverride Verdict = "override"
)

// Decision is the director's binding resolution, written once per
// negotiation and broadcast to the involved agents.
type Decision struct {
	NegotiationID string    `json:"negotiationId"`
	DirectorID    string    `json:"directorId"`
	Verdict       Verdict   `json:"decision"`
	Rationale     string    `json:"rationale"`
	DecidedAt     time.Time `json:"decidedAt"`
	NotifyAgents  []string  `json:"notifyAgents"`
}

// overloadThreshold is the utilization above which a rejection is treated as
// justified.
const overloadThreshold = 0.75

// WorkloadProvider reports an agent's current utilization in [0, 1].
type WorkloadProvider interface {
	Utilization(ctx context.Context, agentID string) (float64, error)
}

// RedisWorkloads reads utilization gauges that agents publish to the shared
// store under <prefix>:agent:<id>:workload. An absent gauge reads as 0.
type RedisWorkloads struct {
	store  kv.Store
	prefix string
}

// NewRedisWorkloads creates a workload provider over the shared store.
func NewRedisWorkloads(store kv.Store, prefix string) *RedisWorkloads {
	return &RedisWorkloads{store: store, prefix: prefix}
}

// Utilization returns the agent's published utilization gauge.
func (w *RedisWorkloads) Utilization(ctx context.Context, agentID string) (float64, error) {
	raw, ok, err := w.store.Get(ctx, fmt.Sprintf("%s:agent:%s:workload", w.prefix, agentID))
	if err != nil {
		return 0, fmt.Errorf("workload for %s: %w", agentID, err)
	}
	if !ok {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt workload gauge for %s: %w", agentID, err)
	}
	return v, nil
}

// StaticWorkloads serves fixed utilization values. Agents absent from the
// map read as 0.
type StaticWorkloads map[string]float64

// Utilization returns the fixed value for the agent.
func (w StaticWorkloads) Utilization(_ context.Context, agentID string) (float64, error) {
	return w[agentID], nil
}

// Engine resolves escalations into decisions.
type Engine struct {
	store       kv.Store
	machine     *state.Machine
	pub         event.Publisher
	workloads   WorkloadProvider
	aud         *audit.Recorder
	directorID  string
	prefix      string
	decisionTTL time.Duration
	log         *logger.Logger
}

// NewEngine wires a director engine. aud may be nil.
func NewEngine(store kv.Store, machine *state.Machine, pub event.Publisher, workloads WorkloadProvider, aud *audit.Recorder, directorID, prefix string, decisionTTL time.Duration, log *logger.Logger) *Engine {
	if directorID == "" {
		directorID = "director-1"
	}
	if prefix == "" {
		prefix = "accord"
	}
	if decisionTTL <= 0 {
		decisionTTL = time.Hour
	}
	if log == nil {
		log = logger.New()
	}
	return &Engine{
		store:       store,
		machine:     machine,
		pub:         pub,
		workloads:   workloads,
		aud:         aud,
		directorID:  directorID,
		prefix:      prefix,
		decisionTTL: decisionTTL,
		log:         log.WithField("component", "director"),
	}
}

// DecisionKey is the shared-store key holding the director's decision for a
// negotiation.
func DecisionKey(prefix, negotiationID string) string {
	return fmt.Sprintf("%s:decision:%s", prefix, negotiationID)
}

// Decide arbitrates the escalated negotiation and broadcasts the ruling. The
// first call wins: a repeat call for the same negotiation returns the stored
// decision without ruling or publishing again.
func (e *Engine) Decide(ctx context.Context, negotiationID string) (*Decision, error) {
	esc, ok, err := negotiation.LoadEscalation(ctx, e.store, e.prefix, negotiationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("negotiation %s: %w", negotiationID, ErrEscalationNotFound)
	}

	utilization := make(map[string]float64, len(esc.InvolvedAgentIDs))
	for _, agentID := range esc.InvolvedAgentIDs {
		agent, err := e.machine.State(ctx, agentID)
		if err != nil {
			return nil, fmt.Errorf("gather context for %s: %w", agentID, err)
		}
		u, err := e.workloads.Utilization(ctx, agentID)
		if err != nil {
			e.log.Warn("negotiation %s: workload read failed for %s: %v", negotiationID, agentID, err)
		}
		utilization[agentID] = u
		e.log.Debug("negotiation %s: agent %s state=%s utilization=%.2f", negotiationID, agentID, agent.State, u)
	}

	dec := e.rule(esc, utilization)

	data, err := json.Marshal(dec)
	if err != nil {
		return nil, fmt.Errorf("marshal decision: %w", err)
	}
	created, err := e.store.SetNX(ctx, DecisionKey(e.prefix, negotiationID), string(data), e.decisionTTL)
	if err != nil {
		return nil, err
	}
	if !created {
		// Another director (or a retry) got here first. The stored
		// decision is the binding one.
		stored, _, err := e.LoadDecision(ctx, negotiationID)
		if err != nil {
			return nil, err
		}
		e.log.Info("negotiation %s: already decided by %s", negotiationID, stored.DirectorID)
		return stored, nil
	}

	ev, err := event.New(negotiationID, event.TypeDirectorDecision, e.directorID, dec)
	if err != nil {
		return nil, err
	}
	ev = ev.WithPriority(event.PriorityHigh)
	if err := e.pub.Publish(ctx, ev); err != nil {
		return nil, fmt.Errorf("publish decision: %w", err)
	}

	e.aud.Record(ctx, audit.Entry{
		Kind:          "decision",
		NegotiationID: negotiationID,
		AgentIDs:      dec.NotifyAgents,
		Detail:        fmt.Sprintf("%s: %s", dec.Verdict, dec.Rationale),
	})

	e.log.Info("negotiation %s: decided %s (%s)", negotiationID, dec.Verdict, dec.Rationale)
	return dec, nil
}

// rule maps an escalation and the agents' workloads onto a verdict. Same
// inputs, same verdict.
func (e *Engine) rule(esc *negotiation.Escalation, utilization map[string]float64) *Decision {
	dec := &Decision{
		NegotiationID: esc.NegotiationID,
		DirectorID:    e.directorID,
		DecidedAt:     time.Now().UTC(),
		NotifyAgents:  esc.InvolvedAgentIDs,
	}

	switch esc.Reason {
	case negotiation.ReasonTimeout:
		dec.Verdict = VerdictApproveOriginal
		dec.Rationale = fmt.Sprintf("target %s did not respond within the negotiation window", esc.Request.TargetAgentID)

	case negotiation.ReasonConflict:
		dec.Verdict = VerdictApproveCounter
		dec.Rationale = fmt.Sprintf("counter terms from %s adopted", esc.Request.TargetAgentID)

	default: // rejected
		target := esc.Request.TargetAgentID
		if utilization[target] >= overloadThreshold {
			dec.Verdict = VerdictOverride
			dec.Rationale = fmt.Sprintf("rejection upheld, %s at %.0f%% utilization; requester must reassign", target, utilization[target]*100)
		} else {
			dec.Verdict = VerdictApproveOriginal
			dec.Rationale = fmt.Sprintf("rejection overruled, %s at %.0f%% utilization has capacity", target, utilization[target]*100)
		}
		if len(esc.Responses) > 0 && esc.Responses[0].Reason != "" {
			dec.Rationale = fmt.Sprintf("%s (rejected: %s)", dec.Rationale, esc.Responses[0].Reason)
		}
	}
	return dec
}

// LoadDecision reads the stored decision for a negotiation, if one exists.
func (e *Engine) LoadDecision(ctx context.Context, negotiationID string) (*Decision, bool, error) {
	raw, ok, err := e.store.Get(ctx, DecisionKey(e.prefix, negotiationID))
	if err != nil || !ok {
		return nil, false, err
	}
	var dec Decision
	if err := json.Unmarshal([]byte(raw), &dec); err != nil {
		return nil, false, fmt.Errorf("corrupt decision %s: %w", negotiationID, err)
	}
	return &dec, true, nil
}

// Execute moves every agent named by the decision out of WAITING_DIRECTOR
// into EXECUTING_DECISION, clearing the pending decision. Agents no longer
// waiting are left untouched, so repeated delivery of the same decision is
// harmless.
func (e *Engine) Execute(ctx context.Context, dec *Decision) error {
	for _, agentID := range dec.NotifyAgents {
		if _, err := e.machine.Transition(ctx, agentID, event.TypeDirectorDecisionReceived, state.Patch{
			RemovePendingDecisions: []string{dec.NegotiationID},
		}); err != nil {
			return fmt.Errorf("apply decision to %s: %w", agentID, err)
		}
	}
	e.log.Info("negotiation %s: decision %s applied to %v", dec.NegotiationID, dec.Verdict, dec.NotifyAgents)
	return nil
}
