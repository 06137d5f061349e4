package negotiation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/seankim-business/accord/internal/audit"
	"github.com/seankim-business/accord/internal/event"
	"github.com/seankim-business/accord/internal/kv"
	"github.com/seankim-business/accord/internal/logger"
	"github.com/seankim-business/accord/internal/notify"
	"github.com/seankim-business/accord/internal/state"
)

// Options bounds the negotiation protocol's waits and record lifetimes.
type Options struct {
	Prefix        string
	Timeout       time.Duration // response window
	PollInterval  time.Duration
	ResponseTTL   time.Duration
	EscalationTTL time.Duration
}

func (o *Options) fillDefaults() {
	if o.Prefix == "" {
		o.Prefix = "accord"
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 500 * time.Millisecond
	}
	if o.ResponseTTL <= 0 {
		o.ResponseTTL = 5 * time.Minute
	}
	if o.EscalationTTL <= 0 {
		o.EscalationTTL = time.Hour
	}
}

// Service orchestrates negotiations between two agents over the event
// channel and the shared store.
type Service struct {
	store   kv.Store
	machine *state.Machine
	pub     event.Publisher
	aud     *audit.Recorder
	sink    notify.Sink
	opts    Options
	log     *logger.Logger
}

// NewService wires a negotiation service. aud may be nil; sink may be nil
// (replaced with a no-op).
func NewService(store kv.Store, machine *state.Machine, pub event.Publisher, aud *audit.Recorder, sink notify.Sink, opts Options, log *logger.Logger) *Service {
	opts.fillDefaults()
	if sink == nil {
		sink = notify.Nop{}
	}
	if log == nil {
		log = logger.New()
	}
	return &Service{
		store:   store,
		machine: machine,
		pub:     pub,
		aud:     aud,
		sink:    sink,
		opts:    opts,
		log:     log.WithField("component", "negotiation"),
	}
}

// NewID generates a globally unique negotiation id. Ids are never reused.
func NewID() string {
	return fmt.Sprintf("neg-%d-%s", time.Now().UnixMilli(), uuid.New().String()[:8])
}

// Initiate starts a negotiation from one agent to another and waits for the
// outcome: the target's acceptance, or escalation on rejection, counter or
// timeout. The wait polls the shared store and never blocks event dispatch.
//
// If ctx is cancelled the caller stops waiting, but the negotiation keeps
// running to its own conclusion so it is never left orphaned: the response
// window still elapses, and escalation and state transitions still happen.
func (s *Service) Initiate(ctx context.Context, fromAgentID, toAgentID string, req Request) (*Result, error) {
	if req.ID == "" {
		req.ID = NewID()
	}
	req.RequesterID = fromAgentID
	req.TargetAgentID = toAgentID
	if req.Urgency == "" {
		req.Urgency = UrgencyMedium
	}
	req.CreatedAt = time.Now().UTC()

	if _, err := s.machine.Transition(ctx, fromAgentID, event.TypeNegotiationStarted, state.Patch{
		AddNegotiations: []string{req.ID},
	}); err != nil {
		return nil, fmt.Errorf("record negotiation start: %w", err)
	}

	e, err := event.New(req.ID, event.TypeNegotiationRequest, fromAgentID, req)
	if err != nil {
		return nil, err
	}
	e = e.WithPriority(priorityFor(req.Urgency)).WithState(string(state.StateNegotiating)).WithTask(req.TaskID)
	if err := s.pub.Publish(ctx, e); err != nil {
		return nil, fmt.Errorf("publish negotiation request: %w", err)
	}

	s.log.Info("negotiation %s: %s -> %s (urgency=%s)", req.ID, fromAgentID, toAgentID, req.Urgency)

	type outcome struct {
		result *Result
		err    error
	}
	done := make(chan outcome, 1)

	// Detached so an abandoned caller does not cancel the protocol.
	waitCtx := context.WithoutCancel(ctx)
	go func() {
		res, err := s.await(waitCtx, req)
		done <- outcome{res, err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		s.log.Warn("negotiation %s: caller abandoned wait, resolution continues", req.ID)
		return nil, ctx.Err()
	}
}

// await polls for the target's response until the window closes.
func (s *Service) await(ctx context.Context, req Request) (*Result, error) {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(s.opts.Timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ticker.C:
			resp, ok := s.loadResponse(ctx, req.ID)
			if !ok {
				continue
			}
			return s.settle(ctx, req, resp)
		case <-deadline.C:
			s.log.Warn("negotiation %s: no response within %s", req.ID, s.opts.Timeout)
			return s.Escalate(ctx, req.ID, ReasonTimeout, req, nil)
		}
	}
}

// settle resolves a received response into an outcome.
func (s *Service) settle(ctx context.Context, req Request, resp *Response) (*Result, error) {
	switch resp.Decision {
	case DecisionAccept:
		if _, err := s.machine.Transition(ctx, req.RequesterID, event.TypeNegotiationSucceeded, state.Patch{
			RemoveNegotiations: []string{req.ID},
		}); err != nil {
			return nil, err
		}
		s.log.Info("negotiation %s: accepted by %s", req.ID, resp.ResponderID)
		return &Result{
			NegotiationID: req.ID,
			Success:       true,
			Message:       "negotiation accepted",
			Agreement:     resp,
		}, nil

	case DecisionCounter:
		// Single counter round in v1: a counter is a conflict for the
		// director to resolve.
		return s.Escalate(ctx, req.ID, ReasonConflict, req, []Response{*resp})

	default: // reject
		return s.Escalate(ctx, req.ID, ReasonRejected, req, []Response{*resp})
	}
}

func (s *Service) loadResponse(ctx context.Context, negotiationID string) (*Response, bool) {
	raw, ok, err := s.store.Get(ctx, ResponseKey(s.opts.Prefix, negotiationID))
	if err != nil {
		s.log.Warn("negotiation %s: response poll failed: %v", negotiationID, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var resp Response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		s.log.Warn("negotiation %s: corrupt response dropped: %v", negotiationID, err)
		return nil, false
	}
	return &resp, true
}

// Respond is the callee's entry point. It stores the response for the
// requester's poll to pick up and publishes it for observers. The store
// keeps only the latest response per negotiation id.
func (s *Service) Respond(ctx context.Context, negotiationID string, resp Response) error {
	switch resp.Decision {
	case DecisionAccept, DecisionReject, DecisionCounter:
	default:
		return fmt.Errorf("invalid decision %q", resp.Decision)
	}
	resp.RespondedAt = time.Now().UTC()

	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	if err := s.store.Set(ctx, ResponseKey(s.opts.Prefix, negotiationID), string(data), s.opts.ResponseTTL); err != nil {
		return err
	}

	e, err := event.New(negotiationID, event.TypeNegotiationResponse, resp.ResponderID, resp)
	if err != nil {
		return err
	}
	if err := s.pub.Publish(ctx, e); err != nil {
		return fmt.Errorf("publish negotiation response: %w", err)
	}

	s.log.Info("negotiation %s: %s responded %s", negotiationID, resp.ResponderID, resp.Decision)
	return nil
}

// Escalate persists an escalation context for the director, parks both
// agents in WAITING_DIRECTOR with the pending decision recorded, and
// notifies observers. A negotiation that reaches this point never silently
// disappears.
func (s *Service) Escalate(ctx context.Context, negotiationID string, reason Reason, req Request, responses []Response) (*Result, error) {
	esc := Escalation{
		NegotiationID:    negotiationID,
		Reason:           reason,
		InvolvedAgentIDs: []string{req.RequesterID, req.TargetAgentID},
		Request:          req,
		Responses:        responses,
		EscalatedAt:      time.Now().UTC(),
	}

	data, err := json.Marshal(esc)
	if err != nil {
		return nil, fmt.Errorf("marshal escalation: %w", err)
	}
	if err := s.store.Set(ctx, EscalationKey(s.opts.Prefix, negotiationID), string(data), s.opts.EscalationTTL); err != nil {
		return nil, err
	}

	for _, agentID := range esc.InvolvedAgentIDs {
		if _, err := s.machine.SetState(ctx, agentID, state.StateWaitingDirector, state.Patch{
			AddPendingDecisions: []string{negotiationID},
			RemoveNegotiations:  []string{negotiationID},
		}); err != nil {
			return nil, fmt.Errorf("park agent %s: %w", agentID, err)
		}
	}

	e, err := event.New(negotiationID, event.TypeEscalatedToDirector, req.RequesterID, esc)
	if err != nil {
		return nil, err
	}
	e = e.WithPriority(event.PriorityHigh).WithState(string(state.StateWaitingDirector))
	if err := s.pub.Publish(ctx, e); err != nil {
		return nil, fmt.Errorf("publish escalation: %w", err)
	}

	s.aud.Record(ctx, audit.Entry{
		Kind:          "escalation",
		NegotiationID: negotiationID,
		AgentIDs:      esc.InvolvedAgentIDs,
		Detail:        string(reason),
	})
	s.sink.Notify(ctx, notify.Notification{
		Kind:          "escalation",
		NegotiationID: negotiationID,
		AgentIDs:      esc.InvolvedAgentIDs,
		Message:       fmt.Sprintf("negotiation escalated to director: %s", reason),
	})

	s.log.Warn("negotiation %s: escalated (%s)", negotiationID, reason)
	return &Result{
		NegotiationID: negotiationID,
		Success:       false,
		Escalated:     true,
		Message:       fmt.Sprintf("negotiation escalated to director: %s", reason),
	}, nil
}

// LoadEscalation reads the escalation context for a negotiation, if one
// exists.
func (s *Service) LoadEscalation(ctx context.Context, negotiationID string) (*Escalation, bool, error) {
	return LoadEscalation(ctx, s.store, s.opts.Prefix, negotiationID)
}

// LoadEscalation reads an escalation context from the shared store.
func LoadEscalation(ctx context.Context, store kv.Store, prefix, negotiationID string) (*Escalation, bool, error) {
	raw, ok, err := store.Get(ctx, EscalationKey(prefix, negotiationID))
	if err != nil || !ok {
		return nil, false, err
	}
	var esc Escalation
	if err := json.Unmarshal([]byte(raw), &esc); err != nil {
		return nil, false, fmt.Errorf("corrupt escalation %s: %w", negotiationID, err)
	}
	return &esc, true, nil
}
