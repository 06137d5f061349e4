package director

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/seankim-business/accord/internal/event"
	"github.com/seankim-business/accord/internal/kv"
	"github.com/seankim-business/accord/internal/logger"
	"github.com/seankim-business/accord/internal/negotiation"
	"github.com/seankim-business/accord/internal/state"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []event.Event
}

func (p *capturePublisher) Publish(_ context.Context, e event.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *capturePublisher) count(t event.Type) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

type fixture struct {
	engine  *Engine
	svc     *negotiation.Service
	machine *state.Machine
	store   kv.Store
	pub     *capturePublisher
}

func newFixture(t *testing.T, workloads StaticWorkloads) *fixture {
	t.Helper()
	store := kv.NewMemory()
	log := logger.New()
	log.SetLevel(logger.LevelError)
	machine := state.NewMachine(store, "accord", time.Hour, log)
	pub := &capturePublisher{}
	svc := negotiation.NewService(store, machine, pub, nil, nil, negotiation.Options{Prefix: "accord"}, log)
	engine := NewEngine(store, machine, pub, workloads, nil, "director-1", "accord", time.Hour, log)
	return &fixture{engine: engine, svc: svc, machine: machine, store: store, pub: pub}
}

// escalate seeds an escalation record the way a failed negotiation would.
func escalate(t *testing.T, f *fixture, id string, reason negotiation.Reason, responses []negotiation.Response) {
	t.Helper()
	req := negotiation.Request{
		ID:            id,
		RequesterID:   "agent-a",
		TargetAgentID: "agent-b",
		Urgency:       negotiation.UrgencyMedium,
	}
	if _, err := f.svc.Escalate(context.Background(), id, reason, req, responses); err != nil {
		t.Fatalf("Escalate() error = %v", err)
	}
}

func TestDecide_NotFound(t *testing.T) {
	f := newFixture(t, StaticWorkloads{})

	_, err := f.engine.Decide(context.Background(), "neg-missing")
	if !errors.Is(err, ErrEscalationNotFound) {
		t.Errorf("Decide() error = %v, want ErrEscalationNotFound", err)
	}
}

func TestDecide_TimeoutApprovesOriginal(t *testing.T) {
	f := newFixture(t, StaticWorkloads{})
	escalate(t, f, "neg-1", negotiation.ReasonTimeout, nil)

	dec, err := f.engine.Decide(context.Background(), "neg-1")
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if dec.Verdict != VerdictApproveOriginal {
		t.Errorf("verdict = %s, want approve_original", dec.Verdict)
	}
	if dec.DirectorID != "director-1" {
		t.Errorf("directorId = %s", dec.DirectorID)
	}
	if len(dec.NotifyAgents) != 2 {
		t.Errorf("notifyAgents = %v", dec.NotifyAgents)
	}
	if f.pub.count(event.TypeDirectorDecision) != 1 {
		t.Errorf("published %d DIRECTOR_DECISION events, want 1", f.pub.count(event.TypeDirectorDecision))
	}
}

func TestDecide_CounterAdopted(t *testing.T) {
	f := newFixture(t, StaticWorkloads{})
	escalate(t, f, "neg-2", negotiation.ReasonConflict, []negotiation.Response{{
		ResponderID: "agent-b",
		Decision:    negotiation.DecisionCounter,
		Counter:     map[string]string{"deadline": "friday"},
	}})

	dec, err := f.engine.Decide(context.Background(), "neg-2")
	if err != nil {
		t.Fatal(err)
	}
	if dec.Verdict != VerdictApproveCounter {
		t.Errorf("verdict = %s, want approve_counter", dec.Verdict)
	}
}

func TestDecide_RejectionWithCapacityOverruled(t *testing.T) {
	f := newFixture(t, StaticWorkloads{"agent-b": 0.2})
	escalate(t, f, "neg-3", negotiation.ReasonRejected, []negotiation.Response{{
		ResponderID: "agent-b",
		Decision:    negotiation.DecisionReject,
		Reason:      "overloaded",
	}})

	dec, err := f.engine.Decide(context.Background(), "neg-3")
	if err != nil {
		t.Fatal(err)
	}
	if dec.Verdict != VerdictApproveOriginal {
		t.Errorf("verdict = %s, want approve_original", dec.Verdict)
	}
	if !strings.Contains(dec.Rationale, "rejected: overloaded") {
		t.Errorf("rationale = %q, want rejection reason carried", dec.Rationale)
	}
}

func TestDecide_RejectionUnderLoadUpheld(t *testing.T) {
	f := newFixture(t, StaticWorkloads{"agent-b": 0.9})
	escalate(t, f, "neg-4", negotiation.ReasonRejected, []negotiation.Response{{
		ResponderID: "agent-b",
		Decision:    negotiation.DecisionReject,
		Reason:      "overloaded",
	}})

	dec, err := f.engine.Decide(context.Background(), "neg-4")
	if err != nil {
		t.Fatal(err)
	}
	if dec.Verdict != VerdictOverride {
		t.Errorf("verdict = %s, want override", dec.Verdict)
	}
}

func TestDecide_Idempotent(t *testing.T) {
	f := newFixture(t, StaticWorkloads{})
	escalate(t, f, "neg-5", negotiation.ReasonTimeout, nil)

	first, err := f.engine.Decide(context.Background(), "neg-5")
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.engine.Decide(context.Background(), "neg-5")
	if err != nil {
		t.Fatal(err)
	}

	if second.Verdict != first.Verdict || !second.DecidedAt.Equal(first.DecidedAt) {
		t.Errorf("repeat decision differs: %+v vs %+v", first, second)
	}
	if n := f.pub.count(event.TypeDirectorDecision); n != 1 {
		t.Errorf("published %d DIRECTOR_DECISION events, want 1", n)
	}
}

func TestExecute_MovesAgentsAndClearsPending(t *testing.T) {
	f := newFixture(t, StaticWorkloads{})
	ctx := context.Background()
	escalate(t, f, "neg-6", negotiation.ReasonTimeout, nil)

	dec, err := f.engine.Decide(ctx, "neg-6")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.engine.Execute(ctx, dec); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	for _, id := range []string{"agent-a", "agent-b"} {
		agent, _ := f.machine.State(ctx, id)
		if agent.State != state.StateExecutingDecision {
			t.Errorf("agent %s state = %s, want EXECUTING_DECISION", id, agent.State)
		}
		if len(agent.PendingDecisions) != 0 {
			t.Errorf("agent %s pendingDecisions = %v, want cleared", id, agent.PendingDecisions)
		}
	}

	// Redelivery is a no-op: the agents already left WAITING_DIRECTOR.
	if err := f.engine.Execute(ctx, dec); err != nil {
		t.Fatalf("repeat Execute() error = %v", err)
	}
	agent, _ := f.machine.State(ctx, "agent-a")
	if agent.State != state.StateExecutingDecision {
		t.Errorf("state after redelivery = %s", agent.State)
	}
}

func TestRedisWorkloads_Gauge(t *testing.T) {
	store := kv.NewMemory()
	ctx := context.Background()
	w := NewRedisWorkloads(store, "accord")

	if u, err := w.Utilization(ctx, "agent-x"); err != nil || u != 0 {
		t.Errorf("Utilization(absent) = (%v, %v), want (0, nil)", u, err)
	}

	_ = store.Set(ctx, "accord:agent:agent-x:workload", "0.65", time.Minute)
	if u, err := w.Utilization(ctx, "agent-x"); err != nil || u != 0.65 {
		t.Errorf("Utilization() = (%v, %v), want (0.65, nil)", u, err)
	}

	_ = store.Set(ctx, "accord:agent:agent-x:workload", "lots", time.Minute)
	if _, err := w.Utilization(ctx, "agent-x"); err == nil {
		t.Error("Utilization() accepted corrupt gauge")
	}
}
