package state

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/seankim-business/accord/internal/event"
	"github.com/seankim-business/accord/internal/kv"
	"github.com/seankim-business/accord/internal/logger"
)

func testMachine(buf *bytes.Buffer) (*Machine, kv.Store) {
	store := kv.NewMemory()
	log := logger.New()
	if buf != nil {
		log.SetOutput(buf)
	}
	log.SetLevel(logger.LevelDebug)
	return NewMachine(store, "accord", time.Hour, log), store
}

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		state State
		ev    event.Type
		want  bool
	}{
		{StateIdle, event.TypeTaskAssigned, true},
		{StateIdle, event.TypeNegotiationStarted, false},
		{StateWorking, event.TypeTaskBlocked, true},
		{StateWorking, event.TypeOverloadDetected, true},
		{StateWorking, event.TypeTaskCompleted, true},
		{StateSeekingHelp, event.TypeNegotiationStarted, true},
		{StateSeekingHelp, event.TypeBlockerResolved, true},
		{StateNegotiating, event.TypeNegotiationSucceeded, true},
		{StateNegotiating, event.TypeNegotiationFailed, true},
		{StateNegotiating, event.TypeNegotiationTimeout, true},
		{StateNegotiating, event.TypeTaskAssigned, false},
		{StateWaitingDirector, event.TypeDirectorDecisionReceived, true},
		{StateWaitingDirector, event.TypeHumanOverride, true},
		{StateWaitingDirector, event.TypeNegotiationSucceeded, false},
		{StateExecutingDecision, event.TypeExecutionComplete, true},
		{StateExecutingDecision, event.TypeExecutionFailed, true},
		{StateExecutingDecision, event.TypeTaskBlocked, false},
	}

	for _, tt := range tests {
		if got := IsValidTransition(tt.state, tt.ev); got != tt.want {
			t.Errorf("IsValidTransition(%s, %s) = %v, want %v", tt.state, tt.ev, got, tt.want)
		}
	}
}

func TestState_LazyDefault(t *testing.T) {
	m, store := testMachine(nil)
	ctx := context.Background()

	agent, err := m.State(ctx, "never-seen")
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}
	if agent.State != StateIdle {
		t.Errorf("state = %s, want IDLE", agent.State)
	}
	if agent.ActiveNegotiations == nil || len(agent.ActiveNegotiations) != 0 {
		t.Errorf("activeNegotiations = %v, want empty set", agent.ActiveNegotiations)
	}
	if agent.PendingDecisions == nil || len(agent.PendingDecisions) != 0 {
		t.Errorf("pendingDecisions = %v, want empty set", agent.PendingDecisions)
	}

	// The default must have been persisted.
	_, ok, err := store.Get(ctx, "accord:agent:never-seen:state")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("lazy default was not persisted")
	}
}

func TestTransition_Valid(t *testing.T) {
	m, _ := testMachine(nil)
	ctx := context.Background()

	agent, err := m.Transition(ctx, "agent-a", event.TypeTaskAssigned, Patch{
		CurrentTask: StringPtr("task-1"),
	})
	if err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if agent.State != StateWorking {
		t.Errorf("state = %s, want WORKING", agent.State)
	}
	if agent.CurrentTask != "task-1" {
		t.Errorf("currentTask = %s", agent.CurrentTask)
	}
	if agent.LastStateChange.IsZero() {
		t.Error("lastStateChange not stamped")
	}

	// Persisted state is visible on re-read.
	again, _ := m.State(ctx, "agent-a")
	if again.State != StateWorking {
		t.Errorf("re-read state = %s, want WORKING", again.State)
	}
}

func TestTransition_InvalidIsNoOp(t *testing.T) {
	var buf bytes.Buffer
	m, _ := testMachine(&buf)
	ctx := context.Background()

	agent, err := m.Transition(ctx, "agent-a", event.TypeNegotiationSucceeded, Patch{})
	if err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if agent.State != StateIdle {
		t.Errorf("state = %s, want unchanged IDLE", agent.State)
	}
	if !strings.Contains(buf.String(), "invalid transition") {
		t.Errorf("invalid transition not logged: %q", buf.String())
	}
}

func TestTransition_FullNegotiationPath(t *testing.T) {
	m, _ := testMachine(nil)
	ctx := context.Background()
	id := "agent-a"

	steps := []struct {
		ev   event.Type
		want State
	}{
		{event.TypeTaskAssigned, StateWorking},
		{event.TypeTaskBlocked, StateSeekingHelp},
		{event.TypeNegotiationStarted, StateNegotiating},
		{event.TypeNegotiationTimeout, StateWaitingDirector},
		{event.TypeDirectorDecisionReceived, StateExecutingDecision},
		{event.TypeExecutionComplete, StateWorking},
	}
	for _, step := range steps {
		agent, err := m.Transition(ctx, id, step.ev, Patch{})
		if err != nil {
			t.Fatalf("Transition(%s) error = %v", step.ev, err)
		}
		if agent.State != step.want {
			t.Fatalf("after %s state = %s, want %s", step.ev, agent.State, step.want)
		}
	}
}

func TestPatch_NegotiationSets(t *testing.T) {
	m, _ := testMachine(nil)
	ctx := context.Background()

	// WORKING -> SEEKING_HELP -> NEGOTIATING with a negotiation recorded.
	_, _ = m.Transition(ctx, "agent-a", event.TypeTaskAssigned, Patch{})
	_, _ = m.Transition(ctx, "agent-a", event.TypeTaskBlocked, Patch{BlockedReason: StringPtr("missing dep")})
	agent, err := m.Transition(ctx, "agent-a", event.TypeNegotiationStarted, Patch{
		AddNegotiations: []string{"neg-1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(agent.ActiveNegotiations) != 1 || agent.ActiveNegotiations[0] != "neg-1" {
		t.Errorf("activeNegotiations = %v", agent.ActiveNegotiations)
	}
	if agent.BlockedReason != "missing dep" {
		t.Errorf("blockedReason = %s", agent.BlockedReason)
	}

	// Duplicate adds are collapsed.
	agent, _ = m.SetState(ctx, "agent-a", StateNegotiating, Patch{AddNegotiations: []string{"neg-1"}})
	if len(agent.ActiveNegotiations) != 1 {
		t.Errorf("duplicate negotiation id added: %v", agent.ActiveNegotiations)
	}

	// Failure moves it to the pending-decision set.
	agent, _ = m.Transition(ctx, "agent-a", event.TypeNegotiationFailed, Patch{
		RemoveNegotiations:  []string{"neg-1"},
		AddPendingDecisions: []string{"neg-1"},
	})
	if len(agent.ActiveNegotiations) != 0 {
		t.Errorf("activeNegotiations = %v, want empty", agent.ActiveNegotiations)
	}
	if len(agent.PendingDecisions) != 1 || agent.PendingDecisions[0] != "neg-1" {
		t.Errorf("pendingDecisions = %v", agent.PendingDecisions)
	}
}

func TestSetState_Forces(t *testing.T) {
	m, _ := testMachine(nil)
	ctx := context.Background()

	// An IDLE agent has no table path to WAITING_DIRECTOR; escalation forces it.
	agent, err := m.SetState(ctx, "agent-b", StateWaitingDirector, Patch{
		AddPendingDecisions: []string{"neg-7"},
	})
	if err != nil {
		t.Fatalf("SetState() error = %v", err)
	}
	if agent.State != StateWaitingDirector {
		t.Errorf("state = %s, want WAITING_DIRECTOR", agent.State)
	}
	if len(agent.PendingDecisions) != 1 {
		t.Errorf("pendingDecisions = %v", agent.PendingDecisions)
	}
}

func TestTransition_MetadataMerge(t *testing.T) {
	m, _ := testMachine(nil)
	ctx := context.Background()

	_, _ = m.Transition(ctx, "agent-a", event.TypeTaskAssigned, Patch{
		Metadata: map[string]string{"team": "infra"},
	})
	agent, _ := m.Transition(ctx, "agent-a", event.TypeTaskBlocked, Patch{
		Metadata: map[string]string{"reason_code": "E42"},
	})

	if agent.Metadata["team"] != "infra" || agent.Metadata["reason_code"] != "E42" {
		t.Errorf("metadata = %v", agent.Metadata)
	}
}
