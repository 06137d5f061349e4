// Package event defines the coordination events exchanged between agent
// processes and the Redis pub/sub channel that carries them.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type identifies what happened. Consumers must tolerate types they do not
// know; unknown types are delivered to wildcard subscribers only.
type Type string

const (
	TypeTaskAssigned             Type = "TASK_ASSIGNED"
	TypeTaskCompleted            Type = "TASK_COMPLETED"
	TypeTaskBlocked              Type = "TASK_BLOCKED"
	TypeOverloadDetected         Type = "OVERLOAD_DETECTED"
	TypeNegotiationRequest       Type = "NEGOTIATION_REQUEST"
	TypeNegotiationResponse      Type = "NEGOTIATION_RESPONSE"
	TypeNegotiationStarted       Type = "NEGOTIATION_STARTED"
	TypeNegotiationSucceeded     Type = "NEGOTIATION_SUCCEEDED"
	TypeNegotiationFailed        Type = "NEGOTIATION_FAILED"
	TypeNegotiationTimeout       Type = "NEGOTIATION_TIMEOUT"
	TypeEscalatedToDirector      Type = "ESCALATED_TO_DIRECTOR"
	TypeDirectorDecision         Type = "DIRECTOR_DECISION"
	TypeDirectorDecisionReceived Type = "DIRECTOR_DECISION_RECEIVED"
	TypeHumanOverride            Type = "HUMAN_OVERRIDE"
	TypeExecutionComplete        Type = "EXECUTION_COMPLETE"
	TypeExecutionFailed          Type = "EXECUTION_FAILED"
	TypeBlockerResolved          Type = "BLOCKER_RESOLVED"

	// TypeAll subscribes a handler to every event regardless of type.
	TypeAll Type = "all"
)

// Priority orders events for consumers that triage.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Event is the immutable wire record broadcast to all subscribers. ID is the
// correlation id (the negotiation id for negotiation events). Data carries a
// type-specific payload; use DecodePayload to read it into its known shape.
type Event struct {
	ID        string          `json:"id"`
	Type      Type            `json:"type"`
	AgentID   string          `json:"agentId"`
	TaskID    string          `json:"taskId,omitempty"`
	State     string          `json:"state"`
	Data      json.RawMessage `json:"data"`
	Priority  Priority        `json:"priority"`
	Timestamp time.Time       `json:"timestamp"`
}

// New builds an event, marshaling payload into Data. An empty id is replaced
// with a fresh UUID.
func New(id string, t Type, agentID string, payload any) (Event, error) {
	if id == "" {
		id = uuid.New().String()
	}
	data := json.RawMessage("{}")
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("marshal %s payload: %w", t, err)
		}
		data = b
	}
	return Event{
		ID:        id,
		Type:      t,
		AgentID:   agentID,
		Data:      data,
		Priority:  PriorityMedium,
		Timestamp: time.Now().UTC(),
	}, nil
}

// WithPriority returns a copy of the event with the given priority.
func (e Event) WithPriority(p Priority) Event {
	e.Priority = p
	return e
}

// WithTask returns a copy of the event tagged with a task id.
func (e Event) WithTask(taskID string) Event {
	e.TaskID = taskID
	return e
}

// WithState returns a copy of the event recording the state the originator
// believes it is in.
func (e Event) WithState(state string) Event {
	e.State = state
	return e
}

// Marshal serializes the event for the wire.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Unmarshal parses an event off the wire.
func Unmarshal(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return e, nil
}

// DecodePayload reads an event's data into the payload type that corresponds
// to its event type.
func DecodePayload[T any](e Event) (T, error) {
	var payload T
	if len(e.Data) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(e.Data, &payload); err != nil {
		return payload, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return payload, nil
}
