// Package negotiation implements the bounded request/response exchange
// between two agents, escalating to the director when the peers cannot
// settle it themselves.
package negotiation

import (
	"fmt"
	"time"

	"github.com/seankim-business/accord/internal/event"
)

// Urgency is the requester's view of how pressing the ask is.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Request is created once per negotiation attempt and immutable thereafter.
type Request struct {
	ID            string            `json:"id"`
	RequesterID   string            `json:"requesterId"`
	TargetAgentID string            `json:"targetAgentId"`
	Urgency       Urgency           `json:"urgency"`
	TaskID        string            `json:"taskId,omitempty"`
	Ask           map[string]string `json:"ask,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// Decision is the callee's answer.
type Decision string

const (
	DecisionAccept  Decision = "accept"
	DecisionReject  Decision = "reject"
	DecisionCounter Decision = "counter"
)

// Response is the callee's answer to a request. The shared store holds at
// most one authoritative response per negotiation id, kept for a short
// window.
type Response struct {
	ResponderID string            `json:"responderId"`
	Decision    Decision          `json:"decision"`
	Reason      string            `json:"reason,omitempty"`
	Counter     map[string]string `json:"counter,omitempty"`
	RespondedAt time.Time         `json:"respondedAt"`
}

// Reason classifies why a negotiation could not resolve peer-to-peer.
type Reason string

const (
	ReasonTimeout  Reason = "timeout"
	ReasonRejected Reason = "rejected"
	ReasonConflict Reason = "conflict"
)

// Escalation is the context handed to the director. It is created once per
// failed negotiation and consumed exactly once.
type Escalation struct {
	NegotiationID    string     `json:"negotiationId"`
	Reason           Reason     `json:"reason"`
	InvolvedAgentIDs []string   `json:"involvedAgentIds"`
	Request          Request    `json:"request"`
	Responses        []Response `json:"responses"`
	EscalatedAt      time.Time  `json:"escalatedAt"`
}

// Result is what the initiating caller gets back. Either the peers agreed
// (Success with the agreement attached) or the negotiation was escalated.
type Result struct {
	NegotiationID string    `json:"negotiationId"`
	Success       bool      `json:"success"`
	Escalated     bool      `json:"escalated"`
	Message       string    `json:"message,omitempty"`
	Agreement     *Response `json:"agreement,omitempty"`
}

// ResponseKey is the shared-store key holding the latest response for a
// negotiation.
func ResponseKey(prefix, negotiationID string) string {
	return fmt.Sprintf("%s:negotiation:%s:response", prefix, negotiationID)
}

// EscalationKey is the shared-store key holding the escalation context for a
// negotiation.
func EscalationKey(prefix, negotiationID string) string {
	return fmt.Sprintf("%s:escalation:%s", prefix, negotiationID)
}

// priorityFor maps urgency onto the event priority scale.
func priorityFor(u Urgency) event.Priority {
	switch u {
	case UrgencyHigh:
		return event.PriorityHigh
	case UrgencyLow:
		return event.PriorityLow
	default:
		return event.PriorityMedium
	}
}
