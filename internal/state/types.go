// Package state tracks each agent's coordination state in the shared store
// and validates transitions against a fixed table.
package state

import "time"

// State is an agent's coordination state. Only these six values are ever
// observable.
type State string

const (
	StateIdle              State = "IDLE"
	StateWorking           State = "WORKING"
	StateSeekingHelp       State = "SEEKING_HELP"
	StateNegotiating       State = "NEGOTIATING"
	StateWaitingDirector   State = "WAITING_DIRECTOR"
	StateExecutingDecision State = "EXECUTING_DECISION"
)

// Context is the per-agent coordination record. It is owned exclusively by
// the Machine and persisted with a bounded TTL, refreshed on every write.
type Context struct {
	AgentID            string            `json:"agentId"`
	State              State             `json:"state"`
	CurrentTask        string            `json:"currentTask,omitempty"`
	BlockedReason      string            `json:"blockedReason,omitempty"`
	ActiveNegotiations []string          `json:"activeNegotiations"`
	PendingDecisions   []string          `json:"pendingDirectorDecisions"`
	LastStateChange    time.Time         `json:"lastStateChange"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

// newContext returns the lazy default for an unseen agent.
func newContext(agentID string) *Context {
	return &Context{
		AgentID:            agentID,
		State:              StateIdle,
		ActiveNegotiations: []string{},
		PendingDecisions:   []string{},
		LastStateChange:    time.Now().UTC(),
	}
}

// Patch describes the context fields to merge during a transition. Nil or
// empty fields are left untouched.
type Patch struct {
	CurrentTask   *string
	BlockedReason *string

	AddNegotiations    []string
	RemoveNegotiations []string

	AddPendingDecisions    []string
	RemovePendingDecisions []string

	Metadata map[string]string
}

// apply merges the patch into ctx.
func (p Patch) apply(ctx *Context) {
	if p.CurrentTask != nil {
		ctx.CurrentTask = *p.CurrentTask
	}
	if p.BlockedReason != nil {
		ctx.BlockedReason = *p.BlockedReason
	}
	ctx.ActiveNegotiations = mergeSet(ctx.ActiveNegotiations, p.AddNegotiations, p.RemoveNegotiations)
	ctx.PendingDecisions = mergeSet(ctx.PendingDecisions, p.AddPendingDecisions, p.RemovePendingDecisions)
	if len(p.Metadata) > 0 {
		if ctx.Metadata == nil {
			ctx.Metadata = make(map[string]string, len(p.Metadata))
		}
		for k, v := range p.Metadata {
			ctx.Metadata[k] = v
		}
	}
}

// mergeSet adds then removes ids, preserving order and uniqueness.
func mergeSet(current, add, remove []string) []string {
	out := make([]string, 0, len(current)+len(add))
	seen := make(map[string]struct{}, len(current)+len(add))
	for _, id := range current {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range add {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(remove) == 0 {
		return out
	}
	drop := make(map[string]struct{}, len(remove))
	for _, id := range remove {
		drop[id] = struct{}{}
	}
	filtered := out[:0]
	for _, id := range out {
		if _, ok := drop[id]; !ok {
			filtered = append(filtered, id)
		}
	}
	return filtered
}

// String pointer helper for Patch fields.
func StringPtr(s string) *string { return &s }
