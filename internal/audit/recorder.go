// Package audit records every escalation and director decision to a capped
// Redis stream. Writes are fire-and-forget: a failed audit write is logged
// and never surfaces to the coordination path.
package audit

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/seankim-business/accord/internal/logger"
)

// Entry is one audit record.
type Entry struct {
	Kind          string    `json:"kind"` // "escalation" or "decision"
	NegotiationID string    `json:"negotiationId"`
	AgentIDs      []string  `json:"agentIds,omitempty"`
	Detail        string    `json:"detail"`
	At            time.Time `json:"at"`
}

// Recorder appends entries to a Redis stream trimmed to a maximum length.
// A nil Recorder is valid and drops everything.
type Recorder struct {
	rdb    redis.Cmdable
	stream string
	maxLen int64
	log    *logger.Logger
}

// NewRecorder creates a recorder writing to the given stream.
func NewRecorder(rdb redis.Cmdable, stream string, maxLen int64, log *logger.Logger) *Recorder {
	if log == nil {
		log = logger.New()
	}
	return &Recorder{
		rdb:    rdb,
		stream: stream,
		maxLen: maxLen,
		log:    log.WithField("component", "audit"),
	}
}

// Record appends one entry. Errors are logged, never returned.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	if r == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	err := r.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: r.maxLen,
		Approx: true,
		Values: map[string]any{
			"kind":          e.Kind,
			"negotiationId": e.NegotiationID,
			"agents":        strings.Join(e.AgentIDs, ","),
			"detail":        e.Detail,
			"at":            e.At.Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		r.log.Warn("audit write failed for %s %s: %v", e.Kind, e.NegotiationID, err)
	}
}

// Recent returns up to n entries, newest first.
func (r *Recorder) Recent(ctx context.Context, n int64) ([]Entry, error) {
	messages, err := r.rdb.XRevRangeN(ctx, r.stream, "+", "-", n).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(messages))
	for _, msg := range messages {
		entries = append(entries, fromValues(msg.Values))
	}
	return entries, nil
}

func fromValues(values map[string]any) Entry {
	e := Entry{
		Kind:          str(values["kind"]),
		NegotiationID: str(values["negotiationId"]),
		Detail:        str(values["detail"]),
	}
	if agents := str(values["agents"]); agents != "" {
		e.AgentIDs = strings.Split(agents, ",")
	}
	if at, err := time.Parse(time.RFC3339, str(values["at"])); err == nil {
		e.At = at
	}
	return e
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
