package audit

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"

	"github.com/seankim-business/accord/internal/logger"
)

func TestRecorder_Record(t *testing.T) {
	db, mock := redismock.NewClientMock()
	rec := NewRecorder(db, "accord:audit", 100, nil)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectXAdd(&redis.XAddArgs{
		Stream: "accord:audit",
		MaxLen: 100,
		Approx: true,
		Values: map[string]any{
			"kind":          "escalation",
			"negotiationId": "neg-1",
			"agents":        "agent-a,agent-b",
			"detail":        "timeout",
			"at":            at.Format(time.RFC3339),
		},
	}).SetVal("1-0")

	rec.Record(context.Background(), Entry{
		Kind:          "escalation",
		NegotiationID: "neg-1",
		AgentIDs:      []string{"agent-a", "agent-b"},
		Detail:        "timeout",
		At:            at,
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRecorder_RecordFailureIsSwallowed(t *testing.T) {
	db, mock := redismock.NewClientMock()
	var buf bytes.Buffer
	log := logger.New()
	log.SetOutput(&buf)
	rec := NewRecorder(db, "accord:audit", 100, log)

	mock.Regexp().ExpectXAdd(&redis.XAddArgs{
		Stream: "accord:audit",
		MaxLen: 100,
		Approx: true,
		Values: map[string]any{
			"kind":          "decision",
			"negotiationId": "neg-2",
			"agents":        "",
			"detail":        "override",
			"at":            `.*`,
		},
	}).SetErr(context.DeadlineExceeded)

	// Must not panic or propagate.
	rec.Record(context.Background(), Entry{Kind: "decision", NegotiationID: "neg-2", Detail: "override"})

	if !strings.Contains(buf.String(), "audit write failed") {
		t.Errorf("failure not logged: %q", buf.String())
	}
}

func TestRecorder_NilIsSafe(t *testing.T) {
	var rec *Recorder
	rec.Record(context.Background(), Entry{Kind: "escalation"})
}

func TestRecorder_Recent(t *testing.T) {
	db, mock := redismock.NewClientMock()
	rec := NewRecorder(db, "accord:audit", 100, nil)

	mock.ExpectXRevRangeN("accord:audit", "+", "-", 10).SetVal([]redis.XMessage{
		{
			ID: "2-0",
			Values: map[string]any{
				"kind":          "decision",
				"negotiationId": "neg-1",
				"agents":        "agent-a,agent-b",
				"detail":        "approve_original",
				"at":            "2026-03-01T12:01:00Z",
			},
		},
		{
			ID: "1-0",
			Values: map[string]any{
				"kind":          "escalation",
				"negotiationId": "neg-1",
				"agents":        "agent-a,agent-b",
				"detail":        "timeout",
				"at":            "2026-03-01T12:00:00Z",
			},
		},
	})

	entries, err := rec.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	if entries[0].Kind != "decision" || entries[1].Kind != "escalation" {
		t.Errorf("order = %s, %s", entries[0].Kind, entries[1].Kind)
	}
	if len(entries[0].AgentIDs) != 2 {
		t.Errorf("agents = %v", entries[0].AgentIDs)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
