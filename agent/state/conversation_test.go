package state

import (
	"errors"
	"testing"
	"time"

	contractx "github.com/quickserve/menuwise/agent/contract"
)

func testRequest() contractx.Request {
	return contractx.Request{ID: "req-1", Text: "list all entrees"}
}

func TestConversationHappyPath(t *testing.T) {
	t.Parallel()

	now := time.Now()
	c := NewConversation(testRequest(), now)

	if err := c.AppendDecision(contractx.Decision{Capability: contractx.CapabilitySQL}, now); err != nil {
		t.Fatalf("AppendDecision() error = %v", err)
	}
	if err := c.AppendToolCall(contractx.ToolCall{Tool: "sql.list_tables"}, now); err != nil {
		t.Fatalf("AppendToolCall() error = %v", err)
	}
	if got := c.PendingCalls(); len(got) != 1 || got[0].Tool != "sql.list_tables" {
		t.Fatalf("PendingCalls() = %#v", got)
	}
	if err := c.AppendToolResult(contractx.ToolResult{Tool: "sql.list_tables", Result: []string{"menu"}}, now); err != nil {
		t.Fatalf("AppendToolResult() error = %v", err)
	}
	if got := c.PendingCalls(); len(got) != 0 {
		t.Fatalf("expected no pending calls, got %#v", got)
	}
	if err := c.AppendFinalAnswer(contractx.FinalAnswer{Text: "done"}, now); err != nil {
		t.Fatalf("AppendFinalAnswer() error = %v", err)
	}

	if err := c.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if f := c.Final(); f == nil || f.Text != "done" {
		t.Fatalf("Final() = %#v", f)
	}
}

func TestConversationClosedAfterFinalAnswer(t *testing.T) {
	t.Parallel()

	now := time.Now()
	c := NewConversation(testRequest(), now)
	if err := c.AppendFinalAnswer(contractx.FinalAnswer{Text: "ok"}, now); err != nil {
		t.Fatalf("AppendFinalAnswer() error = %v", err)
	}

	err := c.AppendToolCall(contractx.ToolCall{Tool: "sql.run"}, now)
	if !errors.Is(err, ErrConversationClosed) {
		t.Fatalf("expected ErrConversationClosed, got %v", err)
	}
	err = c.AppendFinalAnswer(contractx.FinalAnswer{Text: "again"}, now)
	if !errors.Is(err, ErrConversationClosed) {
		t.Fatalf("expected ErrConversationClosed, got %v", err)
	}
}

func TestConversationRejectsFinalWithPendingCalls(t *testing.T) {
	t.Parallel()

	now := time.Now()
	c := NewConversation(testRequest(), now)
	if err := c.AppendToolCall(contractx.ToolCall{Tool: "sql.run"}, now); err != nil {
		t.Fatalf("AppendToolCall() error = %v", err)
	}

	err := c.AppendFinalAnswer(contractx.FinalAnswer{Text: "answer"}, now)
	if !errors.Is(err, ErrDanglingToolCall) {
		t.Fatalf("expected ErrDanglingToolCall, got %v", err)
	}
}

func TestConversationRejectsOrphanResult(t *testing.T) {
	t.Parallel()

	now := time.Now()
	c := NewConversation(testRequest(), now)

	err := c.AppendToolResult(contractx.ToolResult{Tool: "sql.run"}, now)
	if !errors.Is(err, ErrOrphanToolResult) {
		t.Fatalf("expected ErrOrphanToolResult, got %v", err)
	}

	if err := c.AppendToolCall(contractx.ToolCall{Tool: "sql.schema"}, now); err != nil {
		t.Fatalf("AppendToolCall() error = %v", err)
	}
	err = c.AppendToolResult(contractx.ToolResult{Tool: "sql.run"}, now)
	if !errors.Is(err, ErrOrphanToolResult) {
		t.Fatalf("expected mismatched result to be rejected, got %v", err)
	}
}

func TestConversationValidateCatchesMisplacedFinal(t *testing.T) {
	t.Parallel()

	now := time.Now()
	c := NewConversation(testRequest(), now)
	// Bypass the append guards to simulate a corrupted sequence.
	ans := contractx.FinalAnswer{Text: "early"}
	c.Entries = append(c.Entries, Entry{Kind: EntryFinalAnswer, At: now, Final: &ans})
	dec := contractx.Decision{Capability: contractx.CapabilitySQL}
	c.Entries = append(c.Entries, Entry{Kind: EntryDecision, At: now, Decision: &dec})

	if err := c.Validate(); err == nil {
		t.Fatal("expected validation error for final answer that is not last")
	}
}

func TestTranscriptSnapshot(t *testing.T) {
	t.Parallel()

	now := time.Now()
	c := NewConversation(testRequest(), now)
	if err := c.AppendDecision(contractx.Decision{Capability: contractx.CapabilityCompetitor}, now); err != nil {
		t.Fatalf("AppendDecision() error = %v", err)
	}
	if err := c.AppendFinalAnswer(contractx.FinalAnswer{Text: "the answer"}, now); err != nil {
		t.Fatalf("AppendFinalAnswer() error = %v", err)
	}

	tr := c.Transcript(3, now)
	if tr.RequestID != "req-1" {
		t.Fatalf("unexpected request id: %s", tr.RequestID)
	}
	if tr.Question != "list all entrees" {
		t.Fatalf("unexpected question: %s", tr.Question)
	}
	if tr.Capability != contractx.CapabilityCompetitor {
		t.Fatalf("unexpected capability: %s", tr.Capability)
	}
	if tr.Answer != "the answer" {
		t.Fatalf("unexpected answer: %s", tr.Answer)
	}
	if tr.Turns != 3 {
		t.Fatalf("unexpected turns: %d", tr.Turns)
	}
	if len(tr.Entries) != len(c.Entries) {
		t.Fatalf("transcript entries = %d, want %d", len(tr.Entries), len(c.Entries))
	}
}
