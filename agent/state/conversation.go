package state

import (
	"errors"
	"fmt"
	"time"

	contractx "github.com/quickserve/menuwise/agent/contract"
)

// Conversation is the append-only record of one request's lifetime, owned
// exclusively by the orchestration loop:
// - every entry is one of request/decision/tool_call/tool_result/final_answer
// - at most one final answer may exist and it is always the last entry
// - every tool call must be answered by a matching result before the model
//   is consulted again
type Conversation struct {
	RequestID string    `json:"request_id"`
	Entries   []Entry   `json:"entries"`
	StartedAt time.Time `json:"started_at"`
}

type EntryKind string

const (
	EntryRequest     EntryKind = "request"
	EntryDecision    EntryKind = "decision"
	EntryToolCall    EntryKind = "tool_call"
	EntryToolResult  EntryKind = "tool_result"
	EntryFinalAnswer EntryKind = "final_answer"
)

// Entry is a tagged variant; exactly one payload field is set, matching Kind.
type Entry struct {
	Kind EntryKind `json:"kind"`
	At   time.Time `json:"at"`

	Request    *contractx.Request     `json:"request,omitempty"`
	Decision   *contractx.Decision    `json:"decision,omitempty"`
	ToolCall   *contractx.ToolCall    `json:"tool_call,omitempty"`
	ToolResult *contractx.ToolResult  `json:"tool_result,omitempty"`
	Final      *contractx.FinalAnswer `json:"final_answer,omitempty"`
}

var (
	ErrConversationClosed = errors.New("conversation already has a final answer")
	ErrDanglingToolCall   = errors.New("tool call has no matching result")
	ErrOrphanToolResult   = errors.New("tool result has no matching call")
	ErrInvalidEntry       = errors.New("conversation entry is invalid")
)

// NewConversation opens a conversation with the request as its first entry.
func NewConversation(req contractx.Request, now time.Time) *Conversation {
	c := &Conversation{
		RequestID: req.ID,
		StartedAt: now.UTC(),
	}
	c.Entries = append(c.Entries, Entry{
		Kind:    EntryRequest,
		At:      now.UTC(),
		Request: &req,
	})
	return c
}

func (c *Conversation) AppendDecision(d contractx.Decision, now time.Time) error {
	return c.append(Entry{Kind: EntryDecision, At: now.UTC(), Decision: &d})
}

func (c *Conversation) AppendToolCall(call contractx.ToolCall, now time.Time) error {
	return c.append(Entry{Kind: EntryToolCall, At: now.UTC(), ToolCall: &call})
}

func (c *Conversation) AppendToolResult(res contractx.ToolResult, now time.Time) error {
	pending := c.PendingCalls()
	if len(pending) == 0 {
		return fmt.Errorf("%w: tool=%s", ErrOrphanToolResult, res.Tool)
	}
	if pending[0].Tool != res.Tool {
		return fmt.Errorf("%w: got result for tool=%s, oldest pending call is tool=%s",
			ErrOrphanToolResult, res.Tool, pending[0].Tool)
	}
	return c.append(Entry{Kind: EntryToolResult, At: now.UTC(), ToolResult: &res})
}

func (c *Conversation) AppendFinalAnswer(ans contractx.FinalAnswer, now time.Time) error {
	if len(c.PendingCalls()) > 0 {
		return fmt.Errorf("%w: final answer with pending tool calls", ErrDanglingToolCall)
	}
	return c.append(Entry{Kind: EntryFinalAnswer, At: now.UTC(), Final: &ans})
}

func (c *Conversation) append(e Entry) error {
	if c.Final() != nil {
		return ErrConversationClosed
	}
	c.Entries = append(c.Entries, e)
	return nil
}

// Final returns the final answer, or nil while the conversation is open.
func (c *Conversation) Final() *contractx.FinalAnswer {
	if c == nil || len(c.Entries) == 0 {
		return nil
	}
	last := c.Entries[len(c.Entries)-1]
	if last.Kind == EntryFinalAnswer {
		return last.Final
	}
	return nil
}

// Decision returns the routing decision, or nil if not yet routed.
func (c *Conversation) Decision() *contractx.Decision {
	for i := range c.Entries {
		if c.Entries[i].Kind == EntryDecision {
			return c.Entries[i].Decision
		}
	}
	return nil
}

// PendingCalls returns the tool calls that do not yet have a matching
// result, oldest first. The loop must drain these before consulting the
// model again.
func (c *Conversation) PendingCalls() []contractx.ToolCall {
	var pending []contractx.ToolCall
	for i := range c.Entries {
		switch c.Entries[i].Kind {
		case EntryToolCall:
			pending = append(pending, *c.Entries[i].ToolCall)
		case EntryToolResult:
			if len(pending) > 0 {
				pending = pending[1:]
			}
		}
	}
	return pending
}

// ToolResults returns every result appended so far, in order.
func (c *Conversation) ToolResults() []contractx.ToolResult {
	var results []contractx.ToolResult
	for i := range c.Entries {
		if c.Entries[i].Kind == EntryToolResult {
			results = append(results, *c.Entries[i].ToolResult)
		}
	}
	return results
}

// Validate checks the structural invariants over the whole entry sequence.
func (c *Conversation) Validate() error {
	if c == nil || len(c.Entries) == 0 {
		return fmt.Errorf("%w: conversation is empty", ErrInvalidEntry)
	}
	if c.Entries[0].Kind != EntryRequest || c.Entries[0].Request == nil {
		return fmt.Errorf("%w: first entry must be the request", ErrInvalidEntry)
	}

	var pending []string
	finals := 0
	for i, e := range c.Entries {
		if err := e.validatePayload(); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		switch e.Kind {
		case EntryToolCall:
			pending = append(pending, e.ToolCall.Tool)
		case EntryToolResult:
			if len(pending) == 0 {
				return fmt.Errorf("entry %d: %w: tool=%s", i, ErrOrphanToolResult, e.ToolResult.Tool)
			}
			if pending[0] != e.ToolResult.Tool {
				return fmt.Errorf("entry %d: %w: result tool=%s, pending call tool=%s",
					i, ErrOrphanToolResult, e.ToolResult.Tool, pending[0])
			}
			pending = pending[1:]
		case EntryFinalAnswer:
			finals++
			if i != len(c.Entries)-1 {
				return fmt.Errorf("entry %d: %w: final answer must be the last entry", i, ErrInvalidEntry)
			}
		}
	}
	if finals > 1 {
		return fmt.Errorf("%w: multiple final answers", ErrInvalidEntry)
	}
	if finals == 1 && len(pending) > 0 {
		return fmt.Errorf("%w: tool=%s", ErrDanglingToolCall, pending[0])
	}
	return nil
}

func (e Entry) validatePayload() error {
	set := 0
	if e.Request != nil {
		set++
	}
	if e.Decision != nil {
		set++
	}
	if e.ToolCall != nil {
		set++
	}
	if e.ToolResult != nil {
		set++
	}
	if e.Final != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("%w: kind=%s has %d payloads", ErrInvalidEntry, e.Kind, set)
	}

	ok := false
	switch e.Kind {
	case EntryRequest:
		ok = e.Request != nil
	case EntryDecision:
		ok = e.Decision != nil
	case EntryToolCall:
		ok = e.ToolCall != nil
	case EntryToolResult:
		ok = e.ToolResult != nil
	case EntryFinalAnswer:
		ok = e.Final != nil
	}
	if !ok {
		return fmt.Errorf("%w: kind=%s does not match payload", ErrInvalidEntry, e.Kind)
	}
	return nil
}

// Transcript is the archived form of a finished conversation.
type Transcript struct {
	RequestID  string                `json:"request_id"`
	Question   string                `json:"question"`
	Capability contractx.CapabilityID `json:"capability,omitempty"`
	Answer     string                `json:"answer,omitempty"`
	Turns      int                   `json:"turns"`
	Entries    []Entry               `json:"entries"`
	CreatedAt  time.Time             `json:"created_at"`
}

// Transcript snapshots the conversation for archiving. Turns counts model
// consultations performed by the loop.
func (c *Conversation) Transcript(turns int, now time.Time) *Transcript {
	t := &Transcript{
		RequestID: c.RequestID,
		Turns:     turns,
		Entries:   append([]Entry(nil), c.Entries...),
		CreatedAt: now.UTC(),
	}
	if len(c.Entries) > 0 && c.Entries[0].Request != nil {
		t.Question = c.Entries[0].Request.Text
	}
	if d := c.Decision(); d != nil {
		t.Capability = d.Capability
	}
	if f := c.Final(); f != nil {
		t.Answer = f.Text
	}
	return t
}
