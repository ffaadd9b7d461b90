package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	contractx "github.com/quickserve/menuwise/agent/contract"
	statex "github.com/quickserve/menuwise/agent/state"
	toolx "github.com/quickserve/menuwise/agent/tool"
)

type fakeRouter struct {
	decision contractx.Decision
	err      error
	calls    int
}

func (f *fakeRouter) Route(ctx context.Context, req contractx.Request) (contractx.Decision, error) {
	f.calls++
	if f.err != nil {
		return contractx.Decision{}, f.err
	}
	return f.decision, nil
}

type fakeCapability struct {
	id        contractx.CapabilityID
	responses []contractx.StepResponse
	err       error
	calls     int
	lastReqs  []contractx.StepRequest
}

func (f *fakeCapability) ID() contractx.CapabilityID {
	return f.id
}

func (f *fakeCapability) Step(ctx context.Context, req contractx.StepRequest) (contractx.StepResponse, error) {
	f.calls++
	f.lastReqs = append(f.lastReqs, req)
	if f.err != nil {
		return contractx.StepResponse{}, f.err
	}
	idx := f.calls - 1
	if idx >= len(f.responses) {
		return contractx.StepResponse{}, fmt.Errorf("no step response left at call=%d", f.calls)
	}
	return f.responses[idx], nil
}

type fakeRegistry struct {
	router     contractx.Router
	sql        contractx.Capability
	competitor contractx.Capability
}

func (f *fakeRegistry) Router() contractx.Router         { return f.router }
func (f *fakeRegistry) SQL() contractx.Capability        { return f.sql }
func (f *fakeRegistry) Competitor() contractx.Capability { return f.competitor }

type gatewayCall struct {
	capability contractx.CapabilityID
	calls      []contractx.ToolCall
}

type fakeGateway struct {
	resultByTool map[string]contractx.ToolResult
	err          error
	executions   []gatewayCall
}

func (f *fakeGateway) Execute(ctx context.Context, capability contractx.CapabilityID, calls []contractx.ToolCall) ([]contractx.ToolResult, error) {
	f.executions = append(f.executions, gatewayCall{
		capability: capability,
		calls:      append([]contractx.ToolCall(nil), calls...),
	})
	if f.err != nil {
		return nil, f.err
	}
	results := make([]contractx.ToolResult, 0, len(calls))
	for _, call := range calls {
		if res, ok := f.resultByTool[call.Tool]; ok {
			results = append(results, res)
			continue
		}
		results = append(results, contractx.ToolResult{Tool: call.Tool, Result: "ok"})
	}
	return results, nil
}

type fakeTranscriptStore struct {
	saveErr error
	saved   []*statex.Transcript
}

func (f *fakeTranscriptStore) Load(ctx context.Context, requestID string) (*statex.Transcript, error) {
	return nil, statex.ErrTranscriptNotFound
}

func (f *fakeTranscriptStore) Save(ctx context.Context, t *statex.Transcript) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, t)
	return nil
}

func (f *fakeTranscriptStore) Delete(ctx context.Context, requestID string) error {
	return nil
}

func TestAskInvalidQuestion(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t,
		&fakeRegistry{
			router:     &fakeRouter{},
			sql:        &fakeCapability{id: contractx.CapabilitySQL},
			competitor: &fakeCapability{id: contractx.CapabilityCompetitor},
		},
		&fakeGateway{},
		nil,
		Config{},
	)

	_, err := o.Ask(context.Background(), AskInput{Text: "   "})
	if !errors.Is(err, ErrInvalidQuestion) {
		t.Fatalf("expected ErrInvalidQuestion, got %v", err)
	}
}

func TestAskMenuQuestionAnswersThroughSQLTools(t *testing.T) {
	t.Parallel()

	router := &fakeRouter{decision: contractx.Decision{Capability: contractx.CapabilitySQL, Rationale: "menu question"}}
	sql := &fakeCapability{
		id: contractx.CapabilitySQL,
		responses: []contractx.StepResponse{
			{ToolCalls: []contractx.ToolCall{
				{Tool: toolx.ToolSQLListTables},
				{Tool: toolx.ToolSQLSchema, Args: map[string]any{"tables": []any{"menu"}}},
			}},
			{ToolCalls: []contractx.ToolCall{
				{Tool: toolx.ToolSQLRun, Args: map[string]any{"query": "SELECT name FROM menu WHERE category = 'entree'"}},
			}},
			{Final: &contractx.FinalAnswer{Text: "The entrees are Classic Burger and Grilled Chicken Sandwich."}},
		},
	}
	gateway := &fakeGateway{}
	store := &fakeTranscriptStore{}

	o := newTestOrchestrator(t,
		&fakeRegistry{router: router, sql: sql, competitor: &fakeCapability{id: contractx.CapabilityCompetitor}},
		gateway,
		store,
		Config{},
	)

	out, err := o.Ask(context.Background(), AskInput{RequestID: "req-1", Text: "Which entrees are on the menu?"})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if out.Answer != "The entrees are Classic Burger and Grilled Chicken Sandwich." {
		t.Fatalf("unexpected answer: %q", out.Answer)
	}
	if out.Capability != contractx.CapabilitySQL {
		t.Fatalf("unexpected capability: %s", out.Capability)
	}
	if out.Turns != 3 {
		t.Fatalf("expected 3 turns, got %d", out.Turns)
	}
	if router.calls != 1 {
		t.Fatalf("expected router consulted once, got %d", router.calls)
	}
	if len(gateway.executions) != 2 {
		t.Fatalf("expected two gateway executions, got %d", len(gateway.executions))
	}
	if gateway.executions[0].capability != contractx.CapabilitySQL {
		t.Fatalf("unexpected gateway capability: %s", gateway.executions[0].capability)
	}

	// The agent must see every prior outcome on the last consultation.
	last := sql.lastReqs[len(sql.lastReqs)-1]
	if len(last.ToolResults) != 3 {
		t.Fatalf("expected 3 accumulated tool results, got %d", len(last.ToolResults))
	}

	if len(store.saved) != 1 {
		t.Fatalf("expected one archived transcript, got %d", len(store.saved))
	}
	saved := store.saved[0]
	if saved.RequestID != "req-1" || saved.Answer == "" || saved.Turns != 3 {
		t.Fatalf("unexpected transcript: %+v", saved)
	}
	if saved.Capability != contractx.CapabilitySQL {
		t.Fatalf("unexpected transcript capability: %s", saved.Capability)
	}
}

func TestAskToolErrorFedBackForSelfCorrection(t *testing.T) {
	t.Parallel()

	router := &fakeRouter{decision: contractx.Decision{Capability: contractx.CapabilitySQL}}
	sql := &fakeCapability{
		id: contractx.CapabilitySQL,
		responses: []contractx.StepResponse{
			{ToolCalls: []contractx.ToolCall{
				{Tool: toolx.ToolSQLRun, Args: map[string]any{"query": "DROP TABLE menu"}},
			}},
			{Final: &contractx.FinalAnswer{Text: "I can only read the menu, not modify it."}},
		},
	}
	gateway := &fakeGateway{
		resultByTool: map[string]contractx.ToolResult{
			toolx.ToolSQLRun: {Tool: toolx.ToolSQLRun, Error: "tool execution failed: statement is not read-only"},
		},
	}

	o := newTestOrchestrator(t,
		&fakeRegistry{router: router, sql: sql, competitor: &fakeCapability{id: contractx.CapabilityCompetitor}},
		gateway,
		nil,
		Config{},
	)

	out, err := o.Ask(context.Background(), AskInput{Text: "Drop the menu table"})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if out.Turns != 2 {
		t.Fatalf("expected 2 turns, got %d", out.Turns)
	}

	second := sql.lastReqs[1]
	if len(second.ToolResults) != 1 {
		t.Fatalf("expected 1 tool result on turn 2, got %d", len(second.ToolResults))
	}
	if second.ToolResults[0].OK() {
		t.Fatal("expected failed tool result fed back to the agent")
	}
	if !strings.Contains(second.ToolResults[0].Error, "not read-only") {
		t.Fatalf("unexpected tool error: %q", second.ToolResults[0].Error)
	}
}

func TestAskCompetitorRouting(t *testing.T) {
	t.Parallel()

	router := &fakeRouter{decision: contractx.Decision{Capability: contractx.CapabilityCompetitor, Rationale: "image attached"}}
	competitor := &fakeCapability{
		id: contractx.CapabilityCompetitor,
		responses: []contractx.StepResponse{
			{ToolCalls: []contractx.ToolCall{
				{Tool: toolx.ToolMenuImageExtract, Args: map[string]any{"image_path": "competitor.png"}},
			}},
			{Final: &contractx.FinalAnswer{Text: "Our burger is 1.50 cheaper than theirs."}},
		},
	}
	gateway := &fakeGateway{}

	o := newTestOrchestrator(t,
		&fakeRegistry{router: router, sql: &fakeCapability{id: contractx.CapabilitySQL}, competitor: competitor},
		gateway,
		nil,
		Config{},
	)

	out, err := o.Ask(context.Background(), AskInput{
		Text:      "How do our burger prices compare to this menu?",
		ImagePath: "competitor.png",
	})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if out.Capability != contractx.CapabilityCompetitor {
		t.Fatalf("unexpected capability: %s", out.Capability)
	}
	if gateway.executions[0].capability != contractx.CapabilityCompetitor {
		t.Fatalf("unexpected gateway capability: %s", gateway.executions[0].capability)
	}
	if competitor.lastReqs[0].Request.ImagePath != "competitor.png" {
		t.Fatalf("image path not forwarded: %+v", competitor.lastReqs[0].Request)
	}
}

func TestAskAmbiguousRoutingFallsBackToSQL(t *testing.T) {
	t.Parallel()

	router := &fakeRouter{err: fmt.Errorf("%w: capability=%q", contractx.ErrRoutingAmbiguous, "weather")}
	sql := &fakeCapability{
		id: contractx.CapabilitySQL,
		responses: []contractx.StepResponse{
			{Final: &contractx.FinalAnswer{Text: "I can only answer questions about our menu."}},
		},
	}

	o := newTestOrchestrator(t,
		&fakeRegistry{router: router, sql: sql, competitor: &fakeCapability{id: contractx.CapabilityCompetitor}},
		&fakeGateway{},
		nil,
		Config{},
	)

	out, err := o.Ask(context.Background(), AskInput{Text: "What's the weather like?"})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if out.Capability != contractx.CapabilitySQL {
		t.Fatalf("expected sql fallback, got %s", out.Capability)
	}
	if sql.calls != 1 {
		t.Fatalf("expected sql capability consulted once, got %d", sql.calls)
	}
}

func TestAskRouterFailureIsInfrastructure(t *testing.T) {
	t.Parallel()

	router := &fakeRouter{err: fmt.Errorf("%w: router invoke: connection refused", contractx.ErrOracleUnavailable)}

	o := newTestOrchestrator(t,
		&fakeRegistry{
			router:     router,
			sql:        &fakeCapability{id: contractx.CapabilitySQL},
			competitor: &fakeCapability{id: contractx.CapabilityCompetitor},
		},
		&fakeGateway{},
		nil,
		Config{},
	)

	_, err := o.Ask(context.Background(), AskInput{Text: "Which entrees are on the menu?"})
	assertFailure(t, err, contractx.FailureInfrastructure)
	if !errors.Is(err, contractx.ErrOracleUnavailable) {
		t.Fatalf("expected ErrOracleUnavailable in chain, got %v", err)
	}
}

func TestAskTurnBudgetExhausted(t *testing.T) {
	t.Parallel()

	router := &fakeRouter{decision: contractx.Decision{Capability: contractx.CapabilitySQL}}
	looping := make([]contractx.StepResponse, 3)
	for i := range looping {
		looping[i] = contractx.StepResponse{ToolCalls: []contractx.ToolCall{{Tool: toolx.ToolSQLListTables}}}
	}
	sql := &fakeCapability{id: contractx.CapabilitySQL, responses: looping}

	o := newTestOrchestrator(t,
		&fakeRegistry{router: router, sql: sql, competitor: &fakeCapability{id: contractx.CapabilityCompetitor}},
		&fakeGateway{},
		nil,
		Config{MaxTurns: 3},
	)

	_, err := o.Ask(context.Background(), AskInput{Text: "Which entrees are on the menu?"})
	assertFailure(t, err, contractx.FailureTurnBudget)
	if !errors.Is(err, contractx.ErrTurnBudgetExhausted) {
		t.Fatalf("expected ErrTurnBudgetExhausted in chain, got %v", err)
	}
	if sql.calls != 3 {
		t.Fatalf("expected exactly 3 consultations, got %d", sql.calls)
	}
}

func TestAskStepFailureIsInfrastructure(t *testing.T) {
	t.Parallel()

	router := &fakeRouter{decision: contractx.Decision{Capability: contractx.CapabilitySQL}}
	sql := &fakeCapability{
		id:  contractx.CapabilitySQL,
		err: fmt.Errorf("%w: capability=sql invoke: timeout", contractx.ErrOracleUnavailable),
	}

	o := newTestOrchestrator(t,
		&fakeRegistry{router: router, sql: sql, competitor: &fakeCapability{id: contractx.CapabilityCompetitor}},
		&fakeGateway{},
		nil,
		Config{},
	)

	_, err := o.Ask(context.Background(), AskInput{Text: "Which entrees are on the menu?"})
	assertFailure(t, err, contractx.FailureInfrastructure)
	if !errors.Is(err, contractx.ErrOracleUnavailable) {
		t.Fatalf("expected ErrOracleUnavailable in chain, got %v", err)
	}
}

func TestAskGatewayFailureIsInfrastructure(t *testing.T) {
	t.Parallel()

	router := &fakeRouter{decision: contractx.Decision{Capability: contractx.CapabilitySQL}}
	sql := &fakeCapability{
		id: contractx.CapabilitySQL,
		responses: []contractx.StepResponse{
			{ToolCalls: []contractx.ToolCall{{Tool: toolx.ToolSQLListTables}}},
		},
	}
	gateway := &fakeGateway{err: errors.New("database handle closed")}

	o := newTestOrchestrator(t,
		&fakeRegistry{router: router, sql: sql, competitor: &fakeCapability{id: contractx.CapabilityCompetitor}},
		gateway,
		nil,
		Config{},
	)

	_, err := o.Ask(context.Background(), AskInput{Text: "Which entrees are on the menu?"})
	assertFailure(t, err, contractx.FailureInfrastructure)
}

func TestAskArchiveFailureDoesNotFailRequest(t *testing.T) {
	t.Parallel()

	router := &fakeRouter{decision: contractx.Decision{Capability: contractx.CapabilitySQL}}
	sql := &fakeCapability{
		id: contractx.CapabilitySQL,
		responses: []contractx.StepResponse{
			{Final: &contractx.FinalAnswer{Text: "Seven items are on the menu."}},
		},
	}
	store := &fakeTranscriptStore{saveErr: errors.New("redis unavailable")}

	o := newTestOrchestrator(t,
		&fakeRegistry{router: router, sql: sql, competitor: &fakeCapability{id: contractx.CapabilityCompetitor}},
		&fakeGateway{},
		store,
		Config{},
	)

	out, err := o.Ask(context.Background(), AskInput{Text: "How many items are on the menu?"})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if out.Answer == "" {
		t.Fatal("expected an answer despite archive failure")
	}
}

func TestAskAssignsRequestID(t *testing.T) {
	t.Parallel()

	router := &fakeRouter{decision: contractx.Decision{Capability: contractx.CapabilitySQL}}
	sql := &fakeCapability{
		id: contractx.CapabilitySQL,
		responses: []contractx.StepResponse{
			{Final: &contractx.FinalAnswer{Text: "Seven items are on the menu."}},
		},
	}

	o := newTestOrchestrator(t,
		&fakeRegistry{router: router, sql: sql, competitor: &fakeCapability{id: contractx.CapabilityCompetitor}},
		&fakeGateway{},
		nil,
		Config{},
	)

	out, err := o.Ask(context.Background(), AskInput{Text: "How many items are on the menu?"})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if strings.TrimSpace(out.RequestID) == "" {
		t.Fatal("expected a generated request id")
	}
}

func assertFailure(t *testing.T, err error, reason contractx.FailureReason) {
	t.Helper()
	var failure *contractx.Failure
	if !errors.As(err, &failure) {
		t.Fatalf("expected *contract.Failure, got %v", err)
	}
	if failure.Reason != reason {
		t.Fatalf("expected failure reason %s, got %s", reason, failure.Reason)
	}
}

func newTestOrchestrator(
	t *testing.T,
	registry contractx.Registry,
	tools contractx.ToolGateway,
	transcripts statex.Store,
	cfg Config,
) *Orchestrator {
	t.Helper()
	o, err := New(registry, tools, transcripts, cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return o
}
