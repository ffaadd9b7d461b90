package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"

	contractx "github.com/quickserve/menuwise/agent/contract"
	nodex "github.com/quickserve/menuwise/agent/nodes/orchestrator"
	statex "github.com/quickserve/menuwise/agent/state"
)

var (
	ErrInvalidQuestion = nodex.ErrInvalidQuestion
	ErrNoDecision      = nodex.ErrNoDecision
)

const defaultMaxTurns = 12

type Config struct {
	// MaxTurns bounds model consultations per request; zero means the
	// default budget.
	MaxTurns int

	// RequestTimeout bounds one Ask end to end; zero disables the bound.
	RequestTimeout time.Duration
}

type Orchestrator struct {
	models      contractx.Registry
	tools       contractx.ToolGateway
	transcripts statex.Store

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	maxTurns       int
	requestTimeout time.Duration

	now   func() time.Time
	newID func() string
}

// AskInput identifies one user question. RequestID is optional; a blank one
// is assigned server side.
type AskInput struct {
	RequestID string
	Text      string
	ImagePath string
}

type AskOutput struct {
	RequestID  string
	Capability contractx.CapabilityID
	Answer     string
	Turns      int
}

// New wires the dispatch loop. The transcript store may be nil; archiving is
// then skipped.
func New(
	models contractx.Registry,
	tools contractx.ToolGateway,
	transcripts statex.Store,
	cfg Config,
) (*Orchestrator, error) {
	if models == nil {
		return nil, errors.New("model registry is required")
	}
	if tools == nil {
		return nil, errors.New("tool gateway is required")
	}

	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}

	o := &Orchestrator{
		models:         models,
		tools:          tools,
		transcripts:    transcripts,
		maxTurns:       maxTurns,
		requestTimeout: cfg.RequestTimeout,
		now:            time.Now,
		newID:          uuid.NewString,
	}

	graphRunner, err := o.compileAskGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// Ask answers one question. Terminal loop failures come back as a
// *contract.Failure wrapping the underlying cause.
func (o *Orchestrator) Ask(ctx context.Context, in AskInput) (AskOutput, error) {
	if o.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.requestTimeout)
		defer cancel()
	}

	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{
		RequestID: in.RequestID,
		Text:      in.Text,
		ImagePath: in.ImagePath,
	})
	if err != nil {
		return AskOutput{}, err
	}

	return AskOutput{
		RequestID:  out.RequestID,
		Capability: out.Capability,
		Answer:     out.Answer,
		Turns:      out.Turns,
	}, nil
}
