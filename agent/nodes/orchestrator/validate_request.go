package orchestratornode

import (
	"errors"
	"strings"
	"time"

	contractx "github.com/quickserve/menuwise/agent/contract"
	statex "github.com/quickserve/menuwise/agent/state"
)

var (
	ErrInvalidQuestion = errors.New("question is empty")
	ErrNoDecision      = errors.New("routing decision is missing")
)

type GraphInput struct {
	RequestID string
	Text      string
	ImagePath string
}

type GraphOutput struct {
	RequestID  string
	Capability contractx.CapabilityID
	Answer     string
	Turns      int
}

type GraphState struct {
	Request contractx.Request
	Now     time.Time

	Conversation *statex.Conversation
	Decision     contractx.Decision

	Turns int
	Final *contractx.FinalAnswer
}

func ValidateRequest(in GraphInput, nowFn func() time.Time, newID func() string) (*GraphState, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrInvalidQuestion
	}

	requestID := strings.TrimSpace(in.RequestID)
	if requestID == "" {
		requestID = newID()
	}

	now := nowFn().UTC()
	req := contractx.Request{
		ID:        requestID,
		Text:      text,
		ImagePath: strings.TrimSpace(in.ImagePath),
	}

	return &GraphState{
		Request:      req,
		Now:          now,
		Conversation: statex.NewConversation(req, now),
	}, nil
}
