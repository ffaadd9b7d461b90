package orchestratornode

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/quickserve/menuwise/agent/contract"
	statex "github.com/quickserve/menuwise/agent/state"
)

// ArchiveTranscript snapshots the finished conversation into the store.
// Archiving is observability, not correctness: a store failure is logged and
// the answer is still returned.
func ArchiveTranscript(
	ctx context.Context,
	in *GraphState,
	store statex.Store,
	nowFn func() time.Time,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if store == nil {
		return in, nil
	}

	transcript := in.Conversation.Transcript(in.Turns, nowFn().UTC())
	if err := store.Save(ctx, transcript); err != nil {
		log.Warn().
			Str("request_id", in.Request.ID).
			Err(err).
			Msg("transcript archive failed")
	}
	return in, nil
}
