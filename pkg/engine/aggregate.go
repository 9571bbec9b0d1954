package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/rhuss/chorus/pkg/api"
)

// ErrIncompleteAggregation means an outcome was missing for a requested
// model. It can only result from a dispatcher bug.
var ErrIncompleteAggregation = errors.New("incomplete aggregation")

// Assemble orders outcomes to match modelIDs and stamps the elapsed time
// between start and finish, the arrival of the last outcome. Outcomes are
// copied unchanged.
func Assemble(requestID string, modelIDs []string, outcomes map[string]api.ModelOutcome, start, finish time.Time) (*api.AggregatedResponse, error) {
	results := make([]api.ModelOutcome, 0, len(modelIDs))
	for _, id := range modelIDs {
		o, ok := outcomes[id]
		if !ok {
			return nil, fmt.Errorf("%w: no outcome for model %q", ErrIncompleteAggregation, id)
		}
		results = append(results, o)
	}

	elapsed := finish.Sub(start)
	if elapsed < 0 {
		elapsed = 0
	}
	return &api.AggregatedResponse{
		RequestID: requestID,
		Results:   results,
		ElapsedMs: elapsed.Milliseconds(),
		CreatedAt: start.Unix(),
	}, nil
}
