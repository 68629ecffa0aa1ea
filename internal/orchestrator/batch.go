package orchestrator

import (
	"context"
	"log/slog"
)

// BatchFailure records an item that was skipped.
type BatchFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// BatchResult is the outcome of Batch. Partial success is a normal result.
type BatchResult[T any] struct {
	Results []T
	Failed  []BatchFailure
}

// Batch runs fn for each id in order. Failures are logged and skipped; the
// remaining items still run. A cancelled context stops the batch and marks
// the unprocessed items as failed.
func Batch[T any](ctx context.Context, ids []string, fn func(ctx context.Context, id string) (T, error)) BatchResult[T] {
	var out BatchResult[T]
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			for _, rest := range ids[i:] {
				out.Failed = append(out.Failed, BatchFailure{ID: rest, Error: err.Error()})
			}
			break
		}

		v, err := fn(ctx, id)
		if err != nil {
			slog.Warn("batch item failed", "id", id, "error", err)
			out.Failed = append(out.Failed, BatchFailure{ID: id, Error: err.Error()})
			continue
		}
		out.Results = append(out.Results, v)
	}
	return out
}
