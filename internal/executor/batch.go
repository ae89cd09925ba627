package executor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zohaib704-ai/Code-sphere/internal/model"
	"github.com/zohaib704-ai/Code-sphere/internal/upstream"
)

// MaxBatchSize is the largest accepted batch.
const MaxBatchSize = 10

// ErrDispatch marks a failure of the batch as a whole rather than of one item.
var ErrDispatch = errors.New("dispatch batch")

// Batch items ignore per-item timeout overrides.
const (
	batchCallTimeout = 15 * time.Second
	batchCompileMS   = model.DefaultCompileTimeoutMS
	batchRunMS       = model.DefaultRunTimeoutMS
)

// BatchResult holds one result per input item, in input order.
type BatchResult struct {
	ID      string
	Results []model.BatchItemResult
}

// ExecuteBatch runs every item concurrently and waits for all of them. An
// item's failure is reported at its index and never fails the batch; the
// returned error is either a *model.ValidationError for the batch shape or a
// dispatch failure.
func (e *Executor) ExecuteBatch(ctx context.Context, items []model.ExecutionRequest) (*BatchResult, error) {
	if len(items) == 0 {
		return nil, &model.ValidationError{Message: "Executions array is required and must not be empty"}
	}
	if len(items) > MaxBatchSize {
		return nil, &model.ValidationError{Message: fmt.Sprintf("Maximum %d executions per batch", MaxBatchSize)}
	}

	batch := &BatchResult{
		ID:      model.NewID(),
		Results: make([]model.BatchItemResult, len(items)),
	}

	// Goroutines only return an error on panic; item failures are results.
	var g errgroup.Group
	for i, item := range items {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("batch item %d panicked: %v", i, r)
				}
			}()
			batch.Results[i] = e.runItem(ctx, batch.ID, i, item)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrDispatch, batch.ID, err)
	}

	e.logger.Info("batch executed", "batch_id", batch.ID, "items", len(items))
	return batch, nil
}

func (e *Executor) runItem(ctx context.Context, batchID string, index int, item model.ExecutionRequest) model.BatchItemResult {
	start := e.now()
	rec := func(httpStatus int, errMsg string) {
		r := newRecord(item, start, e.now(), httpStatus, errMsg)
		r.BatchID = batchID
		r.BatchIndex = &index
		e.record(ctx, r)
	}

	if err := item.Validate(); err != nil {
		batchItemsTotal.WithLabelValues(outcomeFailed).Inc()
		rec(http.StatusBadRequest, err.Error())
		return model.BatchItemResult{Index: index, Success: false, Error: err.Error()}
	}

	payload := buildPayload(item, batchCompileMS*time.Millisecond, batchRunMS*time.Millisecond)
	resp, err := e.backend.Execute(ctx, payload, batchCallTimeout)
	if err != nil {
		uerr := upstream.Normalize(err)
		batchItemsTotal.WithLabelValues(outcomeFailed).Inc()
		e.logger.Warn("batch item failed",
			"batch_id", batchID,
			"index", index,
			"kind", uerr.Kind,
			"error", uerr,
		)
		rec(uerr.HTTPStatus(), uerr.Message)
		return model.BatchItemResult{Index: index, Success: false, Error: uerr.Message}
	}

	batchItemsTotal.WithLabelValues(outcomeSucceeded).Inc()
	rec(http.StatusOK, "")
	return model.BatchItemResult{
		Index:    index,
		Success:  true,
		Language: item.Language,
		Version:  item.Version,
		Run:      resp.Run,
		Compile:  resp.Compile,
	}
}
