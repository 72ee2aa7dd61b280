package queries

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/omniquery/omniquery-backend/internal/crew"
	"github.com/omniquery/omniquery-backend/internal/observability"
	"github.com/omniquery/omniquery-backend/internal/platform/envutil"
	"github.com/omniquery/omniquery-backend/internal/platform/logger"
)

// Processor is the crew surface the runner drives.
type Processor interface {
	Process(ctx context.Context, in crew.QueryInput) crew.Result
}

// Runner executes crew queries on goroutines and records their lifecycle in
// the Store. Each run gets its own deadline independent of the HTTP request.
type Runner struct {
	store   *Store
	crew    Processor
	log     *logger.Logger
	timeout time.Duration
}

func NewRunner(store *Store, c Processor, baseLog *logger.Logger) *Runner {
	return &Runner{
		store:   store,
		crew:    c,
		log:     baseLog.With("service", "QueryRunner"),
		timeout: time.Duration(envutil.Int("QUERY_TIMEOUT_SECONDS", 600)) * time.Second,
	}
}

// Submit registers the query and starts background processing. The returned
// id is immediately pollable via the store.
func (r *Runner) Submit(in crew.QueryInput) string {
	id := uuid.NewString()
	r.store.Begin(id, in.Query)
	observability.Current().QueryStarted()

	go func() {
		defer observability.Current().QueryFinished()
		start := time.Now()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		result := r.crew.Process(ctx, in)
		if result.Success {
			r.store.Complete(id, result, time.Since(start))
			r.log.Info("Background query completed",
				"query_id", id,
				"agent", result.AgentUsed,
				"tokens", result.Tokens,
			)
			return
		}
		r.store.Fail(id, result.Error, time.Since(start))
		r.log.Warn("Background query failed", "query_id", id, "error", result.Error)
	}()

	return id
}

// SubmitPipeline runs an arbitrary background job, typically a media
// pipeline over an uploaded file, through the same store. cleanup runs after
// the job regardless of outcome.
func (r *Runner) SubmitPipeline(label string, cleanup func(), fn func(ctx context.Context) (result any, ok bool, errMsg string)) string {
	id := uuid.NewString()
	r.store.Begin(id, label)
	observability.Current().QueryStarted()

	go func() {
		defer observability.Current().QueryFinished()
		if cleanup != nil {
			defer cleanup()
		}
		start := time.Now()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		result, ok, errMsg := fn(ctx)
		if ok {
			r.store.Complete(id, result, time.Since(start))
			return
		}
		r.store.Fail(id, errMsg, time.Since(start))
		r.log.Warn("Background pipeline failed", "query_id", id, "error", errMsg)
	}()

	return id
}
