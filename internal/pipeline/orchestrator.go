package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/qaboard/dashboard/internal/observability"
	"github.com/qaboard/dashboard/internal/qaapi"
)

// Orchestrator fetches sources concurrently. A failing source never cancels
// or delays its siblings.
type Orchestrator struct {
	client    qaapi.Client
	timeout   time.Duration
	execLimit int
	logger    *slog.Logger
	recorder  *observability.Recorder
}

func NewOrchestrator(client qaapi.Client, timeout time.Duration, execLimit int, logger *slog.Logger, recorder *observability.Recorder) *Orchestrator {
	return &Orchestrator{
		client:    client,
		timeout:   timeout,
		execLimit: execLimit,
		logger:    logger,
		recorder:  recorder,
	}
}

// Fetch issues one request per source. deliver, when set, receives each
// result as soon as it arrives, on the goroutine that fetched it. Fetch
// returns after every request finished, with results in sources order.
func (o *Orchestrator) Fetch(ctx context.Context, cycle uint64, sources []Source, deliver func(Result)) []Result {
	results := make([]Result, len(sources))

	// Goroutines never return an error, so errgroup only waits here.
	var g errgroup.Group
	for i, src := range sources {
		g.Go(func() error {
			res := o.fetch(ctx, cycle, src)
			results[i] = res
			if deliver != nil {
				deliver(res)
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (o *Orchestrator) fetch(ctx context.Context, cycle uint64, src Source) Result {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	res := Result{Source: src, Cycle: cycle}
	start := time.Now()
	switch src {
	case SourceMetrics:
		res.Metrics, res.Err = o.client.GetMetrics(ctx)
	case SourceExecutions:
		res.Executions, res.Err = o.client.GetExecutions(ctx, qaapi.ListOptions{Limit: o.execLimit})
	case SourcePipelines:
		res.Pipelines, res.Err = o.client.GetPipelines(ctx)
	case SourceSystem:
		res.Utilization, res.Err = o.client.GetSystem(ctx)
	default:
		res.Err = fmt.Errorf("unknown source %q", src)
	}
	res.Took = time.Since(start)

	o.recorder.ObserveFetch(string(src), res.Err, res.Took)
	if res.Err != nil {
		o.logger.Warn("source fetch failed", "source", string(src), "cycle", cycle, "error", res.Err)
	} else {
		o.logger.Debug("source fetched", "source", string(src), "cycle", cycle, "took", res.Took)
	}
	return res
}
