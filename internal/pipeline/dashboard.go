// Package pipeline composes the live dashboard: concurrent source fetches,
// reconciliation into the document and widget registry, periodic and manual
// refresh, and the user-facing controls.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/qaboard/dashboard/internal/notify"
	"github.com/qaboard/dashboard/internal/observability"
	"github.com/qaboard/dashboard/internal/qaapi"
	"github.com/qaboard/dashboard/internal/view"
	"github.com/qaboard/dashboard/internal/widgets"
	"github.com/qaboard/dashboard/internal/worker"
)

// ErrTornDown is returned by controls invoked after Teardown.
var ErrTornDown = errors.New("dashboard torn down")

type Options struct {
	Interval        time.Duration
	FollowUpDelay   time.Duration
	FetchTimeout    time.Duration
	ExecutionsLimit int
	// PeriodicSources are fetched on every tick. Empty means all sources.
	PeriodicSources []Source
	// RunDefaults fills empty fields of a RunTests request.
	RunDefaults qaapi.RunRequest
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = 30 * time.Second
	}
	if o.FollowUpDelay < 0 {
		o.FollowUpDelay = time.Second
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 5 * time.Second
	}
	if o.ExecutionsLimit <= 0 {
		o.ExecutionsLimit = 10
	}
	if len(o.PeriodicSources) == 0 {
		o.PeriodicSources = AllSources()
	}
	if o.RunDefaults.Kind == "" {
		o.RunDefaults.Kind = "completo"
	}
	if o.RunDefaults.Environment == "" {
		o.RunDefaults.Environment = "desenvolvimento"
	}
	return o
}

// Dashboard owns every piece of the refresh pipeline. Build one with New and
// pass it to whatever needs to invoke the controls.
type Dashboard struct {
	client   qaapi.Client
	doc      *view.Document
	registry *widgets.Registry
	sink     *notify.Sink
	logger   *slog.Logger
	recorder *observability.Recorder
	opts     Options

	fetcher    *Orchestrator
	reconciler *Reconciler
	worker     *worker.Worker

	seq      atomic.Uint64
	tornDown atomic.Bool
}

func New(
	client qaapi.Client,
	doc *view.Document,
	charts ChartFactory,
	sink *notify.Sink,
	logger *slog.Logger,
	recorder *observability.Recorder,
	opts Options,
) *Dashboard {
	opts = opts.withDefaults()
	registry := widgets.NewRegistry()
	registry.OnSizeChange(recorder.SetLiveWidgets)
	sink.OnNotify(func(s notify.Severity) { recorder.NotificationRaised(string(s)) })

	d := &Dashboard{
		client:     client,
		doc:        doc,
		registry:   registry,
		sink:       sink,
		logger:     logger,
		recorder:   recorder,
		opts:       opts,
		fetcher:    NewOrchestrator(client, opts.FetchTimeout, opts.ExecutionsLimit, logger, recorder),
		reconciler: NewReconciler(doc, registry, charts, logger, recorder),
	}
	d.worker = worker.NewWorker(logger, opts.Interval, d.scheduledCycle)
	return d
}

func (d *Dashboard) Document() *view.Document    { return d.doc }
func (d *Dashboard) Registry() *widgets.Registry { return d.registry }
func (d *Dashboard) Notifications() *notify.Sink { return d.sink }
func (d *Dashboard) State() worker.State         { return d.worker.State() }

// Start performs the initial bulk load and begins periodic refresh.
func (d *Dashboard) Start() error {
	if err := d.worker.Start(); err != nil {
		return ErrTornDown
	}
	return nil
}

// Stop pauses periodic refresh. It is a no-op when not running.
func (d *Dashboard) Stop() {
	d.worker.Stop()
}

// Teardown cancels the periodic trigger and pending follow-ups, then destroys
// every chart widget. No cycle starts afterwards.
func (d *Dashboard) Teardown() {
	if d.tornDown.Swap(true) {
		return
	}
	d.worker.Teardown()
	d.reconciler.Close()
	d.registry.DestroyAll()
	d.sink.Close()
	d.logger.Info("dashboard torn down")
}

func (d *Dashboard) scheduledCycle(ctx context.Context, initial bool) {
	trigger, sources := TriggerPeriodic, d.opts.PeriodicSources
	if initial {
		trigger, sources = TriggerInitial, AllSources()
	}
	if _, err := d.Refresh(ctx, trigger, sources...); err != nil {
		d.logger.Debug("scheduled cycle skipped", "trigger", string(trigger), "error", err)
	}
}

// RefreshAll fetches every source once, outside the periodic cadence.
func (d *Dashboard) RefreshAll(ctx context.Context) (Report, error) {
	return d.Refresh(ctx, TriggerManual, AllSources()...)
}

// RefreshMetrics fetches the metrics source only.
func (d *Dashboard) RefreshMetrics(ctx context.Context) (Report, error) {
	return d.Refresh(ctx, TriggerManual, SourceMetrics)
}

// Refresh runs one cycle over sources. Results are applied as they arrive;
// it returns once every fetch has finished.
func (d *Dashboard) Refresh(ctx context.Context, trigger Trigger, sources ...Source) (Report, error) {
	if d.tornDown.Load() {
		return Report{}, ErrTornDown
	}
	cycle := d.seq.Add(1)
	d.recorder.CycleStarted(string(trigger))
	d.logger.Debug("refresh cycle started", "cycle", cycle, "trigger", string(trigger), "sources", len(sources))

	results := d.fetcher.Fetch(ctx, cycle, sources, func(res Result) {
		if res.Err != nil {
			d.notifyFailure(trigger, res)
			return
		}
		d.reconciler.Apply(res)
	})
	return Report{Cycle: cycle, Trigger: trigger, Results: results}, nil
}

func (d *Dashboard) notifyFailure(trigger Trigger, res Result) {
	if d.tornDown.Load() || errors.Is(res.Err, context.Canceled) {
		return
	}
	if trigger == TriggerInitial {
		d.sink.Notify(fmt.Sprintf("Failed to load initial %s data", res.Source), notify.Danger)
		return
	}
	d.sink.Notify(fmt.Sprintf("Failed to refresh %s data", res.Source), notify.Warning)
}

// RunTests asks the backend to start a test run. On success a metrics and
// executions refresh follows after the configured delay.
func (d *Dashboard) RunTests(ctx context.Context, req qaapi.RunRequest) (*qaapi.RunAck, error) {
	if d.tornDown.Load() {
		return nil, ErrTornDown
	}
	if req.Kind == "" {
		req.Kind = d.opts.RunDefaults.Kind
	}
	if req.Environment == "" {
		req.Environment = d.opts.RunDefaults.Environment
	}

	ctx, cancel := context.WithTimeout(ctx, d.opts.FetchTimeout)
	defer cancel()

	ack, err := d.client.RunTests(ctx, req)
	if err != nil {
		d.logger.Error("run tests failed", "kind", req.Kind, "environment", req.Environment, "error", err)
		d.sink.Notify("Failed to run tests", notify.Danger)
		return nil, fmt.Errorf("run tests: %w", err)
	}

	d.logger.Info("tests started", "kind", req.Kind, "environment", req.Environment, "execution", ack.ExecutionID.String())
	d.sink.Notify("Tests started successfully", notify.Success)
	d.worker.After(d.opts.FollowUpDelay, func(ctx context.Context) {
		if _, err := d.Refresh(ctx, TriggerFollowUp, SourceMetrics, SourceExecutions); err != nil {
			d.logger.Debug("follow-up refresh skipped", "error", err)
		}
	})
	return ack, nil
}

// ViewDetails only announces the request; detail rendering lives elsewhere.
func (d *Dashboard) ViewDetails(id string) (notify.Notification, error) {
	if d.tornDown.Load() {
		return notify.Notification{}, ErrTornDown
	}
	return d.sink.Notify(fmt.Sprintf("Viewing details of execution #%s", id), notify.Info), nil
}

func (d *Dashboard) DownloadReport(id string) (notify.Notification, error) {
	if d.tornDown.Load() {
		return notify.Notification{}, ErrTornDown
	}
	return d.sink.Notify(fmt.Sprintf("Downloading report of execution #%s", id), notify.Info), nil
}
