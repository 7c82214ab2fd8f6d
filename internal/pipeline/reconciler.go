package pipeline

import (
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/qaboard/dashboard/internal/format"
	"github.com/qaboard/dashboard/internal/observability"
	"github.com/qaboard/dashboard/internal/qaapi"
	"github.com/qaboard/dashboard/internal/view"
	"github.com/qaboard/dashboard/internal/widgets"
)

// LastUpdatedLayout formats the "last updated" stamp.
const LastUpdatedLayout = "02/01/2006 15:04:05"

// ChartFactory builds chart widgets. charts.Generator satisfies it.
type ChartFactory interface {
	Create(key widgets.Key, spec widgets.Spec) (widgets.Handle, error)
}

// Reconciler applies fetched payloads to the document and the widget
// registry. Applies are serialized; a result from a cycle older than the
// latest one already applied to the same target is dropped.
type Reconciler struct {
	doc      *view.Document
	registry *widgets.Registry
	charts   ChartFactory
	logger   *slog.Logger
	recorder *observability.Recorder
	now      func() time.Time

	mu     sync.Mutex
	latest map[Target]uint64
	closed bool
}

func NewReconciler(doc *view.Document, registry *widgets.Registry, charts ChartFactory, logger *slog.Logger, recorder *observability.Recorder) *Reconciler {
	return &Reconciler{
		doc:      doc,
		registry: registry,
		charts:   charts,
		logger:   logger,
		recorder: recorder,
		now:      time.Now,
		latest:   make(map[Target]uint64),
	}
}

// Apply dispatches a successful result to its entry point. Failed results
// are ignored. It reports whether anything was applied.
func (r *Reconciler) Apply(res Result) bool {
	if res.Err != nil {
		return false
	}
	switch res.Source {
	case SourceMetrics:
		return r.ApplyMetrics(res.Cycle, res.Metrics)
	case SourceExecutions:
		return r.ApplyExecutions(res.Cycle, res.Executions)
	case SourcePipelines:
		return r.ApplyPipelines(res.Cycle, res.Pipelines)
	case SourceSystem:
		return r.ApplyUtilization(res.Cycle, res.Utilization)
	}
	return false
}

// admit must be called with r.mu held.
func (r *Reconciler) admit(target Target, cycle uint64) bool {
	if r.closed {
		return false
	}
	if cycle < r.latest[target] {
		r.logger.Debug("dropping stale result", "target", string(target), "cycle", cycle, "latest", r.latest[target])
		r.recorder.StaleDropped(string(target))
		return false
	}
	r.latest[target] = cycle
	return true
}

// ApplyMetrics updates the four cards and the three charts. Each of them is
// guarded on its own, so one metrics payload may still update a chart whose
// card was refreshed by a newer cycle. A nil snapshot renders defaults.
func (r *Reconciler) ApplyMetrics(cycle uint64, m *qaapi.MetricsSnapshot) bool {
	if m == nil {
		m = &qaapi.MetricsSnapshot{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	applied := false
	if r.admit(TargetCards, cycle) {
		r.applyCards(m)
		applied = true
	}
	for _, c := range []struct {
		target Target
		key    widgets.Key
		spec   widgets.Spec
	}{
		{TargetTrend, widgets.Trend, trendSpec(m.Trend)},
		{TargetDistribution, widgets.Distribution, distributionSpec(m.Distribution)},
		{TargetPerformance, widgets.Performance, performanceSpec(m.Performance)},
	} {
		if !r.admit(c.target, cycle) {
			continue
		}
		r.replaceChart(c.key, c.spec)
		applied = true
	}
	return applied
}

func (r *Reconciler) applyCards(m *qaapi.MetricsSnapshot) {
	avg := m.AvgDuration.String()
	if avg == "" {
		avg = "0s"
	}
	r.doc.UpdateText(view.SuccessRate, format.Number(m.SuccessRate))
	r.doc.UpdateText(view.AvgDuration, avg)
	r.doc.UpdateText(view.Coverage, format.Number(m.Coverage))
	r.doc.UpdateText(view.BugsFound, format.Number(m.BugsFound))
	r.doc.SetText(view.LastUpdated, r.now().Format(LastUpdatedLayout))
}

func (r *Reconciler) replaceChart(key widgets.Key, spec widgets.Spec) {
	err := r.registry.Replace(key, func() (widgets.Handle, error) {
		return r.charts.Create(key, spec)
	})
	if err != nil {
		r.logger.Error("chart rebuild failed", "target", string(key), "error", err)
	}
}

// ApplyExecutions rebuilds the executions table in payload order.
func (r *Reconciler) ApplyExecutions(cycle uint64, records []qaapi.ExecutionRecord) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.admit(TargetExecutions, cycle) {
		return false
	}
	r.doc.Rebuild(view.ExecutionsTable, func(add func(view.Row)) {
		for _, rec := range records {
			add(executionRow(rec))
		}
	})
	return true
}

func executionRow(rec qaapi.ExecutionRecord) view.Row {
	id := "#" + rec.ID.String()
	kind := rec.Kind
	if kind == "" {
		kind = format.NotAvailable
	}
	return view.Row{
		Key:    rec.ID.String(),
		Cells:  []string{id, kind, durationText(rec.Duration), format.Timestamp(rec.CreatedAt)},
		Status: format.Status(rec.Status),
	}
}

// durationText appends a seconds unit to bare numbers.
func durationText(s qaapi.Scalar) string {
	raw := strings.TrimSpace(s.String())
	if raw == "" {
		return "0s"
	}
	if _, err := strconv.ParseFloat(raw, 64); err == nil {
		return raw + "s"
	}
	return raw
}

// ApplyPipelines rebuilds the pipeline list in payload order.
func (r *Reconciler) ApplyPipelines(cycle uint64, statuses []qaapi.PipelineStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.admit(TargetPipelines, cycle) {
		return false
	}
	r.doc.Rebuild(view.PipelineList, func(add func(view.Row)) {
		for _, p := range statuses {
			// Last run is free text such as "2 min ago".
			lastRun := p.LastRun
			if lastRun == "" {
				lastRun = format.NotAvailable
			}
			add(view.Row{
				Key:    p.Name,
				Cells:  []string{p.Name, lastRun},
				Status: format.Status(p.Status),
			})
		}
	})
	return true
}

// ApplyUtilization updates the four progress bars. A nil payload renders
// every bar at zero.
func (r *Reconciler) ApplyUtilization(cycle uint64, u *qaapi.SystemUtilization) bool {
	if u == nil {
		u = &qaapi.SystemUtilization{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.admit(TargetSystem, cycle) {
		return false
	}
	for id, v := range map[string]float64{
		view.CPUUsage:     u.CPU,
		view.MemoryUsage:  u.Memory,
		view.DiskUsage:    u.Disk,
		view.NetworkUsage: u.Network,
	} {
		r.doc.SetProgress(id, view.Progress{
			Width: format.ProgressWidth(v),
			Text:  format.Percent(v),
			Class: format.ProgressClass(v),
		})
	}
	return true
}

// Close makes every later apply a no-op. It waits for an apply in progress.
func (r *Reconciler) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

// Latest returns the latest cycle applied to target.
func (r *Reconciler) Latest(target Target) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest[target]
}

func trendSpec(t *qaapi.TrendSeries) widgets.Spec {
	spec := widgets.Spec{
		Kind:  widgets.KindLine,
		Title: "Success trend",
		YMax:  100,
		Series: []widgets.Series{
			{Name: "Success rate (%)"},
			{Name: "Average time (s)"},
		},
	}
	if t != nil {
		spec.Labels = t.Dates
		spec.Series[0].Values = t.SuccessRate
		spec.Series[1].Values = t.AvgTime
	}
	return spec
}

func distributionSpec(d *qaapi.DistributionSeries) widgets.Spec {
	labels := []string{"Web", "API", "Performance"}
	values := []float64{30, 25, 15}
	if d != nil && len(d.Kinds) > 0 {
		labels, values = d.Kinds, d.Counts
	}
	return widgets.Spec{
		Kind:   widgets.KindDoughnut,
		Title:  "Test distribution",
		Labels: labels,
		Series: []widgets.Series{{Name: "Tests", Values: values}},
	}
}

func performanceSpec(p *qaapi.PerformanceSeries) widgets.Spec {
	labels := []string{"Login", "Navegação", "Formulários", "API"}
	values := []float64{1200, 800, 1500, 600}
	if p != nil && len(p.Tests) > 0 {
		labels, values = p.Tests, p.Times
	}
	return widgets.Spec{
		Kind:   widgets.KindBar,
		Title:  "Response time (ms)",
		Labels: labels,
		Series: []widgets.Series{{Name: "Time (ms)", Values: values}},
	}
}
