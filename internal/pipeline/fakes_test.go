package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/qaboard/dashboard/internal/notify"
	"github.com/qaboard/dashboard/internal/observability"
	"github.com/qaboard/dashboard/internal/qaapi"
	"github.com/qaboard/dashboard/internal/view"
	"github.com/qaboard/dashboard/internal/widgets"
)

var errBackendDown = errors.New("backend down")

type fakeClient struct {
	metrics    func(ctx context.Context) (*qaapi.MetricsSnapshot, error)
	executions func(ctx context.Context) ([]qaapi.ExecutionRecord, error)
	pipelines  func(ctx context.Context) ([]qaapi.PipelineStatus, error)
	system     func(ctx context.Context) (*qaapi.SystemUtilization, error)
	runTests   func(ctx context.Context, req qaapi.RunRequest) (*qaapi.RunAck, error)

	metricsCalls    atomic.Int32
	executionsCalls atomic.Int32
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		metrics: func(context.Context) (*qaapi.MetricsSnapshot, error) {
			return &qaapi.MetricsSnapshot{SuccessRate: 90, AvgDuration: "2s", Coverage: 70, BugsFound: 1}, nil
		},
		executions: func(context.Context) ([]qaapi.ExecutionRecord, error) {
			return []qaapi.ExecutionRecord{{ID: "7", Kind: "web", Status: qaapi.StatusSuccess}}, nil
		},
		pipelines: func(context.Context) ([]qaapi.PipelineStatus, error) {
			return []qaapi.PipelineStatus{{Name: "Build", Status: qaapi.StatusRunning}}, nil
		},
		system: func(context.Context) (*qaapi.SystemUtilization, error) {
			return &qaapi.SystemUtilization{CPU: 10, Memory: 20, Disk: 30, Network: 40}, nil
		},
		runTests: func(context.Context, qaapi.RunRequest) (*qaapi.RunAck, error) {
			return &qaapi.RunAck{ExecutionID: "101", Status: qaapi.StatusRunning}, nil
		},
	}
}

func (c *fakeClient) GetMetrics(ctx context.Context) (*qaapi.MetricsSnapshot, error) {
	c.metricsCalls.Add(1)
	return c.metrics(ctx)
}

func (c *fakeClient) GetExecutions(ctx context.Context, _ qaapi.ListOptions) ([]qaapi.ExecutionRecord, error) {
	c.executionsCalls.Add(1)
	return c.executions(ctx)
}

func (c *fakeClient) GetPipelines(ctx context.Context) ([]qaapi.PipelineStatus, error) {
	return c.pipelines(ctx)
}

func (c *fakeClient) GetSystem(ctx context.Context) (*qaapi.SystemUtilization, error) {
	return c.system(ctx)
}

func (c *fakeClient) RunTests(ctx context.Context, req qaapi.RunRequest) (*qaapi.RunAck, error) {
	return c.runTests(ctx, req)
}

type fakeHandle struct {
	key       widgets.Key
	spec      widgets.Spec
	factory   *fakeFactory
	destroyed atomic.Bool
}

func (h *fakeHandle) Key() widgets.Key { return h.key }
func (h *fakeHandle) HTML() string     { return "<div id=\"chart-" + string(h.key) + "\"></div>" }

func (h *fakeHandle) Destroy() {
	if h.destroyed.Swap(true) {
		return
	}
	h.factory.mu.Lock()
	h.factory.destroyed++
	h.factory.mu.Unlock()
}

type fakeFactory struct {
	mu        sync.Mutex
	created   int
	destroyed int
	fail      map[widgets.Key]bool
	last      map[widgets.Key]*fakeHandle
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{fail: map[widgets.Key]bool{}, last: map[widgets.Key]*fakeHandle{}}
}

func (f *fakeFactory) Create(key widgets.Key, spec widgets.Spec) (widgets.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[key] {
		return nil, errors.New("render failed")
	}
	f.created++
	h := &fakeHandle{key: key, spec: spec, factory: f}
	f.last[key] = h
	return h, nil
}

func (f *fakeFactory) live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created - f.destroyed
}

func (f *fakeFactory) lastSpec(key widgets.Key) widgets.Spec {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h, ok := f.last[key]; ok {
		return h.spec
	}
	return widgets.Spec{}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	dash     *Dashboard
	client   *fakeClient
	charts   *fakeFactory
	doc      *view.Document
	sink     *notify.Sink
	registry *prometheus.Registry
}

func newHarness(t *testing.T, client qaapi.Client, opts Options) *harness {
	t.Helper()
	charts := newFakeFactory()
	doc := view.NewDocument(view.DefaultLayout())
	sink := notify.NewSink(quietLogger(), notify.DefaultTTL)
	reg := prometheus.NewRegistry()
	dash := New(client, doc, charts, sink, quietLogger(), observability.NewRecorder(reg), opts)
	t.Cleanup(dash.Teardown)

	h := &harness{dash: dash, charts: charts, doc: doc, sink: sink, registry: reg}
	if fc, ok := client.(*fakeClient); ok {
		h.client = fc
	}
	return h
}

func messages(s *notify.Sink) []string {
	var out []string
	for _, n := range s.Active() {
		out = append(out, string(n.Severity)+": "+n.Message)
	}
	return out
}
