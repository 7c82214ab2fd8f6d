package pipeline

import (
	"time"

	"github.com/qaboard/dashboard/internal/qaapi"
)

// Source is one backend data source fetched during a refresh cycle.
type Source string

const (
	SourceMetrics    Source = "metrics"
	SourceExecutions Source = "executions"
	SourcePipelines  Source = "pipelines"
	SourceSystem     Source = "system"
)

// AllSources lists every source in fetch order.
func AllSources() []Source {
	return []Source{SourceMetrics, SourceExecutions, SourcePipelines, SourceSystem}
}

// ParseSources converts configured names, skipping unknown ones.
func ParseSources(names []string) []Source {
	var out []Source
	for _, n := range names {
		switch s := Source(n); s {
		case SourceMetrics, SourceExecutions, SourcePipelines, SourceSystem:
			out = append(out, s)
		}
	}
	return out
}

// Target is a group of widgets updated together. The reconciler tracks the
// latest applied cycle per target and drops older results.
type Target string

const (
	TargetCards        Target = "cards"
	TargetTrend        Target = "trend"
	TargetDistribution Target = "distribution"
	TargetPerformance  Target = "performance"
	TargetExecutions   Target = "executions"
	TargetPipelines    Target = "pipelines"
	TargetSystem       Target = "system"
)

// Trigger is what started a cycle. It picks the severity of failure
// notifications: danger for the initial load, warning otherwise.
type Trigger string

const (
	TriggerInitial  Trigger = "initial"
	TriggerPeriodic Trigger = "periodic"
	TriggerManual   Trigger = "manual"
	TriggerFollowUp Trigger = "follow_up"
)

// Result is the outcome of fetching one source in one cycle. Exactly one
// payload field is set when Err is nil.
type Result struct {
	Source Source
	Cycle  uint64
	Err    error
	Took   time.Duration

	Metrics     *qaapi.MetricsSnapshot
	Executions  []qaapi.ExecutionRecord
	Pipelines   []qaapi.PipelineStatus
	Utilization *qaapi.SystemUtilization
}

func (r Result) OK() bool { return r.Err == nil }

// Report summarizes a finished cycle.
type Report struct {
	Cycle   uint64
	Trigger Trigger
	Results []Result
}

// Failed lists the sources that could not be fetched.
func (r Report) Failed() []Source {
	var out []Source
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res.Source)
		}
	}
	return out
}
