package qaapi

import (
	"context"
	"errors"
)

// ErrUnexpectedStatus is wrapped by every non-2xx backend response.
var ErrUnexpectedStatus = errors.New("unexpected backend status")

// Client is the typed view of the dashboard backend.
type Client interface {
	GetMetrics(ctx context.Context) (*MetricsSnapshot, error)
	GetExecutions(ctx context.Context, opts ListOptions) ([]ExecutionRecord, error)
	GetPipelines(ctx context.Context) ([]PipelineStatus, error)
	GetSystem(ctx context.Context) (*SystemUtilization, error)
	RunTests(ctx context.Context, req RunRequest) (*RunAck, error)
}

// Endpoints holds the backend paths, relative to the base URL.
type Endpoints struct {
	Metrics    string `mapstructure:"metrics"`
	Executions string `mapstructure:"executions"`
	Pipelines  string `mapstructure:"pipelines"`
	System     string `mapstructure:"system"`
	RunTests   string `mapstructure:"run_tests"`
}

func DefaultEndpoints() Endpoints {
	return Endpoints{
		Metrics:    "/metrics",
		Executions: "/executions",
		Pipelines:  "/pipelines",
		System:     "/system",
		RunTests:   "/run-tests",
	}
}

func (e Endpoints) withDefaults() Endpoints {
	d := DefaultEndpoints()
	if e.Metrics == "" {
		e.Metrics = d.Metrics
	}
	if e.Executions == "" {
		e.Executions = d.Executions
	}
	if e.Pipelines == "" {
		e.Pipelines = d.Pipelines
	}
	if e.System == "" {
		e.System = d.System
	}
	if e.RunTests == "" {
		e.RunTests = d.RunTests
	}
	return e
}
