package qaapi

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"
)

type MockClient struct {
	mu         sync.Mutex
	executions []ExecutionRecord
	pipelines  []PipelineStatus
	nextID     int
}

func NewMockClient() *MockClient {
	c := &MockClient{}
	c.generateMockData()
	return c
}

func (c *MockClient) generateMockData() {
	kinds := []string{"web", "api", "performance"}
	now := time.Now()
	for i := 0; i < 10; i++ {
		status := StatusSuccess
		if i%4 == 3 {
			status = StatusFailure
		}
		c.executions = append(c.executions, ExecutionRecord{
			ID:        Scalar(strconv.Itoa(100 - i)),
			Kind:      kinds[i%len(kinds)],
			Status:    status,
			Duration:  Scalar(strconv.Itoa(30 + i*7)),
			CreatedAt: now.Add(time.Duration(-i) * time.Hour).Format("2006-01-02T15:04:05"),
		})
	}
	c.nextID = 101

	c.pipelines = []PipelineStatus{
		{Name: "Main Build", Status: StatusSuccess, LastRun: "2 min ago"},
		{Name: "Regression Tests", Status: StatusRunning, LastRun: "running"},
		{Name: "Staging Deploy", Status: StatusFailure, LastRun: "1 hour ago"},
		{Name: "Performance Suite", Status: StatusPending, LastRun: "queued"},
	}
}

func (c *MockClient) GetMetrics(ctx context.Context) (*MetricsSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := time.Now()
	trend := &TrendSeries{}
	for i := 6; i >= 0; i-- {
		trend.Dates = append(trend.Dates, now.AddDate(0, 0, -i).Format("2006-01-02"))
		trend.SuccessRate = append(trend.SuccessRate, 80+rand.Float64()*20)
		trend.AvgTime = append(trend.AvgTime, 20+rand.Float64()*30)
	}

	return &MetricsSnapshot{
		SuccessRate: 90 + float64(rand.Intn(10)),
		AvgDuration: Scalar(fmt.Sprintf("%.1fs", 1+rand.Float64()*3)),
		Coverage:    85,
		BugsFound:   float64(5 + rand.Intn(20)),
		Trend:       trend,
		Distribution: &DistributionSeries{
			Kinds:  []string{"web", "api", "performance"},
			Counts: []float64{30, 25, 15},
		},
		Performance: &PerformanceSeries{
			Tests: []string{"Login", "Navigation", "Forms", "API", "Performance"},
			Times: []float64{1200, 800, 1500, 600, 3000},
		},
		Timestamp: now.Format(time.RFC3339),
	}, nil
}

func (c *MockClient) GetExecutions(ctx context.Context, opts ListOptions) ([]ExecutionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var result []ExecutionRecord
	for _, e := range c.executions {
		if opts.Kind != "" && e.Kind != opts.Kind {
			continue
		}
		if opts.Status != "" && e.Status != opts.Status {
			continue
		}
		result = append(result, e)
		if opts.Limit > 0 && len(result) == opts.Limit {
			break
		}
	}
	return result, nil
}

func (c *MockClient) GetPipelines(ctx context.Context) ([]PipelineStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]PipelineStatus(nil), c.pipelines...), nil
}

func (c *MockClient) GetSystem(ctx context.Context) (*SystemUtilization, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &SystemUtilization{
		CPU:     20 + rand.Float64()*70,
		Memory:  40 + rand.Float64()*50,
		Disk:    55,
		Network: rand.Float64() * 100,
	}, nil
}

// RunTests records a new running execution at the head of the list.
func (c *MockClient) RunTests(ctx context.Context, req RunRequest) (*RunAck, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	id := Scalar(strconv.Itoa(c.nextID))
	c.nextID++
	exec := ExecutionRecord{
		ID:        id,
		Kind:      req.Kind,
		Status:    StatusRunning,
		Duration:  "0",
		CreatedAt: time.Now().Format("2006-01-02T15:04:05"),
	}
	c.executions = append([]ExecutionRecord{exec}, c.executions...)

	return &RunAck{
		Message:     "Test execution started",
		ExecutionID: id,
		Status:      StatusRunning,
	}, nil
}
