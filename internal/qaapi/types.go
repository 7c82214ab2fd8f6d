package qaapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Scalar is a JSON value the backend sends either as a string or as a number.
// It always holds the textual form.
type Scalar string

func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Scalar(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("scalar must be a string or a number: %w", err)
	}
	*s = Scalar(num.String())
	return nil
}

func (s Scalar) String() string { return string(s) }

type Status string

const (
	StatusSuccess Status = "sucesso"
	StatusFailure Status = "falha"
	StatusRunning Status = "executando"
	StatusPending Status = "pendente"
)

// Normalize maps the status to one of the four known values. The second
// return value is false when the raw value was not recognized, in which case
// StatusPending is returned.
func (s Status) Normalize() (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(string(s))) {
	case "sucesso", "success", "passed", "ok":
		return StatusSuccess, true
	case "falha", "failure", "failed", "error":
		return StatusFailure, true
	case "executando", "running", "in_progress":
		return StatusRunning, true
	case "pendente", "pending", "queued":
		return StatusPending, true
	}
	return StatusPending, false
}

type TrendSeries struct {
	Dates       []string  `json:"datas"`
	SuccessRate []float64 `json:"sucesso"`
	AvgTime     []float64 `json:"tempo"`
}

type DistributionSeries struct {
	Kinds  []string  `json:"tipos"`
	Counts []float64 `json:"quantidades"`
}

type PerformanceSeries struct {
	Tests []string  `json:"testes"`
	Times []float64 `json:"tempos"`
}

// MetricsSnapshot is the payload of GET /metrics. Every field is optional;
// absent values are rendered with defaults.
type MetricsSnapshot struct {
	SuccessRate  float64             `json:"taxaSucesso"`
	AvgDuration  Scalar              `json:"tempoMedio"`
	Coverage     float64             `json:"cobertura"`
	BugsFound    float64             `json:"bugsEncontrados"`
	Trend        *TrendSeries        `json:"tendencias,omitempty"`
	Distribution *DistributionSeries `json:"distribuicao,omitempty"`
	Performance  *PerformanceSeries  `json:"performance,omitempty"`
	Timestamp    string              `json:"timestamp,omitempty"`
}

type ExecutionRecord struct {
	ID        Scalar `json:"id"`
	Kind      string `json:"tipo"`
	Status    Status `json:"status"`
	Duration  Scalar `json:"duracao"`
	CreatedAt string `json:"data_criacao"`
}

type PipelineStatus struct {
	Name    string `json:"nome"`
	Status  Status `json:"status"`
	LastRun string `json:"ultimaExecucao"`
}

// SystemUtilization holds host usage percentages. Values outside [0,100]
// are passed through untouched.
type SystemUtilization struct {
	CPU     float64 `json:"cpu"`
	Memory  float64 `json:"memoria"`
	Disk    float64 `json:"disco"`
	Network float64 `json:"rede"`
}

type RunRequest struct {
	Kind        string `json:"tipo"`
	Environment string `json:"ambiente"`
}

type RunAck struct {
	Message     string `json:"mensagem"`
	ExecutionID Scalar `json:"execucao_id"`
	Status      Status `json:"status"`
}

type ListOptions struct {
	Limit  int
	Kind   string
	Status Status
}
