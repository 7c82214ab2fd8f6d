package format

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/qaboard/dashboard/internal/qaapi"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		status qaapi.Status
		label  string
		color  string
		icon   string
	}{
		{"sucesso", "SUCCESS", "success", "fas fa-check"},
		{"falha", "FAILURE", "danger", "fas fa-times"},
		{"executando", "RUNNING", "warning", "fas fa-spinner fa-spin"},
		{"pendente", "PENDING", "info", "fas fa-clock"},
		{"passed", "SUCCESS", "success", "fas fa-check"},
	}

	for _, tt := range tests {
		d := Status(tt.status)
		assert.Equal(t, tt.label, d.Label, tt.status)
		assert.Equal(t, tt.color, d.Color, tt.status)
		assert.Equal(t, tt.icon, d.Icon, tt.status)
	}
}

func TestStatusUnknownFallsBackToPending(t *testing.T) {
	pending := Status(qaapi.StatusPending)
	for _, raw := range []qaapi.Status{"cancelado", "", "???"} {
		assert.Equal(t, pending, Status(raw), "status %q", raw)
	}
	assert.Equal(t, "badge bg-info", Status("whatever").BadgeClass())
}

func TestTimestamp(t *testing.T) {
	assert.Equal(t, "05/03/2024 14:07", Timestamp("2024-03-05T14:07:00"))
	assert.Equal(t, "05/03/2024 14:07", Timestamp("2024-03-05T14:07:00.123456"))
	assert.Equal(t, "05/03/2024 14:07", Timestamp("2024-03-05T14:07:00Z"))
	assert.Equal(t, NotAvailable, Timestamp(""))
	assert.Equal(t, InvalidDate, Timestamp("yesterday"))
}

func TestNumberAndPercent(t *testing.T) {
	assert.Equal(t, "97", Number(97))
	assert.Equal(t, "88.5", Number(88.5))
	assert.Equal(t, "0", Number(0))
	assert.Equal(t, "120%", Percent(120))
}

func TestProgress(t *testing.T) {
	assert.Equal(t, 100.0, ProgressWidth(130))
	assert.Equal(t, 0.0, ProgressWidth(-5))
	assert.Equal(t, 42.0, ProgressWidth(42))

	assert.Equal(t, "bg-danger", ProgressClass(81))
	assert.Equal(t, "bg-warning", ProgressClass(80))
	assert.Equal(t, "bg-warning", ProgressClass(61))
	assert.Equal(t, "bg-success", ProgressClass(60))
}
