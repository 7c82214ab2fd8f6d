package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/qaboard/dashboard/internal/format"
	"github.com/qaboard/dashboard/internal/notify"
	"github.com/qaboard/dashboard/internal/pipeline"
	"github.com/qaboard/dashboard/internal/qaapi"
	"github.com/qaboard/dashboard/internal/view"
	"github.com/qaboard/dashboard/internal/widgets"
)

//go:embed templates/*.html
var templateFS embed.FS

// highlightFor is how long a changed card stays highlighted on the page.
const highlightFor = 2 * time.Second

type Server struct {
	dash      *pipeline.Dashboard
	logger    *slog.Logger
	gatherer  prometheus.Gatherer
	templates map[string]*template.Template
}

func NewServer(dash *pipeline.Dashboard, logger *slog.Logger, gatherer prometheus.Gatherer) *Server {
	funcs := template.FuncMap{
		"badge": func(d format.Display) string { return d.BadgeClass() },
	}

	// Each page is parsed together with the layout and defines "content".
	templates := make(map[string]*template.Template)
	for _, page := range []string{"dashboard.html"} {
		t := template.Must(template.New(page).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+page))
		templates[page] = t
	}

	return &Server{
		dash:      dash,
		logger:    logger,
		gatherer:  gatherer,
		templates: templates,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleDashboard)
	r.Get("/charts/{key}", s.handleChart)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/dashboard", s.handleDashboardAPI)
		r.Post("/refresh", s.handleRefreshAPI)
		r.Post("/refresh/all", s.handleRefreshAllAPI)
		r.Post("/run-tests", s.handleRunTestsAPI)
		r.Post("/executions/{id}/details", s.handleViewDetailsAPI)
		r.Post("/executions/{id}/report", s.handleDownloadReportAPI)
		r.Get("/notifications", s.handleNotificationsAPI)
		r.Delete("/notifications/{id}", s.handleDismissNotificationAPI)
	})

	return r
}

type card struct {
	ID          string
	Title       string
	Text        string
	Highlighted bool
}

type bar struct {
	ID    string
	Title string
	view.Progress
}

type pageData struct {
	Title         string
	Cards         []card
	LastUpdated   string
	Charts        []widgets.Key
	Executions    []view.Row
	Pipelines     []view.Row
	Utilization   []bar
	Notifications []notify.Notification
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	doc := s.dash.Document()
	now := time.Now()

	data := pageData{
		Title:         "QA Dashboard",
		LastUpdated:   doc.Text(view.LastUpdated),
		Charts:        s.dash.Registry().LiveKeys(),
		Executions:    doc.Rows(view.ExecutionsTable),
		Pipelines:     doc.Rows(view.PipelineList),
		Notifications: s.dash.Notifications().Active(),
	}
	for _, c := range []struct{ id, title string }{
		{view.SuccessRate, "Success rate (%)"},
		{view.AvgDuration, "Average time"},
		{view.Coverage, "Coverage (%)"},
		{view.BugsFound, "Bugs found"},
	} {
		f, _ := doc.Field(c.id)
		data.Cards = append(data.Cards, card{ID: c.id, Title: c.title, Text: f.Text, Highlighted: f.Highlighted(now, highlightFor)})
	}
	for _, b := range []struct{ id, title string }{
		{view.CPUUsage, "CPU"},
		{view.MemoryUsage, "Memory"},
		{view.DiskUsage, "Disk"},
		{view.NetworkUsage, "Network"},
	} {
		p, _ := doc.Progress(b.id)
		data.Utilization = append(data.Utilization, bar{ID: b.id, Title: b.title, Progress: p})
	}

	s.render(w, "dashboard.html", data)
}

// handleChart serves the rendered chart document for one widget key; the
// page embeds it in a frame.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	key := widgets.Key(chi.URLParam(r, "key"))
	html := s.dash.Registry().HTML(key)
	if html == "" {
		http.Error(w, "Chart not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, html)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = io.WriteString(w, "ok")
}

type dashboardResponse struct {
	State    string        `json:"state"`
	Widgets  []widgets.Key `json:"widgets"`
	Document view.Snapshot `json:"document"`
}

func (s *Server) handleDashboardAPI(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dashboardResponse{
		State:    s.dash.State().String(),
		Widgets:  s.dash.Registry().LiveKeys(),
		Document: s.dash.Document().Snapshot(),
	})
}

type refreshResponse struct {
	Cycle   uint64            `json:"cycle"`
	Trigger pipeline.Trigger  `json:"trigger"`
	Failed  []pipeline.Source `json:"failed"`
}

func (s *Server) handleRefreshAPI(w http.ResponseWriter, r *http.Request) {
	report, err := s.dash.RefreshMetrics(detached(r))
	s.writeReport(w, report, err)
}

func (s *Server) handleRefreshAllAPI(w http.ResponseWriter, r *http.Request) {
	report, err := s.dash.RefreshAll(detached(r))
	s.writeReport(w, report, err)
}

// detached keeps the request values but not its cancellation, so a client
// that disconnects does not abort backend calls. Each call keeps its own
// timeout.
func detached(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func (s *Server) writeReport(w http.ResponseWriter, report pipeline.Report, err error) {
	if err != nil {
		s.writeControlError(w, err)
		return
	}
	failed := report.Failed()
	if failed == nil {
		failed = []pipeline.Source{}
	}
	writeJSON(w, http.StatusOK, refreshResponse{Cycle: report.Cycle, Trigger: report.Trigger, Failed: failed})
}

type runTestsRequest struct {
	Kind        string `json:"kind"`
	Environment string `json:"environment"`
}

func (s *Server) handleRunTestsAPI(w http.ResponseWriter, r *http.Request) {
	// The body is optional; an empty one keeps the configured defaults.
	var req runTestsRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	ack, err := s.dash.RunTests(detached(r), qaapi.RunRequest{Kind: req.Kind, Environment: req.Environment})
	if err != nil {
		s.writeControlError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ack)
}

func (s *Server) handleViewDetailsAPI(w http.ResponseWriter, r *http.Request) {
	n, err := s.dash.ViewDetails(chi.URLParam(r, "id"))
	if err != nil {
		s.writeControlError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleDownloadReportAPI(w http.ResponseWriter, r *http.Request) {
	n, err := s.dash.DownloadReport(chi.URLParam(r, "id"))
	if err != nil {
		s.writeControlError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleNotificationsAPI(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.dash.Notifications().Active())
}

func (s *Server) handleDismissNotificationAPI(w http.ResponseWriter, r *http.Request) {
	if !s.dash.Notifications().Dismiss(chi.URLParam(r, "id")) {
		http.Error(w, "Notification not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeControlError(w http.ResponseWriter, err error) {
	if errors.Is(err, pipeline.ErrTornDown) {
		http.Error(w, "Dashboard is shutting down", http.StatusServiceUnavailable)
		return
	}
	s.logger.Error("control failed", "error", err)
	http.Error(w, "Backend request failed", http.StatusBadGateway)
}

func (s *Server) render(w http.ResponseWriter, page string, data any) {
	t, ok := s.templates[page]
	if !ok {
		s.logger.Error("template not found", "page", page)
		http.Error(w, "Page not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	if err := t.ExecuteTemplate(w, "layout", data); err != nil {
		s.logger.Error("template error", "page", page, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
