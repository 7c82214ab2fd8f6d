// Package view holds the server-side model of the rendered dashboard page.
// Elements are addressed by stable ids; updates to ids missing from the
// layout are ignored, the same way markup without a target element is.
package view

import (
	"sync"
	"time"

	"github.com/qaboard/dashboard/internal/format"
)

const (
	SuccessRate = "success-rate"
	AvgDuration = "avg-duration"
	Coverage    = "coverage"
	BugsFound   = "bugs-found"
	LastUpdated = "last-updated"

	ExecutionsTable = "executions-table"
	PipelineList    = "pipeline-status"

	CPUUsage     = "cpu-usage"
	MemoryUsage  = "memory-usage"
	DiskUsage    = "disk-usage"
	NetworkUsage = "network-usage"
)

// Field is a text element. Highlights counts value changes; ChangedAt is the
// time of the last one.
type Field struct {
	Text       string    `json:"text"`
	Highlights int       `json:"highlights"`
	ChangedAt  time.Time `json:"changedAt"`
}

// Highlighted reports whether the field changed within d of now.
func (f Field) Highlighted(now time.Time, d time.Duration) bool {
	return !f.ChangedAt.IsZero() && now.Sub(f.ChangedAt) < d
}

type Progress struct {
	Width float64 `json:"width"`
	Text  string  `json:"text"`
	Class string  `json:"class"`
}

type Row struct {
	Key    string         `json:"key"`
	Cells  []string       `json:"cells"`
	Status format.Display `json:"status"`
}

type Layout struct {
	Fields     []string
	Progress   []string
	Containers []string
}

func DefaultLayout() Layout {
	return Layout{
		Fields:     []string{SuccessRate, AvgDuration, Coverage, BugsFound, LastUpdated},
		Progress:   []string{CPUUsage, MemoryUsage, DiskUsage, NetworkUsage},
		Containers: []string{ExecutionsTable, PipelineList},
	}
}

// Document is safe for concurrent use. Every container rebuild is swapped in
// whole, so readers never observe a partially built list.
type Document struct {
	mu         sync.RWMutex
	now        func() time.Time
	fields     map[string]*Field
	progress   map[string]*Progress
	containers map[string][]Row
}

func NewDocument(layout Layout) *Document {
	d := &Document{
		now:        time.Now,
		fields:     make(map[string]*Field, len(layout.Fields)),
		progress:   make(map[string]*Progress, len(layout.Progress)),
		containers: make(map[string][]Row, len(layout.Containers)),
	}
	for _, id := range layout.Fields {
		d.fields[id] = &Field{}
	}
	for _, id := range layout.Progress {
		d.progress[id] = &Progress{}
	}
	for _, id := range layout.Containers {
		d.containers[id] = nil
	}
	return d
}

func (d *Document) Has(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if _, ok := d.fields[id]; ok {
		return true
	}
	if _, ok := d.progress[id]; ok {
		return true
	}
	_, ok := d.containers[id]
	return ok
}

func (d *Document) Field(id string) (Field, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	f, ok := d.fields[id]
	if !ok {
		return Field{}, false
	}
	return *f, true
}

func (d *Document) Text(id string) string {
	f, _ := d.Field(id)
	return f.Text
}

// SetText replaces the text of id without highlighting.
func (d *Document) SetText(id, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if f, ok := d.fields[id]; ok {
		f.Text = text
	}
}

// UpdateText sets the text of id and highlights it, but only when it differs
// from what is displayed. It reports whether the value changed.
func (d *Document) UpdateText(id, text string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.fields[id]
	if !ok || f.Text == text {
		return false
	}
	f.Text = text
	f.Highlights++
	f.ChangedAt = d.now()
	return true
}

func (d *Document) Progress(id string) (Progress, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.progress[id]
	if !ok {
		return Progress{}, false
	}
	return *p, true
}

func (d *Document) SetProgress(id string, p Progress) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.progress[id]; ok {
		*cur = p
	}
}

// Rows returns a copy of the rows of container id.
func (d *Document) Rows(id string) []Row {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rows := d.containers[id]
	return append([]Row(nil), rows...)
}

// Rebuild clears container id and fills it with the rows appended by fill.
// The new contents become visible at once when fill returns.
func (d *Document) Rebuild(id string, fill func(appendRow func(Row))) {
	var rows []Row
	fill(func(r Row) { rows = append(rows, r) })

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.containers[id]; ok {
		d.containers[id] = rows
	}
}

// Snapshot is a point-in-time copy of every element.
type Snapshot struct {
	Fields     map[string]Field    `json:"fields"`
	Progress   map[string]Progress `json:"progress"`
	Containers map[string][]Row    `json:"containers"`
}

func (d *Document) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s := Snapshot{
		Fields:     make(map[string]Field, len(d.fields)),
		Progress:   make(map[string]Progress, len(d.progress)),
		Containers: make(map[string][]Row, len(d.containers)),
	}
	for id, f := range d.fields {
		s.Fields[id] = *f
	}
	for id, p := range d.progress {
		s.Progress[id] = *p
	}
	for id, rows := range d.containers {
		s.Containers[id] = append([]Row(nil), rows...)
	}
	return s
}
