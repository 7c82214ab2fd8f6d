package charts

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/qaboard/dashboard/internal/widgets"
)

var palette = []string{"#007bff", "#28a745", "#ffc107", "#dc3545", "#17a2b8"}

// Generator is the chart widget primitive: Create builds a rendered chart
// handle, Destroy on the handle releases it.
type Generator struct {
	height string
	live   atomic.Int64
}

func NewGenerator() *Generator {
	return &Generator{height: "300px"}
}

// Live reports how many charts were created and not yet destroyed.
func (g *Generator) Live() int64 {
	return g.live.Load()
}

func (g *Generator) Create(key widgets.Key, spec widgets.Spec) (widgets.Handle, error) {
	var c Renderer
	switch spec.Kind {
	case widgets.KindLine:
		c = g.lineChart(key, spec)
	case widgets.KindDoughnut:
		c = g.doughnutChart(key, spec)
	case widgets.KindBar:
		c = g.barChart(key, spec)
	default:
		return nil, fmt.Errorf("chart %s: unsupported kind %q", key, spec.Kind)
	}

	html, err := g.renderToString(c)
	if err != nil {
		return nil, fmt.Errorf("chart %s: render: %w", key, err)
	}

	g.live.Add(1)
	return &Chart{key: key, html: html, owner: g}, nil
}

func (g *Generator) initOpts(key widgets.Key) charts.GlobalOpts {
	return charts.WithInitializationOpts(opts.Initialization{
		ChartID: "chart-" + string(key),
		Height:  g.height,
		Width:   "100%",
	})
}

func (g *Generator) lineChart(key widgets.Key, spec widgets.Spec) *charts.Line {
	line := charts.NewLine()
	global := []charts.GlobalOpts{
		g.initOpts(key),
		charts.WithTitleOpts(opts.Title{Title: spec.Title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "top"}),
	}
	if spec.YMax > 0 {
		global = append(global, charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: spec.YMax}))
	}
	line.SetGlobalOptions(global...)

	line.SetXAxis(spec.Labels)
	for i, s := range spec.Series {
		data := make([]opts.LineData, len(s.Values))
		for j, v := range s.Values {
			data[j] = opts.LineData{Value: v}
		}
		line.AddSeries(s.Name, data,
			charts.WithLineStyleOpts(opts.LineStyle{Color: palette[(i+1)%len(palette)], Width: 3}),
		)
	}
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))
	return line
}

func (g *Generator) doughnutChart(key widgets.Key, spec widgets.Spec) *charts.Pie {
	pie := charts.NewPie()
	pie.SetGlobalOptions(
		g.initOpts(key),
		charts.WithTitleOpts(opts.Title{Title: spec.Title}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Bottom: "0"}),
	)

	var values []float64
	if len(spec.Series) > 0 {
		values = spec.Series[0].Values
	}
	data := make([]opts.PieData, 0, len(spec.Labels))
	for i, label := range spec.Labels {
		var v float64
		if i < len(values) {
			v = values[i]
		}
		data = append(data, opts.PieData{
			Name:      label,
			Value:     v,
			ItemStyle: &opts.ItemStyle{Color: palette[i%len(palette)]},
		})
	}

	pie.AddSeries(spec.Title, data).
		SetSeriesOptions(charts.WithPieChartOpts(opts.PieChart{Radius: []string{"45%", "70%"}}))
	return pie
}

func (g *Generator) barChart(key widgets.Key, spec widgets.Spec) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		g.initOpts(key),
		charts.WithTitleOpts(opts.Title{Title: spec.Title}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
	)

	bar.SetXAxis(spec.Labels)
	for _, s := range spec.Series {
		data := make([]opts.BarData, len(s.Values))
		for i, v := range s.Values {
			data[i] = opts.BarData{
				Value:     v,
				ItemStyle: &opts.ItemStyle{Color: palette[i%len(palette)]},
			}
		}
		bar.AddSeries(s.Name, data)
	}
	return bar
}

// Renderer is anything that can render itself to an io.Writer.
type Renderer interface {
	Render(w io.Writer) error
}

func (g *Generator) renderToString(c Renderer) (string, error) {
	var buf bytes.Buffer
	if err := c.Render(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Chart is a rendered chart widget.
type Chart struct {
	key   widgets.Key
	owner *Generator

	mu        sync.Mutex
	html      string
	destroyed bool
}

func (c *Chart) Key() widgets.Key { return c.key }

func (c *Chart) HTML() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.html
}

func (c *Chart) Destroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

func (c *Chart) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return
	}
	c.destroyed = true
	c.html = ""
	c.owner.live.Add(-1)
}
