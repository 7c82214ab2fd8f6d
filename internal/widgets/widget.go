package widgets

// Key identifies a chart widget target.
type Key string

const (
	Trend        Key = "trend"
	Distribution Key = "distribution"
	Performance  Key = "performance"
)

// Keys lists the chart targets in display order.
func Keys() []Key {
	return []Key{Trend, Distribution, Performance}
}

type Kind string

const (
	KindLine     Kind = "line"
	KindDoughnut Kind = "doughnut"
	KindBar      Kind = "bar"
)

type Series struct {
	Name   string
	Values []float64
}

// Spec is the full configuration of a chart. Charts are always rebuilt from
// a complete Spec; there is no incremental update.
type Spec struct {
	Kind   Kind
	Title  string
	Labels []string
	Series []Series
	// YMax caps the value axis when positive.
	YMax float64
}

// Handle is a live rendered widget. Destroy releases its rendering state and
// must be safe to call more than once.
type Handle interface {
	Key() Key
	HTML() string
	Destroy()
}
