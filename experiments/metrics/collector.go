package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SearchMetric describes one planning phase: the grow calls made at a root
// before an action was committed.
type SearchMetric struct {
	StartTime    time.Time
	Duration     time.Duration
	Iterations   int
	Nodes        int // decision nodes allocated while planning
	IsTreeReused bool
	IsFallback   bool // action came from the baseline policy
}

// StepMetric is a SearchMetric tied to the real step it planned.
type StepMetric struct {
	Step int
	Cost float64
	SearchMetric
}

// EpisodeMetric summarizes one episode from start to termination.
type EpisodeMetric struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Steps     int
	TotalCost float64
}

type Collector interface {
	Start()
	SetTreeReused(value bool)
	SetFallback(value bool)
	AddIteration()
	AddNode()
	Complete() SearchMetric
}

type collector struct {
	startTime    time.Time
	iterations   int
	nodes        int
	isTreeReused bool
	isFallback   bool
}

func NewCollector() Collector {
	return &collector{}
}

func (m *collector) Start() {
	*m = collector{startTime: time.Now()}
}

func (m *collector) SetTreeReused(value bool) {
	m.isTreeReused = value
}

func (m *collector) SetFallback(value bool) {
	m.isFallback = value
}

func (m *collector) AddIteration() {
	m.iterations++
}

func (m *collector) AddNode() {
	m.nodes++
}

func (m *collector) Complete() SearchMetric {
	return SearchMetric{
		StartTime:    m.startTime,
		Duration:     time.Since(m.startTime),
		Iterations:   m.iterations,
		Nodes:        m.nodes,
		IsTreeReused: m.isTreeReused,
		IsFallback:   m.isFallback,
	}
}

type dummyCollector struct{}

func NewDummyCollector() Collector {
	return &dummyCollector{}
}

func (m *dummyCollector) Start()                   {}
func (m *dummyCollector) SetTreeReused(value bool) {}
func (m *dummyCollector) SetFallback(value bool)   {}
func (m *dummyCollector) AddIteration()            {}
func (m *dummyCollector) AddNode()                 {}
func (m *dummyCollector) Complete() SearchMetric   { return SearchMetric{} }

// Exporter holds the planner's Prometheus metrics. Collectors created from
// one exporter add to the same totals and may run on different goroutines.
type Exporter struct {
	iterations prometheus.Counter
	nodes      prometheus.Counter
	reuses     prometheus.Counter
	fallbacks  prometheus.Counter
	duration   prometheus.Histogram
}

// NewExporter registers the planner's search metrics with reg.
func NewExporter(reg prometheus.Registerer) (*Exporter, error) {
	e := &Exporter{
		iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "planner",
			Name:      "search_iterations_total",
			Help:      "Number of grow calls run by the planner.",
		}),
		nodes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "planner",
			Name:      "search_nodes_total",
			Help:      "Number of decision nodes allocated while planning.",
		}),
		reuses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "planner",
			Name:      "tree_reuses_total",
			Help:      "Number of planning phases that started from a reused subtree.",
		}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "planner",
			Name:      "fallbacks_total",
			Help:      "Number of actions taken from the baseline policy.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "planner",
			Name:      "plan_duration_seconds",
			Help:      "Wall time of one planning phase.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
	}
	for _, c := range []prometheus.Collector{e.iterations, e.nodes, e.reuses, e.fallbacks, e.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Collector returns a new collector that records planning phases and also
// exports them.
func (e *Exporter) Collector() Collector {
	return &prometheusCollector{exporter: e}
}

// NewPrometheusCollector registers a fresh Exporter with reg and returns a
// collector feeding it.
func NewPrometheusCollector(reg prometheus.Registerer) (Collector, error) {
	e, err := NewExporter(reg)
	if err != nil {
		return nil, err
	}
	return e.Collector(), nil
}

type prometheusCollector struct {
	collector
	exporter *Exporter
}

func (m *prometheusCollector) AddIteration() {
	m.collector.AddIteration()
	m.exporter.iterations.Inc()
}

func (m *prometheusCollector) AddNode() {
	m.collector.AddNode()
	m.exporter.nodes.Inc()
}

func (m *prometheusCollector) Complete() SearchMetric {
	metric := m.collector.Complete()
	if metric.IsTreeReused {
		m.exporter.reuses.Inc()
	}
	if metric.IsFallback {
		m.exporter.fallbacks.Inc()
	}
	m.exporter.duration.Observe(metric.Duration.Seconds())
	return metric
}
