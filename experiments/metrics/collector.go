package metrics

import "time"

// SearchMetric summarizes one Improve call.
type SearchMetric struct {
	Simulations int64
	Duration    time.Duration
	TreeReused  bool
}

// StepMetric is the search metric of one executed world step.
type StepMetric struct {
	Step   int
	Action string
	Reward float64
	SearchMetric
}

// RunMetric summarizes one complete episode.
type RunMetric struct {
	Steps            int
	DiscountedReturn float64
	Terminal         bool
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}

// Collector gathers per-step search metrics. The solver is single
// threaded, so the collector is too.
type Collector interface {
	Start()
	AddSimulations(n int64)
	SetTreeReused(value bool)
	Complete() SearchMetric
}

type collector struct {
	startTime   time.Time
	simulations int64
	treeReused  bool
}

func NewCollector() Collector {
	return &collector{}
}

func (c *collector) Start() {
	c.startTime = time.Now()
	c.simulations = 0
	c.treeReused = false
}

func (c *collector) AddSimulations(n int64) {
	c.simulations += n
}

func (c *collector) SetTreeReused(value bool) {
	c.treeReused = value
}

func (c *collector) Complete() SearchMetric {
	return SearchMetric{
		Simulations: c.simulations,
		Duration:    time.Since(c.startTime),
		TreeReused:  c.treeReused,
	}
}

type dummyCollector struct{}

func NewDummyCollector() Collector {
	return &dummyCollector{}
}

func (dummyCollector) Start()                   {}
func (dummyCollector) AddSimulations(n int64)   {}
func (dummyCollector) SetTreeReused(value bool) {}
func (dummyCollector) Complete() SearchMetric   { return SearchMetric{} }
