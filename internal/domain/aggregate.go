package domain

import "fmt"

// CoverageRatio is the fraction of code exercised by tests. It is nominally
// in [0,1] but is never clamped, so malformed reports can push it outside.
type CoverageRatio = float64

// CounterPair is the raw numerator and denominator a report exposes for one
// metric kind.
type CounterPair struct {
	Covered float64 `json:"covered"`
	Missed  float64 `json:"missed"`
}

// Total returns covered plus missed.
func (c CounterPair) Total() float64 {
	return c.Covered + c.Missed
}

// Ratio returns covered/total, or 0 when there is nothing to cover.
func (c CounterPair) Ratio() CoverageRatio {
	total := c.Total()
	if total == 0 {
		return 0
	}
	return c.Covered / total
}

// Measurement is the result of parsing one report.
type Measurement struct {
	Format  ReportFormat  `json:"format"`
	Path    string        `json:"path"`
	Ratio   CoverageRatio `json:"ratio"`
	Counter *CounterPair  `json:"counter,omitempty"`
}

// AggregationPolicy selects how per-report evidence is reduced to one ratio.
type AggregationPolicy string

const (
	// PolicyAverage takes the unweighted mean of per-report ratios.
	PolicyAverage AggregationPolicy = "average"
	// PolicySumCounters sums covered/missed counters before a single division.
	PolicySumCounters AggregationPolicy = "sum-counters"
)

// PolicyFor maps the "use aggregates for coverage" switch to a policy.
func PolicyFor(useAggregates bool) AggregationPolicy {
	if useAggregates {
		return PolicySumCounters
	}
	return PolicyAverage
}

// CounterAccumulator sums counters across reports for one aggregation
// session. It has a single owner and is not safe for concurrent use;
// construct a new one per session.
type CounterAccumulator struct {
	sum   CounterPair
	count int
}

// NewCounterAccumulator returns an empty accumulator.
func NewCounterAccumulator() *CounterAccumulator {
	return &CounterAccumulator{}
}

// Add folds one report's counters into the running totals.
func (a *CounterAccumulator) Add(c CounterPair) {
	a.sum.Covered += c.Covered
	a.sum.Missed += c.Missed
	a.count++
}

// Counter returns the running totals.
func (a *CounterAccumulator) Counter() CounterPair {
	return a.sum
}

// Len returns how many reports were added.
func (a *CounterAccumulator) Len() int {
	return a.count
}

// Ratio returns the cumulative covered/total ratio.
func (a *CounterAccumulator) Ratio() CoverageRatio {
	return a.sum.Ratio()
}

// Aggregate reduces the measurements of one workspace scan to a single ratio.
// No evidence yields 0. Under PolicySumCounters every measurement must come
// from an aggregation-capable format; the first one that does not is
// reported as UnsupportedAggregationError.
func Aggregate(measurements []Measurement, policy AggregationPolicy) (CoverageRatio, error) {
	if len(measurements) == 0 {
		return 0, nil
	}

	switch policy {
	case PolicyAverage, "":
		var sum float64
		for _, m := range measurements {
			sum += m.Ratio
		}
		return sum / float64(len(measurements)), nil
	case PolicySumCounters:
		acc := NewCounterAccumulator()
		for _, m := range measurements {
			if !m.Format.CanAggregate() || m.Counter == nil {
				return 0, &UnsupportedAggregationError{Format: m.Format}
			}
			acc.Add(*m.Counter)
		}
		return acc.Ratio(), nil
	default:
		return 0, fmt.Errorf("unknown aggregation policy: %q", policy)
	}
}
