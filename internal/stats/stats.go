// Package stats accumulates duration samples and reduces them to summary
// metrics. Samples are kept in arrival order; reductions operate on a sorted
// snapshot and never reorder the collected sequence.
package stats

import (
	"errors"
	"math"
	"time"

	"github.com/montanaflynn/stats"
)

// ErrNoSamples is returned when a summary is requested for an empty
// collector. Callers must treat this as "no data", not as zero.
var ErrNoSamples = errors.New("no samples collected")

// Collector accumulates duration samples.
type Collector struct {
	samples []time.Duration
}

// NewCollector returns a collector with capacity preallocated for the
// expected sample count.
func NewCollector(capacity int) *Collector {
	if capacity < 0 {
		capacity = 0
	}
	return &Collector{samples: make([]time.Duration, 0, capacity)}
}

// Add appends one sample. Negative durations are clamped to zero; a latency
// measured from a monotonic clock cannot meaningfully be negative.
func (c *Collector) Add(d time.Duration) {
	if d < 0 {
		d = 0
	}
	c.samples = append(c.samples, d)
}

// Count reports the number of samples added so far.
func (c *Collector) Count() int {
	return len(c.samples)
}

// Summary holds the reduced statistics of a sample set. Std is the
// population standard deviation (divide by N, no Bessel correction).
type Summary struct {
	Count  int
	Mean   time.Duration
	Std    time.Duration
	Median time.Duration
	Min    time.Duration
	Max    time.Duration
}

// Summarize reduces the collected samples. Returns ErrNoSamples when
// nothing was added.
func (c *Collector) Summarize() (Summary, error) {
	if len(c.samples) == 0 {
		return Summary{}, ErrNoSamples
	}

	data := make(stats.Float64Data, len(c.samples))
	for i, d := range c.samples {
		data[i] = float64(d.Nanoseconds())
	}

	mean, err := stats.Mean(data)
	if err != nil {
		return Summary{}, err
	}
	std, err := stats.StandardDeviationPopulation(data)
	if err != nil {
		return Summary{}, err
	}
	// Median sorts an internal copy; data (and c.samples) keep their order.
	median, err := stats.Median(data)
	if err != nil {
		return Summary{}, err
	}
	min, err := stats.Min(data)
	if err != nil {
		return Summary{}, err
	}
	max, err := stats.Max(data)
	if err != nil {
		return Summary{}, err
	}

	return Summary{
		Count:  len(c.samples),
		Mean:   asDuration(mean),
		Std:    asDuration(std),
		Median: asDuration(median),
		Min:    asDuration(min),
		Max:    asDuration(max),
	}, nil
}

func asDuration(ns float64) time.Duration {
	return time.Duration(math.Round(ns))
}
