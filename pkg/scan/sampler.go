package scan

import (
	"context"
	"slices"
	"time"

	"github.com/teslashibe/go-rover/internal/wait"
	"github.com/teslashibe/go-rover/pkg/robot"
)

// Sampler turns a noisy range sensor into one filtered reading: it takes
// Samples measurements, retries each timeout up to Retries times, and keeps
// the median of the valid ones.
type Sampler struct {
	Sensor  robot.RangeSensor
	Samples int
	Retries int

	Backoff time.Duration
	Gap     time.Duration
}

// NewSampler returns a sampler with the default backoff and gap.
func NewSampler(sensor robot.RangeSensor, samples, retries int) *Sampler {
	return &Sampler{
		Sensor:  sensor,
		Samples: max(samples, MinSamples),
		Retries: max(retries, 0),
		Backoff: RetryBackoff,
		Gap:     SampleGap,
	}
}

// Sample takes one batch. It returns the filtered value, the raw batch
// (sentinels included) and a non-nil error only if ctx ended the batch.
// A batch without any valid reading yields the Timeout sentinel.
func (s *Sampler) Sample(ctx context.Context) (robot.Reading, []robot.Reading, error) {
	raw := make([]robot.Reading, 0, s.Samples)

	for i := 0; i < s.Samples; i++ {
		r := s.Sensor.Measure()
		for attempt := 0; attempt < s.Retries && r.Sentinel == robot.SentinelTimeout; attempt++ {
			if err := wait.Sleep(ctx, s.Backoff); err != nil {
				return robot.Timeout(), raw, err
			}
			r = s.Sensor.Measure()
		}
		raw = append(raw, r)

		if i != s.Samples-1 {
			if err := wait.Sleep(ctx, s.Gap); err != nil {
				return Filter(raw), raw, err
			}
		}
	}

	return Filter(raw), raw, nil
}

// Filter reduces a batch to the median of its valid readings, or the
// Timeout sentinel when none are valid.
func Filter(batch []robot.Reading) robot.Reading {
	valid := make([]float64, 0, len(batch))
	for _, r := range batch {
		if r.Valid() {
			valid = append(valid, r.DistanceCM)
		}
	}
	if len(valid) == 0 {
		return robot.Timeout()
	}
	return robot.Distance(Median(valid))
}

// Median returns the median of values; even counts average the two middle
// values. values must be non-empty. The input is not modified.
func Median(values []float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
