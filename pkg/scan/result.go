package scan

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/teslashibe/go-rover/pkg/robot"
)

// Status of a scan summary.
type Status string

const (
	StatusOK     Status = "ok"
	StatusNoData Status = "no-data"
)

// Sample is the filtered reading at one angle.
type Sample struct {
	Angle   int           `json:"angle"`
	Reading robot.Reading `json:"distance_cm"`
}

// Summary condenses a sweep into a heading suggestion.
// Distance fields are rounded to 0.1cm. A no-data summary leaves the
// heading fields zero and omits them from JSON.
type Summary struct {
	Status            Status  `json:"status"`
	BestAngle         int     `json:"best_angle"`
	BestClearanceCM   float64 `json:"best_clearance_cm"`
	AverageDistanceCM float64 `json:"average_distance_cm"`
	BlockedAngles     []int   `json:"blocked_angles"`
	SampleCount       int     `json:"sample_count"`
}

// MarshalJSON always writes best_angle for an ok summary, 0 included, and
// drops the heading fields for no-data.
func (s Summary) MarshalJSON() ([]byte, error) {
	type plain Summary
	if s.Status == StatusOK {
		return json.Marshal(plain(s))
	}
	blocked := s.BlockedAngles
	if blocked == nil {
		blocked = []int{}
	}
	return json.Marshal(struct {
		Status        Status `json:"status"`
		BlockedAngles []int  `json:"blocked_angles"`
		SampleCount   int    `json:"sample_count"`
	}{s.Status, blocked, s.SampleCount})
}

// Result is the outcome of one sweep.
type Result struct {
	ID        string                  `json:"id"`
	StartedAt time.Time               `json:"started_at"`
	Duration  time.Duration           `json:"duration"`
	Config    Config                  `json:"config"`
	Samples   []Sample                `json:"samples"`
	Raw       map[int][]robot.Reading `json:"raw"`
	Summary   Summary                 `json:"summary"`
}

// ValidSamples returns the samples carrying a distance, in scan order.
func (r *Result) ValidSamples() []Sample {
	return validSamples(r.Samples)
}

func validSamples(samples []Sample) []Sample {
	valid := make([]Sample, 0, len(samples))
	for _, s := range samples {
		if s.Reading.Valid() {
			valid = append(valid, s)
		}
	}
	return valid
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Summarize computes the summary of samples. The best angle is the valid
// sample with the largest distance; ties go to the earliest angle in scan
// order.
func Summarize(samples []Sample) Summary {
	valid := validSamples(samples)
	if len(valid) == 0 {
		return Summary{Status: StatusNoData, BlockedAngles: []int{}}
	}

	best := valid[0]
	distances := make([]float64, len(valid))
	blocked := []int{}
	for i, s := range valid {
		distances[i] = s.Reading.DistanceCM
		if s.Reading.DistanceCM > best.Reading.DistanceCM {
			best = s
		}
		if s.Reading.DistanceCM < BlockedBelowCM {
			blocked = append(blocked, s.Angle)
		}
	}

	return Summary{
		Status:            StatusOK,
		BestAngle:         best.Angle,
		BestClearanceCM:   round1(best.Reading.DistanceCM),
		AverageDistanceCM: round1(stat.Mean(distances, nil)),
		BlockedAngles:     blocked,
		SampleCount:       len(valid),
	}
}

// Describe renders the summary as a sentence for the status display or a
// voice reply.
func (r *Result) Describe() string {
	s := r.Summary
	if s.Status != StatusOK {
		return "I could not gather distance data."
	}

	blocked := "none"
	if len(s.BlockedAngles) > 0 {
		parts := make([]string, len(s.BlockedAngles))
		for i, a := range s.BlockedAngles {
			parts[i] = fmt.Sprint(a)
		}
		blocked = strings.Join(parts, ", ")
	}

	return fmt.Sprintf("Scan complete. Safest direction is around %d degrees with %.1f centimeters clearance. "+
		"Average distance %.1f cm. Blocked (<%.0fcm) angles: %s.",
		s.BestAngle, s.BestClearanceCM, s.AverageDistanceCM, BlockedBelowCM, blocked)
}
