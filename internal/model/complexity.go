package model

import (
	"math"
	"slices"
)

// Complexity factor names. They double as the JSON keys exchanged with the oracle.
const (
	FactorComputational = "computational_requirements"
	FactorData          = "data_processing"
	FactorIntegration   = "integration_complexity"
	FactorRealTime      = "real_time_requirements"
	FactorSecurity      = "security_requirements"
)

// FactorNames lists every complexity factor in canonical order.
var FactorNames = []string{
	FactorComputational,
	FactorData,
	FactorIntegration,
	FactorRealTime,
	FactorSecurity,
}

// Complexity level constants.
const (
	LevelSimple     = "simple"
	LevelModerate   = "moderate"
	LevelComplex    = "complex"
	LevelEnterprise = "enterprise"
)

// Lower bounds of the level buckets. Each bucket is [lower, next lower).
const (
	moderateFloor   = 35
	complexFloor    = 55
	enterpriseFloor = 75
)

// LevelFor buckets an aggregate score into a complexity level.
func LevelFor(score float64) string {
	switch {
	case score < moderateFloor:
		return LevelSimple
	case score < complexFloor:
		return LevelModerate
	case score < enterpriseFloor:
		return LevelComplex
	default:
		return LevelEnterprise
	}
}

// Factors holds the five complexity factor scores, each 0-100.
type Factors struct {
	ComputationalRequirements float64 `json:"computational_requirements"`
	DataProcessing            float64 `json:"data_processing"`
	IntegrationComplexity     float64 `json:"integration_complexity"`
	RealTimeRequirements      float64 `json:"real_time_requirements"`
	SecurityRequirements      float64 `json:"security_requirements"`
}

// Value returns the score of the named factor. Unknown names return 0.
func (f Factors) Value(name string) float64 {
	switch name {
	case FactorComputational:
		return f.ComputationalRequirements
	case FactorData:
		return f.DataProcessing
	case FactorIntegration:
		return f.IntegrationComplexity
	case FactorRealTime:
		return f.RealTimeRequirements
	case FactorSecurity:
		return f.SecurityRequirements
	}
	return 0
}

// Set assigns the named factor, clamped to [0,100]. Unknown names are ignored.
func (f *Factors) Set(name string, v float64) {
	v = clampScore(v)
	switch name {
	case FactorComputational:
		f.ComputationalRequirements = v
	case FactorData:
		f.DataProcessing = v
	case FactorIntegration:
		f.IntegrationComplexity = v
	case FactorRealTime:
		f.RealTimeRequirements = v
	case FactorSecurity:
		f.SecurityRequirements = v
	}
}

// Mean returns the arithmetic mean of the five factors.
func (f Factors) Mean() float64 {
	var sum float64
	for _, name := range FactorNames {
		sum += f.Value(name)
	}
	return sum / float64(len(FactorNames))
}

// TaskComplexity is the immutable classification of one task description.
type TaskComplexity struct {
	Level                string   `json:"level"`
	Score                float64  `json:"score"`
	Factors              Factors  `json:"factors"`
	EstimatedDuration    int      `json:"estimated_duration"`
	RecommendedPlatforms []string `json:"recommended_platforms"`
}

// NewTaskComplexity derives the aggregate score and level from factors. A
// non-positive duration is replaced with max(1, round(score/10)) minutes.
func NewTaskComplexity(f Factors, durationMinutes int, recommended []string) TaskComplexity {
	for _, name := range FactorNames {
		f.Set(name, f.Value(name))
	}
	score := f.Mean()
	if durationMinutes <= 0 {
		durationMinutes = DefaultDuration(score)
	}
	if recommended == nil {
		recommended = []string{}
	}
	return TaskComplexity{
		Level:                LevelFor(score),
		Score:                score,
		Factors:              f,
		EstimatedDuration:    durationMinutes,
		RecommendedPlatforms: slices.Clone(recommended),
	}
}

// DefaultDuration is the estimated duration in minutes used when none is supplied.
func DefaultDuration(score float64) int {
	return max(1, int(math.Round(score/10)))
}

// Clone returns a deep copy of c.
func (c TaskComplexity) Clone() TaskComplexity {
	c.RecommendedPlatforms = slices.Clone(c.RecommendedPlatforms)
	return c
}
