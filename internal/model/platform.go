package model

import (
	"math"
	"slices"
	"time"
)

// Platform category constants.
const (
	CategorySandboxedCodeExec = "sandboxed-code-exec"
	CategoryBrowserAutomation = "browser-automation"
	CategoryManagedInference  = "managed-inference"
	CategoryElasticCompute    = "elastic-compute"
	CategoryLocal             = "local"
)

// Platform availability constants. Availability is informational only.
const (
	PlatformAvailable   = "available"
	PlatformBusy        = "busy"
	PlatformOffline     = "offline"
	PlatformMaintenance = "maintenance"
)

// Telemetry bounds.
const (
	MinAvgResponseTime = 0.1
	maxScore           = 100
)

var categories = map[string]bool{
	CategorySandboxedCodeExec: true,
	CategoryBrowserAutomation: true,
	CategoryManagedInference:  true,
	CategoryElasticCompute:    true,
	CategoryLocal:             true,
}

var availabilities = map[string]bool{
	PlatformAvailable:   true,
	PlatformBusy:        true,
	PlatformOffline:     true,
	PlatformMaintenance: true,
}

// ValidCategory reports whether c is one of the known platform categories.
func ValidCategory(c string) bool {
	return categories[c]
}

// ValidAvailability reports whether s is one of the known platform availability values.
func ValidAvailability(s string) bool {
	return availabilities[s]
}

// Performance is the static performance profile of a platform. Each score is 0-100.
type Performance struct {
	Speed          float64 `json:"speed" yaml:"speed"`
	Reliability    float64 `json:"reliability" yaml:"reliability"`
	CostEfficiency float64 `json:"cost_efficiency" yaml:"cost_efficiency"`
	Scalability    float64 `json:"scalability" yaml:"scalability"`
}

// Clamp returns p with every score limited to [0,100].
func (p Performance) Clamp() Performance {
	return Performance{
		Speed:          clampScore(p.Speed),
		Reliability:    clampScore(p.Reliability),
		CostEfficiency: clampScore(p.CostEfficiency),
		Scalability:    clampScore(p.Scalability),
	}
}

// RoutingScore is the unweighted mean of speed, reliability and scalability.
func (p Performance) RoutingScore() float64 {
	return (p.Speed + p.Reliability + p.Scalability) / 3
}

// Telemetry is the live, periodically refreshed state of a platform.
type Telemetry struct {
	Status          string    `json:"status" yaml:"status"`
	CurrentLoad     float64   `json:"current_load" yaml:"current_load"`
	QueueLength     int       `json:"queue_length" yaml:"queue_length"`
	AvgResponseTime float64   `json:"avg_response_time" yaml:"avg_response_time"`
	SuccessRate     float64   `json:"success_rate" yaml:"success_rate"`
	UpdatedAt       time.Time `json:"updated_at" yaml:"-"`
}

// Clamp returns t with every numeric field limited to its declared range and
// an empty status set to available. Unknown statuses are left for callers to
// reject.
func (t Telemetry) Clamp() Telemetry {
	t.CurrentLoad = clampScore(t.CurrentLoad)
	t.QueueLength = max(t.QueueLength, 0)
	if math.IsNaN(t.AvgResponseTime) || t.AvgResponseTime < MinAvgResponseTime {
		t.AvgResponseTime = MinAvgResponseTime
	}
	t.SuccessRate = clampScore(t.SuccessRate)
	if t.Status == "" {
		t.Status = PlatformAvailable
	}
	return t
}

// ExecutionPlatform is a routable compute target.
type ExecutionPlatform struct {
	ID           string      `json:"id" yaml:"id"`
	Name         string      `json:"name" yaml:"name"`
	Category     string      `json:"category" yaml:"category"`
	Capabilities []string    `json:"capabilities" yaml:"capabilities"`
	Performance  Performance `json:"performance" yaml:"performance"`
	Telemetry    Telemetry   `json:"telemetry" yaml:"telemetry"`
	CostPerHour  float64     `json:"cost_per_hour" yaml:"cost_per_hour"`
}

// Clone returns a deep copy of p.
func (p ExecutionPlatform) Clone() ExecutionPlatform {
	p.Capabilities = slices.Clone(p.Capabilities)
	return p
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(maxScore, math.Max(0, v))
}
