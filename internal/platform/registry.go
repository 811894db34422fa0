package platform

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/seantiz/taskroute/internal/model"
)

// TelemetryUpdate is a telemetry refresh. Nil fields leave the current value
// unchanged, so applying the same update twice yields the same state.
type TelemetryUpdate struct {
	Status          *string  `json:"status,omitempty"`
	CurrentLoad     *float64 `json:"current_load,omitempty"`
	QueueLength     *int     `json:"queue_length,omitempty"`
	AvgResponseTime *float64 `json:"avg_response_time,omitempty"`
	SuccessRate     *float64 `json:"success_rate,omitempty"`
}

// Apply returns t with the update's non-nil fields set and every field clamped.
func (u TelemetryUpdate) Apply(t model.Telemetry) model.Telemetry {
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.CurrentLoad != nil {
		t.CurrentLoad = *u.CurrentLoad
	}
	if u.QueueLength != nil {
		t.QueueLength = *u.QueueLength
	}
	if u.AvgResponseTime != nil {
		t.AvgResponseTime = *u.AvgResponseTime
	}
	if u.SuccessRate != nil {
		t.SuccessRate = *u.SuccessRate
	}
	return t.Clamp()
}

// IsZero reports whether the update changes nothing.
func (u TelemetryUpdate) IsZero() bool {
	return u.Status == nil && u.CurrentLoad == nil && u.QueueLength == nil &&
		u.AvgResponseTime == nil && u.SuccessRate == nil
}

// Snapshot is an immutable, id-ordered copy of the registry at one point in time.
type Snapshot []model.ExecutionPlatform

// Get returns the platform with the given id from the snapshot.
func (s Snapshot) Get(id string) (model.ExecutionPlatform, bool) {
	for _, p := range s {
		if p.ID == id {
			return p, true
		}
	}
	return model.ExecutionPlatform{}, false
}

// Registry holds registered platforms. It is safe for concurrent use; all
// mutations are serialized, and Snapshot copies under the read lock so it
// never observes a half-applied update.
type Registry struct {
	mu        sync.RWMutex
	platforms map[string]model.ExecutionPlatform
	now       func() time.Time
}

// NewRegistry creates an empty platform registry.
func NewRegistry() *Registry {
	return &Registry{
		platforms: make(map[string]model.ExecutionPlatform),
		now:       time.Now,
	}
}

// Register adds a platform. Performance scores and telemetry are clamped on entry.
func (r *Registry) Register(p model.ExecutionPlatform) error {
	if p.ID == "" {
		return fmt.Errorf("register platform: id is required")
	}
	if !model.ValidCategory(p.Category) {
		return fmt.Errorf("register platform %q: unknown category %q", p.ID, p.Category)
	}
	if p.CostPerHour < 0 {
		return fmt.Errorf("register platform %q: negative cost rate", p.ID)
	}
	if p.Telemetry.Status != "" && !model.ValidAvailability(p.Telemetry.Status) {
		return fmt.Errorf("register platform %q: unknown status %q", p.ID, p.Telemetry.Status)
	}

	p = p.Clone()
	p.Performance = p.Performance.Clamp()
	p.Telemetry = p.Telemetry.Clamp()
	p.Telemetry.UpdatedAt = r.now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.platforms[p.ID]; ok {
		return fmt.Errorf("register platform %q: %w", p.ID, model.ErrDuplicateID)
	}
	r.platforms[p.ID] = p
	platformLoad.WithLabelValues(p.ID).Set(p.Telemetry.CurrentLoad)
	return nil
}

// UpdateTelemetry applies a telemetry refresh to the platform with the given
// id and returns the resulting telemetry.
func (r *Registry) UpdateTelemetry(id string, u TelemetryUpdate) (model.Telemetry, error) {
	return r.UpdateTelemetryFunc(id, func(model.Telemetry) TelemetryUpdate { return u })
}

// UpdateTelemetryFunc applies the update fn derives from the platform's
// current telemetry. fn runs under the registry's write lock, so refreshes
// relative to the current value are never lost to a concurrent update. fn
// must not call back into the registry.
func (r *Registry) UpdateTelemetryFunc(id string, fn func(model.Telemetry) TelemetryUpdate) (model.Telemetry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.platforms[id]
	if !ok {
		return model.Telemetry{}, fmt.Errorf("update telemetry %q: %w", id, model.ErrUnknownPlatform)
	}
	u := fn(p.Telemetry)
	if u.Status != nil && !model.ValidAvailability(*u.Status) {
		return model.Telemetry{}, fmt.Errorf("update telemetry %q: unknown status %q", id, *u.Status)
	}
	p.Telemetry = u.Apply(p.Telemetry)
	p.Telemetry.UpdatedAt = r.now().UTC()
	r.platforms[id] = p

	platformLoad.WithLabelValues(id).Set(p.Telemetry.CurrentLoad)
	return p.Telemetry, nil
}

// Get returns a copy of the platform with the given id.
func (r *Registry) Get(id string) (model.ExecutionPlatform, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.platforms[id]
	if !ok {
		return model.ExecutionPlatform{}, fmt.Errorf("get platform %q: %w", id, model.ErrUnknownPlatform)
	}
	return p.Clone(), nil
}

// Snapshot returns a deep copy of all platforms, sorted by id for a stable
// iteration order.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := make(Snapshot, 0, len(r.platforms))
	for _, p := range r.platforms {
		snap = append(snap, p.Clone())
	}
	sort.Slice(snap, func(i, j int) bool {
		return snap[i].ID < snap[j].ID
	})
	return snap
}

// Len returns the number of registered platforms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.platforms)
}
