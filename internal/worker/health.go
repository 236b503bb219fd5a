package worker

import (
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health of a component.
type HealthStatus struct {
	Healthy     bool      `json:"healthy"`
	LastCheck   time.Time `json:"lastCheck"`
	LastSuccess time.Time `json:"lastSuccess,omitzero"`
	Message     string    `json:"message,omitempty"`
}

// Health tracks the health of the worker's components (broker, queue
// consumers, cleanup).
type Health struct {
	mu         sync.RWMutex
	components map[string]HealthStatus
	now        func() time.Time
}

// NewHealth creates a new health tracker.
func NewHealth() *Health {
	return &Health{
		components: make(map[string]HealthStatus),
		now:        time.Now,
	}
}

// SetHealthy marks a component as healthy.
func (h *Health) SetHealthy(component, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	h.components[component] = HealthStatus{
		Healthy:     true,
		LastCheck:   now,
		LastSuccess: now,
		Message:     message,
	}
}

// SetUnhealthy marks a component as unhealthy, keeping its last success.
func (h *Health) SetUnhealthy(component string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	status := h.components[component]
	status.Healthy = false
	status.LastCheck = h.now()
	status.Message = err.Error()
	h.components[component] = status
}

// Record sets the component from the outcome of a check.
func (h *Health) Record(component string, err error, okMessage string) {
	if err != nil {
		h.SetUnhealthy(component, err)
		return
	}
	h.SetHealthy(component, okMessage)
}

// Status returns the status of a component.
func (h *Health) Status(component string) (HealthStatus, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status, ok := h.components[component]
	return status, ok
}

// All returns a copy of every component status.
func (h *Health) All() map[string]HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]HealthStatus, len(h.components))
	for name, status := range h.components {
		out[name] = status
	}
	return out
}

// Unhealthy returns the names of unhealthy components, sorted.
func (h *Health) Unhealthy() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []string
	for name, status := range h.components {
		if !status.Healthy {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// IsOverallHealthy returns true if all components are healthy.
func (h *Health) IsOverallHealthy() bool {
	return len(h.Unhealthy()) == 0
}
