package observability

import (
	"time"

	"github.com/guiqiqi/itmo-moodle-agent/component"
)

// ServiceHealth is the overall health of the service and its components.
type ServiceHealth struct {
	Service    string                 `json:"service"`
	Version    string                 `json:"version,omitempty"`
	Status     component.HealthStatus `json:"status"`
	Timestamp  time.Time              `json:"timestamp"`
	Components []component.Health     `json:"components,omitempty"`
}

// NewServiceHealth creates a healthy ServiceHealth.
func NewServiceHealth(service, version string) *ServiceHealth {
	return &ServiceHealth{
		Service:   service,
		Version:   version,
		Status:    component.StatusHealthy,
		Timestamp: time.Now().UTC(),
	}
}

// AddComponent records ch. Any unhealthy component makes the service
// unhealthy; a degraded one degrades a healthy service.
func (sh *ServiceHealth) AddComponent(ch component.Health) {
	sh.Components = append(sh.Components, ch)
	switch ch.Status {
	case component.StatusUnhealthy:
		sh.Status = component.StatusUnhealthy
	case component.StatusDegraded:
		if sh.Status != component.StatusUnhealthy {
			sh.Status = component.StatusDegraded
		}
	}
}

// Healthy reports whether the service can take traffic. Degraded counts.
func (sh *ServiceHealth) Healthy() bool {
	return sh.Status != component.StatusUnhealthy
}
