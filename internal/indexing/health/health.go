// Package health provides system health monitoring and status reporting.
package health

import "time"

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// FailureThreshold is the number of consecutive failed scans after which
// an address is reported as degraded.
const FailureThreshold = 3

// AddressHealth contains scan health for a monitored address.
type AddressHealth struct {
	Address             string       `json:"address"`
	Name                string       `json:"name"`
	Status              SystemStatus `json:"status"`
	NextBlock           uint64       `json:"next_block"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	LastError           string       `json:"last_error,omitempty"`
	LastSuccess         *time.Time   `json:"last_success,omitempty"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus       SystemStatus             `json:"system_status"`
	LastCycle          *time.Time               `json:"last_cycle,omitempty"`
	MissedTransactions int                      `json:"missed_transactions"`
	Addresses          map[string]AddressHealth `json:"addresses"`
}
