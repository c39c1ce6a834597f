package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/mintwatch/internal/core/domain"
)

// AddressLister returns the currently monitored addresses.
type AddressLister interface {
	List() []domain.MonitoredAddress
}

// JournalCounter counts journaled transactions awaiting classification.
type JournalCounter interface {
	Count(ctx context.Context) (int, error)
}

type scanRecord struct {
	nextBlock   uint64
	failures    int
	lastError   string
	lastSuccess time.Time
}

// Monitor aggregates scan outcomes reported by the poller.
type Monitor struct {
	addresses AddressLister
	journal   JournalCounter
	interval  time.Duration
	now       func() time.Time

	mu        sync.RWMutex
	started   time.Time
	lastCycle time.Time
	scans     map[string]*scanRecord
}

// NewMonitor creates a new health monitor. journal may be nil.
func NewMonitor(addresses AddressLister, journal JournalCounter, interval time.Duration) *Monitor {
	return &Monitor{
		addresses: addresses,
		journal:   journal,
		interval:  interval,
		now:       time.Now,
		scans:     make(map[string]*scanRecord),
	}
}

// MarkStarted records when polling began. Without it the monitor never
// reports a stalled poller.
func (m *Monitor) MarkStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = m.now()
}

// ObserveScan records the outcome of one address scan.
func (m *Monitor) ObserveScan(address string, nextBlock uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.scans[address]
	if !ok {
		rec = &scanRecord{}
		m.scans[address] = rec
	}
	rec.nextBlock = nextBlock
	if err != nil {
		rec.failures++
		rec.lastError = err.Error()
		return
	}
	rec.failures = 0
	rec.lastError = ""
	rec.lastSuccess = m.now()
}

// ObserveCycle records a completed polling cycle.
func (m *Monitor) ObserveCycle(at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCycle = at
}

// CheckHealth builds a report for every monitored address and forgets
// addresses that are no longer tracked.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	tracked := m.addresses.List()

	missed := 0
	if m.journal != nil {
		if n, err := m.journal.Count(ctx); err == nil {
			missed = n
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	report := HealthReport{
		SystemStatus:       StatusHealthy,
		MissedTransactions: missed,
		Addresses:          make(map[string]AddressHealth, len(tracked)),
	}
	if !m.lastCycle.IsZero() {
		at := m.lastCycle
		report.LastCycle = &at
	}

	for _, addr := range tracked {
		health := AddressHealth{
			Address:   addr.Address,
			Name:      addr.Name,
			Status:    StatusHealthy,
			NextBlock: addr.NextBlock,
		}
		if rec, ok := m.scans[addr.Address]; ok {
			health.ConsecutiveFailures = rec.failures
			health.LastError = rec.lastError
			if !rec.lastSuccess.IsZero() {
				at := rec.lastSuccess
				health.LastSuccess = &at
			}
		}
		if health.ConsecutiveFailures >= FailureThreshold {
			health.Status = StatusDegraded
			report.SystemStatus = StatusDegraded
		}
		report.Addresses[addr.Address] = health
	}

	for address := range m.scans {
		if _, ok := report.Addresses[address]; !ok {
			delete(m.scans, address)
		}
	}

	if missed > 0 && report.SystemStatus == StatusHealthy {
		report.SystemStatus = StatusDegraded
	}
	if m.stalled() {
		report.SystemStatus = StatusCritical
	}
	return report
}

// stalled reports whether no cycle completed within three intervals.
// Callers must hold mu.
func (m *Monitor) stalled() bool {
	if m.started.IsZero() || m.interval <= 0 {
		return false
	}
	since := m.started
	if m.lastCycle.After(since) {
		since = m.lastCycle
	}
	return m.now().Sub(since) > 3*m.interval
}
