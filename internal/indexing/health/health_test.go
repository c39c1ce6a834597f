package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/mintwatch/internal/core/domain"
)

// =============================================================================
// Mocks
// =============================================================================

type stubLister struct {
	addresses []domain.MonitoredAddress
}

func (s *stubLister) List() []domain.MonitoredAddress { return s.addresses }

type stubJournal struct {
	count int
}

func (s *stubJournal) Count(ctx context.Context) (int, error) { return s.count, nil }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestMonitor(journal int) (*Monitor, *fakeClock) {
	lister := &stubLister{addresses: []domain.MonitoredAddress{
		{Address: "0xaa", Name: "alice", NextBlock: 100},
		{Address: "0xbb", Name: "bob", NextBlock: 50},
	}}
	m := NewMonitor(lister, &stubJournal{count: journal}, 10*time.Second)
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m.now = clock.Now
	return m, clock
}

// =============================================================================
// Tests
// =============================================================================

func TestMonitor_Healthy(t *testing.T) {
	m, _ := newTestMonitor(0)
	m.ObserveScan("0xaa", 102, nil)

	report := m.CheckHealth(context.Background())
	if report.SystemStatus != StatusHealthy {
		t.Errorf("expected healthy, got %s", report.SystemStatus)
	}
	if len(report.Addresses) != 2 {
		t.Fatalf("expected 2 addresses, got %d", len(report.Addresses))
	}
	if report.Addresses["0xaa"].LastSuccess == nil {
		t.Error("expected last success to be recorded")
	}
}

func TestMonitor_DegradedAfterRepeatedFailures(t *testing.T) {
	m, _ := newTestMonitor(0)
	for i := 0; i < FailureThreshold; i++ {
		m.ObserveScan("0xbb", 50, errors.New("transport failure"))
	}

	report := m.CheckHealth(context.Background())
	if report.SystemStatus != StatusDegraded {
		t.Errorf("expected degraded, got %s", report.SystemStatus)
	}
	bob := report.Addresses["0xbb"]
	if bob.Status != StatusDegraded || bob.ConsecutiveFailures != FailureThreshold {
		t.Errorf("unexpected address health: %+v", bob)
	}
	if bob.LastError != "transport failure" {
		t.Errorf("expected last error, got %q", bob.LastError)
	}

	m.ObserveScan("0xbb", 51, nil)
	if got := m.CheckHealth(context.Background()); got.SystemStatus != StatusHealthy {
		t.Errorf("expected recovery to healthy, got %s", got.SystemStatus)
	}
}

func TestMonitor_DegradedWithJournal(t *testing.T) {
	m, _ := newTestMonitor(2)

	report := m.CheckHealth(context.Background())
	if report.SystemStatus != StatusDegraded || report.MissedTransactions != 2 {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestMonitor_CriticalWhenStalled(t *testing.T) {
	m, clock := newTestMonitor(0)
	m.MarkStarted()

	clock.Advance(25 * time.Second)
	if got := m.CheckHealth(context.Background()); got.SystemStatus != StatusHealthy {
		t.Errorf("expected healthy within 3 intervals, got %s", got.SystemStatus)
	}

	clock.Advance(10 * time.Second)
	if got := m.CheckHealth(context.Background()); got.SystemStatus != StatusCritical {
		t.Errorf("expected critical, got %s", got.SystemStatus)
	}

	m.ObserveCycle(clock.Now())
	if got := m.CheckHealth(context.Background()); got.SystemStatus != StatusHealthy {
		t.Errorf("expected healthy after a cycle, got %s", got.SystemStatus)
	}
}

func TestMonitor_IgnoresRemovedAddresses(t *testing.T) {
	m, _ := newTestMonitor(0)
	for i := 0; i < FailureThreshold; i++ {
		m.ObserveScan("0xgone", 1, errors.New("boom"))
	}

	report := m.CheckHealth(context.Background())
	if _, ok := report.Addresses["0xgone"]; ok {
		t.Error("removed address must not be reported")
	}
	if report.SystemStatus != StatusHealthy {
		t.Errorf("expected healthy, got %s", report.SystemStatus)
	}
	if _, ok := m.scans["0xgone"]; ok {
		t.Error("scan record of a removed address must be dropped")
	}
}

func TestServer_Endpoints(t *testing.T) {
	m, clock := newTestMonitor(0)
	srv := httptest.NewServer(NewServer(m, 0).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || body["status"] != "healthy" {
		t.Errorf("unexpected /health response: %d %v", resp.StatusCode, body)
	}

	m.MarkStarted()
	clock.Advance(time.Minute)
	resp, err = http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when stalled, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/health/detailed")
	if err != nil {
		t.Fatal(err)
	}
	var report HealthReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("failed to decode report: %v", err)
	}
	resp.Body.Close()
	if len(report.Addresses) != 2 {
		t.Errorf("expected 2 addresses in detailed report, got %d", len(report.Addresses))
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected metrics endpoint, got %d", resp.StatusCode)
	}
}
