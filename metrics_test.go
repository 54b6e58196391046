package speakauth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledIsInert(t *testing.T) {
	m := NewMetrics(MetricsConfig{})

	m.Inc(MetricLoginSuccess)
	m.Add(MetricSweepRemoved, 10)
	m.Observe(MetricValidateLatency, 7*time.Millisecond)

	if m.Enabled() {
		t.Fatal("metrics should be disabled")
	}
	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("disabled counter moved: %d", got)
	}
	if snap := m.Snapshot(); len(snap.Histograms) != 0 {
		t.Fatalf("disabled snapshot carries histograms: %+v", snap.Histograms)
	}
}

func TestMetricsCountersAndSnapshot(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginFailure)
	m.Add(MetricSweepRemoved, 5)
	m.Observe(MetricValidateLatency, 3*time.Millisecond)
	m.Observe(MetricValidateLatency, 60*time.Millisecond)
	m.Observe(MetricValidateLatency, 2*time.Second)

	if got := m.Value(MetricLoginSuccess); got != 2 {
		t.Fatalf("login success = %d, want 2", got)
	}
	if got := m.Value(MetricSweepRemoved); got != 5 {
		t.Fatalf("sweep removed = %d, want 5", got)
	}

	snap := m.Snapshot()
	if snap.Counters[MetricLoginFailure] != 1 {
		t.Fatalf("snapshot login failure = %d, want 1", snap.Counters[MetricLoginFailure])
	}

	buckets := snap.Histograms[MetricValidateLatency]
	if len(buckets) != 8 {
		t.Fatalf("histogram has %d buckets, want 8", len(buckets))
	}
	if buckets[0] != 1 || buckets[4] != 1 || buckets[7] != 1 {
		t.Fatalf("unexpected bucket distribution: %v", buckets)
	}
}

func TestMetricsConcurrentIncrements(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const (
		workers   = 8
		perWorker = 1000
	)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				m.Inc(MetricValidateSuccess)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricValidateSuccess); got != workers*perWorker {
		t.Fatalf("got %d, want %d", got, workers*perWorker)
	}
}

func TestEngineRecordsFlowMetrics(t *testing.T) {
	e, _ := newTestEngine(t, func(cfg *Config) {
		cfg.Metrics.Enabled = true
	})
	ctx := context.Background()

	registerTestUser(t, e, "metrics@example.com")
	if _, err := e.Login(ctx, Credentials{Email: "metrics@example.com", Password: "TestPass123!"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := e.Login(ctx, Credentials{Email: "metrics@example.com", Password: "WrongPass123!"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected failed login, got %v", err)
	}

	snap := e.MetricsSnapshot()
	if snap.Counters[MetricRegisterSuccess] != 1 {
		t.Fatalf("register success = %d, want 1", snap.Counters[MetricRegisterSuccess])
	}
	if snap.Counters[MetricLoginSuccess] != 1 {
		t.Fatalf("login success = %d, want 1", snap.Counters[MetricLoginSuccess])
	}
	if snap.Counters[MetricLoginFailure] != 1 {
		t.Fatalf("login failure = %d, want 1", snap.Counters[MetricLoginFailure])
	}
	if snap.Counters[MetricSessionCreated] != 2 {
		t.Fatalf("sessions created = %d, want 2", snap.Counters[MetricSessionCreated])
	}
}
