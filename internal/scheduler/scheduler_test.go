package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/studiokit/kassza/internal/clock"
	appconfig "github.com/studiokit/kassza/internal/config"
	obsmetrics "github.com/studiokit/kassza/internal/observability/metrics"
	settlementdomain "github.com/studiokit/kassza/internal/settlement/domain"
	"go.uber.org/zap"
)

type autodraftCall struct {
	start time.Time
	end   time.Time
}

type mockSettlementSvc struct {
	calls  []autodraftCall
	result *settlementdomain.AutodraftResult
	err    error
}

func (m *mockSettlementSvc) Compute(context.Context, settlementdomain.ComputeRequest) (*settlementdomain.ComputedSettlement, error) {
	return nil, nil
}
func (m *mockSettlementSvc) Generate(context.Context, settlementdomain.GenerateRequest) (*settlementdomain.Settlement, error) {
	return nil, nil
}
func (m *mockSettlementSvc) Finalize(context.Context, string) (*settlementdomain.Settlement, error) {
	return nil, nil
}
func (m *mockSettlementSvc) MarkPaid(context.Context, string) (*settlementdomain.Settlement, error) {
	return nil, nil
}
func (m *mockSettlementSvc) GetByID(context.Context, string) (*settlementdomain.Settlement, error) {
	return nil, nil
}
func (m *mockSettlementSvc) Detail(context.Context, string) (*settlementdomain.SettlementDetail, error) {
	return nil, nil
}
func (m *mockSettlementSvc) List(context.Context, settlementdomain.ListRequest) ([]settlementdomain.Settlement, error) {
	return nil, nil
}
func (m *mockSettlementSvc) Autodraft(ctx context.Context, periodStart, periodEnd time.Time) (*settlementdomain.AutodraftResult, error) {
	m.calls = append(m.calls, autodraftCall{start: periodStart, end: periodEnd})
	return m.result, m.err
}

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

func newTestScheduler(t *testing.T, svc settlementdomain.Service, clk clock.Clock, cfg Config) *Scheduler {
	t.Helper()
	s, err := New(Params{
		Log:           zap.NewNop(),
		AppConfig:     appconfig.Config{TimeZone: "UTC"},
		SettlementSvc: svc,
		GenID:         mustNode(t),
		Clock:         clk,
		Config:        cfg,
	})
	if err != nil {
		t.Fatalf("New scheduler: %v", err)
	}
	return s
}

func TestRunJobTimeoutDoesNotReturnErrorAndIncrementsTimeout(t *testing.T) {
	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	defer restore()

	obsmetrics.ResetSchedulerMetricsForTest()
	obsmetrics.SchedulerWithConfig(obsmetrics.Config{
		ServiceName: "kassza",
		Environment: "test",
	})

	s := &Scheduler{log: zap.NewNop(), genID: mustNode(t), clock: clock.NewFakeClock(time.Time{})}
	err := s.runJob(context.Background(), "timeout_job", 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	labels := map[string]string{
		"service": "kassza",
		"env":     "test",
		"job":     "timeout_job",
	}
	if got := getCounterValue(t, registry, "kassza_scheduler_job_timeouts_total", labels); got != 1 {
		t.Fatalf("expected timeout count 1, got %v", got)
	}

	errorLabels := map[string]string{
		"service": "kassza",
		"env":     "test",
		"job":     "timeout_job",
		"reason":  obsmetrics.SchedulerJobReasonDeadlineExceeded,
	}
	if got := getCounterValue(t, registry, "kassza_scheduler_job_errors_total", errorLabels); got != 1 {
		t.Fatalf("expected error count 1, got %v", got)
	}
}

func TestRunJobWrapsNonTimeoutErrors(t *testing.T) {
	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	defer restore()
	obsmetrics.ResetSchedulerMetricsForTest()
	obsmetrics.SchedulerWithConfig(obsmetrics.Config{ServiceName: "kassza", Environment: "test"})

	boom := errors.New("boom")
	s := &Scheduler{log: zap.NewNop(), genID: mustNode(t), clock: clock.NewFakeClock(time.Time{})}
	err := s.runJob(context.Background(), "broken_job", time.Second, func(ctx context.Context) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
	if err.Error() != "broken_job: boom" {
		t.Fatalf("expected job name prefix, got %q", err.Error())
	}
}

func TestAutodraftPreviousMonthBoundsAndIntervalGate(t *testing.T) {
	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	defer restore()
	obsmetrics.ResetSchedulerMetricsForTest()
	obsmetrics.SchedulerWithConfig(obsmetrics.Config{ServiceName: "kassza", Environment: "test"})

	clk := clock.NewFakeClock(time.Date(2024, 7, 15, 10, 0, 0, 0, time.UTC))
	svc := &mockSettlementSvc{result: &settlementdomain.AutodraftResult{Trainers: 3, Drafted: 2, Skipped: 1}}
	s := newTestScheduler(t, svc, clk, Config{
		RunInterval:       time.Minute,
		JobTimeout:        time.Second,
		AutodraftInterval: 6 * time.Hour,
	})

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(svc.calls) != 1 {
		t.Fatalf("expected 1 autodraft call, got %d", len(svc.calls))
	}
	wantStart := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2024, 6, 30, 23, 59, 59, 0, time.UTC)
	if !svc.calls[0].start.Equal(wantStart) {
		t.Fatalf("expected period start %v, got %v", wantStart, svc.calls[0].start)
	}
	if !svc.calls[0].end.Equal(wantEnd) {
		t.Fatalf("expected period end %v, got %v", wantEnd, svc.calls[0].end)
	}

	// Inside the interval the sweep stays quiet.
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(svc.calls) != 1 {
		t.Fatalf("expected sweep to be gated, got %d calls", len(svc.calls))
	}

	clk.Advance(7 * time.Hour)
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(svc.calls) != 2 {
		t.Fatalf("expected second sweep after interval, got %d calls", len(svc.calls))
	}

	batchLabels := map[string]string{
		"service":  "kassza",
		"env":      "test",
		"job":      "settlement_autodraft",
		"resource": "settlements",
	}
	if got := getCounterValue(t, registry, "kassza_scheduler_batch_processed_total", batchLabels); got != 4 {
		t.Fatalf("expected 4 drafted settlements counted, got %v", got)
	}
}

func TestAutodraftFailureRetriesNextRun(t *testing.T) {
	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	defer restore()
	obsmetrics.ResetSchedulerMetricsForTest()
	obsmetrics.SchedulerWithConfig(obsmetrics.Config{ServiceName: "kassza", Environment: "test"})

	clk := clock.NewFakeClock(time.Date(2024, 7, 15, 10, 0, 0, 0, time.UTC))
	svc := &mockSettlementSvc{err: errors.New("trainer 42: boom")}
	s := newTestScheduler(t, svc, clk, Config{
		RunInterval:       time.Minute,
		JobTimeout:        time.Second,
		AutodraftInterval: 6 * time.Hour,
	})

	if err := s.RunOnce(context.Background()); err == nil {
		t.Fatal("expected RunOnce to report the sweep failure")
	}
	// A failed sweep does not consume the interval.
	svc.err = nil
	svc.result = &settlementdomain.AutodraftResult{Trainers: 1, Drafted: 1}
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(svc.calls) != 2 {
		t.Fatalf("expected immediate retry, got %d calls", len(svc.calls))
	}
}

func TestDisabledJobsDoNotRun(t *testing.T) {
	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	defer restore()
	obsmetrics.ResetSchedulerMetricsForTest()
	obsmetrics.SchedulerWithConfig(obsmetrics.Config{ServiceName: "kassza", Environment: "test"})

	clk := clock.NewFakeClock(time.Date(2024, 7, 15, 10, 0, 0, 0, time.UTC))
	svc := &mockSettlementSvc{result: &settlementdomain.AutodraftResult{}}
	s := newTestScheduler(t, svc, clk, Config{
		RunInterval: time.Minute,
		JobTimeout:  time.Second,
		EnabledJobs: []string{"some_other_job"},
	})

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(svc.calls) != 0 {
		t.Fatalf("expected no autodraft calls, got %d", len(svc.calls))
	}
}

func TestPreviousMonthBounds(t *testing.T) {
	budapest := time.FixedZone("CEST", 2*60*60)

	cases := []struct {
		name      string
		loc       *time.Location
		now       time.Time
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "mid month utc",
			loc:       time.UTC,
			now:       time.Date(2024, 7, 15, 10, 0, 0, 0, time.UTC),
			wantStart: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 6, 30, 23, 59, 59, 0, time.UTC),
		},
		{
			name:      "january rolls back a year",
			loc:       time.UTC,
			now:       time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
			wantStart: time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC),
		},
		{
			// 23:00 UTC on June 30 is already July 1 in Budapest, so
			// the sweep drafts June even though UTC has not turned.
			name:      "civil month turns before utc",
			loc:       budapest,
			now:       time.Date(2024, 6, 30, 23, 0, 0, 0, time.UTC),
			wantStart: time.Date(2024, 5, 31, 22, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 6, 30, 21, 59, 59, 0, time.UTC),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := &Scheduler{loc: tc.loc}
			start, end := s.previousMonth(tc.now)
			if !start.Equal(tc.wantStart) {
				t.Fatalf("start: expected %v, got %v", tc.wantStart, start)
			}
			if !end.Equal(tc.wantEnd) {
				t.Fatalf("end: expected %v, got %v", tc.wantEnd, end)
			}
		})
	}
}

func swapPrometheusRegistry(registry *prometheus.Registry) func() {
	oldRegisterer := prometheus.DefaultRegisterer
	oldGatherer := prometheus.DefaultGatherer
	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
	return func() {
		prometheus.DefaultRegisterer = oldRegisterer
		prometheus.DefaultGatherer = oldGatherer
		obsmetrics.ResetSchedulerMetricsForTest()
	}
}

func getCounterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metricFamilies {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if !labelsMatch(metric, labels) {
				continue
			}
			if metric.Counter == nil {
				t.Fatalf("metric %s is not a counter", name)
			}
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.Label) != len(labels) {
		return false
	}
	for _, label := range metric.Label {
		if labels[label.GetName()] != label.GetValue() {
			return false
		}
	}
	return true
}
