package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	priceResolutions metric.Int64Counter
	pricingAnomalies metric.Int64Counter
	settlementRuns   metric.Int64Counter
	settlementItems  metric.Int64Counter
	settlementSkips  metric.Int64Counter
	passDeductions   metric.Int64Counter
	passRefunds      metric.Int64Counter
	policyViolations metric.Int64Counter
	rateLimitAllowed metric.Int64Counter
	rateLimitDenied  metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "kassza"
	}
	meter := provider.Meter(name)

	priceResolutions, err := meter.Int64Counter("kassza_price_resolutions_total")
	if err != nil {
		return nil, err
	}
	pricingAnomalies, err := meter.Int64Counter("kassza_pricing_anomalies_total")
	if err != nil {
		return nil, err
	}
	settlementRuns, err := meter.Int64Counter("kassza_settlement_runs_total")
	if err != nil {
		return nil, err
	}
	settlementItems, err := meter.Int64Counter("kassza_settlement_items_total")
	if err != nil {
		return nil, err
	}
	settlementSkips, err := meter.Int64Counter("kassza_settlement_skips_total")
	if err != nil {
		return nil, err
	}
	passDeductions, err := meter.Int64Counter("kassza_pass_deductions_total")
	if err != nil {
		return nil, err
	}
	passRefunds, err := meter.Int64Counter("kassza_pass_refunds_total")
	if err != nil {
		return nil, err
	}
	policyViolations, err := meter.Int64Counter("kassza_policy_violations_total")
	if err != nil {
		return nil, err
	}
	rateLimitAllowed, err := meter.Int64Counter("kassza_rate_limit_allowed_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("kassza_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		priceResolutions: priceResolutions,
		pricingAnomalies: pricingAnomalies,
		settlementRuns:   settlementRuns,
		settlementItems:  settlementItems,
		settlementSkips:  settlementSkips,
		passDeductions:   passDeductions,
		passRefunds:      passRefunds,
		policyViolations: policyViolations,
		rateLimitAllowed: rateLimitAllowed,
		rateLimitDenied:  rateLimitDenied,
	}, nil
}

// RecordPriceResolution increments resolution counts by winning source.
func (m *Metrics) RecordPriceResolution(ctx context.Context, source string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("source", strings.TrimSpace(source)))
	m.priceResolutions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPricingAnomaly increments the overlapping-rule anomaly count per tier.
func (m *Metrics) RecordPricingAnomaly(ctx context.Context, tier string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("tier", strings.TrimSpace(tier)))
	m.pricingAnomalies.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordSettlementRun increments settlement computation counts by mode.
func (m *Metrics) RecordSettlementRun(ctx context.Context, mode string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("mode", strings.TrimSpace(mode)))
	m.settlementRuns.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordSettlementItems adds generated line item counts.
func (m *Metrics) RecordSettlementItems(ctx context.Context, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.settlementItems.Add(ctx, int64(count))
}

// RecordSettlementSkips adds skipped session counts by reason.
func (m *Metrics) RecordSettlementSkips(ctx context.Context, reason string, count int) {
	if m == nil || count <= 0 {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.settlementSkips.Add(ctx, int64(count), metric.WithAttributes(attrs...))
}

// RecordPassDeduction increments credit deduction counts.
func (m *Metrics) RecordPassDeduction(ctx context.Context) {
	if m == nil {
		return
	}
	m.passDeductions.Add(ctx, 1)
}

// RecordPassRefund increments credit refund counts.
func (m *Metrics) RecordPassRefund(ctx context.Context) {
	if m == nil {
		return
	}
	m.passRefunds.Add(ctx, 1)
}

// RecordPolicyViolation increments ledger policy violation counts by reason.
func (m *Metrics) RecordPolicyViolation(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.policyViolations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitAllowed increments rate limit allow counts.
func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("endpoint", strings.TrimSpace(endpoint)))
	m.rateLimitAllowed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"source":      {},
	"tier":        {},
	"mode":        {},
	"reason":      {},
	"endpoint":    {},
	"status_code": {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
