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

// Metrics exposes application-level instruments for the forecasting core.
type Metrics struct {
	forecastCompute    metric.Int64Counter
	forecastDegraded   metric.Int64Counter
	backtestWindows    metric.Int64Counter
	bulkRowsApplied    metric.Int64Counter
	bulkRowsRejected   metric.Int64Counter
	reconcileProposals metric.Int64Counter
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
		name = "dolce"
	}
	meter := provider.Meter(name)

	forecastCompute, err := meter.Int64Counter("forecast_compute_total",
		metric.WithDescription("Forecast points computed, by scenario"))
	if err != nil {
		return nil, err
	}
	forecastDegraded, err := meter.Int64Counter("forecast_degraded_total",
		metric.WithDescription("Forecasts served from the degraded (non-seasonal) path"))
	if err != nil {
		return nil, err
	}
	backtestWindows, err := meter.Int64Counter("backtest_windows_total",
		metric.WithDescription("Backtest windows evaluated"))
	if err != nil {
		return nil, err
	}
	bulkRowsApplied, err := meter.Int64Counter("bulk_rows_applied_total",
		metric.WithDescription("Bulk rows applied on confirm, by kind"))
	if err != nil {
		return nil, err
	}
	bulkRowsRejected, err := meter.Int64Counter("bulk_rows_rejected_total",
		metric.WithDescription("Bulk rows rejected, by kind and reason"))
	if err != nil {
		return nil, err
	}
	reconcileProposals, err := meter.Int64Counter("reconcile_proposals_total",
		metric.WithDescription("Reconciliation proposals produced, by status"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		forecastCompute:    forecastCompute,
		forecastDegraded:   forecastDegraded,
		backtestWindows:    backtestWindows,
		bulkRowsApplied:    bulkRowsApplied,
		bulkRowsRejected:   bulkRowsRejected,
		reconcileProposals: reconcileProposals,
	}, nil
}

func (m *Metrics) RecordForecast(ctx context.Context, scenario string, degraded bool) {
	if m == nil {
		return
	}
	m.forecastCompute.Add(ctx, 1, metric.WithAttributes(attribute.String("scenario", scenario)))
	if degraded {
		m.forecastDegraded.Add(ctx, 1)
	}
}

func (m *Metrics) RecordBacktestWindows(ctx context.Context, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.backtestWindows.Add(ctx, int64(n))
}

func (m *Metrics) RecordBulkApplied(ctx context.Context, kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bulkRowsApplied.Add(ctx, int64(n), metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) RecordBulkRejected(ctx context.Context, kind, reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bulkRowsRejected.Add(ctx, int64(n), metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("reason", reason),
	))
}

func (m *Metrics) RecordReconcileProposal(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.reconcileProposals.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "", "grpc":
		return otlpmetricgrpc.New(context.Background(),
			otlpmetricgrpc.WithEndpoint(endpoint),
			otlpmetricgrpc.WithInsecure(),
		)
	case "http", "http/protobuf":
		return otlpmetrichttp.New(context.Background(),
			otlpmetrichttp.WithEndpoint(endpoint),
			otlpmetrichttp.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unsupported otlp metrics protocol %q", protocol)
	}
}
