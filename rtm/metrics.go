package rtm

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/apex-wang/AUIKit/rtm"

// proxyMetrics counts what the proxy does with incoming events. Every
// instrument is a no-op unless WithMeterProvider is given.
type proxyMetrics struct {
	events       otelmetric.Int64Counter
	delivered    otelmetric.Int64Counter
	deduplicated otelmetric.Int64Counter
	invalid      otelmetric.Int64Counter
	reg          otelmetric.Registration
}

func newProxyMetrics(mp otelmetric.MeterProvider, p *Proxy) (*proxyMetrics, error) {
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	meter := mp.Meter(meterName)

	events, err := meter.Int64Counter(
		"auikit.rtm.events",
		otelmetric.WithDescription("Raw events handled by the proxy"),
		otelmetric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}
	delivered, err := meter.Int64Counter(
		"auikit.rtm.items.delivered",
		otelmetric.WithDescription("Storage items that changed and were fanned out"),
		otelmetric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, err
	}
	deduplicated, err := meter.Int64Counter(
		"auikit.rtm.items.deduplicated",
		otelmetric.WithDescription("Storage items dropped because their value did not change"),
		otelmetric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, err
	}
	invalid, err := meter.Int64Counter(
		"auikit.rtm.items.invalid",
		otelmetric.WithDescription("Storage items whose value could not be parsed"),
		otelmetric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, err
	}
	subscriptions, err := meter.Int64ObservableGauge(
		"auikit.rtm.subscriptions",
		otelmetric.WithDescription("Live subscriptions per capability"),
		otelmetric.WithUnit("{subscription}"),
	)
	if err != nil {
		return nil, err
	}

	reg, err := meter.RegisterCallback(func(_ context.Context, obs otelmetric.Observer) error {
		stats := p.Stats()
		for _, c := range []struct {
			capability Capability
			count      int
		}{
			{CapabilityAttribute, stats.Attributes},
			{CapabilityMessage, stats.Messages},
			{CapabilityUser, stats.Users},
			{CapabilityConnection, stats.Connections},
		} {
			obs.ObserveInt64(subscriptions, int64(c.count), otelmetric.WithAttributes(attribute.String("capability", c.capability.String())))
		}
		return nil
	}, subscriptions)
	if err != nil {
		return nil, err
	}

	return &proxyMetrics{
		events:       events,
		delivered:    delivered,
		deduplicated: deduplicated,
		invalid:      invalid,
		reg:          reg,
	}, nil
}

func (m *proxyMetrics) event(ctx context.Context, kind Kind) {
	m.events.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("kind", kind.String())))
}

func (m *proxyMetrics) item(ctx context.Context, counter otelmetric.Int64Counter, key string) {
	counter.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("key", key)))
}
