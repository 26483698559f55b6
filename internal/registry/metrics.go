package registry

import (
	"context"
	"errors"

	"github.com/webarportal/portal/internal/model/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/webarportal/portal/internal/registry"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type metrics struct {
	markersCreated  metric.Int64Counter
	markersDeleted  metric.Int64Counter
	bindingsCreated metric.Int64Counter
	bindingsDeleted metric.Int64Counter
	ingestRejected  metric.Int64Counter
}

func newMetrics(markers *MarkerRegistry, contents *ContentRegistry) (*metrics, error) {
	m := meter()
	out := &metrics{}
	var err error

	if out.markersCreated, err = m.Int64Counter(
		"registry.markers.created",
		metric.WithDescription("Markers registered"),
	); err != nil {
		return nil, err
	}
	if out.markersDeleted, err = m.Int64Counter(
		"registry.markers.deleted",
		metric.WithDescription("Markers deleted"),
	); err != nil {
		return nil, err
	}
	if out.bindingsCreated, err = m.Int64Counter(
		"registry.bindings.created",
		metric.WithDescription("Content bindings created"),
	); err != nil {
		return nil, err
	}
	if out.bindingsDeleted, err = m.Int64Counter(
		"registry.bindings.deleted",
		metric.WithDescription("Content bindings deleted, including cascades"),
	); err != nil {
		return nil, err
	}
	if out.ingestRejected, err = m.Int64Counter(
		"ingest.rejected",
		metric.WithDescription("Marker images rejected by validation or encoding"),
	); err != nil {
		return nil, err
	}

	markerCount, err := m.Int64ObservableGauge(
		"registry.markers.count",
		metric.WithDescription("Current number of markers"),
	)
	if err != nil {
		return nil, err
	}
	bindingCount, err := m.Int64ObservableGauge(
		"registry.bindings.count",
		metric.WithDescription("Current number of content bindings"),
	)
	if err != nil {
		return nil, err
	}
	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(markerCount, int64(markers.Count()))
			o.ObserveInt64(bindingCount, int64(contents.Count()))
			return nil
		},
		markerCount, bindingCount,
	)
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (m *metrics) markerCreated(ctx context.Context) {
	m.markersCreated.Add(ctx, 1)
}

func (m *metrics) markerDeleted(ctx context.Context, cascaded int) {
	m.markersDeleted.Add(ctx, 1)
	if cascaded > 0 {
		m.bindingsDeleted.Add(ctx, int64(cascaded))
	}
}

func (m *metrics) bindingCreated(ctx context.Context, t core.ContentType) {
	m.bindingsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("content_type", string(t))))
}

func (m *metrics) bindingDeleted(ctx context.Context, n int) {
	m.bindingsDeleted.Add(ctx, int64(n))
}

// rejected records an ingest failure under its reason.
func (m *metrics) rejected(ctx context.Context, err error) {
	reason := "other"
	var verr *core.ValidationError
	var eerr *core.EncodingError
	switch {
	case errors.As(err, &verr):
		reason = "validation"
	case errors.As(err, &eerr):
		reason = string(eerr.Reason)
	}
	m.ingestRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
