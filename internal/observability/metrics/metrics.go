// Package metrics exposes the OpenTelemetry instruments for the workspace
// and invitation domains.
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
	invitationsSent     metric.Int64Counter
	invitationsAccepted metric.Int64Counter
	invitationsRejected metric.Int64Counter
	invitationsSwept    metric.Int64Counter
	membershipWrites    metric.Int64Counter
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

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "docuspace"
	}
	meter := provider.Meter(name)

	invitationsSent, err := meter.Int64Counter("docuspace_invitations_sent_total")
	if err != nil {
		return nil, err
	}
	invitationsAccepted, err := meter.Int64Counter("docuspace_invitations_accepted_total")
	if err != nil {
		return nil, err
	}
	invitationsRejected, err := meter.Int64Counter("docuspace_invitations_rejected_total")
	if err != nil {
		return nil, err
	}
	invitationsSwept, err := meter.Int64Counter("docuspace_invitations_swept_total")
	if err != nil {
		return nil, err
	}
	membershipWrites, err := meter.Int64Counter("docuspace_membership_writes_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		invitationsSent:     invitationsSent,
		invitationsAccepted: invitationsAccepted,
		invitationsRejected: invitationsRejected,
		invitationsSwept:    invitationsSwept,
		membershipWrites:    membershipWrites,
	}, nil
}

// RecordInvitationSent increments sent invitation counts.
func (m *Metrics) RecordInvitationSent(ctx context.Context, role string) {
	if m == nil {
		return
	}
	m.invitationsSent.Add(ctx, 1, metric.WithAttributes(attribute.String("role", strings.TrimSpace(role))))
}

// RecordInvitationAccepted increments accepted invitation counts.
func (m *Metrics) RecordInvitationAccepted(ctx context.Context) {
	if m == nil {
		return
	}
	m.invitationsAccepted.Add(ctx, 1)
}

// RecordInvitationRejected increments rejected invitation counts.
func (m *Metrics) RecordInvitationRejected(ctx context.Context) {
	if m == nil {
		return
	}
	m.invitationsRejected.Add(ctx, 1)
}

// RecordInvitationsSwept records sweep outcomes by kind (expired / purged).
func (m *Metrics) RecordInvitationsSwept(ctx context.Context, kind string, count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.invitationsSwept.Add(ctx, count, metric.WithAttributes(attribute.String("kind", strings.TrimSpace(kind))))
}

// RecordMembershipWrite records synchronizer outcomes (added / updated).
func (m *Metrics) RecordMembershipWrite(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.membershipWrites.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", strings.TrimSpace(outcome))))
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
