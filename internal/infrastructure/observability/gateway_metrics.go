package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	domainErrors "github.com/commercekit/paygate/internal/domain/errors"
	"github.com/commercekit/paygate/internal/domain/transaction"
	"github.com/commercekit/paygate/internal/gateway"
)

var gatewayTracer = otel.Tracer("paygate/gateway")

// instrumentedGateway wraps a gateway and records a client span, per-operation
// counters and latency histograms around every provider call.
type instrumentedGateway struct {
	next    gateway.Gateway
	metrics *Metrics
}

// InstrumentGateway decorates g so every operation is traced, counted and
// timed. A nil metrics returns g unchanged.
func InstrumentGateway(g gateway.Gateway, m *Metrics) gateway.Gateway {
	if m == nil {
		return g
	}
	return &instrumentedGateway{next: g, metrics: m}
}

func (g *instrumentedGateway) Kind() gateway.ProviderKind { return g.next.Kind() }

func (g *instrumentedGateway) ValidateConfig() error { return g.next.ValidateConfig() }

func (g *instrumentedGateway) begin(ctx context.Context, operation string) (context.Context, trace.Span, time.Time) {
	ctx, span := gatewayTracer.Start(ctx, "gateway."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("payment.provider", string(g.next.Kind()))),
	)
	return ctx, span, time.Now()
}

func (g *instrumentedGateway) finish(span trace.Span, operation string, start time.Time, err error) {
	if err != nil && !domainErrors.IsDecline(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	provider := string(g.next.Kind())
	g.metrics.GatewayOperationDuration.WithLabelValues(provider, operation).Observe(time.Since(start).Seconds())
	g.metrics.GatewayOperationsTotal.WithLabelValues(provider, operation, outcomeOf(err)).Inc()

	var decline *domainErrors.DeclineError
	if errors.As(err, &decline) {
		g.metrics.GatewayDeclinesTotal.WithLabelValues(provider, string(decline.Reason)).Inc()
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case domainErrors.IsDecline(err):
		return "decline"
	case domainErrors.IsTransient(err):
		return "transient"
	default:
		return "error"
	}
}

func (g *instrumentedGateway) Initialize(ctx context.Context, req gateway.InitializeRequest) (*transaction.Transaction, error) {
	ctx, span, start := g.begin(ctx, "initialize")
	tx, err := g.next.Initialize(ctx, req)
	g.finish(span, "initialize", start, err)
	return tx, err
}

func (g *instrumentedGateway) Authorize(ctx context.Context, req gateway.PaymentRequest) (*transaction.Transaction, error) {
	ctx, span, start := g.begin(ctx, "authorize")
	tx, err := g.next.Authorize(ctx, req)
	g.finish(span, "authorize", start, err)
	return tx, err
}

func (g *instrumentedGateway) AuthorizeAndCapture(ctx context.Context, req gateway.PaymentRequest) (*transaction.Transaction, error) {
	ctx, span, start := g.begin(ctx, "authorize_capture")
	tx, err := g.next.AuthorizeAndCapture(ctx, req)
	g.finish(span, "authorize_capture", start, err)
	return tx, err
}

func (g *instrumentedGateway) Capture(ctx context.Context, req gateway.CaptureRequest) (*transaction.Transaction, error) {
	ctx, span, start := g.begin(ctx, "capture")
	tx, err := g.next.Capture(ctx, req)
	g.finish(span, "capture", start, err)
	return tx, err
}

func (g *instrumentedGateway) Refund(ctx context.Context, req gateway.RefundRequest) (*transaction.Transaction, error) {
	ctx, span, start := g.begin(ctx, "refund")
	tx, err := g.next.Refund(ctx, req)
	g.finish(span, "refund", start, err)
	return tx, err
}
