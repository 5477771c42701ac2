package plugins

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wundergraph/fusion/core"
)

const spanName = "subgraph.execute"

// NewTracingHook opens one span per subgraph execution. For single results
// the span closes with the done hook; for streams it closes when the stream
// ends. Only the OTel API is used here; exporter and sampler wiring belong
// to the host.
func NewTracingHook(tracer trace.Tracer) core.OnSubgraphExecuteHook {
	return func(ctx context.Context, payload *core.SubgraphRequestPayload) (core.OnSubgraphExecuteDoneHook, error) {
		_, span := tracer.Start(ctx, spanName, trace.WithAttributes(
			attribute.String("subgraph.name", payload.SubgraphName()),
			attribute.String("graphql.operation.name", payload.ExecutionRequest().OperationName),
		))
		if requestID := payload.RequestID(); requestID != "" {
			span.SetAttributes(attribute.String("request.id", requestID))
		}

		return func(ctx context.Context, response *core.SubgraphResponsePayload) (*core.StreamObserver, error) {
			if response.Response().Stream == nil {
				if result := response.Response().Single; result != nil && len(result.Errors) > 0 {
					span.SetStatus(codes.Error, result.Errors.Error())
					span.SetAttributes(attribute.Int("graphql.errors.count", len(result.Errors)))
				}
				span.End()
				return nil, nil
			}

			items := 0
			return &core.StreamObserver{
				OnNext: func(ctx context.Context, item *core.StreamItemPayload) error {
					items++
					return nil
				},
				OnEnd: func(ctx context.Context) {
					span.SetAttributes(attribute.Int("graphql.stream.items", items))
					span.End()
				},
			}, nil
		}, nil
	}
}
