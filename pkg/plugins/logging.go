// Package plugins ships first-party subgraph execute hooks. They use the
// same hook surface third-party plugins do; nothing here is special-cased by
// the runtime.
package plugins

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wundergraph/fusion/core"
	"github.com/wundergraph/fusion/pkg/logging"
)

// NewLoggingHook logs every subgraph execution at debug level: start, end
// with duration and error count, and stream termination. The fallback logger
// is used when the pipeline did not attach a request logger.
func NewLoggingHook(fallback *zap.Logger) core.OnSubgraphExecuteHook {
	if fallback == nil {
		fallback = zap.NewNop()
	}
	return func(ctx context.Context, payload *core.SubgraphRequestPayload) (core.OnSubgraphExecuteDoneHook, error) {
		logger := payload.Logger()
		if logger == nil {
			logger = fallback.With(logging.WithSubgraphName(payload.SubgraphName()))
		}
		operationName := payload.ExecutionRequest().OperationName
		logger.Debug("Subgraph execution started", logging.WithOperationName(operationName))

		start := time.Now()
		return func(ctx context.Context, response *core.SubgraphResponsePayload) (*core.StreamObserver, error) {
			if response.Response().Stream == nil {
				errorCount := 0
				if result := response.Response().Single; result != nil {
					errorCount = len(result.Errors)
				}
				logger.Debug("Subgraph execution finished",
					logging.WithOperationName(operationName),
					zap.Duration("duration", time.Since(start)),
					zap.Int("graphql_errors", errorCount),
				)
				return nil, nil
			}
			return &core.StreamObserver{
				OnEnd: func(ctx context.Context) {
					logger.Debug("Subgraph stream ended",
						logging.WithOperationName(operationName),
						zap.Duration("duration", time.Since(start)),
					)
				},
			}, nil
		}, nil
	}
}
