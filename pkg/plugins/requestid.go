package plugins

import (
	"context"

	"github.com/wundergraph/fusion/core"
	"github.com/wundergraph/fusion/pkg/execution"
)

const requestIDExtensionKey = "requestId"

// NewRequestIDExtensionHook stamps the client request id into the extensions
// of every single result, so upstream responses can be correlated with
// gateway logs. Streams pass through untouched. Requests without a request
// id are not annotated.
func NewRequestIDExtensionHook() core.OnSubgraphExecuteHook {
	return func(ctx context.Context, payload *core.SubgraphRequestPayload) (core.OnSubgraphExecuteDoneHook, error) {
		requestID := payload.RequestID()
		if requestID == "" {
			return nil, nil
		}
		return func(ctx context.Context, response *core.SubgraphResponsePayload) (*core.StreamObserver, error) {
			single := response.Response().Single
			if single == nil {
				return nil, nil
			}
			cp := *single
			cp.Extensions = make(map[string]any, len(single.Extensions)+1)
			for k, v := range single.Extensions {
				cp.Extensions[k] = v
			}
			cp.Extensions[requestIDExtensionKey] = requestID
			response.SetResponse(execution.NewSingleResponse(&cp))
			return nil, nil
		}, nil
	}
}
