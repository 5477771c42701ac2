package plugins

import (
	"context"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"github.com/wundergraph/fusion/core"
	"github.com/wundergraph/fusion/pkg/execution"
)

const maskedValue = "***"

// NewFieldMaskingHook replaces the values under the given JSON paths of every
// result's data with a redaction marker. Paths use gjson syntax relative to
// the data object, e.g. "viewer.email". Works on single results and on every
// item of a stream; paths absent from a result are left untouched.
func NewFieldMaskingHook(paths ...string) core.OnSubgraphExecuteHook {
	return func(ctx context.Context, payload *core.SubgraphRequestPayload) (core.OnSubgraphExecuteDoneHook, error) {
		if len(paths) == 0 {
			return nil, nil
		}
		logger := payload.Logger()
		if logger == nil {
			logger = zap.NewNop()
		}

		mask := func(result *execution.Result) *execution.Result {
			if result == nil || len(result.Data) == 0 {
				return result
			}
			data := result.Data
			changed := false
			for _, path := range paths {
				if !gjson.GetBytes(data, path).Exists() {
					continue
				}
				masked, err := sjson.SetBytes(data, path, maskedValue)
				if err != nil {
					logger.Warn("Masking result field failed", zap.String("path", path), zap.Error(err))
					continue
				}
				data = masked
				changed = true
			}
			if !changed {
				return result
			}
			cp := *result
			cp.Data = data
			return &cp
		}

		return func(ctx context.Context, response *core.SubgraphResponsePayload) (*core.StreamObserver, error) {
			if single := response.Response().Single; single != nil {
				response.SetResponse(execution.NewSingleResponse(mask(single)))
				return nil, nil
			}
			return &core.StreamObserver{
				OnNext: func(ctx context.Context, item *core.StreamItemPayload) error {
					item.SetResult(mask(item.Result()))
					return nil
				},
			}, nil
		}, nil
	}
}
