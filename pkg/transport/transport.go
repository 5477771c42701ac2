// Package transport defines how the fusion runtime reaches a subgraph.
//
// A transport is a protocol specific strategy (HTTP, WebSocket, gRPC, ...)
// that turns a subgraph execution context into an executor. Transport
// implementations live in their own modules and either self-register under
// their kind via Register, or are handed to the runtime inline through a
// mapping or a resolver function.
package transport

import (
	"context"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/vektah/gqlparser/v2/ast"
	"go.uber.org/zap"

	"github.com/wundergraph/fusion/pkg/execution"
)

// Entry describes which transport a subgraph is reachable over. It is part
// of the supergraph metadata, one entry per subgraph. Options are opaque to
// the runtime and decoded by the transport itself.
type Entry struct {
	Kind    string         `mapstructure:"kind"`
	Options map[string]any `mapstructure:",remain"`
}

// DecodeOptions decodes the entry options into a transport specific struct.
// Input is weakly typed, matching how supergraph metadata is commonly
// serialized (numbers as strings, booleans as numbers and so on).
func (e *Entry) DecodeOptions(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(e.Options); err != nil {
		return errors.Wrapf(err, "decoding %q transport options", e.Kind)
	}
	return nil
}

// SubgraphContext is everything a transport needs to build an executor for
// one subgraph. Schema and Entry are late-bound: transports that read them
// per request observe supergraph hot-swaps.
type SubgraphContext struct {
	SubgraphName string
	// Schema returns the current schema of the subgraph. May return nil
	// before the supergraph is loaded.
	Schema func() *ast.Schema
	// Entry returns the current transport entry of the subgraph.
	Entry func() *Entry
	// Logger is scoped to the subgraph and transport kind.
	Logger *zap.Logger
	// Values carries host provided process-wide context fields.
	Values map[string]any
}

// Transport produces a subgraph executor. GetSubgraphExecutor is invoked
// once per subgraph until it succeeds (a failed call is retried by the next
// request); the returned executor is cached and, when it implements
// execution.Disposable, disposed at shutdown.
type Transport interface {
	GetSubgraphExecutor(ctx context.Context, sctx *SubgraphContext) (execution.Executor, error)
}

// TransportFunc adapts a factory function to the Transport interface.
type TransportFunc func(ctx context.Context, sctx *SubgraphContext) (execution.Executor, error)

func (f TransportFunc) GetSubgraphExecutor(ctx context.Context, sctx *SubgraphContext) (execution.Executor, error) {
	return f(ctx, sctx)
}
