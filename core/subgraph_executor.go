package core

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/wundergraph/fusion/internal/constantcase"
	"github.com/wundergraph/fusion/pkg/execution"
	"github.com/wundergraph/fusion/pkg/logging"
	"github.com/wundergraph/fusion/pkg/transport"
)

// OnSubgraphExecute executes a request against the named subgraph. The first
// call per subgraph resolves the transport, builds the executor, registers
// it for disposal, wraps it with the hook pipeline and caches it; later
// calls hit the cache directly.
//
// Concurrent first calls are collapsed: the transport factory runs exactly
// once no matter how many requests race the initialization. A failed
// initialization caches nothing, so the next request retries it and the
// error reaches only the callers that were waiting on the failed attempt.
func (r *Runtime) OnSubgraphExecute(ctx context.Context, subgraphName string, request *execution.ExecutionRequest) (*execution.Response, error) {
	if r.closed.Load() {
		return nil, ErrRuntimeClosed
	}
	r.inflight.Add(1)
	defer r.inflight.Done()

	key := constantcase.Normalize(subgraphName)

	r.executorsMu.RLock()
	executor, ok := r.executors[key]
	r.executorsMu.RUnlock()
	if ok {
		return executor.Execute(ctx, request)
	}

	v, err, _ := r.initGroup.Do(key, func() (any, error) {
		// a previous singleflight round may have finished between the read
		// above and this call
		r.executorsMu.RLock()
		cached, ok := r.executors[key]
		r.executorsMu.RUnlock()
		if ok {
			return cached, nil
		}

		built, err := r.buildSubgraphExecutor(ctx, subgraphName, key)
		if err != nil {
			return nil, err
		}

		r.executorsMu.Lock()
		r.executors[key] = built
		r.executorsMu.Unlock()
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(execution.Executor).Execute(ctx, request)
}

// buildSubgraphExecutor performs the one-time initialization of a subgraph's
// executor: transport resolution, executor construction, disposal
// registration and hook wrapping.
func (r *Runtime) buildSubgraphExecutor(ctx context.Context, subgraphName, key string) (execution.Executor, error) {
	entryGetter := func() *transport.Entry {
		return r.entries[key]
	}
	entry := entryGetter()
	if entry == nil {
		return nil, &transport.ConfigurationError{
			Subgraph: subgraphName,
			Message:  fmt.Sprintf("no transport entry for subgraph %q", subgraphName),
		}
	}

	schemaGetter := func() *ast.Schema {
		return r.SubgraphSchema(subgraphName)
	}

	logger := r.logger.With(
		logging.WithSubgraphName(subgraphName),
		logging.WithTransportKind(entry.Kind),
	)
	logger.Info("Initializing subgraph executor")

	resolved, err := r.transports.Resolve(ctx, entry.Kind)
	if err != nil {
		return nil, err
	}

	sctx := &transport.SubgraphContext{
		SubgraphName: subgraphName,
		Schema:       schemaGetter,
		Entry:        entryGetter,
		Logger:       logger,
		Values:       r.contextValues,
	}
	executor, err := resolved.GetSubgraphExecutor(ctx, sctx)
	if err != nil {
		return nil, errors.Wrapf(err, "building executor for subgraph %q", subgraphName)
	}
	if executor == nil {
		return nil, &transport.ConfigurationError{
			Subgraph: subgraphName,
			Kind:     entry.Kind,
			Message:  fmt.Sprintf("transport %q returned a nil executor for subgraph %q", entry.Kind, subgraphName),
		}
	}

	// disposal registration happens before the executor becomes reachable
	// through the cache
	if disposable, ok := executor.(execution.Disposable); ok {
		r.executorStack.Defer(disposable.Shutdown)
	}

	return wrapExecutorWithHooks(executor, subgraphName, schemaGetter, entryGetter, r.hooks, r.logger), nil
}
