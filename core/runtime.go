// Package core implements the subgraph execution plane of the fusion
// gateway: the lazy per-subgraph executor cache, the hook pipeline wrapped
// around every subgraph call, and the unified schema merger.
//
// The runtime does not host a server, load configuration or talk to data
// sources itself; transports are consumed through the transport.Transport
// interface and the host drives execution through OnSubgraphExecute.
package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/vektah/gqlparser/v2/ast"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/wundergraph/fusion/internal/constantcase"
	"github.com/wundergraph/fusion/pkg/execution"
	"github.com/wundergraph/fusion/pkg/lifecycle"
	"github.com/wundergraph/fusion/pkg/transport"
)

// Options configure a Runtime. TransportEntries keys are normalized to
// constant case, so "my-api", "MyApi" and "MY_API" address the same
// subgraph.
type Options struct {
	// Transports resolves transport kinds. When nil, only process-wide
	// registered transports are available.
	Transports *transport.Registry
	// TransportEntries maps each subgraph to its transport.
	TransportEntries map[string]*transport.Entry
	// GetSubgraphSchema returns the current schema of a subgraph. It is
	// called late-bound, on every read, so supergraph hot-swaps become
	// visible without rebuilding the runtime. See SchemaMap for a map
	// backed accessor with constant-case lookup.
	GetSubgraphSchema func(subgraphName string) *ast.Schema
	// OnSubgraphExecuteHooks wrap every subgraph execution, in order.
	OnSubgraphExecuteHooks []OnSubgraphExecuteHook
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
	// ContextValues are host provided process-wide fields, handed to every
	// transport through the subgraph context.
	ContextValues map[string]any
	// ExecutorStack collects disposable executors. Passing one transfers
	// disposal ownership to the caller; otherwise the runtime owns it and
	// drains it in Shutdown.
	ExecutorStack *lifecycle.Stack
}

// Runtime routes subgraph execution requests to transport executors,
// initializing each subgraph's executor lazily on first use.
type Runtime struct {
	transports        *transport.Registry
	entries           map[string]*transport.Entry
	getSubgraphSchema func(subgraphName string) *ast.Schema
	hooks             []OnSubgraphExecuteHook
	logger            *zap.Logger
	contextValues     map[string]any
	executorStack     *lifecycle.Stack
	ownsStack         bool

	executorsMu sync.RWMutex
	executors   map[string]execution.Executor
	initGroup   singleflight.Group

	merger *Merger

	closed   atomic.Bool
	inflight sync.WaitGroup
}

// NewRuntime validates the options and builds a runtime. No transport is
// resolved yet; each subgraph executor initializes on its first request.
func NewRuntime(opts Options) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	entries := make(map[string]*transport.Entry, len(opts.TransportEntries))
	for name, entry := range opts.TransportEntries {
		if entry == nil {
			return nil, fmt.Errorf("transport entry for subgraph %q is nil", name)
		}
		key := constantcase.Normalize(name)
		if key == "" {
			return nil, fmt.Errorf("subgraph name %q is empty after normalization", name)
		}
		if _, ok := entries[key]; ok {
			return nil, fmt.Errorf("subgraph name %q collides with another entry under constant-case normalization", name)
		}
		entries[key] = entry
	}

	transports := opts.Transports
	if transports == nil {
		transports = transport.NewRegistry(transport.WithLogger(logger))
	}

	stack := opts.ExecutorStack
	ownsStack := false
	if stack == nil {
		stack = lifecycle.NewStack()
		ownsStack = true
	}

	return &Runtime{
		transports:        transports,
		entries:           entries,
		getSubgraphSchema: opts.GetSubgraphSchema,
		hooks:             opts.OnSubgraphExecuteHooks,
		logger:            logger,
		contextValues:     opts.ContextValues,
		executorStack:     stack,
		ownsStack:         ownsStack,
		executors:         make(map[string]execution.Executor),
		merger:            NewMerger(logger),
	}, nil
}

// TransportEntry returns the transport entry of a subgraph, under
// constant-case lookup.
func (r *Runtime) TransportEntry(subgraphName string) *transport.Entry {
	return r.entries[constantcase.Normalize(subgraphName)]
}

// SubgraphSchema returns the current schema of a subgraph, or nil.
func (r *Runtime) SubgraphSchema(subgraphName string) *ast.Schema {
	if r.getSubgraphSchema == nil {
		return nil
	}
	return r.getSubgraphSchema(subgraphName)
}

// SubgraphExecutor returns an executor handle delegating to
// OnSubgraphExecute for the given subgraph. The handle is valid before the
// subgraph's transport executor exists; initialization happens on first
// call.
func (r *Runtime) SubgraphExecutor(subgraphName string) execution.Executor {
	return execution.ExecutorFunc(func(ctx context.Context, request *execution.ExecutionRequest) (*execution.Response, error) {
		return r.OnSubgraphExecute(ctx, subgraphName, request)
	})
}

// ExecutorStack exposes the stack disposable executors are registered on.
func (r *Runtime) ExecutorStack() *lifecycle.Stack {
	return r.executorStack
}

// Logger returns the runtime's base logger.
func (r *Runtime) Logger() *zap.Logger {
	return r.logger
}

// Shutdown quiesces the runtime: new requests are refused, in-flight
// requests drain, then the runtime-owned executor stack is disposed in LIFO
// order. A caller-provided stack is left for the caller to dispose.
func (r *Runtime) Shutdown(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.inflight.Wait()
	if !r.ownsStack {
		return nil
	}
	return r.executorStack.Dispose(ctx)
}

// SchemaMap adapts a subgraph name to schema map into a GetSubgraphSchema
// accessor with constant-case lookup.
func SchemaMap(schemas map[string]*ast.Schema) func(subgraphName string) *ast.Schema {
	normalized := make(map[string]*ast.Schema, len(schemas))
	for name, schema := range schemas {
		normalized[constantcase.Normalize(name)] = schema
	}
	return func(subgraphName string) *ast.Schema {
		return normalized[constantcase.Normalize(subgraphName)]
	}
}
