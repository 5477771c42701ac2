// Package execution defines the contracts shared between the fusion runtime
// and transport packages: the subgraph execution request, the single and
// streaming result shapes, and the executor surface a transport produces.
//
// A transport returns an Executor for one subgraph. The runtime owns the
// executor for the life of the process, wraps it with the hook pipeline and
// disposes it at shutdown if it implements Disposable.
package execution

import (
	"context"
	"io"

	json "github.com/goccy/go-json"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// ExecutionRequest is a single operation delegated to one subgraph. The host
// hands over an already parsed and validated document; the runtime never
// parses or validates on its own. The request is shared by reference through
// the hook pipeline, so hooks observe each other's mutations.
type ExecutionRequest struct {
	// Document is the parsed operation sent to the subgraph.
	Document *ast.QueryDocument
	// OperationName selects the operation when the document holds several.
	OperationName string
	// Variables are the coerced operation variables.
	Variables map[string]any
	// Extensions travel to the subgraph verbatim.
	Extensions map[string]any
	// RootValue seeds root field resolution for local resolvers.
	RootValue any
	// Info is the resolver info of the delegating field, when the request
	// originates from unified schema execution.
	Info *ResolveInfo
}

// ResolveInfo carries the delegation context of the unified schema field that
// produced a subgraph request. ExecutionRequest is set by the hook pipeline
// so resolver code running downstream can recover the original request.
type ResolveInfo struct {
	FieldName        string
	ParentTypeName   string
	ReturnTypeName   string
	Path             ast.Path
	ExecutionRequest *ExecutionRequest
}

// Result is one GraphQL execution result.
type Result struct {
	Data       json.RawMessage `json:"data,omitempty"`
	Errors     gqlerror.List   `json:"errors,omitempty"`
	Extensions map[string]any  `json:"extensions,omitempty"`
}

// ResultStream is a pull based stream of results, used for subscriptions.
//
// Next blocks until the next result is available and returns io.EOF once the
// stream is exhausted. The stream performs no internal buffering: each pull
// reaches the upstream, so backpressure propagates to the consumer.
//
// Close releases the underlying subscription. It is safe to call Close more
// than once and after Next returned an error.
type ResultStream interface {
	Next(ctx context.Context) (*Result, error)
	Close(ctx context.Context) error
}

// Response is the outcome of executing a request against a subgraph. Exactly
// one of Single and Stream is set.
type Response struct {
	Single *Result
	Stream ResultStream
}

// NewSingleResponse wraps a single result.
func NewSingleResponse(result *Result) *Response {
	return &Response{Single: result}
}

// NewStreamResponse wraps a result stream.
func NewStreamResponse(stream ResultStream) *Response {
	return &Response{Stream: stream}
}

// Executor executes requests against one subgraph.
type Executor interface {
	Execute(ctx context.Context, request *ExecutionRequest) (*Response, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, request *ExecutionRequest) (*Response, error)

func (f ExecutorFunc) Execute(ctx context.Context, request *ExecutionRequest) (*Response, error) {
	return f(ctx, request)
}

// Disposable is implemented by executors holding resources that must be
// released at shutdown. The runtime registers disposable executors on its
// lifecycle stack before caching them and drains the stack in LIFO order.
type Disposable interface {
	Shutdown(ctx context.Context) error
}

// FieldResolver resolves one field locally, without delegating to a
// subgraph. The merger reattaches local resolvers to a subgraph schema after
// the federation rewrite.
type FieldResolver func(ctx context.Context, source any, args map[string]any, info *ResolveInfo) (any, error)

type resultsStream struct {
	results []*Result
	pos     int
	closed  bool
}

// NewResultStream returns a stream yielding the given results in order.
// Transports returning a bounded set of results and tests use it in place of
// a live subscription.
func NewResultStream(results ...*Result) ResultStream {
	return &resultsStream{results: results}
}

func (s *resultsStream) Next(ctx context.Context) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed || s.pos >= len(s.results) {
		return nil, io.EOF
	}
	res := s.results[s.pos]
	s.pos++
	return res, nil
}

func (s *resultsStream) Close(ctx context.Context) error {
	s.closed = true
	return nil
}
