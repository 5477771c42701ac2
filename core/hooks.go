package core

import (
	"context"

	"github.com/vektah/gqlparser/v2/ast"
	"go.uber.org/zap"

	"github.com/wundergraph/fusion/pkg/execution"
	"github.com/wundergraph/fusion/pkg/transport"
)

// OnSubgraphExecuteHook runs before every subgraph execution. It may rewrite
// the execution request or swap the executor through the payload mutators,
// and may return a done hook to observe the result. Hooks run sequentially
// in registration order; a hook error aborts the remaining chain for that
// request.
type OnSubgraphExecuteHook func(ctx context.Context, payload *SubgraphRequestPayload) (OnSubgraphExecuteDoneHook, error)

// OnSubgraphExecuteDoneHook runs after the executor produced a response. It
// may replace the response and, for streaming responses, return a
// StreamObserver to intercept individual items. Done hooks run in the order
// their pre-hooks were registered.
type OnSubgraphExecuteDoneHook func(ctx context.Context, payload *SubgraphResponsePayload) (*StreamObserver, error)

// StreamObserver intercepts a streaming response. OnNext runs inline with
// the consumer's pull for every yielded item and may rewrite it. OnEnd runs
// exactly once, after the stream is exhausted, errored or closed by the
// consumer.
type StreamObserver struct {
	OnNext func(ctx context.Context, payload *StreamItemPayload) error
	OnEnd  func(ctx context.Context)
}

// SubgraphRequestPayload is handed to every pre-hook. Reads are safe at any
// point; mutations apply to the remainder of the chain and the final
// executor invocation (last writer wins).
type SubgraphRequestPayload struct {
	subgraphName string
	schema       func() *ast.Schema
	entry        func() *transport.Entry
	requestID    string
	logger       *zap.Logger

	request  *execution.ExecutionRequest
	executor execution.Executor
}

// SubgraphName returns the name of the subgraph being executed.
func (p *SubgraphRequestPayload) SubgraphName() string {
	return p.subgraphName
}

// Subgraph returns the current schema of the subgraph. The lookup is
// late-bound, so hooks observe supergraph hot-swaps.
func (p *SubgraphRequestPayload) Subgraph() *ast.Schema {
	if p.schema == nil {
		return nil
	}
	return p.schema()
}

// TransportEntry returns the current transport entry of the subgraph,
// late-bound like Subgraph.
func (p *SubgraphRequestPayload) TransportEntry() *transport.Entry {
	if p.entry == nil {
		return nil
	}
	return p.entry()
}

// RequestID returns the client request id, or the empty string.
func (p *SubgraphRequestPayload) RequestID() string {
	return p.requestID
}

// Logger returns the logger scoped to this subgraph request.
func (p *SubgraphRequestPayload) Logger() *zap.Logger {
	return p.logger
}

// ExecutionRequest returns the request as currently mutated.
func (p *SubgraphRequestPayload) ExecutionRequest() *execution.ExecutionRequest {
	return p.request
}

// SetExecutionRequest replaces the request for later hooks and the executor.
func (p *SubgraphRequestPayload) SetExecutionRequest(request *execution.ExecutionRequest) {
	p.request = request
}

// Executor returns the executor as currently mutated.
func (p *SubgraphRequestPayload) Executor() execution.Executor {
	return p.executor
}

// SetExecutor replaces the executor invoked after the pre-phase.
func (p *SubgraphRequestPayload) SetExecutor(executor execution.Executor) {
	p.executor = executor
}

// SubgraphResponsePayload is handed to every done hook.
type SubgraphResponsePayload struct {
	subgraphName string
	requestID    string
	logger       *zap.Logger

	response *execution.Response
}

func (p *SubgraphResponsePayload) SubgraphName() string {
	return p.subgraphName
}

func (p *SubgraphResponsePayload) RequestID() string {
	return p.requestID
}

func (p *SubgraphResponsePayload) Logger() *zap.Logger {
	return p.logger
}

// Response returns the response as currently mutated.
func (p *SubgraphResponsePayload) Response() *execution.Response {
	return p.response
}

// SetResponse replaces the response for later done hooks and the caller.
func (p *SubgraphResponsePayload) SetResponse(response *execution.Response) {
	p.response = response
}

// StreamItemPayload is handed to OnNext observers for every streamed result.
type StreamItemPayload struct {
	result *execution.Result
}

// Result returns the item as currently mutated.
func (p *StreamItemPayload) Result() *execution.Result {
	return p.result
}

// SetResult replaces the item yielded to the consumer and to later
// observers.
func (p *StreamItemPayload) SetResult(result *execution.Result) {
	p.result = result
}
