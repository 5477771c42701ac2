package core

import (
	"context"

	"github.com/vektah/gqlparser/v2/ast"
	"go.uber.org/zap"

	"github.com/wundergraph/fusion/pkg/execution"
	"github.com/wundergraph/fusion/pkg/logging"
	"github.com/wundergraph/fusion/pkg/transport"
)

// wrapExecutorWithHooks wraps a subgraph executor so every request runs
// through the ordered hook chain: pre-hooks, the (possibly swapped)
// executor, done hooks, and stream observers for streaming responses.
func wrapExecutorWithHooks(
	executor execution.Executor,
	subgraphName string,
	schema func() *ast.Schema,
	entry func() *transport.Entry,
	hooks []OnSubgraphExecuteHook,
	logger *zap.Logger,
) execution.Executor {
	return &hookedExecutor{
		executor:     executor,
		subgraphName: subgraphName,
		schema:       schema,
		entry:        entry,
		hooks:        hooks,
		logger:       logger,
	}
}

type hookedExecutor struct {
	executor     execution.Executor
	subgraphName string
	schema       func() *ast.Schema
	entry        func() *transport.Entry
	hooks        []OnSubgraphExecuteHook
	logger       *zap.Logger
}

func (h *hookedExecutor) Execute(ctx context.Context, request *execution.ExecutionRequest) (*execution.Response, error) {
	// Resolver code running under the unified schema recovers the original
	// request through the resolver info.
	if request.Info != nil {
		request.Info.ExecutionRequest = request
	}

	requestID := RequestIDFromContext(ctx)
	logger := h.logger.With(logging.WithSubgraphName(h.subgraphName))
	if requestID != "" {
		logger = logger.With(logging.WithRequestID(requestID))
	}
	ctx = WithLogger(ctx, logger)

	if len(h.hooks) == 0 {
		return h.executor.Execute(ctx, request)
	}

	payload := &SubgraphRequestPayload{
		subgraphName: h.subgraphName,
		schema:       h.schema,
		entry:        h.entry,
		requestID:    requestID,
		logger:       logger,
		request:      request,
		executor:     h.executor,
	}

	var doneHooks []OnSubgraphExecuteDoneHook
	for _, hook := range h.hooks {
		done, err := hook(ctx, payload)
		if err != nil {
			h.abortChain(ctx, doneHooks, requestID, logger, err)
			return nil, err
		}
		if done != nil {
			doneHooks = append(doneHooks, done)
		}
	}

	response, err := payload.executor.Execute(ctx, payload.request)
	if err != nil {
		return nil, err
	}

	if len(doneHooks) == 0 {
		return response, nil
	}

	responsePayload := &SubgraphResponsePayload{
		subgraphName: h.subgraphName,
		requestID:    requestID,
		logger:       logger,
		response:     response,
	}

	var onNext []func(ctx context.Context, payload *StreamItemPayload) error
	var onEnd []func(ctx context.Context)
	for _, done := range doneHooks {
		observer, err := done(ctx, responsePayload)
		if err != nil {
			fireEndHooks(ctx, onEnd)
			return nil, err
		}
		if observer == nil {
			continue
		}
		if observer.OnNext != nil {
			onNext = append(onNext, observer.OnNext)
		}
		if observer.OnEnd != nil {
			onEnd = append(onEnd, observer.OnEnd)
		}
	}

	response = responsePayload.response
	if response.Stream == nil || (len(onNext) == 0 && len(onEnd) == 0) {
		return response, nil
	}
	return execution.NewStreamResponse(newHookedStream(response.Stream, onNext, onEnd)), nil
}

// abortChain runs the done hooks queued before a failing pre-hook against an
// error-shaped response, so their end bookkeeping fires even though the
// executor never ran.
func (h *hookedExecutor) abortChain(
	ctx context.Context,
	doneHooks []OnSubgraphExecuteDoneHook,
	requestID string,
	logger *zap.Logger,
	hookErr error,
) {
	if len(doneHooks) == 0 {
		return
	}
	responsePayload := &SubgraphResponsePayload{
		subgraphName: h.subgraphName,
		requestID:    requestID,
		logger:       logger,
		response: execution.NewSingleResponse(&execution.Result{
			Errors: errorList(hookErr),
		}),
	}
	for _, done := range doneHooks {
		observer, err := done(ctx, responsePayload)
		if err != nil {
			logger.Warn("Done hook failed while aborting hook chain", zap.Error(err))
			continue
		}
		if observer != nil && observer.OnEnd != nil {
			observer.OnEnd(ctx)
		}
	}
}

func fireEndHooks(ctx context.Context, onEnd []func(ctx context.Context)) {
	for _, end := range onEnd {
		end(ctx)
	}
}
