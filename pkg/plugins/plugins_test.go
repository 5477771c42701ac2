package plugins

import (
	"context"
	"io"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wundergraph/fusion/core"
	"github.com/wundergraph/fusion/pkg/execution"
	"github.com/wundergraph/fusion/pkg/transport"
)

func pluginRuntime(t *testing.T, executor execution.Executor, hooks ...core.OnSubgraphExecuteHook) *core.Runtime {
	t.Helper()
	rt, err := core.NewRuntime(core.Options{
		Transports: transport.NewRegistry(transport.WithTransports(map[string]any{
			"k": transport.TransportFunc(func(ctx context.Context, sctx *transport.SubgraphContext) (execution.Executor, error) {
				return executor, nil
			}),
		})),
		TransportEntries:       map[string]*transport.Entry{"a": {Kind: "k"}},
		OnSubgraphExecuteHooks: hooks,
	})
	require.NoError(t, err)
	return rt
}

func pluginRequest(t *testing.T) *execution.ExecutionRequest {
	t.Helper()
	doc, err := parser.ParseQuery(&ast.Source{Input: "query Viewer { viewer { email } }"})
	require.NoError(t, err)
	return &execution.ExecutionRequest{Document: doc, OperationName: "Viewer"}
}

func dataExecutor(data string) execution.Executor {
	return execution.ExecutorFunc(func(ctx context.Context, request *execution.ExecutionRequest) (*execution.Response, error) {
		return execution.NewSingleResponse(&execution.Result{Data: json.RawMessage(data)}), nil
	})
}

func TestLoggingHookLogsStartAndFinish(t *testing.T) {
	observed, logs := observer.New(zap.DebugLevel)
	logger := zap.New(observed)

	// the hook logs through the request logger the pipeline derives from
	// the runtime logger
	rt, err := core.NewRuntime(core.Options{
		Transports: transport.NewRegistry(transport.WithTransports(map[string]any{
			"k": transport.TransportFunc(func(ctx context.Context, sctx *transport.SubgraphContext) (execution.Executor, error) {
				return dataExecutor(`{"viewer":{"email":"a@b.c"}}`), nil
			}),
		})),
		TransportEntries:       map[string]*transport.Entry{"a": {Kind: "k"}},
		OnSubgraphExecuteHooks: []core.OnSubgraphExecuteHook{NewLoggingHook(logger)},
		Logger:                 logger,
	})
	require.NoError(t, err)

	_, err = rt.OnSubgraphExecute(context.Background(), "a", pluginRequest(t))
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterMessage("Subgraph execution started").Len())
	assert.Equal(t, 1, logs.FilterMessage("Subgraph execution finished").Len())
}

func TestFieldMaskingHookMasksSingleResult(t *testing.T) {
	rt := pluginRuntime(t,
		dataExecutor(`{"viewer":{"email":"a@b.c","name":"Ada"}}`),
		NewFieldMaskingHook("viewer.email", "viewer.missing"),
	)

	response, err := rt.OnSubgraphExecute(context.Background(), "a", pluginRequest(t))
	require.NoError(t, err)
	require.NotNil(t, response.Single)

	assert.Equal(t, "***", gjson.GetBytes(response.Single.Data, "viewer.email").String())
	assert.Equal(t, "Ada", gjson.GetBytes(response.Single.Data, "viewer.name").String())
	assert.False(t, gjson.GetBytes(response.Single.Data, "viewer.missing").Exists())
}

func TestFieldMaskingHookMasksStreamItems(t *testing.T) {
	stream := execution.NewResultStream(
		&execution.Result{Data: json.RawMessage(`{"event":{"secret":"s1"}}`)},
		&execution.Result{Data: json.RawMessage(`{"event":{"secret":"s2"}}`)},
	)
	streaming := execution.ExecutorFunc(func(ctx context.Context, request *execution.ExecutionRequest) (*execution.Response, error) {
		return execution.NewStreamResponse(stream), nil
	})

	rt := pluginRuntime(t, streaming, NewFieldMaskingHook("event.secret"))

	response, err := rt.OnSubgraphExecute(context.Background(), "a", pluginRequest(t))
	require.NoError(t, err)
	require.NotNil(t, response.Stream)

	for {
		result, err := response.Stream.Next(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, "***", gjson.GetBytes(result.Data, "event.secret").String())
	}
}

func TestRequestIDExtensionHook(t *testing.T) {
	rt := pluginRuntime(t, dataExecutor(`{"ok":true}`), NewRequestIDExtensionHook())

	ctx := core.WithRequestID(context.Background(), "req-7")
	response, err := rt.OnSubgraphExecute(ctx, "a", pluginRequest(t))
	require.NoError(t, err)
	require.NotNil(t, response.Single)
	assert.Equal(t, "req-7", response.Single.Extensions["requestId"])

	// without a request id nothing is stamped
	response, err = rt.OnSubgraphExecute(context.Background(), "a", pluginRequest(t))
	require.NoError(t, err)
	assert.Nil(t, response.Single.Extensions)
}

func TestTracingHookCompletesForSingleAndStream(t *testing.T) {
	tracer := noop.NewTracerProvider().Tracer("test")

	rt := pluginRuntime(t, dataExecutor(`{"ok":true}`), NewTracingHook(tracer))
	_, err := rt.OnSubgraphExecute(context.Background(), "a", pluginRequest(t))
	require.NoError(t, err)

	streaming := execution.ExecutorFunc(func(ctx context.Context, request *execution.ExecutionRequest) (*execution.Response, error) {
		return execution.NewStreamResponse(execution.NewResultStream(
			&execution.Result{Data: json.RawMessage(`{"n":1}`)},
		)), nil
	})
	rt = pluginRuntime(t, streaming, NewTracingHook(tracer))
	response, err := rt.OnSubgraphExecute(context.Background(), "a", pluginRequest(t))
	require.NoError(t, err)
	for {
		if _, err := response.Stream.Next(context.Background()); err == io.EOF {
			break
		} else {
			require.NoError(t, err)
		}
	}
}
