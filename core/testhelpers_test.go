package core

import (
	"context"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/wundergraph/fusion/pkg/execution"
	"github.com/wundergraph/fusion/pkg/transport"
)

func testSchema(t *testing.T, sdl string) *ast.Schema {
	t.Helper()
	schema, err := gqlparser.LoadSchema(&ast.Source{Name: "test.graphql", Input: sdl})
	require.NoError(t, err)
	return schema
}

func testRequest(t *testing.T, query, operationName string) *execution.ExecutionRequest {
	t.Helper()
	doc, err := parser.ParseQuery(&ast.Source{Input: query})
	require.NoError(t, err)
	return &execution.ExecutionRequest{
		Document:      doc,
		OperationName: operationName,
		Info:          &execution.ResolveInfo{},
	}
}

func singleResult(t *testing.T, data string) *execution.Response {
	t.Helper()
	return execution.NewSingleResponse(&execution.Result{Data: json.RawMessage(data)})
}

// echoExecutor answers every request with its operation name.
func echoExecutor() execution.Executor {
	return execution.ExecutorFunc(func(ctx context.Context, request *execution.ExecutionRequest) (*execution.Response, error) {
		data, _ := json.Marshal(map[string]string{"operation": request.OperationName})
		return execution.NewSingleResponse(&execution.Result{Data: data}), nil
	})
}

// disposableExecutor tracks its own shutdown.
type disposableExecutor struct {
	executor execution.Executor
	onClose  func()
}

func (d *disposableExecutor) Execute(ctx context.Context, request *execution.ExecutionRequest) (*execution.Response, error) {
	return d.executor.Execute(ctx, request)
}

func (d *disposableExecutor) Shutdown(ctx context.Context) error {
	if d.onClose != nil {
		d.onClose()
	}
	return nil
}

func echoTransport() transport.Transport {
	return transport.TransportFunc(func(ctx context.Context, sctx *transport.SubgraphContext) (execution.Executor, error) {
		return echoExecutor(), nil
	})
}

func newTestRuntime(t *testing.T, opts Options) *Runtime {
	t.Helper()
	rt, err := NewRuntime(opts)
	require.NoError(t, err)
	return rt
}
