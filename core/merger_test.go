package core

import (
	"context"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"go.uber.org/atomic"

	"github.com/wundergraph/fusion/pkg/execution"
	"github.com/wundergraph/fusion/pkg/transport"
)

const accountsSubgraphSDL = `
type Query {
  x: Int
}

type User @key(fields: "id") {
  id: ID!
  name: String
}
`

const federatedQuerySchema = `
type Query {
  _service: _Service!
}

type _Service {
  sdl: String!
}
`

// sdlServingTransport answers the service definition query with the given
// SDL and counts how often it was asked.
func sdlServingTransport(sdl string, calls *atomic.Int64) transport.Transport {
	return transport.TransportFunc(func(ctx context.Context, sctx *transport.SubgraphContext) (execution.Executor, error) {
		return execution.ExecutorFunc(func(ctx context.Context, request *execution.ExecutionRequest) (*execution.Response, error) {
			calls.Inc()
			data, err := json.Marshal(map[string]any{"_service": map[string]any{"sdl": sdl}})
			if err != nil {
				return nil, err
			}
			return execution.NewSingleResponse(&execution.Result{Data: data}), nil
		}), nil
	})
}

func TestMergeRewritesFederatedSubgraph(t *testing.T) {
	var serviceCalls atomic.Int64

	rt := newTestRuntime(t, Options{
		Transports: transport.NewRegistry(transport.WithTransports(map[string]any{
			"http": sdlServingTransport(accountsSubgraphSDL, &serviceCalls),
		})),
		TransportEntries: map[string]*transport.Entry{"accounts": {Kind: "http"}},
	})

	accountsSchema := testSchema(t, federatedQuerySchema)
	unified, err := rt.BuildUnifiedSchema(context.Background(), []SubgraphConfig{
		{Name: "accounts", Schema: func() *ast.Schema { return accountsSchema }},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), serviceCalls.Load())

	sub := unified.Subschema("accounts")
	require.NotNil(t, sub)
	assert.True(t, sub.Federated)
	assert.True(t, sub.Batch)

	// the rewritten subgraph schema carries stitching directives
	user := sub.Schema.Types["User"]
	require.NotNil(t, user)
	key := user.Directives.ForName("key")
	require.NotNil(t, key)
	require.NotNil(t, key.Arguments.ForName("selectionSet"))

	// and User.id is a merge key
	merge := sub.Merge["User"]
	require.NotNil(t, merge)
	assert.Equal(t, "{ id }", merge.SelectionSet)
	assert.Equal(t, []string{"id"}, merge.Key)
	assert.Equal(t, "_entities", merge.FieldName)
	assert.Equal(t, "representations", merge.KeyArg)
}

func TestMergeStitchesAcrossSubgraphs(t *testing.T) {
	var serviceCalls atomic.Int64

	rt := newTestRuntime(t, Options{
		Transports: transport.NewRegistry(transport.WithTransports(map[string]any{
			"http": sdlServingTransport(accountsSubgraphSDL, &serviceCalls),
		})),
		TransportEntries: map[string]*transport.Entry{
			"accounts": {Kind: "http"},
			"reviews":  {Kind: "http"},
		},
	})

	accountsSchema := testSchema(t, federatedQuerySchema)
	reviewsSchema := testSchema(t, `
		type Query { reviews: [Review] }
		type Review { id: ID! body: String }
		type User { id: ID! reviews: [Review] }
	`)

	unified, err := rt.BuildUnifiedSchema(context.Background(), []SubgraphConfig{
		{Name: "accounts", Schema: func() *ast.Schema { return accountsSchema }},
		{Name: "reviews", Schema: func() *ast.Schema { return reviewsSchema }, DisableBatch: true},
	})
	require.NoError(t, err)

	// the unified schema multiplexes both subgraphs
	require.NotNil(t, unified.Schema.Query)
	assert.NotNil(t, unified.Schema.Query.Fields.ForName("x"))
	assert.NotNil(t, unified.Schema.Query.Fields.ForName("reviews"))

	// shared types merge field-wise
	user := unified.Schema.Types["User"]
	require.NotNil(t, user)
	assert.NotNil(t, user.Fields.ForName("name"))
	assert.NotNil(t, user.Fields.ForName("reviews"))

	// stitching machinery stays hidden from clients
	assert.Nil(t, unified.Schema.Query.Fields.ForName("_service"))
	assert.Nil(t, unified.Schema.Query.Fields.ForName("_entities"))
	assert.Nil(t, unified.Schema.Types["_Entity"])
	assert.Nil(t, user.Directives.ForName("key"))

	// per-subgraph batching configuration survives
	assert.True(t, unified.Subschema("accounts").Batch)
	assert.False(t, unified.Subschema("REVIEWS").Batch)
	assert.False(t, unified.Subschema("reviews").Federated)
}

func TestMergeReusesTranslationForUnchangedSDL(t *testing.T) {
	var serviceCalls atomic.Int64

	rt := newTestRuntime(t, Options{
		Transports: transport.NewRegistry(transport.WithTransports(map[string]any{
			"http": sdlServingTransport(accountsSubgraphSDL, &serviceCalls),
		})),
		TransportEntries: map[string]*transport.Entry{"accounts": {Kind: "http"}},
	})

	accountsSchema := testSchema(t, federatedQuerySchema)
	subgraphs := []SubgraphConfig{
		{Name: "accounts", Schema: func() *ast.Schema { return accountsSchema }},
	}

	first, err := rt.BuildUnifiedSchema(context.Background(), subgraphs)
	require.NoError(t, err)
	second, err := rt.BuildUnifiedSchema(context.Background(), subgraphs)
	require.NoError(t, err)

	// the SDL is re-fetched on reload, but the unchanged content is not
	// retranslated: both merges share one translated schema
	assert.Equal(t, int64(2), serviceCalls.Load())
	assert.Same(t, first.Subschema("accounts").Schema, second.Subschema("accounts").Schema)
}

func TestMergeUsesPrintedSDLForLinkedSchemas(t *testing.T) {
	var serviceCalls atomic.Int64

	rt := newTestRuntime(t, Options{
		Transports: transport.NewRegistry(transport.WithTransports(map[string]any{
			"http": sdlServingTransport(accountsSubgraphSDL, &serviceCalls),
		})),
		TransportEntries: map[string]*transport.Entry{"accounts": {Kind: "http"}},
	})

	// a federation v2 subgraph schema declaring its own link directive
	linkedSchema := testSchema(t, `
		directive @link(url: String!, import: [String]) repeatable on SCHEMA
		directive @key(fields: String!) repeatable on OBJECT | INTERFACE

		type Query {
			_service: _Service!
			me: User
		}
		type _Service { sdl: String! }
		type User @key(fields: "id") { id: ID! name: String }
	`)

	unified, err := rt.BuildUnifiedSchema(context.Background(), []SubgraphConfig{
		{Name: "accounts", Schema: func() *ast.Schema { return linkedSchema }},
	})
	require.NoError(t, err)

	// no _service round-trip happened
	assert.Equal(t, int64(0), serviceCalls.Load())

	sub := unified.Subschema("accounts")
	require.NotNil(t, sub)
	require.NotNil(t, sub.Merge["User"])
	assert.Equal(t, "{ id }", sub.Merge["User"].SelectionSet)
}

func TestMergeAbortsOnSDLFetchFailure(t *testing.T) {
	rt := newTestRuntime(t, Options{
		Transports: transport.NewRegistry(transport.WithTransports(map[string]any{
			"http": transport.TransportFunc(func(ctx context.Context, sctx *transport.SubgraphContext) (execution.Executor, error) {
				return execution.ExecutorFunc(func(ctx context.Context, request *execution.ExecutionRequest) (*execution.Response, error) {
					return execution.NewSingleResponse(&execution.Result{
						Errors: gqlerror.List{gqlerror.Errorf("field _service is not defined")},
					}), nil
				}), nil
			}),
		})),
		TransportEntries: map[string]*transport.Entry{"broken": {Kind: "http"}},
	})

	schema := testSchema(t, federatedQuerySchema)
	_, err := rt.BuildUnifiedSchema(context.Background(), []SubgraphConfig{
		{Name: "broken", Schema: func() *ast.Schema { return schema }},
	})
	require.Error(t, err)

	var mergeErr *MergeError
	require.ErrorAs(t, err, &mergeErr)
	assert.Contains(t, err.Error(), `"broken"`)
	assert.Contains(t, err.Error(), "_service is not defined")
}

func TestMergeReattachesSurvivingResolvers(t *testing.T) {
	var serviceCalls atomic.Int64

	rt := newTestRuntime(t, Options{
		Transports: transport.NewRegistry(transport.WithTransports(map[string]any{
			"http": sdlServingTransport(accountsSubgraphSDL, &serviceCalls),
		})),
		TransportEntries: map[string]*transport.Entry{"accounts": {Kind: "http"}},
	})

	resolver := func(ctx context.Context, source any, args map[string]any, info *execution.ResolveInfo) (any, error) {
		return "resolved", nil
	}

	schema := testSchema(t, federatedQuerySchema)
	unified, err := rt.BuildUnifiedSchema(context.Background(), []SubgraphConfig{
		{
			Name:   "accounts",
			Schema: func() *ast.Schema { return schema },
			Resolvers: map[string]execution.FieldResolver{
				"User.name":   resolver,
				"User.avatar": resolver, // no such field after the rewrite
			},
		},
	})
	require.NoError(t, err)

	sub := unified.Subschema("accounts")
	require.NotNil(t, sub)
	assert.Contains(t, sub.Resolvers, "User.name")
	assert.NotContains(t, sub.Resolvers, "User.avatar")
}

func TestFederationDetection(t *testing.T) {
	federated := testSchema(t, federatedQuerySchema)
	plain := testSchema(t, `type Query { x: Int }`)

	assert.True(t, isFederatedSubgraph(federated))
	assert.False(t, isFederatedSubgraph(plain))
	assert.False(t, isFederatedSubgraph(nil))
}
