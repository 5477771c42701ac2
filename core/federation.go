package core

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/wundergraph/fusion/pkg/execution"
)

const (
	serviceFieldName       = "_service"
	serviceDefinitionQuery = "query __ApolloGetServiceDefinition__ { _service { sdl } }"
	serviceSDLPath         = "_service.sdl"
)

var serviceDefinitionDocument = mustParseQuery(serviceDefinitionQuery)

func mustParseQuery(query string) *ast.QueryDocument {
	doc, err := parser.ParseQuery(&ast.Source{Input: query})
	if err != nil {
		panic(err)
	}
	return doc
}

// isFederatedSubgraph reports whether a subgraph speaks the federation
// protocol: its query type exposes the conventional _service field.
func isFederatedSubgraph(schema *ast.Schema) bool {
	return schema != nil && schema.Query != nil && schema.Query.Fields.ForName(serviceFieldName) != nil
}

// hasLinkMetadata reports whether the subgraph schema carries federation v2
// link metadata. Such schemas declare the link directive in their SDL, so
// the printed schema is already the authoritative service definition and no
// _service round-trip is needed.
func hasLinkMetadata(schema *ast.Schema) bool {
	if schema == nil {
		return false
	}
	_, ok := schema.Directives["link"]
	return ok
}

// fetchServiceSDL executes { _service { sdl } } against the subgraph and
// extracts the SDL string. All failure modes aggregate into one error naming
// the subgraph.
func fetchServiceSDL(ctx context.Context, subgraphName string, executor execution.Executor) (string, error) {
	if executor == nil {
		return "", fmt.Errorf("subgraph %q has no executor to fetch its service definition with", subgraphName)
	}
	request := &execution.ExecutionRequest{
		Document:      serviceDefinitionDocument,
		OperationName: "__ApolloGetServiceDefinition__",
	}
	response, err := executor.Execute(ctx, request)
	if err != nil {
		return "", errors.Wrapf(err, "executing service definition query on subgraph %q", subgraphName)
	}
	if response == nil || response.Single == nil {
		return "", fmt.Errorf("subgraph %q returned no single result for the service definition query", subgraphName)
	}
	if len(response.Single.Errors) > 0 {
		result := &multierror.Error{}
		for _, gqlErr := range response.Single.Errors {
			result = multierror.Append(result, gqlErr)
		}
		return "", errors.Wrapf(result.ErrorOrNil(), "subgraph %q rejected the service definition query", subgraphName)
	}

	sdl := gjson.GetBytes(response.Single.Data, serviceSDLPath)
	if sdl.Type != gjson.String || sdl.String() == "" {
		return "", fmt.Errorf("subgraph %q returned no SDL under data.%s", subgraphName, serviceSDLPath)
	}
	return sdl.String(), nil
}
