// Package sdlutil compares schemas and documents by canonical printed form.
// Two schemas that differ only in whitespace or definition ordering print
// identically, which keeps content-addressed caches (such as the merger's
// per-subgraph translation cache) stable across reloads.
package sdlutil

import (
	"bytes"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
)

// PrintSchema renders the canonical SDL of a schema: built-in definitions
// omitted, remaining type and directive definitions sorted by name,
// directives included.
func PrintSchema(schema *ast.Schema) string {
	if schema == nil {
		return ""
	}

	doc := &ast.SchemaDocument{}

	typeNames := make([]string, 0, len(schema.Types))
	for name, def := range schema.Types {
		if def.BuiltIn || fromBuiltInSource(def.Position) {
			continue
		}
		typeNames = append(typeNames, name)
	}
	sort.Strings(typeNames)
	for _, name := range typeNames {
		doc.Definitions = append(doc.Definitions, schema.Types[name])
	}

	directiveNames := make([]string, 0, len(schema.Directives))
	for name, def := range schema.Directives {
		if def == nil || fromBuiltInSource(def.Position) {
			continue
		}
		directiveNames = append(directiveNames, name)
	}
	sort.Strings(directiveNames)
	for _, name := range directiveNames {
		doc.Directives = append(doc.Directives, schema.Directives[name])
	}

	var buf bytes.Buffer
	formatter.NewFormatter(&buf).FormatSchemaDocument(doc)
	return buf.String()
}

// fromBuiltInSource reports whether a definition came from the validator
// prelude rather than user SDL.
func fromBuiltInSource(pos *ast.Position) bool {
	return pos != nil && pos.Src != nil && pos.Src.BuiltIn
}

// PrintDocument renders the canonical form of an executable document.
func PrintDocument(doc *ast.QueryDocument) string {
	if doc == nil {
		return ""
	}
	var buf bytes.Buffer
	formatter.NewFormatter(&buf).FormatQueryDocument(doc)
	return buf.String()
}

// CompareSchemas reports whether two schemas have byte-equal canonical SDL.
func CompareSchemas(a, b *ast.Schema) bool {
	return PrintSchema(a) == PrintSchema(b)
}

// CompareDocuments reports whether two documents have byte-equal canonical
// form.
func CompareDocuments(a, b *ast.QueryDocument) bool {
	return PrintDocument(a) == PrintDocument(b)
}

// Hash returns a content digest of an SDL string, suitable as a cache key.
func Hash(sdl string) uint64 {
	return xxhash.Sum64String(sdl)
}

// HashSchema returns the content digest of a schema's canonical SDL.
func HashSchema(schema *ast.Schema) uint64 {
	return Hash(PrintSchema(schema))
}
