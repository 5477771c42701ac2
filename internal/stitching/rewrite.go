// Package stitching translates Apollo federation SDL into the directive
// dialect the stitching engine consumes, and recovers per-type merge
// configuration from translated schemas.
//
// The translation is idempotent after the first application: directives
// already carrying a selectionSet argument, an already present _entities
// field and already declared stitching directive definitions pass through
// unchanged.
package stitching

import (
	"bytes"
	"strings"

	"github.com/pkg/errors"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
	"github.com/vektah/gqlparser/v2/parser"
)

// FederationToStitchingSDL parses federation SDL and returns the equivalent
// stitching SDL.
func FederationToStitchingSDL(sdl string) (string, error) {
	doc, err := parser.ParseSchema(&ast.Source{Name: "federation.graphql", Input: sdl})
	if err != nil {
		return "", errors.Wrap(err, "parsing federation SDL")
	}
	translated := TranslateDocument(doc)
	var buf bytes.Buffer
	formatter.NewFormatter(&buf).FormatSchemaDocument(translated)
	return buf.String(), nil
}

// TranslateDocument rewrites a federation schema document in place of a new
// document:
//
//   - type extensions are folded into their base definition,
//   - @key(fields: "...") becomes @key(selectionSet: "{ ... }"),
//   - @requires(fields: "...") becomes @computed(selectionSet: "{ ... }"),
//   - @external, @provides, @extends and the rest of the federation-only
//     machinery are dropped,
//   - keyed object types gain entity resolution plumbing: a _Entity union, a
//     _Any scalar and Query._entities carrying @merge(keyArg: "representations"),
//   - the stitching directive definitions are declared.
func TranslateDocument(doc *ast.SchemaDocument) *ast.SchemaDocument {
	out := &ast.SchemaDocument{}

	queryName := rootOperationName(doc, ast.Query)

	merged := make(map[string]*ast.Definition)
	var order []string
	fold := func(def *ast.Definition) {
		base, ok := merged[def.Name]
		if !ok {
			cp := *def
			cp.Fields = append(ast.FieldList(nil), def.Fields...)
			cp.Directives = append(ast.DirectiveList(nil), def.Directives...)
			cp.Interfaces = append([]string(nil), def.Interfaces...)
			cp.Types = append([]string(nil), def.Types...)
			merged[def.Name] = &cp
			order = append(order, def.Name)
			return
		}
		for _, f := range def.Fields {
			if base.Fields.ForName(f.Name) == nil {
				base.Fields = append(base.Fields, f)
			}
		}
		base.Directives = append(base.Directives, def.Directives...)
		for _, iface := range def.Interfaces {
			if !containsString(base.Interfaces, iface) {
				base.Interfaces = append(base.Interfaces, iface)
			}
		}
		for _, member := range def.Types {
			if !containsString(base.Types, member) {
				base.Types = append(base.Types, member)
			}
		}
	}
	for _, def := range doc.Definitions {
		fold(def)
	}
	for _, ext := range doc.Extensions {
		fold(ext)
	}

	var entityNames []string
	for _, name := range order {
		def := merged[name]
		if IsFederationMachineryType(name) {
			continue
		}
		switch def.Kind {
		case ast.Object, ast.Interface:
			def.Directives = rewriteTypeDirectives(def.Directives)
			if def.Kind == ast.Object && name != queryName && def.Directives.ForName(keyDirective) != nil {
				entityNames = append(entityNames, name)
			}
			fields := make(ast.FieldList, 0, len(def.Fields))
			for _, f := range def.Fields {
				if name == queryName && isDroppedQueryField(f) {
					continue
				}
				cp := *f
				cp.Directives = rewriteFieldDirectives(f.Directives)
				fields = append(fields, &cp)
			}
			def.Fields = fields
		default:
			def.Directives = rewriteTypeDirectives(def.Directives)
		}
		out.Definitions = append(out.Definitions, def)
	}

	if len(entityNames) > 0 {
		query := findDefinition(out.Definitions, queryName)
		if query == nil {
			query = &ast.Definition{Kind: ast.Object, Name: queryName}
			out.Definitions = append(out.Definitions, query)
		}
		if query.Fields.ForName(entitiesFieldName) == nil {
			query.Fields = append(query.Fields, entitiesFieldDefinition())
		}
		if findDefinition(out.Definitions, entityTypeName) == nil {
			out.Definitions = append(out.Definitions, &ast.Definition{
				Kind:  ast.Union,
				Name:  entityTypeName,
				Types: entityNames,
			})
		}
		if findDefinition(out.Definitions, anyTypeName) == nil {
			out.Definitions = append(out.Definitions, &ast.Definition{
				Kind: ast.Scalar,
				Name: anyTypeName,
			})
		}
	}

	for _, dd := range doc.Directives {
		if isFederationDirectiveDefinition(dd.Name) || IsStitchingDirective(dd.Name) {
			continue
		}
		out.Directives = append(out.Directives, dd)
	}
	out.Directives = append(out.Directives, stitchingDirectiveDefinitions()...)

	for _, sd := range doc.Schema {
		out.Schema = append(out.Schema, stripSchemaDirectives(sd))
	}
	for _, sd := range doc.SchemaExtension {
		out.SchemaExtension = append(out.SchemaExtension, stripSchemaDirectives(sd))
	}

	return out
}

func rootOperationName(doc *ast.SchemaDocument, op ast.Operation) string {
	defs := append(append([]*ast.SchemaDefinition(nil), doc.Schema...), doc.SchemaExtension...)
	for _, sd := range defs {
		for _, ot := range sd.OperationTypes {
			if ot.Operation == op {
				return ot.Type
			}
		}
	}
	switch op {
	case ast.Mutation:
		return "Mutation"
	case ast.Subscription:
		return "Subscription"
	default:
		return "Query"
	}
}

func rewriteTypeDirectives(list ast.DirectiveList) ast.DirectiveList {
	out := make(ast.DirectiveList, 0, len(list))
	for _, d := range list {
		switch d.Name {
		case keyDirective:
			out = append(out, rewriteFieldSetDirective(d, keyDirective))
		case extendsDirective, shareableDirective, inaccessibleDirective, linkDirective, interfaceObjectDir:
			// federation-only, no stitching equivalent
		default:
			out = append(out, d)
		}
	}
	return out
}

func rewriteFieldDirectives(list ast.DirectiveList) ast.DirectiveList {
	out := make(ast.DirectiveList, 0, len(list))
	for _, d := range list {
		switch d.Name {
		case requiresDirective:
			out = append(out, rewriteFieldSetDirective(d, computedDirective))
		case externalDirective, providesDirective, overrideDirective, shareableDirective, inaccessibleDirective:
			// dropped: stitching derives ownership from selection sets
		default:
			out = append(out, d)
		}
	}
	return out
}

// rewriteFieldSetDirective turns a federation fields argument into a
// stitching selectionSet argument. A directive that already carries
// selectionSet is passed through untouched.
func rewriteFieldSetDirective(d *ast.Directive, name string) *ast.Directive {
	if d.Arguments.ForName(selectionSetArgName) != nil {
		if d.Name == name {
			return d
		}
		return &ast.Directive{Name: name, Arguments: d.Arguments}
	}
	fields := d.Arguments.ForName(fieldsArgName)
	if fields == nil || fields.Value == nil {
		return d
	}
	return &ast.Directive{
		Name: name,
		Arguments: ast.ArgumentList{{
			Name: selectionSetArgName,
			Value: &ast.Value{
				Raw:  fieldSetToSelectionSet(fields.Value.Raw),
				Kind: ast.StringValue,
			},
		}},
	}
}

// fieldSetToSelectionSet wraps a federation field set in braces with
// normalized whitespace: "id  organization { id }" becomes
// "{ id organization { id } }".
func fieldSetToSelectionSet(fieldSet string) string {
	normalized := strings.Join(strings.Fields(fieldSet), " ")
	if strings.HasPrefix(normalized, "{") {
		return normalized
	}
	return "{ " + normalized + " }"
}

// isDroppedQueryField reports whether a query field is federation machinery
// that must not survive translation. _entities added by a previous
// translation pass carries @merge and is kept.
func isDroppedQueryField(f *ast.FieldDefinition) bool {
	if f.Name == serviceFieldName {
		return true
	}
	if f.Name == entitiesFieldName {
		return f.Directives.ForName(mergeDirective) == nil
	}
	return false
}

func entitiesFieldDefinition() *ast.FieldDefinition {
	return &ast.FieldDefinition{
		Name: entitiesFieldName,
		Arguments: ast.ArgumentDefinitionList{{
			Name: representationsArgName,
			Type: ast.NonNullListType(ast.NonNullNamedType(anyTypeName, nil), nil),
		}},
		Type: ast.ListType(ast.NamedType(entityTypeName, nil), nil),
		Directives: ast.DirectiveList{{
			Name: mergeDirective,
			Arguments: ast.ArgumentList{{
				Name:  keyArgArgName,
				Value: &ast.Value{Raw: representationsArgName, Kind: ast.StringValue},
			}},
		}},
	}
}

func stripSchemaDirectives(sd *ast.SchemaDefinition) *ast.SchemaDefinition {
	cp := *sd
	cp.Directives = nil
	for _, d := range sd.Directives {
		if d.Name == linkDirective || d.Name == composeDirective {
			continue
		}
		cp.Directives = append(cp.Directives, d)
	}
	return &cp
}

func findDefinition(defs ast.DefinitionList, name string) *ast.Definition {
	for _, def := range defs {
		if def.Name == name {
			return def
		}
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
