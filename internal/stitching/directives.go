package stitching

import (
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
)

// Stitching directive vocabulary. Federation directives with the same name
// (notably key) are distinguished by their argument: federation carries
// fields, stitching carries selectionSet.
const (
	keyDirective       = "key"
	mergeDirective     = "merge"
	computedDirective  = "computed"
	canonicalDirective = "canonical"
)

// Federation-only directives, dropped or rewritten during translation.
const (
	requiresDirective     = "requires"
	providesDirective     = "provides"
	externalDirective     = "external"
	extendsDirective      = "extends"
	linkDirective         = "link"
	shareableDirective    = "shareable"
	inaccessibleDirective = "inaccessible"
	overrideDirective     = "override"
	composeDirective      = "composeDirective"
	interfaceObjectDir    = "interfaceObject"
)

const (
	fieldsArgName       = "fields"
	selectionSetArgName = "selectionSet"
	keyArgArgName       = "keyArg"

	representationsArgName = "representations"

	entitiesFieldName = "_entities"
	serviceFieldName  = "_service"

	anyTypeName      = "_Any"
	entityTypeName   = "_Entity"
	serviceTypeName  = "_Service"
	fieldSetTypeName = "_FieldSet"
)

// stitchingDirectiveDefinitions returns the directive definitions the
// stitching engine understands. They are appended to every translated
// subgraph SDL exactly once. Each carries a non built-in Position, because
// the formatter reads Position.Src to decide whether to print a directive
// definition.
func stitchingDirectiveDefinitions() ast.DirectiveDefinitionList {
	pos := &ast.Position{Src: &ast.Source{Name: "stitching"}}
	return ast.DirectiveDefinitionList{
		{
			Position: pos,
			Name:     keyDirective,
			Arguments: ast.ArgumentDefinitionList{
				{Name: selectionSetArgName, Type: ast.NonNullNamedType("String", nil)},
			},
			IsRepeatable: true,
			Locations:    []ast.DirectiveLocation{ast.LocationObject, ast.LocationInterface},
		},
		{
			Position: pos,
			Name:     mergeDirective,
			Arguments: ast.ArgumentDefinitionList{
				{Name: keyArgArgName, Type: ast.NamedType("String", nil)},
				{Name: "keyField", Type: ast.NamedType("String", nil)},
				{Name: "key", Type: ast.ListType(ast.NonNullNamedType("String", nil), nil)},
				{Name: "additionalArgs", Type: ast.NamedType("String", nil)},
			},
			Locations: []ast.DirectiveLocation{ast.LocationFieldDefinition},
		},
		{
			Position: pos,
			Name:     computedDirective,
			Arguments: ast.ArgumentDefinitionList{
				{Name: selectionSetArgName, Type: ast.NonNullNamedType("String", nil)},
			},
			Locations: []ast.DirectiveLocation{ast.LocationFieldDefinition},
		},
		{
			Position: pos,
			Name:     canonicalDirective,
			Locations: []ast.DirectiveLocation{
				ast.LocationObject,
				ast.LocationInterface,
				ast.LocationInputObject,
				ast.LocationUnion,
				ast.LocationEnum,
				ast.LocationScalar,
				ast.LocationFieldDefinition,
				ast.LocationInputFieldDefinition,
			},
		},
	}
}

// IsStitchingDirective reports whether a directive name belongs to the
// stitching vocabulary.
func IsStitchingDirective(name string) bool {
	switch name {
	case keyDirective, mergeDirective, computedDirective, canonicalDirective:
		return true
	}
	return false
}

func isFederationDirectiveDefinition(name string) bool {
	switch name {
	case keyDirective, requiresDirective, providesDirective, externalDirective,
		extendsDirective, linkDirective, shareableDirective, inaccessibleDirective,
		overrideDirective, composeDirective, interfaceObjectDir:
		return true
	}
	return strings.HasPrefix(name, "federation__") || strings.HasPrefix(name, "link__")
}

// IsFederationMachineryType reports whether a type only exists to support
// the federation protocol and must not surface in stitched schemas.
func IsFederationMachineryType(name string) bool {
	switch name {
	case anyTypeName, entityTypeName, serviceTypeName, fieldSetTypeName:
		return true
	}
	return strings.HasPrefix(name, "federation__") || strings.HasPrefix(name, "link__")
}
