package stitching

import (
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
)

// MergeConfig describes how one type of a subgraph participates in type
// merging: the selection set resolving its key and the root field delegation
// uses to fetch it.
type MergeConfig struct {
	// SelectionSet resolves the merge key, e.g. "{ id }".
	SelectionSet string
	// Key lists the top-level key fields of the selection set.
	Key []string
	// FieldName is the root field used to resolve the type, when the
	// subgraph exposes one (for translated federation subgraphs this is
	// _entities).
	FieldName string
	// KeyArg is the argument of FieldName receiving the key object.
	KeyArg string
}

// ExtractMergeConfigs reads the merge strategy of every keyed type out of a
// translated subgraph schema.
func ExtractMergeConfigs(schema *ast.Schema) map[string]*MergeConfig {
	if schema == nil {
		return nil
	}

	fieldName, keyArg := entityResolutionField(schema)

	configs := make(map[string]*MergeConfig)
	for name, def := range schema.Types {
		if def.Kind != ast.Object && def.Kind != ast.Interface {
			continue
		}
		key := def.Directives.ForName(keyDirective)
		if key == nil {
			continue
		}
		selectionSet := key.Arguments.ForName(selectionSetArgName)
		if selectionSet == nil || selectionSet.Value == nil {
			continue
		}
		configs[name] = &MergeConfig{
			SelectionSet: selectionSet.Value.Raw,
			Key:          topLevelFields(selectionSet.Value.Raw),
			FieldName:    fieldName,
			KeyArg:       keyArg,
		}
	}
	if len(configs) == 0 {
		return nil
	}
	return configs
}

// entityResolutionField locates the @merge annotated root field of a
// translated subgraph, if any.
func entityResolutionField(schema *ast.Schema) (fieldName, keyArg string) {
	if schema.Query == nil {
		return "", ""
	}
	for _, f := range schema.Query.Fields {
		merge := f.Directives.ForName(mergeDirective)
		if merge == nil {
			continue
		}
		keyArg = representationsArgName
		if arg := merge.Arguments.ForName(keyArgArgName); arg != nil && arg.Value != nil {
			keyArg = arg.Value.Raw
		}
		return f.Name, keyArg
	}
	return "", ""
}

// topLevelFields returns the depth-zero field names of a selection set
// string: "{ id organization { id } }" yields ["id", "organization"].
func topLevelFields(selectionSet string) []string {
	s := strings.TrimSpace(selectionSet)
	s = strings.TrimPrefix(s, "{")
	s = strings.TrimSuffix(s, "}")

	var fields []string
	depth := 0
	for _, tok := range strings.Fields(s) {
		switch {
		case tok == "{":
			depth++
		case tok == "}":
			depth--
		default:
			opens := strings.Count(tok, "{")
			closes := strings.Count(tok, "}")
			if depth == 0 && opens == 0 && closes == 0 {
				fields = append(fields, tok)
			}
			depth += opens - closes
		}
	}
	return fields
}
