package core

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
	"go.uber.org/zap"

	"github.com/wundergraph/fusion/internal/constantcase"
	"github.com/wundergraph/fusion/internal/stitching"
	"github.com/wundergraph/fusion/pkg/execution"
	"github.com/wundergraph/fusion/pkg/logging"
	"github.com/wundergraph/fusion/pkg/sdlutil"
)

// SubgraphConfig describes one subgraph participating in the unified schema.
type SubgraphConfig struct {
	Name string
	// Schema returns the current subgraph schema; late-bound for hot
	// reload.
	Schema func() *ast.Schema
	// Resolvers are local field resolvers keyed "Type.field". They are
	// reattached after the federation rewrite; resolvers whose field did
	// not survive the rewrite are dropped with a warning.
	Resolvers map[string]execution.FieldResolver
	// DisableBatch opts the subgraph out of batched delegation.
	DisableBatch bool
}

// Subschema is the post-stitching view of one subgraph: its transformed
// schema, its merge strategy and the executor delegation uses to reach it.
type Subschema struct {
	Name string
	// Schema is the stitchable schema: for federated subgraphs the result
	// of the federation rewrite, otherwise the subgraph schema as provided.
	Schema *ast.Schema
	// SDL is the printed SDL of Schema: the translated SDL for federated
	// subgraphs, the canonical sdlutil print otherwise.
	SDL string
	// Merge maps type names to their merge strategy.
	Merge map[string]*stitching.MergeConfig
	// Resolvers are the local resolvers that survived the rewrite.
	Resolvers map[string]execution.FieldResolver
	// Batch is true unless the subgraph opted out of batched delegation.
	Batch bool
	// Federated records whether the subgraph spoke the federation protocol.
	Federated bool
	// Executor reaches the subgraph through the runtime's hook pipeline.
	Executor execution.Executor
}

// UnifiedSchema is the composed schema exposed to clients, plus the source
// map recovering the transformed subschema of every subgraph.
type UnifiedSchema struct {
	Schema *ast.Schema
	// Subschemas is keyed by constant-case subgraph name; use Subschema
	// for case-insensitive lookup.
	Subschemas map[string]*Subschema
}

// Subschema returns the post-stitching subschema of a subgraph under
// constant-case lookup, or nil.
func (u *UnifiedSchema) Subschema(subgraphName string) *Subschema {
	return u.Subschemas[constantcase.Normalize(subgraphName)]
}

type translationEntry struct {
	hash   uint64
	sdl    string
	schema *ast.Schema
	merge  map[string]*stitching.MergeConfig
}

// Merger composes subgraph schemas into a unified schema. It owns the
// per-subgraph translation cache: an unchanged subgraph SDL is not
// retranslated between reloads.
type Merger struct {
	logger *zap.Logger

	mu           sync.Mutex
	translations map[string]*translationEntry
}

func NewMerger(logger *zap.Logger) *Merger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Merger{
		logger:       logger,
		translations: make(map[string]*translationEntry),
	}
}

// BuildUnifiedSchema merges the given subgraphs, delegating through the
// runtime's hook pipeline for federation SDL fetches. The runtime keeps one
// merger across calls, so translations are cached between supergraph
// reloads.
func (r *Runtime) BuildUnifiedSchema(ctx context.Context, subgraphs []SubgraphConfig) (*UnifiedSchema, error) {
	return r.merger.Merge(ctx, subgraphs, r.SubgraphExecutor)
}

// Merge composes the subgraphs into one unified schema. Any SDL fetch or
// translation failure aggregates into a *MergeError naming the failing
// subgraphs and aborts the merge; resolver mismatches after the federation
// rewrite are warn-only.
func (m *Merger) Merge(ctx context.Context, subgraphs []SubgraphConfig, executorFor func(subgraphName string) execution.Executor) (*UnifiedSchema, error) {
	var merr *multierror.Error

	subschemas := make(map[string]*Subschema, len(subgraphs))
	var order []string

	for _, cfg := range subgraphs {
		key := constantcase.Normalize(cfg.Name)
		if key == "" {
			merr = multierror.Append(merr, fmt.Errorf("subgraph name %q is empty after normalization", cfg.Name))
			continue
		}
		if _, ok := subschemas[key]; ok {
			merr = multierror.Append(merr, fmt.Errorf("subgraph name %q collides with another subgraph under constant-case normalization", cfg.Name))
			continue
		}
		if cfg.Schema == nil {
			merr = multierror.Append(merr, fmt.Errorf("subgraph %q has no schema accessor", cfg.Name))
			continue
		}
		schema := cfg.Schema()
		if schema == nil {
			merr = multierror.Append(merr, fmt.Errorf("subgraph %q has no schema", cfg.Name))
			continue
		}

		sub := &Subschema{
			Name:  cfg.Name,
			Batch: !cfg.DisableBatch,
		}
		if executorFor != nil {
			sub.Executor = executorFor(cfg.Name)
		}

		if isFederatedSubgraph(schema) {
			sub.Federated = true
			var sdl string
			if hasLinkMetadata(schema) {
				sdl = sdlutil.PrintSchema(schema)
			} else {
				fetched, err := fetchServiceSDL(ctx, cfg.Name, sub.Executor)
				if err != nil {
					merr = multierror.Append(merr, err)
					continue
				}
				sdl = fetched
			}

			entry, err := m.translate(cfg.Name, sdl)
			if err != nil {
				merr = multierror.Append(merr, errors.Wrapf(err, "translating subgraph %q", cfg.Name))
				continue
			}
			sub.SDL = entry.sdl
			sub.Schema = entry.schema
			sub.Merge = entry.merge
			sub.Resolvers = m.reattachResolvers(cfg.Name, cfg.Resolvers, entry.schema)
		} else {
			sub.SDL = sdlutil.PrintSchema(schema)
			sub.Schema = schema
			sub.Merge = stitching.ExtractMergeConfigs(schema)
			sub.Resolvers = cfg.Resolvers
		}

		subschemas[key] = sub
		order = append(order, key)
	}

	if err := merr.ErrorOrNil(); err != nil {
		return nil, &MergeError{Err: err}
	}

	unified, err := stitchSchemas(order, subschemas)
	if err != nil {
		return nil, &MergeError{Err: err}
	}

	return &UnifiedSchema{
		Schema:     unified,
		Subschemas: subschemas,
	}, nil
}

// translate converts federation SDL into a stitchable schema, cached per
// subgraph and keyed by SDL content.
func (m *Merger) translate(subgraphName, sdl string) (*translationEntry, error) {
	hash := sdlutil.Hash(sdl)
	key := constantcase.Normalize(subgraphName)

	m.mu.Lock()
	cached, ok := m.translations[key]
	m.mu.Unlock()
	if ok && cached.hash == hash {
		m.logger.Debug("Subgraph SDL unchanged, reusing cached translation",
			logging.WithSubgraphName(subgraphName))
		return cached, nil
	}

	translated, err := stitching.FederationToStitchingSDL(sdl)
	if err != nil {
		return nil, err
	}
	schema, err := gqlparser.LoadSchema(&ast.Source{Name: subgraphName + ".graphql", Input: translated})
	if err != nil {
		return nil, errors.Wrap(err, "building schema from translated SDL")
	}

	entry := &translationEntry{
		hash:   hash,
		sdl:    translated,
		schema: schema,
		merge:  stitching.ExtractMergeConfigs(schema),
	}
	m.mu.Lock()
	m.translations[key] = entry
	m.mu.Unlock()
	return entry, nil
}

// reattachResolvers keeps the local resolvers whose field survived the
// federation rewrite. A missing field is never an error.
func (m *Merger) reattachResolvers(subgraphName string, resolvers map[string]execution.FieldResolver, schema *ast.Schema) map[string]execution.FieldResolver {
	if len(resolvers) == 0 {
		return nil
	}
	kept := make(map[string]execution.FieldResolver, len(resolvers))
	for key, resolver := range resolvers {
		typeName, fieldName, ok := strings.Cut(key, ".")
		def := schema.Types[typeName]
		if !ok || def == nil || def.Fields.ForName(fieldName) == nil {
			m.logger.Warn("Dropping resolver without a matching field after federation rewrite",
				logging.WithSubgraphName(subgraphName),
				zap.String("resolver", key))
			continue
		}
		kept[key] = resolver
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}

// stitchSchemas merges the transformed subschemas into one client-facing
// schema. Shared types merge field-wise, user directives are preserved, and
// the stitching machinery (_service, _entities, _Any, _Entity, stitching
// directives) is hidden. Type merging is not validated; the composed
// supergraph is trusted.
func stitchSchemas(order []string, subschemas map[string]*Subschema) (*ast.Schema, error) {
	merged := make(map[string]*ast.Definition)
	var typeOrder []string
	directiveDefs := make(map[string]*ast.DirectiveDefinition)
	var directiveOrder []string

	for _, key := range order {
		sub := subschemas[key]

		typeNames := make([]string, 0, len(sub.Schema.Types))
		for name := range sub.Schema.Types {
			typeNames = append(typeNames, name)
		}
		sort.Strings(typeNames)

		for _, name := range typeNames {
			def := sub.Schema.Types[name]
			if def.BuiltIn || strings.HasPrefix(name, "__") || stitching.IsFederationMachineryType(name) {
				continue
			}
			cp := copyDefinitionForUnified(def)
			base, ok := merged[name]
			if !ok {
				merged[name] = cp
				typeOrder = append(typeOrder, name)
				continue
			}
			if base.Kind != cp.Kind {
				return nil, fmt.Errorf("type %q is a %s in subgraph %q but a %s elsewhere",
					name, strings.ToLower(string(cp.Kind)), sub.Name, strings.ToLower(string(base.Kind)))
			}
			mergeDefinition(base, cp)
		}

		for name, def := range sub.Schema.Directives {
			if def == nil || stitching.IsStitchingDirective(name) || isBuiltInDirectiveName(name) {
				continue
			}
			if _, ok := directiveDefs[name]; ok {
				continue
			}
			directiveDefs[name] = def
			directiveOrder = append(directiveOrder, name)
		}
	}

	doc := &ast.SchemaDocument{}
	for _, name := range typeOrder {
		doc.Definitions = append(doc.Definitions, merged[name])
	}
	sort.Strings(directiveOrder)
	for _, name := range directiveOrder {
		doc.Directives = append(doc.Directives, directiveDefs[name])
	}

	var buf bytes.Buffer
	formatter.NewFormatter(&buf).FormatSchemaDocument(doc)

	unified, err := gqlparser.LoadSchema(&ast.Source{Name: "unified.graphql", Input: buf.String()})
	if err != nil {
		return nil, errors.Wrap(err, "stitching subgraph schemas")
	}
	return unified, nil
}

// copyDefinitionForUnified copies a definition, its lists and its field
// definitions while stripping stitching directives and federation machinery
// fields. Field arguments and types are shared with the source; merging only
// appends to the copied lists, so the cached translation entries stay
// untouched.
func copyDefinitionForUnified(def *ast.Definition) *ast.Definition {
	cp := *def
	cp.Directives = filterStitchingDirectives(def.Directives)
	cp.Interfaces = append([]string(nil), def.Interfaces...)
	cp.Types = append([]string(nil), def.Types...)
	cp.EnumValues = append(ast.EnumValueList(nil), def.EnumValues...)
	cp.Fields = nil
	for _, f := range def.Fields {
		if f.Name == serviceFieldName || f.Name == "_entities" {
			continue
		}
		fc := *f
		fc.Directives = filterStitchingDirectives(f.Directives)
		cp.Fields = append(cp.Fields, &fc)
	}
	return &cp
}

func filterStitchingDirectives(list ast.DirectiveList) ast.DirectiveList {
	var out ast.DirectiveList
	for _, d := range list {
		if stitching.IsStitchingDirective(d.Name) {
			continue
		}
		out = append(out, d)
	}
	return out
}

func mergeDefinition(base, other *ast.Definition) {
	for _, f := range other.Fields {
		if base.Fields.ForName(f.Name) == nil {
			base.Fields = append(base.Fields, f)
		}
	}
	for _, d := range other.Directives {
		if base.Directives.ForName(d.Name) == nil {
			base.Directives = append(base.Directives, d)
		}
	}
	for _, iface := range other.Interfaces {
		if !containsName(base.Interfaces, iface) {
			base.Interfaces = append(base.Interfaces, iface)
		}
	}
	for _, member := range other.Types {
		if !containsName(base.Types, member) {
			base.Types = append(base.Types, member)
		}
	}
	for _, ev := range other.EnumValues {
		if base.EnumValues.ForName(ev.Name) == nil {
			base.EnumValues = append(base.EnumValues, ev)
		}
	}
}

func isBuiltInDirectiveName(name string) bool {
	switch name {
	case "include", "skip", "deprecated", "specifiedBy":
		return true
	}
	return false
}

func containsName(list []string, name string) bool {
	for _, v := range list {
		if v == name {
			return true
		}
	}
	return false
}
