package transport

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/wundergraph/fusion/pkg/execution"
	"github.com/wundergraph/fusion/pkg/logging"
)

// conventionalPrefix is the naming convention transport modules follow. A
// transport for kind "http" ships as module "fusion-transport-http" and
// registers itself under that kind in an init function.
const conventionalPrefix = "fusion-transport-"

// ConventionalName returns the conventional module name for a transport kind.
func ConventionalName(kind string) string {
	return conventionalPrefix + kind
}

var (
	registeredMu sync.RWMutex
	registered   = make(map[string]Transport)
)

// Register makes a transport available process-wide under the given kind.
// Transport modules call it from init, mirroring database/sql drivers. It
// panics when the kind is empty, the transport is nil or the kind is taken.
func Register(kind string, t Transport) {
	if kind == "" {
		panic("transport: Register with empty kind")
	}
	if t == nil {
		panic("transport: Register with nil transport")
	}
	registeredMu.Lock()
	defer registeredMu.Unlock()
	if _, ok := registered[kind]; ok {
		panic(fmt.Sprintf("transport: already registered: %s", kind))
	}
	registered[kind] = t
}

func registeredTransport(kind string) (Transport, bool) {
	registeredMu.RLock()
	defer registeredMu.RUnlock()
	if t, ok := registered[kind]; ok {
		return t, true
	}
	// modules may register under their full conventional name instead
	t, ok := registered[ConventionalName(kind)]
	return t, ok
}

// ResolverFunc resolves a transport kind to a Transport, a TransportFunc, a
// bare factory function or nil when the resolver does not know the kind.
type ResolverFunc func(ctx context.Context, kind string) (any, error)

// Registry resolves transport kinds to transports. Resolution order: the
// inline resolver function, the inline mapping, then the process-wide
// registry populated by Register. First match wins.
type Registry struct {
	resolver   ResolverFunc
	transports map[string]any
	logger     *zap.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithResolver installs an inline resolver function, consulted first.
func WithResolver(fn ResolverFunc) RegistryOption {
	return func(r *Registry) {
		r.resolver = fn
	}
}

// WithTransports installs an inline kind to transport mapping, consulted
// after the resolver function. Values may be Transport implementations or
// factory functions.
func WithTransports(transports map[string]any) RegistryOption {
	return func(r *Registry) {
		r.transports = transports
	}
}

// WithLogger sets the logger used for resolution events.
func WithLogger(logger *zap.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the transport for a kind or a *ConfigurationError when no
// source knows the kind or the resolved value is misshaped.
func (r *Registry) Resolve(ctx context.Context, kind string) (Transport, error) {
	logger := r.logger.With(logging.WithTransportKind(kind))

	if r.resolver != nil {
		v, err := r.resolver(ctx, kind)
		if err != nil {
			logger.Error("Transport resolver function failed", zap.Error(err))
			return nil, &ConfigurationError{
				Kind:    kind,
				Message: fmt.Sprintf("resolving transport %q", kind),
				Err:     err,
			}
		}
		if v != nil {
			logger.Info("Resolved transport from inline resolver function")
			return asTransport(kind, v)
		}
	}

	if r.transports != nil {
		if v, ok := r.transports[kind]; ok {
			logger.Info("Resolved transport from inline mapping")
			return asTransport(kind, v)
		}
	}

	if t, ok := registeredTransport(kind); ok {
		logger.Info("Resolved transport from registered module",
			zap.String("module", ConventionalName(kind)))
		return t, nil
	}

	logger.Error("Transport not found", zap.String("module", ConventionalName(kind)))
	return nil, newNotFoundError(kind)
}

// asTransport coerces the shapes a user may hand to the registry into a
// Transport.
func asTransport(kind string, v any) (Transport, error) {
	switch t := v.(type) {
	case Transport:
		return t, nil
	case func(ctx context.Context, sctx *SubgraphContext) (execution.Executor, error):
		return TransportFunc(t), nil
	default:
		return nil, newInvalidShapeError(kind, v)
	}
}
