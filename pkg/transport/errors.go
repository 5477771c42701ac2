package transport

import "fmt"

// ConfigurationError reports that a subgraph cannot be executed as
// configured: its transport kind is not resolvable, the resolved value has
// the wrong shape, or the subgraph has no transport entry at all. It is
// returned to the caller of the first request that needs the executor and is
// never cached, so a later request retries initialization.
type ConfigurationError struct {
	// Subgraph names the affected subgraph, when known.
	Subgraph string
	// Kind is the transport kind that failed to resolve, when applicable.
	Kind string
	// Message describes the failure.
	Message string
	// Err is the underlying cause, if any.
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err)
	}
	return e.Message
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func newNotFoundError(kind string) *ConfigurationError {
	return &ConfigurationError{
		Kind: kind,
		Message: fmt.Sprintf(
			"transport %q not found: no inline transport resolver or mapping provided it, and no transport module is registered for it (expected module %q to call transport.Register)",
			kind, ConventionalName(kind),
		),
	}
}

func newInvalidShapeError(kind string, value any) *ConfigurationError {
	return &ConfigurationError{
		Kind: kind,
		Message: fmt.Sprintf(
			"transport %q is invalid: %T neither implements transport.Transport nor is a transport factory function",
			kind, value,
		),
	}
}
