package core

import (
	"errors"
	"fmt"

	"github.com/vektah/gqlparser/v2/gqlerror"
)

// ErrRuntimeClosed is returned by OnSubgraphExecute once Shutdown has begun.
var ErrRuntimeClosed = errors.New("fusion runtime is shut down")

// MergeError aggregates the per-subgraph failures that aborted a unified
// schema build.
type MergeError struct {
	Err error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("building unified schema: %s", e.Err)
}

func (e *MergeError) Unwrap() error {
	return e.Err
}

// errorList shapes an error the way hooks observe in-band failures.
func errorList(err error) gqlerror.List {
	var gqlErr *gqlerror.Error
	if errors.As(err, &gqlErr) {
		return gqlerror.List{gqlErr}
	}
	return gqlerror.List{gqlerror.Errorf("%s", err.Error())}
}
