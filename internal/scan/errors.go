package scan

import (
	"errors"
	"fmt"

	"github.com/mabhi256/refscan/internal/graph"
)

var (
	// ErrInvalidRootSpec is returned by BeginScan for an empty root list or a
	// non-positive weight. The scan never starts.
	ErrInvalidRootSpec = errors.New("invalid root spec")

	// ErrRootUnavailable marks a root that could not be opened. The root is
	// skipped and its progress share is credited.
	ErrRootUnavailable = errors.New("root unavailable")

	// ErrAccessorFault marks a failed node or component read. The read is
	// treated as an absent component and traversal continues.
	ErrAccessorFault = errors.New("accessor fault")
)

// ScanError is a non-fatal error recorded on a session
type ScanError struct {
	Kind    error // ErrRootUnavailable or ErrAccessorFault
	Context string
	Node    graph.Node
	Op      string
	Err     error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("[%s] %s %s: %v: %v", e.Context, e.Op, e.Node, e.Kind, e.Err)
}

func (e *ScanError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}
