// Package kernerr names the result-carrying error kinds of spec §7.
// InvariantViolation is deliberately absent: it is raised as a
// klog.Assert panic, never surfaced as an error value. PageFault and the
// deferred-deletion "InUse" case are likewise absent: both are expected
// control flow, not failures.
package kernerr

import "errors"

var (
	// OutOfSpace: free map exhausted, or a file would exceed MAX_FILE_SIZE.
	OutOfSpace = errors.New("out of space")
	// NotFound: path resolution or directory lookup failed.
	NotFound = errors.New("not found")
	// AlreadyExists: Create onto a name already present in the directory.
	AlreadyExists = errors.New("already exists")
	// NotEmpty: RemoveDirectory on a directory with live entries.
	NotEmpty = errors.New("directory not empty")
	// BadArgument: null user pointer, oversize name, non-positive size,
	// console-direction mismatch, closing a reserved descriptor.
	BadArgument = errors.New("bad argument")
)
