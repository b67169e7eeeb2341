// Package errdef defines the sentinel errors reported across layerfab's
// public surface. Callers compare against these with [errors.Is]; the
// concrete errors returned may wrap additional context.
package errdef

import "errors"

var (
	// ErrInvalidArgument is returned for an empty or whitespace-only
	// path or hash at a public entry point.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrWorkingDirectoryNotEmpty is returned by CreateSession when the
	// working directory exists and already contains entries.
	ErrWorkingDirectoryNotEmpty = errors.New("working directory not empty")

	// ErrInvalidPath is returned when a path contains "..", a NUL byte,
	// or is absolute where a relative path is required.
	ErrInvalidPath = errors.New("invalid path")

	// ErrDuplicatePath is returned when two entries collide under
	// case-insensitive comparison.
	ErrDuplicatePath = errors.New("duplicate path")

	// ErrCorruptArchive is returned when a tar stream is truncated or
	// malformed while being read.
	ErrCorruptArchive = errors.New("corrupt archive")

	// ErrCacheIO is returned when the underlying cache store fails.
	// The operation is safe to retry.
	ErrCacheIO = errors.New("cache io error")

	// ErrConcurrentStep is returned by BeginLayer when another step is
	// already open on the session.
	ErrConcurrentStep = errors.New("layer step already open")

	// ErrAlreadyFinalized is returned by Commit or Cancel when the step
	// is not in the open phase.
	ErrAlreadyFinalized = errors.New("layer step already finalized")

	// ErrSessionDisposed is returned on any use of a disposed session.
	ErrSessionDisposed = errors.New("session disposed")

	// ErrStepDisposed is returned on any use of a disposed layer step.
	ErrStepDisposed = errors.New("layer step disposed")

	// ErrCancelled wraps a cooperative cancellation signal raised via
	// context.Context.
	ErrCancelled = errors.New("operation cancelled")
)
