package engine

import "errors"

var (
	// ErrSnapshotInvalidated reports that the tree a handler was working on
	// changed underneath it. The loop drops the snapshot and retries.
	ErrSnapshotInvalidated = errors.New("snapshot invalidated")

	// ErrPrivilegedDenied reports that the privileged input channel refused
	// to act. The loop escalates to error-unknown with a long backoff.
	ErrPrivilegedDenied = errors.New("privileged input denied")

	// ErrAlreadyRunning is returned by Start on a running engine.
	ErrAlreadyRunning = errors.New("engine already running")

	errHandlerPanic = errors.New("handler panicked")
)

// isFault reports whether err must leave the handler as a fault instead of
// being absorbed as a soft failure.
func isFault(err error) bool {
	return errors.Is(err, ErrSnapshotInvalidated) || errors.Is(err, ErrPrivilegedDenied)
}
