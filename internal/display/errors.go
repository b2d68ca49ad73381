package display

import "errors"

var (
	ErrNotInitialized = errors.New("display: transfer not initialized")
	ErrClosed         = errors.New("display: transfer closed")
	// ErrLinkFailed wraps the first physical link failure. It is fatal for the
	// rest of the run.
	ErrLinkFailed = errors.New("display: link failed")
	// ErrQuit is returned by preview links when their window is closed.
	ErrQuit = errors.New("display: preview window closed")
)
