package fastimage

import "errors"

var (
	// ErrCanceled is returned when a request was canceled before its
	// cached entry could be loaded.
	ErrCanceled = errors.New("request canceled")

	// ErrMissingAfterFetch is returned when a downloaded entry cannot be
	// found on disk immediately afterwards, e.g. because a concurrent
	// clear removed it.
	ErrMissingAfterFetch = errors.New("cache entry missing after fetch")
)
