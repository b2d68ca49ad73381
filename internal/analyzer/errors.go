package analyzer

import "errors"

var (
	// ErrBufferSize is returned when the analysis window is not a power of two.
	ErrBufferSize = errors.New("analyzer: buffer size must be a power of two >= 32")
	// ErrNoSource is returned when no sample source is configured.
	ErrNoSource = errors.New("analyzer: no sample source")
)
