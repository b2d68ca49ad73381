package audio

import "errors"

var (
	ErrNoDevice          = errors.New("audio device not configured")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrUnknownBackend    = errors.New("unknown audio backend")
)
