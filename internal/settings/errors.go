package settings

import "errors"

// ErrNotFound is returned when no song data exists for a track.
var ErrNotFound = errors.New("settings: song data not found")
