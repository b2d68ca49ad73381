package voxel

import "errors"

var (
	ErrSize       = errors.New("voxel: canvas size and oversample must be positive")
	ErrRotation3D = errors.New("voxel: rotation is only supported on flat canvases")
)
