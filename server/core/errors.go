package core

import (
	"errors"
)

var (
	// ErrUnrecognizedFormat means a mesh file is neither valid binary layout
	// nor recognizable ASCII; it is left untouched.
	ErrUnrecognizedFormat = errors.New("unrecognized mesh format")
	// ErrTruncatedRead means a stream ended mid-record.
	ErrTruncatedRead = errors.New("truncated read")
	// ErrEmptyMesh means an ASCII mesh parsed to zero triangles.
	ErrEmptyMesh = errors.New("empty mesh")
)
