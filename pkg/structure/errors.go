package structure

import "errors"

var (
	// ErrInvalidID is returned when a particle id is outside [1, N].
	ErrInvalidID = errors.New("structure: invalid particle id")
	// ErrShape is returned when a position matrix does not match the structure.
	ErrShape = errors.New("structure: shape mismatch")
	// ErrUnknownBoundary is returned for an unsupported boundary type tag.
	ErrUnknownBoundary = errors.New("structure: unknown boundary type")
	// ErrDegenerateBox is returned for a periodic box with zero volume.
	ErrDegenerateBox = errors.New("structure: degenerate box")
	// ErrSyntax is returned when an XYZ stream cannot be parsed.
	ErrSyntax = errors.New("structure: xyz syntax error")
)
