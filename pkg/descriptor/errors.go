package descriptor

import "errors"

var (
	// ErrUnknownBasis is returned for an unsupported radial basis type or mode.
	ErrUnknownBasis = errors.New("descriptor: unknown radial basis")
	// ErrUnknownCutoff is returned for an unsupported cutoff type.
	ErrUnknownCutoff = errors.New("descriptor: unknown cutoff function")
	// ErrInvalidOptions is returned when numeric options are out of range.
	ErrInvalidOptions = errors.New("descriptor: invalid options")
)
