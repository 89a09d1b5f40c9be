package kernel

import "errors"

var (
	// ErrUnknownFunction is returned for a kernel type outside the catalogue.
	ErrUnknownFunction = errors.New("kernel: unknown kernel function")
	// ErrUnknownAdaptor is returned for an adaptor type outside the catalogue.
	ErrUnknownAdaptor = errors.New("kernel: unknown kernel adaptor")
	// ErrInvalidConfig is returned when kernel parameters are out of range.
	ErrInvalidConfig = errors.New("kernel: invalid configuration")
	// ErrMissingDerivative is returned when a neighbour has no derivative in
	// an atomic environment. It indicates an adaptor/cutoff inconsistency.
	ErrMissingDerivative = errors.New("kernel: missing descriptor derivative")
	// ErrEmptySpectrum is returned when a spectrum has no atomic environment.
	ErrEmptySpectrum = errors.New("kernel: spectrum has no atomic environments")
)
