package simspace

import "errors"

var (
	// ErrDimensionMismatch is returned when descriptor rows disagree on their
	// column count, within one node across acquisitions or across nodes.
	ErrDimensionMismatch = errors.New("simspace: descriptor dimension mismatch")
	// ErrMissingDescriptor is returned for a pid without an atomic environment.
	ErrMissingDescriptor = errors.New("simspace: missing descriptor for pid")
	// ErrMissingDerivative is returned for a (pid, neighbour) pair without a
	// derivative tensor. It signals an adaptor/cutoff inconsistency.
	ErrMissingDerivative = errors.New("simspace: missing derivative for pid pair")
	// ErrNotAcquired is returned when descriptor state is read before the
	// first acquisition.
	ErrNotAcquired = errors.New("simspace: node has no acquired descriptors")
	// ErrWeightLength is returned when the weights do not match the source rows.
	ErrWeightLength = errors.New("simspace: weight count differs from source rows")
	// ErrEmptyTopology is returned when an ensemble matrix is requested
	// from a topology without nodes.
	ErrEmptyTopology = errors.New("simspace: topology has no nodes")
	// ErrInvalidSigma is returned for a non-positive repulsion length.
	ErrInvalidSigma = errors.New("simspace: sigma must be positive")
)
