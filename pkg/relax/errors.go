package relax

import "errors"

var (
	// ErrTargetMismatch is returned when the potentials of one relaxation do
	// not all act on the driver's node.
	ErrTargetMismatch = errors.New("relax: potentials disagree on target node")
	// ErrInvalidIndex is returned for an optimizable index outside the
	// structure or listed twice.
	ErrInvalidIndex = errors.New("relax: invalid optimizable index")
	// ErrVectorLength is returned when an optimization vector does not hold
	// three coordinates per optimizable particle.
	ErrVectorLength = errors.New("relax: optimization vector length mismatch")
	// ErrTerminated is returned when relaxing a driver that already reached
	// its terminal state.
	ErrTerminated = errors.New("relax: driver is terminated")
)
