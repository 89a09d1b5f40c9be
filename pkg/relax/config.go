package relax

// Config holds the minimizer settings and the particles allowed to move.
type Config struct {
	// GradTol stops the minimization once the largest gradient component
	// falls below it.
	GradTol float64 `yaml:"gtol" json:"gtol"`
	// MaxIterations caps the number of major iterations. Zero means no cap.
	MaxIterations int `yaml:"max_iterations" json:"max_iterations"`
	// MaxEvaluations caps the number of energy evaluations. Zero means no cap.
	MaxEvaluations int `yaml:"max_evaluations" json:"max_evaluations"`
	// Indices lists the 0-based particle indices to optimize. Empty means
	// every particle.
	Indices []int `yaml:"indices" json:"indices"`
	// Trajectory is the XYZ file receiving one frame per gradient evaluation.
	Trajectory string `yaml:"trajectory" json:"trajectory"`
}

// DefaultConfig returns the default minimizer settings.
func DefaultConfig() Config {
	return Config{
		GradTol:       1e-6,
		MaxIterations: 1000,
	}
}
