package kernel

// Config selects the kernel function and the descriptor adaptor and holds
// their parameters.
type Config struct {
	// Type is the similarity function: "dot", "polynomial" or "exp-cosine".
	Type FunctionType `yaml:"type" json:"type"`
	// Adaptor is the descriptor adaptor: "specific-unique" or "global-generic".
	Adaptor AdaptorType `yaml:"adaptor" json:"adaptor"`

	// Polynomial: delta^2 * (s.x + offset)^xi
	Delta  float64 `yaml:"delta" json:"delta"`
	Xi     int     `yaml:"xi" json:"xi"`
	Offset float64 `yaml:"offset" json:"offset"`

	// Exp-cosine: exp(gamma * (cos(s, x) - 1))
	Gamma float64 `yaml:"gamma" json:"gamma"`

	// Alpha holds the regression weights, one per source row.
	Alpha []float64 `yaml:"alpha" json:"alpha"`
}

// DefaultConfig returns a linear dot-product kernel on per-atom descriptors
// with a single unit weight.
func DefaultConfig() Config {
	return Config{
		Type:    FunctionDot,
		Adaptor: AdaptorSpecificUnique,
		Delta:   1.0,
		Xi:      2,
		Gamma:   1.0,
		Alpha:   []float64{1.0},
	}
}
