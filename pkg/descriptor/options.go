package descriptor

// Options configures the descriptor engine. Field names follow the dotted
// option keys of the engine (radialbasis.*, radialcutoff.*).
type Options struct {
	RadialBasis  RadialBasisOptions  `yaml:"radialbasis" json:"radialbasis"`
	RadialCutoff RadialCutoffOptions `yaml:"radialcutoff" json:"radialcutoff"`

	// Types lists the neighbour type channels, one block of N radial
	// coefficients per entry. Empty means a single channel for all types.
	Types []string `yaml:"types" json:"types"`

	// Centers and targets can be excluded by particle type or by id.
	// Excluded centers produce no atomic environment; excluded targets are
	// never listed as neighbours.
	ExcludeCenters   []string `yaml:"exclude_centers" json:"exclude_centers"`
	ExcludeTargets   []string `yaml:"exclude_targets" json:"exclude_targets"`
	ExcludeCenterIDs []int    `yaml:"exclude_center_ids" json:"exclude_center_ids"`
	ExcludeTargetIDs []int    `yaml:"exclude_target_ids" json:"exclude_target_ids"`
}

// RadialBasisOptions selects the radial basis functions.
type RadialBasisOptions struct {
	// Type is the basis family. Only "gaussian" is implemented.
	Type string `yaml:"type" json:"type"`
	// Mode is the placement of the basis centres. Only "equispaced".
	Mode string `yaml:"mode" json:"mode"`
	// N is the number of radial functions per type channel.
	N int `yaml:"n" json:"n"`
	// Sigma is the Gaussian width.
	Sigma float64 `yaml:"sigma" json:"sigma"`
}

// RadialCutoffOptions selects the smooth cutoff applied to neighbour weights.
type RadialCutoffOptions struct {
	Type         string  `yaml:"type" json:"type"`
	Rc           float64 `yaml:"rc" json:"rc"`
	RcWidth      float64 `yaml:"rc_width" json:"rc_width"`
	CenterWeight float64 `yaml:"center_weight" json:"center_weight"`
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return Options{
		RadialBasis: RadialBasisOptions{
			Type:  "gaussian",
			Mode:  "equispaced",
			N:     9,
			Sigma: 0.5,
		},
		RadialCutoff: RadialCutoffOptions{
			Type:         "shifted-cosine",
			Rc:           4.0,
			RcWidth:      0.5,
			CenterWeight: 1.0,
		},
	}
}
