package paths

// Config tunes the boundary search. Angles are degrees.
type Config struct {
	Resolution       float64 `yaml:"resolution"`        // primary step at the equator
	LatitudeStep     float64 `yaml:"latitude_step"`     // secondary search step
	MinCosLatitude   float64 `yaml:"min_cos_latitude"`  // floor of the cosine stretch near the poles
	MaxJump          float64 `yaml:"max_jump"`          // largest secondary move between points before the step is halved
	MinStepFraction  float64 `yaml:"min_step_fraction"` // smallest halved step, as a fraction of the full step
	CentralDepth     float64 `yaml:"central_depth"`     // percent; a sample this deep is on the central line
	SeedStep         float64 `yaml:"seed_step"`         // longitude spacing of fallback seeds
	MaxSearchSteps   int     `yaml:"max_search_steps"`  // secondary steps per bracket search
	BisectIterations int     `yaml:"bisect_iterations"` // refinement of horizon end points
	MaxPoints        int     `yaml:"max_points"`        // per direction
}

// DefaultConfig returns the standard search tuning.
func DefaultConfig() Config {
	return Config{
		Resolution:       0.5,
		LatitudeStep:     0.5,
		MinCosLatitude:   0.1,
		MaxJump:          2,
		MinStepFraction:  1.0 / 64,
		CentralDepth:     99.9,
		SeedStep:         5,
		MaxSearchSteps:   400,
		BisectIterations: 12,
		MaxPoints:        5000,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Resolution <= 0 {
		c.Resolution = d.Resolution
	}
	if c.LatitudeStep <= 0 {
		c.LatitudeStep = d.LatitudeStep
	}
	if c.MinCosLatitude <= 0 {
		c.MinCosLatitude = d.MinCosLatitude
	}
	if c.MaxJump <= 0 {
		c.MaxJump = d.MaxJump
	}
	if c.MinStepFraction <= 0 {
		c.MinStepFraction = d.MinStepFraction
	}
	if c.CentralDepth <= 0 {
		c.CentralDepth = d.CentralDepth
	}
	if c.SeedStep <= 0 {
		c.SeedStep = d.SeedStep
	}
	if c.MaxSearchSteps <= 0 {
		c.MaxSearchSteps = d.MaxSearchSteps
	}
	if c.BisectIterations <= 0 {
		c.BisectIterations = d.BisectIterations
	}
	if c.MaxPoints <= 0 {
		c.MaxPoints = d.MaxPoints
	}
	return c
}
