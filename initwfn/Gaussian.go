package initwfn

import G "gorgonia.org/gorgonia"

// GaussianConfig describes a weight initializer that draws weights
// from a gaussian distribution.
type GaussianConfig struct {
	Mean, StdDev float64
}

// NewGaussian returns a weight initializer drawing weights from a
// gaussian distribution with the given mean and standard deviation.
func NewGaussian(mean, stddev float64) (*InitWFn, error) {
	return newInitWFn(GaussianConfig{Mean: mean, StdDev: stddev})
}

// Type identifies the initialization algorithm of this configuration.
func (g GaussianConfig) Type() Type {
	return Gaussian
}

// Create returns the Gorgonia InitWFn that this configuration
// describes.
func (g GaussianConfig) Create() G.InitWFn {
	return G.Gaussian(g.Mean, g.StdDev)
}

// UniformConfig describes a weight initializer that draws weights
// from a uniform distribution.
type UniformConfig struct {
	Low, High float64
}

// NewUniform returns a weight initializer drawing weights uniformly
// from [low, high).
func NewUniform(low, high float64) (*InitWFn, error) {
	return newInitWFn(UniformConfig{Low: low, High: high})
}

// Type identifies the initialization algorithm of this configuration.
func (u UniformConfig) Type() Type {
	return Uniform
}

// Create returns the Gorgonia InitWFn that this configuration
// describes.
func (u UniformConfig) Create() G.InitWFn {
	return G.Uniform(u.Low, u.High)
}
