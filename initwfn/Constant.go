package initwfn

import G "gorgonia.org/gorgonia"

// ZeroesConfig describes a weight initializer that sets every weight
// to zero.
type ZeroesConfig struct{}

// NewZeroes returns a weight initializer that sets every weight to
// zero.
func NewZeroes() (*InitWFn, error) {
	return newInitWFn(ZeroesConfig{})
}

// Type identifies the initialization algorithm of this configuration.
func (z ZeroesConfig) Type() Type {
	return Zeroes
}

// Create returns the Gorgonia InitWFn that this configuration
// describes.
func (z ZeroesConfig) Create() G.InitWFn {
	return G.Zeroes()
}

// OnesConfig describes a weight initializer that sets every weight
// to one.
type OnesConfig struct{}

// NewOnes returns a weight initializer that sets every weight to one.
func NewOnes() (*InitWFn, error) {
	return newInitWFn(OnesConfig{})
}

// Type identifies the initialization algorithm of this configuration.
func (o OnesConfig) Type() Type {
	return Ones
}

// Create returns the Gorgonia InitWFn that this configuration
// describes.
func (o OnesConfig) Create() G.InitWFn {
	return G.Ones()
}

// ConstantConfig describes a weight initializer that sets every
// weight to a fixed value.
type ConstantConfig struct {
	Value float64
}

// NewConstant returns a weight initializer that sets every weight to
// value.
func NewConstant(value float64) (*InitWFn, error) {
	return newInitWFn(ConstantConfig{Value: value})
}

// Type identifies the initialization algorithm of this configuration.
func (c ConstantConfig) Type() Type {
	return Constant
}

// Create returns the Gorgonia InitWFn that this configuration
// describes.
func (c ConstantConfig) Create() G.InitWFn {
	return G.ValuesOf(c.Value)
}
