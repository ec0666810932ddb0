package initwfn

import G "gorgonia.org/gorgonia"

// GlorotUConfig holds the gain of a Glorot (Xavier) uniform weight
// initializer. Weights are drawn from a uniform distribution whose
// bounds are scaled by the fan-in and fan-out of each layer, then
// multiplied by the gain.
type GlorotUConfig struct {
	Gain float64
}

// NewGlorotU returns a Glorot uniform weight initializer with the
// given gain.
func NewGlorotU(gain float64) (*InitWFn, error) {
	return newInitWFn(GlorotUConfig{Gain: gain})
}

// Type identifies the initialization algorithm of this configuration.
func (g GlorotUConfig) Type() Type {
	return GlorotU
}

// Create returns the Gorgonia InitWFn that this configuration
// describes.
func (g GlorotUConfig) Create() G.InitWFn {
	return G.GlorotU(g.Gain)
}

// GlorotNConfig holds the gain of a Glorot (Xavier) normal weight
// initializer. Weights are drawn from a zero-mean gaussian whose
// standard deviation is scaled by the fan-in and fan-out of each
// layer, then multiplied by the gain.
type GlorotNConfig struct {
	Gain float64
}

// NewGlorotN returns a Glorot normal weight initializer with the
// given gain.
func NewGlorotN(gain float64) (*InitWFn, error) {
	return newInitWFn(GlorotNConfig{Gain: gain})
}

// Type identifies the initialization algorithm of this configuration.
func (g GlorotNConfig) Type() Type {
	return GlorotN
}

// Create returns the Gorgonia InitWFn that this configuration
// describes.
func (g GlorotNConfig) Create() G.InitWFn {
	return G.GlorotN(g.Gain)
}
