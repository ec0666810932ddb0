package initwfn

import G "gorgonia.org/gorgonia"

// HeUConfig holds the gain of a He uniform weight initializer.
// Weights are drawn from a uniform distribution whose bounds are
// scaled by the fan-in of each layer, then multiplied by the gain.
// This scheme suits layers followed by rectifier activations.
type HeUConfig struct {
	Gain float64
}

// NewHeU returns a He uniform weight initializer with the given
// gain.
func NewHeU(gain float64) (*InitWFn, error) {
	return newInitWFn(HeUConfig{Gain: gain})
}

// Type identifies the initialization algorithm of this configuration.
func (h HeUConfig) Type() Type {
	return HeU
}

// Create returns the Gorgonia InitWFn that this configuration
// describes.
func (h HeUConfig) Create() G.InitWFn {
	return G.HeU(h.Gain)
}

// HeNConfig holds the gain of a He normal weight initializer.
// Weights are drawn from a zero-mean gaussian whose standard
// deviation is scaled by the fan-in of each layer, then multiplied
// by the gain.
type HeNConfig struct {
	Gain float64
}

// NewHeN returns a He normal weight initializer with the given gain.
func NewHeN(gain float64) (*InitWFn, error) {
	return newInitWFn(HeNConfig{Gain: gain})
}

// Type identifies the initialization algorithm of this configuration.
func (h HeNConfig) Type() Type {
	return HeN
}

// Create returns the Gorgonia InitWFn that this configuration
// describes.
func (h HeNConfig) Create() G.InitWFn {
	return G.HeN(h.Gain)
}
