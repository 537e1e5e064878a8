package initwfn

import G "gorgonia.org/gorgonia"

// GlorotUConfig describes Glorot initialization with weights drawn
// from a uniform distribution.
type GlorotUConfig struct {
	Gain float64
}

// NewGlorotU returns a new Glorot Uniform weight initializer with the
// given gain
func NewGlorotU(gain float64) (*InitWFn, error) {
	return newInitWFn(GlorotUConfig{Gain: gain})
}

// Create returns the Gorgonia InitWFn described by the configuration
func (g GlorotUConfig) Create() G.InitWFn {
	return G.GlorotU(g.Gain)
}

// Type returns the type of InitWFn the configuration describes
func (g GlorotUConfig) Type() Type {
	return GlorotU
}

// GlorotNConfig describes Glorot initialization with weights drawn
// from a normal distribution.
type GlorotNConfig struct {
	Gain float64
}

// NewGlorotN returns a new Glorot Normal weight initializer with the
// given gain
func NewGlorotN(gain float64) (*InitWFn, error) {
	return newInitWFn(GlorotNConfig{Gain: gain})
}

// Create returns the Gorgonia InitWFn described by the configuration
func (g GlorotNConfig) Create() G.InitWFn {
	return G.GlorotN(g.Gain)
}

// Type returns the type of InitWFn the configuration describes
func (g GlorotNConfig) Type() Type {
	return GlorotN
}
