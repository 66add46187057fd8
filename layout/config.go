package layout

import (
	"math"
	"os"

	"github.com/caarlos0/env/v6"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// SimulationConfig is an immutable snapshot of the tunable parameters of a
// force simulation. Replacing it reheats the simulation.
type SimulationConfig struct {
	// initial temperature of simulation, restored on every reheat
	AlphaStart float64 `env:"LAYOUT_ALPHA_START" envDefault:"1" yaml:"alphaStart"`
	// the simulation is converged once alpha drops below AlphaMin
	AlphaMin float64 `env:"LAYOUT_ALPHA_MIN" envDefault:"0.001" yaml:"alphaMin"`
	// fraction of the distance to AlphaTarget covered per tick
	AlphaDecay float64 `env:"LAYOUT_ALPHA_DECAY" envDefault:"0.02276277904418933" yaml:"alphaDecay"`
	// target temperature of simulation
	AlphaTarget float64 `env:"LAYOUT_ALPHA_TARGET" envDefault:"0" yaml:"alphaTarget"`
	// VelocityDecay is applied after every position update, i.e.
	// vel *= 1 - VelocityDecay.
	VelocityDecay float64 `env:"LAYOUT_VELOCITY_DECAY" envDefault:"0.4" yaml:"velocityDecay"`

	// ManyBodyStrength is negative for repulsion, positive for attraction.
	ManyBodyStrength    float64 `env:"LAYOUT_MANY_BODY_STRENGTH" envDefault:"-30" yaml:"manyBodyStrength"`
	ManyBodyDistanceMin float64 `env:"LAYOUT_MANY_BODY_DISTANCE_MIN" envDefault:"1" yaml:"manyBodyDistanceMin"`
	ManyBodyDistanceMax float64 `env:"LAYOUT_MANY_BODY_DISTANCE_MAX" envDefault:"+Inf" yaml:"manyBodyDistanceMax"`
	// Theta defines the accuracy of the Barnes-Hut approximation, see
	// https://en.wikipedia.org/wiki/Barnes%E2%80%93Hut_simulation#Calculating_the_force_acting_on_a_body
	// Theta = 0 yields exact pairwise summation.
	Theta float64 `env:"LAYOUT_THETA" envDefault:"0.9" yaml:"theta"`
	// LinkedRepulsionCorrection in [0,1] cancels that fraction of the
	// repulsion between two directly linked bodies.
	LinkedRepulsionCorrection float64 `env:"LAYOUT_LINKED_REPULSION_CORRECTION" envDefault:"0" yaml:"linkedRepulsionCorrection"`

	LinkStrength float64 `env:"LAYOUT_LINK_STRENGTH" envDefault:"0.5" yaml:"linkStrength"`
	LinkDistance float64 `env:"LAYOUT_LINK_DISTANCE" envDefault:"30" yaml:"linkDistance"`

	// GravityStrength of 0 disables the pull towards the origin.
	GravityStrength      float64 `env:"LAYOUT_GRAVITY_STRENGTH" envDefault:"0.1" yaml:"gravityStrength"`
	GravityDistanceScale float64 `env:"LAYOUT_GRAVITY_DISTANCE_SCALE" envDefault:"100" yaml:"gravityDistanceScale"`
}

var DefaultSimulationConfig = SimulationConfig{
	AlphaStart:                1.0,
	AlphaMin:                  0.001,
	AlphaDecay:                0.02276277904418933, // 1 - 0.001^(1/300): ~300 ticks to converge
	AlphaTarget:               0.0,
	VelocityDecay:             0.4,
	ManyBodyStrength:          -30.0,
	ManyBodyDistanceMin:       1.0,
	ManyBodyDistanceMax:       math.Inf(+1),
	Theta:                     0.9,
	LinkedRepulsionCorrection: 0.0,
	LinkStrength:              0.5,
	LinkDistance:              30.0,
	GravityStrength:           0.1,
	GravityDistanceScale:      100.0,
}

// GetEnvConfig returns the simulation config described by the LAYOUT_*
// environment variables, falling back to DefaultSimulationConfig.
func GetEnvConfig() (SimulationConfig, error) {
	conf := SimulationConfig{}
	if err := env.Parse(&conf); err != nil {
		return DefaultSimulationConfig, errors.Wrap(err, "failed to parse simulation config from environment")
	}
	return conf, nil
}

// LoadConfigFile overlays the yaml file at path onto base. Fields missing
// from the file keep the value from base.
func LoadConfigFile(path string, base SimulationConfig) (SimulationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, errors.Wrapf(err, "failed to read config file '%s'", path)
	}
	conf := base
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return base, errors.Wrapf(err, "failed to parse config file '%s'", path)
	}
	if err := conf.Validate(); err != nil {
		return base, errors.Wrapf(err, "invalid config file '%s'", path)
	}
	return conf, nil
}

// Validate reports parameters for which the simulation is not well defined.
func (c SimulationConfig) Validate() error {
	for _, param := range []struct {
		name  string
		value float64
	}{
		{"alphaStart", c.AlphaStart},
		{"alphaMin", c.AlphaMin},
		{"alphaDecay", c.AlphaDecay},
		{"alphaTarget", c.AlphaTarget},
		{"velocityDecay", c.VelocityDecay},
		{"manyBodyStrength", c.ManyBodyStrength},
		{"manyBodyDistanceMin", c.ManyBodyDistanceMin},
		{"theta", c.Theta},
		{"linkedRepulsionCorrection", c.LinkedRepulsionCorrection},
		{"linkStrength", c.LinkStrength},
		{"linkDistance", c.LinkDistance},
		{"gravityStrength", c.GravityStrength},
		{"gravityDistanceScale", c.GravityDistanceScale},
	} {
		if math.IsNaN(param.value) || math.IsInf(param.value, 0) {
			return errors.Errorf("%s must be finite, got %v", param.name, param.value)
		}
	}
	if math.IsNaN(c.ManyBodyDistanceMax) {
		return errors.New("manyBodyDistanceMax must not be NaN")
	}
	if c.AlphaStart <= 0 || c.AlphaStart > 1 {
		return errors.Errorf("alphaStart must be in (0,1], got %v", c.AlphaStart)
	}
	if c.AlphaMin < 0 {
		return errors.Errorf("alphaMin must not be negative, got %v", c.AlphaMin)
	}
	for _, param := range []struct {
		name  string
		value float64
	}{
		{"alphaDecay", c.AlphaDecay},
		{"velocityDecay", c.VelocityDecay},
		{"linkedRepulsionCorrection", c.LinkedRepulsionCorrection},
	} {
		if param.value < 0 || param.value > 1 {
			return errors.Errorf("%s must be in [0,1], got %v", param.name, param.value)
		}
	}
	if c.Theta < 0 {
		return errors.Errorf("theta must not be negative, got %v", c.Theta)
	}
	if c.ManyBodyDistanceMin < 0 || c.ManyBodyDistanceMax < c.ManyBodyDistanceMin {
		return errors.Errorf("invalid many-body distance range [%v, %v]", c.ManyBodyDistanceMin, c.ManyBodyDistanceMax)
	}
	if c.LinkDistance < 0 {
		return errors.Errorf("linkDistance must not be negative, got %v", c.LinkDistance)
	}
	if c.GravityDistanceScale <= 0 {
		return errors.Errorf("gravityDistanceScale must be positive, got %v", c.GravityDistanceScale)
	}
	return nil
}

// TicksUntilConverged iterates the alpha schedule of conf and returns the
// number of ticks after which alpha < AlphaMin, or -1 if alpha never gets
// there.
func TicksUntilConverged(conf SimulationConfig) int {
	if conf.AlphaTarget >= conf.AlphaMin || conf.AlphaDecay <= 0 {
		if conf.AlphaStart < conf.AlphaMin {
			return 0
		}
		return -1
	}
	alpha := conf.AlphaStart
	ticks := 0
	for alpha >= conf.AlphaMin {
		alpha += (conf.AlphaTarget - alpha) * conf.AlphaDecay
		ticks++
	}
	return ticks
}
