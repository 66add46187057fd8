package layout

import (
	"math"

	"github.com/quartercastle/vector"
	"golang.org/x/exp/constraints"
)

// Body is a simulated graph node. Bodies handed to a ForceSimulation are
// copied, the simulation never shares its own state with the caller.
type Body struct {
	ID string `json:"id"`
	// Pos may be left empty, the simulation then places the body itself.
	Pos    vector.Vector `json:"pos,omitempty"`
	Vel    vector.Vector `json:"-"`
	Mass   float64       `json:"mass,omitempty"`
	Radius float64       `json:"radius,omitempty"`

	sqrtMass   float64
	degree     int
	isDragged  bool
	dragTarget vector.Vector
}

// Link connects two bodies by ID. Links are undirected and only take effect
// once both ends exist.
type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Graph is the topology as exchanged with consumers.
type Graph struct {
	Bodies []Body `json:"bodies"`
	Links  []Link `json:"links"`
}

type activeLink struct {
	source, target *Body
}

const (
	defaultMass   = 1.0
	defaultRadius = 1.0
	// placement of bodies submitted without position, see pointOnSpiral
	initialRadius = 10.0
)

var initialAngle = math.Pi * (3 - math.Sqrt(5))

func newBody(in Body, placementIndex int) *Body {
	b := &Body{
		ID:         in.ID,
		Pos:        vector.Vector{0, 0},
		Vel:        vector.Vector{0, 0},
		dragTarget: vector.Vector{0, 0},
	}
	b.assign(in, placementIndex)
	return b
}

// assign copies the externally settable properties of in onto b.
func (b *Body) assign(in Body, placementIndex int) {
	if isFiniteVector(in.Pos) {
		b.Pos[0], b.Pos[1] = in.Pos[0], in.Pos[1]
	} else if placementIndex >= 0 {
		p := pointOnSpiral(placementIndex)
		b.Pos[0], b.Pos[1] = p[0], p[1]
	}
	b.Mass = in.Mass
	if !(b.Mass > 0) || math.IsInf(b.Mass, 0) {
		b.Mass = defaultMass
	}
	b.sqrtMass = math.Sqrt(b.Mass)
	b.Radius = in.Radius
	if !(b.Radius > 0) || math.IsInf(b.Radius, 0) {
		b.Radius = defaultRadius
	}
}

// degreeOrOne is used for link bias, a linked body always has degree >= 1.
func (b *Body) degreeOrOne() float64 {
	if b.degree == 0 {
		return 1
	}
	return float64(b.degree)
}

// pointOnSpiral spreads the i-th body on a phyllotaxis spiral around the
// origin, so that no two placed bodies coincide.
func pointOnSpiral(i int) vector.Vector {
	radius := initialRadius * math.Sqrt(0.5+float64(i))
	angle := float64(i) * initialAngle
	return vector.Vector{radius * math.Cos(angle), radius * math.Sin(angle)}
}

func isFiniteVector(v vector.Vector) bool {
	if len(v) < 2 {
		return false
	}
	return isFinite(v[0]) && isFinite(v[1])
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func clamp[T constraints.Ordered](in, lo, hi T) T {
	if in > hi {
		return hi
	} else if in < lo {
		return lo
	}
	return in
}
