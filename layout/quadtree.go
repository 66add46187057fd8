// adapted from https://github.com/jwhandley/graphyz/blob/main/quadtree.go
package layout

import (
	"math"

	"github.com/quartercastle/vector"
)

const (
	// bodies closer than this (squared distance) are considered coincident
	coincidentEpsilon = 1e-6
	// offset applied to a coincident body before it is inserted
	coincidentJitter = 0.1
	// below this depth leaves keep every body they receive instead of
	// subdividing further
	maxQuadTreeDepth = 48
	// root bounds grow by this fraction of the body extent on each side
	boundsMarginFactor = 0.1
	minBoundsMargin    = 1.0
)

type Rect struct {
	X, Y, Width, Height float64
}

func (r *Rect) Contains(pos vector.Vector) bool {
	contains := pos.X() >= r.X && pos.X() <= r.X+r.Width && pos.Y() >= r.Y && pos.Y() <= r.Y+r.Height
	return contains
}

func (r *Rect) Center() vector.Vector {
	return vector.Vector{r.X + r.Width/2, r.Y + r.Height/2}
}

// BoundsOf returns a square containing all bodies plus a margin.
func BoundsOf(bodies []*Body) Rect {
	if len(bodies) == 0 {
		return Rect{X: -minBoundsMargin, Y: -minBoundsMargin, Width: 2 * minBoundsMargin, Height: 2 * minBoundsMargin}
	}
	minX, minY := math.Inf(+1), math.Inf(+1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, b := range bodies {
		minX = math.Min(minX, b.Pos.X())
		minY = math.Min(minY, b.Pos.Y())
		maxX = math.Max(maxX, b.Pos.X())
		maxY = math.Max(maxY, b.Pos.Y())
	}
	size := math.Max(maxX-minX, maxY-minY)
	margin := math.Max(size*boundsMarginFactor, minBoundsMargin)
	size += 2 * margin
	centerX, centerY := (minX+maxX)/2, (minY+maxY)/2
	return Rect{X: centerX - size/2, Y: centerY - size/2, Width: size, Height: size}
}

// QuadTree is one region of the Barnes-Hut tree. A leaf holds a single body
// (several only at maxQuadTreeDepth), an inner node up to 4 children.
// Center and TotalMass aggregate everything below the node.
type QuadTree struct {
	Center    vector.Vector
	TotalMass float64
	Region    Rect
	Bodies    []*Body
	// Children are indexed top left, top right, bottom left, bottom right.
	Children [4]*QuadTree
	pool     *quadTreePool
}

// quadTreePool hands out nodes to a single tree. All nodes are returned at
// once by reset, so a rebuild every tick does not allocate once the pool has
// grown to the size of the tree.
type quadTreePool struct {
	nodes []*QuadTree
	used  int
	// bounds of the root, jittered bodies are kept inside
	bounds Rect
}

func (p *quadTreePool) get(region Rect) *QuadTree {
	if p.used == len(p.nodes) {
		p.nodes = append(p.nodes, &QuadTree{Center: vector.Vector{0, 0}, pool: p})
	}
	qt := p.nodes[p.used]
	p.used++
	qt.clear(region)
	return qt
}

func (p *quadTreePool) reset() {
	p.used = 0
}

// jitter moves body away from a coincident one. The root is at least
// 2*minBoundsMargin wide, so one of both directions stays inside it.
func (p *quadTreePool) jitter(body *Body) {
	if body.Pos[0]+coincidentJitter <= p.bounds.X+p.bounds.Width {
		body.Pos[0] += coincidentJitter
	} else {
		body.Pos[0] -= coincidentJitter
	}
	if body.Pos[1]+coincidentJitter <= p.bounds.Y+p.bounds.Height {
		body.Pos[1] += coincidentJitter
	} else {
		body.Pos[1] -= coincidentJitter
	}
}

// NewQuadTree returns an empty root covering boundary.
func NewQuadTree(boundary Rect) *QuadTree {
	qt := &QuadTree{Center: vector.Vector{0, 0}, pool: &quadTreePool{bounds: boundary}}
	qt.clear(boundary)
	return qt
}

func (qt *QuadTree) clear(region Rect) {
	qt.Region = region
	qt.Center[0], qt.Center[1] = 0, 0
	qt.TotalMass = 0
	qt.Bodies = qt.Bodies[:0]
	for i := range qt.Children {
		qt.Children[i] = nil
	}
}

// Reset empties the tree and returns all of its nodes to the pool. Must only
// be called on the root.
func (qt *QuadTree) Reset(boundary Rect) {
	qt.pool.reset()
	qt.pool.bounds = boundary
	qt.clear(boundary)
}

// Build rebuilds the tree from scratch for bodies.
func (qt *QuadTree) Build(bodies []*Body) {
	qt.Reset(BoundsOf(bodies))
	for _, b := range bodies {
		qt.Insert(b)
	}
}

func (qt *QuadTree) IsLeaf() bool {
	return qt.Children[0] == nil && qt.Children[1] == nil && qt.Children[2] == nil && qt.Children[3] == nil
}

// Insert adds body to the tree. A body coincident with the occupant of the
// leaf it falls into is moved by coincidentJitter on each axis first, towards
// the inside of the root bounds.
func (qt *QuadTree) Insert(body *Body) {
	qt.insert(body, 0)
}

func (qt *QuadTree) insert(body *Body, depth int) {
	if qt.IsLeaf() {
		if len(qt.Bodies) == 0 || depth >= maxQuadTreeDepth {
			qt.Bodies = append(qt.Bodies, body)
			qt.updateMass()
			return
		}
		occupant := qt.Bodies[0]
		if distanceSquared(occupant.Pos, body.Pos) < coincidentEpsilon {
			qt.pool.jitter(body)
		}
		qt.Bodies = qt.Bodies[:0]
		qt.childFor(occupant.Pos).insert(occupant, depth+1)
	}
	qt.childFor(body.Pos).insert(body, depth+1)
	qt.updateMass()
}

// childFor returns the quadrant pos belongs to, creating it if necessary.
func (qt *QuadTree) childFor(pos vector.Vector) *QuadTree {
	halfWidth := qt.Region.Width / 2
	halfHeight := qt.Region.Height / 2
	midX := qt.Region.X + halfWidth
	midY := qt.Region.Y + halfHeight
	index := 0
	region := Rect{X: qt.Region.X, Y: qt.Region.Y, Width: halfWidth, Height: halfHeight}
	if pos.X() >= midX {
		index += 1
		region.X = midX
	}
	if pos.Y() >= midY {
		index += 2
		region.Y = midY
	}
	if qt.Children[index] == nil {
		qt.Children[index] = qt.pool.get(region)
	}
	return qt.Children[index]
}

// updateMass recomputes TotalMass and Center from the bodies of a leaf or
// the children of an inner node.
func (qt *QuadTree) updateMass() {
	mass, x, y := 0.0, 0.0, 0.0
	if qt.IsLeaf() {
		for _, b := range qt.Bodies {
			mass += b.Mass
			x += b.Pos.X() * b.Mass
			y += b.Pos.Y() * b.Mass
		}
	} else {
		for _, child := range qt.Children {
			if child == nil || child.TotalMass == 0 {
				continue
			}
			mass += child.TotalMass
			x += child.Center.X() * child.TotalMass
			y += child.Center.Y() * child.TotalMass
		}
	}
	qt.TotalMass = mass
	if mass > 0 {
		qt.Center[0], qt.Center[1] = x/mass, y/mass
	} else {
		qt.Center[0], qt.Center[1] = qt.Region.X+qt.Region.Width/2, qt.Region.Y+qt.Region.Height/2
	}
}

// CalculateForce adds the many-body force acting on target to totalForce.
// A region is treated as a single mass at its center if it is a leaf or if
// width²/distance² < theta², see
// https://en.wikipedia.org/wiki/Barnes%E2%80%93Hut_simulation#Calculating_the_force_acting_on_a_body
// A negative strength repels.
func (qt *QuadTree) CalculateForce(totalForce vector.Vector, target *Body, strength, alpha, theta, distanceMin, distanceMax float64) {
	if qt.TotalMass == 0 {
		return
	}
	if qt.IsLeaf() {
		for _, other := range qt.Bodies {
			if other == target {
				continue
			}
			addPointForce(totalForce,
				other.Pos.X()-target.Pos.X(), other.Pos.Y()-target.Pos.Y(),
				other.Mass, strength*alpha, distanceMin, distanceMax,
			)
		}
		return
	}
	dx := qt.Center.X() - target.Pos.X()
	dy := qt.Center.Y() - target.Pos.Y()
	if qt.Region.Width*qt.Region.Width < theta*theta*(dx*dx+dy*dy) {
		addPointForce(totalForce, dx, dy, qt.TotalMass, strength*alpha, distanceMin, distanceMax)
		return
	}
	for _, child := range qt.Children {
		if child != nil {
			child.CalculateForce(totalForce, target, strength, alpha, theta, distanceMin, distanceMax)
		}
	}
}

// addPointForce adds the force of a point mass at displacement (dx, dy):
// strengthAlpha * mass / distance along the displacement. Distances are
// clamped into [distanceMin, distanceMax], beyond distanceMax there is no
// force.
func addPointForce(totalForce vector.Vector, dx, dy, mass, strengthAlpha, distanceMin, distanceMax float64) {
	distSq := dx*dx + dy*dy
	if distSq == 0 || distSq > distanceMax*distanceMax {
		return
	}
	dist := math.Sqrt(distSq)
	scale := strengthAlpha * mass / math.Max(dist, distanceMin) / dist
	totalForce[0] += dx * scale
	totalForce[1] += dy * scale
}

func distanceSquared(a, b vector.Vector) float64 {
	dx, dy := a.X()-b.X(), a.Y()-b.Y()
	return dx*dx + dy*dy
}
