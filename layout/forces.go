package layout

import (
	"math"

	"github.com/quartercastle/vector"
)

// links shorter than this are treated as having this length
const minLinkDistance = 0.1

func (fs *ForceSimulation) applyForces() {
	fs.manyBodyForce()
	fs.linkedRepulsionCorrection()
	fs.linkForce()
	fs.gravityForce()
}

// manyBodyForce rebuilds the quadtree from the current positions and adds the
// Barnes-Hut approximated repulsion to the velocity of every body.
func (fs *ForceSimulation) manyBodyForce() {
	if fs.conf.ManyBodyStrength == 0 || len(fs.bodies) < 2 {
		return
	}
	fs.tree.Build(fs.bodies)
	for _, b := range fs.bodies {
		if b.isDragged {
			continue
		}
		fs.force[0], fs.force[1] = 0, 0
		fs.tree.CalculateForce(fs.force, b,
			fs.conf.ManyBodyStrength, fs.alpha, fs.conf.Theta,
			fs.conf.ManyBodyDistanceMin, fs.conf.ManyBodyDistanceMax,
		)
		vector.In(b.Vel).Add(fs.force)
	}
}

// linkedRepulsionCorrection takes back a fraction of the many-body force
// that linked bodies exert on each other, so that springs and repulsion do
// not fight over directly connected pairs.
func (fs *ForceSimulation) linkedRepulsionCorrection() {
	correction := fs.conf.LinkedRepulsionCorrection
	if correction == 0 || fs.conf.ManyBodyStrength == 0 {
		return
	}
	strengthAlpha := fs.conf.ManyBodyStrength * fs.alpha
	for _, l := range fs.active {
		s, t := l.source, l.target
		dx, dy := t.Pos.X()-s.Pos.X(), t.Pos.Y()-s.Pos.Y()
		if !s.isDragged {
			fs.force[0], fs.force[1] = 0, 0
			addPointForce(fs.force, dx, dy, t.Mass, strengthAlpha, fs.conf.ManyBodyDistanceMin, fs.conf.ManyBodyDistanceMax)
			vector.In(fs.force).Scale(correction)
			vector.In(s.Vel).Sub(fs.force)
		}
		if !t.isDragged {
			fs.force[0], fs.force[1] = 0, 0
			addPointForce(fs.force, -dx, -dy, s.Mass, strengthAlpha, fs.conf.ManyBodyDistanceMin, fs.conf.ManyBodyDistanceMax)
			vector.In(fs.force).Scale(correction)
			vector.In(t.Vel).Sub(fs.force)
		}
	}
}

// similar to the frontend this replicates
// https://github.com/vasturiano/d3-force-3d/blob/b1907747c88f481f27e2b8da3c895119e4ffa1ae/src/link.js#L33-L53
// The displacement is taken between the positions the ends will have after
// this tick (pos + vel). The lower degree end of a link moves more.
func (fs *ForceSimulation) linkForce() {
	if fs.conf.LinkStrength == 0 {
		return
	}
	for _, l := range fs.active {
		s, t := l.source, l.target
		dx := t.Pos.X() + t.Vel.X() - s.Pos.X() - s.Vel.X()
		dy := t.Pos.Y() + t.Vel.Y() - s.Pos.Y() - s.Vel.Y()
		dist := math.Max(math.Sqrt(dx*dx+dy*dy), minLinkDistance)
		scale := (dist - fs.conf.LinkDistance) / dist * fs.alpha * fs.conf.LinkStrength
		dx, dy = dx*scale, dy*scale
		bias := s.degreeOrOne() / (s.degreeOrOne() + t.degreeOrOne())
		if !t.isDragged {
			t.Vel[0] -= dx * bias
			t.Vel[1] -= dy * bias
		}
		if !s.isDragged {
			s.Vel[0] += dx * (1 - bias)
			s.Vel[1] += dy * (1 - bias)
		}
	}
}

// gravityForce pulls bodies towards the origin, stronger the further away
// they are. The factor is capped at 1 so a body never overshoots the origin.
func (fs *ForceSimulation) gravityForce() {
	if fs.conf.GravityStrength == 0 {
		return
	}
	for _, b := range fs.bodies {
		if b.isDragged {
			continue
		}
		dist := b.Pos.Magnitude()
		if dist == 0 {
			continue
		}
		factor := fs.conf.GravityStrength * fs.alpha * b.sqrtMass * math.Sqrt(dist/fs.conf.GravityDistanceScale)
		factor = clamp(factor, -1, 1)
		b.Vel[0] -= b.Pos[0] * factor
		b.Vel[1] -= b.Pos[1] * factor
	}
}

// pinDragged moves dragged bodies onto their drag target, so the forces of
// this tick already see the latest target.
func (fs *ForceSimulation) pinDragged() {
	for _, b := range fs.bodies {
		if b.isDragged {
			b.Pos[0], b.Pos[1] = b.dragTarget[0], b.dragTarget[1]
			b.Vel[0], b.Vel[1] = 0, 0
		}
	}
}

// updatePositions integrates velocities. Dragged bodies are pinned to their
// drag target.
func (fs *ForceSimulation) updatePositions() {
	decay := 1 - fs.conf.VelocityDecay
	for _, b := range fs.bodies {
		if b.isDragged {
			b.Pos[0], b.Pos[1] = b.dragTarget[0], b.dragTarget[1]
			b.Vel[0], b.Vel[1] = 0, 0
			continue
		}
		if !isFiniteVector(b.Vel) {
			b.Vel[0], b.Vel[1] = 0, 0
		}
		vector.In(b.Pos).Add(b.Vel)
		vector.In(b.Vel).Scale(decay)
	}
}
