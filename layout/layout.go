// Package layout computes 2D positions for a changing set of graph nodes
// with a force simulation: Barnes-Hut approximated repulsion, springs along
// links and a pull towards the origin, all scaled by a cooling parameter
// alpha that lets the layout settle over time.
//
// A ForceSimulation is not safe for concurrent use, it is meant to be owned
// by a single goroutine.
package layout

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/quartercastle/vector"
)

// ForceSimulation holds all information needed for a force based graph
// embedding procedure.
type ForceSimulation struct {
	conf  SimulationConfig
	alpha float64

	bodies []*Body
	lookup map[string]int
	links  []Link
	active []activeLink

	tree *QuadTree
	// scratch accumulator, reused for every body
	force vector.Vector
	// number of bodies placed on the initial spiral so far
	placed int
	// incremented on every change of the body set or its order
	version uint64
	ticks   uint64
}

type Stats struct {
	Iterations int
	TotalTime  time.Duration
}

// NewForceSimulation returns an empty simulation. An invalid conf is replaced
// by DefaultSimulationConfig.
func NewForceSimulation(conf SimulationConfig) *ForceSimulation {
	fs := &ForceSimulation{
		lookup: make(map[string]int),
		tree:   NewQuadTree(Rect{}),
		force:  vector.Vector{0, 0},
	}
	if err := fs.ApplyConfig(conf); err != nil {
		fs.conf = DefaultSimulationConfig
		fs.Reheat()
	}
	return fs
}

// ApplyConfig replaces the configuration and reheats. An invalid conf is
// rejected and the current configuration stays in place.
func (fs *ForceSimulation) ApplyConfig(conf SimulationConfig) error {
	if err := conf.Validate(); err != nil {
		return errors.Wrap(err, "simulation config rejected")
	}
	fs.conf = conf
	fs.Reheat()
	return nil
}

func (fs *ForceSimulation) Config() SimulationConfig {
	return fs.conf
}

// Init replaces all bodies and links. The topology is applied even if conf
// is rejected, in that case the previous configuration is kept and the
// validation error is returned.
func (fs *ForceSimulation) Init(bodies []Body, links []Link, conf SimulationConfig) error {
	fs.bodies = fs.bodies[:0]
	fs.lookup = make(map[string]int, len(bodies))
	fs.placed = 0
	fs.ticks = 0
	err := fs.ApplyConfig(conf)
	fs.upsert(bodies)
	fs.links = append([]Link(nil), links...)
	fs.topologyChanged()
	return err
}

// UpsertBodies adds unknown bodies and updates known ones. Known bodies keep
// their position unless a new one is given.
func (fs *ForceSimulation) UpsertBodies(bodies []Body) {
	fs.upsert(bodies)
	fs.topologyChanged()
}

func (fs *ForceSimulation) upsert(bodies []Body) {
	for _, in := range bodies {
		if in.ID == "" {
			// an empty id addresses all bodies in Touch
			continue
		}
		if i, exists := fs.lookup[in.ID]; exists {
			fs.bodies[i].assign(in, -1)
			continue
		}
		fs.lookup[in.ID] = len(fs.bodies)
		fs.bodies = append(fs.bodies, newBody(in, fs.placed))
		if !isFiniteVector(in.Pos) {
			fs.placed++
		}
	}
}

// SetLinks replaces the link set.
func (fs *ForceSimulation) SetLinks(links []Link) {
	fs.links = append(fs.links[:0], links...)
	fs.topologyChanged()
}

// RemoveBody deletes the body and all links incident to it. It reports
// whether the body existed.
func (fs *ForceSimulation) RemoveBody(id string) bool {
	i, exists := fs.lookup[id]
	if !exists {
		return false
	}
	last := len(fs.bodies) - 1
	if i != last {
		fs.bodies[i] = fs.bodies[last]
		fs.lookup[fs.bodies[i].ID] = i
	}
	fs.bodies[last] = nil
	fs.bodies = fs.bodies[:last]
	delete(fs.lookup, id)
	links := fs.links[:0]
	for _, l := range fs.links {
		if l.Source != id && l.Target != id {
			links = append(links, l)
		}
	}
	fs.links = links
	fs.topologyChanged()
	return true
}

// topologyChanged recomputes which links are active and the degree of every
// body, then reheats.
func (fs *ForceSimulation) topologyChanged() {
	for _, b := range fs.bodies {
		b.degree = 0
	}
	fs.active = fs.active[:0]
	for _, l := range fs.links {
		si, sok := fs.lookup[l.Source]
		ti, tok := fs.lookup[l.Target]
		if !sok || !tok || si == ti {
			continue
		}
		source, target := fs.bodies[si], fs.bodies[ti]
		source.degree++
		target.degree++
		fs.active = append(fs.active, activeLink{source: source, target: target})
	}
	fs.version++
	fs.Reheat()
}

// Touch pins the body with the given id to target, or to its current
// position if target is empty. An empty id releases all pinned bodies.
// Touch reports whether anything changed.
func (fs *ForceSimulation) Touch(id string, target vector.Vector) bool {
	if id == "" {
		released := false
		for _, b := range fs.bodies {
			released = released || b.isDragged
			b.isDragged = false
		}
		if released {
			fs.Reheat()
		}
		return released
	}
	i, exists := fs.lookup[id]
	if !exists {
		return false
	}
	b := fs.bodies[i]
	if isFiniteVector(target) {
		b.dragTarget[0], b.dragTarget[1] = target[0], target[1]
	} else if !b.isDragged {
		b.dragTarget[0], b.dragTarget[1] = b.Pos[0], b.Pos[1]
	}
	b.isDragged = true
	fs.Reheat()
	return true
}

// Dragging reports whether any body is pinned.
func (fs *ForceSimulation) Dragging() bool {
	for _, b := range fs.bodies {
		if b.isDragged {
			return true
		}
	}
	return false
}

// Reheat resets alpha to its start value without touching the topology.
func (fs *ForceSimulation) Reheat() {
	fs.alpha = fs.conf.AlphaStart
}

func (fs *ForceSimulation) Alpha() float64 {
	return fs.alpha
}

// Converged reports whether alpha fell below AlphaMin. A converged simulation
// does not move until reheated.
func (fs *ForceSimulation) Converged() bool {
	return fs.alpha < fs.conf.AlphaMin
}

func (fs *ForceSimulation) Len() int {
	return len(fs.bodies)
}

func (fs *ForceSimulation) LinkCount() int {
	return len(fs.active)
}

func (fs *ForceSimulation) Ticks() uint64 {
	return fs.ticks
}

// Version changes whenever bodies or links are added, removed or replaced.
func (fs *ForceSimulation) Version() uint64 {
	return fs.version
}

// Tick advances the simulation by one step. It returns false without doing
// anything if there are no bodies or the simulation is converged.
func (fs *ForceSimulation) Tick() bool {
	if len(fs.bodies) == 0 || fs.Converged() {
		return false
	}
	fs.alpha += (fs.conf.AlphaTarget - fs.alpha) * fs.conf.AlphaDecay
	fs.pinDragged()
	fs.applyForces()
	fs.updatePositions()
	fs.ticks++
	return true
}

// ComputeLayout ticks until the simulation converges or ctx is done.
func (fs *ForceSimulation) ComputeLayout(ctx context.Context) Stats {
	startTime := time.Now()
	stats := Stats{}
simulation:
	for {
		select {
		case <-ctx.Done():
			break simulation
		default:
			// continue looping
		}
		if !fs.Tick() {
			break
		}
		stats.Iterations += 1
	}
	stats.TotalTime = time.Since(startTime)
	return stats
}

// IDs returns the body ids in the order used by AppendCoords.
func (fs *ForceSimulation) IDs() []string {
	ids := make([]string, len(fs.bodies))
	for i, b := range fs.bodies {
		ids[i] = b.ID
	}
	return ids
}

// AppendCoords appends x and y of every body, in the order of IDs, to dst.
func (fs *ForceSimulation) AppendCoords(dst []float64) []float64 {
	for _, b := range fs.bodies {
		dst = append(dst, b.Pos[0], b.Pos[1])
	}
	return dst
}

// Position returns a copy of the position of the body with the given id.
func (fs *ForceSimulation) Position(id string) (vector.Vector, bool) {
	i, exists := fs.lookup[id]
	if !exists {
		return nil, false
	}
	p := fs.bodies[i].Pos
	return vector.Vector{p[0], p[1]}, true
}

// Positions returns a copy of all positions by body id.
func (fs *ForceSimulation) Positions() map[string]vector.Vector {
	positions := make(map[string]vector.Vector, len(fs.bodies))
	for _, b := range fs.bodies {
		positions[b.ID] = vector.Vector{b.Pos[0], b.Pos[1]}
	}
	return positions
}
