package worker

import (
	"sync"

	"github.com/quartercastle/vector"
	"github.com/suxatcode/learngraph-forcelayout/layout"
)

// Command is a message from the consumer to the worker. Commands are applied
// in the order they were sent.
type Command interface {
	// Name identifies the command in logs and metrics.
	Name() string
}

// Init replaces all bodies, links and, if Config is set, the simulation
// config, then starts ticking.
type Init struct {
	Bodies []layout.Body
	Links  []layout.Link
	Config *layout.SimulationConfig
}

// Start resumes periodic ticking.
type Start struct{}

// Stop halts periodic ticking until Start or the next command that reheats.
type Stop struct{}

// UpdateNodes upserts bodies by id.
type UpdateNodes struct {
	Bodies []layout.Body
}

// UpdateLinks replaces the link set.
type UpdateLinks struct {
	Links []layout.Link
}

// RemoveNode deletes a body together with its links.
type RemoveNode struct {
	ID string
}

// TouchNode begins or continues dragging the body ID towards Position. An
// empty Position pins the body where it is, an empty ID ends every drag.
type TouchNode struct {
	ID       string
	Position vector.Vector
}

// Reheat resets alpha without changing the topology.
type Reheat struct{}

func (Init) Name() string        { return "init" }
func (Start) Name() string       { return "start" }
func (Stop) Name() string        { return "stop" }
func (UpdateNodes) Name() string { return "updateNodes" }
func (UpdateLinks) Name() string { return "updateLinks" }
func (RemoveNode) Name() string  { return "removeNode" }
func (TouchNode) Name() string   { return "touchNode" }
func (Reheat) Name() string      { return "reheat" }

var coordsPool = sync.Pool{
	New: func() any {
		coords := make([]float64, 0, 512)
		return &coords
	},
}

// PositionsUpdate is a snapshot of all body positions. Coords holds x and y
// of IDs[i] at Coords[2*i] and Coords[2*i+1].
//
// IDs is shared between snapshots of the same topology and must not be
// modified. Coords belongs to the receiver until Release is called.
type PositionsUpdate struct {
	IDs       []string
	Coords    []float64
	Tick      uint64
	Alpha     float64
	// Converged is set if nothing moves until the next command.
	Converged bool
	// Seq is the number of commands the worker applied before taking the
	// snapshot.
	Seq uint64

	buf *[]float64
}

func newPositionsUpdate(ids []string) *PositionsUpdate {
	buf := coordsPool.Get().(*[]float64)
	return &PositionsUpdate{IDs: ids, Coords: (*buf)[:0], buf: buf}
}

func (u *PositionsUpdate) Len() int {
	return len(u.IDs)
}

func (u *PositionsUpdate) Position(i int) vector.Vector {
	return vector.Vector{u.Coords[2*i], u.Coords[2*i+1]}
}

// ApplyTo writes every position of the snapshot into dst.
func (u *PositionsUpdate) ApplyTo(dst map[string]vector.Vector) {
	for i, id := range u.IDs {
		dst[id] = u.Position(i)
	}
}

func (u *PositionsUpdate) Positions() map[string]vector.Vector {
	positions := make(map[string]vector.Vector, len(u.IDs))
	u.ApplyTo(positions)
	return positions
}

// Release hands the coordinate buffer back for reuse. The update must not be
// used afterwards. Calling Release more than once is harmless.
func (u *PositionsUpdate) Release() {
	if u.buf == nil {
		return
	}
	*u.buf = u.Coords[:0]
	coordsPool.Put(u.buf)
	u.buf = nil
	u.Coords = nil
}
