package controller

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/quartercastle/vector"
	"github.com/rs/zerolog/log"
	"github.com/suxatcode/learngraph-forcelayout/internal/worker"
	"github.com/suxatcode/learngraph-forcelayout/layout"
)

// Layouter is an interface for integration of a continuously running graph
// embedding into a consumer that needs node positions.
//
//go:generate mockgen -destination layouter_mock.go -package controller . Layouter
type Layouter interface {
	// Reload replaces the embedded graph. Bodies without a position keep the
	// one they had in the previous layout, if any.
	Reload(ctx context.Context, graph layout.Graph)
	// Touch drags the node id to pos, see worker.TouchNode.
	Touch(ctx context.Context, id string, pos vector.Vector)
	// GetNodePositions returns the most recent positions. This is a quick
	// call, it does not wait for the layout to settle.
	GetNodePositions(ctx context.Context) map[string]vector.Vector
	// WaitForStable blocks until the layout converged after the last Reload
	// or Touch.
	WaitForStable(ctx context.Context) error
	Close()
}

// NewLayouter returns an implementation of the Layouter interface.
func NewLayouter(ctx context.Context, conf worker.Config) Layouter {
	return NewForceSimulationLayouter(ctx, conf, nil)
}

// implements Layouter
// The simulation runs on a worker, every snapshot it publishes is copied
// into positions.
type ForceSimulationLayouter struct {
	worker *worker.Worker

	mu        sync.Mutex
	positions map[string]vector.Vector
	ids       []string
	// number of commands sent to the worker
	sent uint64
	// closed once a converged snapshot reflecting every sent command arrived
	stable       chan struct{}
	stableClosed bool
}

// NewForceSimulationLayouter starts a worker that lives until Close is
// called or ctx is done. metrics may be nil.
func NewForceSimulationLayouter(ctx context.Context, conf worker.Config, metrics *worker.Metrics) *ForceSimulationLayouter {
	l := &ForceSimulationLayouter{
		worker:    worker.New(conf, metrics),
		positions: map[string]vector.Vector{},
		stable:    make(chan struct{}),
	}
	go l.worker.Run(ctx)
	go l.consume(ctx)
	return l
}

func (l *ForceSimulationLayouter) Metrics() *worker.Metrics {
	return l.worker.Metrics()
}

func (l *ForceSimulationLayouter) consume(ctx context.Context) {
	for update := range l.worker.Results() {
		l.apply(update)
		update.Release()
	}
	log.Ctx(ctx).Debug().Msg("layouter stopped receiving positions")
}

func (l *ForceSimulationLayouter) apply(update *worker.PositionsUpdate) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !sameIDs(l.ids, update.IDs) {
		// topology changed, drop positions of removed bodies
		l.positions = make(map[string]vector.Vector, update.Len())
		l.ids = update.IDs
	}
	update.ApplyTo(l.positions)
	if update.Converged && update.Seq >= l.sent && !l.stableClosed {
		l.stableClosed = true
		close(l.stable)
	}
}

// sameIDs reports whether a and b are the same shared ids slice.
func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	return len(a) == 0 || &a[0] == &b[0]
}

func (l *ForceSimulationLayouter) send(ctx context.Context, cmd worker.Command) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.worker.Send(cmd) {
		log.Ctx(ctx).Debug().Msgf("layouter closed, dropping %s", cmd.Name())
		return
	}
	l.sent++
	if l.stableClosed {
		l.stableClosed = false
		l.stable = make(chan struct{})
	}
}

func (l *ForceSimulationLayouter) Reload(ctx context.Context, graph layout.Graph) {
	l.mu.Lock()
	bodies := make([]layout.Body, len(graph.Bodies))
	copy(bodies, graph.Bodies)
	for i := range bodies {
		if len(bodies[i].Pos) != 0 {
			continue
		}
		if pos, exists := l.positions[bodies[i].ID]; exists {
			bodies[i].Pos = vector.Vector{pos[0], pos[1]}
		}
	}
	l.mu.Unlock()
	links := append([]layout.Link(nil), graph.Links...)
	log.Ctx(ctx).Debug().Msgf("reloading layout with %d bodies, %d links", len(bodies), len(links))
	l.send(ctx, worker.Init{Bodies: bodies, Links: links})
}

func (l *ForceSimulationLayouter) Touch(ctx context.Context, id string, pos vector.Vector) {
	l.send(ctx, worker.TouchNode{ID: id, Position: pos})
}

func (l *ForceSimulationLayouter) GetNodePositions(ctx context.Context) map[string]vector.Vector {
	l.mu.Lock()
	defer l.mu.Unlock()
	positions := make(map[string]vector.Vector, len(l.positions))
	for id, pos := range l.positions {
		positions[id] = vector.Vector{pos[0], pos[1]}
	}
	return positions
}

func (l *ForceSimulationLayouter) WaitForStable(ctx context.Context) error {
	select {
	case <-l.worker.Done():
		return errors.New("layouter closed")
	default:
	}
	l.mu.Lock()
	stable := l.stable
	l.mu.Unlock()
	select {
	case <-stable:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "layout did not stabilize")
	case <-l.worker.Done():
		return errors.New("layouter closed before layout stabilized")
	}
}

// Close stops the worker, positions stay readable.
func (l *ForceSimulationLayouter) Close() {
	l.worker.Close()
}
