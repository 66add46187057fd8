// Package worker runs a layout.ForceSimulation on a dedicated goroutine. The
// consumer talks to it only through Send and Results: commands are queued
// without blocking, position snapshots are handed back on a channel that
// always holds the most recent one.
package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/suxatcode/learngraph-forcelayout/layout"
)

type State int32

const (
	// Idle: no bodies, converged, stopped or not yet started. No ticker runs.
	Idle State = iota
	Running
	// Dragging is Running with at least one pinned body.
	Dragging
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Dragging:
		return "dragging"
	case Closed:
		return "closed"
	}
	return "unknown"
}

type Config struct {
	// TickInterval is the period of the simulation ticker.
	TickInterval time.Duration
	// EmitEvery N-th tick a PositionsUpdate is published. The tick on which
	// the simulation converges is always published.
	EmitEvery int
	// Simulation is used until an Init carries its own config.
	Simulation layout.SimulationConfig
}

var DefaultConfig = Config{
	TickInterval: 16 * time.Millisecond,
	EmitEvery:    1,
	Simulation:   layout.DefaultSimulationConfig,
}

// Worker owns a force simulation. All simulation state is only touched by
// the goroutine executing Run.
type Worker struct {
	conf    Config
	metrics *Metrics

	mu      sync.Mutex
	pending []Command
	closed  bool
	// notify has capacity 1, a pending signal is enough to drain the queue
	notify chan struct{}
	quit   chan struct{}

	results chan *PositionsUpdate
	done    chan struct{}
	state   atomic.Int32
	dropped atomic.Uint64

	// owned by Run
	fs         *layout.ForceSimulation
	active     bool
	ids        []string
	idsVersion uint64
	sinceEmit  int
	applied    uint64
}

// New returns a worker that does nothing until Run is called. metrics may be
// nil.
func New(conf Config, metrics *Metrics) *Worker {
	if conf.TickInterval <= 0 {
		conf.TickInterval = DefaultConfig.TickInterval
	}
	if conf.EmitEvery < 1 {
		conf.EmitEvery = 1
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	w := &Worker{
		conf:    conf,
		metrics: metrics,
		notify:  make(chan struct{}, 1),
		quit:    make(chan struct{}),
		results: make(chan *PositionsUpdate, 1),
		done:    make(chan struct{}),
		fs:      layout.NewForceSimulation(conf.Simulation),
	}
	w.state.Store(int32(Idle))
	return w
}

// Send queues cmd for the worker and returns immediately. It reports false
// if the worker is closed, the command is then dropped.
func (w *Worker) Send(cmd Command) bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false
	}
	w.pending = append(w.pending, cmd)
	w.mu.Unlock()
	select {
	case w.notify <- struct{}{}:
	default:
		// already signalled
	}
	return true
}

// Results delivers position snapshots. An unreceived snapshot is replaced by
// a newer one. The channel is closed once the worker has shut down.
func (w *Worker) Results() <-chan *PositionsUpdate {
	return w.results
}

func (w *Worker) State() State {
	return State(w.state.Load())
}

// Dropped returns the number of snapshots that were replaced before the
// consumer received them.
func (w *Worker) Dropped() uint64 {
	return w.dropped.Load()
}

func (w *Worker) Metrics() *Metrics {
	return w.metrics
}

// Done is closed after Run returned.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Close stops the worker. Commands sent afterwards are ignored. Close does
// not wait for Run to return, use Done for that.
func (w *Worker) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	w.pending = nil
	close(w.quit)
}

// Run processes commands and ticks the simulation until Close is called or
// ctx is done. Run must be called at most once.
func (w *Worker) Run(ctx context.Context) {
	logger := log.Ctx(ctx)
	logger.Info().Msgf("layout worker started, tick interval %v, emitting every %d tick(s)", w.conf.TickInterval, w.conf.EmitEvery)
	ticker := time.NewTicker(w.conf.TickInterval)
	ticker.Stop()
	ticking := false
	defer func() {
		ticker.Stop()
		w.teardown()
		logger.Info().Msg("layout worker stopped")
	}()
	for {
		var tick <-chan time.Time
		if ticking {
			tick = ticker.C
		}
		select {
		case <-ctx.Done():
			return
		case <-w.quit:
			return
		case <-w.notify:
			w.processCommands(ctx)
			if w.updateState() == Idle {
				// no tick follows, publish the outcome of the commands now
				w.emit()
			}
		case <-tick:
			w.step(ctx)
		}
		state := w.updateState()
		if shouldTick := state == Running || state == Dragging; shouldTick != ticking {
			ticking = shouldTick
			if ticking {
				ticker.Reset(w.conf.TickInterval)
				logger.Debug().Msgf("layout worker %s, alpha %.4f", state, w.fs.Alpha())
			} else {
				ticker.Stop()
				logger.Debug().Msgf("layout worker idle after %d ticks, alpha %.4f", w.fs.Ticks(), w.fs.Alpha())
			}
		}
	}
}

func (w *Worker) teardown() {
	w.mu.Lock()
	w.closed = true
	w.pending = nil
	w.mu.Unlock()
	w.state.Store(int32(Closed))
	// only Run publishes, nobody else can send on results anymore
	close(w.results)
	close(w.done)
}

func (w *Worker) processCommands(ctx context.Context) {
	w.mu.Lock()
	commands := w.pending
	w.pending = nil
	w.mu.Unlock()
	for _, cmd := range commands {
		w.apply(ctx, cmd)
	}
	w.metrics.Bodies.Set(float64(w.fs.Len()))
	w.metrics.Links.Set(float64(w.fs.LinkCount()))
	w.metrics.Alpha.Set(w.fs.Alpha())
}

func (w *Worker) apply(ctx context.Context, cmd Command) {
	logger := log.Ctx(ctx)
	w.applied++
	w.metrics.CommandsTotal.WithLabelValues(cmd.Name()).Inc()
	switch cmd := cmd.(type) {
	case Init:
		conf := w.fs.Config()
		if cmd.Config != nil {
			conf = *cmd.Config
		}
		logUnnamed(ctx, cmd.Name(), cmd.Bodies)
		if err := w.fs.Init(cmd.Bodies, cmd.Links, conf); err != nil {
			w.metrics.ConfigsRejected.Inc()
			logger.Error().Msgf("init: %v, keeping previous config", err)
		}
		w.active = true
		w.sinceEmit = 0
		logger.Debug().Msgf("init: %d bodies, %d links", w.fs.Len(), w.fs.LinkCount())
	case Start:
		w.active = true
	case Stop:
		w.active = false
	case UpdateNodes:
		logUnnamed(ctx, cmd.Name(), cmd.Bodies)
		w.fs.UpsertBodies(cmd.Bodies)
		w.active = true
	case UpdateLinks:
		w.fs.SetLinks(cmd.Links)
		w.active = true
	case RemoveNode:
		if !w.fs.RemoveBody(cmd.ID) {
			logger.Debug().Msgf("removeNode: unknown body '%s'", cmd.ID)
			return
		}
		w.active = true
	case TouchNode:
		if !w.fs.Touch(cmd.ID, cmd.Position) {
			if cmd.ID != "" {
				logger.Debug().Msgf("touchNode: unknown body '%s'", cmd.ID)
			}
			return
		}
		w.active = true
	case Reheat:
		w.fs.Reheat()
		w.active = true
	default:
		logger.Debug().Msgf("ignoring unknown command %T", cmd)
	}
}

// logUnnamed reports bodies without id, the simulation skips them.
func logUnnamed(ctx context.Context, command string, bodies []layout.Body) {
	for _, b := range bodies {
		if b.ID == "" {
			log.Ctx(ctx).Debug().Msgf("%s: ignoring body without id", command)
		}
	}
}

func (w *Worker) updateState() State {
	state := Running
	switch {
	case !w.active || w.fs.Len() == 0 || w.fs.Converged():
		state = Idle
	case w.fs.Dragging():
		state = Dragging
	}
	w.state.Store(int32(state))
	return state
}

func (w *Worker) step(ctx context.Context) {
	start := time.Now()
	if !w.fs.Tick() {
		return
	}
	w.metrics.TickDuration.Observe(time.Since(start).Seconds())
	w.metrics.TicksTotal.Inc()
	w.metrics.Alpha.Set(w.fs.Alpha())
	converged := w.fs.Converged()
	if converged {
		w.metrics.ConvergenceTotal.Inc()
		log.Ctx(ctx).Debug().Msgf("layout converged after %d ticks", w.fs.Ticks())
	}
	w.sinceEmit++
	if w.sinceEmit >= w.conf.EmitEvery || converged {
		w.sinceEmit = 0
		w.emit()
	}
}

// emit packs the current positions and publishes them, replacing a snapshot
// the consumer did not pick up yet.
func (w *Worker) emit() {
	if w.ids == nil || w.idsVersion != w.fs.Version() {
		w.ids = w.fs.IDs()
		w.idsVersion = w.fs.Version()
	}
	update := newPositionsUpdate(w.ids)
	update.Coords = w.fs.AppendCoords(update.Coords)
	update.Tick = w.fs.Ticks()
	update.Alpha = w.fs.Alpha()
	update.Converged = w.fs.Converged() || w.fs.Len() == 0
	update.Seq = w.applied
	w.metrics.UpdatesEmitted.Inc()
	select {
	case w.results <- update:
		return
	default:
	}
	select {
	case stale := <-w.results:
		stale.Release()
		w.dropped.Add(1)
		w.metrics.UpdatesDropped.Inc()
	default:
		// consumer took it in the meantime
	}
	// the single slot is free now, only Run sends
	w.results <- update
}
