package worker

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/quartercastle/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suxatcode/learngraph-forcelayout/layout"
)

var fastCooling = func() layout.SimulationConfig {
	conf := layout.DefaultSimulationConfig
	conf.AlphaDecay = 0.1
	conf.AlphaMin = 0.01
	return conf
}()

var (
	testBodies = []layout.Body{
		{ID: "A", Pos: vector.Vector{0, 0}},
		{ID: "B", Pos: vector.Vector{10, 0}},
		{ID: "C", Pos: vector.Vector{0, 10}},
	}
	testLinks = []layout.Link{{Source: "A", Target: "B"}, {Source: "B", Target: "C"}}
)

func startWorker(t *testing.T, conf Config) *Worker {
	w := New(conf, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-w.Done()
	})
	return w
}

func testConfig(simulation layout.SimulationConfig) Config {
	return Config{TickInterval: time.Millisecond, EmitEvery: 1, Simulation: simulation}
}

func waitConverged(t *testing.T, w *Worker) *PositionsUpdate {
	timeout := time.After(5 * time.Second)
	for {
		select {
		case update, ok := <-w.Results():
			require.True(t, ok, "results closed before convergence")
			if update.Converged {
				return update
			}
			update.Release()
		case <-timeout:
			t.Fatal("simulation did not converge")
			return nil
		}
	}
}

func TestWorker_Init(t *testing.T) {
	w := startWorker(t, testConfig(fastCooling))
	assert := assert.New(t)
	assert.Equal(Idle, w.State())
	assert.True(w.Send(Init{Bodies: testBodies, Links: testLinks}))
	update := waitConverged(t, w)
	defer update.Release()
	assert.Equal([]string{"A", "B", "C"}, update.IDs)
	assert.Len(update.Coords, 6)
	assert.Equal(uint64(layout.TicksUntilConverged(fastCooling)), update.Tick)
	assert.Less(update.Alpha, fastCooling.AlphaMin)
	assert.Eventually(func() bool { return w.State() == Idle }, time.Second, time.Millisecond)
	assert.Equal(1.0, testutil.ToFloat64(w.Metrics().CommandsTotal.WithLabelValues("init")))
	assert.Equal(3.0, testutil.ToFloat64(w.Metrics().Bodies))
	assert.Equal(2.0, testutil.ToFloat64(w.Metrics().Links))
	assert.Equal(float64(update.Tick), testutil.ToFloat64(w.Metrics().TicksTotal))
	assert.Equal(1.0, testutil.ToFloat64(w.Metrics().ConvergenceTotal))
}

func TestWorker_invalidConfig(t *testing.T) {
	w := startWorker(t, testConfig(fastCooling))
	invalid := fastCooling
	invalid.Theta = -1
	w.Send(Init{Bodies: testBodies, Links: testLinks, Config: &invalid})
	update := waitConverged(t, w)
	defer update.Release()
	assert := assert.New(t)
	assert.Len(update.IDs, 3, "topology is applied with the previous config")
	assert.Equal(uint64(layout.TicksUntilConverged(fastCooling)), update.Tick)
	assert.Equal(1.0, testutil.ToFloat64(w.Metrics().ConfigsRejected))
}

func TestWorker_latestWins(t *testing.T) {
	w := startWorker(t, testConfig(fastCooling))
	w.Send(Init{Bodies: testBodies, Links: testLinks})
	assert := assert.New(t)
	metrics := w.Metrics()
	assert.Eventually(func() bool {
		return w.State() == Idle && testutil.ToFloat64(metrics.TicksTotal) > 0
	}, 5*time.Second, time.Millisecond)
	select {
	case update := <-w.Results():
		assert.True(update.Converged, "only the most recent snapshot is kept")
		update.Release()
	default:
		t.Fatal("no snapshot pending")
	}
	ticks := uint64(testutil.ToFloat64(metrics.TicksTotal))
	assert.Equal(ticks-1, w.Dropped())
	assert.Equal(float64(ticks-1), testutil.ToFloat64(metrics.UpdatesDropped))
	assert.Equal(float64(ticks), testutil.ToFloat64(metrics.UpdatesEmitted))
}

func TestWorker_EmitEvery(t *testing.T) {
	conf := testConfig(fastCooling)
	conf.EmitEvery = 5
	w := startWorker(t, conf)
	w.Send(Init{Bodies: testBodies, Links: testLinks})
	received := 0
	var update *PositionsUpdate
	timeout := time.After(5 * time.Second)
	for update == nil {
		select {
		case u := <-w.Results():
			received++
			if u.Converged {
				update = u
				continue
			}
			assert.Zero(t, u.Tick%5, "intermediate snapshots only every 5th tick")
			u.Release()
		case <-timeout:
			t.Fatal("simulation did not converge")
		}
	}
	defer update.Release()
	ticks := update.Tick
	expected := ticks / 5
	if ticks%5 != 0 {
		expected++
	}
	assert := assert.New(t)
	assert.Equal(float64(expected), testutil.ToFloat64(w.Metrics().UpdatesEmitted))
	assert.LessOrEqual(uint64(received), expected)
}

func TestWorker_StopStart(t *testing.T) {
	w := startWorker(t, testConfig(layout.DefaultSimulationConfig))
	w.Send(Init{Bodies: testBodies, Links: testLinks})
	assert := assert.New(t)
	metrics := w.Metrics()
	assert.Eventually(func() bool { return testutil.ToFloat64(metrics.TicksTotal) > 0 }, time.Second, time.Millisecond)
	w.Send(Stop{})
	assert.Eventually(func() bool { return w.State() == Idle }, time.Second, time.Millisecond)
	stopped := testutil.ToFloat64(metrics.TicksTotal)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(stopped, testutil.ToFloat64(metrics.TicksTotal), "no ticks while stopped")

	w.Send(Start{})
	assert.Eventually(func() bool { return testutil.ToFloat64(metrics.TicksTotal) > stopped }, time.Second, time.Millisecond)
}

func TestWorker_TouchNode(t *testing.T) {
	w := startWorker(t, testConfig(layout.DefaultSimulationConfig))
	target := vector.Vector{100, 100}
	w.Send(Init{Bodies: testBodies, Links: testLinks})
	w.Send(TouchNode{ID: "A", Position: target})
	assert := assert.New(t)
	assert.Eventually(func() bool { return w.State() == Dragging }, time.Second, time.Millisecond)
	select {
	case stale := <-w.Results():
		// may predate the touch
		stale.Release()
	default:
	}
	for i := 0; i < 3; i++ {
		update := <-w.Results()
		assert.Equal(target, update.Positions()["A"], "dragged body is pinned")
		update.Release()
	}
	w.Send(TouchNode{})
	assert.Eventually(func() bool { return w.State() == Running }, time.Second, time.Millisecond)
}

func TestWorker_topologyCommands(t *testing.T) {
	w := startWorker(t, testConfig(fastCooling))
	w.Send(Init{Bodies: testBodies, Links: testLinks})
	waitConverged(t, w).Release()

	w.Send(UpdateNodes{Bodies: []layout.Body{{ID: "D"}}})
	w.Send(UpdateLinks{Links: []layout.Link{{Source: "A", Target: "D"}}})
	w.Send(RemoveNode{ID: "B"})
	w.Send(RemoveNode{ID: "unknown"})
	update := waitConverged(t, w)
	defer update.Release()
	assert := assert.New(t)
	assert.ElementsMatch([]string{"A", "C", "D"}, update.IDs)
	positions := update.Positions()
	assert.Len(positions, 3)
	assert.Equal(1.0, testutil.ToFloat64(w.Metrics().Links))
	assert.Equal(2.0, testutil.ToFloat64(w.Metrics().CommandsTotal.WithLabelValues("removeNode")))

	w.Send(Reheat{})
	update2 := waitConverged(t, w)
	defer update2.Release()
	assert.Greater(update2.Tick, uint64(0))
}

func TestWorker_bodiesWithoutID(t *testing.T) {
	w := startWorker(t, testConfig(fastCooling))
	w.Send(Init{Bodies: append([]layout.Body{{ID: ""}}, testBodies...)})
	w.Send(UpdateNodes{Bodies: []layout.Body{{ID: "", Pos: vector.Vector{1, 1}}}})
	update := waitConverged(t, w)
	defer update.Release()
	assert := assert.New(t)
	assert.Equal([]string{"A", "B", "C"}, update.IDs)
	assert.Equal(3.0, testutil.ToFloat64(w.Metrics().Bodies))
}

func TestWorker_Close(t *testing.T) {
	w := New(testConfig(fastCooling), nil)
	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()
	assert := assert.New(t)
	assert.True(w.Send(Init{Bodies: testBodies}))
	w.Close()
	w.Close()
	<-done
	assert.Equal(Closed, w.State())
	assert.False(w.Send(Reheat{}), "sending after close is a no-op")
	assert.Eventually(func() bool {
		_, open := <-w.Results()
		return !open
	}, time.Second, time.Millisecond, "results are closed on teardown")
}

func TestWorker_contextCancel(t *testing.T) {
	w := New(testConfig(fastCooling), nil)
	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	cancel()
	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on cancel")
	}
	assert.False(t, w.Send(Start{}))
}

func TestPositionsUpdate(t *testing.T) {
	update := newPositionsUpdate([]string{"A", "B"})
	update.Coords = append(update.Coords, 1, 2, 3, 4)
	assert := assert.New(t)
	assert.Equal(2, update.Len())
	assert.Equal(vector.Vector{3, 4}, update.Position(1))
	positions := map[string]vector.Vector{"C": {5, 6}}
	update.ApplyTo(positions)
	assert.Equal(map[string]vector.Vector{"A": {1, 2}, "B": {3, 4}, "C": {5, 6}}, positions)
	update.Release()
	assert.Nil(update.Coords)
	update.Release()
}

func TestState_String(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("idle", Idle.String())
	assert.Equal("running", Running.String())
	assert.Equal("dragging", Dragging.String())
	assert.Equal("closed", Closed.String())
}

func TestWorker_idleCommandsPublish(t *testing.T) {
	w := startWorker(t, testConfig(fastCooling))
	assert := assert.New(t)
	w.Send(Start{})
	update := <-w.Results()
	assert.True(update.Converged, "an empty simulation has nothing to move")
	assert.Equal(uint64(1), update.Seq)
	assert.Equal(0, update.Len())
	update.Release()

	w.Send(Init{Bodies: testBodies, Links: testLinks})
	update = waitConverged(t, w)
	assert.Equal(uint64(2), update.Seq)
	update.Release()

	w.Send(RemoveNode{ID: "unknown"})
	update = <-w.Results()
	assert.True(update.Converged)
	assert.Equal(uint64(3), update.Seq)
	assert.Equal(3, update.Len())
	update.Release()
}
