package controller

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/quartercastle/vector"
	"github.com/stretchr/testify/assert"
	"github.com/suxatcode/learngraph-forcelayout/internal/worker"
	"github.com/suxatcode/learngraph-forcelayout/layout"
)

func testLayouter(t *testing.T, simulation layout.SimulationConfig) *ForceSimulationLayouter {
	simulation.AlphaDecay = 0.1
	simulation.AlphaMin = 0.01
	ctx, cancel := context.WithCancel(context.Background())
	l := NewForceSimulationLayouter(ctx, worker.Config{TickInterval: time.Millisecond, EmitEvery: 1, Simulation: simulation}, nil)
	t.Cleanup(func() {
		l.Close()
		cancel()
	})
	return l
}

func waitCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

var testGraph = layout.Graph{
	Bodies: []layout.Body{{ID: "1"}, {ID: "2"}, {ID: "3"}},
	Links:  []layout.Link{{Source: "1", Target: "2"}, {Source: "2", Target: "3"}},
}

func TestForceSimulationLayouter_Reload(t *testing.T) {
	l := testLayouter(t, layout.DefaultSimulationConfig)
	ctx := waitCtx(t)
	assert := assert.New(t)
	assert.Empty(l.GetNodePositions(ctx))
	l.Reload(ctx, testGraph)
	assert.NoError(l.WaitForStable(ctx))
	positions := l.GetNodePositions(ctx)
	assert.Len(positions, 3)
	for id, pos := range positions {
		assert.False(math.IsNaN(pos.X()) || math.IsNaN(pos.Y()), id)
	}
	assert.NotEqual(positions["1"], positions["2"])

	l.Reload(ctx, layout.Graph{Bodies: testGraph.Bodies[:2]})
	assert.NoError(l.WaitForStable(ctx))
	positions = l.GetNodePositions(ctx)
	assert.Len(positions, 2, "positions of removed bodies are dropped")
	assert.Contains(positions, "1")
	assert.Contains(positions, "2")
}

func TestForceSimulationLayouter_Reload_keepsPositions(t *testing.T) {
	static := layout.DefaultSimulationConfig
	static.ManyBodyStrength = 0
	static.LinkStrength = 0
	static.GravityStrength = 0
	l := testLayouter(t, static)
	ctx := waitCtx(t)
	assert := assert.New(t)
	l.Reload(ctx, layout.Graph{Bodies: []layout.Body{{ID: "1", Pos: vector.Vector{5, 5}}, {ID: "2"}}})
	assert.NoError(l.WaitForStable(ctx))
	before := l.GetNodePositions(ctx)
	assert.Equal(vector.Vector{5, 5}, before["1"])

	l.Reload(ctx, layout.Graph{Bodies: []layout.Body{{ID: "1"}, {ID: "2"}, {ID: "3"}}})
	assert.NoError(l.WaitForStable(ctx))
	after := l.GetNodePositions(ctx)
	assert.Len(after, 3)
	assert.Equal(before["1"], after["1"])
	assert.Equal(before["2"], after["2"])
}

func TestForceSimulationLayouter_Touch(t *testing.T) {
	l := testLayouter(t, layout.DefaultSimulationConfig)
	ctx := waitCtx(t)
	assert := assert.New(t)
	l.Reload(ctx, testGraph)
	assert.NoError(l.WaitForStable(ctx))
	target := vector.Vector{200, -50}
	l.Touch(ctx, "1", target)
	assert.NoError(l.WaitForStable(ctx))
	assert.Equal(target, l.GetNodePositions(ctx)["1"], "dragged node is pinned")

	l.Touch(ctx, "", nil)
	assert.NoError(l.WaitForStable(ctx))
	assert.NotEqual(target, l.GetNodePositions(ctx)["1"], "released node follows the forces again")
}

func TestForceSimulationLayouter_WaitForStable(t *testing.T) {
	l := testLayouter(t, layout.DefaultSimulationConfig)
	assert := assert.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(l.WaitForStable(ctx), "nothing to wait for before the first Reload")

	l.Reload(waitCtx(t), layout.Graph{})
	assert.NoError(l.WaitForStable(waitCtx(t)), "an empty graph is stable right away")

	l.Close()
	<-l.worker.Done()
	l.Reload(waitCtx(t), testGraph)
	assert.Error(l.WaitForStable(waitCtx(t)), "closed layouter never stabilizes")
}

func Test_sameIDs(t *testing.T) {
	ids := []string{"a", "b"}
	assert := assert.New(t)
	assert.True(sameIDs(ids, ids))
	assert.True(sameIDs(nil, []string{}))
	assert.False(sameIDs(ids, []string{"a", "b"}), "only the shared slice counts as same")
	assert.False(sameIDs(ids, ids[:1]))
}
