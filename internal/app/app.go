package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/suxatcode/learngraph-forcelayout/internal/controller"
	"github.com/suxatcode/learngraph-forcelayout/internal/worker"
	"github.com/suxatcode/learngraph-forcelayout/layout"
	"github.com/suxatcode/learngraph-forcelayout/middleware"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	Production bool `env:"PRODUCTION" envDefault:"false"`
	// Levels are {trace, debug, info, warn, error, fatal, panic}.
	// See github.com/rs/zerolog@v1.19.0/log.go for possible values.
	LogLevel string `env:"LOGLEVEL" envDefault:"debug"`
	// period of the simulation ticker
	TickInterval time.Duration `env:"TICK_INTERVAL" envDefault:"16ms"`
	// publish positions every n-th tick only
	EmitEvery int `env:"EMIT_EVERY" envDefault:"1"`
	// Timeout bounds a layout run, 0 waits until the layout converged.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"60s"`
	// MetricsAddr enables the prometheus endpoint /metrics if set, e.g. ":9090".
	MetricsAddr string `env:"METRICS_ADDR" envDefault:""`
	// HTTP timeouts (read and write) of the metrics endpoint
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"5s"`
	// width and height of the debug image
	PNGSize int `env:"PNG_SIZE" envDefault:"1024"`
}

func GetEnvConfig() Config {
	conf := Config{}
	if err := env.Parse(&conf); err != nil {
		log.Error().Msgf("failed to parse config from environment: %v", err)
	}
	return conf
}

// WorkerConfig combines the process settings with the simulation parameters.
func (c Config) WorkerConfig(simulation layout.SimulationConfig) worker.Config {
	return worker.Config{
		TickInterval: c.TickInterval,
		EmitEvery:    c.EmitEvery,
		Simulation:   simulation,
	}
}

// SetupLogging configures the global zerolog logger.
func SetupLogging(conf Config) {
	level, err := zerolog.ParseLevel(conf.LogLevel)
	if err != nil {
		println("failed to parse LogLevel: '" + conf.LogLevel + "', setting to debug")
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	if !conf.Production {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// Run reads a graph as json from in, lays it out with l and writes the graph
// with positions to out. If png is not nil, a picture of the layout is
// written to it. The metrics handler is served on conf.MetricsAddr while the
// layout runs.
func Run(ctx context.Context, conf Config, l controller.Layouter, metrics http.Handler, in io.Reader, out, png io.Writer) error {
	g, ctx := errgroup.WithContext(ctx)
	layoutDone := make(chan struct{})
	if conf.MetricsAddr != "" && metrics != nil {
		g.Go(func() error {
			return serveMetrics(ctx, conf, metrics, layoutDone)
		})
	}
	g.Go(func() error {
		defer close(layoutDone)
		return layoutGraph(ctx, conf, l, in, out, png)
	})
	return g.Wait()
}

func layoutGraph(ctx context.Context, conf Config, l controller.Layouter, in io.Reader, out, png io.Writer) error {
	graph := layout.Graph{}
	if err := json.NewDecoder(in).Decode(&graph); err != nil {
		return errors.Wrap(err, "failed to decode graph")
	}
	if conf.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, conf.Timeout)
		defer cancel()
	}
	startTime := time.Now()
	l.Reload(ctx, graph)
	if err := l.WaitForStable(ctx); err != nil {
		return errors.Wrap(err, "graph layout computation failed")
	}
	positions := l.GetNodePositions(ctx)
	for i := range graph.Bodies {
		if pos, exists := positions[graph.Bodies[i].ID]; exists {
			graph.Bodies[i].Pos = pos
		}
	}
	slices.SortFunc(graph.Bodies, func(a, b layout.Body) int {
		return strings.Compare(a.ID, b.ID)
	})
	log.Ctx(ctx).Info().Msgf(
		"graph layout computation finished: {bodies: %d, links: %d, time: %d ms}",
		len(graph.Bodies),
		len(graph.Links),
		time.Since(startTime).Milliseconds(),
	)
	if err := json.NewEncoder(out).Encode(&graph); err != nil {
		return errors.Wrap(err, "failed to encode graph")
	}
	if png != nil {
		if err := layout.Draw(png, positions, graph.Links, conf.PNGSize, conf.PNGSize, false); err != nil {
			return errors.Wrap(err, "failed to draw layout")
		}
	}
	return nil
}

func serveMetrics(ctx context.Context, conf Config, metrics http.Handler, done <-chan struct{}) error {
	handler := http.NewServeMux()
	handler.Handle("/metrics", middleware.AddLogging(metrics))
	server := http.Server{
		Addr:         conf.MetricsAddr,
		Handler:      handler,
		ReadTimeout:  conf.HTTPTimeout,
		WriteTimeout: conf.HTTPTimeout,
	}
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.HTTPTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Ctx(ctx).Error().Msgf("metrics server shutdown: %v", err)
		}
	}()
	log.Ctx(ctx).Info().Msgf("serving metrics on http://%s/metrics", conf.MetricsAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "metrics server failed")
	}
	return nil
}
