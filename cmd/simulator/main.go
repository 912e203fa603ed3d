package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/traffic-simulator/core"
	"github.com/signalsfoundry/traffic-simulator/internal/logging"
	"github.com/signalsfoundry/traffic-simulator/internal/observability"
	"github.com/signalsfoundry/traffic-simulator/internal/render"
	"github.com/signalsfoundry/traffic-simulator/model"
	"github.com/signalsfoundry/traffic-simulator/population"
	"github.com/signalsfoundry/traffic-simulator/timectrl"
)

// options collects the parsed command line.
type options struct {
	lanes        int
	agents       int
	dt           float64
	duration     float64
	closure      float64
	seed         int64
	scenarioPath string
	visualize    bool
	realtime     bool
	metricsAddr  string
}

func main() {
	log := logging.NewFromEnv()
	if err := run(context.Background(), os.Args[1:], os.Stdout, log); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Error(context.Background(), "simulation failed", logging.String("error", err.Error()))
		os.Exit(1)
	}
}

func parseFlags(args []string, errOut io.Writer) (options, error) {
	defaults := model.DefaultRoadConfig()

	fs := flag.NewFlagSet("simulator", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var opts options
	fs.IntVar(&opts.lanes, "lanes", defaults.NumLanes, "number of lanes")
	fs.IntVar(&opts.agents, "agents", 100, "number of randomised agents")
	fs.Float64Var(&opts.dt, "dt", defaults.Dt, "tick length in seconds")
	fs.Float64Var(&opts.duration, "duration", defaults.SimDuration, "simulated duration in seconds")
	fs.Float64Var(&opts.closure, "closure", 0, "position in feet where the outermost lane ends (0 disables)")
	fs.Int64Var(&opts.seed, "seed", time.Now().UnixNano(), "random seed for the population")
	fs.StringVar(&opts.scenarioPath, "scenario", "", "path to a YAML scenario file; overrides the road and agent flags")
	fs.BoolVar(&opts.visualize, "visualize", false, "draw the lanes full-screen in the terminal after every tick")
	fs.BoolVar(&opts.realtime, "realtime", false, "pace ticks at one wall-clock dt each")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "HTTP address for Prometheus /metrics (empty disables)")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.agents < 0 {
		return options{}, fmt.Errorf("-agents must not be negative, got %d", opts.agents)
	}
	return opts, nil
}

func run(ctx context.Context, args []string, out io.Writer, log logging.Logger) error {
	opts, err := parseFlags(args, out)
	if err != nil {
		return err
	}

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)

	ctx = logging.ContextWithLogger(ctx, log)
	var worldOpts []core.WorldOption

	if opts.metricsAddr != "" {
		collector, err := observability.NewSimCollector(nil)
		if err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		worldOpts = append(worldOpts, core.WithMetricsRecorder(collector))
		if srv := serveMetrics(opts.metricsAddr, collector, log); srv != nil {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
		}
	}
	if opts.realtime {
		worldOpts = append(worldOpts, core.WithMode(timectrl.RealTime, 0))
	}

	var (
		term   *render.Terminal
		screen tcell.Screen
	)
	closeScreen := func() {
		if screen != nil {
			screen.Fini()
			screen = nil
		}
	}
	defer closeScreen()
	if opts.visualize {
		if screen, err = openScreen(); err != nil {
			return err
		}
		// The road is only known once the world is built; the terminal picks
		// it up before the first tick.
		term = render.NewTerminal(screen, model.RoadConfig{})
		worldOpts = append(worldOpts, core.WithTickListener(term.OnTick))
	}

	world, err := buildWorld(ctx, opts, log, worldOpts)
	if err != nil {
		return err
	}
	if term != nil {
		term.Road = world.Config()
		term.Clock = world.Clock()
	}

	summary, err := world.Run(ctx)
	closeScreen()
	if err != nil {
		return err
	}
	printSummary(out, summary)
	return nil
}

// newScreen opens the terminal used by -visualize.
var newScreen = tcell.NewScreen

func openScreen() (tcell.Screen, error) {
	screen, err := newScreen()
	if err != nil {
		return nil, fmt.Errorf("open terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("init terminal: %w", err)
	}
	return screen, nil
}

// buildWorld creates the world either from -scenario or from the road and
// population flags.
func buildWorld(ctx context.Context, opts options, log logging.Logger, worldOpts []core.WorldOption) (*core.World, error) {
	ctx, span := observability.StartSpan(ctx, "simulator.build_world",
		attribute.String("scenario", opts.scenarioPath),
		attribute.Int64("seed", opts.seed),
	)
	defer span.End()

	if opts.scenarioPath != "" {
		f, err := os.Open(opts.scenarioPath)
		if err != nil {
			return nil, fmt.Errorf("open scenario %q: %w", opts.scenarioPath, err)
		}
		defer f.Close()

		sc, err := core.LoadScenario(f)
		if err != nil {
			return nil, fmt.Errorf("load scenario %q: %w", opts.scenarioPath, err)
		}
		log.Info(ctx, "loaded scenario",
			logging.String("path", opts.scenarioPath),
			logging.Int("explicit_agents", len(sc.Agents)),
			logging.Int("random_agents", sc.RandomAgents),
		)
		return core.NewWorldFromScenario(sc, worldOpts...)
	}

	road := model.DefaultRoadConfig()
	road.NumLanes = opts.lanes
	road.Dt = opts.dt
	road.SimDuration = opts.duration
	road.LaneClosureAt = opts.closure
	if err := road.Validate(); err != nil {
		return nil, fmt.Errorf("road config: %w", err)
	}

	agents, err := population.NewBuilder(road, opts.seed).Random(opts.agents)
	if err != nil {
		return nil, fmt.Errorf("building population: %w", err)
	}
	return core.NewWorld(road, agents, worldOpts...)
}

func printSummary(out io.Writer, s core.RunSummary) {
	fmt.Fprintf(out, "Simulated %.2f s in %d ticks (%s wall clock)\n", s.SimTime, s.Ticks, s.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(out, "Average speed:    %s mph\n", formatStat(s.AverageSpeed))
	fmt.Fprintf(out, "Average distance: %s ft\n", formatStat(s.AverageDistance))
	fmt.Fprintf(out, "Max distance:     %s ft\n", formatStat(s.MaxDistance))
	fmt.Fprintf(out, "Lane changes:     %d (%d forced)\n", s.LaneChanges, s.ForcedMerges)
	fmt.Fprintf(out, "Collisions:       %d\n", s.Collisions)
	for i, n := range s.AgentsPerLane {
		fmt.Fprintf(out, "Lane %d agents:    %d\n", i+1, n)
	}
}

func formatStat(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v)
}

func serveMetrics(addr string, collector *observability.SimCollector, log logging.Logger) *http.Server {
	if collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.String("error", err.Error()))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
