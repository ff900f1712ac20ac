package command

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/joeycumines/btrun/internal/behavior"
	"github.com/joeycumines/btrun/internal/config"
	"github.com/joeycumines/btrun/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// RunCommand builds a tree and ticks it until it completes.
type RunCommand struct {
	*BaseCommand
	config *config.Config

	tickInterval time.Duration
	maxTicks     int
	treeID       string
	print        bool
	observe      bool
	logLevel     string
	logFile      string
	metricsAddr  string
}

// NewRunCommand creates a new run command.
func NewRunCommand(cfg *config.Config) *RunCommand {
	return &RunCommand{
		BaseCommand: NewBaseCommand(
			"run",
			"Build a behavior tree and tick it until it completes",
			"run [options] [file]",
		),
		config: cfg,
	}
}

// SetupFlags configures the flags for the run command.
func (c *RunCommand) SetupFlags(fs *flag.FlagSet) {
	fs.DurationVar(&c.tickInterval, "tick-interval", 0, "Longest wait between ticks while Running (default from config tick.interval)")
	fs.IntVar(&c.maxTicks, "max-ticks", 0, "Fail the run after this many ticks (default from config tick.max)")
	fs.StringVar(&c.treeID, "tree", "", "Tree ID to run instead of the main tree")
	fs.BoolVar(&c.print, "print", false, "Print the tree before running it")
	fs.BoolVar(&c.observe, "observe", false, "Log every node status change")
	fs.StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn, error (default from config log.level)")
	fs.StringVar(&c.logFile, "log-file", "", "Also write JSON logs to this file")
	fs.StringVar(&c.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")
}

// Execute runs the embedded tutorial tree, or the tree file in args.
func (c *RunCommand) Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	path, err := singlePath(args)
	if err != nil {
		return err
	}

	schema := config.DefaultSchema()
	s, err := schema.ResolveSettings(c.config, c.Name())
	if err != nil {
		return err
	}
	if c.tickInterval != 0 {
		s.TickInterval = c.tickInterval
	}
	if c.maxTicks != 0 {
		if c.maxTicks < 0 {
			return fmt.Errorf("-max-ticks must not be negative")
		}
		s.MaxTicks = c.maxTicks
	}
	if c.metricsAddr != "" {
		s.MetricsAddr = c.metricsAddr
	}
	treeID := c.treeID
	if treeID == "" {
		treeID = schema.ResolveCommand(c.config, c.Name(), "tree")
	}

	logger, err := resolveLogger(c.logFile, c.logLevel, s, stderr)
	if err != nil {
		return err
	}
	defer logger.Close()

	f, err := newFactory(s, logger.Logger, stdout)
	if err != nil {
		return err
	}
	tree, err := loadTree(f, path, treeID, stdout)
	if err != nil {
		return err
	}

	if c.print || schema.ResolveBool(c.config, c.Name(), "print") {
		if err := tree.Print(stdout); err != nil {
			return err
		}
	}
	if c.observe || schema.ResolveBool(c.config, c.Name(), "observe") {
		tree.AddObserver(behavior.NewLogObserver(logger.Logger, slog.LevelInfo))
	}

	var collector *metrics.Collector
	if s.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		collector, err = metrics.NewCollector(reg, s.MetricsNamespace)
		if err != nil {
			return err
		}
		tree.AddObserver(collector)

		serveCtx, stop := context.WithCancel(ctx)
		served := make(chan error, 1)
		go func() { served <- metrics.Serve(serveCtx, s.MetricsAddr, reg, logger.Logger) }()
		defer func() {
			stop()
			if err := <-served; err != nil {
				logger.Warn("metrics server failed", "error", err)
			}
		}()
	}

	logger.Debug("running tree",
		"tree", tree.ID(),
		"uid", tree.UID().String(),
		"nodes", len(tree.Nodes()),
		"interval", s.TickInterval,
		"max_ticks", s.MaxTicks,
	)

	start := time.Now()
	status, err := tree.Run(ctx, behavior.RunOptions{Interval: s.TickInterval, MaxTicks: s.MaxTicks})
	elapsed := time.Since(start)
	if collector != nil {
		collector.ObserveRun(tree.ID(), status, err, elapsed)
	}
	if err != nil {
		return fmt.Errorf("tree %s: %w", tree.ID(), err)
	}

	logger.Debug("tree finished",
		"tree", tree.ID(),
		"status", behavior.StatusString(status),
		"elapsed", elapsed,
	)
	return nil
}
