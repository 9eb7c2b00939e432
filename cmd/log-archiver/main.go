package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/raoulx24/log-archiver/internal/archive"
	"github.com/raoulx24/log-archiver/internal/config"
	"github.com/raoulx24/log-archiver/internal/logging"
	"github.com/raoulx24/log-archiver/internal/metrics"
	"github.com/raoulx24/log-archiver/internal/naming"
	"github.com/raoulx24/log-archiver/internal/rotate"
	"github.com/raoulx24/log-archiver/internal/schedule"
	"github.com/raoulx24/log-archiver/internal/watcher"
	"github.com/raoulx24/log-archiver/internal/worker"
)

var version = "dev"

var timeNow = time.Now

func main() {
	if err := Run(context.Background(), os.Args, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "log-archiver:", err)
		os.Exit(1)
	}
}

func Run(ctx context.Context, args []string, out io.Writer) error {
	var (
		cfgPath string
		verbose bool
		cfg     *config.Config
		logger  logging.Logger
		syncLog func() error
	)

	configFlag := &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "load configuration from `FILE`",
		EnvVars:     []string{"LOG_ARCHIVER_CONFIG"},
		Value:       "config.yaml",
		Destination: &cfgPath,
	}
	verboseFlag := &cli.BoolFlag{
		Name:        "verbose",
		Usage:       "verbose output (overrides logging.level with debug)",
		EnvVars:     []string{"LOG_ARCHIVER_VERBOSE"},
		Destination: &verbose,
	}

	before := func(_ *cli.Context) error {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
		if verbose {
			cfg.Logging.Level = "debug"
		}

		logger, syncLog, err = logging.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("setting up logging: %w", err)
		}
		for _, w := range cfg.Warnings() {
			logger.Warn(w)
		}
		return nil
	}

	var stdin bool
	stdinFlag := &cli.BoolFlag{
		Name:        "stdin",
		Usage:       "write standard input to the rotating active log file",
		Destination: &stdin,
	}

	next := 5
	nextFlag := &cli.IntFlag{
		Name:        "next",
		Usage:       "print the next `N` scheduled sweeps",
		Value:       next,
		Destination: &next,
	}

	app := &cli.App{
		Name:    "log-archiver",
		Usage:   "rotate, compress and prune log files",
		Version: version,
		Writer:  out,
		Flags:   []cli.Flag{configFlag, verboseFlag},
		Suggest: true,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "run scheduled sweeps until interrupted",
				Flags:  []cli.Flag{stdinFlag},
				Before: before,
				Action: func(_ *cli.Context) error {
					return runDaemon(ctx, cfg, logger, stdin)
				},
			},
			{
				Name:   "sweep",
				Usage:  "run one sweep and exit",
				Before: before,
				Action: func(c *cli.Context) error {
					return runSweep(ctx, c.App.Writer, cfg, logger)
				},
			},
			{
				Name:   "validate",
				Usage:  "check the configuration and show upcoming sweeps",
				Flags:  []cli.Flag{nextFlag},
				Before: before,
				Action: func(c *cli.Context) error {
					return runValidate(c.App.Writer, cfg, next)
				},
			},
		},
	}

	err := app.Run(args)
	if syncLog != nil {
		_ = syncLog()
	}
	return err
}

func newEngine(cfg *config.Config, logger logging.Logger, m *metrics.Registry) (*archive.Engine, error) {
	opts := []archive.Option{
		archive.WithLogger(logger.With("component", "archive")),
		archive.WithMetrics(m),
	}
	if cfg.Archive.SerializeSweeps {
		opts = append(opts, archive.WithSerializedSweeps())
	}
	engine, err := archive.New(cfg.ArchiverConfig(), opts...)
	if err != nil {
		return nil, fmt.Errorf("creating archive engine: %w", err)
	}
	return engine, nil
}

func runSweep(ctx context.Context, out io.Writer, cfg *config.Config, logger logging.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := newEngine(cfg, logger, metrics.NewRegistry(cfg.Metrics.Textfile))
	if err != nil {
		return err
	}

	res, err := engine.Sweep(ctx, "manual")
	fmt.Fprintf(out, "sweep %s: %d rotated, %d compressed, %d skipped, %d rotated deleted, %d archives deleted in %s\n",
		res.ID, res.Raw, len(res.Compressed), res.Skipped, len(res.DeletedRaw), len(res.DeletedArchives), res.Duration)
	if err != nil {
		return fmt.Errorf("sweep finished with errors: %w", err)
	}
	return nil
}

func runValidate(out io.Writer, cfg *config.Config, n int) error {
	sched, err := schedule.Parse(cfg.Archive.Schedule)
	if err != nil {
		return err
	}

	a := cfg.Archive
	fmt.Fprintf(out, "configuration ok: %s/%s%s, archives %q level %d, keep %d rotated and %d archives\n",
		a.Directory, a.BaseName, naming.RawExt, a.CompressionSuffix, a.CompressionLevel, a.RawRetention, a.ArchiveRetention)
	for _, w := range cfg.Warnings() {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	for _, t := range schedule.NextFrom(sched, timeNow(), n) {
		fmt.Fprintf(out, "next sweep: %s\n", t.Format("2006-01-02 15:04:05 MST"))
	}
	return nil
}

func runDaemon(ctx context.Context, cfg *config.Config, logger logging.Logger, stdin bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("log-archiver starting", "version", version, "dir", cfg.Archive.Directory, "base", cfg.Archive.BaseName)

	m := metrics.NewRegistry(cfg.Metrics.Textfile)
	engine, err := newEngine(cfg, logger, m)
	if err != nil {
		return err
	}

	sched, err := schedule.New(cfg.Archive.Schedule, engine, logger.With("component", "schedule"))
	if err != nil {
		return err
	}

	wk := worker.New(engine, logger.With("component", "worker"), nil)
	wt := watcher.New(cfg.Watch, cfg.Archive.Directory, engine.Scheme().Pattern(naming.Raw),
		logger.With("component", "watcher"), wk)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		wk.Start(gctx)
		return nil
	})
	g.Go(func() error {
		if err := wt.Start(gctx); err != nil {
			return fmt.Errorf("watcher: %w", err)
		}
		return nil
	})

	var rw *rotate.Writer
	if stdin {
		rw, err = rotate.New(rotate.Config{
			Directory:  cfg.Archive.Directory,
			BaseName:   cfg.Archive.BaseName,
			When:       cfg.Rotate.When,
			MaxSize:    int64(cfg.Rotate.MaxSize),
			AsyncSweep: cfg.Rotate.AsyncSweep,
		}, engine, logger.With("component", "rotate"), rotate.WithMetrics(m), rotate.WithRequester(wk))
		if err != nil {
			stop()
			_ = g.Wait()
			return fmt.Errorf("opening active log: %w", err)
		}

		// a blocked read on stdin cannot be interrupted, so this stays
		// outside the group and ends the run on EOF instead
		go func() {
			if _, err := io.Copy(rw, os.Stdin); err != nil && !errors.Is(err, rotate.ErrClosed) {
				logger.Error("copying standard input failed", "error", err)
			}
			logger.Info("standard input closed")
			stop()
		}()
	}

	// catch up on anything rotated while we were down
	wk.Request("startup")
	sched.Start()

	<-gctx.Done()
	logger.Info("shutting down")

	<-sched.Stop().Done()
	err = g.Wait()

	if rw != nil {
		if cerr := rw.Close(); cerr != nil {
			logger.Error("closing active log failed", "error", cerr)
		}
	}
	if ferr := m.Flush(); ferr != nil {
		logger.Warn("metrics export failed", "error", ferr)
	}

	logger.Info("exit complete")
	return err
}
