// Package cli implements the csim command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/csim/cache"
	"github.com/sarchlab/csim/config"
	"github.com/sarchlab/csim/monitoring"
	"github.com/sarchlab/csim/recording"
	"github.com/sarchlab/csim/report"
	"github.com/sarchlab/csim/shadow"
	"github.com/sarchlab/csim/sim"
	"github.com/sarchlab/csim/trace"
)

// ErrUsage marks errors that are caused by bad command line arguments.
var ErrUsage = errors.New("invalid arguments")

type rootFlags struct {
	configPath  string
	openBrowser bool
	envFiles    []string
	options     config.Options
}

// Execute runs the csim command with os.Args and exits. Exit handlers
// registered with atexit, such as database flushes, run first.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "csim: %v\n", err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

// NewRootCmd builds the csim command and its subcommands.
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{options: *config.Default()}

	cmd := &cobra.Command{
		Use:   "csim [-hv] -s <s> -E <E> -b <b> -t <tracefile>",
		Short: "Simulate a set-associative cache on a valgrind memory trace",
		Long: `csim replays a valgrind lackey trace through a cache with 2^s sets,
E lines per set and 2^b byte blocks, using LRU replacement, and reports
the number of hits, misses and evictions.`,
		Example: `  csim -s 4 -E 1 -b 4 -t traces/yi.trace
  csim -v -s 8 -E 2 -b 4 -t traces/trans.trace.zst --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			options, err := resolveOptions(cmd, flags)
			if err == nil {
				err = options.Validate()
			}
			if err != nil {
				fmt.Fprint(cmd.ErrOrStderr(), cmd.UsageString())
				return fmt.Errorf("%w: %w", ErrUsage, err)
			}

			logger := newLogger(cmd.ErrOrStderr(), options.Verbose)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			return run(ctx, options, flags.openBrowser,
				cmd.OutOrStdout(), logger)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&flags.options.SetBits, "sets", "s", 0,
		"Number of set index bits (2^s sets)")
	f.IntVarP(&flags.options.Associativity, "lines", "E", 0,
		"Associativity (number of lines per set)")
	f.IntVarP(&flags.options.BlockBits, "block", "b", 0,
		"Number of block bits (2^b bytes per block)")
	f.StringVarP(&flags.options.TracePath, "trace", "t", "",
		"Valgrind trace to replay (plain, gzip, zstd or lz4)")
	f.BoolVarP(&flags.options.Verbose, "verbose", "v", false,
		"Print the outcome of every trace record")
	f.StringVar(&flags.options.Format, "format", flags.options.Format,
		"Summary format: text, json or csv")
	f.StringVar(&flags.options.RecordPath, "record", "",
		"Record every access into this SQLite database")
	f.IntVar(&flags.options.MonitorPort, "monitor", 0,
		"Serve live progress on this port (-1 picks a free port)")
	f.BoolVar(&flags.options.Verify, "verify", false,
		"Cross-check every access against the Akita cache directory")
	f.StringVar(&flags.options.ResultsPath, "results", "",
		"Also write \"hits misses evictions\" to this file")
	f.StringVar(&flags.configPath, "config", "",
		"Load options from a JSON, YAML or TOML file")
	f.BoolVar(&flags.openBrowser, "open", false,
		"Open the monitor in a browser")
	f.StringSliceVar(&flags.envFiles, "env-file", []string{".env"},
		"Files with CSIM_* variables to load")

	cmd.AddCommand(newGenCmd())

	return cmd
}

// resolveOptions merges defaults, environment, config file and the flags
// that were set explicitly, in increasing priority.
func resolveOptions(cmd *cobra.Command, flags *rootFlags) (*config.Options, error) {
	if err := config.LoadEnv(flags.envFiles...); err != nil {
		return nil, err
	}

	options := config.Default()
	if err := options.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if flags.configPath != "" {
		loaded, err := config.LoadOver(flags.configPath, options)
		if err != nil {
			return nil, err
		}
		options = loaded
	}

	set := &flags.options
	f := cmd.Flags()
	if f.Changed("sets") {
		options.SetBits = set.SetBits
	}
	if f.Changed("lines") {
		options.Associativity = set.Associativity
	}
	if f.Changed("block") {
		options.BlockBits = set.BlockBits
	}
	if f.Changed("trace") {
		options.TracePath = set.TracePath
	}
	if f.Changed("verbose") {
		options.Verbose = set.Verbose
	}
	if f.Changed("format") {
		options.Format = set.Format
	}
	if f.Changed("record") {
		options.RecordPath = set.RecordPath
	}
	if f.Changed("monitor") {
		options.MonitorPort = set.MonitorPort
	}
	if f.Changed("verify") {
		options.Verify = set.Verify
	}
	if f.Changed("results") {
		options.ResultsPath = set.ResultsPath
	}

	return options, nil
}

func newLogger(w io.Writer, verbose bool) *logrus.Logger {
	logger := logrus.New()
	logger.Out = w
	logger.Formatter = &logrus.TextFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000000Z07:00",
	}
	logger.SetLevel(logrus.InfoLevel)
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	return logger
}

// run simulates one trace with fully resolved options.
func run(
	ctx context.Context,
	options *config.Options,
	openBrowser bool,
	stdout io.Writer,
	logger *logrus.Logger,
) error {
	cacheConfig, err := options.CacheConfig()
	if err != nil {
		return err
	}

	c, err := cache.Build(cacheConfig)
	if err != nil {
		return err
	}

	log := logger.WithFields(logrus.Fields{
		"trace": options.TracePath,
		"sets":  cacheConfig.NumSets(),
		"ways":  cacheConfig.Associativity(),
		"block": cacheConfig.BlockSize(),
	})

	file, err := trace.Open(options.TracePath)
	if err != nil {
		return err
	}
	defer file.Close()

	log.WithField("compression", file.Compression).Debug("Opened trace")

	simOptions := []sim.Option{sim.WithLogger(log)}

	var verbose *report.VerbosePrinter
	if options.Verbose {
		verbose = report.NewVerbosePrinter(stdout)
		simOptions = append(simOptions, sim.WithListener(verbose))
	}

	if options.Verify {
		simOptions = append(simOptions, sim.WithVerifier(shadow.New(cacheConfig)))
	}

	var recorder *recording.Recorder
	if options.RecordPath != "" {
		recorder, err = recording.New(options.RecordPath, cacheConfig,
			recording.WithLogger(log))
		if err != nil {
			return err
		}
		simOptions = append(simOptions, sim.WithListener(recorder))
		log = log.WithField("db", recorder.Path())
	}

	var tracker *monitoring.Tracker
	if options.MonitorPort != 0 {
		tracker = monitoring.NewTracker(options.TracePath)
		port := options.MonitorPort
		if port < 0 {
			port = 0
		}

		monitor := monitoring.NewMonitor(tracker).
			WithPortNumber(port).
			WithConfig(options).
			WithLogger(log)
		url, err := monitor.Start()
		if err != nil {
			return err
		}
		defer monitor.Close()

		log = log.WithField("url", url)
		if openBrowser {
			if err := monitoring.OpenBrowser(url); err != nil {
				log.WithError(err).Warn("Cannot open browser")
			}
		}
		simOptions = append(simOptions, sim.WithListener(tracker))
	}

	s := sim.New(c, simOptions...)

	start := time.Now()
	result, runErr := s.Run(ctx, file)
	elapsed := time.Since(start)

	if tracker != nil {
		tracker.Finish()
	}
	if verbose != nil {
		runErr = errors.Join(runErr, verbose.Flush())
	}
	if recorder != nil {
		runErr = errors.Join(runErr, recorder.Close(result))
	}
	if runErr != nil {
		return runErr
	}

	log.WithFields(logrus.Fields{
		"records":   result.Records,
		"wall_time": elapsed,
	}).Debug("Simulation finished")

	summary := report.NewSummary(cacheConfig, result)
	summary.Trace = options.TracePath
	summary.WallTime = elapsed

	format, err := report.ParseFormat(options.Format)
	if err != nil {
		return err
	}
	if err := report.Write(stdout, format, summary); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	if options.ResultsPath != "" {
		return report.WriteResultsFile(options.ResultsPath, result.Stats)
	}

	return nil
}
