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

	"github.com/spf13/cobra"
	"harvester/internal/lockfile"
	"harvester/pkg/auth"
	"harvester/pkg/bgg"
	"harvester/pkg/checkpoint"
	"harvester/pkg/config"
	herrors "harvester/pkg/errors"
	"harvester/pkg/logger"
	"harvester/pkg/metrics"
	"harvester/pkg/sweep"
	"harvester/pkg/ui"
)

var (
	statusOnly      bool
	runLimit        int64
	batchSize       int
	maxID           int64
	pageSize        int
	pages           int
	delay           time.Duration
	maxAttempts     int
	outputFile      string
	sinkName        string
	metricsTextfile string
)

// sweepCmd represents the sweep command
var sweepCmd = &cobra.Command{
	Use:   "sweep <bgg|wikidata>",
	Short: "Run one bounded slice of a sweep",
	Long: `Run one bounded slice of a sweep and checkpoint after every unit.

bgg walks the BoardGameGeek ID space in batches of --batch-size IDs, at most
--run-limit IDs per invocation, up to --max-id.

wikidata pages through the SPARQL results --page-size rows at a time, --pages
pages per invocation, until a short page marks the end.

Interrupting a run (Ctrl+C) loses at most the unit in flight.`,
	Example: `  # Next 10,000 BGG IDs
  harvester sweep bgg

  # Where are we?
  harvester sweep bgg --status

  # Three Wikidata pages into Postgres
  harvester sweep wikidata --pages 3 --sink postgres`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: sourceNames(),
	RunE:      runSweepCmd,
}

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().BoolVar(&statusOnly, "status", false, "show progress and the next run's range without fetching")
	sweepCmd.Flags().Int64Var(&runLimit, "run-limit", 0, "bgg: IDs per invocation (default 10000)")
	sweepCmd.Flags().IntVar(&batchSize, "batch-size", 0, "bgg: IDs per request (default 100)")
	sweepCmd.Flags().Int64Var(&maxID, "max-id", 0, "bgg: highest ID to sweep (default 420000)")
	sweepCmd.Flags().IntVar(&pageSize, "page-size", 0, "wikidata: rows per page (default 10000)")
	sweepCmd.Flags().IntVar(&pages, "pages", 0, "wikidata: pages per invocation (default 1)")
	sweepCmd.Flags().DurationVar(&delay, "delay", 0, "pause between units (default 600ms)")
	sweepCmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "attempts per unit before it is skipped (default 5)")
	sweepCmd.Flags().StringVarP(&outputFile, "output", "o", "", "CSV output file (default master_list.csv)")
	sweepCmd.Flags().StringVar(&sinkName, "sink", "", "output sink: csv or postgres")
	sweepCmd.Flags().StringVar(&metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file after the run")
}

// commandFlags collects the flag values config.MergeCommandLineFlags understands
func commandFlags() map[string]interface{} {
	return map[string]interface{}{
		"run-limit":        runLimit,
		"batch-size":       batchSize,
		"max-id":           maxID,
		"page-size":        pageSize,
		"pages":            pages,
		"delay":            delay,
		"max-attempts":     maxAttempts,
		"output":           outputFile,
		"sink":             sinkName,
		"log-level":        logLevel,
		"log-file":         logFile,
		"metrics-textfile": metricsTextfile,
	}
}

// loadConfig loads configuration and initializes the global logger from it
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile, commandFlags())
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

func runSweepCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var tokens tokenSource
	if mgr, err := auth.NewManager(); err == nil {
		tokens = mgr
	} else {
		logger.GetLogger().WithError(err).Debug("credential stores unavailable")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = runSweep(ctx, cfg, args[0], sweepOptions{
		statusOnly: statusOnly,
		verbose:    verbose,
		out:        ui.Output(),
		errOut:     os.Stderr,
		tokens:     tokens,
	})
	if errors.Is(err, context.Canceled) {
		ui.PrintWarning("Interrupted; the next run resumes from the last checkpoint")
		return nil
	}
	return err
}

type sweepOptions struct {
	statusOnly bool
	verbose    bool
	out        io.Writer
	errOut     io.Writer
	tokens     tokenSource
}

// runSweep executes one invocation of the named sweep, or renders its status
func runSweep(ctx context.Context, cfg *config.Config, name string, opts sweepOptions) (sweep.Report, error) {
	if opts.out == nil {
		opts.out = io.Discard
	}
	if opts.errOut == nil {
		opts.errOut = io.Discard
	}
	log := logger.GetLogger()

	src, err := lookupSource(cfg, name)
	if err != nil {
		return sweep.Report{}, err
	}

	if opts.statusOnly {
		st, err := inspect(src, log)
		if err != nil {
			return sweep.Report{}, err
		}
		ui.RenderStatus(opts.out, []sweep.Status{st})
		return sweep.Report{Source: src.name, State: sweep.StateIdle, StartCursor: st.Cursor, EndCursor: st.Cursor}, nil
	}

	run := *cfg
	if src.name == bgg.SourceName {
		token, err := resolveToken(&run, opts.tokens)
		if err != nil || token == "" {
			auth.ShowQuickTokenHint(opts.errOut)
			return sweep.Report{}, fmt.Errorf("bgg sweep needs an API token: %w", auth.ErrTokenNotFound)
		}
		run.BGG.Token = token
	}

	lock, err := lockfile.Acquire(src.stateFile+".lock", run.Output.LockTTL)
	if err != nil {
		return sweep.Report{}, err
	}
	defer lock.Release()
	if run.Output.LockTTL > 0 {
		lock.Heartbeat(run.Output.LockTTL / 4)
	}

	snk, err := openSink(ctx, &run, log)
	if err != nil {
		return sweep.Report{}, err
	}
	defer func() {
		if cerr := snk.Close(); cerr != nil {
			log.WithError(cerr).Warn("failed to close sink")
		}
	}()

	m := metrics.NewSweep()
	f, p := newFetchParser(&run, src, m, log)
	store := checkpoint.NewManager(src.stateFile, log)

	planned, _ := sweep.Inspect(src.name, src.space, store, src.delay)
	var display *ui.ProgressDisplay
	observer := sweep.Observer(m)
	if !ui.IsQuietMode() {
		display = ui.NewProgressDisplay(opts.out, src.name, planned.UnitsNextRun, opts.verbose)
		observer = sweep.Observers(m, display)
	}

	driver, err := sweep.New(sweep.Config{
		Source:   src.name,
		Space:    src.space,
		Fetcher:  f,
		Parser:   p,
		Sink:     snk,
		Store:    store,
		Delay:    src.delay,
		Observer: observer,
		Logger:   log,
	})
	if err != nil {
		return sweep.Report{}, err
	}

	report, runErr := driver.Run(ctx)
	if herrors.Is(runErr, herrors.ErrorTypeAuth) {
		auth.ShowRejectedTokenHint(opts.errOut)
	}

	m.MarkRun(src.name, time.Now())
	if run.Metrics.Textfile != "" {
		if err := m.WriteTextfile(run.Metrics.Textfile); err != nil {
			log.WithError(err).Warn("failed to write metrics textfile")
		}
	}

	if display != nil {
		display.Complete(report)
	}

	return report, runErr
}
