package main

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/imgtest/pkg/logging"
	"github.com/ormasoftchile/imgtest/pkg/manifest"
	"github.com/ormasoftchile/imgtest/pkg/report"
	"github.com/ormasoftchile/imgtest/pkg/runner"
	"github.com/ormasoftchile/imgtest/pkg/testcase"
	"github.com/ormasoftchile/imgtest/pkg/tools"
)

var runJSON bool

var runCmd = &cobra.Command{
	Use:   "run [cases-dir]",
	Short: "Build, inspect and check every selected test case",
	Long: `Run loads every test descriptor in the corpus, validates its manifest,
builds it with the build engine, inspects the image and compares the result
with the descriptor's image-info.

Exit codes:
  0 all selected tests passed or were skipped
  1 at least one test failed
  2 the run could not complete (bad configuration, unreadable corpus)`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	addFilterFlags(runCmd)
	addLibdirFlag(runCmd)
	addBuildFlags(runCmd)
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print results and summary as one JSON document")
}

func runRun(cmd *cobra.Command, args []string) error {
	casesArg(args)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	pred, err := report.Filter(cfg.Filters)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Timeout))
		defer cancel()
	}

	executor := &tools.RealExecutor{}
	builder := tools.NewBuildInvoker(executor, cfg.BuildEngine, cfg.Store, cfg.Libdir)
	exec := runner.NewExecutor(
		manifest.NewIndex(cfg.Libdir),
		builder,
		tools.NewInspectInvoker(executor, cfg.Inspector),
		runner.Options{
			Store:       cfg.Store,
			OutputDir:   cfg.OutputDir,
			TempDir:     cfg.TempDir,
			DryRun:      cfg.DryRun,
			TestTimeout: time.Duration(cfg.TestTimeout),
		},
	)
	defer func() {
		if err := exec.Close(); err != nil {
			logging.Error("CLI", err, "remove scratch space")
		}
	}()
	logging.Info("CLI", "run %s: corpus %s, %d job(s), %s", exec.RunID(), cfg.Cases, cfg.Jobs, builder)

	rp := report.NewReporter(cmd.OutOrStdout(), runJSON, verbose)
	cases, scanErr := selectCases(cfg.Cases, pred)
	pool := &runner.Pool{Executor: exec, Jobs: cfg.Jobs}
	results := pool.Run(ctx, cases, rp.Result)

	if err := *scanErr; err != nil {
		return err
	}
	if err := rp.Finish(results); err != nil {
		return err
	}
	if !report.Summarize(results).OK() {
		return &exitError{code: exitFailed}
	}
	return nil
}

// selectCases lazily yields the test cases in dir accepted by pred. A
// corpus read error stops the sequence and is stored in the returned
// pointer.
func selectCases(dir string, pred report.Predicate) (iter.Seq[*testcase.TestCase], *error) {
	var scanErr error
	seq := func(yield func(*testcase.TestCase) bool) {
		for tc, err := range testcase.Scan(dir) {
			if err != nil {
				scanErr = fmt.Errorf("read test corpus: %w", err)
				return
			}
			if !pred(tc) {
				logging.Debug("Loader", "%s: filtered out", tc.ID)
				continue
			}
			if !yield(tc) {
				return
			}
		}
	}
	return seq, &scanErr
}
