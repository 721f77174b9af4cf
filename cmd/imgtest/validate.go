package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/imgtest/pkg/manifest"
	"github.com/ormasoftchile/imgtest/pkg/report"
	"github.com/ormasoftchile/imgtest/pkg/runner"
	"github.com/ormasoftchile/imgtest/pkg/testcase"
)

var validateJSON bool

var validateCmd = &cobra.Command{
	Use:   "validate [cases-dir]",
	Short: "Check test descriptors and their manifests without building",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runValidate,
}

func init() {
	addFilterFlags(validateCmd)
	addLibdirFlag(validateCmd)
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Print results and summary as one JSON document")
}

func runValidate(cmd *cobra.Command, args []string) error {
	casesArg(args)
	pred, err := report.Filter(cfg.Filters)
	if err != nil {
		return err
	}
	index := manifest.NewIndex(cfg.Libdir)
	rp := report.NewReporter(cmd.OutOrStdout(), validateJSON, verbose)

	cases, scanErr := selectCases(cfg.Cases, pred)
	var results []*runner.Result
	for tc := range cases {
		res := validationResult(tc, index)
		rp.Result(res)
		results = append(results, res)
	}
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

// validationResult resolves tc and reports the outcome as a result with
// only the load stage recorded.
func validationResult(tc *testcase.TestCase, index manifest.FormatIndex) *runner.Result {
	res := &runner.Result{ID: tc.ID, Path: tc.Path, Desc: tc.Desc}
	stage := runner.StageResult{Stage: runner.StageLoad, Outcome: runner.OutcomeOK}
	if runner.Resolve(tc, index) {
		res.State = runner.StateLoaded
		res.Status = runner.StatusPassed
		stages := 0
		for _, p := range tc.Graph.Pipelines() {
			stages += len(p.Stages)
		}
		res.Reason = fmt.Sprintf("%s manifest, %d pipeline(s), %d stage(s)", tc.Format, tc.Graph.Len(), stages)
	} else {
		res.State = runner.StateFailed
		res.Status = runner.StatusFailed
		res.Reason = tc.Err.Message
		res.ErrorClass = tc.Err.Class
		res.Detail = tc.Err.Detail
		stage.Outcome = runner.OutcomeFailed
		stage.Reason = tc.Err.Message
	}
	res.Format = tc.Format
	res.Stages = []runner.StageResult{stage}
	return res
}
