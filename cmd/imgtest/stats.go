package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/imgtest/pkg/report"
	"github.com/ormasoftchile/imgtest/pkg/testcase"
)

var (
	statsFormat string
	statsWidth  int
)

var statsCmd = &cobra.Command{
	Use:   "stats [cases-dir]",
	Short: "Count selected test cases by distribution, architecture and image type",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStats,
}

func init() {
	addFilterFlags(statsCmd)
	statsCmd.Flags().StringVar(&statsFormat, "format", "table", "Output format: table, markdown or json")
	statsCmd.Flags().IntVar(&statsWidth, "width", 80, "Wrap width for markdown output")
}

func runStats(cmd *cobra.Command, args []string) error {
	casesArg(args)
	switch statsFormat {
	case "table", "markdown", "json":
	default:
		return fmt.Errorf("unknown format %q (want table, markdown or json)", statsFormat)
	}
	pred, err := report.Filter(cfg.Filters)
	if err != nil {
		return err
	}

	cases, scanErr := selectCases(cfg.Cases, pred)
	var selected []*testcase.TestCase
	for tc := range cases {
		selected = append(selected, tc)
	}
	if err := *scanErr; err != nil {
		return err
	}

	stats := report.ComputeStats(selected)
	out := cmd.OutOrStdout()
	switch statsFormat {
	case "json":
		return report.WriteJSON(out, stats)
	case "markdown":
		_, err := fmt.Fprintln(out, report.RenderMarkdown(stats.Markdown(), statsWidth))
		return err
	default:
		return stats.WriteTable(out)
	}
}
