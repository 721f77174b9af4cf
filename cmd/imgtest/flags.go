package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/imgtest/pkg/config"
)

// flagValues holds command-line overrides. Only flags the user set are
// applied over the loaded configuration.
var flagValues struct {
	cases       string
	buildEngine string
	inspector   string
	store       string
	outputDir   string
	tempDir     string
	libdir      string
	jobs        int
	timeout     time.Duration
	testTimeout time.Duration
	dryRun      bool
	arch        string
	distro      string
	name        string
	where       string
}

func addFilterFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&flagValues.cases, "cases", "", "Directory of test descriptors")
	f.StringVar(&flagValues.arch, "arch", "", "Only tests for this architecture")
	f.StringVar(&flagValues.distro, "distro", "", "Only tests for this distribution")
	f.StringVar(&flagValues.name, "name", "", "Only tests whose id matches this glob")
	f.StringVar(&flagValues.where, "where", "", `Only tests matching this expression, e.g. 'image_type == "qcow2"'`)
}

func addLibdirFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagValues.libdir, "libdir", "", "Library directory with stage option schemas")
}

func addBuildFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&flagValues.buildEngine, "build-engine", "", "Path to the build engine executable")
	f.StringVar(&flagValues.inspector, "inspector", "", "Path to the image inspection tool")
	f.StringVar(&flagValues.store, "store", "", "Build store directory shared by all tests")
	f.StringVar(&flagValues.outputDir, "output-dir", "", "Keep per-test build output under this directory")
	f.StringVar(&flagValues.tempDir, "tempdir", "", "Scratch space when no output directory is given")
	f.IntVarP(&flagValues.jobs, "jobs", "j", 1, "Number of tests to run in parallel")
	f.DurationVar(&flagValues.timeout, "timeout", 0, "Time limit for the whole run (0 = none)")
	f.DurationVar(&flagValues.testTimeout, "test-timeout", 0, "Time limit for each test (0 = none)")
	f.BoolVar(&flagValues.dryRun, "dry-run", false, "Resolve and plan only; do not build or inspect")
}

// applyFlags copies explicitly set flags of cmd onto c.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	f := cmd.Flags()
	strs := []struct {
		name string
		dst  *string
		val  string
	}{
		{"cases", &c.Cases, flagValues.cases},
		{"build-engine", &c.BuildEngine, flagValues.buildEngine},
		{"inspector", &c.Inspector, flagValues.inspector},
		{"store", &c.Store, flagValues.store},
		{"output-dir", &c.OutputDir, flagValues.outputDir},
		{"tempdir", &c.TempDir, flagValues.tempDir},
		{"libdir", &c.Libdir, flagValues.libdir},
		{"arch", &c.Filters.Arch, flagValues.arch},
		{"distro", &c.Filters.Distro, flagValues.distro},
		{"name", &c.Filters.Name, flagValues.name},
		{"where", &c.Filters.Where, flagValues.where},
	}
	for _, s := range strs {
		if f.Changed(s.name) {
			*s.dst = s.val
		}
	}
	if f.Changed("jobs") {
		c.Jobs = flagValues.jobs
	}
	if f.Changed("timeout") {
		c.Timeout = config.Duration(flagValues.timeout)
	}
	if f.Changed("test-timeout") {
		c.TestTimeout = config.Duration(flagValues.testTimeout)
	}
	if f.Changed("dry-run") {
		c.DryRun = flagValues.dryRun
	}
}

// casesArg lets the corpus directory be given as the single positional
// argument.
func casesArg(args []string) {
	if len(args) == 1 {
		cfg.Cases = args[0]
	}
}
