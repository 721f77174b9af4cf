// Package report selects test cases and presents results: filtering,
// aggregate statistics, per-test status lines and summaries.
package report

import (
	"fmt"

	"github.com/bmatcuk/doublestar"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/ormasoftchile/imgtest/pkg/failure"
	"github.com/ormasoftchile/imgtest/pkg/logging"
	"github.com/ormasoftchile/imgtest/pkg/testcase"
)

// Options selects test cases. Empty fields match everything.
type Options struct {
	Arch   string `yaml:"arch,omitempty" json:"arch,omitempty"`
	Distro string `yaml:"distro,omitempty" json:"distro,omitempty"`
	// Name is a glob matched against the test id.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
	// Where is a boolean expression over id, arch, distro, image_type and
	// desc, e.g. `image_type in ["qcow2", "ami"]`.
	Where string `yaml:"where,omitempty" json:"where,omitempty"`
}

// Predicate reports whether a test case is selected.
type Predicate func(tc *testcase.TestCase) bool

// Filter builds the predicate for opts. A test is selected when its arch
// and distro match (if given), its id matches the name glob (if given) and
// the where expression holds (if given). Test cases whose descriptor could
// not be loaded are always selected so they are reported.
func Filter(opts Options) (Predicate, error) {
	if opts.Name != "" {
		if _, err := doublestar.Match(opts.Name, ""); err != nil {
			return nil, fmt.Errorf("invalid name pattern %q: %w", opts.Name, err)
		}
	}

	var program *vm.Program
	if opts.Where != "" {
		p, err := expr.Compile(opts.Where, expr.Env(filterEnv(&testcase.TestCase{})), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compile where expression %q: %w", opts.Where, err)
		}
		program = p
	}

	return func(tc *testcase.TestCase) bool {
		if tc.Err != nil && tc.Err.Class == failure.Load {
			return true
		}
		if opts.Arch != "" && tc.Arch() != opts.Arch {
			return false
		}
		if opts.Distro != "" && tc.Distro() != opts.Distro {
			return false
		}
		if opts.Name != "" {
			ok, err := doublestar.Match(opts.Name, tc.ID)
			if err != nil || !ok {
				return false
			}
		}
		if program != nil {
			out, err := expr.Run(program, filterEnv(tc))
			if err != nil {
				logging.Warn("CLI", "%s: eval where expression: %v", tc.ID, err)
				return false
			}
			ok, _ := out.(bool)
			return ok
		}
		return true
	}, nil
}

func filterEnv(tc *testcase.TestCase) map[string]any {
	desc := tc.Desc
	if desc == nil {
		desc = map[string]any{}
	}
	return map[string]any{
		"id":         tc.ID,
		"arch":       tc.Arch(),
		"distro":     tc.Distro(),
		"image_type": tc.ImageType(),
		"desc":       desc,
	}
}
