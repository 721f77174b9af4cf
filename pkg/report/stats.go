package report

import (
	"cmp"
	"slices"

	"github.com/ormasoftchile/imgtest/pkg/runner"
	"github.com/ormasoftchile/imgtest/pkg/testcase"
)

// NoValue stands in for a descriptor field that is absent.
const NoValue = "(none)"

// Stats counts test cases per descriptor field value.
type Stats struct {
	Total       int            `json:"total"`
	ByDistro    map[string]int `json:"by_distro"`
	ByArch      map[string]int `json:"by_arch"`
	ByImageType map[string]int `json:"by_image_type"`
}

// ComputeStats tallies cases in a single pass.
func ComputeStats(cases []*testcase.TestCase) Stats {
	s := Stats{
		ByDistro:    map[string]int{},
		ByArch:      map[string]int{},
		ByImageType: map[string]int{},
	}
	for _, tc := range cases {
		s.Total++
		s.ByDistro[orNone(tc.Distro())]++
		s.ByArch[orNone(tc.Arch())]++
		s.ByImageType[orNone(tc.ImageType())]++
	}
	return s
}

func orNone(s string) string {
	if s == "" {
		return NoValue
	}
	return s
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Summary aggregates run results.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	// ByClass counts failures per error class.
	ByClass    map[string]int `json:"by_class,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

// Summarize counts results by status.
func Summarize(results []*runner.Result) Summary {
	var s Summary
	for _, r := range results {
		if r == nil {
			continue
		}
		s.Total++
		switch r.Status {
		case runner.StatusPassed:
			s.Passed++
		case runner.StatusSkipped:
			s.Skipped++
		default:
			s.Failed++
			if s.ByClass == nil {
				s.ByClass = map[string]int{}
			}
			s.ByClass[string(r.ErrorClass)]++
		}
	}
	return s
}

// OK reports whether no test failed.
func (s Summary) OK() bool { return s.Failed == 0 }

// Failures returns the failed results grouped by error class, in corpus
// order within a class.
func Failures(results []*runner.Result) []*runner.Result {
	var out []*runner.Result
	for _, r := range results {
		if r != nil && r.Status == runner.StatusFailed {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b *runner.Result) int {
		return cmp.Compare(a.ErrorClass, b.ErrorClass)
	})
	return out
}
